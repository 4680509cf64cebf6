package model

import (
	"gorm.io/datatypes"
)

// BotModel 对应 bots 表：账户余额、持仓与策略参数。
type BotModel struct {
	ID           int64          `gorm:"column:id;primaryKey"`
	OwnerID      int64          `gorm:"column:owner_id;index"`
	StrategyID   int64          `gorm:"column:strategy_id"`
	BrokerID     int64          `gorm:"column:broker_id"`
	Symbol       string         `gorm:"column:symbol"`
	Interval     string         `gorm:"column:interval"`
	Money        float64        `gorm:"column:money"`
	SymbolCount  float64        `gorm:"column:symbol_count"`
	CurrentPrice float64        `gorm:"column:current_price"`
	Running      bool           `gorm:"column:is_running;index"`
	Params       datatypes.JSON `gorm:"column:strategy_parameters;type:TEXT"`
	CreatedAt    int64          `gorm:"column:created_at"`
	UpdatedAt    int64          `gorm:"column:updated_at"`
}

func (BotModel) TableName() string { return "bots" }

// BrokerModel 对应 brokers 表（成本模型）。
type BrokerModel struct {
	ID                int64   `gorm:"column:id;primaryKey"`
	Name              string  `gorm:"column:name"`
	Spread            float64 `gorm:"column:spread"`
	PercentCommission float64 `gorm:"column:percent_commission"`
	FixedCommission   float64 `gorm:"column:fixed_commission"`
}

func (BrokerModel) TableName() string { return "brokers" }

// TradeModel 对应 trades 表，只追加。
type TradeModel struct {
	ID          int64   `gorm:"column:id;primaryKey;autoIncrement"`
	BotID       int64   `gorm:"column:bot_id;index"`
	TypeID      int     `gorm:"column:type_id"`
	Price       float64 `gorm:"column:price"`
	BrokerPrice float64 `gorm:"column:price_by_broker"`
	Quantity    float64 `gorm:"column:quantity"`
	Time        int64   `gorm:"column:time"`
}

func (TradeModel) TableName() string { return "trades" }
