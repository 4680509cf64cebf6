package store

import (
	"context"
	"errors"
	"time"
)

// ErrBrokerNotFound 表示 broker 配置不存在。
var ErrBrokerNotFound = errors.New("store: broker not found")

// BrokerProfile 是某个经纪商的成本模型，加载后不可变。
type BrokerProfile struct {
	ID                int64
	Name              string
	Spread            float64
	PercentCommission float64
	FixedCommission   float64
}

// TradeType 与 trades.type 列对应：1=买入，2=卖出。
type TradeType int

const (
	TradeBuy  TradeType = 1
	TradeSell TradeType = 2
)

func (t TradeType) String() string {
	switch t {
	case TradeBuy:
		return "buy"
	case TradeSell:
		return "sell"
	default:
		return "unknown"
	}
}

// Trade 是一笔成交记录，只追加不修改。Price 为报价名义额
// （quote×qty），BrokerPrice 为成交名义额（realized×qty）。
type Trade struct {
	BotID       int64
	Type        TradeType
	Price       float64
	BrokerPrice float64
	Quantity    float64
	Time        time.Time
}

// BotState 是 bots 表的一行加上策略参数包。
type BotState struct {
	BotID      int64
	OwnerID    int64
	StrategyID int64
	BrokerID   int64
	Symbol     string
	Interval   string
	Cash       float64
	Quantity   float64
	Params     map[string]string
}

// Store 是引擎依赖的持久化能力集。所有写入都是尽力而为的
// at-least-once 语义：失败由调用方记录日志，下一个 tick 重新决策。
type Store interface {
	LoadRunningBots(ctx context.Context) ([]BotState, error)
	UpsertBot(ctx context.Context, state BotState) error
	SetRunning(ctx context.Context, botID int64, running bool) error

	LoadBrokerProfile(ctx context.Context, brokerID int64) (BrokerProfile, error)
	SaveBrokerProfile(ctx context.Context, profile BrokerProfile) error

	RecordTrade(ctx context.Context, trade Trade) error
	// ApplyBuy 扣减现金并增持：money -= spend，symbol_count += qty。
	ApplyBuy(ctx context.Context, botID int64, spend, qty float64) error
	// ApplySell 入账并清仓：money += proceeds，symbol_count = 0。
	ApplySell(ctx context.Context, botID int64, proceeds float64) error
	// MarkPrice 仅刷新 bots.current_price。
	MarkPrice(ctx context.Context, botID int64, price float64) error

	Close() error
}
