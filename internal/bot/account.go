package bot

import (
	"tradesnake/internal/strategy"
)

// Position 表示账户当前的持仓状态。
type Position int

const (
	PositionFlat Position = iota
	PositionLong
)

func (p Position) String() string {
	if p == PositionLong {
		return "long"
	}
	return "flat"
}

// Account 是单个机器人的可变账户状态，只被其所属的会话
// （或回测运行）串行修改，不存在并发写。
// 不变式：Quantity > 0 ⇔ Position == Long。
type Account struct {
	ID         int64
	OwnerID    int64
	StrategyID int64
	BrokerID   int64
	Symbol     string
	Interval   string
	Cash       float64
	Quantity   float64
	Position   Position
}

// AccountFromParams 从参数包构建账户。symbol/money/symbol_count 必填，
// interval 缺省为日线（与存量数据一致）。
func AccountFromParams(ownerID, botID, strategyID, brokerID int64, params strategy.Params) (*Account, error) {
	symbol, err := params.Str("symbol")
	if err != nil {
		return nil, err
	}
	cash, err := params.Float("money")
	if err != nil {
		return nil, err
	}
	quantity, err := params.Float("symbol_count")
	if err != nil {
		return nil, err
	}
	acct := &Account{
		ID:         botID,
		OwnerID:    ownerID,
		StrategyID: strategyID,
		BrokerID:   brokerID,
		Symbol:     symbol,
		Interval:   params.StrOr("interval", "d"),
		Cash:       cash,
		Quantity:   quantity,
	}
	if acct.Quantity > 0 {
		acct.Position = PositionLong
	}
	return acct, nil
}
