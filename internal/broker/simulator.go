package broker

import (
	"context"
	"time"

	"tradesnake/internal/store"
)

// Ledger 是模拟器需要的持久化子集。传 nil 时只做定价，不落库
// （回测的临时账户走这条路）。
type Ledger interface {
	RecordTrade(ctx context.Context, trade store.Trade) error
	ApplyBuy(ctx context.Context, botID int64, spend, qty float64) error
	ApplySell(ctx context.Context, botID int64, proceeds float64) error
	MarkPrice(ctx context.Context, botID int64, price float64) error
}

// Simulator 把报价换算成含点差和佣金的成交价，并把买卖的账务
// 效果写入 ledger。定价部分是纯函数。
type Simulator struct {
	profile store.BrokerProfile
	ledger  Ledger
}

func NewSimulator(profile store.BrokerProfile, ledger Ledger) *Simulator {
	return &Simulator{profile: profile, ledger: ledger}
}

func (s *Simulator) Profile() store.BrokerProfile { return s.profile }

// RealizedBuyPrice 返回买入的实际成交单价：买方额外承担点差与佣金。
// 调用方必须保证 qty != 0。
func (s *Simulator) RealizedBuyPrice(quote, qty float64) float64 {
	p := s.profile
	return (quote*qty + p.Spread + p.PercentCommission/100*quote*qty + p.FixedCommission) / qty
}

// RealizedSellPrice 返回卖出的实际成交单价：卖方到手更少。
// 调用方必须保证 qty != 0。
func (s *Simulator) RealizedSellPrice(quote, qty float64) float64 {
	p := s.profile
	return (quote*qty - p.Spread - p.PercentCommission/100*quote*qty - p.FixedCommission) / qty
}

// Buy 记录买入成交并更新账户：money -= qty×quote，symbol_count += qty。
// 成交记录里 price 存报价名义额、price_by_broker 存成交名义额。
func (s *Simulator) Buy(ctx context.Context, botID int64, quote, realized, qty float64) error {
	if qty == 0 || s.ledger == nil {
		return nil
	}
	if err := s.ledger.MarkPrice(ctx, botID, realized); err != nil {
		return err
	}
	trade := store.Trade{
		BotID:       botID,
		Type:        store.TradeBuy,
		Price:       quote * qty,
		BrokerPrice: realized * qty,
		Quantity:    qty,
		Time:        time.Now(),
	}
	if err := s.ledger.RecordTrade(ctx, trade); err != nil {
		return err
	}
	return s.ledger.ApplyBuy(ctx, botID, qty*quote, qty)
}

// Sell 记录卖出成交并更新账户：money += qty×quote，symbol_count = 0。
// 入账按报价而非成交价——保守记账，成交价只留在 trades 表里。
func (s *Simulator) Sell(ctx context.Context, botID int64, quote, realized, qty float64) error {
	if qty == 0 || s.ledger == nil {
		return nil
	}
	if err := s.ledger.MarkPrice(ctx, botID, realized); err != nil {
		return err
	}
	trade := store.Trade{
		BotID:       botID,
		Type:        store.TradeSell,
		Price:       quote * qty,
		BrokerPrice: realized * qty,
		Quantity:    qty,
		Time:        time.Now(),
	}
	if err := s.ledger.RecordTrade(ctx, trade); err != nil {
		return err
	}
	return s.ledger.ApplySell(ctx, botID, qty*quote)
}

// Hold 只刷新 current_price 标记，不产生成交。
func (s *Simulator) Hold(ctx context.Context, botID int64, price float64) error {
	if s.ledger == nil {
		return nil
	}
	return s.ledger.MarkPrice(ctx, botID, price)
}
