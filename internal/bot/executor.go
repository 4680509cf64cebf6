package bot

import (
	"context"

	"tradesnake/internal/broker"
	"tradesnake/internal/logger"
	"tradesnake/internal/strategy"
)

// Fill 记录一次成交的名义额：Price 按报价、BrokerPrice 按成交价，
// Quantity 为成交数量。
type Fill struct {
	Price       float64 `json:"price"`
	BrokerPrice float64 `json:"broker_price"`
	Quantity    float64 `json:"quantity"`
}

// TickResult 是一个 tick 的执行结果，买卖互斥，可能都为空。
type TickResult struct {
	Decision strategy.Decision
	Buy      *Fill
	Sell     *Fill
}

// ExecuteTick 按决策对账户执行一次买/卖/持有。实时循环和回测复用
// 同一段逻辑，保证两种模式下的账务完全一致。
//
// 买入先按报价估算数量，再按含费成交价重新推导，花费永远不超过
// 现金；卖出按报价入账（成交价只进 trades 表，保守记账）。
// 持久化失败只记日志，账户内存状态照常推进，下一个 tick 重新决策。
func ExecuteTick(ctx context.Context, acct *Account, sim *broker.Simulator, dec strategy.Decision, price float64) TickResult {
	result := TickResult{Decision: dec}
	if price <= 0 {
		return result
	}
	switch dec {
	case strategy.Buy:
		qty := acct.Cash / price
		if qty == 0 {
			return result
		}
		realized := sim.RealizedBuyPrice(price, qty)
		qty = acct.Cash / realized
		if err := sim.Buy(ctx, acct.ID, price, realized, qty); err != nil {
			logger.Warnf("bot %d 买入落库失败: %v", acct.ID, err)
		}
		acct.Quantity += qty
		acct.Cash = 0
		acct.Position = PositionLong
		result.Buy = &Fill{Price: price * qty, BrokerPrice: realized * qty, Quantity: qty}
	case strategy.Sell:
		qty := acct.Quantity
		if qty == 0 {
			return result
		}
		realized := sim.RealizedSellPrice(price, qty)
		if err := sim.Sell(ctx, acct.ID, price, realized, qty); err != nil {
			logger.Warnf("bot %d 卖出落库失败: %v", acct.ID, err)
		}
		acct.Quantity = 0
		acct.Cash = qty * price
		acct.Position = PositionFlat
		result.Sell = &Fill{Price: price * qty, BrokerPrice: realized * qty, Quantity: qty}
	default:
		// Hold 以 1 单位的卖出成交价刷新 current_price 标记。
		mark := sim.RealizedSellPrice(price, 1)
		if err := sim.Hold(ctx, acct.ID, mark); err != nil {
			logger.Warnf("bot %d 刷新价格标记失败: %v", acct.ID, err)
		}
	}
	return result
}
