package strategy

import "context"

// momentumStrategy：价格高于上一个观察值就买入；连续低于最近两个
// 观察值才卖出（单次回落不离场）。
type momentumStrategy struct {
	last       float64
	secondLast float64
	seen       int
}

const momentumSchema = `{
	"type": "object",
	"required": ["symbol", "money", "symbol_count"]
}`

func newMomentumStrategy(_ context.Context, _ Deps, _ Params) (Strategy, error) {
	return &momentumStrategy{}, nil
}

func (s *momentumStrategy) Decide(price float64) Decision {
	defer func() {
		s.secondLast = s.last
		s.last = price
		s.seen++
	}()
	if s.seen == 0 {
		return Hold
	}
	if price > s.last {
		return Buy
	}
	if s.seen >= 2 && price < s.last && price < s.secondLast {
		return Sell
	}
	return Hold
}
