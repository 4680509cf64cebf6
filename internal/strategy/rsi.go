package strategy

import (
	"context"

	"github.com/markcheno/go-talib"
)

// rsiStrategy：RSI 低于超卖线买入，高于超买线卖出。
type rsiStrategy struct {
	period     int
	oversold   float64
	overbought float64
	window     []float64
}

const rsiSchema = `{
	"type": "object",
	"required": ["symbol", "money", "symbol_count", "rsi_period"]
}`

func newRSIStrategy(ctx context.Context, deps Deps, params Params) (Strategy, error) {
	period, err := params.Int("rsi_period")
	if err != nil {
		return nil, err
	}
	if period <= 0 {
		return nil, &InvalidParameterError{Key: "rsi_period", Reason: "必须为正整数"}
	}
	oversold, err := params.FloatOr("oversold", 30)
	if err != nil {
		return nil, err
	}
	overbought, err := params.FloatOr("overbought", 70)
	if err != nil {
		return nil, err
	}
	if oversold >= overbought {
		return nil, &InvalidParameterError{Key: "oversold", Reason: "必须小于 overbought"}
	}
	s := &rsiStrategy{period: period, oversold: oversold, overbought: overbought}
	// Wilder 平滑需要比周期更长的序列才稳定，窗口留 4 倍周期。
	s.window = seedWindow(ctx, deps, period*4)
	return s, nil
}

func (s *rsiStrategy) Decide(price float64) Decision {
	s.window = appendCapped(s.window, price, s.period*4)
	if len(s.window) <= s.period {
		return Hold
	}
	series := talib.Rsi(s.window, s.period)
	rsi := series[len(series)-1]
	switch {
	case rsi < s.oversold:
		return Buy
	case rsi > s.overbought:
		return Sell
	default:
		return Hold
	}
}
