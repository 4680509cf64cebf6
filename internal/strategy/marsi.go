package strategy

import (
	"context"

	"github.com/markcheno/go-talib"
)

// marsiStrategy 把均线方向和 RSI 过热过滤结合起来：
// 价格在均线上方且 RSI 未超买才买入；跌破均线或 RSI 超买即卖出。
type marsiStrategy struct {
	maLength   int
	rsiPeriod  int
	overbought float64
	window     []float64
	windowCap  int
}

const marsiSchema = `{
	"type": "object",
	"required": ["symbol", "money", "symbol_count", "ma_length", "rsi_period"]
}`

func newMARSIStrategy(ctx context.Context, deps Deps, params Params) (Strategy, error) {
	maLength, err := params.Int("ma_length")
	if err != nil {
		return nil, err
	}
	rsiPeriod, err := params.Int("rsi_period")
	if err != nil {
		return nil, err
	}
	if maLength <= 0 {
		return nil, &InvalidParameterError{Key: "ma_length", Reason: "必须为正整数"}
	}
	if rsiPeriod <= 0 {
		return nil, &InvalidParameterError{Key: "rsi_period", Reason: "必须为正整数"}
	}
	overbought, err := params.FloatOr("overbought", 70)
	if err != nil {
		return nil, err
	}
	windowCap := maLength
	if rsiPeriod*4 > windowCap {
		windowCap = rsiPeriod * 4
	}
	s := &marsiStrategy{
		maLength:   maLength,
		rsiPeriod:  rsiPeriod,
		overbought: overbought,
		windowCap:  windowCap,
	}
	s.window = seedWindow(ctx, deps, windowCap)
	return s, nil
}

func (s *marsiStrategy) Decide(price float64) Decision {
	s.window = appendCapped(s.window, price, s.windowCap)
	if len(s.window) < s.maLength || len(s.window) <= s.rsiPeriod {
		return Hold
	}
	smaSeries := talib.Sma(s.window, s.maLength)
	rsiSeries := talib.Rsi(s.window, s.rsiPeriod)
	ma := smaSeries[len(smaSeries)-1]
	rsi := rsiSeries[len(rsiSeries)-1]
	switch {
	case price < ma || rsi > s.overbought:
		return Sell
	case price > ma:
		return Buy
	default:
		return Hold
	}
}
