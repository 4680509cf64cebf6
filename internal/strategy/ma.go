package strategy

import (
	"context"

	"github.com/markcheno/go-talib"

	"tradesnake/internal/logger"
)

// maStrategy：价格站上 N 周期均线买入，跌破卖出。
type maStrategy struct {
	length int
	window []float64
}

const maSchema = `{
	"type": "object",
	"required": ["symbol", "money", "symbol_count", "ma_length"]
}`

func newMAStrategy(ctx context.Context, deps Deps, params Params) (Strategy, error) {
	length, err := params.Int("ma_length")
	if err != nil {
		return nil, err
	}
	if length <= 0 {
		return nil, &InvalidParameterError{Key: "ma_length", Reason: "必须为正整数"}
	}
	s := &maStrategy{length: length}
	s.window = seedWindow(ctx, deps, length)
	return s, nil
}

func (s *maStrategy) Decide(price float64) Decision {
	s.window = appendCapped(s.window, price, s.length)
	if len(s.window) < s.length {
		return Hold
	}
	sma := talib.Sma(s.window, s.length)
	ma := sma[len(sma)-1]
	switch {
	case price > ma:
		return Buy
	case price < ma:
		return Sell
	default:
		return Hold
	}
}

// seedWindow 用历史收盘价预热窗口；回测没有 Warmup，从冷状态起步。
// 预热失败只降级为冷启动，不阻止机器人启动。
func seedWindow(ctx context.Context, deps Deps, periods int) []float64 {
	if deps.Warmup == nil {
		return nil
	}
	closes, err := deps.Warmup(ctx, deps.Symbol, deps.Interval, periods)
	if err != nil {
		logger.Warnf("策略预热失败 %s@%s: %v", deps.Symbol, deps.Interval, err)
		return nil
	}
	if len(closes) > periods {
		closes = closes[len(closes)-periods:]
	}
	return append([]float64(nil), closes...)
}

func appendCapped(window []float64, price float64, limit int) []float64 {
	window = append(window, price)
	if len(window) > limit {
		window = window[len(window)-limit:]
	}
	return window
}
