package indicator

import (
	"context"
	"math"

	"github.com/markcheno/go-talib"

	"tradesnake/internal/market"
)

// Trend 是市场快照里的方向判断。
type Trend string

const (
	TrendUp   Trend = "Up"
	TrendDown Trend = "Down"
	TrendFlat Trend = "Flat"
)

// MarketState 汇总一段行情的趋势与波动特征。
type MarketState struct {
	Trend                Trend   `json:"trend"`
	IsTrend              bool    `json:"is_trend"`
	Volatility           float64 `json:"volatility"`
	NormalizedVolatility float64 `json:"normalized_volatility"`
	VolatilityPercent    float64 `json:"volatility_percent"`
	MaxPrice             float64 `json:"max_price"`
	MinPrice             float64 `json:"min_price"`
}

// AnalyzeMarket 用小时线对 [start, end] 区间做趋势/波动快照。
// 少于 5 根 K 线时返回零值快照而不是报错。
func (s *Service) AnalyzeMarket(ctx context.Context, symbol, start, end string) (MarketState, error) {
	candles, err := s.source.HistoricalCandles(ctx, symbol, start, end, "60")
	if err != nil {
		return MarketState{}, err
	}
	market.SortAscending(candles)
	return analyze(candles), nil
}

func analyze(candles []market.Candle) MarketState {
	var state MarketState
	if len(candles) < 5 {
		return state
	}

	maxPrice, minPrice := candles[0].Close, candles[0].Close
	var changeSum float64
	closes := make([]float64, 0, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		close := candles[i].Close
		closes = append(closes, close)
		maxPrice = math.Max(maxPrice, close)
		minPrice = math.Min(minPrice, close)
		changeSum += close - candles[i-1].Close
	}

	mean := talib.Sma(closes, len(closes))[len(closes)-1]
	var variance float64
	for _, price := range closes {
		variance += (price - mean) * (price - mean)
	}
	volatility := math.Sqrt(variance / float64(len(closes)))

	priceRange := maxPrice - minPrice
	normalized := 0.0
	if priceRange != 0 {
		normalized = volatility / priceRange
	}

	smaShort := talib.Sma(closes, 3)[len(closes)-1]
	smaLong := mean
	switch {
	case changeSum > 0 && smaShort > smaLong:
		state.Trend = TrendUp
	case changeSum < 0 && smaShort < smaLong:
		state.Trend = TrendDown
	default:
		state.Trend = TrendFlat
	}

	state.IsTrend = volatility > 1.5 && math.Abs(changeSum) > priceRange*0.3
	state.Volatility = volatility
	state.NormalizedVolatility = normalized
	state.VolatilityPercent = normalized * 100
	state.MaxPrice = maxPrice
	state.MinPrice = minPrice
	return state
}
