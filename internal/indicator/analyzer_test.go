package indicator

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"

	"tradesnake/internal/market"
)

func hourlyCandles(closes ...float64) []market.Candle {
	out := make([]market.Candle, len(closes))
	for i, c := range closes {
		out[i] = market.Candle{
			Timestamp: strconv.FormatInt(int64(1700000000+i*3600), 10),
			Close:     c, Open: c, High: c, Low: c,
		}
	}
	return out
}

func TestAnalyzeTooFewCandlesReturnsZeroState(t *testing.T) {
	state := analyze(hourlyCandles(100, 101, 102))
	assert.Equal(t, MarketState{}, state)
}

func TestAnalyzeDetectsUptrend(t *testing.T) {
	state := analyze(hourlyCandles(100, 105, 110, 115, 120, 125, 130, 135))

	assert.Equal(t, TrendUp, state.Trend)
	assert.True(t, state.IsTrend)
	assert.Equal(t, 135.0, state.MaxPrice)
	assert.Equal(t, 100.0, state.MinPrice)
	assert.Greater(t, state.Volatility, 0.0)
}

func TestAnalyzeDetectsDowntrend(t *testing.T) {
	state := analyze(hourlyCandles(135, 130, 125, 120, 115, 110, 105, 100))

	assert.Equal(t, TrendDown, state.Trend)
	assert.True(t, state.IsTrend)
}

func TestAnalyzeFlatMarket(t *testing.T) {
	state := analyze(hourlyCandles(100, 100, 100, 100, 100, 100))

	assert.Equal(t, TrendFlat, state.Trend)
	assert.False(t, state.IsTrend)
	assert.Equal(t, 0.0, state.Volatility)
}
