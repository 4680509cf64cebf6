package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTickDurationKnownIntervals(t *testing.T) {
	cases := map[string]time.Duration{
		"d":  24 * time.Hour,
		"60": time.Hour,
		"30": 30 * time.Minute,
		"15": 15 * time.Minute,
		"5":  5 * time.Minute,
		"1":  time.Minute,
	}
	for interval, want := range cases {
		got, known := TickDuration(interval)
		assert.True(t, known, interval)
		assert.Equal(t, want, got, interval)
	}
}

func TestTickDurationUnknownFallsBackToOneSecond(t *testing.T) {
	got, known := TickDuration("weekly")
	assert.False(t, known)
	assert.Equal(t, time.Second, got)
}

func TestSortAscendingOrdersByTimestamp(t *testing.T) {
	candles := []Candle{
		{Timestamp: "1700172800", Close: 3},
		{Timestamp: "1700000000", Close: 1},
		{Timestamp: "1700086400", Close: 2},
	}
	SortAscending(candles)
	assert.Equal(t, []float64{1, 2, 3}, Closes(candles))
}

func TestCandleUnixParsesTimestamp(t *testing.T) {
	c := Candle{Timestamp: "1700000000"}
	assert.Equal(t, int64(1700000000), c.Unix())
	assert.Equal(t, int64(0), Candle{Timestamp: "bogus"}.Unix())
}
