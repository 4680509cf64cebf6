package market

import (
	"sort"
	"strconv"
)

// Candle 表示一根 OHLCV K 线。Timestamp 是 unix 秒的十进制文本，
// 与持久层和历史接口的表示保持一致。
type Candle struct {
	Timestamp string  `json:"timestamp"`
	Open      float64 `json:"open"`
	Close     float64 `json:"close"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Volume    float64 `json:"volume"`
	Turnover  float64 `json:"turnover"`
}

// Unix 返回时间戳对应的 unix 秒；无法解析时返回 0。
func (c Candle) Unix() int64 {
	ts, err := strconv.ParseInt(c.Timestamp, 10, 64)
	if err != nil {
		return 0
	}
	return ts
}

// SortAscending 将 K 线按时间戳升序排序。历史接口不保证顺序，
// 回测与指标计算都要求先排序。
func SortAscending(candles []Candle) {
	sort.SliceStable(candles, func(i, j int) bool {
		return candles[i].Unix() < candles[j].Unix()
	})
}

// Closes 抽取收盘价序列。
func Closes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}
