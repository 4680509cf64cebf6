package market

import (
	"context"
	"errors"
)

// ErrNoData 表示行情侧没有返回任何数据。
var ErrNoData = errors.New("market: no data")

// Source 是行情数据源的最小能力集：最新价 + 历史 K 线。
// start/end 为 unix 秒文本，历史结果不保证有序，由调用方排序。
type Source interface {
	CurrentPrice(ctx context.Context, symbol string) (float64, error)
	HistoricalCandles(ctx context.Context, symbol, start, end, interval string) ([]Candle, error)
}
