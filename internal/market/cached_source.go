package market

import (
	"context"
	"strconv"
	"strings"

	"tradesnake/internal/logger"
)

// CachedSource 在行情源之上加一层本地缓存：历史拉取成功后写穿缓存，
// 拉取失败时退回缓存区间。最新价不缓存。
type CachedSource struct {
	source Source
	cache  *CandleCache
}

func NewCachedSource(source Source, cache *CandleCache) *CachedSource {
	return &CachedSource{source: source, cache: cache}
}

func (s *CachedSource) CurrentPrice(ctx context.Context, symbol string) (float64, error) {
	return s.source.CurrentPrice(ctx, symbol)
}

func (s *CachedSource) HistoricalCandles(ctx context.Context, symbol, start, end, interval string) ([]Candle, error) {
	candles, err := s.source.HistoricalCandles(ctx, symbol, start, end, interval)
	if err == nil {
		if s.cache != nil {
			if _, cacheErr := s.cache.InsertCandles(ctx, symbol, interval, candles); cacheErr != nil {
				logger.Debugf("K 线缓存写入失败 %s@%s: %v", symbol, interval, cacheErr)
			}
		}
		return candles, nil
	}
	if s.cache == nil {
		return nil, err
	}
	startTs, perr := strconv.ParseInt(strings.TrimSpace(start), 10, 64)
	if perr != nil {
		return nil, err
	}
	endTs, perr := strconv.ParseInt(strings.TrimSpace(end), 10, 64)
	if perr != nil {
		return nil, err
	}
	cached, cacheErr := s.cache.RangeCandles(ctx, symbol, interval, startTs, endTs)
	if cacheErr != nil || len(cached) == 0 {
		return nil, err
	}
	logger.Warnf("行情源拉取失败，使用缓存降级 %s@%s（%d 条）: %v", symbol, interval, len(cached), err)
	return cached, nil
}

var _ Source = (*CachedSource)(nil)
