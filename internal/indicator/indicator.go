package indicator

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/markcheno/go-talib"

	"tradesnake/internal/logger"
	"tradesnake/internal/market"
)

// 历史回推时额外多取的周期数，保证平滑类指标有足够的收敛余量。
const warmupPadding = 500

// Service 基于行情源计算策略消费的信号：均线、RSI 与市场快照。
type Service struct {
	source market.Source
	nowFn  func() time.Time
}

func NewService(source market.Source) *Service {
	return &Service{source: source, nowFn: time.Now}
}

// Closes 返回 endDate（unix 秒文本）往前 periods 根 K 线的收盘价，
// 从旧到新。实际回推 periods+500 根再截尾。
func (s *Service) Closes(ctx context.Context, symbol, interval string, periods int, endDate string) ([]float64, error) {
	secs, ok := market.IntervalSeconds(interval)
	if !ok {
		return nil, fmt.Errorf("不支持的周期: %q", interval)
	}
	end, err := strconv.ParseInt(endDate, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("end 时间戳无效: %w", err)
	}
	start := end - int64(periods+warmupPadding)*secs
	if start < 0 {
		start = 0
	}
	candles, err := s.source.HistoricalCandles(ctx, symbol,
		strconv.FormatInt(start, 10), endDate, interval)
	if err != nil {
		return nil, err
	}
	market.SortAscending(candles)
	closes := market.Closes(candles)
	if len(closes) > periods {
		closes = closes[len(closes)-periods:]
	}
	return closes, nil
}

// RecentCloses 以当前时间为终点取收盘价，策略预热用。
func (s *Service) RecentCloses(ctx context.Context, symbol, interval string, periods int) ([]float64, error) {
	end := strconv.FormatInt(s.nowFn().Unix(), 10)
	return s.Closes(ctx, symbol, interval, periods, end)
}

// SMA 返回 length 周期简单均线；数据不足时返回 0（中性值，不报错）。
func (s *Service) SMA(ctx context.Context, symbol, interval string, length int, endDate string) (float64, error) {
	closes, err := s.Closes(ctx, symbol, interval, length, endDate)
	if err != nil {
		return 0, err
	}
	if len(closes) < length {
		logger.Debugf("SMA 数据不足 %s@%s: %d/%d", symbol, interval, len(closes), length)
		return 0, nil
	}
	series := talib.Sma(closes, length)
	return series[len(series)-1], nil
}

// RSI 返回 Wilder 平滑的相对强弱指数；数据不足时返回中性值 50。
func (s *Service) RSI(ctx context.Context, symbol, interval string, period int, endDate string) (float64, error) {
	closes, err := s.Closes(ctx, symbol, interval, period*4, endDate)
	if err != nil {
		return 0, err
	}
	if len(closes) <= period {
		logger.Debugf("RSI 数据不足 %s@%s: %d/%d", symbol, interval, len(closes), period+1)
		return 50, nil
	}
	series := talib.Rsi(closes, period)
	return series[len(series)-1], nil
}
