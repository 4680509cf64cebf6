package market

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2"
)

const klineBatchLimit = 1000

// BinanceConfig 描述现货行情源的连接参数。
type BinanceConfig struct {
	RESTBaseURL string
	HTTPTimeout time.Duration
}

func (c BinanceConfig) withDefaults() BinanceConfig {
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = 15 * time.Second
	}
	return c
}

// BinanceSource 基于 go-binance 现货 SDK 实现 Source。
type BinanceSource struct {
	client *binance.Client
}

func NewBinanceSource(cfg BinanceConfig) *BinanceSource {
	final := cfg.withDefaults()
	client := binance.NewClient("", "")
	if url := strings.TrimSpace(final.RESTBaseURL); url != "" {
		client.BaseURL = url
	}
	client.HTTPClient = &http.Client{Timeout: final.HTTPTimeout}
	return &BinanceSource{client: client}
}

func (s *BinanceSource) CurrentPrice(ctx context.Context, symbol string) (float64, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return 0, fmt.Errorf("symbol 不能为空")
	}
	prices, err := s.client.NewListPricesService().Symbol(symbol).Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("获取 %s 最新价失败: %w", symbol, err)
	}
	if len(prices) == 0 {
		return 0, fmt.Errorf("%s: %w", symbol, ErrNoData)
	}
	return parseFloat(prices[0].Price), nil
}

func (s *BinanceSource) HistoricalCandles(ctx context.Context, symbol, start, end, interval string) ([]Candle, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, fmt.Errorf("symbol 不能为空")
	}
	binInterval, ok := BinanceInterval(interval)
	if !ok {
		return nil, fmt.Errorf("不支持的周期: %q", interval)
	}
	startSec, err := strconv.ParseInt(strings.TrimSpace(start), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("start 时间戳无效: %w", err)
	}
	endSec, err := strconv.ParseInt(strings.TrimSpace(end), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("end 时间戳无效: %w", err)
	}

	var out []Candle
	cursor := startSec * 1000
	endMs := endSec * 1000
	for cursor < endMs {
		kls, err := s.client.NewKlinesService().
			Symbol(symbol).
			Interval(binInterval).
			StartTime(cursor).
			EndTime(endMs).
			Limit(klineBatchLimit).
			Do(ctx)
		if err != nil {
			return nil, fmt.Errorf("获取 %s K 线失败: %w", symbol, err)
		}
		if len(kls) == 0 {
			break
		}
		for _, kl := range kls {
			if kl == nil {
				continue
			}
			out = append(out, Candle{
				Timestamp: strconv.FormatInt(kl.OpenTime/1000, 10),
				Open:      parseFloat(kl.Open),
				Close:     parseFloat(kl.Close),
				High:      parseFloat(kl.High),
				Low:       parseFloat(kl.Low),
				Volume:    parseFloat(kl.Volume),
				Turnover:  parseFloat(kl.QuoteAssetVolume),
			})
		}
		last := kls[len(kls)-1].CloseTime
		if last <= cursor {
			break
		}
		cursor = last + 1
		if len(kls) < klineBatchLimit {
			break
		}
	}
	return out, nil
}

func parseFloat(v string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0
	}
	return f
}
