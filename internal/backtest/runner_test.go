package backtest

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"

	"tradesnake/internal/market"
	"tradesnake/internal/store"
	"tradesnake/internal/strategy"
)

type stubSource struct {
	candles []market.Candle
	err     error
}

func (s *stubSource) CurrentPrice(ctx context.Context, symbol string) (float64, error) {
	return 0, market.ErrNoData
}

func (s *stubSource) HistoricalCandles(ctx context.Context, symbol, start, end, interval string) ([]market.Candle, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.candles, nil
}

type stubStore struct {
	store.Store
	profile store.BrokerProfile
}

func (s *stubStore) LoadBrokerProfile(ctx context.Context, brokerID int64) (store.BrokerProfile, error) {
	if brokerID != s.profile.ID {
		return store.BrokerProfile{}, store.ErrBrokerNotFound
	}
	return s.profile, nil
}

func candlesFromCloses(closes ...float64) []market.Candle {
	out := make([]market.Candle, len(closes))
	for i, c := range closes {
		out[i] = market.Candle{
			Timestamp: strconv.FormatInt(int64(1700000000+i*86400), 10),
			Open:      c, Close: c, High: c, Low: c,
		}
	}
	return out
}

func testRunner(t *testing.T, src market.Source) *Runner {
	t.Helper()
	strategies := strategy.NewRegistry()
	assert.NoError(t, strategy.RegisterBuiltins(strategies))
	return NewRunner(strategies, &stubStore{profile: store.BrokerProfile{ID: 1, Name: "zero-cost"}}, src)
}

func momentumRequest() Request {
	return Request{
		OwnerID:    1,
		StrategyID: strategy.StrategyMomentum,
		BrokerID:   1,
		Params: strategy.Params{
			"symbol":       "BTCUSDT",
			"money":        "1000",
			"symbol_count": "0",
			"interval":     "d",
		},
	}
}

func TestRunReplaysMomentumScenario(t *testing.T) {
	src := &stubSource{candles: candlesFromCloses(100, 110, 90)}
	runner := testRunner(t, src)

	res, err := runner.Run(context.Background(), momentumRequest())
	assert.NoError(t, err)
	assert.Len(t, res.Results, 3)

	// 第一根：策略冷启动，没有历史参照，不动。
	assert.Nil(t, res.Results[0].Buy)
	assert.Nil(t, res.Results[0].Sell)

	// 第二根：价格上涨，全仓买入 1000/110。
	assert.NotNil(t, res.Results[1].Buy)
	assert.InDelta(t, 1000.0/110.0, res.Results[1].Buy.Quantity, 1e-9)

	// 第三根：连跌破前两个价位，全部卖出，入账 qty*90。
	assert.NotNil(t, res.Results[2].Sell)
	assert.InDelta(t, 1000.0/110.0*90.0, res.Results[2].Sell.Price, 1e-9)

	assert.Equal(t, 1, res.Buys)
	assert.Equal(t, 1, res.Sells)
	assert.InDelta(t, 1000.0/110.0*90.0, res.FinalCash, 1e-9)
	assert.Equal(t, 0.0, res.FinalQty)
	assert.InDelta(t, res.FinalEquity-1000.0, res.Profit, 1e-9)
}

func TestRunIsDeterministic(t *testing.T) {
	src := &stubSource{candles: candlesFromCloses(100, 110, 90, 95, 120, 80, 130)}
	runner := testRunner(t, src)

	first, err := runner.Run(context.Background(), momentumRequest())
	assert.NoError(t, err)
	second, err := runner.Run(context.Background(), momentumRequest())
	assert.NoError(t, err)

	assert.Equal(t, first.Results, second.Results)
	assert.Equal(t, first.FinalEquity, second.FinalEquity)
	assert.NotEqual(t, first.RunID, second.RunID)
}

func TestRunSortsCandlesBeforeReplay(t *testing.T) {
	shuffled := candlesFromCloses(100, 110, 90)
	shuffled[0], shuffled[2] = shuffled[2], shuffled[0]
	src := &stubSource{candles: shuffled}
	runner := testRunner(t, src)

	res, err := runner.Run(context.Background(), momentumRequest())
	assert.NoError(t, err)
	assert.InDelta(t, 100.0, res.Results[0].Close, 1e-9)
	assert.NotNil(t, res.Results[1].Buy)
	assert.NotNil(t, res.Results[2].Sell)
}

func TestRunFailsWhenNoHistory(t *testing.T) {
	runner := testRunner(t, &stubSource{})

	_, err := runner.Run(context.Background(), momentumRequest())
	var unavailable *DataUnavailableError
	assert.ErrorAs(t, err, &unavailable)
	assert.Equal(t, "BTCUSDT", unavailable.Symbol)
}

func TestRunWrapsSourceFailure(t *testing.T) {
	cause := errors.New("rest timeout")
	runner := testRunner(t, &stubSource{err: cause})

	_, err := runner.Run(context.Background(), momentumRequest())
	var unavailable *DataUnavailableError
	assert.ErrorAs(t, err, &unavailable)
	assert.ErrorIs(t, err, cause)
}

func TestRunUnknownStrategyFails(t *testing.T) {
	runner := testRunner(t, &stubSource{candles: candlesFromCloses(100)})

	req := momentumRequest()
	req.StrategyID = 999
	_, err := runner.Run(context.Background(), req)
	assert.ErrorIs(t, err, strategy.ErrUnknownStrategy)
}
