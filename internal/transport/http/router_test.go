package apihttp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tidwall/gjson"

	"tradesnake/internal/backtest"
	"tradesnake/internal/bot"
	"tradesnake/internal/indicator"
	"tradesnake/internal/market"
	"tradesnake/internal/store"
	"tradesnake/internal/strategy"
)

type apiStore struct {
	store.Store
}

func (s *apiStore) UpsertBot(ctx context.Context, state store.BotState) error { return nil }

func (s *apiStore) SetRunning(ctx context.Context, botID int64, running bool) error { return nil }

func (s *apiStore) LoadBrokerProfile(ctx context.Context, brokerID int64) (store.BrokerProfile, error) {
	if brokerID != 1 {
		return store.BrokerProfile{}, store.ErrBrokerNotFound
	}
	return store.BrokerProfile{ID: 1, Name: "zero-cost"}, nil
}

func (s *apiStore) RecordTrade(ctx context.Context, trade store.Trade) error { return nil }

func (s *apiStore) ApplyBuy(ctx context.Context, botID int64, spend, qty float64) error { return nil }

func (s *apiStore) ApplySell(ctx context.Context, botID int64, proceeds float64) error { return nil }

func (s *apiStore) MarkPrice(ctx context.Context, botID int64, price float64) error { return nil }

type apiSource struct{}

func (s *apiSource) CurrentPrice(ctx context.Context, symbol string) (float64, error) {
	return 100, nil
}

func (s *apiSource) HistoricalCandles(ctx context.Context, symbol, start, end, interval string) ([]market.Candle, error) {
	closes := []float64{100, 110, 90}
	out := make([]market.Candle, len(closes))
	for i, c := range closes {
		out[i] = market.Candle{Timestamp: strconv.Itoa(1700000000 + i*86400), Close: c}
	}
	return out, nil
}

func testServer(t *testing.T) (*Server, *bot.Registry) {
	t.Helper()
	strategies := strategy.NewRegistry()
	assert.NoError(t, strategy.RegisterBuiltins(strategies))
	st := &apiStore{}
	src := &apiSource{}
	bots, err := bot.NewRegistry(bot.RegistryConfig{Strategies: strategies, Store: st, Source: src})
	assert.NoError(t, err)
	t.Cleanup(bots.StopAll)

	srv, err := NewServer(ServerConfig{
		Addr:       ":0",
		Bots:       bots,
		Backtests:  backtest.NewRunner(strategies, st, src),
		Indicators: indicator.NewService(src),
		ReportDir:  t.TempDir(),
	})
	assert.NoError(t, err)
	return srv, bots
}

func doJSON(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

const startBody = `{
	"owner_id": 1, "bot_id": 10, "strategy_id": 4, "broker_id": 1,
	"params": {"symbol": "BTCUSDT", "money": 1000, "symbol_count": 0, "interval": "d"}
}`

func TestHealthz(t *testing.T) {
	srv, _ := testServer(t)
	rec := doJSON(t, srv, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStartBotAndDuplicate(t *testing.T) {
	srv, bots := testServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/bots", startBody)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []int64{10}, bots.ListRunning())

	rec = doJSON(t, srv, http.MethodPost, "/api/bots", startBody)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestStartBotUnknownStrategy(t *testing.T) {
	srv, _ := testServer(t)

	body := strings.Replace(startBody, `"strategy_id": 4`, `"strategy_id": 999`, 1)
	rec := doJSON(t, srv, http.MethodPost, "/api/bots", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStartBotUnknownBroker(t *testing.T) {
	srv, _ := testServer(t)

	body := strings.Replace(startBody, `"broker_id": 1`, `"broker_id": 42`, 1)
	rec := doJSON(t, srv, http.MethodPost, "/api/bots", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStopBot(t *testing.T) {
	srv, _ := testServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/bots", startBody)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, srv, http.MethodPost, "/api/bots/10/stop", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, srv, http.MethodPost, "/api/bots/10/stop", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListBots(t *testing.T) {
	srv, _ := testServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/api/bots", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(0), gjson.Get(rec.Body.String(), "count").Int())
}

func TestBacktestEndpoint(t *testing.T) {
	srv, _ := testServer(t)

	body := `{
		"owner_id": 1, "strategy_id": 4, "broker_id": 1,
		"params": {"symbol": "BTCUSDT", "money": 1000, "symbol_count": 0, "interval": "d"}
	}`
	rec := doJSON(t, srv, http.MethodPost, "/api/backtest", body)
	assert.Equal(t, http.StatusOK, rec.Code)

	result := gjson.Get(rec.Body.String(), "result")
	assert.Equal(t, int64(3), result.Get("candles").Int())
	assert.Equal(t, int64(1), result.Get("buys").Int())
	assert.Equal(t, int64(1), result.Get("sells").Int())
}

func TestMarketSnapshotIncludesIndicators(t *testing.T) {
	srv, _ := testServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/api/market/snapshot?symbol=btcusdt", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Equal(t, "BTCUSDT", gjson.Get(body, "symbol").String())
	assert.True(t, gjson.Get(body, "state").Exists())
	// 3 根 K 线不够算指标：SMA 退回 0，RSI 退回中性值 50。
	assert.Equal(t, 0.0, gjson.Get(body, "sma").Float())
	assert.Equal(t, 50.0, gjson.Get(body, "rsi").Float())
	assert.Equal(t, int64(20), gjson.Get(body, "ma_length").Int())
	assert.Equal(t, int64(14), gjson.Get(body, "rsi_period").Int())
}

func TestMarketSnapshotRequiresSymbol(t *testing.T) {
	srv, _ := testServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/api/market/snapshot", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCoerceParams(t *testing.T) {
	params := coerceParams(map[string]any{
		"symbol": "BTCUSDT",
		"money":  1000.0,
		"ratio":  0.5,
		"flag":   true,
		"skip":   nil,
	})

	assert.Equal(t, "BTCUSDT", params["symbol"])
	assert.Equal(t, "1000", params["money"])
	assert.Equal(t, "0.5", params["ratio"])
	assert.Equal(t, "true", params["flag"])
	_, ok := params["skip"]
	assert.False(t, ok)
}
