package bot

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"tradesnake/internal/market"
	"tradesnake/internal/store"
	"tradesnake/internal/strategy"
)

type fakeSource struct {
	mu    sync.Mutex
	price float64
	calls int
}

func (f *fakeSource) CurrentPrice(ctx context.Context, symbol string) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.price, nil
}

func (f *fakeSource) HistoricalCandles(ctx context.Context, symbol, start, end, interval string) ([]market.Candle, error) {
	return nil, nil
}

type fakeStore struct {
	mu       sync.Mutex
	running  map[int64]bool
	states   []store.BotState
	profiles map[int64]store.BrokerProfile
	trades   []store.Trade
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		running:  make(map[int64]bool),
		profiles: map[int64]store.BrokerProfile{1: {ID: 1, Name: "zero-cost"}},
	}
}

func (f *fakeStore) LoadRunningBots(ctx context.Context) ([]store.BotState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]store.BotState(nil), f.states...), nil
}

func (f *fakeStore) UpsertBot(ctx context.Context, state store.BotState) error { return nil }

func (f *fakeStore) SetRunning(ctx context.Context, botID int64, running bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.running[botID] = running
	return nil
}

func (f *fakeStore) LoadBrokerProfile(ctx context.Context, brokerID int64) (store.BrokerProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	profile, ok := f.profiles[brokerID]
	if !ok {
		return store.BrokerProfile{}, store.ErrBrokerNotFound
	}
	return profile, nil
}

func (f *fakeStore) SaveBrokerProfile(ctx context.Context, profile store.BrokerProfile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profiles[profile.ID] = profile
	return nil
}

func (f *fakeStore) RecordTrade(ctx context.Context, trade store.Trade) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trades = append(f.trades, trade)
	return nil
}

func (f *fakeStore) ApplyBuy(ctx context.Context, botID int64, spend, qty float64) error { return nil }
func (f *fakeStore) ApplySell(ctx context.Context, botID int64, proceeds float64) error  { return nil }
func (f *fakeStore) MarkPrice(ctx context.Context, botID int64, price float64) error     { return nil }
func (f *fakeStore) Close() error                                                        { return nil }

func testRegistry(t *testing.T) (*Registry, *fakeStore, *fakeSource) {
	t.Helper()
	strategies := strategy.NewRegistry()
	assert.NoError(t, strategy.RegisterBuiltins(strategies))
	st := newFakeStore()
	src := &fakeSource{price: 100}
	reg, err := NewRegistry(RegistryConfig{
		Strategies: strategies,
		Store:      st,
		Source:     src,
	})
	assert.NoError(t, err)
	return reg, st, src
}

func baseParams() strategy.Params {
	return strategy.Params{
		"symbol":       "BTCUSDT",
		"money":        "1000",
		"symbol_count": "0",
		"interval":     "d",
		"ma_length":    "5",
	}
}

func TestStartRejectsDuplicate(t *testing.T) {
	reg, _, _ := testRegistry(t)
	defer reg.StopAll()

	err := reg.Start(context.Background(), 1, 10, strategy.StrategyMA, 1, baseParams())
	assert.NoError(t, err)

	err = reg.Start(context.Background(), 1, 10, strategy.StrategyMA, 1, baseParams())
	assert.ErrorIs(t, err, ErrAlreadyRunning)
	assert.Equal(t, []int64{10}, reg.ListRunning())
}

func TestStartUnknownStrategyLeavesNoState(t *testing.T) {
	reg, st, _ := testRegistry(t)

	err := reg.Start(context.Background(), 1, 10, 999, 1, baseParams())
	assert.ErrorIs(t, err, strategy.ErrUnknownStrategy)
	assert.Empty(t, reg.ListRunning())
	assert.False(t, st.running[10])
}

func TestStartUnknownBrokerFails(t *testing.T) {
	reg, _, _ := testRegistry(t)

	err := reg.Start(context.Background(), 1, 10, strategy.StrategyMA, 42, baseParams())
	assert.ErrorIs(t, err, store.ErrBrokerNotFound)
	assert.Empty(t, reg.ListRunning())
}

func TestStartMissingParamsFails(t *testing.T) {
	reg, _, _ := testRegistry(t)

	params := strategy.Params{"money": "1000", "symbol_count": "0"}
	err := reg.Start(context.Background(), 1, 10, strategy.StrategyMA, 1, params)
	var invalid *strategy.InvalidParameterError
	assert.ErrorAs(t, err, &invalid)
	assert.Empty(t, reg.ListRunning())
}

func TestStopIsIdempotent(t *testing.T) {
	reg, st, _ := testRegistry(t)

	err := reg.Start(context.Background(), 1, 10, strategy.StrategyMA, 1, baseParams())
	assert.NoError(t, err)

	assert.True(t, reg.Stop(10))
	assert.False(t, reg.Stop(10))
	assert.Empty(t, reg.ListRunning())

	st.mu.Lock()
	defer st.mu.Unlock()
	assert.False(t, st.running[10])
}

func TestStopUnknownBotReturnsFalse(t *testing.T) {
	reg, _, _ := testRegistry(t)
	assert.False(t, reg.Stop(404))
}

// blockingStore 让 UpsertBot 停在落库途中，制造 Start 与 Stop 交错的窗口。
type blockingStore struct {
	*fakeStore
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (b *blockingStore) UpsertBot(ctx context.Context, state store.BotState) error {
	b.once.Do(func() { close(b.entered) })
	<-b.release
	return b.fakeStore.UpsertBot(ctx, state)
}

func TestStopDuringStartPreventsLoop(t *testing.T) {
	strategies := strategy.NewRegistry()
	assert.NoError(t, strategy.RegisterBuiltins(strategies))
	st := &blockingStore{
		fakeStore: newFakeStore(),
		entered:   make(chan struct{}),
		release:   make(chan struct{}),
	}
	src := &fakeSource{price: 100}
	reg, err := NewRegistry(RegistryConfig{Strategies: strategies, Store: st, Source: src})
	assert.NoError(t, err)
	defer reg.StopAll()

	started := make(chan error, 1)
	go func() {
		started <- reg.Start(context.Background(), 1, 10, strategy.StrategyMA, 1, baseParams())
	}()
	<-st.entered

	// 此刻会话已注册但循环未启动：停掉它必须让循环永远不跑。
	assert.True(t, reg.Stop(10))
	assert.Empty(t, reg.ListRunning())

	close(st.release)
	assert.NoError(t, <-started)

	time.Sleep(100 * time.Millisecond)
	src.mu.Lock()
	calls := src.calls
	src.mu.Unlock()
	assert.Equal(t, 0, calls)

	// 落库迟到的运行标记必须被纠正，否则重启会复活这个机器人。
	st.mu.Lock()
	defer st.mu.Unlock()
	assert.False(t, st.running[10])
}

func TestLoopExitsAfterStop(t *testing.T) {
	reg, _, src := testRegistry(t)

	err := reg.Start(context.Background(), 1, 10, strategy.StrategyMA, 1, baseParams())
	assert.NoError(t, err)

	// 等首个 tick 执行，确认循环真的跑起来了。
	assert.Eventually(t, func() bool {
		src.mu.Lock()
		defer src.mu.Unlock()
		return src.calls > 0
	}, 2*time.Second, 10*time.Millisecond)

	reg.StopAll()
	assert.Empty(t, reg.ListRunning())
}

func TestResumeAllStartsPersistedBots(t *testing.T) {
	reg, st, _ := testRegistry(t)
	defer reg.StopAll()

	st.states = []store.BotState{
		{
			BotID: 21, OwnerID: 1, StrategyID: strategy.StrategyMA, BrokerID: 1,
			Symbol: "ETHUSDT", Interval: "d", Cash: 500, Quantity: 0,
			Params: map[string]string{"ma_length": "5", "money": "999", "symbol": "IGNORED"},
		},
		{
			// broker 不存在：恢复失败但不影响其他机器人。
			BotID: 22, OwnerID: 1, StrategyID: strategy.StrategyMA, BrokerID: 77,
			Symbol: "BTCUSDT", Interval: "d", Cash: 100,
			Params: map[string]string{"ma_length": "5"},
		},
	}

	err := reg.ResumeAll(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, []int64{21}, reg.ListRunning())
}

func TestMergeStateParamsColumnsWin(t *testing.T) {
	params := mergeStateParams(store.BotState{
		Symbol: "BTCUSDT", Interval: "60", Cash: 1500, Quantity: 2.5,
		Params: map[string]string{"symbol": "OLD", "money": "1", "ma_length": "9"},
	})

	assert.Equal(t, "BTCUSDT", params["symbol"])
	assert.Equal(t, "1500", params["money"])
	assert.Equal(t, "2.5", params["symbol_count"])
	assert.Equal(t, "60", params["interval"])
	assert.Equal(t, "9", params["ma_length"])
}
