package bot

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"tradesnake/internal/broker"
	"tradesnake/internal/indicator"
	"tradesnake/internal/logger"
	"tradesnake/internal/market"
	"tradesnake/internal/store"
	"tradesnake/internal/strategy"
)

// ErrAlreadyRunning 表示 botID 已有在跑的会话。重复 Start 一律拒绝，
// 静默替换会泄漏旧会话的 goroutine。
var ErrAlreadyRunning = errors.New("bot: already running")

// RegistryConfig 描述注册表的依赖。
type RegistryConfig struct {
	Strategies *strategy.Registry
	Store      store.Store
	Source     market.Source
	Indicators *indicator.Service
	Notifier   Notifier
	BaseCtx    context.Context
}

// Registry 是机器人会话的唯一属主：botID → *Session 的并发安全映射。
// 调用方只拿到 botID，从不拿到会话引用。
type Registry struct {
	strategies *strategy.Registry
	store      store.Store
	source     market.Source
	indicators *indicator.Service
	notifier   Notifier
	baseCtx    context.Context

	mu       sync.Mutex
	sessions map[int64]*Session
}

func NewRegistry(cfg RegistryConfig) (*Registry, error) {
	if cfg.Strategies == nil {
		return nil, fmt.Errorf("strategy registry 不能为空")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("store 不能为空")
	}
	if cfg.Source == nil {
		return nil, fmt.Errorf("market source 不能为空")
	}
	baseCtx := cfg.BaseCtx
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	return &Registry{
		strategies: cfg.Strategies,
		store:      cfg.Store,
		source:     cfg.Source,
		indicators: cfg.Indicators,
		notifier:   cfg.Notifier,
		baseCtx:    baseCtx,
		sessions:   make(map[int64]*Session),
	}, nil
}

// Start 构建并启动一个机器人会话。校验失败不会留下任何注册表状态。
func (r *Registry) Start(ctx context.Context, ownerID, botID, strategyID, brokerID int64, params strategy.Params) error {
	r.mu.Lock()
	_, exists := r.sessions[botID]
	r.mu.Unlock()
	if exists {
		return fmt.Errorf("bot %d: %w", botID, ErrAlreadyRunning)
	}

	if !r.strategies.Known(strategyID) {
		return fmt.Errorf("%w: %d", strategy.ErrUnknownStrategy, strategyID)
	}
	acct, err := AccountFromParams(ownerID, botID, strategyID, brokerID, params)
	if err != nil {
		return err
	}
	profile, err := r.store.LoadBrokerProfile(ctx, brokerID)
	if err != nil {
		return fmt.Errorf("加载 broker %d 失败: %w", brokerID, err)
	}
	deps := strategy.Deps{
		Symbol:   acct.Symbol,
		Interval: acct.Interval,
		Warmup:   r.warmupFunc(),
	}
	strat, err := r.strategies.Create(ctx, strategyID, deps, params)
	if err != nil {
		return err
	}

	sim := broker.NewSimulator(profile, r.store)
	sess := newSession(r.baseCtx, acct, strat, sim, r.source, r.notifier)

	r.mu.Lock()
	if _, exists := r.sessions[botID]; exists {
		r.mu.Unlock()
		return fmt.Errorf("bot %d: %w", botID, ErrAlreadyRunning)
	}
	r.sessions[botID] = sess
	r.mu.Unlock()

	r.persistStart(ctx, acct, params)
	sess.Start()

	// Stop 可能在落库期间抢先注销了会话；此时循环已保证不会启动，
	// 但 persistStart 会把运行标记重新写成 true，这里纠正回去。
	r.mu.Lock()
	_, alive := r.sessions[botID]
	r.mu.Unlock()
	if !alive {
		if err := r.store.SetRunning(ctx, botID, false); err != nil {
			logger.Warnf("bot %d 运行标记清除失败: %v", botID, err)
		}
	}
	return nil
}

// persistStart 把账户和运行标记写回存储。失败只记日志：
// 注册表状态以内存为准，存储是 at-least-once 的记账。
func (r *Registry) persistStart(ctx context.Context, acct *Account, params strategy.Params) {
	state := store.BotState{
		BotID:      acct.ID,
		OwnerID:    acct.OwnerID,
		StrategyID: acct.StrategyID,
		BrokerID:   acct.BrokerID,
		Symbol:     acct.Symbol,
		Interval:   acct.Interval,
		Cash:       acct.Cash,
		Quantity:   acct.Quantity,
		Params:     params,
	}
	if err := r.store.UpsertBot(ctx, state); err != nil {
		logger.Warnf("bot %d 账户落库失败: %v", acct.ID, err)
	}
	if err := r.store.SetRunning(ctx, acct.ID, true); err != nil {
		logger.Warnf("bot %d 运行标记写入失败: %v", acct.ID, err)
	}
}

// Stop 幂等地停止一个机器人：不存在返回 false。取消是协作式的，
// 进行中的 tick 允许跑完，这里不等待。
func (r *Registry) Stop(botID int64) bool {
	r.mu.Lock()
	sess, ok := r.sessions[botID]
	if ok {
		delete(r.sessions, botID)
	}
	r.mu.Unlock()
	if !ok {
		return false
	}
	sess.Stop()
	if err := r.store.SetRunning(context.Background(), botID, false); err != nil {
		logger.Warnf("bot %d 运行标记清除失败: %v", botID, err)
	}
	logger.Infof("bot %d 停止信号已发出", botID)
	return true
}

// ListRunning 返回当前在跑的 botID（升序）。
func (r *Registry) ListRunning() []int64 {
	r.mu.Lock()
	ids := make([]int64, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.Unlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// StopAll 在进程关停时取消所有会话并等待收尾。
func (r *Registry) StopAll() {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for id, sess := range r.sessions {
		sessions = append(sessions, sess)
		delete(r.sessions, id)
	}
	r.mu.Unlock()
	for _, sess := range sessions {
		sess.Stop()
	}
	for _, sess := range sessions {
		<-sess.Done()
	}
}

// ResumeAll 重启进程时恢复存储里标记为运行中的机器人。
// 单个机器人恢复失败不影响其他机器人。
func (r *Registry) ResumeAll(ctx context.Context) error {
	states, err := r.store.LoadRunningBots(ctx)
	if err != nil {
		return fmt.Errorf("加载运行中机器人失败: %w", err)
	}
	for _, state := range states {
		params := mergeStateParams(state)
		if err := r.Start(ctx, state.OwnerID, state.BotID, state.StrategyID, state.BrokerID, params); err != nil {
			logger.Errorf("bot %d 恢复失败: %v", state.BotID, err)
			continue
		}
		logger.Infof("bot %d 已恢复", state.BotID)
	}
	return nil
}

// mergeStateParams 把账户列的值并进参数包，列值优先于历史参数。
func mergeStateParams(state store.BotState) strategy.Params {
	params := make(strategy.Params, len(state.Params)+4)
	for k, v := range state.Params {
		params[k] = v
	}
	params["symbol"] = state.Symbol
	params["money"] = fmt.Sprintf("%g", state.Cash)
	params["symbol_count"] = fmt.Sprintf("%g", state.Quantity)
	if state.Interval != "" {
		params["interval"] = state.Interval
	}
	return params
}

func (r *Registry) warmupFunc() strategy.WarmupFunc {
	if r.indicators == nil {
		return nil
	}
	return func(ctx context.Context, symbol, interval string, periods int) ([]float64, error) {
		return r.indicators.RecentCloses(ctx, symbol, interval, periods)
	}
}
