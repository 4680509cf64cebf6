package bot

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"tradesnake/internal/broker"
	"tradesnake/internal/logger"
	"tradesnake/internal/market"
	"tradesnake/internal/strategy"
)

// 会话状态机：Idle → Running → Stopping → Stopped（终态）。
const (
	StateIdle int32 = iota
	StateRunning
	StateStopping
	StateStopped
)

// Notifier 用于成交后的推送（Telegram 等），可为空。
type Notifier interface {
	SendText(text string) error
}

// Session 拥有一个机器人的账户状态和实时轮询循环。
// 账户只被本会话的循环修改。
type Session struct {
	acct     *Account
	strat    strategy.Strategy
	sim      *broker.Simulator
	source   market.Source
	notifier Notifier

	state  atomic.Int32
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// newSession 在构造时就建好可取消的循环上下文，
// 保证 Stop 在任何时刻都有 cancel 可调，哪怕循环还没启动。
func newSession(ctx context.Context, acct *Account, strat strategy.Strategy, sim *broker.Simulator, source market.Source, notifier Notifier) *Session {
	loopCtx, cancel := context.WithCancel(ctx)
	return &Session{
		acct:     acct,
		strat:    strat,
		sim:      sim,
		source:   source,
		notifier: notifier,
		ctx:      loopCtx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

// Start 启动轮询循环（Idle→Running），立即返回，不等待首个 tick。
// 已被 Stop 抢先终结的会话不会再启动。
func (s *Session) Start() {
	if !s.state.CompareAndSwap(StateIdle, StateRunning) {
		return
	}
	go s.run(s.ctx)
}

// Stop 发出协作式取消信号，不等待进行中的 tick。
// 循环尚未启动时直接进入终态，之后的 Start 不再生效。
func (s *Session) Stop() {
	if s.state.CompareAndSwap(StateIdle, StateStopped) {
		s.cancel()
		close(s.done)
		return
	}
	if s.state.CompareAndSwap(StateRunning, StateStopping) {
		s.cancel()
	}
}

// Done 在循环退出后关闭，测试和关停流程用它观察收尾。
func (s *Session) Done() <-chan struct{} { return s.done }

// State 返回当前状态机状态。
func (s *Session) State() int32 { return s.state.Load() }

func (s *Session) run(ctx context.Context) {
	defer close(s.done)
	defer s.state.Store(StateStopped)

	wait, known := market.TickDuration(s.acct.Interval)
	if !known {
		logger.Warnf("bot %d 周期 %q 未识别，退化为 1s 快轮询", s.acct.ID, s.acct.Interval)
	}
	logger.Infof("bot %d 启动：%s@%s 策略=%d broker=%d",
		s.acct.ID, s.acct.Symbol, s.acct.Interval, s.acct.StrategyID, s.acct.BrokerID)

	for {
		// 取消检查点一：发起下一次决策之前。
		if ctx.Err() != nil {
			logger.Infof("bot %d 已停止", s.acct.ID)
			return
		}

		s.tick(ctx)

		// 取消检查点二：tick 间等待期间。
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			logger.Infof("bot %d 已停止", s.acct.ID)
			return
		case <-timer.C:
		}
	}
}

// tick 执行一轮：取价 → 决策 → 执行。行情失败按 Hold 降级，
// 单次失败绝不让实盘循环崩溃。
func (s *Session) tick(ctx context.Context) {
	price, err := s.source.CurrentPrice(ctx, s.acct.Symbol)
	if err != nil {
		logger.Warnf("bot %d 行情获取失败，本轮按 Hold 处理: %v", s.acct.ID, err)
		return
	}
	dec := s.strat.Decide(price)
	result := ExecuteTick(ctx, s.acct, s.sim, dec, price)
	s.notify(result, price)
}

func (s *Session) notify(result TickResult, price float64) {
	if s.notifier == nil {
		return
	}
	var text string
	switch {
	case result.Buy != nil:
		text = fmt.Sprintf("🟢 bot %d 买入 %s\n数量 %.6f @ %.4f（成交额 %.2f）",
			s.acct.ID, s.acct.Symbol, result.Buy.Quantity, price, result.Buy.BrokerPrice)
	case result.Sell != nil:
		text = fmt.Sprintf("🔴 bot %d 卖出 %s\n数量 %.6f @ %.4f（入账 %.2f）",
			s.acct.ID, s.acct.Symbol, result.Sell.Quantity, price, result.Sell.Price)
	default:
		return
	}
	go func() {
		if err := s.notifier.SendText(text); err != nil {
			logger.Warnf("bot %d 成交通知失败: %v", s.acct.ID, err)
		}
	}()
}
