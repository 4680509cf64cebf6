package backtest

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"tradesnake/internal/bot"
	"tradesnake/internal/broker"
	"tradesnake/internal/logger"
	"tradesnake/internal/market"
	"tradesnake/internal/store"
	"tradesnake/internal/strategy"
)

// 中文说明：
// 回测把一段历史 K 线按时间顺序喂给策略，账户和成交价模型与实盘
// 完全复用同一套代码，区别只有两点：账户是临时的、不落库；
// 策略冷启动，不做预热。同一输入跑多少次结果都一致。

// DataUnavailableError 表示区间内取不到历史行情，回测整体中止，
// 绝不拿部分数据出一份看似完整的结果。
type DataUnavailableError struct {
	Symbol   string
	Interval string
	Err      error
}

func (e *DataUnavailableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("backtest: %s@%s 历史行情不可用: %v", e.Symbol, e.Interval, e.Err)
	}
	return fmt.Sprintf("backtest: %s@%s 区间内没有历史行情", e.Symbol, e.Interval)
}

func (e *DataUnavailableError) Unwrap() error { return e.Err }

// HistoricalResult 是一根 K 线上的回放结果。Buy/Sell 互斥，
// 都为空表示该根 K 线没有成交。
type HistoricalResult struct {
	market.Candle
	Buy  *bot.Fill `json:"buy,omitempty"`
	Sell *bot.Fill `json:"sell,omitempty"`
}

// Request 描述一次回测任务。区间和账户初始状态都从参数包里取，
// 与启动实盘机器人用同一套参数名。
type Request struct {
	OwnerID    int64
	StrategyID int64
	BrokerID   int64
	Params     strategy.Params
}

// Result 汇总一次回测：逐 K 线的成交序列加收益统计。
type Result struct {
	RunID        string             `json:"run_id"`
	Symbol       string             `json:"symbol"`
	Interval     string             `json:"interval"`
	StrategyID   int64              `json:"strategy_id"`
	InitialCash  float64            `json:"initial_cash"`
	FinalCash    float64            `json:"final_cash"`
	FinalQty     float64            `json:"final_quantity"`
	FinalEquity  float64            `json:"final_equity"`
	Profit       float64            `json:"profit"`
	ReturnPct    float64            `json:"return_pct"`
	Buys         int                `json:"buys"`
	Sells        int                `json:"sells"`
	Candles      int                `json:"candles"`
	Results      []HistoricalResult `json:"results"`
	ElapsedMs    int64              `json:"elapsed_ms"`
	StartTS      int64              `json:"start_ts"`
	EndTS        int64              `json:"end_ts"`
	BrokerID     int64              `json:"broker_id"`
	StrategyName string             `json:"strategy_name"`
}

// Runner 执行回测。store 只用来读 broker 费率档案，回测过程本身
// 不写任何表。
type Runner struct {
	strategies *strategy.Registry
	store      store.Store
	source     market.Source
	nowFn      func() time.Time
}

func NewRunner(strategies *strategy.Registry, st store.Store, source market.Source) *Runner {
	return &Runner{strategies: strategies, store: st, source: source, nowFn: time.Now}
}

// Run 重放区间内的全部 K 线。start_date 缺省从头开始，
// end_date 缺省到当前时刻。
func (r *Runner) Run(ctx context.Context, req Request) (*Result, error) {
	started := r.nowFn()

	acct, err := bot.AccountFromParams(req.OwnerID, 0, req.StrategyID, req.BrokerID, req.Params)
	if err != nil {
		return nil, err
	}
	profile, err := r.store.LoadBrokerProfile(ctx, req.BrokerID)
	if err != nil {
		return nil, fmt.Errorf("加载 broker %d 失败: %w", req.BrokerID, err)
	}

	// 回测里的策略从零开始观察价格，不做历史预热，保证可复现。
	deps := strategy.Deps{Symbol: acct.Symbol, Interval: acct.Interval}
	strat, err := r.strategies.Create(ctx, req.StrategyID, deps, req.Params)
	if err != nil {
		return nil, err
	}

	startDate := req.Params.StrOr("start_date", "0")
	endDate := req.Params.StrOr("end_date", strconv.FormatInt(r.nowFn().Unix(), 10))
	candles, err := r.source.HistoricalCandles(ctx, acct.Symbol, startDate, endDate, acct.Interval)
	if err != nil {
		return nil, &DataUnavailableError{Symbol: acct.Symbol, Interval: acct.Interval, Err: err}
	}
	if len(candles) == 0 {
		return nil, &DataUnavailableError{Symbol: acct.Symbol, Interval: acct.Interval}
	}
	market.SortAscending(candles)

	initialCash := acct.Cash
	sim := broker.NewSimulator(profile, nil)

	res := &Result{
		RunID:        uuid.NewString(),
		Symbol:       acct.Symbol,
		Interval:     acct.Interval,
		StrategyID:   req.StrategyID,
		BrokerID:     req.BrokerID,
		StrategyName: r.strategies.Name(req.StrategyID),
		InitialCash:  initialCash,
		Candles:      len(candles),
		Results:      make([]HistoricalResult, 0, len(candles)),
		StartTS:      candles[0].Unix(),
		EndTS:        candles[len(candles)-1].Unix(),
	}

	for _, c := range candles {
		dec := strat.Decide(c.Close)
		tick := bot.ExecuteTick(ctx, acct, sim, dec, c.Close)
		if tick.Buy != nil {
			res.Buys++
		}
		if tick.Sell != nil {
			res.Sells++
		}
		res.Results = append(res.Results, HistoricalResult{Candle: c, Buy: tick.Buy, Sell: tick.Sell})
	}

	last := candles[len(candles)-1].Close
	res.FinalCash = acct.Cash
	res.FinalQty = acct.Quantity
	res.FinalEquity = acct.Cash + acct.Quantity*last
	res.Profit = res.FinalEquity - initialCash
	if initialCash > 0 {
		res.ReturnPct = res.Profit / initialCash * 100
	}
	res.ElapsedMs = time.Since(started).Milliseconds()

	logger.Infof("[backtest] run %s 完成：%s@%s K线=%d 买=%d 卖=%d 收益=%.2f (%.2f%%) 耗时=%dms",
		res.RunID, res.Symbol, res.Interval, res.Candles, res.Buys, res.Sells, res.Profit, res.ReturnPct, res.ElapsedMs)
	return res, nil
}
