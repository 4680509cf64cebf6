package app

import (
	"context"
	"fmt"
	"time"

	"tradesnake/internal/backtest"
	"tradesnake/internal/bot"
	cfgpkg "tradesnake/internal/config"
	cfgloader "tradesnake/internal/config/loader"
	"tradesnake/internal/indicator"
	"tradesnake/internal/logger"
	"tradesnake/internal/market"
	"tradesnake/internal/notifier"
	"tradesnake/internal/store"
	"tradesnake/internal/store/sqlite"
	"tradesnake/internal/strategy"
	apihttp "tradesnake/internal/transport/http"
)

// AppBuilder 按配置装配各层依赖，覆盖点留给测试注入。
type AppBuilder struct {
	cfg *cfgpkg.Config

	storeOverride  store.Store
	sourceOverride market.Source
}

type AppBuilderOption func(*AppBuilder)

// WithStore 覆盖持久层，测试用。
func WithStore(st store.Store) AppBuilderOption {
	return func(b *AppBuilder) { b.storeOverride = st }
}

// WithSource 覆盖行情源，测试用。
func WithSource(src market.Source) AppBuilderOption {
	return func(b *AppBuilder) { b.sourceOverride = src }
}

func NewAppBuilder(cfg *cfgpkg.Config, opts ...AppBuilderOption) *AppBuilder {
	b := &AppBuilder{cfg: cfg}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

func (b *AppBuilder) Build(ctx context.Context) (*App, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if b.cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	cfg := b.cfg
	logger.SetLevel(cfg.App.LogLevel)

	st, err := b.buildStore(cfg)
	if err != nil {
		return nil, err
	}
	source, err := b.buildSource(cfg)
	if err != nil {
		return nil, err
	}
	indicators := indicator.NewService(source)

	strategies := strategy.NewRegistry()
	if err := strategy.RegisterBuiltins(strategies); err != nil {
		return nil, fmt.Errorf("注册内置策略失败: %w", err)
	}
	logger.Infof("✓ 已注册 %d 个内置策略", len(strategies.IDs()))

	var textNotifier bot.Notifier
	if cfg.Notify.Telegram.Enabled {
		textNotifier = notifier.NewTelegram(cfg.Notify.Telegram.BotToken, cfg.Notify.Telegram.ChatID)
		logger.Infof("✓ Telegram 通知已启用")
	}

	brokers, err := cfgloader.NewBrokerLoader(ctx, cfg.Brokers.File, st)
	if err != nil {
		return nil, fmt.Errorf("加载 broker 档案失败: %w", err)
	}
	logger.Infof("✓ 已加载 %d 个 broker 档案", len(brokers.Profiles()))

	bots, err := bot.NewRegistry(bot.RegistryConfig{
		Strategies: strategies,
		Store:      st,
		Source:     source,
		Indicators: indicators,
		Notifier:   textNotifier,
		BaseCtx:    ctx,
	})
	if err != nil {
		return nil, err
	}
	backtests := backtest.NewRunner(strategies, st, source)

	httpServer, err := apihttp.NewServer(apihttp.ServerConfig{
		Addr:       cfg.App.HTTPAddr,
		Bots:       bots,
		Backtests:  backtests,
		Indicators: indicators,
		ReportDir:  cfg.Backtest.ReportDir,
	})
	if err != nil {
		return nil, err
	}

	return &App{
		cfg:     cfg,
		store:   st,
		bots:    bots,
		brokers: brokers,
		http:    httpServer,
	}, nil
}

func (b *AppBuilder) buildStore(cfg *cfgpkg.Config) (store.Store, error) {
	if b.storeOverride != nil {
		return b.storeOverride, nil
	}
	st, err := sqlite.NewSqliteStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("打开数据库失败 (%s): %w", cfg.Database.Path, err)
	}
	return st, nil
}

func (b *AppBuilder) buildSource(cfg *cfgpkg.Config) (market.Source, error) {
	if b.sourceOverride != nil {
		return b.sourceOverride, nil
	}
	binance := market.NewBinanceSource(market.BinanceConfig{
		RESTBaseURL: cfg.Market.RESTBaseURL,
		HTTPTimeout: time.Duration(cfg.Market.TimeoutSeconds) * time.Second,
	})
	if cfg.Market.CachePath == "" {
		return binance, nil
	}
	cache, err := market.NewCandleCache(cfg.Market.CachePath)
	if err != nil {
		return nil, fmt.Errorf("打开行情缓存失败 (%s): %w", cfg.Market.CachePath, err)
	}
	return market.NewCachedSource(binance, cache), nil
}
