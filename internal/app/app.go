package app

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"tradesnake/internal/bot"
	cfgpkg "tradesnake/internal/config"
	cfgloader "tradesnake/internal/config/loader"
	"tradesnake/internal/logger"
	"tradesnake/internal/store"
	apihttp "tradesnake/internal/transport/http"
)

// App 负责应用级编排：加载配置→初始化依赖→恢复机器人→启动 HTTP 服务。
type App struct {
	cfg     *cfgpkg.Config
	store   store.Store
	bots    *bot.Registry
	brokers *cfgloader.BrokerLoader
	http    *apihttp.Server
}

// NewApp 根据配置构建应用对象（不启动）。
func NewApp(ctx context.Context, cfg *cfgpkg.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	return NewAppBuilder(cfg).Build(ctx)
}

// Bots 暴露机器人注册表，测试与回放工具用。
func (a *App) Bots() *bot.Registry {
	if a == nil {
		return nil
	}
	return a.bots
}

// Run 恢复存量机器人并启动 HTTP 服务与档案热加载，直到 ctx 取消。
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}

	if err := a.bots.ResumeAll(ctx); err != nil {
		logger.Errorf("存量机器人恢复失败: %v", err)
	} else if running := a.bots.ListRunning(); len(running) > 0 {
		logger.Infof("✓ 已恢复 %d 个机器人: %v", len(running), running)
	}

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		if err := a.http.Start(ctx); err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		if err := a.brokers.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("broker loader error: %w", err)
		}
		return nil
	})

	logger.Infof("✓ tradesnake 已启动，HTTP 监听 %s", a.http.Addr())
	err := group.Wait()

	a.bots.StopAll()
	if cerr := a.store.Close(); cerr != nil {
		logger.Warnf("关闭存储失败: %v", cerr)
	}
	logger.Infof("tradesnake 已退出")
	return err
}
