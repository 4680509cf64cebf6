package apihttp

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"tradesnake/internal/backtest"
	"tradesnake/internal/bot"
	"tradesnake/internal/indicator"
	"tradesnake/internal/logger"
	"tradesnake/internal/store"
	"tradesnake/internal/strategy"
)

// Router 暴露机器人管理与回测接口。
type Router struct {
	bots       *bot.Registry
	backtests  *backtest.Runner
	indicators *indicator.Service
	reportDir  string
}

func NewRouter(bots *bot.Registry, backtests *backtest.Runner, indicators *indicator.Service, reportDir string) *Router {
	return &Router{bots: bots, backtests: backtests, indicators: indicators, reportDir: reportDir}
}

// Register 将 /api 路由挂载到给定分组下。
func (r *Router) Register(group *gin.RouterGroup) {
	if group == nil {
		return
	}
	group.GET("/bots", r.handleListBots)
	group.POST("/bots", r.handleStartBot)
	group.POST("/bots/:id/stop", r.handleStopBot)
	if r.backtests != nil {
		group.POST("/backtest", r.handleBacktest)
	}
	if r.indicators != nil {
		group.GET("/market/snapshot", r.handleMarketSnapshot)
	}
}

// startBotRequest 里的参数值允许任意 JSON 标量，入口统一转成字符串。
type startBotRequest struct {
	OwnerID    int64          `json:"owner_id"`
	BotID      int64          `json:"bot_id" binding:"required"`
	StrategyID int64          `json:"strategy_id" binding:"required"`
	BrokerID   int64          `json:"broker_id" binding:"required"`
	Params     map[string]any `json:"params"`
}

func (r *Router) handleStartBot(c *gin.Context) {
	var req startBotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	params := coerceParams(req.Params)
	if err := r.bots.Start(c.Request.Context(), req.OwnerID, req.BotID, req.StrategyID, req.BrokerID, params); err != nil {
		status := startErrorStatus(err)
		if status >= http.StatusInternalServerError {
			logger.Errorf("[api] bot %d 启动失败 ip=%s err=%v", req.BotID, c.ClientIP(), err)
		} else {
			logger.Warnf("[api] bot %d 启动被拒 ip=%s err=%v", req.BotID, c.ClientIP(), err)
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	logger.Infof("[api] bot %d 已启动 ip=%s strategy=%d broker=%d", req.BotID, c.ClientIP(), req.StrategyID, req.BrokerID)
	c.JSON(http.StatusOK, gin.H{"status": "ok", "bot_id": req.BotID})
}

func (r *Router) handleStopBot(c *gin.Context) {
	botID, _ := strconv.ParseInt(c.Param("id"), 10, 64)
	if botID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid bot id"})
		return
	}
	if !r.bots.Stop(botID) {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("bot %d 未在运行", botID)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "bot_id": botID})
}

func (r *Router) handleListBots(c *gin.Context) {
	ids := r.bots.ListRunning()
	c.JSON(http.StatusOK, gin.H{"running": ids, "count": len(ids)})
}

type backtestRequest struct {
	OwnerID    int64          `json:"owner_id"`
	StrategyID int64          `json:"strategy_id" binding:"required"`
	BrokerID   int64          `json:"broker_id" binding:"required"`
	Params     map[string]any `json:"params"`
	Report     bool           `json:"report"`
}

func (r *Router) handleBacktest(c *gin.Context) {
	var req backtestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := r.backtests.Run(c.Request.Context(), backtest.Request{
		OwnerID:    req.OwnerID,
		StrategyID: req.StrategyID,
		BrokerID:   req.BrokerID,
		Params:     coerceParams(req.Params),
	})
	if err != nil {
		status := startErrorStatus(err)
		var unavailable *backtest.DataUnavailableError
		if errors.As(err, &unavailable) {
			status = http.StatusBadGateway
		}
		logger.Warnf("[api] 回测失败 ip=%s strategy=%d err=%v", c.ClientIP(), req.StrategyID, err)
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	reportPath := ""
	if req.Report {
		path, err := backtest.WriteReport(res, r.reportDir)
		if err != nil {
			logger.Warnf("[api] 回测报表生成失败 run=%s err=%v", res.RunID, err)
		} else {
			reportPath = path
		}
	}
	c.JSON(http.StatusOK, gin.H{"result": res, "report": reportPath})
}

func (r *Router) handleMarketSnapshot(c *gin.Context) {
	symbol := strings.ToUpper(strings.TrimSpace(c.Query("symbol")))
	if symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol 不能为空"})
		return
	}
	start := strings.TrimSpace(c.DefaultQuery("start", "0"))
	end := strings.TrimSpace(c.Query("end"))
	if end == "" {
		end = strconv.FormatInt(time.Now().Unix(), 10)
	}
	interval := strings.TrimSpace(c.DefaultQuery("interval", "60"))
	maLength := intQuery(c, "ma_length", 20)
	rsiPeriod := intQuery(c, "rsi_period", 14)

	ctx := c.Request.Context()
	state, err := r.indicators.AnalyzeMarket(ctx, symbol, start, end)
	if err != nil {
		logger.Warnf("[api] 行情快照失败 ip=%s symbol=%s err=%v", c.ClientIP(), symbol, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	sma, err := r.indicators.SMA(ctx, symbol, interval, maLength, end)
	if err != nil {
		logger.Warnf("[api] 快照均线计算失败 ip=%s symbol=%s err=%v", c.ClientIP(), symbol, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	rsi, err := r.indicators.RSI(ctx, symbol, interval, rsiPeriod, end)
	if err != nil {
		logger.Warnf("[api] 快照 RSI 计算失败 ip=%s symbol=%s err=%v", c.ClientIP(), symbol, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"symbol":     symbol,
		"state":      state,
		"interval":   interval,
		"ma_length":  maLength,
		"sma":        sma,
		"rsi_period": rsiPeriod,
		"rsi":        rsi,
	})
}

// intQuery 读取正整数查询参数，非法或缺省时回退默认值。
func intQuery(c *gin.Context, key string, fallback int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

// startErrorStatus 把领域错误映射到 HTTP 状态码。
func startErrorStatus(err error) int {
	var invalid *strategy.InvalidParameterError
	switch {
	case errors.Is(err, bot.ErrAlreadyRunning):
		return http.StatusConflict
	case errors.Is(err, strategy.ErrUnknownStrategy),
		errors.Is(err, store.ErrBrokerNotFound),
		errors.As(err, &invalid):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// coerceParams 把 JSON 标量统一成字符串参数包。
func coerceParams(raw map[string]any) strategy.Params {
	params := make(strategy.Params, len(raw))
	for k, v := range raw {
		switch val := v.(type) {
		case string:
			params[k] = val
		case float64:
			params[k] = strconv.FormatFloat(val, 'f', -1, 64)
		case bool:
			params[k] = strconv.FormatBool(val)
		case nil:
			// 忽略空值
		default:
			params[k] = fmt.Sprintf("%v", val)
		}
	}
	return params
}
