package config

import "fmt"

var logLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

func validate(cfg *Config) error {
	if !logLevels[cfg.App.LogLevel] {
		return fmt.Errorf("app.log_level 取值非法: %q", cfg.App.LogLevel)
	}
	if cfg.App.HTTPAddr == "" {
		return fmt.Errorf("app.http_addr 不能为空")
	}
	if cfg.Database.Path == "" {
		return fmt.Errorf("database.path 不能为空")
	}
	if cfg.Market.TimeoutSeconds <= 0 {
		return fmt.Errorf("market.timeout_seconds 必须为正: %d", cfg.Market.TimeoutSeconds)
	}
	if cfg.Notify.Telegram.Enabled && (cfg.Notify.Telegram.BotToken == "" || cfg.Notify.Telegram.ChatID == "") {
		return fmt.Errorf("notify.telegram 启用时 bot_token 和 chat_id 不能为空")
	}
	return nil
}
