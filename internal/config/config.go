package config

import (
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Load 读取 YAML 配置并套用默认值。环境变量 TRADESNAKE_* 覆盖
// 同名配置项（点号换下划线，如 TRADESNAKE_APP_HTTP_ADDR）。
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path cannot be empty")
	}
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("TRADESNAKE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file failed (%s): %w", path, err)
	}
	var cfg Config
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "toml"
		dc.WeaklyTypedInput = true
	}); err != nil {
		return nil, fmt.Errorf("parsing config failed: %w", err)
	}
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "dev")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.http_addr", ":8080")
	v.SetDefault("app.log_path", "logs/tradesnake.log")
	v.SetDefault("database.path", "data/tradesnake.db")
	v.SetDefault("market.cache_path", "data/candles.db")
	v.SetDefault("market.timeout_seconds", 15)
	v.SetDefault("brokers.file", "configs/brokers.yaml")
	v.SetDefault("backtest.report_dir", "reports")
}
