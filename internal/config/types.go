package config

// Config 是 tradesnake 的主配置载体。
type Config struct {
	App      AppConfig      `toml:"app"`
	Database DatabaseConfig `toml:"database"`
	Market   MarketConfig   `toml:"market"`
	Brokers  BrokersConfig  `toml:"brokers"`
	Backtest BacktestConfig `toml:"backtest"`
	Notify   NotifyConfig   `toml:"notify"`
}

type AppConfig struct {
	Env      string `toml:"env"`
	LogLevel string `toml:"log_level"`
	HTTPAddr string `toml:"http_addr"`
	LogPath  string `toml:"log_path"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

type MarketConfig struct {
	RESTBaseURL    string `toml:"rest_base_url"`
	CachePath      string `toml:"cache_path"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// BrokersConfig 指向券商费率档案文件，运行期热加载。
type BrokersConfig struct {
	File string `toml:"file"`
}

type BacktestConfig struct {
	ReportDir string `toml:"report_dir"`
}

type NotifyConfig struct {
	Telegram TelegramConfig `toml:"telegram"`
}

type TelegramConfig struct {
	Enabled  bool   `toml:"enabled"`
	BotToken string `toml:"bot_token"`
	ChatID   string `toml:"chat_id"`
}
