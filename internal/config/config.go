package config

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Storage StorageConfig `mapstructure:"storage"`
	Monitor MonitorConfig `mapstructure:"monitor"`
	Fetch   FetchConfig   `mapstructure:"fetch"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Alerts  AlertsConfig  `mapstructure:"alerts"`
	Logger  LoggerConfig  `mapstructure:"logger"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type StorageConfig struct {
	// Backend selects "file" or "memory".
	Backend string `mapstructure:"backend"`
	DataDir string `mapstructure:"data_dir"`
}

type MonitorConfig struct {
	// CheckIntervalMinutes is clamped to [5, 1440] at apply time.
	CheckIntervalMinutes int  `mapstructure:"check_interval_minutes"`
	AutoCheck            bool `mapstructure:"auto_check"`
	MaxRetries           int  `mapstructure:"max_retries"`
	StaggerMs            int  `mapstructure:"stagger_ms"`
	RateLimitPerHour     int  `mapstructure:"rate_limit_per_hour"`
}

type FetchConfig struct {
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

type CacheConfig struct {
	DurationSeconds int `mapstructure:"duration_seconds"`
	MaxSize         int `mapstructure:"max_size"`
}

type AlertsConfig struct {
	MinChangePercent  float64 `mapstructure:"min_change_percent"`
	NotifyOnPriceUp   bool    `mapstructure:"notify_on_price_up"`
	NotifyOnPriceDown bool    `mapstructure:"notify_on_price_down"`
}

type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	TimeFormat string `mapstructure:"time_format"`
}

type Manager interface {
	Load(configPath string) (*Config, error)
	Reload() error
	GetConfig() *Config
}
