package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/viper"
)

type manager struct {
	mu     sync.RWMutex
	config *Config
	viper  *viper.Viper
}

func NewManager() Manager {
	return &manager{
		viper: viper.New(),
	}
}

func (m *manager) Load(configPath string) (*Config, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.setupViper(configPath); err != nil {
		return nil, fmt.Errorf("failed to setup viper: %w", err)
	}

	if err := m.viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config Config
	if err := m.viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&config)
	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	m.config = &config
	return &config, nil
}

func (m *manager) Reload() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.viper == nil {
		return fmt.Errorf("config not loaded")
	}

	if err := m.viper.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to reload config: %w", err)
	}

	var config Config
	if err := m.viper.Unmarshal(&config); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&config)
	if err := validateConfig(&config); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	m.config = &config
	return nil
}

func (m *manager) GetConfig() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

func (m *manager) setupViper(configPath string) error {
	m.viper.SetConfigFile(configPath)

	m.viper.SetEnvPrefix("PRICEWATCH")
	m.viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	m.viper.AutomaticEnv()

	dir := filepath.Dir(configPath)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	return nil
}

func applyDefaults(config *Config) {
	if config.Server.Host == "" {
		config.Server.Host = "127.0.0.1"
	}
	if config.Server.Port == 0 {
		config.Server.Port = 8470
	}
	if config.Storage.Backend == "" {
		config.Storage.Backend = "file"
	}
	if config.Storage.DataDir == "" {
		config.Storage.DataDir = "./data"
	}
	if config.Monitor.CheckIntervalMinutes == 0 {
		config.Monitor.CheckIntervalMinutes = 30
	}
	if config.Monitor.MaxRetries == 0 {
		config.Monitor.MaxRetries = 3
	}
	if config.Monitor.StaggerMs == 0 {
		config.Monitor.StaggerMs = 2000
	}
	if config.Monitor.RateLimitPerHour == 0 {
		config.Monitor.RateLimitPerHour = 60
	}
	if config.Fetch.TimeoutSeconds == 0 {
		config.Fetch.TimeoutSeconds = 15
	}
	if config.Cache.DurationSeconds == 0 {
		config.Cache.DurationSeconds = 300
	}
	if config.Cache.MaxSize == 0 {
		config.Cache.MaxSize = 100
	}
	if config.Logger.Level == "" {
		config.Logger.Level = "info"
	}
}

func validateConfig(config *Config) error {
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	switch config.Storage.Backend {
	case "file", "memory":
	default:
		return fmt.Errorf("unknown storage backend: %q", config.Storage.Backend)
	}

	if config.Storage.Backend == "file" && config.Storage.DataDir == "" {
		return fmt.Errorf("data_dir cannot be empty with the file backend")
	}

	if config.Monitor.CheckIntervalMinutes < 0 {
		return fmt.Errorf("check_interval_minutes must not be negative")
	}

	if config.Alerts.MinChangePercent < 0 || config.Alerts.MinChangePercent > 100 {
		return fmt.Errorf("min_change_percent must be in [0, 100]")
	}

	return nil
}
