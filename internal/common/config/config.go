// internal/common/config/config.go
package config

import (
	"fmt"
	"time"
)

// Config is the main application configuration struct.
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Backend    BackendConfig    `mapstructure:"backend"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Search     SearchConfig     `mapstructure:"search"`
	Generation GenerationConfig `mapstructure:"generation"`
	Chat       ChatConfig       `mapstructure:"chat"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// BackendConfig describes the CasAI backend HTTP surface.
type BackendConfig struct {
	BaseURL string `mapstructure:"base_url"`
	// UploadRoot is the server-side directory uploads land in. The original
	// image path is derived as "<upload_root>/<filename>"; this is a contract
	// with the backend's upload-storage convention.
	UploadRoot       string `mapstructure:"upload_root"`
	Timeout          int    `mapstructure:"timeout"`           // milliseconds
	GenerateTimeout  int    `mapstructure:"generate_timeout"`  // milliseconds
	SearchRatePerSec int    `mapstructure:"search_rate_limit"` // external search requests/second
}

func (b BackendConfig) TimeoutDuration() time.Duration {
	return time.Duration(b.Timeout) * time.Millisecond
}

func (b BackendConfig) GenerateTimeoutDuration() time.Duration {
	return time.Duration(b.GenerateTimeout) * time.Millisecond
}

type DatabaseConfig struct {
	Redis RedisConfig `mapstructure:"redis"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// SearchConfig tunes the fan-out orchestrator.
type SearchConfig struct {
	MaxResults int `mapstructure:"max_results"`
	CacheTTL   int `mapstructure:"cache_ttl"` // seconds, external-search cache
}

func (s SearchConfig) CacheTTLDuration() time.Duration {
	return time.Duration(s.CacheTTL) * time.Second
}

// GenerationConfig tunes the redesign coordinator.
type GenerationConfig struct {
	PromptTemplate string `mapstructure:"prompt_template"`
}

type ChatConfig struct {
	HistoryLimit int `mapstructure:"history_limit"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Address string `mapstructure:"address"`
}

func validateConfig(cfg *Config) error {
	if cfg.Backend.BaseURL == "" {
		return fmt.Errorf("backend.base_url is required")
	}
	if cfg.Database.Redis.Address == "" {
		return fmt.Errorf("database.redis.address is required")
	}
	return nil
}
