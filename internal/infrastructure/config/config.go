package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Sandbox   SandboxConfig
	Provider  ProviderConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8000"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`
}

// SandboxConfig holds per-run resource limits for snippet execution.
// Both limits are mandatory: the sandbox layer itself takes them as explicit
// constructor parameters and refuses zero values.
type SandboxConfig struct {
	MemoryLimitMB int   `envconfig:"SANDBOX_MEMORY_MB" default:"64"`
	TimeoutMS     int   `envconfig:"SANDBOX_TIMEOUT_MS" default:"5000"`
	MaxConcurrent int   `envconfig:"SANDBOX_MAX_CONCURRENT" default:"8"`
	MaxSnippetKB  int64 `envconfig:"SANDBOX_MAX_SNIPPET_KB" default:"64"`
}

// Timeout returns the execution deadline as a duration.
func (s SandboxConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutMS) * time.Millisecond
}

// ProviderConfig holds market data provider configuration.
type ProviderConfig struct {
	// Mode selects the backing provider: "http" or "static"
	Mode        string `envconfig:"PROVIDER_MODE" default:"static"`
	BaseURL     string `envconfig:"PROVIDER_BASE_URL" default:""`
	APIKey      string `envconfig:"PROVIDER_API_KEY" default:""`
	CatalogPath string `envconfig:"PROVIDER_CATALOG" default:""`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"20"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"40"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.Sandbox.MemoryLimitMB <= 0 {
		return fmt.Errorf("SANDBOX_MEMORY_MB must be positive, got %d", c.Sandbox.MemoryLimitMB)
	}
	if c.Sandbox.TimeoutMS <= 0 {
		return fmt.Errorf("SANDBOX_TIMEOUT_MS must be positive, got %d", c.Sandbox.TimeoutMS)
	}
	if c.Provider.Mode == "http" && c.Provider.BaseURL == "" {
		return fmt.Errorf("PROVIDER_BASE_URL is required when PROVIDER_MODE=http")
	}
	return nil
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8000",
			Host: "0.0.0.0",
		},
		Sandbox: SandboxConfig{
			MemoryLimitMB: 64,
			TimeoutMS:     5000,
			MaxConcurrent: 8,
			MaxSnippetKB:  64,
		},
		Provider: ProviderConfig{
			Mode: "static",
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 20,
			Burst:             40,
			Enabled:           true,
		},
	}
}
