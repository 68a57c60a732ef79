// Package config loads service configuration from environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/Sternrassler/ledger-cache/pkg/cache"
	"github.com/Sternrassler/ledger-cache/pkg/logging"
)

// Config holds all service configuration.
type Config struct {
	// HTTP
	Port string `env:"PORT" envDefault:"8080"`

	// Redis (expiring store)
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
	RedisPassword string `env:"REDIS_PASSWORD"`

	// Ledger gateway
	LedgerURL         string        `env:"LEDGER_URL" envDefault:"http://localhost:3000"`
	LedgerTimeout     time.Duration `env:"LEDGER_TIMEOUT" envDefault:"10s"`
	LedgerMaxAttempts int           `env:"LEDGER_MAX_ATTEMPTS" envDefault:"3"`

	// Caching
	CacheMode       string   `env:"CACHE_MODE" envDefault:"adaptive"`
	PrecacheOnWrite bool     `env:"PRECACHE_ON_WRITE" envDefault:"true"`
	PrecacheIDs     []string `env:"PRECACHE_IDS" envSeparator:","`
	WarmConcurrency int      `env:"WARM_CONCURRENCY" envDefault:"10"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogPretty bool   `env:"LOG_PRETTY" envDefault:"false"`
}

// Load reads configuration from environment variables and validates it.
func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	if _, err := cache.ParseMode(c.CacheMode); err != nil {
		return fmt.Errorf("invalid CACHE_MODE: %w", err)
	}
	if c.LedgerURL == "" {
		return fmt.Errorf("LEDGER_URL is required")
	}
	if c.LedgerTimeout <= 0 {
		return fmt.Errorf("LEDGER_TIMEOUT must be positive, got %v", c.LedgerTimeout)
	}
	if c.LedgerMaxAttempts < 1 || c.LedgerMaxAttempts > 10 {
		return fmt.Errorf("LEDGER_MAX_ATTEMPTS must be between 1-10, got %d", c.LedgerMaxAttempts)
	}
	if c.WarmConcurrency < 1 {
		return fmt.Errorf("WARM_CONCURRENCY must be >= 1, got %d", c.WarmConcurrency)
	}
	if c.RedisDB < 0 {
		return fmt.Errorf("REDIS_DB must be >= 0, got %d", c.RedisDB)
	}
	return nil
}

// Logging returns the logger configuration.
func (c *Config) Logging() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = logging.LogLevel(c.LogLevel)
	cfg.Pretty = c.LogPretty
	return cfg
}
