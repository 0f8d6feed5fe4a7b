// Package config loads the server configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the server configuration
type Config struct {
	DBDriver    string        `env:"EXTIDS_DB_DRIVER" envDefault:"sqlite3"`
	DBPath      string        `env:"EXTIDS_DB_PATH" envDefault:"extids.db"`
	Port        string        `env:"PORT" envDefault:"8080"`
	BaseURL     string        `env:"EXTIDS_BASE_URL"`
	JWTSecret   string        `env:"JWT_SECRET"`
	TokenTTL    time.Duration `env:"EXTIDS_TOKEN_TTL" envDefault:"24h"`
	CatalogFile string        `env:"EXTIDS_CATALOG_FILE"`

	LogLevel  string `env:"EXTIDS_LOG_LEVEL" envDefault:"info"`
	PrettyLog bool   `env:"EXTIDS_PRETTY_LOG"`

	RedisAddr     string        `env:"EXTIDS_REDIS_ADDR"`
	RedisPassword string        `env:"EXTIDS_REDIS_PASSWORD"`
	RedisDB       int           `env:"EXTIDS_REDIS_DB" envDefault:"0"`
	CacheTTL      time.Duration `env:"EXTIDS_CACHE_TTL" envDefault:"5m"`

	OtelEndpoint string `env:"EXTIDS_OTEL_ENDPOINT"`
	OtelEnabled  bool   `env:"EXTIDS_OTEL_ENABLED" envDefault:"true"`

	AdminClient string `env:"EXTIDS_ADMIN_CLIENT" envDefault:"admin"`
	AdminSecret string `env:"EXTIDS_ADMIN_SECRET"`
}

// Load parses the environment into a Config
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values env cannot check on its own
func (c *Config) Validate() error {
	if c.DBDriver != "sqlite3" && c.DBDriver != "sqlite" {
		return fmt.Errorf("EXTIDS_DB_DRIVER: %q is not one of sqlite3, sqlite", c.DBDriver)
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("EXTIDS_TOKEN_TTL: must be positive, got %s", c.TokenTTL)
	}
	return nil
}

// Addr is the listen address
func (c *Config) Addr() string {
	return ":" + c.Port
}
