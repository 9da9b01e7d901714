// Package config provides configuration management for the area-search
// service.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds the complete application configuration loaded from
// environment variables.
type Config struct {
	Server  ServerConfig  `envPrefix:"SERVER_"`
	Catalog CatalogConfig `envPrefix:"CATALOG_"`
	Search  SearchConfig  `envPrefix:"SEARCH_"`
	Logging LoggingConfig `envPrefix:"LOG_"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Host            string        `env:"HOST" envDefault:"0.0.0.0"`
	Port            int           `env:"PORT" envDefault:"8080"`
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"30s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"60s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// CatalogConfig contains catalog API client configuration.
type CatalogConfig struct {
	BaseURL string        `env:"BASE_URL" envDefault:"https://earth-search.aws.element84.com/v1"`
	Timeout time.Duration `env:"TIMEOUT" envDefault:"30s"`

	// Retry policy for transient upstream failures.
	RetryMaxAttempts     uint          `env:"RETRY_MAX_ATTEMPTS" envDefault:"3"`
	RetryInitialInterval time.Duration `env:"RETRY_INITIAL_INTERVAL" envDefault:"500ms"`
	RetryMaxInterval     time.Duration `env:"RETRY_MAX_INTERVAL" envDefault:"5s"`

	// CacheSize is the number of search responses kept in the in-process
	// cache; 0 disables caching.
	CacheSize int `env:"CACHE_SIZE" envDefault:"128"`
}

// SearchConfig contains search input configuration.
type SearchConfig struct {
	// Collections is the set of collection IDs users may search.
	Collections []string `env:"COLLECTIONS" envDefault:"sentinel-2-l1c,sentinel-2-l2a,landsat-c2-l2"`

	// DefaultLimit is the number of items requested per search.
	DefaultLimit int `env:"DEFAULT_LIMIT" envDefault:"10"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string `env:"LEVEL" envDefault:"info"`
	Format string `env:"FORMAT" envDefault:"json"`
}

// Load parses configuration from environment variables.
// It returns an error if required fields are missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{}

	opts := env.Options{
		RequiredIfNoDef: true,
	}

	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive, got %s", c.Server.ReadTimeout)
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server write timeout must be positive, got %s", c.Server.WriteTimeout)
	}

	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server shutdown timeout must be positive, got %s", c.Server.ShutdownTimeout)
	}

	if c.Catalog.BaseURL == "" {
		return fmt.Errorf("catalog base URL is required")
	}

	if c.Catalog.Timeout <= 0 {
		return fmt.Errorf("catalog timeout must be positive, got %s", c.Catalog.Timeout)
	}

	if c.Catalog.RetryMaxAttempts < 1 {
		return fmt.Errorf("catalog retry attempts must be at least 1, got %d", c.Catalog.RetryMaxAttempts)
	}

	if c.Catalog.RetryInitialInterval <= 0 {
		return fmt.Errorf("catalog retry initial interval must be positive, got %s", c.Catalog.RetryInitialInterval)
	}

	if c.Catalog.RetryMaxInterval < c.Catalog.RetryInitialInterval {
		return fmt.Errorf("catalog retry max interval (%s) must be >= initial interval (%s)",
			c.Catalog.RetryMaxInterval, c.Catalog.RetryInitialInterval)
	}

	if c.Catalog.CacheSize < 0 {
		return fmt.Errorf("catalog cache size must be non-negative, got %d", c.Catalog.CacheSize)
	}

	if len(c.Search.Collections) == 0 {
		return fmt.Errorf("at least one search collection is required")
	}
	for i, coll := range c.Search.Collections {
		if coll == "" {
			return fmt.Errorf("search collection at index %d is empty", i)
		}
	}

	if c.Search.DefaultLimit < 1 {
		return fmt.Errorf("search default limit must be at least 1, got %d", c.Search.DefaultLimit)
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level %q, must be one of: debug, info, warn, error", c.Logging.Level)
	}

	validLogFormats := map[string]bool{
		"json": true,
		"text": true,
	}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("invalid log format %q, must be one of: json, text", c.Logging.Format)
	}

	return nil
}

// Address returns the server listen address in the format "host:port".
func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
