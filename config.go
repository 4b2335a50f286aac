package main

import (
	"fmt"
	"os"
	"strconv"

	"ordersummary/server/storage"

	"github.com/BurntSushi/toml"
)

// Config represents the server configuration.
type Config struct {
	Server   ServerConfig           `toml:"server"`
	Database storage.DatabaseConfig `toml:"database"`
	Logging  LoggingConfig          `toml:"logging"`
	Security SecurityConfig         `toml:"security"`
}

// ServerConfig holds listener settings. The websocket hub owns its own
// listener on WSPort, separate from the HTTP API port.
type ServerConfig struct {
	HTTPPort    int    `toml:"http_port"`
	WSPort      int    `toml:"ws_port"`
	BindAddress string `toml:"bind_address"`
}

// LoggingConfig holds log settings.
type LoggingConfig struct {
	Level string `toml:"level"`
	Dir   string `toml:"dir"` // empty disables file output
}

// SecurityConfig holds login rate limiting settings.
type SecurityConfig struct {
	RateLimitEnabled       bool `toml:"rate_limit_enabled"`
	RateLimitMaxAttempts   int  `toml:"rate_limit_max_attempts"`
	RateLimitBlockMinutes  int  `toml:"rate_limit_block_minutes"`
	RateLimitWindowMinutes int  `toml:"rate_limit_window_minutes"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort:    8069,
			WSPort:      8765,
			BindAddress: "0.0.0.0",
		},
		Database: storage.DatabaseConfig{
			Driver: "sqlite",
			Path:   "ordersummary.db",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Security: SecurityConfig{
			RateLimitEnabled:       true,
			RateLimitMaxAttempts:   5,
			RateLimitBlockMinutes:  5,
			RateLimitWindowMinutes: 2,
		},
	}
}

// LoadConfig builds the effective configuration: defaults, then the TOML
// file (when present), then environment overrides.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ORDER_SUMMARY_HTTP_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.HTTPPort = port
		}
	}
	if v := os.Getenv("ORDER_SUMMARY_WS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.WSPort = port
		}
	}
	if v := os.Getenv("ORDER_SUMMARY_BIND_ADDRESS"); v != "" {
		cfg.Server.BindAddress = v
	}
	if v := os.Getenv("ORDER_SUMMARY_DB_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("ORDER_SUMMARY_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("ORDER_SUMMARY_DB_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("ORDER_SUMMARY_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}
