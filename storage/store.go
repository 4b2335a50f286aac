package storage

import (
	"fmt"
	"strings"
)

// DatabaseConfig holds database backend settings.
type DatabaseConfig struct {
	Driver string `toml:"driver"` // "sqlite" (default) or "postgres"
	Path   string `toml:"path"`   // SQLite file path
	DSN    string `toml:"dsn"`    // Full DSN, takes precedence when set

	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Name     string `toml:"name"`
	SSLMode  string `toml:"ssl_mode"`

	MaxOpenConns        int `toml:"max_open_conns"`
	MaxIdleConns        int `toml:"max_idle_conns"`
	ConnMaxLifetimeSecs int `toml:"conn_max_lifetime_secs"`
}

// EffectiveDriver normalizes the configured driver name, defaulting to sqlite.
func (c *DatabaseConfig) EffectiveDriver() string {
	driver := strings.ToLower(strings.TrimSpace(c.Driver))
	if driver == "" {
		return "sqlite"
	}
	return driver
}

// BuildDSN returns the DSN for the configured backend. For postgres an
// explicit DSN wins; otherwise one is assembled from the host fields.
func (c *DatabaseConfig) BuildDSN() string {
	if c.DSN != "" {
		return c.DSN
	}

	switch c.EffectiveDriver() {
	case "postgres", "postgresql":
		host := c.Host
		if host == "" {
			host = "localhost"
		}
		port := c.Port
		if port == 0 {
			port = 5432
		}
		sslMode := c.SSLMode
		if sslMode == "" {
			sslMode = "disable"
		}
		dsn := fmt.Sprintf("host=%s port=%d dbname=%s sslmode=%s", host, port, c.Name, sslMode)
		if c.User != "" {
			dsn += " user=" + c.User
		}
		if c.Password != "" {
			dsn += " password=" + c.Password
		}
		return dsn
	default:
		return c.Path
	}
}

// NewStore creates a Store implementation based on the database
// configuration. SQLite is the default; PostgreSQL is selected with
// driver = "postgres".
func NewStore(cfg *DatabaseConfig) (Store, error) {
	if cfg == nil {
		cfg = &DatabaseConfig{}
	}

	switch driver := cfg.EffectiveDriver(); driver {
	case "sqlite", "sqlite3", "modernc", "modernc-sqlite":
		path := cfg.Path
		if path == "" {
			path = "ordersummary.db"
		}
		return NewSQLiteStore(path)

	case "postgres", "postgresql":
		return NewPostgresStore(cfg)

	default:
		return nil, fmt.Errorf("unsupported database driver: %q (supported: sqlite, postgres)", driver)
	}
}
