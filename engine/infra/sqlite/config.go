package sqlite

import (
	"time"

	"github.com/minutemate/minutemate/pkg/config"
)

// Config captures SQLite store configuration derived from application settings.
type Config struct {
	// Path is the database location or ":memory:" for a private in-memory database.
	Path string

	// MaxOpenConns controls the pool size exposed by database/sql.
	MaxOpenConns int

	// BusyTimeout configures sqlite busy timeout via PRAGMA busy_timeout.
	BusyTimeout time.Duration
}

func ConfigFrom(cfg *config.DatabaseConfig) *Config {
	return &Config{Path: cfg.Path, BusyTimeout: cfg.BusyTimeout}
}

func (c *Config) inMemory() bool {
	return c.Path == ":memory:"
}

func (c *Config) busyTimeout() time.Duration {
	if c.BusyTimeout <= 0 {
		return 5 * time.Second
	}
	return c.BusyTimeout
}
