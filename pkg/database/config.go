package database

import (
	"fmt"
	"time"

	"github.com/brightlane/insightforge/pkg/config"
)

// Config holds database connection settings for NewClient.
type Config struct {
	// DSN is a full Postgres connection string (DATABASE_URL).
	DSN string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// ConfigFromApp adapts the application's env-var-driven configuration into
// the shape NewClient expects.
func ConfigFromApp(dbCfg config.DatabaseConfig) Config {
	return Config{
		DSN:             dbCfg.URL,
		MaxOpenConns:    dbCfg.MaxOpenConns,
		MaxIdleConns:    dbCfg.MaxIdleConns,
		ConnMaxLifetime: dbCfg.ConnMaxLifetime,
		ConnMaxIdleTime: dbCfg.ConnMaxIdleTime,
	}
}

// Validate checks if the configuration is usable before opening a connection.
func (c Config) Validate() error {
	if c.DSN == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.MaxIdleConns > c.MaxOpenConns {
		return fmt.Errorf("DB_MAX_IDLE_CONNS (%d) cannot exceed DB_MAX_OPEN_CONNS (%d)",
			c.MaxIdleConns, c.MaxOpenConns)
	}
	if c.MaxOpenConns < 1 {
		return fmt.Errorf("DB_MAX_OPEN_CONNS must be at least 1")
	}
	if c.MaxIdleConns < 0 {
		return fmt.Errorf("DB_MAX_IDLE_CONNS cannot be negative")
	}
	return nil
}
