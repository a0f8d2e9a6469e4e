package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/minutemate/minutemate/engine/core"
	"github.com/minutemate/minutemate/pkg/logger"
	// Register modernc SQLite driver with database/sql.
	_ "modernc.org/sqlite"
)

const timeLayout = time.RFC3339Nano

// Store owns the database handle shared by the repositories.
type Store struct {
	db  *sql.DB
	cfg *Config
}

// NewStore opens the database described by cfg. Call Migrate before use.
func NewStore(ctx context.Context, cfg *Config) (*Store, error) {
	dsn, memory, err := buildDSN(cfg)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open database: %w", err)
	}
	if memory {
		// Every connection to a private in-memory database sees the same data
		// only while one connection keeps it alive.
		db.SetMaxOpenConns(1)
	} else if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: ping database: %w", err)
	}
	logger.FromContext(ctx).Debug("SQLite store opened", "path", cfg.Path)
	return &Store{db: db, cfg: cfg}, nil
}

func (s *Store) DB() *sql.DB {
	return s.db
}

// Migrate applies the embedded migrations to this database.
func (s *Store) Migrate(ctx context.Context) error {
	return runMigrations(ctx, s.db)
}

func (s *Store) Close(_ context.Context) error {
	return s.db.Close()
}

func (s *Store) HealthCheck(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func buildDSN(cfg *Config) (string, bool, error) {
	if cfg == nil || cfg.Path == "" {
		return "", false, fmt.Errorf("sqlite: database path is required")
	}
	params := url.Values{}
	params.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", cfg.busyTimeout().Milliseconds()))
	params.Add("_pragma", "foreign_keys(ON)")
	if cfg.inMemory() {
		name := "minutemate-" + core.MustNewID().String()
		params.Set("mode", "memory")
		params.Set("cache", "shared")
		return "file:" + name + "?" + params.Encode(), true, nil
	}
	params.Add("_pragma", "journal_mode(WAL)")
	return "file:" + cfg.Path + "?" + params.Encode(), false, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("sqlite: parse timestamp %q: %w", s, err)
	}
	return t, nil
}

// ToJSONText encodes v for a TEXT column.
func ToJSONText(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("sqlite: marshal json: %w", err)
	}
	return string(b), nil
}

// FromJSONText decodes a TEXT column written by ToJSONText.
func FromJSONText(s string, out any) error {
	if s == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(s), out); err != nil {
		return fmt.Errorf("sqlite: unmarshal json: %w", err)
	}
	return nil
}
