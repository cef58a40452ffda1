// Package sqlite is a single-file domain.Store on the pure-Go modernc driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ARRNAV26/Voting-System/internal/adapter/metrics"
	"github.com/ARRNAV26/Voting-System/internal/domain"
	"github.com/jonboulle/clockwork"
	moderncsqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const (
	driverName = "sqlite"

	// timeLayout is fixed width so that text ordering matches time ordering.
	timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

	// MemoryPath opens a private in-memory database.
	MemoryPath = ":memory:"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		email TEXT NOT NULL UNIQUE,
		hashed_password TEXT NOT NULL,
		is_active INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT
	);`,
	`CREATE TABLE IF NOT EXISTS suggestions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		description TEXT NOT NULL,
		category TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'active',
		author_id INTEGER NOT NULL REFERENCES users(id),
		created_at TEXT NOT NULL,
		updated_at TEXT
	);`,
	`CREATE INDEX IF NOT EXISTS idx_suggestions_category ON suggestions(category);`,
	`CREATE INDEX IF NOT EXISTS idx_suggestions_author ON suggestions(author_id);`,
	`CREATE TABLE IF NOT EXISTS votes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL REFERENCES users(id),
		suggestion_id INTEGER NOT NULL REFERENCES suggestions(id) ON DELETE CASCADE,
		is_upvote INTEGER NOT NULL,
		created_at TEXT NOT NULL,
		UNIQUE(user_id, suggestion_id)
	);`,
	`CREATE INDEX IF NOT EXISTS idx_votes_suggestion ON votes(suggestion_id);`,
}

var _ domain.Store = (*Store)(nil)

type Store struct {
	db      *sql.DB
	clock   clockwork.Clock
	metrics *metrics.StorageMetrics
}

// Open opens or creates the database at path and applies the schema.
// m may be nil.
func Open(ctx context.Context, path string, clock clockwork.Clock, m *metrics.StorageMetrics) (*Store, error) {
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite allows one writer. A single connection also keeps an in-memory
	// database alive and shared across calls.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, clock: clock, metrics: m}
	if err := s.initSchema(ctx, path); err != nil {
		_ = db.Close()
		return nil, err
	}

	slog.Info("SQLite database opened", "path", path)
	return s, nil
}

func (s *Store) initSchema(ctx context.Context, path string) error {
	pragmas := []string{`PRAGMA foreign_keys = ON;`, `PRAGMA busy_timeout = 5000;`}
	if path != MemoryPath {
		pragmas = append(pragmas, `PRAGMA journal_mode = WAL;`)
	}
	for _, stmt := range append(pragmas, schema...) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

// observe records a query. Domain outcomes such as not-found are not
// counted as errors.
func (s *Store) observe(operation string, start time.Time, err error) {
	if domain.IsExpected(err) {
		err = nil
	}
	s.metrics.Observe(driverName, operation, s.clock.Since(start), err)
}

func (s *Store) now() string {
	return formatTime(s.clock.Now())
}

// inTx runs fn in a transaction and commits when fn returns nil. Lock
// contention surfaces as domain.ErrConflict.
func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return asConflict(fmt.Errorf("begin transaction: %w", err))
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return asConflict(err)
	}
	if err := tx.Commit(); err != nil {
		return asConflict(fmt.Errorf("commit transaction: %w", err))
	}
	return nil
}

func asConflict(err error) error {
	var se *moderncsqlite.Error
	if !errors.As(err, &se) {
		return err
	}
	switch se.Code() & 0xff {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return fmt.Errorf("%w: %w", domain.ErrConflict, err)
	}
	return err
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(v string) (time.Time, error) {
	t, err := time.Parse(timeLayout, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", v, err)
	}
	return t, nil
}

func parseNullTime(v sql.NullString) (*time.Time, error) {
	if !v.Valid {
		return nil, nil
	}
	t, err := parseTime(v.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func isUniqueViolation(err error) bool {
	var se *moderncsqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE || se.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
