// Package store provides the durable key/value layer plus the bounded
// warning log kept in SQLite. Values are JSON documents owned by the
// callers; the store never inspects them.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/clipflow/clipflow-engine/internal/logging"
)

// Well-known keys in the kv table.
const (
	KeyProjects    = "projects"
	KeySettings    = "settings"
	KeyBackup      = "backup"
	KeyAssistConf  = "assist_config"
	KeyDeviceID    = "device_id"
	KeyAuthToken   = "auth_token"
	KeyWatchFolder = "watch_folder"
)

// MaxLogEntries caps the persisted log ring. Older entries are evicted
// on append.
const MaxLogEntries = 1000

// ErrNotFound is returned by Get when the key has never been written.
var ErrNotFound = errors.New("store: key not found")

// LogEntry is one persisted warning or error record.
type LogEntry struct {
	ID        int64
	Time      time.Time
	Level     string
	Component string
	Message   string
}

type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

func New(conn *sql.DB, logger *slog.Logger) *Store {
	return &Store{db: conn, logger: logger}
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read key %s: %w", key, err)
	}
	return value, nil
}

func (s *Store) Put(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to write key %s: %w", key, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM kv WHERE key = ?", key)
	if err != nil {
		return fmt.Errorf("failed to delete key %s: %w", key, err)
	}
	return nil
}

// AppendLog records a warning or error and evicts the oldest entries
// beyond MaxLogEntries. It satisfies logging.Sink.
func (s *Store) AppendLog(ctx context.Context, e logging.Entry) error {
	ts := e.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO logs (ts, level, component, message) VALUES (?, ?, ?, ?)",
		ts.UTC().Format(time.RFC3339), e.Level, e.Component, e.Message)
	if err != nil {
		return fmt.Errorf("failed to append log: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		"DELETE FROM logs WHERE id NOT IN (SELECT id FROM logs ORDER BY id DESC LIMIT ?)",
		MaxLogEntries)
	if err != nil {
		return fmt.Errorf("failed to trim logs: %w", err)
	}
	return nil
}

// ListLogs returns the most recent entries, newest first.
func (s *Store) ListLogs(ctx context.Context, limit int) ([]LogEntry, error) {
	if limit <= 0 || limit > MaxLogEntries {
		limit = MaxLogEntries
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, ts, level, component, message FROM logs ORDER BY id DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list logs: %w", err)
	}
	defer rows.Close()

	var out []LogEntry
	for rows.Next() {
		var entry LogEntry
		var ts string
		if err := rows.Scan(&entry.ID, &ts, &entry.Level, &entry.Component, &entry.Message); err != nil {
			return nil, err
		}
		entry.Time, _ = time.Parse(time.RFC3339, ts)
		out = append(out, entry)
	}
	return out, rows.Err()
}
