package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/clipflow/clipflow-engine/internal/db"
	"github.com/clipflow/clipflow-engine/internal/logging"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	database, err := db.New(dbPath, nil)
	if err != nil {
		t.Fatalf("db.New() error = %v", err)
	}
	t.Cleanup(func() { database.Close() })

	return New(database.Conn(), nil)
}

func TestGet_Missing(t *testing.T) {
	s := setupTestStore(t)

	_, err := s.Get(context.Background(), "nope")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get missing key error = %v, want ErrNotFound", err)
	}
}

func TestPutGet_Roundtrip(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	if err := s.Put(ctx, KeySettings, `{"theme":"dark"}`); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, err := s.Get(ctx, KeySettings)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != `{"theme":"dark"}` {
		t.Errorf("Get() = %q, want %q", got, `{"theme":"dark"}`)
	}
}

func TestPut_Overwrites(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	if err := s.Put(ctx, KeyProjects, `{"name":"old"}`); err != nil {
		t.Fatalf("first Put() error = %v", err)
	}
	if err := s.Put(ctx, KeyProjects, `{"name":"new"}`); err != nil {
		t.Fatalf("second Put() error = %v", err)
	}

	got, err := s.Get(ctx, KeyProjects)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != `{"name":"new"}` {
		t.Errorf("Get() = %q, want overwritten value", got)
	}
}

func TestDelete(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	if err := s.Put(ctx, KeyBackup, "{}"); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := s.Delete(ctx, KeyBackup); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	if _, err := s.Get(ctx, KeyBackup); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after Delete error = %v, want ErrNotFound", err)
	}

	// Deleting a missing key is not an error.
	if err := s.Delete(ctx, KeyBackup); err != nil {
		t.Errorf("Delete missing key error = %v", err)
	}
}

func TestAppendLog_ListLogs(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	err := s.AppendLog(ctx, logging.Entry{
		Time:      time.Now(),
		Level:     "WARN",
		Component: "media",
		Message:   "ffmpeg exited with code 1",
	})
	if err != nil {
		t.Fatalf("AppendLog() error = %v", err)
	}

	logs, err := s.ListLogs(ctx, 10)
	if err != nil {
		t.Fatalf("ListLogs() error = %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("ListLogs() returned %d entries, want 1", len(logs))
	}
	if logs[0].Component != "media" {
		t.Errorf("Component = %q, want %q", logs[0].Component, "media")
	}
	if logs[0].Message != "ffmpeg exited with code 1" {
		t.Errorf("Message = %q", logs[0].Message)
	}
}

func TestAppendLog_EvictsOldest(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	for i := 0; i < MaxLogEntries+5; i++ {
		err := s.AppendLog(ctx, logging.Entry{
			Level:   "WARN",
			Message: fmt.Sprintf("entry %d", i),
		})
		if err != nil {
			t.Fatalf("AppendLog(%d) error = %v", i, err)
		}
	}

	logs, err := s.ListLogs(ctx, 0)
	if err != nil {
		t.Fatalf("ListLogs() error = %v", err)
	}
	if len(logs) != MaxLogEntries {
		t.Fatalf("log count = %d, want %d", len(logs), MaxLogEntries)
	}

	// Newest first; the oldest five entries are gone.
	if logs[0].Message != fmt.Sprintf("entry %d", MaxLogEntries+4) {
		t.Errorf("newest = %q, want entry %d", logs[0].Message, MaxLogEntries+4)
	}
	if logs[len(logs)-1].Message != "entry 5" {
		t.Errorf("oldest = %q, want entry 5", logs[len(logs)-1].Message)
	}
}
