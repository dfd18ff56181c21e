package jobs

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/clipflow/clipflow-engine/internal/db"
)

func setupTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	database, err := db.New(filepath.Join(t.TempDir(), "test.db"), nil)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return NewRepository(database.Conn())
}

func TestCreateAndGet(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	job, err := NewJob(TypeTrim, "vid-1", TrimPayload{Input: "/in.mp4", Output: "/out.mp4", Start: 1.5, End: 4})
	if err != nil {
		t.Fatalf("NewJob failed: %v", err)
	}
	if err := repo.Create(ctx, job); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := repo.Get(ctx, job.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got == nil {
		t.Fatal("Get returned nil for existing job")
	}
	if got.Type != TypeTrim || got.Status != StatusPending || got.VideoID != "vid-1" {
		t.Errorf("job = %+v", got)
	}

	var p TrimPayload
	if err := json.Unmarshal(got.Payload, &p); err != nil {
		t.Fatalf("payload did not survive roundtrip: %v", err)
	}
	if p.Start != 1.5 || p.End != 4 {
		t.Errorf("payload = %+v", p)
	}
}

func TestGet_Missing(t *testing.T) {
	repo := setupTestRepo(t)
	got, err := repo.Get(context.Background(), "nope")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != nil {
		t.Errorf("Get missing job = %+v, want nil", got)
	}
}

func TestNextPending_OldestFirst(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	older, _ := NewJob(TypeExport, "", ExportPayload{Input: "/a.mp4", Output: "/a-out.mp4", Quality: "high"})
	older.CreatedAt = time.Now().UTC().Add(-2 * time.Minute)
	newer, _ := NewJob(TypeExport, "", ExportPayload{Input: "/b.mp4", Output: "/b-out.mp4", Quality: "high"})
	newer.CreatedAt = time.Now().UTC().Add(-1 * time.Minute)

	if err := repo.Create(ctx, newer); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := repo.Create(ctx, older); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	next, err := repo.NextPending(ctx)
	if err != nil {
		t.Fatalf("NextPending failed: %v", err)
	}
	if next == nil || next.ID != older.ID {
		t.Errorf("NextPending = %+v, want oldest job %s", next, older.ID)
	}

	if err := repo.MarkRunning(ctx, older.ID); err != nil {
		t.Fatalf("MarkRunning failed: %v", err)
	}
	next, err = repo.NextPending(ctx)
	if err != nil {
		t.Fatalf("NextPending failed: %v", err)
	}
	if next == nil || next.ID != newer.ID {
		t.Errorf("NextPending after MarkRunning = %+v, want %s", next, newer.ID)
	}
}

func TestNextPending_Empty(t *testing.T) {
	repo := setupTestRepo(t)
	next, err := repo.NextPending(context.Background())
	if err != nil {
		t.Fatalf("NextPending failed: %v", err)
	}
	if next != nil {
		t.Errorf("NextPending on empty queue = %+v, want nil", next)
	}
}

func TestComplete_StoresResult(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	job, _ := NewJob(TypeAnalyzeSilence, "vid-1", AnalyzeSilencePayload{Input: "/a.mp4", ThresholdDB: -30})
	if err := repo.Create(ctx, job); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	result, _ := json.Marshal(SilenceResult{})
	if err := repo.Complete(ctx, job.ID, result); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	got, _ := repo.Get(ctx, job.ID)
	if got.Status != StatusCompleted {
		t.Errorf("status = %s, want %s", got.Status, StatusCompleted)
	}
	if got.Progress != 100 {
		t.Errorf("progress = %d, want 100", got.Progress)
	}
	if string(got.Result) != string(result) {
		t.Errorf("result = %s, want %s", got.Result, result)
	}
}

func TestFail_RecordsError(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	job, _ := NewJob(TypeTranscribe, "", TranscribePayload{Input: "/a.wav", Model: "base"})
	if err := repo.Create(ctx, job); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := repo.Fail(ctx, job.ID, "whisper exited 1"); err != nil {
		t.Fatalf("Fail failed: %v", err)
	}

	got, _ := repo.Get(ctx, job.ID)
	if got.Status != StatusFailed {
		t.Errorf("status = %s, want %s", got.Status, StatusFailed)
	}
	if got.Error != "whisper exited 1" {
		t.Errorf("error = %q", got.Error)
	}
}

func TestList_NewestFirstWithLimit(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	var last string
	for i := 0; i < 5; i++ {
		job, _ := NewJob(TypeTrim, "", TrimPayload{Input: "/a.mp4", Output: "/b.mp4", Start: 0, End: 1})
		job.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		if err := repo.Create(ctx, job); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		last = job.ID
	}

	jobs, err := repo.List(ctx, 3)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(jobs) != 3 {
		t.Fatalf("List returned %d jobs, want 3", len(jobs))
	}
	if jobs[0].ID != last {
		t.Errorf("first listed job = %s, want newest %s", jobs[0].ID, last)
	}
}

func TestUpdateProgress(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	job, _ := NewJob(TypeExport, "", ExportPayload{Input: "/a.mp4", Output: "/b.mp4", Quality: "medium"})
	if err := repo.Create(ctx, job); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := repo.UpdateProgress(ctx, job.ID, 40); err != nil {
		t.Fatalf("UpdateProgress failed: %v", err)
	}
	got, _ := repo.Get(ctx, job.ID)
	if got.Progress != 40 {
		t.Errorf("progress = %d, want 40", got.Progress)
	}
}
