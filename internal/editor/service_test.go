package editor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/clipflow/clipflow-engine/internal/db"
	"github.com/clipflow/clipflow-engine/internal/history"
	"github.com/clipflow/clipflow-engine/internal/media"
	"github.com/clipflow/clipflow-engine/internal/project"
	"github.com/clipflow/clipflow-engine/internal/store"
)

type fakeBackend struct {
	duration float64
	err      error
}

func (f *fakeBackend) Trim(ctx context.Context, input, output string, start, end float64) error {
	return f.err
}

func (f *fakeBackend) ExtractAudio(ctx context.Context, input, output string) error {
	return f.err
}

func (f *fakeBackend) AnalyzeSilence(ctx context.Context, path string, thresholdDB float64) ([]media.Segment, error) {
	return nil, f.err
}

func (f *fakeBackend) Export(ctx context.Context, input, output, quality string) error {
	return f.err
}

func (f *fakeBackend) Duration(ctx context.Context, path string) (float64, error) {
	return f.duration, f.err
}

type fakeEvents struct {
	mu     sync.Mutex
	events []string
}

func (f *fakeEvents) Publish(event string, payload any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}

func (f *fakeEvents) has(event string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.events {
		if e == event {
			return true
		}
	}
	return false
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupTestService(t *testing.T) (*Service, *project.Persistence, *fakeEvents) {
	t.Helper()
	database, err := db.New(filepath.Join(t.TempDir(), "test.db"), nil)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	logger := quietLogger()
	persistence := project.NewPersistence(store.New(database.Conn(), logger), "1.3.0", logger)
	events := &fakeEvents{}
	svc := New(context.Background(), persistence, history.NewStore(50), &fakeBackend{duration: 12.5}, events, logger)
	return svc, persistence, events
}

func writeTestVideo(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("not really a video"), 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}
	return path
}

func TestImportVideos_CreatesProjectAndRecordsHistory(t *testing.T) {
	svc, persistence, events := setupTestService(t)
	ctx := context.Background()

	refs, err := svc.ImportVideos(ctx, []string{writeTestVideo(t, "a.mp4"), writeTestVideo(t, "b.mov")})
	if err != nil {
		t.Fatalf("ImportVideos failed: %v", err)
	}
	if len(refs) != 2 {
		t.Fatalf("imported %d videos, want 2", len(refs))
	}
	if refs[0].Duration != 12.5 {
		t.Errorf("duration = %g, want probed 12.5", refs[0].Duration)
	}
	if refs[0].Status != project.StatusReady {
		t.Errorf("status = %s, want %s", refs[0].Status, project.StatusReady)
	}
	if refs[1].Format != "mov" {
		t.Errorf("format = %q, want mov", refs[1].Format)
	}

	state := svc.State()
	if state.CurrentProject == nil {
		t.Fatal("import did not create a project")
	}
	if len(state.CurrentProject.Videos) != 2 {
		t.Errorf("project has %d videos, want 2", len(state.CurrentProject.Videos))
	}

	// A single push leaves nothing to undo back to.
	hs := svc.HistoryState()
	if hs.CanUndo {
		t.Error("CanUndo = true after first action")
	}
	if hs.HistorySize != 1 {
		t.Errorf("HistorySize = %d, want 1", hs.HistorySize)
	}

	if !events.has("history_changed") || !events.has("state_saved") {
		t.Errorf("events = %v", events.events)
	}

	// The save must be visible to a fresh load.
	reloaded := persistence.LoadState(ctx)
	if reloaded.CurrentProject == nil || len(reloaded.CurrentProject.Videos) != 2 {
		t.Errorf("persisted state = %+v", reloaded.CurrentProject)
	}
}

func TestImportVideos_AppendsToCurrentProject(t *testing.T) {
	svc, _, _ := setupTestService(t)
	ctx := context.Background()

	if _, err := svc.CreateProject(ctx, "My Edit"); err != nil {
		t.Fatalf("CreateProject failed: %v", err)
	}
	if _, err := svc.ImportVideos(ctx, []string{writeTestVideo(t, "a.mp4")}); err != nil {
		t.Fatalf("ImportVideos failed: %v", err)
	}

	state := svc.State()
	if state.CurrentProject.Name != "My Edit" {
		t.Errorf("import created a new project instead of appending")
	}
	if len(state.Projects) != 1 {
		t.Errorf("projects = %d, want 1", len(state.Projects))
	}
}

func TestImportVideos_Empty(t *testing.T) {
	svc, _, _ := setupTestService(t)
	if _, err := svc.ImportVideos(context.Background(), nil); err == nil {
		t.Error("expected error for empty path list")
	}
}

func TestApplySilenceEdit_CapturesOriginalState(t *testing.T) {
	svc, _, _ := setupTestService(t)
	ctx := context.Background()

	refs, err := svc.ImportVideos(ctx, []string{writeTestVideo(t, "talk.mp4")})
	if err != nil {
		t.Fatalf("ImportVideos failed: %v", err)
	}
	original := refs[0]

	updated := original
	updated.Duration = 8.25
	updated.Status = project.StatusDone
	got, err := svc.ApplySilenceEdit(ctx, original.ID, updated)
	if err != nil {
		t.Fatalf("ApplySilenceEdit failed: %v", err)
	}
	if got.Duration != 8.25 {
		t.Errorf("applied duration = %g", got.Duration)
	}

	state := svc.State()
	if state.CurrentProject.Videos[0].Duration != 8.25 {
		t.Errorf("project video duration = %g, want 8.25", state.CurrentProject.Videos[0].Duration)
	}

	// Undo then redo surfaces the edit action carrying the original.
	if _, ok := svc.Undo(); !ok {
		t.Fatal("Undo failed with two actions on the stack")
	}
	a, ok := svc.Redo()
	if !ok {
		t.Fatal("Redo failed")
	}
	edit, ok := a.(history.SilenceEditAction)
	if !ok {
		t.Fatalf("redone action type = %T, want SilenceEditAction", a)
	}
	if edit.OriginalState.Duration != 12.5 {
		t.Errorf("original duration = %g, want 12.5", edit.OriginalState.Duration)
	}
}

func TestApplyFillerEdit_UnknownVideo(t *testing.T) {
	svc, _, _ := setupTestService(t)
	ctx := context.Background()

	if _, err := svc.ImportVideos(ctx, []string{writeTestVideo(t, "a.mp4")}); err != nil {
		t.Fatalf("ImportVideos failed: %v", err)
	}
	_, err := svc.ApplyFillerEdit(ctx, "missing", project.VideoRef{})
	if !errors.Is(err, ErrVideoNotFound) {
		t.Errorf("error = %v, want ErrVideoNotFound", err)
	}
}

func TestApplySilenceEdit_NoProject(t *testing.T) {
	svc, _, _ := setupTestService(t)
	_, err := svc.ApplySilenceEdit(context.Background(), "v1", project.VideoRef{})
	if !errors.Is(err, ErrNoProject) {
		t.Errorf("error = %v, want ErrNoProject", err)
	}
}

func TestRecordExport(t *testing.T) {
	svc, _, _ := setupTestService(t)
	ctx := context.Background()

	if err := svc.RecordExport(project.ExportSettings{Format: "mp4", Quality: "high"}); !errors.Is(err, ErrNoProject) {
		t.Errorf("error = %v, want ErrNoProject", err)
	}

	if _, err := svc.ImportVideos(ctx, []string{writeTestVideo(t, "a.mp4")}); err != nil {
		t.Fatalf("ImportVideos failed: %v", err)
	}
	if err := svc.RecordExport(project.ExportSettings{Format: "mp4", Quality: "high"}); err != nil {
		t.Fatalf("RecordExport failed: %v", err)
	}
	if hs := svc.HistoryState(); hs.HistorySize != 2 {
		t.Errorf("HistorySize = %d, want 2", hs.HistorySize)
	}
}

func TestUpdateSettings_RecordsChangeAndSignalsRestart(t *testing.T) {
	svc, _, _ := setupTestService(t)
	ctx := context.Background()

	interval := 0
	merged, err := svc.UpdateSettings(ctx, project.SettingsPatch{AutoSaveInterval: &interval})
	if err != nil {
		t.Fatalf("UpdateSettings failed: %v", err)
	}
	if merged.AutoSaveInterval != 0 {
		t.Errorf("AutoSaveInterval = %d, want 0", merged.AutoSaveInterval)
	}
	if merged.Theme != project.DefaultTheme {
		t.Errorf("Theme = %q, want untouched default", merged.Theme)
	}

	select {
	case <-svc.restart:
	default:
		t.Error("interval change did not signal the auto-save loop")
	}

	a, ok := svc.history.Undo()
	_ = a
	if ok {
		t.Error("single settings change should not be undoable past the bottom")
	}
	if hs := svc.HistoryState(); hs.HistorySize != 1 {
		t.Errorf("HistorySize = %d, want 1", hs.HistorySize)
	}

	// A patch that leaves the interval alone must not signal.
	theme := "light"
	if _, err := svc.UpdateSettings(ctx, project.SettingsPatch{Theme: &theme}); err != nil {
		t.Fatalf("UpdateSettings failed: %v", err)
	}
	select {
	case <-svc.restart:
		t.Error("theme change signalled an auto-save restart")
	default:
	}
}

func TestUndoRedo_SoftFail(t *testing.T) {
	svc, _, _ := setupTestService(t)

	if _, ok := svc.Undo(); ok {
		t.Error("Undo on empty history reported ok")
	}
	if _, ok := svc.Redo(); ok {
		t.Error("Redo on empty history reported ok")
	}
}

func TestClearHistory(t *testing.T) {
	svc, _, _ := setupTestService(t)
	ctx := context.Background()

	svc.ImportVideos(ctx, []string{writeTestVideo(t, "a.mp4")})
	svc.ClearHistory()
	if hs := svc.HistoryState(); hs.HistorySize != 0 || hs.CanUndo || hs.CanRedo {
		t.Errorf("history after clear = %+v", hs)
	}
}

func TestProjectLifecycle(t *testing.T) {
	svc, _, _ := setupTestService(t)
	ctx := context.Background()

	created, err := svc.CreateProject(ctx, "Episode 1")
	if err != nil {
		t.Fatalf("CreateProject failed: %v", err)
	}

	second, err := svc.CreateProject(ctx, "Episode 2")
	if err != nil {
		t.Fatalf("CreateProject failed: %v", err)
	}
	if got := svc.State().CurrentProject; got == nil || got.ID != second.ID {
		t.Errorf("current project = %+v, want %s", got, second.ID)
	}

	switched, err := svc.SetCurrentProject(ctx, created.ID)
	if err != nil {
		t.Fatalf("SetCurrentProject failed: %v", err)
	}
	if switched.Name != "Episode 1" {
		t.Errorf("switched to %q", switched.Name)
	}

	loaded, err := svc.LoadProject(ctx, second.ID)
	if err != nil {
		t.Fatalf("LoadProject failed: %v", err)
	}
	if loaded.Name != "Episode 2" {
		t.Errorf("loaded %q", loaded.Name)
	}

	if _, err := svc.LoadProject(ctx, "missing"); !errors.Is(err, ErrProjectNotFound) {
		t.Errorf("LoadProject missing = %v, want ErrProjectNotFound", err)
	}
	if _, err := svc.SetCurrentProject(ctx, "missing"); !errors.Is(err, ErrProjectNotFound) {
		t.Errorf("SetCurrentProject missing = %v, want ErrProjectNotFound", err)
	}

	if err := svc.DeleteProject(ctx, created.ID); err != nil {
		t.Fatalf("DeleteProject failed: %v", err)
	}
	state := svc.State()
	if state.CurrentProject != nil {
		t.Error("deleting the current project did not clear it")
	}
	if len(state.Projects) != 1 {
		t.Errorf("projects after delete = %d, want 1", len(state.Projects))
	}

	renamed := second
	renamed.Name = "Episode 2 (final)"
	if _, err := svc.SaveProject(ctx, renamed); err != nil {
		t.Fatalf("SaveProject failed: %v", err)
	}
	if got := svc.Projects(); len(got) != 1 || got[0].Name != "Episode 2 (final)" {
		t.Errorf("projects = %+v", got)
	}
}

func TestBackupCycle(t *testing.T) {
	svc, _, _ := setupTestService(t)
	ctx := context.Background()

	// Nothing open: checkpoint is a no-op, restore finds nothing.
	if err := svc.CheckpointBackup(ctx); err != nil {
		t.Fatalf("CheckpointBackup failed: %v", err)
	}
	if p, err := svc.RestoreFromBackup(ctx); err != nil || p != nil {
		t.Fatalf("RestoreFromBackup = (%+v, %v), want (nil, nil)", p, err)
	}

	svc.ImportVideos(ctx, []string{writeTestVideo(t, "a.mp4")})
	projectID := svc.State().CurrentProject.ID

	if err := svc.CheckpointBackup(ctx); err != nil {
		t.Fatalf("CheckpointBackup failed: %v", err)
	}

	restored, err := svc.RestoreFromBackup(ctx)
	if err != nil {
		t.Fatalf("RestoreFromBackup failed: %v", err)
	}
	if restored == nil || restored.ID != projectID {
		t.Fatalf("restored = %+v, want project %s", restored, projectID)
	}
	if got := svc.State().CurrentProject; got == nil || got.ID != projectID {
		t.Error("restore did not make the project current")
	}

	if err := svc.ClearBackup(ctx); err != nil {
		t.Fatalf("ClearBackup failed: %v", err)
	}
	if p, _ := svc.RestoreFromBackup(ctx); p != nil {
		t.Errorf("restore after clear = %+v, want nil", p)
	}
}

func TestFlush_Persists(t *testing.T) {
	svc, persistence, _ := setupTestService(t)
	ctx := context.Background()

	svc.ImportVideos(ctx, []string{writeTestVideo(t, "a.mp4")})
	if err := svc.Flush(ctx); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	reloaded := persistence.LoadState(ctx)
	if reloaded.CurrentProject == nil || len(reloaded.CurrentProject.Videos) != 1 {
		t.Errorf("flushed state = %+v", reloaded.CurrentProject)
	}
}

func TestState_ReturnsCopy(t *testing.T) {
	svc, _, _ := setupTestService(t)
	ctx := context.Background()

	svc.ImportVideos(ctx, []string{writeTestVideo(t, "a.mp4")})

	state := svc.State()
	state.CurrentProject.Videos[0].Name = "tampered"
	state.CurrentProject.Name = "tampered"

	if got := svc.State(); got.CurrentProject.Videos[0].Name == "tampered" || got.CurrentProject.Name == "tampered" {
		t.Error("State exposed internal memory")
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	svc, _, _ := setupTestService(t)
	ctx := context.Background()

	// Disable ticking so Run parks on the restart channel.
	interval := 0
	if _, err := svc.UpdateSettings(ctx, project.SettingsPatch{AutoSaveInterval: &interval}); err != nil {
		t.Fatalf("UpdateSettings failed: %v", err)
	}
	// Drain the restart signal from the settings change.
	select {
	case <-svc.restart:
	default:
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		svc.Run(runCtx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
