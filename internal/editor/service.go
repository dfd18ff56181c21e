// Package editor orchestrates project state, undo history, and
// persistence behind a single mutex. Every mutation applies the change,
// records an undo action, and saves, so the on-disk state never trails
// the UI by more than one failed write.
package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/clipflow/clipflow-engine/internal/history"
	"github.com/clipflow/clipflow-engine/internal/logging"
	"github.com/clipflow/clipflow-engine/internal/media"
	"github.com/clipflow/clipflow-engine/internal/project"
)

var (
	ErrNoProject       = errors.New("no current project")
	ErrProjectNotFound = errors.New("project not found")
	ErrVideoNotFound   = errors.New("video not found in current project")
)

// Events receives editor notifications. A nil Events drops them.
type Events interface {
	Publish(event string, payload any)
}

// Service owns the in-memory editor state. The history store is not
// safe for concurrent use; the service mutex is the only thing allowed
// to touch it.
type Service struct {
	mu          sync.Mutex
	persistence *project.Persistence
	history     *history.Store
	backend     media.Backend
	events      Events
	logger      *slog.Logger

	state   project.AppState
	dirty   bool
	restart chan struct{}
}

// New loads the persisted state and returns a ready service. Loading
// never fails; corrupt state degrades to defaults.
func New(ctx context.Context, p *project.Persistence, h *history.Store, backend media.Backend, events Events, logger *slog.Logger) *Service {
	return &Service{
		persistence: p,
		history:     h,
		backend:     backend,
		events:      events,
		logger:      logger.With("component", "editor"),
		state:       p.LoadState(ctx),
		restart:     make(chan struct{}, 1),
	}
}

// State returns a deep copy of the current editor state.
func (s *Service) State() project.AppState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// ReplaceState swaps in a full state pushed by the UI and persists it.
// History is untouched; a bulk sync is not an undoable edit.
func (s *Service) ReplaceState(ctx context.Context, st project.AppState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	oldInterval := s.state.Settings.AutoSaveInterval
	s.state = st.Clone()
	s.dirty = true
	if err := s.saveLocked(ctx); err != nil {
		return err
	}
	if s.state.Settings.AutoSaveInterval != oldInterval {
		s.signalRestart()
	}
	return nil
}

func (s *Service) Settings() project.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Settings
}

// ImportVideos probes each file and appends it to the current project,
// creating one when none is open. Probe failures import the file anyway
// with a zero duration so the user can still work with it.
func (s *Service) ImportVideos(ctx context.Context, paths []string) ([]project.VideoRef, error) {
	if len(paths) == 0 {
		return nil, errors.New("no paths to import")
	}

	// Probing shells out to ffprobe; keep it outside the lock.
	refs := make([]project.VideoRef, 0, len(paths))
	for _, path := range paths {
		refs = append(refs, s.probeVideo(ctx, path))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.ensureCurrentLocked()
	current.Videos = append(current.Videos, refs...)
	s.history.Push(history.ImportAction{Videos: refs})
	s.dirty = true

	if err := s.saveLocked(ctx); err != nil {
		return nil, err
	}
	s.publish("history_changed", s.history.GetState())
	s.logger.Info("imported videos", "count", len(refs), "project_id", current.ID)
	return refs, nil
}

func (s *Service) probeVideo(ctx context.Context, path string) project.VideoRef {
	var size int64
	if info, err := os.Stat(path); err != nil {
		s.logger.Warn("failed to stat video", "path", logging.SanitizePath(path), "error", err)
	} else {
		size = info.Size()
	}

	duration, err := s.backend.Duration(ctx, path)
	if err != nil {
		s.logger.Warn("failed to probe duration", "path", logging.SanitizePath(path), "error", err)
		duration = 0
	}

	return project.VideoRef{
		ID:       project.NewID(),
		Name:     filepath.Base(path),
		Path:     path,
		Duration: duration,
		Size:     size,
		Format:   strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), "."),
		Status:   project.StatusReady,
	}
}

// RecordExport pushes an export onto the history so it can be undone as
// a step, even though the exported file itself is never touched.
func (s *Service) RecordExport(settings project.ExportSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.CurrentProject == nil {
		return ErrNoProject
	}
	videos := append([]project.VideoRef(nil), s.state.CurrentProject.Videos...)
	s.history.Push(history.ExportAction{Videos: videos, Settings: settings})
	s.publish("history_changed", s.history.GetState())
	return nil
}

// UpdateSettings merges the patch, persists the result, and records the
// change in history. Changing the auto-save interval restarts the
// auto-save loop.
func (s *Service) UpdateSettings(ctx context.Context, patch project.SettingsPatch) (project.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	old := s.state.Settings
	merged, err := s.persistence.SaveSettings(ctx, patch)
	if err != nil {
		return old, err
	}
	s.state.Settings = merged
	s.history.Push(history.SettingsChangeAction{OldSettings: old, NewSettings: merged})
	s.publish("history_changed", s.history.GetState())

	if old.AutoSaveInterval != merged.AutoSaveInterval {
		s.signalRestart()
	}
	return merged, nil
}

// ApplySilenceEdit replaces a video's state after silence removal and
// records the original so the edit can be undone.
func (s *Service) ApplySilenceEdit(ctx context.Context, videoID string, updated project.VideoRef) (project.VideoRef, error) {
	return s.applyEdit(ctx, videoID, updated, func(original project.VideoRef) history.Action {
		return history.SilenceEditAction{VideoID: videoID, OriginalState: original}
	})
}

// ApplyFillerEdit replaces a video's state after filler-word removal
// and records the original so the edit can be undone.
func (s *Service) ApplyFillerEdit(ctx context.Context, videoID string, updated project.VideoRef) (project.VideoRef, error) {
	return s.applyEdit(ctx, videoID, updated, func(original project.VideoRef) history.Action {
		return history.FillerEditAction{VideoID: videoID, OriginalState: original}
	})
}

func (s *Service) applyEdit(ctx context.Context, videoID string, updated project.VideoRef, action func(original project.VideoRef) history.Action) (project.VideoRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.CurrentProject == nil {
		return project.VideoRef{}, ErrNoProject
	}
	videos := s.state.CurrentProject.Videos
	for i := range videos {
		if videos[i].ID != videoID {
			continue
		}
		original := videos[i]
		updated.ID = videoID
		videos[i] = updated
		s.history.Push(action(original))
		s.dirty = true
		if err := s.saveLocked(ctx); err != nil {
			return project.VideoRef{}, err
		}
		s.publish("history_changed", s.history.GetState())
		return updated, nil
	}
	return project.VideoRef{}, fmt.Errorf("%w: %s", ErrVideoNotFound, videoID)
}

// Undo steps the cursor back and returns the action now current. The
// engine does not reverse the edit itself; the UI interprets the
// returned action. At the bottom of the stack it reports ok=false.
func (s *Service) Undo() (history.Action, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.history.Undo()
	if ok {
		s.publish("history_changed", s.history.GetState())
	}
	return a, ok
}

// Redo steps the cursor forward, mirroring Undo.
func (s *Service) Redo() (history.Action, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.history.Redo()
	if ok {
		s.publish("history_changed", s.history.GetState())
	}
	return a, ok
}

func (s *Service) ClearHistory() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history.Clear()
	s.publish("history_changed", s.history.GetState())
}

func (s *Service) HistoryState() history.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.GetState()
}

// CreateProject saves a new project and makes it current.
func (s *Service) CreateProject(ctx context.Context, name string) (project.Project, error) {
	if name == "" {
		name = "Untitled Project"
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.flushDirtyLocked(ctx)
	p := project.NewProject(name)
	if err := s.persistence.SaveProject(ctx, p); err != nil {
		return project.Project{}, err
	}
	if _, err := s.persistence.SetCurrentProject(ctx, p.ID); err != nil {
		return project.Project{}, err
	}
	s.reloadLocked(ctx)
	s.logger.Info("created project", "project_id", p.ID, "name", name)
	return *p, nil
}

// SaveProject upserts a project by ID.
func (s *Service) SaveProject(ctx context.Context, p project.Project) (project.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.flushDirtyLocked(ctx)
	if p.ID == "" {
		p.ID = project.NewID()
	}
	if err := s.persistence.SaveProject(ctx, &p); err != nil {
		return project.Project{}, err
	}
	s.reloadLocked(ctx)
	return p, nil
}

// LoadProject returns a stored project without making it current.
func (s *Service) LoadProject(ctx context.Context, id string) (project.Project, error) {
	p, err := s.persistence.LoadProject(ctx, id)
	if err != nil {
		return project.Project{}, err
	}
	if p == nil {
		return project.Project{}, ErrProjectNotFound
	}
	return *p, nil
}

func (s *Service) DeleteProject(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.flushDirtyLocked(ctx)
	if err := s.persistence.DeleteProject(ctx, id); err != nil {
		return err
	}
	s.reloadLocked(ctx)
	s.logger.Info("deleted project", "project_id", id)
	return nil
}

func (s *Service) SetCurrentProject(ctx context.Context, id string) (project.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.flushDirtyLocked(ctx)
	p, err := s.persistence.SetCurrentProject(ctx, id)
	if err != nil {
		return project.Project{}, err
	}
	if p == nil {
		return project.Project{}, ErrProjectNotFound
	}
	s.reloadLocked(ctx)
	return *p, nil
}

// Projects lists all saved projects.
func (s *Service) Projects() []project.Project {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone().Projects
}

// FindVideo looks up an imported video by ID, checking the current
// project first and then every saved project.
func (s *Service) FindVideo(id string) (project.VideoRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.CurrentProject != nil {
		for _, v := range s.state.CurrentProject.Videos {
			if v.ID == id {
				return v, nil
			}
		}
	}
	for _, p := range s.state.Projects {
		for _, v := range p.Videos {
			if v.ID == id {
				return v, nil
			}
		}
	}
	return project.VideoRef{}, fmt.Errorf("%w: %s", ErrVideoNotFound, id)
}

// CheckpointBackup snapshots the current project into the crash slot.
// With no project open it does nothing.
func (s *Service) CheckpointBackup(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.checkpointLocked(ctx)
}

func (s *Service) checkpointLocked(ctx context.Context) error {
	if s.state.CurrentProject == nil {
		return nil
	}
	snapshot := s.state.CurrentProject.Clone()
	return s.persistence.CreateBackup(ctx, &snapshot)
}

// RestoreFromBackup recovers the crash snapshot, saves it as a project,
// and makes it current. It returns nil when no usable backup exists.
func (s *Service) RestoreFromBackup(ctx context.Context) (*project.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.persistence.RestoreFromBackup(ctx)
	if p == nil {
		return nil, nil
	}
	s.flushDirtyLocked(ctx)
	if err := s.persistence.SaveProject(ctx, p); err != nil {
		return nil, err
	}
	if _, err := s.persistence.SetCurrentProject(ctx, p.ID); err != nil {
		return nil, err
	}
	s.reloadLocked(ctx)
	s.logger.Info("restored project from backup", "project_id", p.ID)
	restored := *p
	return &restored, nil
}

func (s *Service) ClearBackup(ctx context.Context) error {
	return s.persistence.ClearBackup(ctx)
}

// Run drives the auto-save loop until the context is cancelled. Each
// tick saves unsaved changes and refreshes the crash backup. A zero
// interval disables ticking until the settings change again.
func (s *Service) Run(ctx context.Context) {
	for {
		interval := s.autosaveInterval()
		if interval <= 0 {
			s.logger.Info("auto-save disabled")
			select {
			case <-ctx.Done():
				return
			case <-s.restart:
				continue
			}
		}

		s.logger.Info("auto-save enabled", "interval", interval.String())
		ticker := time.NewTicker(interval)
	tickLoop:
		for {
			select {
			case <-ctx.Done():
				ticker.Stop()
				return
			case <-s.restart:
				ticker.Stop()
				break tickLoop
			case <-ticker.C:
				s.autosave(ctx)
			}
		}
	}
}

func (s *Service) autosave(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dirty {
		if err := s.saveLocked(ctx); err != nil {
			s.logger.Error("auto-save failed", "error", err)
		}
	}
	if err := s.checkpointLocked(ctx); err != nil {
		s.logger.Warn("checkpoint backup failed", "error", err)
	}
}

// Flush writes the state out synchronously. Called at shutdown.
func (s *Service) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(ctx)
}

func (s *Service) autosaveInterval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Duration(s.state.Settings.AutoSaveInterval) * time.Second
}

func (s *Service) signalRestart() {
	select {
	case s.restart <- struct{}{}:
	default:
	}
}

func (s *Service) ensureCurrentLocked() *project.Project {
	if s.state.CurrentProject == nil {
		p := project.NewProject("Untitled Project")
		s.state.CurrentProject = p
		s.state.Projects = append(s.state.Projects, *p)
		s.logger.Info("created project for import", "project_id", p.ID)
	}
	return s.state.CurrentProject
}

// saveLocked syncs the current project into the project list and writes
// everything out. On failure the dirty flag stays set so the auto-save
// loop retries.
func (s *Service) saveLocked(ctx context.Context) error {
	if current := s.state.CurrentProject; current != nil {
		current.UpdatedAt = time.Now().UTC()
		found := false
		for i := range s.state.Projects {
			if s.state.Projects[i].ID == current.ID {
				s.state.Projects[i] = current.Clone()
				found = true
				break
			}
		}
		if !found {
			s.state.Projects = append(s.state.Projects, current.Clone())
		}
	}

	if err := s.persistence.SaveState(ctx, s.state); err != nil {
		return err
	}
	s.dirty = false
	s.publish("state_saved", map[string]any{"saved_at": time.Now().UTC().Format(time.RFC3339)})
	return nil
}

func (s *Service) reloadLocked(ctx context.Context) {
	s.state = s.persistence.LoadState(ctx)
	s.dirty = false
}

// flushDirtyLocked writes out unsaved changes before an operation that
// reloads state from storage, so a previously failed save is not lost.
func (s *Service) flushDirtyLocked(ctx context.Context) {
	if !s.dirty {
		return
	}
	if err := s.saveLocked(ctx); err != nil {
		s.logger.Warn("failed to save pending changes", "error", err)
	}
}

func (s *Service) publish(event string, payload any) {
	if s.events == nil {
		return
	}
	s.events.Publish(event, payload)
}
