package project

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/clipflow/clipflow-engine/internal/store"
)

// BackupMaxAge is how old a crash backup may be and still be offered
// for recovery.
const BackupMaxAge = 24 * time.Hour

// projectsDoc is the JSON shape stored under the projects key.
type projectsDoc struct {
	CurrentProject *Project  `json:"current_project,omitempty"`
	Projects       []Project `json:"projects"`
}

// Persistence reads and writes editor state through the key/value
// store. Load paths never fail: missing or malformed data degrades to
// defaults with a logged warning so the editor always starts.
type Persistence struct {
	store   *store.Store
	version string
	logger  *slog.Logger
}

func NewPersistence(s *store.Store, version string, logger *slog.Logger) *Persistence {
	return &Persistence{store: s, version: version, logger: logger}
}

// LoadState returns the persisted editor state, falling back to an
// empty state with default settings.
func (p *Persistence) LoadState(ctx context.Context) AppState {
	state := AppState{
		Projects: []Project{},
		Settings: p.LoadSettings(ctx),
	}

	doc, ok := p.loadProjectsDoc(ctx)
	if !ok {
		return state
	}
	state.CurrentProject = doc.CurrentProject
	if doc.Projects != nil {
		state.Projects = doc.Projects
	}
	return state
}

// SaveState persists the full editor state wholesale.
func (p *Persistence) SaveState(ctx context.Context, state AppState) error {
	doc := projectsDoc{
		CurrentProject: state.CurrentProject,
		Projects:       state.Projects,
	}
	if err := p.saveProjectsDoc(ctx, doc); err != nil {
		return err
	}

	data, err := json.Marshal(state.Settings)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	if err := p.store.Put(ctx, store.KeySettings, string(data)); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

// SaveProject inserts or updates a project by ID and refreshes the
// current-project pointer when it refers to the same project.
func (p *Persistence) SaveProject(ctx context.Context, proj *Project) error {
	now := time.Now().UTC()
	if proj.CreatedAt.IsZero() {
		proj.CreatedAt = now
	}
	proj.UpdatedAt = now

	doc, _ := p.loadProjectsDoc(ctx)

	found := false
	for i := range doc.Projects {
		if doc.Projects[i].ID == proj.ID {
			doc.Projects[i] = *proj
			found = true
			break
		}
	}
	if !found {
		doc.Projects = append(doc.Projects, *proj)
	}
	if doc.CurrentProject != nil && doc.CurrentProject.ID == proj.ID {
		doc.CurrentProject = proj
	}

	return p.saveProjectsDoc(ctx, doc)
}

// LoadProject returns the project with the given ID, or nil when it
// does not exist.
func (p *Persistence) LoadProject(ctx context.Context, id string) (*Project, error) {
	doc, _ := p.loadProjectsDoc(ctx)
	for i := range doc.Projects {
		if doc.Projects[i].ID == id {
			proj := doc.Projects[i]
			return &proj, nil
		}
	}
	return nil, nil
}

// DeleteProject removes a project. Deleting the current project also
// clears the current-project pointer.
func (p *Persistence) DeleteProject(ctx context.Context, id string) error {
	doc, _ := p.loadProjectsDoc(ctx)

	kept := doc.Projects[:0]
	for _, proj := range doc.Projects {
		if proj.ID != id {
			kept = append(kept, proj)
		}
	}
	doc.Projects = kept
	if doc.CurrentProject != nil && doc.CurrentProject.ID == id {
		doc.CurrentProject = nil
	}

	return p.saveProjectsDoc(ctx, doc)
}

// LoadAllProjects never fails; it returns an empty slice when nothing
// was persisted.
func (p *Persistence) LoadAllProjects(ctx context.Context) []Project {
	doc, ok := p.loadProjectsDoc(ctx)
	if !ok || doc.Projects == nil {
		return []Project{}
	}
	return doc.Projects
}

// SetCurrentProject points the editor at an already saved project.
func (p *Persistence) SetCurrentProject(ctx context.Context, id string) (*Project, error) {
	doc, _ := p.loadProjectsDoc(ctx)
	for i := range doc.Projects {
		if doc.Projects[i].ID == id {
			proj := doc.Projects[i]
			doc.CurrentProject = &proj
			if err := p.saveProjectsDoc(ctx, doc); err != nil {
				return nil, err
			}
			return &proj, nil
		}
	}
	return nil, nil
}

// LoadSettings returns the persisted settings merged field-by-field
// onto the defaults. A field absent from storage keeps its default; a
// field stored explicitly, including zero values, wins.
func (p *Persistence) LoadSettings(ctx context.Context) Settings {
	settings := DefaultSettings()

	raw, err := p.store.Get(ctx, store.KeySettings)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			p.logger.Warn("failed to load settings, using defaults", "error", err)
		}
		return settings
	}

	var patch SettingsPatch
	if err := json.Unmarshal([]byte(raw), &patch); err != nil {
		p.logger.Warn("settings data malformed, using defaults", "error", err)
		return settings
	}
	return applyPatch(settings, patch)
}

// SaveSettings merges a partial update onto the persisted settings and
// writes the result back.
func (p *Persistence) SaveSettings(ctx context.Context, patch SettingsPatch) (Settings, error) {
	merged := applyPatch(p.LoadSettings(ctx), patch)

	data, err := json.Marshal(merged)
	if err != nil {
		return merged, fmt.Errorf("failed to encode settings: %w", err)
	}
	if err := p.store.Put(ctx, store.KeySettings, string(data)); err != nil {
		return merged, fmt.Errorf("failed to save settings: %w", err)
	}
	return merged, nil
}

// CreateBackup overwrites the single crash-recovery slot.
func (p *Persistence) CreateBackup(ctx context.Context, proj *Project) error {
	backup := CrashBackup{
		State:     *proj,
		Timestamp: time.Now().UnixMilli(),
		Version:   p.version,
	}
	data, err := json.Marshal(backup)
	if err != nil {
		return fmt.Errorf("failed to encode backup: %w", err)
	}
	if err := p.store.Put(ctx, store.KeyBackup, string(data)); err != nil {
		return fmt.Errorf("failed to save backup: %w", err)
	}
	return nil
}

// RestoreFromBackup returns the backed-up project, or nil when no
// usable backup exists. Stale backups are left in place so the user
// can still recover them manually.
func (p *Persistence) RestoreFromBackup(ctx context.Context) *Project {
	raw, err := p.store.Get(ctx, store.KeyBackup)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			p.logger.Warn("failed to load backup", "error", err)
		}
		return nil
	}

	var backup CrashBackup
	if err := json.Unmarshal([]byte(raw), &backup); err != nil {
		p.logger.Warn("backup data malformed", "error", err)
		return nil
	}

	age := time.Since(time.UnixMilli(backup.Timestamp))
	if age > BackupMaxAge {
		p.logger.Info("backup expired, ignoring", "age", age.Truncate(time.Minute).String())
		return nil
	}

	state := backup.State
	return &state
}

// ClearBackup discards the crash-recovery slot.
func (p *Persistence) ClearBackup(ctx context.Context) error {
	return p.store.Delete(ctx, store.KeyBackup)
}

func (p *Persistence) loadProjectsDoc(ctx context.Context) (projectsDoc, bool) {
	raw, err := p.store.Get(ctx, store.KeyProjects)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			p.logger.Warn("failed to load projects, starting empty", "error", err)
		}
		return projectsDoc{}, false
	}

	var doc projectsDoc
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		p.logger.Warn("projects data malformed, starting empty", "error", err)
		return projectsDoc{}, false
	}
	return doc, true
}

func (p *Persistence) saveProjectsDoc(ctx context.Context, doc projectsDoc) error {
	if doc.Projects == nil {
		doc.Projects = []Project{}
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode projects: %w", err)
	}
	if err := p.store.Put(ctx, store.KeyProjects, string(data)); err != nil {
		return fmt.Errorf("failed to save projects: %w", err)
	}
	return nil
}

func applyPatch(s Settings, patch SettingsPatch) Settings {
	if patch.Theme != nil {
		s.Theme = *patch.Theme
	}
	if patch.AutoSaveInterval != nil {
		s.AutoSaveInterval = *patch.AutoSaveInterval
	}
	if patch.ShowAdvanced != nil {
		s.ShowAdvanced = *patch.ShowAdvanced
	}
	if patch.FFmpegPath != nil {
		s.FFmpegPath = *patch.FFmpegPath
	}
	if patch.WhisperPath != nil {
		s.WhisperPath = *patch.WhisperPath
	}
	if patch.TranscriptionModel != nil {
		s.TranscriptionModel = *patch.TranscriptionModel
	}
	return s
}
