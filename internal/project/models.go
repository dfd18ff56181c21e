// Package project defines the editor's persistent data model and the
// persistence layer over the key/value store.
package project

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Video lifecycle states.
const (
	StatusImporting  = "importing"
	StatusReady      = "ready"
	StatusProcessing = "processing"
	StatusDone       = "done"
)

// Settings defaults applied on load when a field was never persisted.
const (
	DefaultTheme              = "dark"
	DefaultAutoSaveInterval   = 60 // seconds
	DefaultTranscriptionModel = "base"
)

// VideoRef describes one imported media file.
type VideoRef struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Path     string  `json:"path"`
	Duration float64 `json:"duration"`
	Size     int64   `json:"size,omitempty"`
	Format   string  `json:"format,omitempty"`
	Status   string  `json:"status"`
}

type Project struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Videos    []VideoRef `json:"videos"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Settings are the persisted user preferences. AutoSaveInterval is in
// seconds; zero disables auto-save.
type Settings struct {
	Theme              string `json:"theme"`
	AutoSaveInterval   int    `json:"auto_save_interval"`
	ShowAdvanced       bool   `json:"show_advanced"`
	FFmpegPath         string `json:"ffmpeg_path,omitempty"`
	WhisperPath        string `json:"whisper_path,omitempty"`
	TranscriptionModel string `json:"transcription_model"`
}

// SettingsPatch is a partial settings update. Nil fields keep the
// stored value.
type SettingsPatch struct {
	Theme              *string `json:"theme,omitempty"`
	AutoSaveInterval   *int    `json:"auto_save_interval,omitempty"`
	ShowAdvanced       *bool   `json:"show_advanced,omitempty"`
	FFmpegPath         *string `json:"ffmpeg_path,omitempty"`
	WhisperPath        *string `json:"whisper_path,omitempty"`
	TranscriptionModel *string `json:"transcription_model,omitempty"`
}

// ExportSettings selects the container and quality for an export.
type ExportSettings struct {
	Format  string `json:"format"`
	Quality string `json:"quality"`
}

// AppState is the editor state persisted wholesale.
type AppState struct {
	CurrentProject *Project  `json:"current_project,omitempty"`
	Projects       []Project `json:"projects"`
	Settings       Settings  `json:"settings"`
}

// CrashBackup is the single-slot recovery snapshot. Timestamp is epoch
// milliseconds.
type CrashBackup struct {
	State     Project `json:"state"`
	Timestamp int64   `json:"timestamp"`
	Version   string  `json:"version"`
}

func DefaultSettings() Settings {
	return Settings{
		Theme:              DefaultTheme,
		AutoSaveInterval:   DefaultAutoSaveInterval,
		ShowAdvanced:       false,
		TranscriptionModel: DefaultTranscriptionModel,
	}
}

func NewProject(name string) *Project {
	now := time.Now().UTC()
	return &Project{
		ID:        NewID(),
		Name:      name,
		Videos:    []VideoRef{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func NewID() string {
	return uuid.NewString()
}

// Clone returns a copy with an independent Videos slice.
func (p Project) Clone() Project {
	out := p
	out.Videos = append([]VideoRef(nil), p.Videos...)
	return out
}

// Clone returns a deep copy safe to hand out without holding locks.
func (a AppState) Clone() AppState {
	out := a
	if a.CurrentProject != nil {
		cp := a.CurrentProject.Clone()
		out.CurrentProject = &cp
	}
	out.Projects = make([]Project, len(a.Projects))
	for i, p := range a.Projects {
		out.Projects[i] = p.Clone()
	}
	return out
}

var VideoExtensions = map[string]bool{
	".mp4":  true,
	".mov":  true,
	".mkv":  true,
	".avi":  true,
	".webm": true,
}

func IsVideoFile(filename string) bool {
	return VideoExtensions[strings.ToLower(filepath.Ext(filename))]
}
