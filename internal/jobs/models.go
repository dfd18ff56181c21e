// Package jobs queues background media work in SQLite and executes it
// one job at a time. The queue survives restarts; anything left in
// running state by a crash is failed on the next startup.
package jobs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/clipflow/clipflow-engine/internal/media"
	"github.com/clipflow/clipflow-engine/internal/project"
)

const (
	TypeTrim           = "trim"
	TypeExtractAudio   = "extract_audio"
	TypeAnalyzeSilence = "analyze_silence"
	TypeExport         = "export"
	TypeTranscribe     = "transcribe"
)

const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

type Job struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Status    string          `json:"status"`
	VideoID   string          `json:"video_id,omitempty"`
	Payload   json.RawMessage `json:"payload"`
	Result    json.RawMessage `json:"result,omitempty"`
	Progress  int             `json:"progress"`
	Error     string          `json:"error,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// NewJob builds a pending job. The payload is serialized immediately so
// a bad payload fails at enqueue time, not when the runner picks it up.
func NewJob(jobType, videoID string, payload any) (*Job, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", jobType, err)
	}
	now := time.Now().UTC()
	return &Job{
		ID:        project.NewID(),
		Type:      jobType,
		Status:    StatusPending,
		VideoID:   videoID,
		Payload:   data,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

type TrimPayload struct {
	Input  string  `json:"input"`
	Output string  `json:"output"`
	Start  float64 `json:"start"`
	End    float64 `json:"end"`
}

type ExtractAudioPayload struct {
	Input  string `json:"input"`
	Output string `json:"output"`
}

type AnalyzeSilencePayload struct {
	Input       string  `json:"input"`
	ThresholdDB float64 `json:"threshold_db"`
}

type ExportPayload struct {
	Input   string `json:"input"`
	Output  string `json:"output"`
	Quality string `json:"quality"`
}

type TranscribePayload struct {
	Input string `json:"input"`
	Model string `json:"model"`
}

// FileResult is the stored result for jobs that produce a file.
type FileResult struct {
	Output string `json:"output"`
}

// SilenceResult is the stored result of an analyze_silence job.
type SilenceResult struct {
	Segments []media.Segment `json:"segments"`
}
