package api

import (
	"encoding/json"
	"time"

	"github.com/clipflow/clipflow-engine/internal/assist"
	"github.com/clipflow/clipflow-engine/internal/export"
	"github.com/clipflow/clipflow-engine/internal/history"
	"github.com/clipflow/clipflow-engine/internal/jobs"
	"github.com/clipflow/clipflow-engine/internal/media"
	"github.com/clipflow/clipflow-engine/internal/project"
	"github.com/clipflow/clipflow-engine/internal/store"
	"github.com/clipflow/clipflow-engine/internal/transcribe"
)

type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	UptimeS  int64  `json:"uptime_s"`
	DeviceID string `json:"device_id"`
}

type StatusResponse struct {
	State          string         `json:"state"`
	LastError      string         `json:"last_error,omitempty"`
	CurrentProject string         `json:"current_project,omitempty"`
	ProjectsCount  int            `json:"projects_count"`
	VideosCount    int            `json:"videos_count"`
	JobsRunning    int            `json:"jobs_running"`
	ActiveJob      *JobResponse   `json:"active_job,omitempty"`
	History        history.State  `json:"history"`
	Tools          *ToolsResponse `json:"tools,omitempty"`
}

type ToolsResponse struct {
	HasMedia      bool   `json:"has_media"`
	HasTranscribe bool   `json:"has_transcribe"`
	LastProbeAt   string `json:"last_probe_at,omitempty"`
	ToolsAvail    int    `json:"tools_available"`
	ToolsTotal    int    `json:"tools_total"`
}

type ProjectResponse struct {
	ID        string             `json:"id"`
	Name      string             `json:"name"`
	Videos    []project.VideoRef `json:"videos"`
	CreatedAt string             `json:"created_at"`
	UpdatedAt string             `json:"updated_at"`
}

type ProjectsResponse struct {
	Projects []ProjectResponse `json:"projects"`
}

type CreateProjectRequest struct {
	Name string `json:"name"`
}

type SetCurrentProjectRequest struct {
	ID string `json:"id"`
}

type StateResponse struct {
	CurrentProject *ProjectResponse  `json:"current_project,omitempty"`
	Projects       []ProjectResponse `json:"projects"`
	Settings       project.Settings  `json:"settings"`
}

type ImportVideosRequest struct {
	Paths []string `json:"paths"`
}

type ImportVideosResponse struct {
	Videos []project.VideoRef `json:"videos"`
}

type HistoryActionResponse struct {
	Applied bool            `json:"applied"`
	Action  json.RawMessage `json:"action,omitempty"`
	State   history.State   `json:"state"`
}

type JobResponse struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Status    string          `json:"status"`
	VideoID   string          `json:"video_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
	Progress  int             `json:"progress"`
	Error     string          `json:"error,omitempty"`
	CreatedAt string          `json:"created_at"`
	UpdatedAt string          `json:"updated_at"`
}

type JobsResponse struct {
	Jobs []JobResponse `json:"jobs"`
}

type EnqueueResponse struct {
	JobID string `json:"job_id"`
}

type TrimRequest struct {
	VideoID string  `json:"video_id,omitempty"`
	Input   string  `json:"input"`
	Output  string  `json:"output"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
}

type ExtractAudioRequest struct {
	VideoID string `json:"video_id,omitempty"`
	Input   string `json:"input"`
	Output  string `json:"output"`
}

type AnalyzeSilenceRequest struct {
	VideoID     string  `json:"video_id,omitempty"`
	Input       string  `json:"input"`
	ThresholdDB float64 `json:"threshold_db,omitempty"`
}

type ExportJobRequest struct {
	VideoID string `json:"video_id,omitempty"`
	Input   string `json:"input"`
	Output  string `json:"output"`
	Quality string `json:"quality,omitempty"`
}

type TranscribeRequest struct {
	VideoID string `json:"video_id,omitempty"`
	Input   string `json:"input"`
	Model   string `json:"model,omitempty"`
}

type DurationResponse struct {
	DurationS float64 `json:"duration_s"`
}

type ModelsResponse struct {
	Models []transcribe.ModelInfo `json:"models"`
}

type AssistCompleteRequest struct {
	Messages    []assist.Message `json:"messages"`
	Temperature float32          `json:"temperature,omitempty"`
	MaxTokens   int              `json:"max_tokens,omitempty"`
}

type AssistCompleteResponse struct {
	Content string       `json:"content"`
	Usage   assist.Usage `json:"usage"`
}

type CutListRequest struct {
	VideoID   string          `json:"video_id"`
	Silences  []media.Segment `json:"silences"`
	FrameRate float64         `json:"frame_rate,omitempty"`
	Title     string          `json:"title,omitempty"`
}

type CutListResponse struct {
	Title     string        `json:"title"`
	FrameRate float64       `json:"frame_rate"`
	Clips     []export.Clip `json:"clips"`
	KeptMs    int           `json:"kept_ms"`
	RemovedMs int           `json:"removed_ms"`
	EDL       string        `json:"edl"`
}

type UpdateApplyResponse struct {
	UpdatedTo       string `json:"updated_to"`
	RestartRequired bool   `json:"restart_required"`
}

type LogEntryResponse struct {
	Time      string `json:"time"`
	Level     string `json:"level"`
	Component string `json:"component,omitempty"`
	Message   string `json:"message"`
}

type LogsResponse struct {
	Logs []LogEntryResponse `json:"logs"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func ProjectToResponse(p project.Project) ProjectResponse {
	videos := p.Videos
	if videos == nil {
		videos = []project.VideoRef{}
	}
	return ProjectResponse{
		ID:        p.ID,
		Name:      p.Name,
		Videos:    videos,
		CreatedAt: p.CreatedAt.Format(time.RFC3339),
		UpdatedAt: p.UpdatedAt.Format(time.RFC3339),
	}
}

func StateToResponse(st project.AppState) StateResponse {
	resp := StateResponse{
		Projects: make([]ProjectResponse, len(st.Projects)),
		Settings: st.Settings,
	}
	for i, p := range st.Projects {
		resp.Projects[i] = ProjectToResponse(p)
	}
	if st.CurrentProject != nil {
		current := ProjectToResponse(*st.CurrentProject)
		resp.CurrentProject = &current
	}
	return resp
}

func JobToResponse(j *jobs.Job) JobResponse {
	return JobResponse{
		ID:        j.ID,
		Type:      j.Type,
		Status:    j.Status,
		VideoID:   j.VideoID,
		Payload:   j.Payload,
		Result:    j.Result,
		Progress:  j.Progress,
		Error:     j.Error,
		CreatedAt: j.CreatedAt.Format(time.RFC3339),
		UpdatedAt: j.UpdatedAt.Format(time.RFC3339),
	}
}

func LogToResponse(e store.LogEntry) LogEntryResponse {
	return LogEntryResponse{
		Time:      e.Time.Format(time.RFC3339),
		Level:     e.Level,
		Component: e.Component,
		Message:   e.Message,
	}
}
