package api

import (
	"encoding/json"
	"net/http"
	"path/filepath"

	"github.com/clipflow/clipflow-engine/internal/export"
	"github.com/clipflow/clipflow-engine/internal/jobs"
)

// checkJobOutput rejects output targets whose directory is missing or
// carries path traversal before a job lands in the queue. Writes the
// error response itself; callers bail out on false.
func checkJobOutput(w http.ResponseWriter, output string) bool {
	if err := export.ValidateOutputDir(filepath.Dir(output)); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
		return false
	}
	return true
}

func enqueue(cfg ServerConfig, w http.ResponseWriter, r *http.Request, jobType, videoID string, payload any) {
	job, err := jobs.NewJob(jobType, videoID, payload)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
		return
	}
	if err := cfg.Runner.Enqueue(r.Context(), job); err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to enqueue job", "INTERNAL_ERROR")
		return
	}
	WriteJSON(w, http.StatusAccepted, EnqueueResponse{JobID: job.ID})
}

func trimHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req TrimRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if req.Input == "" || req.Output == "" {
			WriteError(w, http.StatusBadRequest, "input and output are required", "BAD_REQUEST")
			return
		}
		if req.End <= req.Start {
			WriteError(w, http.StatusBadRequest, "end must be after start", "BAD_REQUEST")
			return
		}
		if !checkJobOutput(w, req.Output) {
			return
		}

		enqueue(cfg, w, r, jobs.TypeTrim, req.VideoID, jobs.TrimPayload{
			Input:  req.Input,
			Output: req.Output,
			Start:  req.Start,
			End:    req.End,
		})
	}
}

func extractAudioHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ExtractAudioRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if req.Input == "" || req.Output == "" {
			WriteError(w, http.StatusBadRequest, "input and output are required", "BAD_REQUEST")
			return
		}
		if !checkJobOutput(w, req.Output) {
			return
		}

		enqueue(cfg, w, r, jobs.TypeExtractAudio, req.VideoID, jobs.ExtractAudioPayload{
			Input:  req.Input,
			Output: req.Output,
		})
	}
}

func analyzeSilenceHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AnalyzeSilenceRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if req.Input == "" {
			WriteError(w, http.StatusBadRequest, "input is required", "BAD_REQUEST")
			return
		}
		if req.ThresholdDB == 0 {
			req.ThresholdDB = -30
		}

		enqueue(cfg, w, r, jobs.TypeAnalyzeSilence, req.VideoID, jobs.AnalyzeSilencePayload{
			Input:       req.Input,
			ThresholdDB: req.ThresholdDB,
		})
	}
}

func exportHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ExportJobRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if req.Input == "" || req.Output == "" {
			WriteError(w, http.StatusBadRequest, "input and output are required", "BAD_REQUEST")
			return
		}
		if req.Quality == "" {
			req.Quality = "medium"
		}
		if !checkJobOutput(w, req.Output) {
			return
		}

		enqueue(cfg, w, r, jobs.TypeExport, req.VideoID, jobs.ExportPayload{
			Input:   req.Input,
			Output:  req.Output,
			Quality: req.Quality,
		})
	}
}

func transcribeHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req TranscribeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if req.Input == "" {
			WriteError(w, http.StatusBadRequest, "input is required", "BAD_REQUEST")
			return
		}

		enqueue(cfg, w, r, jobs.TypeTranscribe, req.VideoID, jobs.TranscribePayload{
			Input: req.Input,
			Model: req.Model,
		})
	}
}

func modelsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, ModelsResponse{Models: cfg.Transcriber.ListModels()})
	}
}

func durationHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Query().Get("path")
		if path == "" {
			WriteError(w, http.StatusBadRequest, "path is required", "BAD_REQUEST")
			return
		}

		seconds, err := cfg.Backend.Duration(r.Context(), path)
		if err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "PROBE_FAILED")
			return
		}
		WriteJSON(w, http.StatusOK, DurationResponse{DurationS: seconds})
	}
}

func playbackHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		videoID := r.URL.Query().Get("id")
		if videoID == "" {
			WriteError(w, http.StatusBadRequest, "id is required", "BAD_REQUEST")
			return
		}

		if err := cfg.Streamer.ServeVideo(w, r, videoID); err != nil {
			cfg.Logger.Error("playback error", "error", err, "video_id", videoID)
		}
	}
}

func cutListHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CutListRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if req.VideoID == "" {
			WriteError(w, http.StatusBadRequest, "video_id is required", "BAD_REQUEST")
			return
		}
		if req.FrameRate <= 0 {
			req.FrameRate = 30
		}

		video, err := cfg.Editor.FindVideo(req.VideoID)
		if err != nil {
			writeEditorError(w, err)
			return
		}

		// Titles end up in EDL files other tools parse; scrub them.
		list := export.GenerateCutList(video, req.Silences, req.FrameRate, export.SanitizeName(req.Title, 120))
		WriteJSON(w, http.StatusOK, CutListResponse{
			Title:     list.Title,
			FrameRate: list.FrameRate,
			Clips:     list.Clips,
			KeptMs:    list.KeptMs,
			RemovedMs: list.RemovedMs,
			EDL:       export.FormatEDL(list),
		})
	}
}
