package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/clipflow/clipflow-engine/internal/assist"
	"github.com/clipflow/clipflow-engine/internal/jobs"
)

func NewRouter(cfg ServerConfig) *chi.Mux {
	if cfg.NewCompleter == nil {
		cfg.NewCompleter = assist.NewCompleter
	}

	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(LoopbackGuard())
	r.Use(CORSAllowlist())

	r.Get("/health", healthHandler(cfg))

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Store, cfg.Logger))

		r.Get("/status", statusHandler(cfg))

		r.Get("/state", getStateHandler(cfg))
		r.Put("/state", putStateHandler(cfg))

		r.Get("/projects", listProjectsHandler(cfg))
		r.Post("/projects", createProjectHandler(cfg))
		r.Get("/projects/{id}", getProjectHandler(cfg))
		r.Delete("/projects/{id}", deleteProjectHandler(cfg))
		r.Post("/projects/current", setCurrentProjectHandler(cfg))

		r.Post("/videos/import", importVideosHandler(cfg))
		r.Post("/videos/{id}/silence-edit", silenceEditHandler(cfg))
		r.Post("/videos/{id}/filler-edit", fillerEditHandler(cfg))

		r.Get("/settings", getSettingsHandler(cfg))
		r.Patch("/settings", patchSettingsHandler(cfg))

		r.Get("/history", historyHandler(cfg))
		r.Post("/history/undo", undoHandler(cfg))
		r.Post("/history/redo", redoHandler(cfg))
		r.Post("/history/clear", clearHistoryHandler(cfg))
		r.Post("/history/export-record", exportRecordHandler(cfg))

		r.Post("/backup", backupHandler(cfg))
		r.Post("/backup/restore", restoreBackupHandler(cfg))
		r.Delete("/backup", clearBackupHandler(cfg))

		r.Post("/media/trim", trimHandler(cfg))
		r.Post("/media/extract-audio", extractAudioHandler(cfg))
		r.Post("/media/silence", analyzeSilenceHandler(cfg))
		r.Post("/media/export", exportHandler(cfg))
		r.Get("/media/duration", durationHandler(cfg))

		r.Post("/transcribe", transcribeHandler(cfg))
		r.Get("/transcribe/models", modelsHandler(cfg))

		r.Post("/assist/complete", assistCompleteHandler(cfg))
		r.Get("/assist/config", getAssistConfigHandler(cfg))
		r.Put("/assist/config", putAssistConfigHandler(cfg))

		r.Get("/jobs", listJobsHandler(cfg))
		r.Get("/jobs/{id}", getJobHandler(cfg))

		r.Get("/logs", logsHandler(cfg))

		r.Get("/update/check", updateCheckHandler(cfg))
		r.Post("/update/apply", updateApplyHandler(cfg))

		r.Get("/playback/video", playbackHandler(cfg))
		r.Post("/export/cutlist", cutListHandler(cfg))

		r.Get("/events", cfg.Hub.ServeWS)
	})

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uptime := int64(time.Since(cfg.StartTime).Seconds())
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:   "ok",
			Version:  cfg.Version,
			UptimeS:  uptime,
			DeviceID: cfg.DeviceID,
		})
	}
}

func statusHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		state := "idle"
		var activeJob *JobResponse
		jobsRunning := 0
		lastError := ""

		if cfg.Runner != nil && cfg.Runner.IsPaused() {
			state = "paused"
		}

		recent, _ := cfg.JobsRepo.List(ctx, 10)
		for _, j := range recent {
			if j.Status == jobs.StatusRunning {
				state = "processing"
				resp := JobToResponse(j)
				activeJob = &resp
				jobsRunning++
			}
			if j.Status == jobs.StatusFailed && lastError == "" {
				lastError = j.Error
			}
		}
		if lastError != "" && state == "idle" {
			state = "error"
		}

		editorState := cfg.Editor.State()
		videosCount := 0
		currentName := ""
		if editorState.CurrentProject != nil {
			currentName = editorState.CurrentProject.Name
			videosCount = len(editorState.CurrentProject.Videos)
		}

		resp := StatusResponse{
			State:          state,
			LastError:      lastError,
			CurrentProject: currentName,
			ProjectsCount:  len(editorState.Projects),
			VideosCount:    videosCount,
			JobsRunning:    jobsRunning,
			ActiveJob:      activeJob,
			History:        cfg.Editor.HistoryState(),
		}

		if cfg.Doctor != nil {
			caps, err := cfg.Doctor.Get(ctx)
			if err == nil && caps != nil {
				avail := 0
				for _, tool := range caps.Tools {
					if tool.Available {
						avail++
					}
				}
				resp.Tools = &ToolsResponse{
					HasMedia:      caps.HasMedia,
					HasTranscribe: caps.HasTranscribe,
					LastProbeAt:   caps.ProbedAt.Format(time.RFC3339),
					ToolsAvail:    avail,
					ToolsTotal:    len(caps.Tools),
				}
			}
		}

		WriteJSON(w, http.StatusOK, resp)
	}
}

func listJobsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 50
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				WriteError(w, http.StatusBadRequest, "invalid limit", "BAD_REQUEST")
				return
			}
			limit = n
		}

		list, err := cfg.JobsRepo.List(r.Context(), limit)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list jobs", "INTERNAL_ERROR")
			return
		}

		resp := JobsResponse{Jobs: make([]JobResponse, len(list))}
		for i, j := range list {
			resp.Jobs[i] = JobToResponse(j)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func getJobHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			WriteError(w, http.StatusBadRequest, "job id required", "BAD_REQUEST")
			return
		}

		job, err := cfg.JobsRepo.Get(r.Context(), id)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		if job == nil {
			WriteError(w, http.StatusNotFound, "job not found", "NOT_FOUND")
			return
		}

		WriteJSON(w, http.StatusOK, JobToResponse(job))
	}
}

func logsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 100
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				WriteError(w, http.StatusBadRequest, "invalid limit", "BAD_REQUEST")
				return
			}
			limit = n
		}

		entries, err := cfg.Store.ListLogs(r.Context(), limit)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list logs", "INTERNAL_ERROR")
			return
		}

		resp := LogsResponse{Logs: make([]LogEntryResponse, len(entries))}
		for i, e := range entries {
			resp.Logs[i] = LogToResponse(e)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func updateCheckHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cfg.Updater == nil {
			WriteError(w, http.StatusServiceUnavailable, "update checks unavailable", "UNAVAILABLE")
			return
		}

		info, err := cfg.Updater.Check(r.Context())
		if err != nil {
			WriteError(w, http.StatusBadGateway, err.Error(), "UPSTREAM_ERROR")
			return
		}
		WriteJSON(w, http.StatusOK, info)
	}
}

func updateApplyHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cfg.Updater == nil {
			WriteError(w, http.StatusServiceUnavailable, "update checks unavailable", "UNAVAILABLE")
			return
		}

		info, err := cfg.Updater.Check(r.Context())
		if err != nil {
			WriteError(w, http.StatusBadGateway, err.Error(), "UPSTREAM_ERROR")
			return
		}
		if !info.Newer {
			WriteError(w, http.StatusConflict, "already up to date", "UP_TO_DATE")
			return
		}

		if err := cfg.Updater.Apply(r.Context(), info); err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "UPDATE_FAILED")
			return
		}
		WriteJSON(w, http.StatusOK, UpdateApplyResponse{
			UpdatedTo:       info.Version,
			RestartRequired: true,
		})
	}
}
