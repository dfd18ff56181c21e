package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/clipflow/clipflow-engine/internal/editor"
	"github.com/clipflow/clipflow-engine/internal/history"
	"github.com/clipflow/clipflow-engine/internal/project"
)

// writeEditorError maps editor sentinels onto HTTP statuses.
func writeEditorError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, editor.ErrNoProject):
		WriteError(w, http.StatusConflict, err.Error(), "NO_PROJECT")
	case errors.Is(err, editor.ErrProjectNotFound), errors.Is(err, editor.ErrVideoNotFound):
		WriteError(w, http.StatusNotFound, err.Error(), "NOT_FOUND")
	default:
		WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
	}
}

func getStateHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, StateToResponse(cfg.Editor.State()))
	}
}

func putStateHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var st project.AppState
		if err := json.NewDecoder(r.Body).Decode(&st); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		if err := cfg.Editor.ReplaceState(r.Context(), st); err != nil {
			writeEditorError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, StateToResponse(cfg.Editor.State()))
	}
}

func listProjectsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list := cfg.Editor.Projects()
		resp := ProjectsResponse{Projects: make([]ProjectResponse, len(list))}
		for i, p := range list {
			resp.Projects[i] = ProjectToResponse(p)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func createProjectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateProjectRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if req.Name == "" {
			WriteError(w, http.StatusBadRequest, "name is required", "BAD_REQUEST")
			return
		}

		p, err := cfg.Editor.CreateProject(r.Context(), req.Name)
		if err != nil {
			writeEditorError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, ProjectToResponse(p))
	}
}

func getProjectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		p, err := cfg.Editor.LoadProject(r.Context(), id)
		if err != nil {
			writeEditorError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, ProjectToResponse(p))
	}
}

func deleteProjectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := cfg.Editor.DeleteProject(r.Context(), id); err != nil {
			writeEditorError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func setCurrentProjectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SetCurrentProjectRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if req.ID == "" {
			WriteError(w, http.StatusBadRequest, "id is required", "BAD_REQUEST")
			return
		}

		p, err := cfg.Editor.SetCurrentProject(r.Context(), req.ID)
		if err != nil {
			writeEditorError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, ProjectToResponse(p))
	}
}

func importVideosHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ImportVideosRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if len(req.Paths) == 0 {
			WriteError(w, http.StatusBadRequest, "paths are required", "BAD_REQUEST")
			return
		}

		videos, err := cfg.Editor.ImportVideos(r.Context(), req.Paths)
		if err != nil {
			writeEditorError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, ImportVideosResponse{Videos: videos})
	}
}

func silenceEditHandler(cfg ServerConfig) http.HandlerFunc {
	return videoEditHandler(cfg, cfg.Editor.ApplySilenceEdit)
}

func fillerEditHandler(cfg ServerConfig) http.HandlerFunc {
	return videoEditHandler(cfg, cfg.Editor.ApplyFillerEdit)
}

func videoEditHandler(cfg ServerConfig, apply func(ctx context.Context, videoID string, updated project.VideoRef) (project.VideoRef, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		var updated project.VideoRef
		if err := json.NewDecoder(r.Body).Decode(&updated); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		video, err := apply(r.Context(), id, updated)
		if err != nil {
			writeEditorError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, video)
	}
}

func getSettingsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, cfg.Editor.Settings())
	}
}

func patchSettingsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var patch project.SettingsPatch
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		settings, err := cfg.Editor.UpdateSettings(r.Context(), patch)
		if err != nil {
			writeEditorError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, settings)
	}
}

func historyHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, cfg.Editor.HistoryState())
	}
}

func undoHandler(cfg ServerConfig) http.HandlerFunc {
	return historyStepHandler(cfg, cfg.Editor.Undo)
}

func redoHandler(cfg ServerConfig) http.HandlerFunc {
	return historyStepHandler(cfg, cfg.Editor.Redo)
}

func historyStepHandler(cfg ServerConfig, step func() (history.Action, bool)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		action, ok := step()

		resp := HistoryActionResponse{Applied: ok, State: cfg.Editor.HistoryState()}
		if ok {
			data, err := history.MarshalAction(action)
			if err != nil {
				WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
				return
			}
			resp.Action = data
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func clearHistoryHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cfg.Editor.ClearHistory()
		w.WriteHeader(http.StatusNoContent)
	}
}

func exportRecordHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var settings project.ExportSettings
		if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		if err := cfg.Editor.RecordExport(settings); err != nil {
			writeEditorError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, cfg.Editor.HistoryState())
	}
}

func backupHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := cfg.Editor.CheckpointBackup(r.Context()); err != nil {
			writeEditorError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func restoreBackupHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := cfg.Editor.RestoreFromBackup(r.Context())
		if err != nil {
			writeEditorError(w, err)
			return
		}
		if p == nil {
			WriteError(w, http.StatusNotFound, "no usable backup", "NO_BACKUP")
			return
		}
		WriteJSON(w, http.StatusOK, ProjectToResponse(*p))
	}
}

func clearBackupHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := cfg.Editor.ClearBackup(r.Context()); err != nil {
			writeEditorError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
