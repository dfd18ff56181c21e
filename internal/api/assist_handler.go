package api

import (
	"encoding/json"
	"net/http"

	"github.com/clipflow/clipflow-engine/internal/assist"
)

func assistCompleteHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AssistCompleteRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if len(req.Messages) == 0 {
			WriteError(w, http.StatusBadRequest, "messages are required", "BAD_REQUEST")
			return
		}

		acfg := cfg.AssistConfig.Load(r.Context())
		completer, err := cfg.NewCompleter(acfg, cfg.Logger)
		if err != nil {
			WriteError(w, http.StatusConflict, "assist is not configured", "ASSIST_NOT_CONFIGURED")
			return
		}

		completion, err := completer.Complete(r.Context(), req.Messages, assist.Options{
			Temperature: req.Temperature,
			MaxTokens:   req.MaxTokens,
		})
		if err != nil {
			WriteError(w, http.StatusBadGateway, err.Error(), "UPSTREAM_ERROR")
			return
		}

		WriteJSON(w, http.StatusOK, AssistCompleteResponse{
			Content: completion.Content,
			Usage:   completion.Usage,
		})
	}
}

func getAssistConfigHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		acfg := cfg.AssistConfig.Load(r.Context())
		WriteJSON(w, http.StatusOK, acfg.Redacted())
	}
}

func putAssistConfigHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var next assist.Config
		if err := json.NewDecoder(r.Body).Decode(&next); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		// Clients never see the stored key, so an empty key means keep it.
		if next.APIKey == "" {
			next.APIKey = cfg.AssistConfig.Load(r.Context()).APIKey
		}

		if err := cfg.AssistConfig.Save(r.Context(), next); err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}
		WriteJSON(w, http.StatusOK, next.Redacted())
	}
}
