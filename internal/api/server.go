package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/clipflow/clipflow-engine/internal/assist"
	"github.com/clipflow/clipflow-engine/internal/editor"
	"github.com/clipflow/clipflow-engine/internal/jobs"
	"github.com/clipflow/clipflow-engine/internal/media"
	"github.com/clipflow/clipflow-engine/internal/preview"
	"github.com/clipflow/clipflow-engine/internal/store"
	"github.com/clipflow/clipflow-engine/internal/transcribe"
	"github.com/clipflow/clipflow-engine/internal/update"
)

type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

type ServerConfig struct {
	Port         int
	Version      string
	StartTime    time.Time
	DeviceID     string
	Editor       *editor.Service
	JobsRepo     jobs.Repository
	Runner       *jobs.Runner
	Backend      media.Backend
	Doctor       *media.CachedDoctor
	Transcriber  transcribe.Transcriber
	AssistConfig *assist.ConfigStore
	Streamer     *preview.Streamer
	Updater      *update.Updater
	Store        *store.Store
	Hub          *Hub
	Logger       *slog.Logger

	// NewCompleter builds a provider client for each completion call so
	// config changes take effect immediately. Nil uses assist.NewCompleter.
	NewCompleter func(assist.Config, *slog.Logger) (assist.Completer, error)
}

func NewServer(cfg ServerConfig) *Server {
	router := NewRouter(cfg)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf("127.0.0.1:%d", cfg.Port),
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 0,
			IdleTimeout:  60 * time.Second,
		},
		logger: cfg.Logger,
	}
}

func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Addr() string {
	return s.httpServer.Addr
}
