package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/clipflow/clipflow-engine/internal/api"
	"github.com/clipflow/clipflow-engine/internal/assist"
	"github.com/clipflow/clipflow-engine/internal/config"
	"github.com/clipflow/clipflow-engine/internal/db"
	"github.com/clipflow/clipflow-engine/internal/editor"
	"github.com/clipflow/clipflow-engine/internal/history"
	"github.com/clipflow/clipflow-engine/internal/jobs"
	"github.com/clipflow/clipflow-engine/internal/logging"
	"github.com/clipflow/clipflow-engine/internal/media"
	"github.com/clipflow/clipflow-engine/internal/preview"
	"github.com/clipflow/clipflow-engine/internal/project"
	"github.com/clipflow/clipflow-engine/internal/store"
	"github.com/clipflow/clipflow-engine/internal/transcribe"
	"github.com/clipflow/clipflow-engine/internal/ui"
	"github.com/clipflow/clipflow-engine/internal/update"
	"github.com/clipflow/clipflow-engine/internal/watcher"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("fatal error: %v", err)
	}
}

func run() error {
	startTime := time.Now()

	// Load environment variables from .env if present (non-fatal if missing)
	_ = godotenv.Load()

	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := os.MkdirAll(cfg.DataDir(), 0755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}
	if err := os.MkdirAll(cfg.CacheDir(), 0755); err != nil {
		return fmt.Errorf("failed to create cache dir: %w", err)
	}

	logger := logging.NewLogger(cfg.LogLevel())
	logger.Info("starting clipflow engine", "version", config.Version, "data_dir", cfg.DataDir())

	database, err := db.New(cfg.DBPath(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	kv := store.New(database.Conn(), logger)

	// Warn and error records also land in the store so the UI can show
	// them under Settings > Logs.
	logger = slog.New(logging.NewTeeHandler(logger.Handler(), kv))

	deviceID, err := ensureDeviceID(kv)
	if err != nil {
		return fmt.Errorf("failed to ensure device ID: %w", err)
	}

	authToken, err := ensureAuthToken(kv)
	if err != nil {
		return fmt.Errorf("failed to ensure auth token: %w", err)
	}

	fmt.Print(banner(cfg.Port(), authToken, deviceID))

	backend := media.NewFFmpeg(media.Config{
		FFmpegPath:     cfg.FFmpegPath(),
		FFprobePath:    cfg.FFprobePath(),
		ProbeTimeout:   cfg.TimeoutProbe(),
		TrimTimeout:    cfg.TimeoutTrim(),
		AnalyzeTimeout: cfg.TimeoutAnalyze(),
		ExportTimeout:  cfg.TimeoutExport(),
		Logger:         logger,
	})

	prober := media.NewToolProber(media.ProberConfig{
		FFmpegPath:  cfg.FFmpegPath(),
		FFprobePath: cfg.FFprobePath(),
		WhisperPath: cfg.WhisperPath(),
		Timeout:     cfg.TimeoutProbe(),
		Logger:      logger,
	})
	doctor := media.NewCachedDoctor(prober, logger)

	initCtx, initCancel := context.WithTimeout(context.Background(), cfg.TimeoutProbe())
	defer initCancel()
	if caps, err := doctor.Refresh(initCtx); err != nil {
		logger.Warn("initial tool probe failed", "error", err)
	} else {
		available := 0
		for _, tool := range caps.Tools {
			if tool.Available {
				available++
			}
		}
		logger.Info("media tools detected",
			"media", caps.HasMedia,
			"transcribe", caps.HasTranscribe,
			"tools", fmt.Sprintf("%d/%d", available, len(caps.Tools)),
		)
	}

	transcriber := transcribe.NewWhisperCLI(transcribe.Config{
		WhisperPath: cfg.WhisperPath(),
		WorkDir:     cfg.CacheDir(),
		Timeout:     cfg.TimeoutTranscribe(),
		Logger:      logger,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := api.NewHub(logger)
	persistence := project.NewPersistence(kv, config.Version, logger)

	ed := editor.New(ctx, persistence, history.NewStore(history.DefaultMaxSize), backend, hub, logger)
	go ed.Run(ctx)

	repo := jobs.NewRepository(database.Conn())
	runner := jobs.NewRunner(repo, backend, transcriber, hub, logger)
	go runner.Start(ctx)

	if folder, err := kv.Get(ctx, store.KeyWatchFolder); err == nil && folder != "" {
		w := watcher.New(folder, ed, logger)
		if err := w.Start(ctx); err != nil {
			logger.Warn("watch folder unavailable", "folder", folder, "error", err)
		}
	}

	apiServer := api.NewServer(api.ServerConfig{
		Port:         cfg.Port(),
		Version:      config.Version,
		StartTime:    startTime,
		DeviceID:     deviceID,
		Editor:       ed,
		JobsRepo:     repo,
		Runner:       runner,
		Backend:      backend,
		Doctor:       doctor,
		Transcriber:  transcriber,
		AssistConfig: assist.NewConfigStore(kv, logger),
		Streamer:     preview.NewStreamer(ed, logger),
		Updater:      update.New(config.UpdateOwner, config.UpdateRepo, config.Version, logger),
		Store:        kv,
		Hub:          hub,
		Logger:       logger,
	})

	go func() {
		if err := apiServer.Start(); err != nil {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	quitCh := make(chan struct{})

	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received shutdown signal", "signal", sig)
			close(quitCh)
		case <-quitCh:
		}
	}()

	if cfg.Headless() {
		logger.Info("running in headless mode (no system tray)")
	} else {
		tray := ui.NewTray(ui.TrayConfig{
			Runner: runner,
			Logger: logger,
			OnSaveNow: func() error {
				saveCtx, saveCancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer saveCancel()
				return ed.Flush(saveCtx)
			},
			OnQuit: func() {
				close(quitCh)
			},
		})
		go tray.Run()
	}

	<-quitCh

	logger.Info("initiating graceful shutdown")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := ed.Flush(shutdownCtx); err != nil {
		logger.Error("failed to flush project state", "error", err)
	}
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}

// banner is what greets whoever launches the engine from a terminal:
// the connection details the desktop UI needs, version included.
func banner(port int, authToken, deviceID string) string {
	var b strings.Builder
	b.WriteString("\n")
	b.WriteString("╔════════════════════════════════════════════════════════════════════════════════╗\n")
	fmt.Fprintf(&b, "║  %-76s  ║\n", "CLIPFLOW ENGINE v"+config.Version)
	b.WriteString("╠════════════════════════════════════════════════════════════════════════════════╣\n")
	fmt.Fprintf(&b, "║  API URL:    http://127.0.0.1:%-47d  ║\n", port)
	fmt.Fprintf(&b, "║  Auth Token: %-64s  ║\n", authToken)
	fmt.Fprintf(&b, "║  Device ID:  %-64s  ║\n", deviceID[:16]+"...")
	b.WriteString("╚════════════════════════════════════════════════════════════════════════════════╝\n")
	b.WriteString("\n")
	return b.String()
}

func ensureDeviceID(kv *store.Store) (string, error) {
	ctx := context.Background()

	existing, err := kv.Get(ctx, store.KeyDeviceID)
	if err == nil && existing != "" {
		return existing, nil
	}

	idBytes := make([]byte, 16)
	if _, err := rand.Read(idBytes); err != nil {
		return "", err
	}
	deviceID := hex.EncodeToString(idBytes)

	if err := kv.Put(ctx, store.KeyDeviceID, deviceID); err != nil {
		return "", err
	}

	return deviceID, nil
}

func ensureAuthToken(kv *store.Store) (string, error) {
	ctx := context.Background()

	existing, err := kv.Get(ctx, store.KeyAuthToken)
	if err == nil && existing != "" {
		return existing, nil
	}

	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", err
	}
	token := hex.EncodeToString(tokenBytes)

	if err := kv.Put(ctx, store.KeyAuthToken, token); err != nil {
		return "", err
	}

	return token, nil
}
