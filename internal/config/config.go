// Package config provides configuration management for the ClipFlow Engine.
// Configuration is loaded from environment variables with sensible defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

const (
	// Default values
	DefaultPort     = 8765
	DefaultLogLevel = "info"
	DefaultDataDir  = ".clipflow"

	// Environment variable names
	EnvPort     = "CLIPFLOW_PORT"
	EnvLogLevel = "CLIPFLOW_LOG_LEVEL"
	EnvDataDir  = "CLIPFLOW_DATA_DIR"
	EnvHeadless = "CLIPFLOW_HEADLESS"

	// Tool path overrides. Empty means resolve from settings or PATH.
	EnvFFmpegPath  = "CLIPFLOW_FFMPEG"
	EnvFFprobePath = "CLIPFLOW_FFPROBE"
	EnvWhisperPath = "CLIPFLOW_WHISPER"

	// Database filename
	DBFilename = "clipflow.db"

	// Media operation timeouts
	DefaultTimeoutProbe      = 30   // seconds
	DefaultTimeoutTrim       = 600  // 10 minutes
	DefaultTimeoutAnalyze    = 600  // 10 minutes
	DefaultTimeoutExport     = 1800 // 30 minutes
	DefaultTimeoutTranscribe = 1800 // 30 minutes

	// GitHub repository checked for releases
	UpdateOwner = "clipflow"
	UpdateRepo  = "clipflow-engine"
)

// Config defines the application configuration interface
type Config interface {
	Port() int
	LogLevel() string
	DataDir() string
	DBPath() string
	CacheDir() string
	Headless() bool
	FFmpegPath() string
	FFprobePath() string
	WhisperPath() string
	TimeoutProbe() time.Duration
	TimeoutTrim() time.Duration
	TimeoutAnalyze() time.Duration
	TimeoutExport() time.Duration
	TimeoutTranscribe() time.Duration
}

// EnvConfig reads configuration from environment variables
type EnvConfig struct {
	port     int
	logLevel string
	dataDir  string
	headless bool

	ffmpegPath  string
	ffprobePath string
	whisperPath string
}

// New creates a new EnvConfig with defaults and environment variable overrides
func New() (*EnvConfig, error) {
	cfg := &EnvConfig{
		port:     DefaultPort,
		logLevel: DefaultLogLevel,
		dataDir:  defaultDataDir(),
	}

	// Override port from environment
	if p := os.Getenv(EnvPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		if port < 1 || port > 65535 {
			return nil, fmt.Errorf("invalid %s: port must be between 1 and 65535", EnvPort)
		}
		cfg.port = port
	}

	// Override log level from environment
	if ll := os.Getenv(EnvLogLevel); ll != "" {
		cfg.logLevel = ll
	}

	// Override data directory from environment
	if dd := os.Getenv(EnvDataDir); dd != "" {
		cfg.dataDir = dd
	}

	if h := os.Getenv(EnvHeadless); h == "1" || h == "true" {
		cfg.headless = true
	}

	cfg.ffmpegPath = os.Getenv(EnvFFmpegPath)
	cfg.ffprobePath = os.Getenv(EnvFFprobePath)
	cfg.whisperPath = os.Getenv(EnvWhisperPath)

	return cfg, nil
}

// Port returns the HTTP server port
func (c *EnvConfig) Port() int {
	return c.port
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *EnvConfig) LogLevel() string {
	return c.logLevel
}

// DataDir returns the data directory path
func (c *EnvConfig) DataDir() string {
	return c.dataDir
}

// DBPath returns the full path to the SQLite database file
func (c *EnvConfig) DBPath() string {
	return filepath.Join(c.dataDir, DBFilename)
}

// CacheDir returns the directory for derived media artifacts
func (c *EnvConfig) CacheDir() string {
	return filepath.Join(c.dataDir, "cache")
}

// Headless reports whether the system tray should be skipped
func (c *EnvConfig) Headless() bool {
	return c.headless
}

func (c *EnvConfig) FFmpegPath() string {
	return c.ffmpegPath
}

func (c *EnvConfig) FFprobePath() string {
	return c.ffprobePath
}

func (c *EnvConfig) WhisperPath() string {
	return c.whisperPath
}

func (c *EnvConfig) TimeoutProbe() time.Duration {
	return time.Duration(DefaultTimeoutProbe) * time.Second
}

func (c *EnvConfig) TimeoutTrim() time.Duration {
	return time.Duration(DefaultTimeoutTrim) * time.Second
}

func (c *EnvConfig) TimeoutAnalyze() time.Duration {
	return time.Duration(DefaultTimeoutAnalyze) * time.Second
}

func (c *EnvConfig) TimeoutExport() time.Duration {
	return time.Duration(DefaultTimeoutExport) * time.Second
}

func (c *EnvConfig) TimeoutTranscribe() time.Duration {
	return time.Duration(DefaultTimeoutTranscribe) * time.Second
}

// defaultDataDir returns the default data directory path
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home is not available
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

// Version information (set at build time via ldflags)
var (
	Version   = "1.3.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
