// Package logging provides structured JSON logging for the ClipFlow Engine.
// It uses the standard library log/slog package for structured logging.
package logging

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"
)

// NewLogger creates a new structured JSON logger with the specified log level.
// Supported levels: debug, info, warn, error
func NewLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: lvl,
		// Add source location for debug level
		AddSource: lvl == slog.LevelDebug,
	}

	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler)
}

// WithComponent returns a logger with component attribute
func WithComponent(logger *slog.Logger, component string) *slog.Logger {
	return logger.With("component", component)
}

// WithJobID returns a logger with job_id attribute
func WithJobID(logger *slog.Logger, jobID string) *slog.Logger {
	return logger.With("job_id", jobID)
}

// SanitizeToken masks a token for safe logging.
// Shows first 4 and last 4 characters only.
// Returns "****" for tokens shorter than 8 characters.
func SanitizeToken(token string) string {
	if len(token) <= 8 {
		return "****"
	}
	return token[:4] + "..." + token[len(token)-4:]
}

// SanitizePath masks sensitive parts of a file path.
// Replaces home directory with ~ for privacy.
func SanitizePath(path string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if strings.HasPrefix(path, home) {
		return "~" + path[len(home):]
	}
	return path
}

// Entry is one record forwarded to a log sink.
type Entry struct {
	Time      time.Time
	Level     string
	Component string
	Message   string
}

// Sink receives warn/error records for durable storage. The engine's
// key-value store implements it with a capped ring buffer.
type Sink interface {
	AppendLog(ctx context.Context, e Entry) error
}

// TeeHandler wraps an slog.Handler and forwards warn/error records to a
// Sink. Sink failures are dropped so logging can never take the app down.
type TeeHandler struct {
	inner     slog.Handler
	sink      Sink
	component string
}

// NewTeeHandler wires a sink behind an existing handler.
func NewTeeHandler(inner slog.Handler, sink Sink) *TeeHandler {
	return &TeeHandler{inner: inner, sink: sink}
}

func (h *TeeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *TeeHandler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= slog.LevelWarn && h.sink != nil {
		component := h.component
		r.Attrs(func(a slog.Attr) bool {
			if a.Key == "component" {
				component = a.Value.String()
				return false
			}
			return true
		})
		_ = h.sink.AppendLog(ctx, Entry{
			Time:      r.Time,
			Level:     r.Level.String(),
			Component: component,
			Message:   r.Message,
		})
	}
	return h.inner.Handle(ctx, r)
}

func (h *TeeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := &TeeHandler{inner: h.inner.WithAttrs(attrs), sink: h.sink, component: h.component}
	for _, a := range attrs {
		if a.Key == "component" {
			next.component = a.Value.String()
		}
	}
	return next
}

func (h *TeeHandler) WithGroup(name string) slog.Handler {
	return &TeeHandler{inner: h.inner.WithGroup(name), sink: h.sink, component: h.component}
}
