package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestSanitizeToken(t *testing.T) {
	tests := map[string]struct {
		token string
		want  string
	}{
		"empty":     {"", "****"},
		"short":     {"abc", "****"},
		"exactly 8": {"12345678", "****"},
		"long":      {"abcdef1234567890wxyz", "abcd...wxyz"},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			if got := SanitizeToken(tc.token); got != tc.want {
				t.Errorf("SanitizeToken(%q) = %q, want %q", tc.token, got, tc.want)
			}
		})
	}
}

type captureSink struct {
	entries []Entry
	err     error
}

func (s *captureSink) AppendLog(ctx context.Context, e Entry) error {
	s.entries = append(s.entries, e)
	return s.err
}

func teeLogger(sink Sink) (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	inner := slog.NewJSONHandler(&buf, nil)
	return slog.New(NewTeeHandler(inner, sink)), &buf
}

func TestTeeHandler_ForwardsWarnAndError(t *testing.T) {
	sink := &captureSink{}
	logger, buf := teeLogger(sink)

	logger.Info("routine save")
	logger.Warn("probe failed")
	logger.Error("save failed")

	if len(sink.entries) != 2 {
		t.Fatalf("expected 2 forwarded entries, got %d", len(sink.entries))
	}
	if sink.entries[0].Message != "probe failed" || sink.entries[0].Level != "WARN" {
		t.Errorf("unexpected first entry: %+v", sink.entries[0])
	}
	if sink.entries[1].Level != "ERROR" {
		t.Errorf("expected ERROR level, got %q", sink.entries[1].Level)
	}

	// All three records still reach the inner handler.
	if got := strings.Count(buf.String(), "\n"); got != 3 {
		t.Errorf("expected 3 records on inner handler, got %d", got)
	}
}

func TestTeeHandler_CapturesComponent(t *testing.T) {
	sink := &captureSink{}
	logger, _ := teeLogger(sink)

	logger.Warn("tick failed", "component", "watcher")
	logger.With("component", "editor").Warn("flush failed")

	if len(sink.entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(sink.entries))
	}
	if sink.entries[0].Component != "watcher" {
		t.Errorf("record attr component = %q, want watcher", sink.entries[0].Component)
	}
	if sink.entries[1].Component != "editor" {
		t.Errorf("With() component = %q, want editor", sink.entries[1].Component)
	}
}

func TestTeeHandler_SinkFailureDoesNotBreakLogging(t *testing.T) {
	sink := &captureSink{err: errors.New("disk full")}
	logger, buf := teeLogger(sink)

	logger.Error("something broke")

	if !strings.Contains(buf.String(), "something broke") {
		t.Error("record should still reach the inner handler when the sink fails")
	}
}

func TestTeeHandler_NilSink(t *testing.T) {
	logger, buf := teeLogger(nil)

	logger.Error("no sink wired")

	if !strings.Contains(buf.String(), "no sink wired") {
		t.Error("record should pass through with no sink configured")
	}
}
