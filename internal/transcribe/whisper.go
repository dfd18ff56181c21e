// Package transcribe runs Whisper over extracted audio and parses the
// JSON transcript it writes.
package transcribe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/clipflow/clipflow-engine/internal/logging"
	"github.com/clipflow/clipflow-engine/internal/media"
)

// Segment is one transcribed span.
type Segment struct {
	ID    int     `json:"id"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Result is a completed transcription.
type Result struct {
	Text     string    `json:"text"`
	Segments []Segment `json:"segments"`
	Language string    `json:"language"`
	Duration float64   `json:"duration"`
}

// ModelInfo describes one Whisper model the user can pick.
type ModelInfo struct {
	Name string `json:"name"`
	Size string `json:"size"`
}

// Transcriber is the transcription contract the job runner depends on.
type Transcriber interface {
	Transcribe(ctx context.Context, path, model string) (*Result, error)
	ListModels() []ModelInfo
}

// DefaultModel is used when the caller passes an empty model name.
const DefaultModel = "base"

var modelCatalog = []ModelInfo{
	{Name: "tiny", Size: "72 MB"},
	{Name: "base", Size: "139 MB"},
	{Name: "small", Size: "461 MB"},
	{Name: "medium", Size: "1.4 GB"},
	{Name: "large", Size: "2.9 GB"},
}

// Config holds the Whisper CLI configuration.
type Config struct {
	WhisperPath string // explicit binary path; empty = PATH lookup
	WorkDir     string // parent for per-run output directories
	Timeout     time.Duration
	Logger      *slog.Logger
}

// WhisperCLI is the production Transcriber, shelling out to the
// openai-whisper command line tool.
type WhisperCLI struct {
	cfg    Config
	logger *slog.Logger
}

func NewWhisperCLI(cfg Config) *WhisperCLI {
	return &WhisperCLI{cfg: cfg, logger: cfg.Logger}
}

func (w *WhisperCLI) Transcribe(ctx context.Context, path, model string) (*Result, error) {
	if model == "" {
		model = DefaultModel
	}
	if !knownModel(model) {
		return nil, fmt.Errorf("unknown whisper model %q (available: %s)", model, modelNames())
	}

	bin, err := resolveWhisper(w.cfg.WhisperPath)
	if err != nil {
		return nil, err
	}

	outDir, err := os.MkdirTemp(w.cfg.WorkDir, "whisper-")
	if err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}
	defer os.RemoveAll(outDir)

	ctx, cancel := context.WithTimeout(ctx, w.cfg.Timeout)
	defer cancel()

	start := time.Now()
	cmd := exec.CommandContext(ctx, bin,
		path,
		"--model", model,
		"--output_format", "json",
		"--output_dir", outDir,
	)
	stderr := newTailWriter(8 * 1024)
	cmd.Stderr = stderr
	cmd.Stdout = io.Discard

	w.logger.Info("running whisper",
		"path", logging.SanitizePath(path),
		"model", model,
	)

	if err := cmd.Run(); err != nil {
		w.logger.Warn("whisper failed",
			"model", model,
			"duration_ms", time.Since(start).Milliseconds(),
			"stderr_tail", stderr.String(),
		)
		return nil, fmt.Errorf("whisper exited: %s: %w", stderr.String(), err)
	}

	result, err := parseOutput(outputPathFor(outDir, path))
	if err != nil {
		return nil, err
	}

	w.logger.Info("transcription complete",
		"model", model,
		"language", result.Language,
		"segments", len(result.Segments),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return result, nil
}

// ListModels returns the static Whisper model catalog.
func (w *WhisperCLI) ListModels() []ModelInfo {
	out := make([]ModelInfo, len(modelCatalog))
	copy(out, modelCatalog)
	return out
}

// outputPathFor mirrors whisper's naming: the transcript lands next to
// the output dir as <input stem>.json.
func outputPathFor(outDir, audioPath string) string {
	base := filepath.Base(audioPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(outDir, stem+".json")
}

// whisperOutput is the subset of whisper's JSON we keep.
type whisperOutput struct {
	Text     string    `json:"text"`
	Segments []Segment `json:"segments"`
	Language string    `json:"language"`
}

func parseOutput(path string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read whisper output: %w", err)
	}

	var out whisperOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to parse whisper output: %w", err)
	}

	result := &Result{
		Text:     strings.TrimSpace(out.Text),
		Segments: out.Segments,
		Language: out.Language,
	}
	if n := len(out.Segments); n > 0 {
		result.Duration = out.Segments[n-1].End
	}
	return result, nil
}

func resolveWhisper(preferred string) (string, error) {
	name := preferred
	if name == "" {
		name = "whisper"
	}
	p, err := exec.LookPath(name)
	if err != nil {
		return "", &media.ToolError{Tool: "whisper", Hint: media.HintInstallWhisper, Err: err}
	}
	return p, nil
}

func knownModel(model string) bool {
	for _, m := range modelCatalog {
		if m.Name == model {
			return true
		}
	}
	return false
}

func modelNames() string {
	names := make([]string, len(modelCatalog))
	for i, m := range modelCatalog {
		names[i] = m.Name
	}
	return strings.Join(names, ", ")
}

// tailWriter keeps only the last limit bytes written to it.
type tailWriter struct {
	buf   []byte
	limit int
}

func newTailWriter(limit int) *tailWriter {
	return &tailWriter{limit: limit}
}

func (t *tailWriter) Write(p []byte) (int, error) {
	t.buf = append(t.buf, p...)
	if len(t.buf) > t.limit {
		t.buf = t.buf[len(t.buf)-t.limit:]
	}
	return len(p), nil
}

func (t *tailWriter) String() string {
	return string(t.buf)
}
