package media

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	"github.com/clipflow/clipflow-engine/internal/logging"
)

const (
	maxStderrBytes = 8 * 1024 // 8 KB tail of stderr kept for diagnostics

	// defaultMinSilenceSec is the shortest gap silencedetect reports.
	defaultMinSilenceSec = 0.5
)

// Quality names accepted by Export.
const (
	QualityLow    = "low"
	QualityMedium = "medium"
	QualityHigh   = "high"
)

// Config holds the FFmpeg backend's configuration.
type Config struct {
	FFmpegPath     string // explicit binary path; empty = PATH lookup
	FFprobePath    string
	ProbeTimeout   time.Duration
	TrimTimeout    time.Duration
	AnalyzeTimeout time.Duration
	ExportTimeout  time.Duration
	Logger         *slog.Logger
}

// FFmpeg is the production Backend. Binaries are resolved per call so
// installing FFmpeg while the engine runs is picked up without a
// restart.
type FFmpeg struct {
	cfg    Config
	logger *slog.Logger
}

func NewFFmpeg(cfg Config) *FFmpeg {
	return &FFmpeg{cfg: cfg, logger: cfg.Logger}
}

func (f *FFmpeg) Trim(ctx context.Context, input, output string, start, end float64) error {
	if start < 0 || end <= start {
		return fmt.Errorf("invalid trim range %.3f..%.3f", start, end)
	}
	stream := trimStream(input, output, start, end)
	return f.transform(ctx, "trim", f.cfg.TrimTimeout, stream, output)
}

func (f *FFmpeg) ExtractAudio(ctx context.Context, input, output string) error {
	stream := extractAudioStream(input, output)
	return f.transform(ctx, "extract_audio", f.cfg.TrimTimeout, stream, output)
}

func (f *FFmpeg) Export(ctx context.Context, input, output, quality string) error {
	stream := exportStream(input, output, quality)
	return f.transform(ctx, "export", f.cfg.ExportTimeout, stream, output)
}

// AnalyzeSilence runs the silencedetect filter and parses the spans it
// logs to stderr. A span still open when the file ends is dropped.
func (f *FFmpeg) AnalyzeSilence(ctx context.Context, path string, thresholdDB float64) ([]Segment, error) {
	bin, err := resolveTool(f.cfg.FFmpegPath, "ffmpeg", HintInstallFFmpeg)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, f.cfg.AnalyzeTimeout)
	defer cancel()

	args := silenceStream(path, thresholdDB).Compile().Args[1:]
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stdout = io.Discard

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open ffmpeg stderr: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	segments, tail := scanSilence(stderr)

	if err := cmd.Wait(); err != nil {
		return nil, fmt.Errorf("silence analysis failed: %s: %w", truncate(tail, 512), err)
	}

	f.logger.Info("silence analysis complete",
		"path", logging.SanitizePath(path),
		"threshold_db", thresholdDB,
		"segments", len(segments),
	)
	return segments, nil
}

// Duration shells out to ffprobe because the duration arrives on
// stdout rather than in an output file.
func (f *FFmpeg) Duration(ctx context.Context, path string) (float64, error) {
	bin, err := resolveTool(f.cfg.FFprobePath, "ffprobe", HintInstallFFmpeg)
	if err != nil {
		return 0, err
	}

	ctx, cancel := context.WithTimeout(ctx, f.cfg.ProbeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, bin,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)

	var stdout, stderrBuf bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &limitedWriter{w: &stderrBuf, limit: maxStderrBytes}

	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("ffprobe failed for %s: %s: %w",
			logging.SanitizePath(path), truncate(stderrBuf.String(), 512), err)
	}

	raw := strings.TrimSpace(stdout.String())
	duration, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("unexpected ffprobe output %q: %w", raw, err)
	}
	if duration < 0 {
		return 0, fmt.Errorf("ffprobe reported negative duration %f", duration)
	}
	return duration, nil
}

// transform compiles a pipeline into argv and runs it under our own
// process control: explicit binary, timeout, bounded stderr capture.
func (f *FFmpeg) transform(ctx context.Context, op string, timeout time.Duration, stream *ffmpeg.Stream, output string) error {
	bin, err := resolveTool(f.cfg.FFmpegPath, "ffmpeg", HintInstallFFmpeg)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(output), 0755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := stream.Compile().Args[1:]
	start := time.Now()

	cmd := exec.CommandContext(ctx, bin, args...)
	var stderrBuf bytes.Buffer
	cmd.Stderr = &limitedWriter{w: &stderrBuf, limit: maxStderrBytes}
	cmd.Stdout = io.Discard

	f.logger.Info("running ffmpeg", "op", op, "output", logging.SanitizePath(output))

	err = cmd.Run()
	elapsed := time.Since(start)

	if err != nil {
		exitCode := -1
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		}
		f.logger.Warn("ffmpeg failed",
			"op", op,
			"exit_code", exitCode,
			"duration_ms", elapsed.Milliseconds(),
			"stderr_tail", truncate(stderrBuf.String(), 512),
		)
		return fmt.Errorf("ffmpeg %s exited %d: %s", op, exitCode, truncate(stderrBuf.String(), 512))
	}

	f.logger.Info("ffmpeg completed", "op", op, "duration_ms", elapsed.Milliseconds())
	return nil
}

func trimStream(input, output string, start, end float64) *ffmpeg.Stream {
	return ffmpeg.Input(input, ffmpeg.KwArgs{"ss": formatSeconds(start)}).
		Output(output, ffmpeg.KwArgs{
			"t": formatSeconds(end - start),
			"c": "copy",
		}).
		OverWriteOutput()
}

func extractAudioStream(input, output string) *ffmpeg.Stream {
	return ffmpeg.Input(input).
		Output(output, ffmpeg.KwArgs{
			"map":    "0:a:0",
			"acodec": "pcm_s16le",
			"ar":     "16000",
			"ac":     "1",
		}).
		OverWriteOutput()
}

func exportStream(input, output, quality string) *ffmpeg.Stream {
	return ffmpeg.Input(input).
		Output(output, ffmpeg.KwArgs{
			"c:v":    "libx264",
			"preset": "medium",
			"crf":    crfForQuality(quality),
			"c:a":    "aac",
		}).
		OverWriteOutput()
}

func silenceStream(path string, thresholdDB float64) *ffmpeg.Stream {
	filter := fmt.Sprintf("silencedetect=noise=%gdB:d=%g", thresholdDB, defaultMinSilenceSec)
	return ffmpeg.Input(path).
		Output("-", ffmpeg.KwArgs{"af": filter, "f": "null"})
}

// crfForQuality maps the quality ladder to x264 CRF values. Unknown
// names fall back to medium.
func crfForQuality(quality string) string {
	switch quality {
	case QualityHigh:
		return "18"
	case QualityLow:
		return "28"
	default:
		return "23"
	}
}

// scanSilence pairs silence_start/silence_end lines from silencedetect
// output. It also keeps the last few lines as a diagnostic tail.
func scanSilence(r io.Reader) ([]Segment, string) {
	var (
		segments []Segment
		start    float64
		open     bool
		tail     []string
	)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()

		tail = append(tail, line)
		if len(tail) > 20 {
			tail = tail[1:]
		}

		if idx := strings.Index(line, "silence_start:"); idx >= 0 {
			raw := strings.TrimSpace(line[idx+len("silence_start:"):])
			if v, err := strconv.ParseFloat(raw, 64); err == nil {
				start = v
				open = true
			}
			continue
		}

		if idx := strings.Index(line, "silence_end:"); idx >= 0 && open {
			raw := strings.TrimSpace(line[idx+len("silence_end:"):])
			if cut := strings.Index(raw, "|"); cut >= 0 {
				raw = strings.TrimSpace(raw[:cut])
			}
			if v, err := strconv.ParseFloat(raw, 64); err == nil {
				segments = append(segments, Segment{Start: start, End: v})
				open = false
			}
		}
	}

	return segments, strings.Join(tail, "\n")
}

func resolveTool(preferred, name, hint string) (string, error) {
	if preferred != "" {
		if p, err := exec.LookPath(preferred); err == nil {
			return p, nil
		}
		return "", &ToolError{Tool: name, Hint: hint,
			Err: fmt.Errorf("configured %s %q not found", name, preferred)}
	}
	if p, err := exec.LookPath(name); err == nil {
		return p, nil
	}
	return "", &ToolError{Tool: name, Hint: hint}
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return "..." + s[len(s)-maxLen:]
}

// limitedWriter is an io.Writer that keeps only the last `limit` bytes.
type limitedWriter struct {
	w     *bytes.Buffer
	limit int
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	lw.w.Write(p)
	if lw.w.Len() > lw.limit {
		// Keep only the tail
		b := lw.w.Bytes()
		lw.w.Reset()
		lw.w.Write(b[len(b)-lw.limit:])
	}
	return n, nil
}
