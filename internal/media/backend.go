// Package media wraps FFmpeg for the editing operations the engine
// dispatches: trims, audio extraction, silence analysis, exports, and
// duration probing.
package media

import (
	"context"
	"fmt"
)

// Segment is a half-open time range in seconds.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Backend is the media-processing contract the editor and the job
// runner depend on. Operations fail fast; nothing retries.
type Backend interface {
	// Trim writes the [start, end) slice of input to output without
	// re-encoding.
	Trim(ctx context.Context, input, output string, start, end float64) error

	// ExtractAudio writes a 16 kHz mono WAV suitable for transcription.
	ExtractAudio(ctx context.Context, input, output string) error

	// AnalyzeSilence returns the silent spans of the file's audio track.
	// thresholdDB is the noise floor, e.g. -30.
	AnalyzeSilence(ctx context.Context, path string, thresholdDB float64) ([]Segment, error)

	// Export re-encodes input at the given quality (low, medium, high).
	Export(ctx context.Context, input, output, quality string) error

	// Duration probes the container duration in seconds.
	Duration(ctx context.Context, path string) (float64, error)
}

// Remediation hints attached to ToolError.
const (
	HintInstallFFmpeg  = "install FFmpeg: https://ffmpeg.org/download.html"
	HintInstallWhisper = "install Whisper: pip install openai-whisper"
)

// ToolError reports a missing or unusable external binary together
// with how the user can fix it.
type ToolError struct {
	Tool string
	Hint string
	Err  error
}

func (e *ToolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s unavailable: %v (%s)", e.Tool, e.Err, e.Hint)
	}
	return fmt.Sprintf("%s not found (%s)", e.Tool, e.Hint)
}

func (e *ToolError) Unwrap() error {
	return e.Err
}
