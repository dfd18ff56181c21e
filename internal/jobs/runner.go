package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/clipflow/clipflow-engine/internal/media"
	"github.com/clipflow/clipflow-engine/internal/project"
	"github.com/clipflow/clipflow-engine/internal/transcribe"
)

const defaultPollInterval = 2 * time.Second

// Events receives job lifecycle notifications. The API layer fans them
// out to connected clients; a nil Events drops them.
type Events interface {
	Publish(event string, payload any)
}

// Runner polls for pending jobs and executes them one at a time.
type Runner struct {
	repo         Repository
	backend      media.Backend
	transcriber  transcribe.Transcriber
	events       Events
	logger       *slog.Logger
	pollInterval time.Duration
	running      atomic.Bool
	paused       atomic.Bool
}

func NewRunner(repo Repository, backend media.Backend, transcriber transcribe.Transcriber, events Events, logger *slog.Logger) *Runner {
	return &Runner{
		repo:         repo,
		backend:      backend,
		transcriber:  transcriber,
		events:       events,
		logger:       logger,
		pollInterval: defaultPollInterval,
	}
}

// Enqueue persists a job for the poll loop to pick up.
func (r *Runner) Enqueue(ctx context.Context, job *Job) error {
	if err := r.repo.Create(ctx, job); err != nil {
		return fmt.Errorf("failed to enqueue %s job: %w", job.Type, err)
	}
	r.logger.Info("job enqueued", "job_id", job.ID, "type", job.Type)
	return nil
}

func (r *Runner) Start(ctx context.Context) {
	if r.running.Swap(true) {
		return
	}

	r.logger.Info("job runner started")

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("job runner stopping")
			r.running.Store(false)
			return
		case <-ticker.C:
			if !r.paused.Load() {
				r.processNextJob(ctx)
			}
		}
	}
}

func (r *Runner) Pause() {
	r.paused.Store(true)
	r.logger.Info("job runner paused")
}

func (r *Runner) Resume() {
	r.paused.Store(false)
	r.logger.Info("job runner resumed")
}

func (r *Runner) IsPaused() bool {
	return r.paused.Load()
}

func (r *Runner) IsRunning() bool {
	return r.running.Load()
}

func (r *Runner) processNextJob(ctx context.Context) {
	job, err := r.repo.NextPending(ctx)
	if err != nil {
		r.logger.Error("failed to poll for pending jobs", "error", err)
		return
	}
	if job == nil {
		return
	}

	logger := r.logger.With("job_id", job.ID, "type", job.Type)
	logger.Info("processing job")

	if err := r.repo.MarkRunning(ctx, job.ID); err != nil {
		logger.Error("failed to mark job running", "error", err)
		return
	}
	r.publish("job_started", map[string]any{"job_id": job.ID, "type": job.Type})

	result, err := r.execute(ctx, job)
	if err != nil {
		logger.Error("job failed", "error", err)
		if dbErr := r.repo.Fail(ctx, job.ID, err.Error()); dbErr != nil {
			logger.Error("failed to record job failure", "error", dbErr)
		}
		r.publish("job_failed", map[string]any{"job_id": job.ID, "type": job.Type, "error": err.Error()})
		return
	}

	if err := r.repo.Complete(ctx, job.ID, result); err != nil {
		logger.Error("failed to record job completion", "error", err)
		return
	}
	r.publish("job_completed", map[string]any{"job_id": job.ID, "type": job.Type})
	logger.Info("job completed")
}

func (r *Runner) execute(ctx context.Context, job *Job) ([]byte, error) {
	switch job.Type {
	case TypeTrim:
		var p TrimPayload
		if err := json.Unmarshal(job.Payload, &p); err != nil {
			return nil, fmt.Errorf("invalid trim payload: %w", err)
		}
		if err := r.backend.Trim(ctx, p.Input, p.Output, p.Start, p.End); err != nil {
			return nil, err
		}
		return json.Marshal(FileResult{Output: p.Output})

	case TypeExtractAudio:
		var p ExtractAudioPayload
		if err := json.Unmarshal(job.Payload, &p); err != nil {
			return nil, fmt.Errorf("invalid extract_audio payload: %w", err)
		}
		if err := r.backend.ExtractAudio(ctx, p.Input, p.Output); err != nil {
			return nil, err
		}
		return json.Marshal(FileResult{Output: p.Output})

	case TypeAnalyzeSilence:
		var p AnalyzeSilencePayload
		if err := json.Unmarshal(job.Payload, &p); err != nil {
			return nil, fmt.Errorf("invalid analyze_silence payload: %w", err)
		}
		segments, err := r.backend.AnalyzeSilence(ctx, p.Input, p.ThresholdDB)
		if err != nil {
			return nil, err
		}
		return json.Marshal(SilenceResult{Segments: segments})

	case TypeExport:
		var p ExportPayload
		if err := json.Unmarshal(job.Payload, &p); err != nil {
			return nil, fmt.Errorf("invalid export payload: %w", err)
		}
		if err := r.backend.Export(ctx, p.Input, p.Output, p.Quality); err != nil {
			return nil, err
		}
		return json.Marshal(FileResult{Output: p.Output})

	case TypeTranscribe:
		if r.transcriber == nil {
			return nil, errors.New("transcriber not configured")
		}
		var p TranscribePayload
		if err := json.Unmarshal(job.Payload, &p); err != nil {
			return nil, fmt.Errorf("invalid transcribe payload: %w", err)
		}

		// Whisper wants audio. A video input runs as two steps:
		// extract the track, then transcribe it.
		input := p.Input
		if project.IsVideoFile(input) {
			tmpDir, err := os.MkdirTemp("", "clipflow-transcribe-")
			if err != nil {
				return nil, fmt.Errorf("failed to stage audio extraction: %w", err)
			}
			defer os.RemoveAll(tmpDir)

			base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
			wav := filepath.Join(tmpDir, base+".wav")
			if err := r.backend.ExtractAudio(ctx, input, wav); err != nil {
				return nil, err
			}
			r.reportProgress(ctx, job.ID, 50)
			input = wav
		}

		result, err := r.transcriber.Transcribe(ctx, input, p.Model)
		if err != nil {
			return nil, err
		}
		return json.Marshal(result)

	default:
		return nil, fmt.Errorf("unknown job type %q", job.Type)
	}
}

// reportProgress records a completed step and tells listening clients.
// A failed write is logged but never fails the job itself.
func (r *Runner) reportProgress(ctx context.Context, jobID string, progress int) {
	if err := r.repo.UpdateProgress(ctx, jobID, progress); err != nil {
		r.logger.Warn("failed to record job progress", "job_id", jobID, "error", err)
	}
	r.publish("job_progress", map[string]any{"job_id": jobID, "progress": progress})
}

func (r *Runner) publish(event string, payload any) {
	if r.events == nil {
		return
	}
	r.events.Publish(event, payload)
}
