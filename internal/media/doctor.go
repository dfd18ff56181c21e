package media

import (
	"context"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"
)

const defaultCacheTTL = 5 * time.Minute

// ToolStatus describes one external binary the engine depends on.
type ToolStatus struct {
	Name      string `json:"name"`
	Available bool   `json:"available"`
	Path      string `json:"path,omitempty"`
	Version   string `json:"version,omitempty"`
}

// Capabilities is the result of a tool probe.
type Capabilities struct {
	Tools         map[string]ToolStatus `json:"tools"`
	HasMedia      bool                  `json:"has_media"`
	HasTranscribe bool                  `json:"has_transcribe"`
	ProbedAt      time.Time             `json:"probed_at"`
}

// Prober checks which external tools are installed.
type Prober interface {
	Probe(ctx context.Context) (*Capabilities, error)
}

// ProberConfig holds the tool paths to check. Empty paths fall back to
// PATH lookup.
type ProberConfig struct {
	FFmpegPath  string
	FFprobePath string
	WhisperPath string
	Timeout     time.Duration
	Logger      *slog.Logger
}

// ToolProber is the production Prober: LookPath plus a -version run
// for the FFmpeg binaries.
type ToolProber struct {
	cfg ProberConfig
}

func NewToolProber(cfg ProberConfig) *ToolProber {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &ToolProber{cfg: cfg}
}

func (p *ToolProber) Probe(ctx context.Context) (*Capabilities, error) {
	caps := &Capabilities{
		Tools:    map[string]ToolStatus{},
		ProbedAt: time.Now(),
	}

	caps.Tools["ffmpeg"] = p.check(ctx, "ffmpeg", p.cfg.FFmpegPath, true)
	caps.Tools["ffprobe"] = p.check(ctx, "ffprobe", p.cfg.FFprobePath, true)
	// The whisper CLI has no stable version flag; presence is enough.
	caps.Tools["whisper"] = p.check(ctx, "whisper", p.cfg.WhisperPath, false)

	caps.HasMedia = caps.Tools["ffmpeg"].Available && caps.Tools["ffprobe"].Available
	caps.HasTranscribe = caps.Tools["whisper"].Available

	return caps, nil
}

func (p *ToolProber) check(ctx context.Context, name, preferred string, withVersion bool) ToolStatus {
	path, err := resolveTool(preferred, name, "")
	if err != nil {
		return ToolStatus{Name: name}
	}

	status := ToolStatus{Name: name, Available: true, Path: path}
	if !withVersion {
		return status
	}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, path, "-version").Output()
	if err == nil {
		status.Version = parseVersionLine(string(out))
	}
	return status
}

// parseVersionLine extracts "N.N.N" from output like
// "ffmpeg version 6.1.1 Copyright (c) ...".
func parseVersionLine(out string) string {
	line, _, _ := strings.Cut(out, "\n")
	fields := strings.Fields(line)
	for i, f := range fields {
		if f == "version" && i+1 < len(fields) {
			return fields[i+1]
		}
	}
	if len(line) > 64 {
		line = line[:64]
	}
	return strings.TrimSpace(line)
}

// CachedDoctor wraps a Prober to cache probe results with a TTL so the
// status endpoint and tray do not spawn subprocesses on every poll.
type CachedDoctor struct {
	prober Prober
	ttl    time.Duration
	logger *slog.Logger

	mu     sync.RWMutex
	cached *Capabilities
}

func NewCachedDoctor(prober Prober, logger *slog.Logger) *CachedDoctor {
	return &CachedDoctor{
		prober: prober,
		ttl:    defaultCacheTTL,
		logger: logger,
	}
}

// Get returns cached capabilities if fresh, otherwise re-probes.
func (d *CachedDoctor) Get(ctx context.Context) (*Capabilities, error) {
	d.mu.RLock()
	if d.cached != nil && time.Since(d.cached.ProbedAt) < d.ttl {
		caps := d.cached
		d.mu.RUnlock()
		return caps, nil
	}
	d.mu.RUnlock()

	return d.Refresh(ctx)
}

// Peek returns whatever is cached without probing.
func (d *CachedDoctor) Peek() *Capabilities {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cached
}

// Refresh forces a new probe regardless of cache freshness. A failed
// probe falls back to the stale cache when one exists.
func (d *CachedDoctor) Refresh(ctx context.Context) (*Capabilities, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	caps, err := d.prober.Probe(ctx)
	if err != nil {
		d.logger.Warn("tool probe failed", "error", err)
		if d.cached != nil {
			d.logger.Info("returning stale capabilities cache")
			return d.cached, nil
		}
		return nil, err
	}

	d.cached = caps
	return caps, nil
}

// Invalidate clears the cached capabilities.
func (d *CachedDoctor) Invalidate() {
	d.mu.Lock()
	d.cached = nil
	d.mu.Unlock()
}
