// Package export turns silence analysis into cut lists an external
// editor can finish with: keep-ranges rendered as a CMX-3600 EDL.
package export

import (
	"math"
	"sort"

	"github.com/clipflow/clipflow-engine/internal/media"
	"github.com/clipflow/clipflow-engine/internal/project"
)

// Clip is one keep-range of the source video, in milliseconds.
type Clip struct {
	Name    string `json:"name"`
	Path    string `json:"path"`
	StartMs int    `json:"start_ms"`
	EndMs   int    `json:"end_ms"`
}

// CutList is what remains of a video after dropping its silences.
type CutList struct {
	Title     string  `json:"title"`
	FrameRate float64 `json:"frame_rate"`
	Clips     []Clip  `json:"clips"`
	KeptMs    int     `json:"kept_ms"`
	RemovedMs int     `json:"removed_ms"`
}

// GenerateCutList complements the silence spans of a video into the
// ranges worth keeping. Silences are clamped to the video duration and
// merged when they overlap, so the result is always a sorted,
// non-overlapping cover of the non-silent parts.
func GenerateCutList(video project.VideoRef, silences []media.Segment, frameRate float64, title string) CutList {
	if title == "" {
		title = video.Name
	}
	durationMs := int(math.Round(video.Duration * 1000))

	var clips []Clip
	kept := 0
	cursor := 0
	for _, s := range mergeSilences(silences, durationMs) {
		if s.startMs > cursor {
			clips = append(clips, Clip{Name: video.Name, Path: video.Path, StartMs: cursor, EndMs: s.startMs})
			kept += s.startMs - cursor
		}
		if s.endMs > cursor {
			cursor = s.endMs
		}
	}
	if cursor < durationMs {
		clips = append(clips, Clip{Name: video.Name, Path: video.Path, StartMs: cursor, EndMs: durationMs})
		kept += durationMs - cursor
	}

	return CutList{
		Title:     title,
		FrameRate: frameRate,
		Clips:     clips,
		KeptMs:    kept,
		RemovedMs: durationMs - kept,
	}
}

type spanMs struct {
	startMs int
	endMs   int
}

func mergeSilences(silences []media.Segment, durationMs int) []spanMs {
	spans := make([]spanMs, 0, len(silences))
	for _, s := range silences {
		start := int(math.Round(s.Start * 1000))
		end := int(math.Round(s.End * 1000))
		if start < 0 {
			start = 0
		}
		if durationMs > 0 && end > durationMs {
			end = durationMs
		}
		if end <= start {
			continue
		}
		spans = append(spans, spanMs{startMs: start, endMs: end})
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].startMs < spans[j].startMs })

	merged := spans[:0]
	for _, s := range spans {
		if n := len(merged); n > 0 && s.startMs <= merged[n-1].endMs {
			if s.endMs > merged[n-1].endMs {
				merged[n-1].endMs = s.endMs
			}
			continue
		}
		merged = append(merged, s)
	}
	return merged
}
