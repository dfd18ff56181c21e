// Package preview streams imported video files to the UI player with
// HTTP Range support so scrubbing does not pull whole files.
package preview

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/clipflow/clipflow-engine/internal/logging"
	"github.com/clipflow/clipflow-engine/internal/project"
)

// VideoSource resolves imported video IDs to their metadata.
type VideoSource interface {
	FindVideo(id string) (project.VideoRef, error)
}

type Streamer struct {
	source VideoSource
	logger *slog.Logger
}

func NewStreamer(source VideoSource, logger *slog.Logger) *Streamer {
	return &Streamer{
		source: source,
		logger: logger.With("component", "preview"),
	}
}

// ServeVideo streams the video with the given ID. Unknown IDs and
// files that have left the disk both answer 404.
func (s *Streamer) ServeVideo(w http.ResponseWriter, r *http.Request, videoID string) error {
	video, err := s.source.FindVideo(videoID)
	if err != nil {
		http.Error(w, "video not found", http.StatusNotFound)
		return nil
	}

	file, err := os.Open(video.Path)
	if err != nil {
		if os.IsNotExist(err) {
			s.logger.Warn("video file missing", "video_id", videoID, "path", logging.SanitizePath(video.Path))
			http.Error(w, "file not found", http.StatusNotFound)
			return nil
		}
		return fmt.Errorf("open video: %w", err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return fmt.Errorf("stat video: %w", err)
	}
	size := stat.Size()

	contentType := mime.TypeByExtension(filepath.Ext(video.Path))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Content-Type", contentType)

	rng, err := ParseRange(r.Header.Get("Range"), size)
	if errors.Is(err, ErrUnsatisfiable) {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", size))
		http.Error(w, "range not satisfiable", http.StatusRequestedRangeNotSatisfiable)
		return nil
	}

	// A malformed Range header is ignored and the whole file served.
	if rng == nil {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
		w.WriteHeader(http.StatusOK)
		io.Copy(w, file)
		return nil
	}

	if _, err := file.Seek(rng.Start, io.SeekStart); err != nil {
		return fmt.Errorf("seek video: %w", err)
	}
	w.Header().Set("Content-Length", strconv.FormatInt(rng.Length(), 10))
	w.Header().Set("Content-Range", rng.ContentRange(size))
	w.WriteHeader(http.StatusPartialContent)
	io.CopyN(w, file, rng.Length())
	return nil
}
