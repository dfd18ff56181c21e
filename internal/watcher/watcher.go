// Package watcher auto-imports videos dropped into a configured folder.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/clipflow/clipflow-engine/internal/logging"
	"github.com/clipflow/clipflow-engine/internal/project"
)

// Files are imported only after no new events arrived for this long,
// so half-copied videos do not get picked up.
const defaultSettleDelay = 2 * time.Second

// Importer brings discovered files into the current project.
type Importer interface {
	ImportVideos(ctx context.Context, paths []string) ([]project.VideoRef, error)
}

// Watcher runs a background watch loop.
type Watcher interface {
	Start(ctx context.Context) error
}

// Disabled is the no-op watcher used when no watch folder is set.
type Disabled struct{}

func (Disabled) Start(ctx context.Context) error { return nil }

// FolderWatcher imports new video files from a single watched folder.
type FolderWatcher struct {
	folder   string
	importer Importer
	logger   *slog.Logger
	settle   time.Duration
	done     chan struct{}
}

func New(folder string, importer Importer, logger *slog.Logger) *FolderWatcher {
	return &FolderWatcher{
		folder:   folder,
		importer: importer,
		logger:   logger.With("component", "watcher"),
		settle:   defaultSettleDelay,
		done:     make(chan struct{}),
	}
}

// Start begins watching the folder and returns once the watch is
// registered. The loop runs until ctx is canceled.
func (w *FolderWatcher) Start(ctx context.Context) error {
	if w.folder == "" {
		return fmt.Errorf("watch folder not configured")
	}
	info, err := os.Stat(w.folder)
	if err != nil {
		return fmt.Errorf("watch folder: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("watch folder is not a directory: %s", logging.SanitizePath(w.folder))
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := fsw.Add(w.folder); err != nil {
		fsw.Close()
		return fmt.Errorf("watch folder: %w", err)
	}

	w.logger.Info("watching folder", "path", logging.SanitizePath(w.folder))
	go w.loop(ctx, fsw)
	return nil
}

func (w *FolderWatcher) loop(ctx context.Context, fsw *fsnotify.Watcher) {
	defer close(w.done)
	defer fsw.Close()

	settle := time.NewTimer(w.settle)
	settle.Stop()
	pending := make(map[string]struct{})

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) {
				continue
			}
			if !project.IsVideoFile(event.Name) {
				continue
			}
			pending[event.Name] = struct{}{}
			settle.Stop()
			settle.Reset(w.settle)

		case <-settle.C:
			w.importPending(ctx, pending)
			pending = make(map[string]struct{})

		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", "error", err)
		}
	}
}

func (w *FolderWatcher) importPending(ctx context.Context, pending map[string]struct{}) {
	paths := make([]string, 0, len(pending))
	for path := range pending {
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}
		paths = append(paths, path)
	}
	if len(paths) == 0 {
		return
	}
	sort.Strings(paths)

	videos, err := w.importer.ImportVideos(ctx, paths)
	if err != nil {
		w.logger.Error("auto-import failed", "error", err, "count", len(paths))
		return
	}
	w.logger.Info("auto-imported videos", "count", len(videos))
}
