// Package ui is the optional system tray. The engine is fully usable
// over the HTTP API without it; headless environments skip it.
package ui

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/getlantern/systray"

	"github.com/clipflow/clipflow-engine/internal/jobs"
)

type Tray struct {
	runner *jobs.Runner
	logger *slog.Logger

	statusItem  *systray.MenuItem
	projectItem *systray.MenuItem
	pauseItem   *systray.MenuItem

	mu sync.Mutex

	onSaveNow func() error
	onQuit    func()
}

type TrayConfig struct {
	Runner    *jobs.Runner
	Logger    *slog.Logger
	OnSaveNow func() error
	OnQuit    func()
}

func NewTray(cfg TrayConfig) *Tray {
	return &Tray{
		runner:    cfg.Runner,
		logger:    cfg.Logger,
		onSaveNow: cfg.OnSaveNow,
		onQuit:    cfg.OnQuit,
	}
}

func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

func (t *Tray) onReady() {
	systray.SetIcon(iconBytes)
	systray.SetTitle("ClipFlow")
	systray.SetTooltip("ClipFlow Engine")

	t.statusItem = systray.AddMenuItem("Status: Idle", "Current engine status")
	t.statusItem.Disable()

	t.projectItem = systray.AddMenuItem("No project open", "Current project")
	t.projectItem.Disable()

	systray.AddSeparator()

	t.pauseItem = systray.AddMenuItem("Pause Jobs", "Pause media processing")

	saveItem := systray.AddMenuItem("Save Now", "Save the current project")

	systray.AddSeparator()

	quitItem := systray.AddMenuItem("Quit", "Quit ClipFlow Engine")

	go func() {
		for {
			select {
			case <-t.pauseItem.ClickedCh:
				t.togglePause()
			case <-saveItem.ClickedCh:
				t.handleSaveNow()
			case <-quitItem.ClickedCh:
				t.logger.Info("quit requested from tray")
				if t.onQuit != nil {
					t.onQuit()
				}
				systray.Quit()
				return
			}
		}
	}()

	t.logger.Info("system tray ready")
}

func (t *Tray) onExit() {
	t.logger.Info("system tray exiting")
}

func (t *Tray) togglePause() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.runner == nil {
		return
	}

	if t.runner.IsPaused() {
		t.runner.Resume()
		t.pauseItem.SetTitle("Pause Jobs")
		t.statusItem.SetTitle("Status: Idle")
	} else {
		t.runner.Pause()
		t.pauseItem.SetTitle("Resume Jobs")
		t.statusItem.SetTitle("Status: Paused")
	}
}

func (t *Tray) handleSaveNow() {
	if t.onSaveNow != nil {
		if err := t.onSaveNow(); err != nil {
			t.logger.Error("failed to save project", "error", err)
		}
	}
}

func (t *Tray) UpdateStatus(status string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.runner != nil && t.runner.IsPaused() {
		return
	}
	t.statusItem.SetTitle("Status: " + status)
}

// UpdateProject reflects the open project in the menu. An empty name
// means nothing is open.
func (t *Tray) UpdateProject(name string, videos int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if name == "" {
		t.projectItem.SetTitle("No project open")
		return
	}
	t.projectItem.SetTitle(fmt.Sprintf("%s (%d videos)", name, videos))
}

func (t *Tray) Quit() {
	systray.Quit()
}
