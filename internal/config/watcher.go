package config

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// reloadOps are the operations that count as a config rewrite. Editors
// that replace the file atomically show up as Create or Rename.
const reloadOps = fsnotify.Write | fsnotify.Create | fsnotify.Rename

// ReloadEvent reports one config.yaml change on disk.
type ReloadEvent struct {
	Path string
	Op   fsnotify.Op
}

// Watcher notices config.yaml changes so long-running commands can
// tell the operator a restart is needed. It watches the home directory
// rather than the file itself; a watch on the file would be lost the
// first time an editor replaced it.
type Watcher struct {
	homeDir string
	logger  *slog.Logger
	events  chan ReloadEvent
}

func NewWatcher(homeDir string, logger *slog.Logger) *Watcher {
	w := &Watcher{homeDir: homeDir, logger: logger, events: make(chan ReloadEvent, 16)}
	if w.logger == nil {
		w.logger = slog.Default()
	}
	return w
}

// Events returns the channel reload notices arrive on. It is closed
// once the context given to Start is canceled.
func (w *Watcher) Events() <-chan ReloadEvent { return w.events }

// Start begins watching in a background goroutine.
func (w *Watcher) Start(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fsw.Add(w.homeDir); err != nil {
		fsw.Close()
		return err
	}
	go w.run(ctx, fsw)
	return nil
}

func (w *Watcher) run(ctx context.Context, fsw *fsnotify.Watcher) {
	defer fsw.Close()
	defer close(w.events)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			if !w.relevant(ev) {
				continue
			}
			w.logger.Info("config.yaml changed on disk", "path", ev.Name, "op", ev.Op.String())
			select {
			case w.events <- ReloadEvent{Path: ev.Name, Op: ev.Op}:
			default:
				// A stalled consumer drops notices rather than
				// wedging the watch loop.
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watch error", "error", err)
		}
	}
}

func (w *Watcher) relevant(ev fsnotify.Event) bool {
	return filepath.Base(ev.Name) == "config.yaml" && ev.Op&reloadOps != 0
}
