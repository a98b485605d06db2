// Package watch re-runs fetches when a symbols file changes on disk.
package watch

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/fsnotify/fsnotify"

	"github.com/basket/biofetch/internal/bus"
)

// Config holds the dependencies for a symbols-file watcher.
type Config struct {
	// Path is the symbols file to watch.
	Path string
	// Debounce collapses editor save bursts into one trigger.
	// Defaults to 2 seconds.
	Debounce time.Duration
	Bus      *bus.Bus
	Logger   *slog.Logger
}

// Watcher watches one symbols file and emits the parsed symbol list
// whenever it changes. The parent directory is watched rather than the
// file itself so atomic saves (write to temp, rename over) keep
// triggering.
type Watcher struct {
	path     string
	debounce time.Duration
	bus      *bus.Bus
	logger   *slog.Logger
	events   chan []string
}

func NewWatcher(cfg Config) (*Watcher, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, fmt.Errorf("watch: no symbols file configured")
	}
	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = 2 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		path:     cfg.Path,
		debounce: debounce,
		bus:      cfg.Bus,
		logger:   logger,
		events:   make(chan []string, 16),
	}, nil
}

// Events returns the channel that carries one symbol batch per change.
func (w *Watcher) Events() <-chan []string {
	return w.events
}

func (w *Watcher) Start(ctx context.Context) error {
	abs, err := filepath.Abs(w.path)
	if err != nil {
		return fmt.Errorf("watch %s: %w", w.path, err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("new watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		fsw.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	go func() {
		defer func() {
			_ = fsw.Close()
			close(w.events)
		}()

		// Debounce bursts of events.
		var pending bool
		var timer *time.Timer
		var timerC <-chan time.Time
		flush := func() {
			if !pending {
				return
			}
			pending = false
			w.emit()
		}

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-fsw.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				if filepath.Clean(ev.Name) != abs {
					continue
				}

				pending = true
				if timer == nil {
					timer = time.NewTimer(w.debounce)
					timerC = timer.C
				} else {
					if !timer.Stop() {
						select {
						case <-timer.C:
						default:
						}
					}
					timer.Reset(w.debounce)
					timerC = timer.C
				}

			case err, ok := <-fsw.Errors:
				if !ok {
					return
				}
				w.logger.Warn("symbols watcher error", "error", err)
			case <-timerC:
				flush()
				timerC = nil
			}
		}
	}()

	w.logger.Info("watching symbols file", "path", abs, "debounce", w.debounce)
	return nil
}

// emit reads the symbols file and pushes the batch to subscribers.
func (w *Watcher) emit() {
	symbols, err := ReadSymbols(w.path)
	if err != nil {
		w.logger.Warn("symbols file unreadable after change", "path", w.path, "error", err)
		return
	}
	if len(symbols) == 0 {
		w.logger.Info("symbols file empty, skipping trigger", "path", w.path)
		return
	}

	if w.bus != nil {
		w.bus.Publish(bus.TopicWatchTriggered, bus.WatchEvent{
			Path:    w.path,
			Symbols: len(symbols),
		})
	}
	select {
	case w.events <- symbols:
	default:
	}
}

// ReadSymbols parses a symbols file: one or more gene symbols per line,
// separated by whitespace or commas, with #-comments. Duplicates keep
// their first position.
func ReadSymbols(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var symbols []string
	seen := make(map[string]bool)
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		fields := strings.FieldsFunc(line, func(r rune) bool {
			return r == ',' || unicode.IsSpace(r)
		})
		for _, field := range fields {
			if seen[field] {
				continue
			}
			seen[field] = true
			symbols = append(symbols, field)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return symbols, nil
}
