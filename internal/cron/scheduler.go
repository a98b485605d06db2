// Package cron fires fetch runs on the schedules defined in config.
package cron

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	cronlib "github.com/robfig/cron/v3"

	"github.com/basket/biofetch/internal/bus"
	"github.com/basket/biofetch/internal/config"
	"github.com/basket/biofetch/internal/watch"
)

// cronParser parses standard 5-field cron expressions (minute, hour,
// dom, month, dow) plus descriptors like @daily and @every 1h.
var cronParser = cronlib.NewParser(
	cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow | cronlib.Descriptor,
)

// RunFunc starts one fetch run for a schedule's resolved symbols.
type RunFunc func(ctx context.Context, schedule string, symbols, datasets []string) error

// Config holds the dependencies for the scheduler.
type Config struct {
	Entries  []config.ScheduleEntry
	Panels   map[string][]string
	Run      RunFunc
	Bus      *bus.Bus
	Logger   *slog.Logger
	Interval time.Duration // tick interval; defaults to 1 minute if zero
}

// Scheduler ticks at a fixed interval and fires every schedule whose
// next run time has passed. Fires are sequential: artifact files do not
// tolerate concurrent runs, so a slow run delays later schedules.
type Scheduler struct {
	entries  []config.ScheduleEntry
	scheds   []cronlib.Schedule
	panels   map[string][]string
	run      RunFunc
	bus      *bus.Bus
	logger   *slog.Logger
	interval time.Duration

	nextRun []time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler validates every cron expression up front and returns a
// scheduler ready to start.
func NewScheduler(cfg Config) (*Scheduler, error) {
	if cfg.Run == nil {
		return nil, fmt.Errorf("cron: no run function configured")
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = 1 * time.Minute
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	scheds := make([]cronlib.Schedule, len(cfg.Entries))
	for i, entry := range cfg.Entries {
		sched, err := cronParser.Parse(entry.Cron)
		if err != nil {
			return nil, fmt.Errorf("schedule %q: parse cron %q: %w", entry.Name, entry.Cron, err)
		}
		scheds[i] = sched
	}

	return &Scheduler{
		entries:  cfg.Entries,
		scheds:   scheds,
		panels:   cfg.Panels,
		run:      cfg.Run,
		bus:      cfg.Bus,
		logger:   logger,
		interval: interval,
	}, nil
}

// Start begins the scheduler loop. It runs in a background goroutine
// and respects the provided context for shutdown.
func (s *Scheduler) Start(ctx context.Context) {
	now := time.Now()
	s.nextRun = make([]time.Time, len(s.entries))
	for i := range s.entries {
		s.nextRun[i] = s.scheds[i].Next(now)
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.loop(ctx)
	s.logger.Info("scheduler started", "schedules", len(s.entries), "interval", s.interval)
}

// Stop cancels the scheduler loop and waits for it to exit.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick fires every schedule that has come due and advances its next
// run time.
func (s *Scheduler) tick(ctx context.Context) {
	now := time.Now()
	for i := range s.entries {
		if s.nextRun[i].After(now) {
			continue
		}
		if err := s.fire(ctx, i); err != nil {
			s.logger.Error("schedule fire failed",
				"schedule", s.entries[i].Name,
				"error", err,
			)
		}
		s.nextRun[i] = s.scheds[i].Next(now)
	}
}

// FireNow runs the named schedule immediately, outside its cron cadence.
func (s *Scheduler) FireNow(ctx context.Context, name string) error {
	for i, entry := range s.entries {
		if entry.Name == name {
			return s.fire(ctx, i)
		}
	}
	return fmt.Errorf("unknown schedule %q", name)
}

func (s *Scheduler) fire(ctx context.Context, i int) error {
	entry := s.entries[i]
	symbols := s.resolveSymbols(entry)
	if len(symbols) == 0 {
		return fmt.Errorf("schedule %q resolved no symbols", entry.Name)
	}

	if s.bus != nil {
		s.bus.Publish(bus.TopicScheduleFired, bus.ScheduleEvent{
			Name:    entry.Name,
			Spec:    entry.Cron,
			Symbols: len(symbols),
		})
	}

	s.logger.Info("schedule fired",
		"schedule", entry.Name,
		"symbols", len(symbols),
		"next_run_at", s.scheds[i].Next(time.Now()),
	)
	return s.run(ctx, entry.Name, symbols, entry.Datasets)
}

// resolveSymbols merges a schedule's inline symbols, panel, and symbols
// file, deduplicated in that order. The file is re-read on every fire
// so edits apply without a restart.
func (s *Scheduler) resolveSymbols(entry config.ScheduleEntry) []string {
	var symbols []string
	seen := make(map[string]bool)
	add := func(list []string) {
		for _, sym := range list {
			if sym == "" || seen[sym] {
				continue
			}
			seen[sym] = true
			symbols = append(symbols, sym)
		}
	}

	add(entry.Symbols)
	if entry.Panel != "" {
		add(s.panels[entry.Panel])
	}
	if entry.SymbolsFile != "" {
		fromFile, err := watch.ReadSymbols(entry.SymbolsFile)
		if err != nil {
			s.logger.Warn("schedule symbols file unreadable",
				"schedule", entry.Name,
				"path", entry.SymbolsFile,
				"error", err,
			)
		} else {
			add(fromFile)
		}
	}
	return symbols
}

// NextRunTime parses the cron expression and returns the next run time after the given time.
func NextRunTime(cronExpr string, after time.Time) (time.Time, error) {
	sched, err := cronParser.Parse(cronExpr)
	if err != nil {
		return time.Time{}, err
	}
	return sched.Next(after), nil
}
