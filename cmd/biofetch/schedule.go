package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/basket/biofetch/internal/bus"
	"github.com/basket/biofetch/internal/config"
	"github.com/basket/biofetch/internal/cron"
	"github.com/basket/biofetch/internal/handlers"
	"github.com/basket/biofetch/internal/journal"
	"github.com/basket/biofetch/internal/ledger"
	"github.com/basket/biofetch/internal/telemetry"
)

func runScheduleCommand(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("schedule", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	list := fs.Bool("list", false, "print configured schedules and exit")
	once := fs.String("once", "", "fire one schedule by name, then exit")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "usage: biofetch schedule [-list] [-once NAME]")
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		fatalStartup(nil, "E_CONFIG_LOAD", err)
	}
	if len(cfg.Schedules) == 0 {
		fmt.Fprintln(os.Stderr, "schedule: no schedules in config.yaml")
		return 1
	}

	if *list {
		now := time.Now()
		for _, entry := range cfg.Schedules {
			when := "invalid cron"
			if next, err := cron.NextRunTime(entry.Cron, now); err == nil {
				when = next.Local().Format("2006-01-02 15:04")
			}
			fmt.Printf("  %-20s %-15s next %s\n", entry.Name, entry.Cron, when)
		}
		return 0
	}

	if err := journal.Init(cfg.HomeDir); err != nil {
		fatalStartup(nil, "E_JOURNAL_INIT", err)
	}
	defer func() { _ = journal.Close() }()

	logger, closer, err := telemetry.NewLogger(cfg.HomeDir, cfg.LogLevel, cfg.Quiet)
	if err != nil {
		fatalStartup(nil, "E_LOGGER_INIT", err)
	}
	defer closer.Close()
	slog.SetDefault(logger)

	eventBus := bus.New()

	tracer, otelShutdown, err := initOTel(ctx, cfg, eventBus, logger)
	if err != nil {
		fatalStartup(logger, "E_OTEL_INIT", err)
	}
	defer otelShutdown()

	led, err := ledger.Open(cfg.LedgerPath(), eventBus)
	if err != nil {
		fatalStartup(logger, "E_LEDGER_OPEN", err)
	}
	defer led.Close()
	journal.SetDB(led.DB())

	client, err := newServiceClient(cfg, tracer, logger)
	if err != nil {
		fatalStartup(logger, "E_SERVICE_CLIENT", err)
	}

	store, outputPath, err := newArtifactStore(cfg, "", logger)
	if err != nil {
		fatalStartup(logger, "E_STORE_INIT", err)
	}

	startNotifier(ctx, cfg, eventBus, logger)

	// Each fire gets its own runner because entries can narrow the
	// dataset categories.
	run := func(ctx context.Context, schedule string, symbols, datasets []string) error {
		categories := datasets
		if len(categories) == 0 {
			categories = cfg.Datasets.Categories
		}
		runner, err := handlers.NewRunner(handlers.RunnerConfig{
			Source:     client,
			Store:      store,
			Ledger:     led,
			Bus:        eventBus,
			Tracer:     tracer,
			Logger:     logger.With("schedule", schedule),
			Categories: categories,
			CellLines:  cfg.Datasets.CellLines,
			MappingTTL: cfg.MappingTTL(),
			OutputPath: outputPath,
		})
		if err != nil {
			return err
		}
		out, err := runner.Run(ctx, symbols)
		if err != nil {
			return err
		}
		logger.Info("scheduled run finished",
			"schedule", schedule, "run_id", out.RunID, "status", string(out.Status), "rows", out.Rows)
		return nil
	}

	sched, err := cron.NewScheduler(cron.Config{
		Entries: cfg.Schedules,
		Panels:  cfg.Panels,
		Run:     run,
		Bus:     eventBus,
		Logger:  logger,
	})
	if err != nil {
		fatalStartup(logger, "E_SCHEDULER_INIT", err)
	}

	if *once != "" {
		if err := sched.FireNow(ctx, *once); err != nil {
			fmt.Fprintf(os.Stderr, "schedule: %v\n", err)
			return 1
		}
		return 0
	}

	// Keep next fire times in the ledger so status can show them.
	recordNextRuns(ctx, cfg, led, logger)
	fired := eventBus.Subscribe(bus.TopicScheduleFired)
	go func() {
		defer eventBus.Unsubscribe(fired)
		for {
			select {
			case <-ctx.Done():
				return
			case <-fired.Ch():
				recordNextRuns(ctx, cfg, led, logger)
			}
		}
	}()

	// A config edit can change cron expressions or panels; flag it rather
	// than hot-reloading mid-schedule.
	cfgWatcher := config.NewWatcher(cfg.HomeDir, logger)
	if err := cfgWatcher.Start(ctx); err != nil {
		logger.Warn("config watcher failed", "error", err)
	} else {
		go func() {
			for range cfgWatcher.Events() {
				logger.Warn("config.yaml changed; restart biofetch schedule to apply")
			}
		}()
	}

	sched.Start(ctx)
	defer sched.Stop()

	fmt.Printf("running %d schedule(s), Ctrl-C to stop\n", len(cfg.Schedules))
	<-ctx.Done()
	return 0
}

func recordNextRuns(ctx context.Context, cfg config.Config, led *ledger.Store, logger *slog.Logger) {
	now := time.Now()
	for _, entry := range cfg.Schedules {
		next, err := cron.NextRunTime(entry.Cron, now)
		if err != nil {
			continue
		}
		if err := led.SetValue(ctx, "schedule.next_run."+entry.Name, next.UTC().Format(time.RFC3339)); err != nil {
			logger.Warn("record next run", "schedule", entry.Name, "error", err)
		}
	}
}
