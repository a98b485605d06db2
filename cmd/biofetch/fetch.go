package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/basket/biofetch/internal/artifact"
	"github.com/basket/biofetch/internal/bus"
	"github.com/basket/biofetch/internal/config"
	"github.com/basket/biofetch/internal/handlers"
	"github.com/basket/biofetch/internal/journal"
	"github.com/basket/biofetch/internal/ledger"
	"github.com/basket/biofetch/internal/telemetry"
	"github.com/basket/biofetch/internal/tui"
	"github.com/basket/biofetch/internal/watch"
)

func runFetchCommand(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("fetch", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	output := fs.String("output", "", "artifact directory or .xlsx workbook path")
	datasets := fs.String("datasets", "", "comma-separated dataset categories (default: all)")
	panel := fs.String("panel", "", "fetch a named panel from config.yaml")
	symbolsFile := fs.String("symbols-file", "", "read gene symbols from a file, one per line")
	watchFile := fs.String("watch", "", "watch a symbols file and refetch on every change")
	forceTUI := fs.Bool("interactive", false, "force the live progress display on")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		fatalStartup(nil, "E_CONFIG_LOAD", err)
	}

	symbols, err := gatherSymbols(cfg, fs.Args(), *panel, *symbolsFile, *watchFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fetch: %v\n", err)
		return 2
	}
	if len(symbols) == 0 && *watchFile == "" {
		fmt.Fprintln(os.Stderr, "fetch: no symbols given (pass symbols, -panel, or -symbols-file)")
		return 2
	}

	categories := cfg.Datasets.Categories
	if *datasets != "" {
		categories = splitList(*datasets)
	}
	for _, c := range categories {
		if !artifact.ValidCategory(c) {
			fmt.Fprintf(os.Stderr, "fetch: unknown dataset category %q (have: %s)\n",
				c, strings.Join(artifact.Categories(), ", "))
			return 2
		}
	}

	// Watch mode is long-running, so it logs instead of drawing.
	useTUI := *watchFile == "" &&
		(*forceTUI || (isatty.IsTerminal(os.Stdout.Fd()) && os.Getenv("BIOFETCH_NO_TUI") == ""))

	// The journal comes up before the logger so artifact mutations are
	// recorded even if logger init fails later.
	if err := journal.Init(cfg.HomeDir); err != nil {
		fatalStartup(nil, "E_JOURNAL_INIT", err)
	}
	defer func() { _ = journal.Close() }()

	// Quiet logs (file-only) while the TUI owns the screen.
	logger, closer, err := telemetry.NewLogger(cfg.HomeDir, cfg.LogLevel, useTUI || cfg.Quiet)
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

	store, outputPath, err := newArtifactStore(cfg, *output, logger)
	if err != nil {
		fatalStartup(logger, "E_STORE_INIT", err)
	}

	runner, err := handlers.NewRunner(handlers.RunnerConfig{
		Source:     client,
		Store:      store,
		Ledger:     led,
		Bus:        eventBus,
		Tracer:     tracer,
		Logger:     logger,
		Categories: categories,
		CellLines:  cfg.Datasets.CellLines,
		MappingTTL: cfg.MappingTTL(),
		OutputPath: outputPath,
	})
	if err != nil {
		fatalStartup(logger, "E_RUNNER_INIT", err)
	}

	startNotifier(ctx, cfg, eventBus, logger)

	if *watchFile != "" {
		return runWatchLoop(ctx, cfg, runner, eventBus, logger, *watchFile, symbols, outputPath)
	}

	out, err := runFetchOnce(ctx, runner, eventBus, symbols, useTUI, logger)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "fetch: canceled")
			return 1
		}
		fmt.Fprintf(os.Stderr, "fetch: %v\n", err)
		return 1
	}
	printOutcome(out, outputPath)
	if out.Status != ledger.RunStatusSucceeded {
		return 1
	}
	return 0
}

// runFetchOnce executes one batch, behind the progress display when the
// terminal supports it. Quitting the display early cancels the run.
func runFetchOnce(ctx context.Context, runner *handlers.Runner, eventBus *bus.Bus, symbols []string, useTUI bool, logger *slog.Logger) (*handlers.Outcome, error) {
	if !useTUI {
		return runner.Run(ctx, symbols)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	tracker := tui.NewRunTracker()
	go tracker.Listen(runCtx, eventBus)

	var out *handlers.Outcome
	var runErr error
	done := make(chan struct{})
	go func() {
		defer close(done)
		out, runErr = runner.Run(runCtx, symbols)
	}()

	if err := tui.Run(runCtx, tracker.Snapshot); err != nil && runCtx.Err() == nil {
		logger.Warn("progress display failed", "error", err)
	}
	select {
	case <-done:
	default:
		// The user quit before the run finished.
		cancel()
		<-done
	}
	return out, runErr
}

// runWatchLoop fetches the initial batch, then refetches whatever the
// symbols file holds every time it changes. Runs until interrupted.
func runWatchLoop(ctx context.Context, cfg config.Config, runner *handlers.Runner, eventBus *bus.Bus, logger *slog.Logger, path string, initial []string, outputPath string) int {
	watcher, err := watch.NewWatcher(watch.Config{
		Path:     path,
		Debounce: time.Duration(cfg.Watch.DebounceSeconds) * time.Second,
		Bus:      eventBus,
		Logger:   logger,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "fetch: %v\n", err)
		return 1
	}
	if err := watcher.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fetch: %v\n", err)
		return 1
	}

	fmt.Printf("watching %s (Ctrl-C to stop)\n", path)
	if len(initial) > 0 {
		if out, err := runner.Run(ctx, initial); err != nil {
			if ctx.Err() != nil {
				return 0
			}
			logger.Error("fetch run failed", "error", err)
		} else {
			printOutcome(out, outputPath)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return 0
		case symbols, ok := <-watcher.Events():
			if !ok {
				return 0
			}
			out, err := runner.Run(ctx, symbols)
			if err != nil {
				if ctx.Err() != nil {
					return 0
				}
				logger.Error("fetch run failed", "error", err)
				continue
			}
			printOutcome(out, outputPath)
		}
	}
}

func printOutcome(out *handlers.Outcome, outputPath string) {
	fmt.Printf("run %s %s: %d processed, %d failed, %d unresolved, %d rows appended\n",
		shortID(out.RunID), out.Status, len(out.Processed), len(out.Failed), len(out.Unresolved), out.Rows)
	if len(out.Failed) > 0 {
		fmt.Printf("  failed: %s\n", strings.Join(out.Failed, ", "))
	}
	if len(out.Unresolved) > 0 {
		fmt.Printf("  unresolved: %s\n", strings.Join(out.Unresolved, ", "))
	}
	fmt.Printf("  artifacts: %s\n", outputPath)
}

// gatherSymbols combines positional args, a named panel, and symbol
// files into one deduplicated batch.
func gatherSymbols(cfg config.Config, args []string, panel, symbolsFile, watchFile string) ([]string, error) {
	symbols := append([]string(nil), args...)
	if panel != "" {
		ps, ok := cfg.Panel(panel)
		if !ok {
			return nil, fmt.Errorf("panel %q not in config.yaml", panel)
		}
		symbols = append(symbols, ps...)
	}
	for _, path := range []string{symbolsFile, watchFile} {
		if path == "" {
			continue
		}
		fileSymbols, err := watch.ReadSymbols(path)
		if err != nil {
			return nil, err
		}
		symbols = append(symbols, fileSymbols...)
	}
	return dedupeSymbols(symbols), nil
}

// dedupeSymbols drops blanks and repeats, keeping first positions.
func dedupeSymbols(symbols []string) []string {
	seen := make(map[string]bool, len(symbols))
	var out []string
	for _, s := range symbols {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// splitList parses a comma-separated flag value.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// shortID trims a uuid down to its first block for display.
func shortID(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	return id
}
