package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/basket/biofetch/internal/artifact"
	"github.com/basket/biofetch/internal/bus"
	"github.com/basket/biofetch/internal/channels"
	"github.com/basket/biofetch/internal/config"
	otelPkg "github.com/basket/biofetch/internal/otel"
	"github.com/basket/biofetch/internal/umap"
)

// Version is set via ldflags at build time: -ldflags "-X main.Version=..."
var Version = "v0.4-dev"

func printUsage() {
	fmt.Fprintf(os.Stderr, `Usage of %s:

COMMANDS:
  %s fetch [flags] SYMBOL...  Fetch datasets for gene symbols and append
                              the rows to the artifact files
                              Flags: -output, -datasets, -panel,
                              -symbols-file, -watch, -interactive
  %s map [-refresh] SYMBOL... Resolve gene symbols to UniProtKB accessions
  %s status [-limit N] [-run ID]
                              Show recent runs and the artifact inventory
  %s scores [options]         Score STRING interaction pairs into the
                              protein_scores artifact
                              Options: -links <file>, -pairs <file>, -output
  %s schedule [-list] [-once NAME]
                              Run configured schedules in the foreground
  %s doctor [-json]           Run diagnostic checks
  %s init                     Write a starter config.yaml
  %s config <action>          Manage configuration
                              Actions: show, path, set-key, set-output

ENVIRONMENT VARIABLES:
  BIOFETCH_HOME           Data directory (default: ~/.biofetch)
  BIOFETCH_NO_TUI         Set to 1 to disable the live progress display
  UMAP_API_KEY            Service API key (overrides config.yaml)
  TELEGRAM_TOKEN          Bot token for run notifications

EXAMPLES:
  Fetch two genes:        %s fetch KRAS TP53
  Fetch a named panel:    %s fetch -panel oncology
  Watch a symbols file:   %s fetch -watch /data/symbols.txt
  Resolve accessions:     %s map EGFR BRAF
  Run diagnostics:        %s doctor
`, os.Args[0], os.Args[0], os.Args[0], os.Args[0], os.Args[0], os.Args[0],
		os.Args[0], os.Args[0], os.Args[0], os.Args[0], os.Args[0], os.Args[0],
		os.Args[0], os.Args[0])
}

func main() {
	loadDotEnv(".env")

	flag.Usage = printUsage
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(2)
	}

	switch strings.ToLower(strings.TrimSpace(args[0])) {
	case "help", "-h", "--help":
		printUsage()
		os.Exit(0)
	case "version", "-version", "--version":
		fmt.Printf("biofetch %s\n", Version)
		os.Exit(0)
	case "fetch":
		os.Exit(runFetchCommand(ctx, args[1:]))
	case "map":
		os.Exit(runMapCommand(ctx, args[1:]))
	case "status":
		os.Exit(runStatusCommand(ctx, args[1:]))
	case "scores":
		os.Exit(runScoresCommand(ctx, args[1:]))
	case "schedule":
		os.Exit(runScheduleCommand(ctx, args[1:]))
	case "doctor":
		os.Exit(runDoctorCommand(ctx, args[1:]))
	case "init":
		os.Exit(runInitCommand(args[1:]))
	case "config":
		os.Exit(runConfigCommand(args[1:]))
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", args[0])
		printUsage()
		os.Exit(2)
	}
}

// newServiceClient builds the UMap client from config. Zero values fall
// back to the client's own defaults.
func newServiceClient(cfg config.Config, tracer trace.Tracer, logger *slog.Logger) (*umap.Client, error) {
	return umap.New(umap.Config{
		BaseURL:    cfg.Service.BaseURL,
		APIKey:     cfg.Service.APIKey,
		Timeout:    time.Duration(cfg.Service.TimeoutSeconds) * time.Second,
		MaxRetries: cfg.Service.MaxRetries,
		PageSize:   cfg.Service.PageSize,
		Logger:     logger,
		Tracer:     tracer,
	})
}

// newArtifactStore picks the store from config, letting override replace
// both location and format: a path ending in .xlsx selects the workbook
// store, anything else a CSV directory. It returns the store plus the
// path recorded on run rows.
func newArtifactStore(cfg config.Config, override string, logger *slog.Logger) (artifact.Store, string, error) {
	if override != "" {
		if strings.EqualFold(filepath.Ext(override), ".xlsx") {
			if dir := filepath.Dir(override); dir != "." {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return nil, "", fmt.Errorf("create workbook dir: %w", err)
				}
			}
			return artifact.NewWorkbookStore(override, logger), override, nil
		}
		if err := os.MkdirAll(override, 0o755); err != nil {
			return nil, "", fmt.Errorf("create output dir: %w", err)
		}
		return artifact.NewCSVStore(override, logger), override, nil
	}

	dir := cfg.OutputDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, "", fmt.Errorf("create output dir: %w", err)
	}
	if cfg.Output.Format == "workbook" {
		path := filepath.Join(dir, cfg.Output.Workbook)
		return artifact.NewWorkbookStore(path, logger), path, nil
	}
	return artifact.NewCSVStore(dir, logger), dir, nil
}

// initOTel starts trace and metric export plus the bridge that folds bus
// events into the instruments. The returned tracer goes to the runner and
// the service client; the shutdown flushes exporters. Everything is a
// no-op when telemetry is disabled.
func initOTel(ctx context.Context, cfg config.Config, eventBus *bus.Bus, logger *slog.Logger) (trace.Tracer, func(), error) {
	exporter := "otlp-http"
	if cfg.OTel.Stdout {
		exporter = "stdout"
	}
	provider, err := otelPkg.Init(ctx, otelPkg.Config{
		Enabled:  cfg.OTel.Enabled,
		Exporter: exporter,
		Endpoint: cfg.OTel.Endpoint,
	})
	if err != nil {
		return nil, nil, err
	}
	shutdown := func() {
		if err := provider.Shutdown(context.Background()); err != nil {
			logger.Warn("otel shutdown", "error", err)
		}
	}
	if !cfg.OTel.Enabled {
		return provider.Tracer, shutdown, nil
	}
	metrics, err := otelPkg.NewMetrics(provider.Meter)
	if err != nil {
		shutdown()
		return nil, nil, err
	}
	go otelPkg.NewBridge(eventBus, metrics).Start(ctx)
	return provider.Tracer, shutdown, nil
}

// startNotifier spawns the Telegram notifier when configured.
// Notifications are best effort; a bad token only logs.
func startNotifier(ctx context.Context, cfg config.Config, eventBus *bus.Bus, logger *slog.Logger) {
	if !cfg.Notify.Telegram.Enabled {
		return
	}
	notifier, err := channels.NewTelegramNotifier(channels.NotifierConfig{
		Token:     cfg.Notify.Telegram.Token,
		ChatID:    cfg.Notify.Telegram.ChatID,
		OnSuccess: cfg.Notify.OnSuccess,
		OnFailure: cfg.Notify.OnFailure,
		Bus:       eventBus,
		Logger:    logger,
	})
	if err != nil {
		logger.Warn("telegram notifier disabled", "error", err)
		return
	}
	go func() {
		if err := notifier.Start(ctx); err != nil && ctx.Err() == nil {
			logger.Warn("telegram notifier stopped", "error", err)
		}
	}()
}

// fatalStartup reports a startup failure and exits. Before the logger
// exists it falls back to a raw JSON line on stderr so failures stay
// machine-readable.
func fatalStartup(logger *slog.Logger, reasonCode string, err error) {
	message := ""
	if err != nil {
		message = err.Error()
	}
	if logger != nil {
		logger.Error("startup failure", "reason_code", reasonCode, "error", message)
	} else {
		fmt.Fprintf(
			os.Stderr,
			`{"timestamp":"%s","level":"ERROR","component":"runtime","trace_id":"-","msg":"startup failure","reason_code":%q,"error":%q}`+"\n",
			time.Now().UTC().Format(time.RFC3339Nano),
			reasonCode,
			message,
		)
	}
	os.Exit(1)
}

// loadDotEnv loads KEY=VALUE pairs from the given file into the process
// env. Values already set in the environment win. Missing file is fine.
func loadDotEnv(path string) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		eq := strings.Index(line, "=")
		if eq <= 0 {
			continue
		}
		key := strings.TrimSpace(line[:eq])
		val := strings.TrimSpace(line[eq+1:])
		if key == "" || os.Getenv(key) != "" {
			continue
		}
		_ = os.Setenv(key, val)
	}
}
