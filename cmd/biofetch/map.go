package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/basket/biofetch/internal/artifact"
	"github.com/basket/biofetch/internal/config"
	"github.com/basket/biofetch/internal/handlers"
	"github.com/basket/biofetch/internal/ledger"
	"github.com/basket/biofetch/internal/telemetry"
)

func runMapCommand(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("map", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	refresh := fs.Bool("refresh", false, "drop cached mappings for these symbols first")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	symbols := dedupeSymbols(fs.Args())
	if len(symbols) == 0 {
		fmt.Fprintln(os.Stderr, "usage: biofetch map [-refresh] SYMBOL...")
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load: %v\n", err)
		return 1
	}
	logger, closer, err := telemetry.NewLogger(cfg.HomeDir, cfg.LogLevel, true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		return 1
	}
	defer closer.Close()

	led, err := ledger.Open(cfg.LedgerPath(), nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ledger: %v\n", err)
		return 1
	}
	defer led.Close()

	if *refresh {
		if err := led.InvalidateMappings(ctx, symbols); err != nil {
			fmt.Fprintf(os.Stderr, "invalidate mappings: %v\n", err)
			return 1
		}
	}

	client, err := newServiceClient(cfg, nil, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "service client: %v\n", err)
		return 1
	}

	// The runner owns the cache-then-fetch resolution path; the store is
	// only there to satisfy construction and is never written.
	runner, err := handlers.NewRunner(handlers.RunnerConfig{
		Source:     client,
		Store:      artifact.NewCSVStore(cfg.OutputDir(), logger),
		Ledger:     led,
		Logger:     logger,
		MappingTTL: cfg.MappingTTL(),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "map: %v\n", err)
		return 1
	}

	resolved, unresolved, err := runner.Resolve(ctx, symbols)
	if err != nil {
		fmt.Fprintf(os.Stderr, "map: %v\n", err)
		return 1
	}

	for _, m := range resolved {
		primary := m.PrimarySymbol
		if primary == "" {
			primary = m.Symbol
		}
		fmt.Printf("%-12s %-10s primary=%-12s ensp=%d\n", m.Symbol, m.UniProtKBAC, primary, len(m.ENSPIDs))
	}
	for _, s := range unresolved {
		fmt.Printf("%-12s (unresolved)\n", s)
	}
	if len(unresolved) > 0 {
		return 1
	}
	return 0
}
