package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/basket/biofetch/internal/artifact"
	"github.com/basket/biofetch/internal/config"
	"github.com/basket/biofetch/internal/ledger"
	"github.com/basket/biofetch/internal/telemetry"
)

func runStatusCommand(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	limit := fs.Int("limit", 10, "how many runs to list")
	runID := fs.String("run", "", "show per-dataset results for one run id")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "usage: biofetch status [-limit N] [-run ID]")
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load: %v\n", err)
		return 1
	}
	_, closer, err := telemetry.NewLogger(cfg.HomeDir, cfg.LogLevel, true)
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

	if *runID != "" {
		return printRunDetail(ctx, led, *runID)
	}

	runs, err := led.ListRuns(ctx, *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "list runs: %v\n", err)
		return 1
	}
	if len(runs) == 0 {
		fmt.Println("no runs recorded yet")
	} else {
		fmt.Println("RECENT RUNS")
		for _, r := range runs {
			dur := ""
			if r.FinishedAt != nil {
				dur = r.FinishedAt.Sub(r.StartedAt).Round(time.Second).String()
			}
			fmt.Printf("  %s  %-9s  %3d symbols  %-8s  %s\n",
				r.StartedAt.Local().Format("2006-01-02 15:04"), r.Status, len(r.Symbols), shortID(r.ID), dur)
		}
	}

	printSchedules(ctx, cfg, led)
	printArtifacts(cfg)
	return 0
}

func printRunDetail(ctx context.Context, led *ledger.Store, runID string) int {
	run, err := led.GetRun(ctx, runID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "get run: %v\n", err)
		return 1
	}
	if run == nil {
		fmt.Fprintf(os.Stderr, "run %s not found\n", runID)
		return 1
	}

	fmt.Printf("run %s  %s\n", run.ID, run.Status)
	fmt.Printf("  started  %s\n", run.StartedAt.Local().Format(time.RFC3339))
	if run.FinishedAt != nil {
		fmt.Printf("  finished %s\n", run.FinishedAt.Local().Format(time.RFC3339))
	}
	fmt.Printf("  symbols  %s\n", strings.Join(run.Symbols, ", "))
	fmt.Printf("  datasets %s\n", strings.Join(run.Datasets, ", "))
	fmt.Printf("  output   %s\n", run.OutputDir)
	if run.Error != "" {
		fmt.Printf("  error    %s\n", run.Error)
	}

	results, err := led.RunResults(ctx, runID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "run results: %v\n", err)
		return 1
	}
	if len(results) > 0 {
		fmt.Println("RESULTS")
	}
	for _, res := range results {
		line := fmt.Sprintf("  %-10s %-35s %-9s %5d rows", res.Symbol, res.Dataset, res.Status, res.RowsAppended)
		if res.Error != "" {
			line += "  " + res.Error
		}
		fmt.Println(line)
	}
	return 0
}

// printSchedules lists configured schedules with the next fire times the
// schedule command records in the ledger.
func printSchedules(ctx context.Context, cfg config.Config, led *ledger.Store) {
	if len(cfg.Schedules) == 0 {
		return
	}
	fmt.Println("\nSCHEDULES")
	for _, entry := range cfg.Schedules {
		next, err := led.GetValue(ctx, "schedule.next_run."+entry.Name)
		if err != nil || next == "" {
			next = "-"
		}
		fmt.Printf("  %-20s %-15s next %s\n", entry.Name, entry.Cron, next)
	}
}

// printArtifacts inventories what is on disk. CSV artifacts get row and
// column counts; the workbook only a size, since appends rewrite it
// whole and sheet counts need a full parse.
func printArtifacts(cfg config.Config) {
	dir := cfg.OutputDir()
	fmt.Printf("\nARTIFACTS (%s)\n", dir)

	if cfg.Output.Format == "workbook" {
		path := filepath.Join(dir, cfg.Output.Workbook)
		info, err := os.Stat(path)
		if err != nil {
			fmt.Println("  workbook not created yet")
			return
		}
		fmt.Printf("  %-45s %d bytes\n", filepath.Base(path), info.Size())
		return
	}

	store := artifact.NewCSVStore(dir, nil)
	names := append(artifact.AllNames(), artifact.ProteinScores)
	var present int
	for _, name := range names {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			continue
		}
		present++
		schema, rows, err := store.Read(name)
		if err != nil {
			fmt.Printf("  %-45s unreadable: %v\n", name, err)
			continue
		}
		fmt.Printf("  %-45s %6d rows  %2d columns\n", name, len(rows), schema.Len())
	}
	if present == 0 {
		fmt.Println("  none yet")
	}
}
