package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/basket/biofetch/internal/config"
	"github.com/basket/biofetch/internal/stringdb"
	"github.com/basket/biofetch/internal/telemetry"
)

func runScoresCommand(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("scores", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	links := fs.String("links", "", "protein links table (default: stringdb.links_path from config)")
	pairs := fs.String("pairs", "", "anchor/target pairs CSV (default: stringdb.pairs_path from config)")
	output := fs.String("output", "", "artifact directory or .xlsx workbook path")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "usage: biofetch scores [-links FILE] [-pairs FILE] [-output DIR]")
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load: %v\n", err)
		return 1
	}

	linksPath := *links
	if linksPath == "" {
		linksPath = cfg.StringDB.LinksPath
	}
	pairsPath := *pairs
	if pairsPath == "" {
		pairsPath = cfg.StringDB.PairsPath
	}
	if linksPath == "" || pairsPath == "" {
		fmt.Fprintln(os.Stderr, "scores: -links and -pairs are required (or set stringdb paths in config.yaml)")
		return 2
	}

	logger, closer, err := telemetry.NewLogger(cfg.HomeDir, cfg.LogLevel, cfg.Quiet)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		return 1
	}
	defer closer.Close()
	slog.SetDefault(logger)

	client, err := newServiceClient(cfg, nil, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "service client: %v\n", err)
		return 1
	}

	store, _, err := newArtifactStore(cfg, *output, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "scores: %v\n", err)
		return 1
	}

	scorer, err := stringdb.NewScorer(stringdb.Config{
		LinksPath: linksPath,
		PairsPath: pairsPath,
		Store:     store,
		Source:    client,
		Logger:    logger,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "scores: %v\n", err)
		return 1
	}

	report, err := scorer.Run(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "scores: %v\n", err)
		return 1
	}

	fmt.Printf("scored %d pairs across %d genes (%d mapped)\n", report.Pairs, report.Genes, report.Mapped)
	fmt.Printf("  scanned %d links, wrote %d rows\n", report.Links, report.RowsWritten)
	if len(report.Missing) > 0 {
		fmt.Printf("  no interactions found for: %s\n", strings.Join(report.Missing, ", "))
	}
	return 0
}
