// Package stringdb recombines the per-channel subscores of the STRING
// protein association table into combined confidence scores for a
// requested set of protein pairs, and lands them in the protein_scores
// artifact.
//
// Input is the 9606.protein.links.full table from the STRING download
// page, either the .gz download as-is or an unpacked copy. The
// recombination follows the v12 scoring.
package stringdb

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/klauspost/pgzip"

	"github.com/basket/biofetch/internal/artifact"
	"github.com/basket/biofetch/internal/tabular"
	"github.com/basket/biofetch/internal/umap"
)

// MappingSource resolves gene symbols to protein mappings.
type MappingSource interface {
	MapProteins(ctx context.Context, symbols []string) ([]umap.ProteinMapping, error)
}

var _ MappingSource = (*umap.Client)(nil)

// Config wires a Scorer.
type Config struct {
	LinksPath string // unpacked protein.links.full table
	PairsPath string // anchor/target pairs CSV
	Store     artifact.Store
	Source    MappingSource
	Logger    *slog.Logger
}

// Scorer streams the links table once and scores every line that
// touches a requested protein.
type Scorer struct {
	linksPath string
	pairsPath string
	store     artifact.Store
	source    MappingSource
	logger    *slog.Logger
}

func NewScorer(cfg Config) (*Scorer, error) {
	if cfg.LinksPath == "" {
		return nil, errors.New("scorer needs a links table path")
	}
	if cfg.PairsPath == "" {
		return nil, errors.New("scorer needs a pairs file path")
	}
	if cfg.Store == nil {
		return nil, errors.New("scorer needs an artifact store")
	}
	if cfg.Source == nil {
		return nil, errors.New("scorer needs a mapping source")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Scorer{
		linksPath: cfg.LinksPath,
		pairsPath: cfg.PairsPath,
		store:     cfg.Store,
		source:    cfg.Source,
		logger:    logger.With("component", "stringdb"),
	}, nil
}

// Report summarizes one scoring pass.
type Report struct {
	Pairs       int      // pairs read from the pairs file
	Genes       int      // unique symbols across those pairs
	Mapped      int      // symbols that resolved to an Ensembl protein id
	Links       int      // data lines scanned from the links table
	RowsWritten int      // deduplicated scored pairs landed
	Missing     []string // symbols with no row anywhere in the table
}

var scoreMappings = []tabular.Mapping{
	{Column: "protein1", Field: "protein1", Kind: tabular.KindString},
	{Column: "protein2", Field: "protein2", Kind: tabular.KindString},
	{Column: "symbol1", Field: "symbol1", Kind: tabular.KindString},
	{Column: "symbol2", Field: "symbol2", Kind: tabular.KindString},
	{Column: "coexpression_both_prior_corrected", Field: "coexpression", Kind: tabular.KindFloat},
	{Column: "experiments_both_prior_corrected", Field: "experiments", Kind: tabular.KindFloat},
	{Column: "textmining_both_prior_corrected", Field: "textmining", Kind: tabular.KindFloat},
	{Column: "combined_score", Field: "combined", Kind: tabular.KindInt},
}

// Run maps the pair symbols to Ensembl protein ids, streams the links
// table, scores every line touching a mapped id, and appends the
// deduplicated pairs to the protein_scores artifact. Symbols whose ids
// never appear anywhere in the table are reported as missing.
func (s *Scorer) Run(ctx context.Context) (*Report, error) {
	pairs, err := ReadPairs(s.pairsPath)
	if err != nil {
		return nil, err
	}
	if len(pairs) == 0 {
		return nil, fmt.Errorf("%s names no protein pairs", s.pairsPath)
	}

	var symbols []string
	unique := make(map[string]bool)
	for _, p := range pairs {
		for _, sym := range []string{p.Anchor, p.Target} {
			if !unique[sym] {
				unique[sym] = true
				symbols = append(symbols, sym)
			}
		}
	}
	sort.Strings(symbols)

	mappings, err := s.source.MapProteins(ctx, symbols)
	if err != nil {
		return nil, fmt.Errorf("map proteins: %w", err)
	}
	idx := NewIndex(mappings)

	targets := make(map[string]bool)
	mapped := 0
	for _, sym := range symbols {
		if id, ok := idx.FirstENSP(sym); ok {
			targets[id] = true
			mapped++
		}
	}
	report := &Report{Pairs: len(pairs), Genes: len(symbols), Mapped: mapped}
	s.logger.Info("scoring links table", "pairs", report.Pairs,
		"genes", report.Genes, "mapped", report.Mapped, "links", s.linksPath)

	records, seenIDs, err := s.scan(ctx, idx, targets, report)
	if err != nil {
		return nil, err
	}

	schema, rows := tabular.Transform(records, scoreMappings)
	if _, err := s.store.Ensure(artifact.ProteinScores, schema); err != nil {
		return nil, err
	}
	if len(rows) > 0 {
		if err := s.store.Append(artifact.ProteinScores, schema, rows); err != nil {
			return nil, err
		}
	}
	report.RowsWritten = len(rows)

	for _, sym := range symbols {
		found := false
		for _, id := range idx.ENSPs(sym) {
			if seenIDs[id] {
				found = true
				break
			}
		}
		if !found {
			report.Missing = append(report.Missing, sym)
		}
	}
	if len(report.Missing) > 0 {
		s.logger.Warn("symbols absent from the links table",
			"symbols", strings.Join(report.Missing, ", "))
	}
	s.logger.Info("scoring finished", "lines", report.Links,
		"rows", report.RowsWritten, "missing", len(report.Missing))
	return report, nil
}

func (s *Scorer) scan(ctx context.Context, idx *Index, targets map[string]bool, report *Report) ([]tabular.Record, map[string]bool, error) {
	f, err := openLinks(s.linksPath)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	var records []tabular.Record
	seenPairs := make(map[[2]string]bool)
	seenIDs := make(map[string]bool)

	sc := bufio.NewScanner(f)
	lineNo := 0
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		lineNo++
		if lineNo == 1 {
			continue // header
		}
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		link, err := parseLink(fields)
		if err != nil {
			return nil, nil, fmt.Errorf("%s line %d: %w", s.linksPath, lineNo, err)
		}
		report.Links++

		id1 := NormalizeENSP(link.Protein1)
		id2 := NormalizeENSP(link.Protein2)
		seenIDs[id1] = true
		seenIDs[id2] = true
		if !targets[id1] && !targets[id2] {
			continue
		}

		sym1, ok1 := idx.SymbolFor(link.Protein1)
		sym2, ok2 := idx.SymbolFor(link.Protein2)
		if !ok1 || !ok2 {
			continue
		}
		key := [2]string{sym1, sym2}
		if key[0] > key[1] {
			key[0], key[1] = key[1], key[0]
		}
		if seenPairs[key] {
			continue
		}
		seenPairs[key] = true

		score := link.Score()
		records = append(records, tabular.NewRecord(map[string]tabular.Value{
			"protein1":     link.Protein1,
			"protein2":     link.Protein2,
			"symbol1":      sym1,
			"symbol2":      sym2,
			"coexpression": score.Coexpression,
			"experiments":  score.Experiments,
			"textmining":   score.Textmining,
			"combined":     int64(score.Combined),
		}))
	}
	if err := sc.Err(); err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", s.linksPath, err)
	}
	return records, seenIDs, nil
}

// openLinks opens the links table, decompressing a .gz file in place.
// The full human table runs to gigabytes unpacked, so decompression is
// parallel.
func openLinks(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(path, ".gz") {
		return f, nil
	}
	zr, err := pgzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &gzipFile{Reader: zr, file: f}, nil
}

// gzipFile closes the decompressor and the file under it.
type gzipFile struct {
	*pgzip.Reader
	file *os.File
}

func (g *gzipFile) Close() error {
	return errors.Join(g.Reader.Close(), g.file.Close())
}
