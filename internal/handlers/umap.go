package handlers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/basket/biofetch/internal/artifact"
	"github.com/basket/biofetch/internal/tabular"
	"github.com/basket/biofetch/internal/umap"
)

// UMapHandler maintains the proximity-map artifacts: per-protein
// analysis results of every replicate set that targeted the gene, and
// the targeting summary sheet. It also answers which cell lines
// targeted a gene, which the WCE and DepMap handlers use as their cell
// line set.
//
// The service only exposes the full replicate set listing, so one dump
// is fetched per run and filtered per gene.
type UMapHandler struct {
	source Source
	store  artifact.Store
	logger *slog.Logger

	sets       []umap.ReplicateSet
	setsLoaded bool
}

func NewUMapHandler(source Source, store artifact.Store, logger *slog.Logger) *UMapHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &UMapHandler{
		source: source,
		store:  store,
		logger: logger.With("dataset", artifact.CategoryUMap),
	}
}

func (h *UMapHandler) Category() string { return artifact.CategoryUMap }

var umapMappings = []tabular.Mapping{
	{Column: "Replicate Set ID", Field: "replicate_set_id", Kind: tabular.KindInt},
	{Column: "Cell Line", Field: "cell_line", Kind: tabular.KindString},
	{Column: "Chemistry", Field: "chemistry", Kind: tabular.KindString},
	{Column: "Target Protein", Field: "target_protein", Kind: tabular.KindString},
	{Column: "Protein Symbol", Field: "protein_symbol", Kind: tabular.KindString},
	{Column: "Protein UniProtKB AC", Field: "protein_uniprotkb_ac", Kind: tabular.KindString},
	{Column: "Log2 FC", Field: "log2_fc", Kind: tabular.KindFloat},
	{Column: "P-value", Field: "nlog10_pvalue", Kind: tabular.KindFloat},
	{Column: "Number of Peptides", Field: "number_of_peptides", Kind: tabular.KindInt},
	{Column: "Binder", Field: "binder", Kind: tabular.KindString},
}

var targetingMappings = []tabular.Mapping{
	{Column: "Gene", Field: "gene", Kind: tabular.KindString},
	{Column: "Cell Line", Field: "cell_line", Kind: tabular.KindString},
	{Column: "Replicate Set ID", Field: "replicate_set_id", Kind: tabular.KindInt},
	{Column: "Chemistry", Field: "chemistry", Kind: tabular.KindString},
	{Column: "Binder", Field: "binder", Kind: tabular.KindString},
}

func (h *UMapHandler) Build(ctx context.Context, target Target) ([]Append, error) {
	targeted, err := h.TargetedSets(ctx, target.UniProtKBAC)
	if err != nil {
		return nil, fmt.Errorf("fetch replicate sets for %s: %w", target.Symbol, err)
	}

	var appends []Append

	var results []tabular.Record
	for _, rs := range targeted {
		analysisResults, err := h.source.AnalysisResults(ctx, rs.ID)
		if err != nil {
			return appends, fmt.Errorf("fetch analysis results for replicate set %d: %w", rs.ID, err)
		}
		for _, r := range analysisResults {
			results = append(results, rs.ResultRecord(r))
		}
	}
	schema, rows := tabular.Transform(results, umapMappings)
	a, err := flatAppend(h.store, artifact.UMapData, schema, rows)
	if err != nil {
		return appends, err
	}
	appends = append(appends, a)

	summaries := make([]tabular.Record, len(targeted))
	for i, rs := range targeted {
		summaries[i] = rs.SummaryRecord()
	}
	schema, rows = tabular.Transform(summaries, targetingMappings)
	a, err = flatAppend(h.store, artifact.CellLineTargeting, schema, rows)
	if err != nil {
		return appends, err
	}
	appends = append(appends, a)

	return appends, nil
}

// TargetedSets returns the replicate sets that targeted exactly the
// given protein and ran in at least one cell line.
func (h *UMapHandler) TargetedSets(ctx context.Context, uniprotkbAC string) ([]umap.ReplicateSet, error) {
	sets, err := h.replicateSets(ctx)
	if err != nil {
		return nil, err
	}
	var targeted []umap.ReplicateSet
	for _, rs := range sets {
		if !rs.TargetsProtein(uniprotkbAC) || rs.CellLineName() == "" {
			continue
		}
		targeted = append(targeted, rs)
	}
	return targeted, nil
}

// CellLines returns the names of cell lines in which the protein was
// targeted.
func (h *UMapHandler) CellLines(ctx context.Context, uniprotkbAC string) (map[string]bool, error) {
	targeted, err := h.TargetedSets(ctx, uniprotkbAC)
	if err != nil {
		return nil, err
	}
	lines := make(map[string]bool, len(targeted))
	for _, rs := range targeted {
		lines[rs.CellLineName()] = true
	}
	return lines, nil
}

func (h *UMapHandler) replicateSets(ctx context.Context) ([]umap.ReplicateSet, error) {
	if h.setsLoaded {
		return h.sets, nil
	}
	sets, err := h.source.ReplicateSets(ctx)
	if err != nil {
		return nil, err
	}
	h.logger.Debug("replicate set listing cached for this run", "sets", len(sets))
	h.sets = sets
	h.setsLoaded = true
	return sets, nil
}
