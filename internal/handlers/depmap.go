package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/basket/biofetch/internal/artifact"
	"github.com/basket/biofetch/internal/tabular"
)

// DepMapHandler maintains the DepMap expression and copy number sheet,
// restricted to the gene's cell line set. Cell lines the set names but
// DepMap has never measured are reported, not errors.
type DepMapHandler struct {
	source Source
	store  artifact.Store
	logger *slog.Logger
}

func NewDepMapHandler(source Source, store artifact.Store, logger *slog.Logger) *DepMapHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &DepMapHandler{
		source: source,
		store:  store,
		logger: logger.With("dataset", artifact.CategoryDepMap),
	}
}

func (h *DepMapHandler) Category() string { return artifact.CategoryDepMap }

var depMapMappings = []tabular.Mapping{
	{Column: "Protein Symbol", Field: "protein_symbol", Kind: tabular.KindString},
	{Column: "UniProtKB AC", Field: "uniprotkb_ac", Kind: tabular.KindString},
	{Column: "Cell Line", Field: "cell_line_name", Kind: tabular.KindString},
	{Column: "Onc Lineage", Field: "onc_lineage", Kind: tabular.KindString},
	{Column: "Onc Primary Disease", Field: "onc_primary_disease", Kind: tabular.KindString},
	{Column: "Onc Subtype", Field: "onc_subtype", Kind: tabular.KindString},
	{Column: "TPM Log2", Field: "tpm_log2", Kind: tabular.KindFloat},
	{Column: "Gene Level Copy Number", Field: "gene_level_copy_number", Kind: tabular.KindFloat},
}

func (h *DepMapHandler) Build(ctx context.Context, target Target) ([]Append, error) {
	data, err := h.source.DepMap(ctx, []string{target.UniProtKBAC}, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch depmap data for %s: %w", target.Symbol, err)
	}

	measured := make(map[string]bool, len(data))
	for _, d := range data {
		measured[d.CellLineName] = true
	}
	var missing []string
	for line := range target.CellLines {
		if !measured[line] {
			missing = append(missing, line)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		h.logger.Warn("no depmap data for cell lines",
			"symbol", target.Symbol, "cell_lines", strings.Join(missing, ", "))
	}

	records := make([]tabular.Record, 0, len(data))
	for _, d := range data {
		if target.CellLines[d.CellLineName] {
			records = append(records, d.Record())
		}
	}
	schema, rows := tabular.Transform(records, depMapMappings)
	a, err := flatAppend(h.store, artifact.DepMapData, schema, rows)
	if err != nil {
		return nil, err
	}
	return []Append{a}, nil
}
