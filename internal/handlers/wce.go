package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/basket/biofetch/internal/artifact"
	"github.com/basket/biofetch/internal/tabular"
	"github.com/basket/biofetch/internal/umap"
)

// WCEHandler maintains the whole-cell-extract artifacts: the per-cell-
// line measurement sheet and the curve anchor sheet, both restricted to
// the cell lines the gene's targeting data names.
type WCEHandler struct {
	source Source
	store  artifact.Store
	logger *slog.Logger
}

func NewWCEHandler(source Source, store artifact.Store, logger *slog.Logger) *WCEHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WCEHandler{
		source: source,
		store:  store,
		logger: logger.With("dataset", artifact.CategoryWCE),
	}
}

func (h *WCEHandler) Category() string { return artifact.CategoryWCE }

var wceMappings = []tabular.Mapping{
	{Column: "Gene", Field: "symbol", Kind: tabular.KindString},
	{Column: "Cell Line", Field: "cell_line_name", Kind: tabular.KindString},
	{Column: "Onc Lineage", Field: "onc_lineage", Kind: tabular.KindString},
	{Column: "Onc Subtype", Field: "onc_subtype", Kind: tabular.KindString},
	{Column: "Weight Normalized Intensity Ranking", Field: "weight_normalized_intensity_ranking", Kind: tabular.KindInt},
	{Column: "Experiment Type", Field: "experiment_type", Kind: tabular.KindString},
	{Column: "Title", Field: "title", Kind: tabular.KindString},
	{Column: "Copies Per Cell", Field: "copies_per_cell", Kind: tabular.KindFloat},
}

var curveMappings = []tabular.Mapping{
	{Column: "Gene", Field: "gene", Kind: tabular.KindString},
	{Column: "Cell Line", Field: "cell_line", Kind: tabular.KindString},
	{Column: "Weight Normalized Intensity Ranking", Field: "ranking", Kind: tabular.KindInt},
	{Column: "Copies Per Cell", Field: "copies", Kind: tabular.KindFloat},
	{Column: "Log10 Copies Per Cell", Field: "log10_copies", Kind: tabular.KindFloat},
}

func (h *WCEHandler) Build(ctx context.Context, target Target) ([]Append, error) {
	data, err := h.source.CellLineProteomics(ctx, target.UniProtKBAC)
	if err != nil {
		return nil, fmt.Errorf("fetch wce data for %s: %w", target.Symbol, err)
	}

	kept := make([]umap.CellLineProteomics, 0, len(data))
	for _, d := range data {
		if target.CellLines[d.CellLineName] {
			kept = append(kept, d)
		}
	}
	if len(kept) < len(data) {
		h.logger.Debug("wce records outside the cell line set dropped",
			"symbol", target.Symbol, "kept", len(kept), "fetched", len(data))
	}

	var appends []Append

	records := make([]tabular.Record, len(kept))
	for i, d := range kept {
		records[i] = d.Record()
	}
	schema, rows := tabular.Transform(records, wceMappings)
	a, err := flatAppend(h.store, artifact.WCEData, schema, rows)
	if err != nil {
		return appends, err
	}
	appends = append(appends, a)

	// TODO: fit the per-cell-line curve from the accumulated anchors
	// and cache it keyed by cell line, so rankings can be placed on it.
	anchors := make([]tabular.Record, len(kept))
	for i, d := range kept {
		anchors[i] = curveAnchor(d)
	}
	schema, rows = tabular.Transform(anchors, curveMappings)
	a, err = flatAppend(h.store, artifact.CellLineSigmoidalCurves, schema, rows)
	if err != nil {
		return appends, err
	}
	appends = append(appends, a)

	return appends, nil
}

// curveAnchor is one point of a cell line's abundance curve: where the
// gene ranks in the cell line and the absolute copies measured there.
func curveAnchor(d umap.CellLineProteomics) tabular.Record {
	fields := map[string]tabular.Value{
		"gene":         d.Symbol,
		"cell_line":    d.CellLineName,
		"ranking":      nil,
		"copies":       d.CopiesPerCell,
		"log10_copies": nil,
	}
	if d.WeightNormalizedIntensityRanking != nil {
		fields["ranking"] = *d.WeightNormalizedIntensityRanking
	}
	if d.CopiesPerCell > 0 {
		fields["log10_copies"] = math.Log10(d.CopiesPerCell)
	}
	return tabular.NewRecord(fields)
}
