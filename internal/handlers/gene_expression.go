package handlers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/basket/biofetch/internal/artifact"
	"github.com/basket/biofetch/internal/tabular"
	"github.com/basket/biofetch/internal/umap"
)

// GeneExpressionHandler maintains the RNA expression artifacts: the
// flat per-sample sheet, the normal-tissue matrix, and the
// tumor-normal delta matrix. One pancancer fetch feeds all three.
type GeneExpressionHandler struct {
	source Source
	store  artifact.Store
	logger *slog.Logger
}

func NewGeneExpressionHandler(source Source, store artifact.Store, logger *slog.Logger) *GeneExpressionHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &GeneExpressionHandler{
		source: source,
		store:  store,
		logger: logger.With("dataset", artifact.CategoryGeneExpression),
	}
}

func (h *GeneExpressionHandler) Category() string { return artifact.CategoryGeneExpression }

var geneExpressionMappings = []tabular.Mapping{
	{Column: "Gene", Field: "symbol", Kind: tabular.KindString},
	{Column: "Expression Value", Field: "expression_value", Kind: tabular.KindFloat},
	{Column: "Primary Site", Field: "primary_site", Kind: tabular.KindString},
	{Column: "Is Cancer", Field: "is_cancer", Kind: tabular.KindBool},
}

func (h *GeneExpressionHandler) Build(ctx context.Context, target Target) ([]Append, error) {
	data, err := h.source.GeneExpression(ctx, []string{target.UniProtKBAC})
	if err != nil {
		return nil, fmt.Errorf("fetch gene expression for %s: %w", target.Symbol, err)
	}

	var appends []Append

	records := make([]tabular.Record, len(data))
	for i, d := range data {
		records[i] = d.Record()
	}
	schema, rows := tabular.Transform(records, geneExpressionMappings)
	a, err := flatAppend(h.store, artifact.GeneExpression, schema, rows)
	if err != nil {
		return appends, err
	}
	appends = append(appends, a)

	normal := make([]tabular.Record, 0, len(data))
	for _, d := range data {
		if !d.IsCancer {
			normal = append(normal, d.Record())
		}
	}
	pivot := tabular.Pivot{
		KeyColumn:  "Gene",
		GeneField:  "symbol",
		GroupField: "primary_site",
		ValueField: "expression_value",
	}
	schema, row, err := pivot.Build(normal)
	if err != nil {
		return appends, fmt.Errorf("pivot normal expression for %s: %w", target.Symbol, err)
	}
	a, err = matrixAppend(h.store, artifact.NormalGeneExpression, schema, row)
	if err != nil {
		return appends, err
	}
	appends = append(appends, a)

	deltas := tumorNormalDeltas(data)
	pivot = tabular.Pivot{
		KeyColumn:  "Gene",
		GeneField:  "gene",
		GroupField: "primary_site",
		ValueField: "delta",
	}
	schema, row, err = pivot.Build(deltas)
	if err != nil {
		return appends, fmt.Errorf("pivot tumor-normal deltas for %s: %w", target.Symbol, err)
	}
	if row == nil && len(data) > 0 {
		h.logger.Info("no primary site has both tumor and normal samples",
			"symbol", target.Symbol)
	}
	a, err = matrixAppend(h.store, artifact.GeneTumorNormalRatios, schema, row)
	if err != nil {
		return appends, err
	}
	appends = append(appends, a)

	return appends, nil
}

// tumorNormalDeltas reduces expression samples to one record per
// primary site that has both tumor and normal samples, valued at
// mean(tumor) - mean(normal).
func tumorNormalDeltas(data []umap.GeneExpression) []tabular.Record {
	type agg struct {
		tumorSum  float64
		tumorN    int
		normalSum float64
		normalN   int
	}
	sites := make(map[string]*agg)
	gene := ""
	for _, d := range data {
		if gene == "" {
			gene = d.Symbol
		}
		a := sites[d.PrimarySite]
		if a == nil {
			a = &agg{}
			sites[d.PrimarySite] = a
		}
		if d.IsCancer {
			a.tumorSum += d.ExpressionValue
			a.tumorN++
		} else {
			a.normalSum += d.ExpressionValue
			a.normalN++
		}
	}

	var out []tabular.Record
	for site, a := range sites {
		if site == "" || a.tumorN == 0 || a.normalN == 0 {
			continue
		}
		delta := a.tumorSum/float64(a.tumorN) - a.normalSum/float64(a.normalN)
		out = append(out, tabular.NewRecord(map[string]tabular.Value{
			"gene":         gene,
			"primary_site": site,
			"delta":        delta,
		}))
	}
	return out
}
