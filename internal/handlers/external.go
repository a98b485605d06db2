package handlers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/basket/biofetch/internal/artifact"
	"github.com/basket/biofetch/internal/tabular"
	"github.com/basket/biofetch/internal/umap"
)

// ProteomicsHandler maintains the protein expression artifacts fed by
// the normal-tissue and external study endpoints: two indication
// matrices, the flat per-sample sheet, and the study catalog sheet.
//
// The study catalog is the same for every gene in a run, so it is
// fetched once and reused; the sheet still only lists the studies that
// measured the gene at hand.
type ProteomicsHandler struct {
	source Source
	store  artifact.Store
	logger *slog.Logger

	studies       []umap.StudyMetadata
	studiesLoaded bool
}

func NewProteomicsHandler(source Source, store artifact.Store, logger *slog.Logger) *ProteomicsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProteomicsHandler{
		source: source,
		store:  store,
		logger: logger.With("dataset", artifact.CategoryProteomics),
	}
}

func (h *ProteomicsHandler) Category() string { return artifact.CategoryProteomics }

var externalMappings = []tabular.Mapping{
	{Column: "Gene", Field: "symbol", Kind: tabular.KindString},
	{Column: "UniProtKB AC", Field: "uniprotkb_ac", Kind: tabular.KindString},
	{Column: "Value", Field: "value", Kind: tabular.KindFloat},
	{Column: "Indication", Field: "indication", Kind: tabular.KindString},
	{Column: "Tissue Type", Field: "tissue_type", Kind: tabular.KindString},
	{Column: "Sample Name", Field: "sample_name", Kind: tabular.KindString},
	{Column: "Sample Type", Field: "sample_type", Kind: tabular.KindString},
	{Column: "Study Name", Field: "study_name", Kind: tabular.KindString},
}

var studyMappings = []tabular.Mapping{
	{Column: "Gene", Field: "gene", Kind: tabular.KindString},
	{Column: "Study ID", Field: "study_id", Kind: tabular.KindInt},
	{Column: "Study Name", Field: "study_name", Kind: tabular.KindString},
	{Column: "Experiment Type", Field: "experiment_type", Kind: tabular.KindString},
	{Column: "Study Type", Field: "study_type", Kind: tabular.KindString},
	{Column: "Project Name", Field: "project_name", Kind: tabular.KindString},
	{Column: "Program Name", Field: "program_name", Kind: tabular.KindString},
	{Column: "Normalization Method", Field: "normalization_method", Kind: tabular.KindString},
	{Column: "Samples", Field: "num_of_samples", Kind: tabular.KindInt},
}

func (h *ProteomicsHandler) Build(ctx context.Context, target Target) ([]Append, error) {
	var appends []Append

	normal, err := h.source.NormalExpression(ctx, target.UniProtKBAC)
	if err != nil {
		return nil, fmt.Errorf("fetch normal proteomics for %s: %w", target.Symbol, err)
	}
	records := make([]tabular.Record, len(normal))
	for i, d := range normal {
		records[i] = d.Record()
	}
	pivot := tabular.Pivot{
		KeyColumn:  "Gene",
		GeneField:  "protein_symbol",
		GroupField: "indication",
		ValueField: "copies_per_cell",
	}
	schema, row, err := pivot.Build(records)
	if err != nil {
		return appends, fmt.Errorf("pivot normal proteomics for %s: %w", target.Symbol, err)
	}
	a, err := matrixAppend(h.store, artifact.NormalProteomicsData, schema, row)
	if err != nil {
		return appends, err
	}
	appends = append(appends, a)

	external, err := h.source.ExternalExpression(ctx, []string{target.UniProtKBAC})
	if err != nil {
		return appends, fmt.Errorf("fetch external proteomics for %s: %w", target.Symbol, err)
	}
	records = make([]tabular.Record, len(external))
	for i, d := range external {
		records[i] = d.Record()
	}
	schema, rows := tabular.Transform(records, externalMappings)
	a, err = flatAppend(h.store, artifact.ExternalProteomicsData, schema, rows)
	if err != nil {
		return appends, err
	}
	appends = append(appends, a)

	pivot = tabular.Pivot{
		KeyColumn:  "Gene",
		GeneField:  "symbol",
		GroupField: "indication",
		ValueField: "value",
	}
	schema, row, err = pivot.Build(records)
	if err != nil {
		return appends, fmt.Errorf("pivot external proteomics for %s: %w", target.Symbol, err)
	}
	a, err = matrixAppend(h.store, artifact.ProteinExpression, schema, row)
	if err != nil {
		return appends, err
	}
	appends = append(appends, a)

	studies, err := h.studiesFor(ctx, target.Symbol, external)
	if err != nil {
		return appends, err
	}
	schema, rows = tabular.Transform(studies, studyMappings)
	a, err = flatAppend(h.store, artifact.StudySpecificData, schema, rows)
	if err != nil {
		return appends, err
	}
	appends = append(appends, a)

	return appends, nil
}

// studiesFor returns catalog records for the studies that measured the
// gene. The catalog fetch is skipped entirely when the gene has no
// external data.
func (h *ProteomicsHandler) studiesFor(ctx context.Context, symbol string, external []umap.ExternalExpression) ([]tabular.Record, error) {
	if len(external) == 0 {
		return nil, nil
	}
	if !h.studiesLoaded {
		studies, err := h.source.StudyMetadata(ctx)
		if err != nil {
			return nil, fmt.Errorf("fetch study metadata: %w", err)
		}
		h.studies = studies
		h.studiesLoaded = true
	}

	names := make(map[string]bool, len(external))
	for _, d := range external {
		names[d.StudyName] = true
	}
	var out []tabular.Record
	for _, s := range h.studies {
		if names[s.StudyName] {
			out = append(out, s.RecordFor(symbol))
		}
	}
	if len(out) == 0 {
		h.logger.Warn("external data names no cataloged study", "symbol", symbol)
	}
	return out, nil
}
