// Package handlers builds the per-gene dataset artifacts. Each handler
// owns one dataset category: it fetches the gene's records from the
// service, shapes them into flat or pivoted rows, and lands them in the
// category's artifacts through an artifact.Store. The Runner drives the
// handlers symbol by symbol and records what happened in the ledger.
package handlers

import (
	"context"

	"github.com/basket/biofetch/internal/artifact"
	"github.com/basket/biofetch/internal/tabular"
	"github.com/basket/biofetch/internal/umap"
)

// Source is the slice of the service client the handlers fetch
// through. Tests substitute a fake; production passes *umap.Client.
type Source interface {
	CellLineProteomics(ctx context.Context, uniprotkbAC string) ([]umap.CellLineProteomics, error)
	GeneExpression(ctx context.Context, uniprotkbACs []string) ([]umap.GeneExpression, error)
	NormalExpression(ctx context.Context, uniprotkbAC string) ([]umap.NormalExpression, error)
	ExternalExpression(ctx context.Context, uniprotkbACs []string) ([]umap.ExternalExpression, error)
	StudyMetadata(ctx context.Context) ([]umap.StudyMetadata, error)
	DepMap(ctx context.Context, uniprotkbACs, ccleModelIDs []string) ([]umap.DepMap, error)
	ReplicateSets(ctx context.Context) ([]umap.ReplicateSet, error)
	AnalysisResults(ctx context.Context, replicateSetID int64) ([]umap.AnalysisResult, error)
	MapProteins(ctx context.Context, symbols []string) ([]umap.ProteinMapping, error)
}

var _ Source = (*umap.Client)(nil)

// Target is one resolved gene a run is fetching: the requested symbol,
// its accession, and the cell lines the WCE and DepMap handlers keep.
type Target struct {
	Symbol      string
	UniProtKBAC string
	CellLines   map[string]bool
}

// Append reports rows landed in one artifact.
type Append struct {
	Artifact string
	Rows     int
	Columns  int
}

// Handler builds every artifact of one dataset category for a target.
// Build returns the appends that landed; on error the returned slice
// holds whatever landed before the failure.
type Handler interface {
	Category() string
	Build(ctx context.Context, target Target) ([]Append, error)
}

// flatAppend ensures the artifact shell and lands rows when there are
// any. Flat sheets are created eagerly, so a gene with no data still
// leaves the header behind.
func flatAppend(store artifact.Store, name string, schema *tabular.Schema, rows []tabular.Row) (Append, error) {
	current, err := store.Ensure(name, schema)
	if err != nil {
		return Append{}, err
	}
	if len(rows) == 0 {
		return Append{Artifact: name, Rows: 0, Columns: current.Len()}, nil
	}
	if err := store.Append(name, schema, rows); err != nil {
		return Append{}, err
	}
	final := current.Clone()
	final.Union(schema)
	return Append{Artifact: name, Rows: len(rows), Columns: final.Len()}, nil
}

// matrixAppend lands one pivoted gene row, or just the shell when the
// pivot saw no usable records.
func matrixAppend(store artifact.Store, name string, schema *tabular.Schema, row tabular.Row) (Append, error) {
	current, err := store.Ensure(name, schema)
	if err != nil {
		return Append{}, err
	}
	if row == nil {
		return Append{Artifact: name, Rows: 0, Columns: current.Len()}, nil
	}
	if err := store.Append(name, schema, []tabular.Row{row}); err != nil {
		return Append{}, err
	}
	final := current.Clone()
	final.Union(schema)
	return Append{Artifact: name, Rows: 1, Columns: final.Len()}, nil
}
