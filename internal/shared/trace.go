package shared

import (
	"context"

	"github.com/google/uuid"
)

type traceKey struct{}
type runIDKey struct{}
type symbolKey struct{}
type datasetKey struct{}

// WithTraceID attaches a trace_id to the context.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceKey{}, traceID)
}

// TraceID extracts trace_id from context. Returns "-" if absent.
func TraceID(ctx context.Context) string {
	if v, ok := ctx.Value(traceKey{}).(string); ok && v != "" {
		return v
	}
	return "-"
}

// NewTraceID generates a new trace_id.
func NewTraceID() string {
	return uuid.NewString()
}

// WithRunID attaches a run_id to the context.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey{}, runID)
}

// RunID extracts run_id from context. Returns "" if absent.
// Run ids themselves are minted by the ledger when a run begins.
func RunID(ctx context.Context) string {
	if v, ok := ctx.Value(runIDKey{}).(string); ok {
		return v
	}
	return ""
}

// WithSymbol attaches the gene symbol being processed to the context.
func WithSymbol(ctx context.Context, symbol string) context.Context {
	return context.WithValue(ctx, symbolKey{}, symbol)
}

// Symbol extracts the gene symbol from context. Returns "" if absent.
func Symbol(ctx context.Context) string {
	if v, ok := ctx.Value(symbolKey{}).(string); ok {
		return v
	}
	return ""
}

// WithDataset attaches the dataset name being fetched to the context.
func WithDataset(ctx context.Context, dataset string) context.Context {
	return context.WithValue(ctx, datasetKey{}, dataset)
}

// Dataset extracts the dataset name from context. Returns "" if absent.
func Dataset(ctx context.Context) string {
	if v, ok := ctx.Value(datasetKey{}).(string); ok {
		return v
	}
	return ""
}
