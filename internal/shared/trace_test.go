package shared

import (
	"context"
	"testing"
)

func TestTraceID_DefaultDash(t *testing.T) {
	ctx := context.Background()

	// Default is "-".
	if got := TraceID(ctx); got != "-" {
		t.Fatalf("expected -, got %q", got)
	}

	// Set and retrieve.
	ctx = WithTraceID(ctx, "abc-123")
	if got := TraceID(ctx); got != "abc-123" {
		t.Fatalf("expected abc-123, got %q", got)
	}

	// Overwrite.
	ctx = WithTraceID(ctx, "def-456")
	if got := TraceID(ctx); got != "def-456" {
		t.Fatalf("expected def-456, got %q", got)
	}
}

func TestSymbol_RoundTrip(t *testing.T) {
	ctx := context.Background()
	if got := Symbol(ctx); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
	ctx = WithSymbol(ctx, "TP53")
	if got := Symbol(ctx); got != "TP53" {
		t.Fatalf("expected TP53, got %q", got)
	}
}

func TestDataset_DefaultEmpty(t *testing.T) {
	ctx := context.Background()
	if got := Dataset(ctx); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
	ctx = WithDataset(ctx, "gene_expression")
	if got := Dataset(ctx); got != "gene_expression" {
		t.Fatalf("expected gene_expression, got %q", got)
	}
}
