package otel

import (
	"context"
	"strings"
	"testing"
)

func TestInit_DisabledReturnsNoopHandles(t *testing.T) {
	p, err := Init(context.Background(), Config{})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if p.Tracer == nil || p.Meter == nil {
		t.Fatal("disabled provider must still hand out tracer and meter")
	}
	if err := p.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown on disabled provider: %v", err)
	}
}

func TestInit_DiscardExporter(t *testing.T) {
	cases := []Config{
		{Enabled: true, Exporter: "none"},
		{Enabled: true, Exporter: "none", ServiceName: "biofetch-test"},
		{Enabled: true, Exporter: "none", SampleRate: 0.25},
	}
	for _, cfg := range cases {
		p, err := Init(context.Background(), cfg)
		if err != nil {
			t.Fatalf("Init(%+v): %v", cfg, err)
		}
		if p.TracerProvider == nil || p.Tracer == nil || p.Meter == nil {
			t.Fatalf("Init(%+v): incomplete provider", cfg)
		}
		_, span := p.Tracer.Start(context.Background(), "fetch.run")
		span.End()
		if err := p.Shutdown(context.Background()); err != nil {
			t.Fatalf("Shutdown: %v", err)
		}
	}
}

func TestInit_UnknownExporter(t *testing.T) {
	_, err := Init(context.Background(), Config{Enabled: true, Exporter: "carrier-pigeon"})
	if err == nil {
		t.Fatal("expected error for unknown exporter")
	}
	if !strings.Contains(err.Error(), "carrier-pigeon") {
		t.Fatalf("error should name the exporter: %v", err)
	}
}

func TestSpanHelpers(t *testing.T) {
	p, err := Init(context.Background(), Config{Enabled: true, Exporter: "none"})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer p.Shutdown(context.Background())

	ctx, span := StartSpan(context.Background(), p.Tracer, "run.fetch",
		AttrRunID.String("run-1"),
		AttrSymbol.String("KRAS"),
	)
	if span == nil {
		t.Fatal("StartSpan returned nil span")
	}
	span.End()

	_, client := StartClientSpan(ctx, p.Tracer, "umap.fetch",
		AttrDataset.String("depmap_gene_effect"),
	)
	client.End()
}
