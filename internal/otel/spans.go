package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Standard attribute keys for biofetch spans and metrics.
var (
	AttrRunID    = attribute.Key("biofetch.run.id")
	AttrSymbol   = attribute.Key("biofetch.symbol")
	AttrDataset  = attribute.Key("biofetch.dataset")
	AttrArtifact = attribute.Key("biofetch.artifact")
	AttrStatus   = attribute.Key("biofetch.run.status")
	AttrSchedule = attribute.Key("biofetch.schedule")
)

// StartSpan is a convenience wrapper that starts an internal span with common attributes.
func StartSpan(ctx context.Context, tracer trace.Tracer, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// StartClientSpan starts a span for an outbound call (UMap service, STRING files).
func StartClientSpan(ctx context.Context, tracer trace.Tracer, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}
