package otel

import (
	"context"
	"testing"
	"time"

	"github.com/basket/biofetch/internal/bus"
)

func newTestBridge(t *testing.T) *Bridge {
	t.Helper()
	p, err := Init(context.Background(), Config{Enabled: false})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	t.Cleanup(func() { p.Shutdown(context.Background()) })

	m, err := NewMetrics(p.Meter)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return NewBridge(bus.New(), m)
}

func TestBridge_TracksRunLifecycle(t *testing.T) {
	b := newTestBridge(t)
	ctx := context.Background()

	b.handle(ctx, bus.Event{Topic: bus.TopicRunStarted, Payload: bus.RunEvent{RunID: "run-1"}})
	if _, ok := b.runStart["run-1"]; !ok {
		t.Fatal("expected run start time recorded")
	}

	b.handle(ctx, bus.Event{Topic: bus.TopicRunFinished, Payload: bus.RunEvent{RunID: "run-1", Status: "SUCCEEDED"}})
	if len(b.runStart) != 0 {
		t.Fatalf("expected run start time cleared, have %d entries", len(b.runStart))
	}
}

func TestBridge_TracksSymbolLifecycle(t *testing.T) {
	b := newTestBridge(t)
	ctx := context.Background()

	b.handle(ctx, bus.Event{Topic: bus.TopicSymbolStarted, Payload: bus.SymbolEvent{RunID: "run-1", Symbol: "KRAS"}})
	if _, ok := b.symbolStart["run-1/KRAS"]; !ok {
		t.Fatal("expected symbol start time recorded")
	}

	b.handle(ctx, bus.Event{Topic: bus.TopicSymbolFinished, Payload: bus.SymbolEvent{RunID: "run-1", Symbol: "KRAS", Err: "boom"}})
	if len(b.symbolStart) != 0 {
		t.Fatalf("expected symbol start time cleared, have %d entries", len(b.symbolStart))
	}
}

func TestBridge_IgnoresUnexpectedPayloads(t *testing.T) {
	b := newTestBridge(t)
	ctx := context.Background()

	// Wrong payload type must not panic or leave state behind.
	b.handle(ctx, bus.Event{Topic: bus.TopicRunStarted, Payload: "not a RunEvent"})
	b.handle(ctx, bus.Event{Topic: bus.TopicArtifactAppended, Payload: 42})
	if len(b.runStart) != 0 {
		t.Fatal("expected no run state from bad payloads")
	}
}

func TestBridge_RecordsEventsWithoutStart(t *testing.T) {
	b := newTestBridge(t)
	ctx := context.Background()

	// Finish events with no matching start must not panic.
	b.handle(ctx, bus.Event{Topic: bus.TopicRunFinished, Payload: bus.RunEvent{RunID: "orphan", Status: "FAILED"}})
	b.handle(ctx, bus.Event{Topic: bus.TopicSymbolFinished, Payload: bus.SymbolEvent{RunID: "orphan", Symbol: "TP53"}})
	b.handle(ctx, bus.Event{Topic: bus.TopicDatasetFetched, Payload: bus.DatasetEvent{Dataset: "depmap_gene_effect", Records: 10}})
	b.handle(ctx, bus.Event{Topic: bus.TopicArtifactAppended, Payload: bus.ArtifactEvent{Artifact: "depmap.csv", Rows: 10}})
	b.handle(ctx, bus.Event{Topic: bus.TopicMappingResolved, Payload: bus.SymbolEvent{Symbol: "TP53"}})
	b.handle(ctx, bus.Event{Topic: bus.TopicScheduleFired, Payload: bus.ScheduleEvent{Name: "nightly", Symbols: 3}})
}

func TestBridge_StartStopsOnCancel(t *testing.T) {
	p, err := Init(context.Background(), Config{Enabled: false})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer p.Shutdown(context.Background())
	m, err := NewMetrics(p.Meter)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	eventBus := bus.New()
	b := NewBridge(eventBus, m)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		b.Start(ctx)
		close(done)
	}()

	eventBus.Publish(bus.TopicMappingResolved, bus.SymbolEvent{Symbol: "KRAS"})
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after cancel")
	}
}
