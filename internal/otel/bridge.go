package otel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/basket/biofetch/internal/bus"
)

// Bridge records bus events as metrics. It is the only coupling between
// the event bus and the instruments; publishers stay unaware of telemetry.
type Bridge struct {
	eventBus *bus.Bus
	metrics  *Metrics

	// Touched only from the Start loop goroutine.
	runStart    map[string]time.Time
	symbolStart map[string]time.Time
}

// NewBridge wires the metric instruments to the event bus.
func NewBridge(eventBus *bus.Bus, metrics *Metrics) *Bridge {
	return &Bridge{
		eventBus:    eventBus,
		metrics:     metrics,
		runStart:    make(map[string]time.Time),
		symbolStart: make(map[string]time.Time),
	}
}

// Start consumes bus events until the context is canceled.
func (b *Bridge) Start(ctx context.Context) {
	sub := b.eventBus.Subscribe("")
	defer b.eventBus.Unsubscribe(sub)

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-sub.Ch():
			b.handle(ctx, ev)
		}
	}
}

func (b *Bridge) handle(ctx context.Context, ev bus.Event) {
	now := time.Now()

	switch ev.Topic {
	case bus.TopicRunStarted:
		re, ok := ev.Payload.(bus.RunEvent)
		if !ok {
			return
		}
		b.runStart[re.RunID] = now
		b.metrics.ActiveRuns.Add(ctx, 1)

	case bus.TopicRunFinished:
		re, ok := ev.Payload.(bus.RunEvent)
		if !ok {
			return
		}
		status := metric.WithAttributes(AttrStatus.String(re.Status))
		if t0, ok := b.runStart[re.RunID]; ok {
			b.metrics.RunDuration.Record(ctx, now.Sub(t0).Seconds(), status)
			delete(b.runStart, re.RunID)
		}
		b.metrics.RunsTotal.Add(ctx, 1, status)
		b.metrics.ActiveRuns.Add(ctx, -1)

	case bus.TopicSymbolStarted:
		se, ok := ev.Payload.(bus.SymbolEvent)
		if !ok {
			return
		}
		b.symbolStart[se.RunID+"/"+se.Symbol] = now

	case bus.TopicSymbolFinished:
		se, ok := ev.Payload.(bus.SymbolEvent)
		if !ok {
			return
		}
		key := se.RunID + "/" + se.Symbol
		if t0, ok := b.symbolStart[key]; ok {
			// No symbol attribute: gene panels would make the
			// histogram cardinality unbounded.
			b.metrics.SymbolDuration.Record(ctx, now.Sub(t0).Seconds())
			delete(b.symbolStart, key)
		}
		if se.Err != "" {
			b.metrics.SymbolFailures.Add(ctx, 1)
		}

	case bus.TopicDatasetFetched:
		de, ok := ev.Payload.(bus.DatasetEvent)
		if !ok {
			return
		}
		b.metrics.DatasetRecords.Add(ctx, int64(de.Records),
			metric.WithAttributes(AttrDataset.String(de.Dataset)))

	case bus.TopicArtifactAppended:
		ae, ok := ev.Payload.(bus.ArtifactEvent)
		if !ok {
			return
		}
		attrs := metric.WithAttributes(AttrArtifact.String(ae.Artifact))
		b.metrics.ArtifactRows.Add(ctx, int64(ae.Rows), attrs)
		b.metrics.ArtifactAppends.Add(ctx, 1, attrs)

	case bus.TopicMappingResolved:
		b.metrics.MappingsResolved.Add(ctx, 1)

	case bus.TopicScheduleFired:
		se, ok := ev.Payload.(bus.ScheduleEvent)
		if !ok {
			return
		}
		b.metrics.ScheduleFires.Add(ctx, 1,
			metric.WithAttributes(AttrSchedule.String(se.Name)))
	}
}
