package tui

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/basket/biofetch/internal/bus"
)

// SymbolProgress is the live state of one gene symbol in a run.
type SymbolProgress struct {
	Symbol    string
	Accession string
	Datasets  int // datasets fetched so far
	Records   int
	Done      bool
	Err       string
}

// Snapshot is a point-in-time view of a fetch run for rendering.
type Snapshot struct {
	RunID        string
	Status       string // empty while the run is in flight
	Symbols      []SymbolProgress
	DatasetCount int // datasets requested per symbol
	RowsAppended int
	Appends      int
	Mappings     int
	LastEvent    string
	LastError    string
	StartedAt    time.Time
	Done         bool
}

// RunTracker folds bus events into a Snapshot. The progress view polls
// Snapshot() once a second; publishers never block on rendering.
type RunTracker struct {
	mu    sync.Mutex
	snap  Snapshot
	index map[string]int // symbol to position in snap.Symbols
}

func NewRunTracker() *RunTracker {
	return &RunTracker{index: make(map[string]int)}
}

// Listen consumes bus events until the context is canceled.
func (t *RunTracker) Listen(ctx context.Context, eventBus *bus.Bus) {
	sub := eventBus.Subscribe("")
	defer eventBus.Unsubscribe(sub)

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-sub.Ch():
			t.Apply(ev)
		}
	}
}

// Apply folds one event into the tracked state.
func (t *RunTracker) Apply(ev bus.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch ev.Topic {
	case bus.TopicRunStarted:
		re, ok := ev.Payload.(bus.RunEvent)
		if !ok {
			return
		}
		t.snap = Snapshot{
			RunID:        re.RunID,
			DatasetCount: len(re.Datasets),
			StartedAt:    time.Now(),
		}
		t.index = make(map[string]int, len(re.Symbols))
		for i, sym := range re.Symbols {
			t.snap.Symbols = append(t.snap.Symbols, SymbolProgress{Symbol: sym})
			t.index[sym] = i
		}
		t.snap.LastEvent = fmt.Sprintf("run started (%d symbols)", len(re.Symbols))

	case bus.TopicRunFinished:
		re, ok := ev.Payload.(bus.RunEvent)
		if !ok {
			return
		}
		t.snap.Status = re.Status
		t.snap.Done = true
		if re.Err != "" {
			t.snap.LastError = humanError(re.Err)
		}

	case bus.TopicSymbolStarted:
		se, ok := ev.Payload.(bus.SymbolEvent)
		if !ok {
			return
		}
		t.snap.LastEvent = "fetching " + se.Symbol

	case bus.TopicSymbolFinished:
		se, ok := ev.Payload.(bus.SymbolEvent)
		if !ok {
			return
		}
		i, ok := t.index[se.Symbol]
		if !ok {
			return
		}
		t.snap.Symbols[i].Done = true
		if se.UniProtKBAC != "" {
			t.snap.Symbols[i].Accession = se.UniProtKBAC
		}
		if se.Err != "" {
			t.snap.Symbols[i].Err = humanError(se.Err)
			t.snap.LastError = humanError(se.Err)
		}

	case bus.TopicDatasetFetched:
		de, ok := ev.Payload.(bus.DatasetEvent)
		if !ok {
			return
		}
		if i, ok := t.index[de.Symbol]; ok {
			t.snap.Symbols[i].Datasets++
			t.snap.Symbols[i].Records += de.Records
		}
		t.snap.LastEvent = fmt.Sprintf("%s: %s (%d records)", de.Symbol, de.Dataset, de.Records)

	case bus.TopicArtifactAppended:
		ae, ok := ev.Payload.(bus.ArtifactEvent)
		if !ok {
			return
		}
		t.snap.Appends++
		t.snap.RowsAppended += ae.Rows

	case bus.TopicMappingResolved:
		se, ok := ev.Payload.(bus.SymbolEvent)
		if !ok {
			return
		}
		t.snap.Mappings++
		if i, ok := t.index[se.Symbol]; ok && se.UniProtKBAC != "" {
			t.snap.Symbols[i].Accession = se.UniProtKBAC
		}

	case bus.TopicAlert:
		a, ok := ev.Payload.(bus.Alert)
		if !ok {
			return
		}
		if a.Severity == "error" {
			t.snap.LastError = a.Message
		}
	}
}

// Snapshot returns a copy safe to read while events keep arriving.
func (t *RunTracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	snap := t.snap
	snap.Symbols = make([]SymbolProgress, len(t.snap.Symbols))
	copy(snap.Symbols, t.snap.Symbols)
	return snap
}
