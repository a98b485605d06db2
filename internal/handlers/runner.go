package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"

	"github.com/basket/biofetch/internal/artifact"
	"github.com/basket/biofetch/internal/bus"
	"github.com/basket/biofetch/internal/journal"
	"github.com/basket/biofetch/internal/ledger"
	"github.com/basket/biofetch/internal/otel"
	"github.com/basket/biofetch/internal/shared"
	"github.com/basket/biofetch/internal/umap"
)

// RunnerConfig wires a Runner.
type RunnerConfig struct {
	Source     Source
	Store      artifact.Store
	Ledger     *ledger.Store
	Bus        *bus.Bus     // may be nil
	Tracer     trace.Tracer // may be nil
	Logger     *slog.Logger
	Categories []string      // dataset categories to run; empty means all
	CellLines  []string      // fixed cell line set; empty means discover per gene
	MappingTTL time.Duration // mapping cache expiry; 0 keeps entries forever
	OutputPath string        // recorded on the run row
}

// Runner drives a batch: it resolves symbols to accessions through the
// mapping cache, runs the selected dataset handlers for each resolved
// gene in turn, and records the whole thing in the run ledger. One
// gene's failure is logged and recorded; the batch moves on.
type Runner struct {
	source    Source
	store     artifact.Store
	ledger    *ledger.Store
	bus       *bus.Bus
	tracer    trace.Tracer
	logger    *slog.Logger
	ttl       time.Duration
	output    string
	cellLines map[string]bool
	handlers  []Handler
	umap      *UMapHandler
}

func NewRunner(cfg RunnerConfig) (*Runner, error) {
	if cfg.Source == nil {
		return nil, errors.New("runner needs a source")
	}
	if cfg.Store == nil {
		return nil, errors.New("runner needs an artifact store")
	}
	if cfg.Ledger == nil {
		return nil, errors.New("runner needs a ledger")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "runner")
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = nooptrace.NewTracerProvider().Tracer(otel.TracerName)
	}

	selected := make(map[string]bool, len(cfg.Categories))
	for _, c := range cfg.Categories {
		if !artifact.ValidCategory(c) {
			return nil, fmt.Errorf("unknown dataset category %q", c)
		}
		selected[c] = true
	}
	if len(selected) == 0 {
		for _, c := range artifact.Categories() {
			selected[c] = true
		}
	}

	var cellLines map[string]bool
	if len(cfg.CellLines) > 0 {
		cellLines = make(map[string]bool, len(cfg.CellLines))
		for _, l := range cfg.CellLines {
			cellLines[l] = true
		}
	}

	r := &Runner{
		source:    cfg.Source,
		store:     cfg.Store,
		ledger:    cfg.Ledger,
		bus:       cfg.Bus,
		tracer:    tracer,
		logger:    logger,
		ttl:       cfg.MappingTTL,
		output:    cfg.OutputPath,
		cellLines: cellLines,
		umap:      NewUMapHandler(cfg.Source, cfg.Store, cfg.Logger),
	}
	byCategory := map[string]Handler{
		artifact.CategoryDepMap:         NewDepMapHandler(cfg.Source, cfg.Store, cfg.Logger),
		artifact.CategoryProteomics:     NewProteomicsHandler(cfg.Source, cfg.Store, cfg.Logger),
		artifact.CategoryGeneExpression: NewGeneExpressionHandler(cfg.Source, cfg.Store, cfg.Logger),
		artifact.CategoryWCE:            NewWCEHandler(cfg.Source, cfg.Store, cfg.Logger),
		artifact.CategoryUMap:           r.umap,
	}
	for _, c := range artifact.Categories() {
		if selected[c] {
			r.handlers = append(r.handlers, byCategory[c])
		}
	}
	return r, nil
}

// Categories returns the dataset categories this runner executes, in
// run order.
func (r *Runner) Categories() []string {
	out := make([]string, len(r.handlers))
	for i, h := range r.handlers {
		out[i] = h.Category()
	}
	return out
}

// Outcome summarizes one batch run.
type Outcome struct {
	RunID      string
	Status     ledger.RunStatus
	Processed  []string // symbols that completed every dataset
	Failed     []string // symbols that resolved but failed a dataset
	Unresolved []string // symbols with no known accession
	Rows       int      // rows appended across all artifacts
}

// Resolve maps symbols to accessions, consulting the mapping cache
// first and fetching the misses in one batch. It returns mappings in
// input order plus the symbols that could not be resolved at all.
func (r *Runner) Resolve(ctx context.Context, symbols []string) ([]ledger.Mapping, []string, error) {
	byRequested := make(map[string]*ledger.Mapping)
	var order, misses []string
	for _, s := range symbols {
		if s == "" || byRequested[s] != nil || slices.Contains(misses, s) {
			continue
		}
		order = append(order, s)
		m, err := r.ledger.GetMapping(ctx, s, r.ttl)
		if err != nil {
			return nil, nil, fmt.Errorf("mapping cache: %w", err)
		}
		if m != nil {
			byRequested[s] = m
			continue
		}
		misses = append(misses, s)
	}

	if len(misses) > 0 {
		fetched, err := r.source.MapProteins(ctx, misses)
		if err != nil {
			return nil, nil, fmt.Errorf("map proteins: %w", err)
		}
		for _, s := range misses {
			pm, ok := matchMapping(fetched, s)
			if !ok {
				continue
			}
			m := ledger.Mapping{
				Symbol:        s,
				UniProtKBAC:   pm.UniProtKBAC,
				PrimarySymbol: pm.PrimarySymbol,
				Symbols:       pm.Symbols,
				ENSPIDs:       pm.ENSPIDs,
			}
			if err := r.ledger.PutMapping(ctx, m); err != nil {
				return nil, nil, fmt.Errorf("cache mapping for %s: %w", s, err)
			}
			byRequested[s] = &m
		}
	}

	var resolved []ledger.Mapping
	var unresolved []string
	for _, s := range order {
		if m := byRequested[s]; m != nil {
			resolved = append(resolved, *m)
		} else {
			unresolved = append(unresolved, s)
		}
	}
	return resolved, unresolved, nil
}

// matchMapping finds the service mapping a requested symbol belongs
// to, by primary symbol first and then by alias.
func matchMapping(mappings []umap.ProteinMapping, symbol string) (umap.ProteinMapping, bool) {
	for _, m := range mappings {
		if m.UniProtKBAC == "" {
			continue
		}
		if m.PrimarySymbol == symbol {
			return m, true
		}
	}
	for _, m := range mappings {
		if m.UniProtKBAC == "" {
			continue
		}
		for _, alias := range m.Symbols {
			if alias == symbol {
				return m, true
			}
		}
	}
	return umap.ProteinMapping{}, false
}

// Run executes the batch. The returned error covers infrastructure
// failures only; per-symbol failures land in the Outcome and the run
// ledger.
func (r *Runner) Run(ctx context.Context, symbols []string) (*Outcome, error) {
	if len(symbols) == 0 {
		return nil, errors.New("no symbols to fetch")
	}

	resolved, unresolved, err := r.Resolve(ctx, symbols)
	if err != nil {
		return nil, err
	}
	for _, s := range unresolved {
		r.logger.Warn("no mapping found", "symbol", s)
	}
	if len(resolved) == 0 {
		return nil, fmt.Errorf("none of %d symbols resolved to an accession", len(symbols))
	}

	categories := r.Categories()
	runID, err := r.ledger.BeginRun(ctx, symbols, categories, r.output)
	if err != nil {
		return nil, err
	}
	traceID := shared.NewTraceID()
	ctx = shared.WithRunID(ctx, runID)
	ctx = shared.WithTraceID(ctx, traceID)
	ctx, span := otel.StartSpan(ctx, r.tracer, "fetch.run", otel.AttrRunID.String(runID))
	defer span.End()
	journal.Record(runID, journal.ActionRunStarted, "", "", 0,
		fmt.Sprintf("%d symbols, %d datasets", len(symbols), len(categories)))
	r.logger.Info("run started", "run_id", runID, "trace_id", traceID,
		"symbols", len(symbols), "resolved", len(resolved), "datasets", categories)

	for _, s := range unresolved {
		result := ledger.RunResult{
			RunID:   runID,
			Symbol:  s,
			Dataset: "mapping",
			Status:  ledger.ResultStatusFailed,
			Error:   "no accession found",
		}
		if err := r.ledger.RecordResult(ctx, result); err != nil {
			r.logger.Error("record result failed", "symbol", s, "error", err)
		}
	}

	out := &Outcome{RunID: runID, Unresolved: unresolved}
	for _, m := range resolved {
		symbol := m.PrimarySymbol
		if symbol == "" {
			symbol = m.Symbol
		}
		if err := r.runSymbol(ctx, symbol, m.UniProtKBAC, out); err != nil {
			r.logger.Error("symbol failed", "symbol", symbol, "error", err)
			out.Failed = append(out.Failed, symbol)
		} else {
			out.Processed = append(out.Processed, symbol)
		}
	}

	var errMsg string
	switch {
	case len(out.Failed) == 0 && len(out.Unresolved) == 0:
		out.Status = ledger.RunStatusSucceeded
	case len(out.Processed) > 0:
		out.Status = ledger.RunStatusPartial
		errMsg = fmt.Sprintf("%d of %d symbols failed", len(out.Failed)+len(out.Unresolved), len(symbols))
	default:
		out.Status = ledger.RunStatusFailed
		errMsg = "every symbol failed"
	}
	span.SetAttributes(otel.AttrStatus.String(string(out.Status)))
	if err := r.ledger.FinishRun(ctx, runID, out.Status, errMsg); err != nil {
		return nil, err
	}
	journal.Record(runID, journal.ActionRunFinished, "", "", out.Rows, string(out.Status))
	r.logger.Info("run finished", "run_id", runID, "status", out.Status,
		"processed", len(out.Processed), "failed", len(out.Failed), "rows", out.Rows)
	return out, nil
}

// runSymbol runs every selected handler for one gene. The first
// dataset failure stops work on the gene, mirroring one bad response
// poisoning everything downstream of it.
func (r *Runner) runSymbol(ctx context.Context, symbol, uniprotkbAC string, out *Outcome) error {
	ctx = shared.WithSymbol(ctx, symbol)
	ctx, span := otel.StartSpan(ctx, r.tracer, "fetch.symbol", otel.AttrSymbol.String(symbol))
	defer span.End()
	runID := shared.RunID(ctx)
	r.publish(bus.TopicSymbolStarted, bus.SymbolEvent{
		RunID: runID, Symbol: symbol, UniProtKBAC: uniprotkbAC,
	})
	r.logger.Info("processing symbol", "symbol", symbol, "uniprotkb_ac", uniprotkbAC)

	target := Target{Symbol: symbol, UniProtKBAC: uniprotkbAC, CellLines: r.cellLines}
	var symbolErr error
	if target.CellLines == nil && r.needsCellLines() {
		lines, err := r.umap.CellLines(ctx, uniprotkbAC)
		if err != nil {
			symbolErr = fmt.Errorf("discover cell lines: %w", err)
			r.recordFailure(ctx, symbol, artifact.CategoryUMap, symbolErr)
		} else {
			target.CellLines = lines
			r.logger.Info("cell lines targeted", "symbol", symbol, "cell_lines", len(lines))
		}
	}

	if symbolErr == nil {
		for _, h := range r.handlers {
			appends, err := h.Build(shared.WithDataset(ctx, h.Category()), target)
			r.recordAppends(ctx, symbol, h.Category(), appends, out)
			if err != nil {
				symbolErr = fmt.Errorf("%s: %w", h.Category(), err)
				r.recordFailure(ctx, symbol, h.Category(), err)
				break
			}
		}
	}

	ev := bus.SymbolEvent{RunID: runID, Symbol: symbol, UniProtKBAC: uniprotkbAC}
	if symbolErr != nil {
		ev.Err = symbolErr.Error()
		span.RecordError(symbolErr)
	}
	r.publish(bus.TopicSymbolFinished, ev)
	return symbolErr
}

func (r *Runner) needsCellLines() bool {
	for _, h := range r.handlers {
		switch h.Category() {
		case artifact.CategoryWCE, artifact.CategoryDepMap:
			return true
		}
	}
	return false
}

func (r *Runner) recordAppends(ctx context.Context, symbol, dataset string, appends []Append, out *Outcome) {
	runID := shared.RunID(ctx)
	records := 0
	for _, a := range appends {
		records += a.Rows
		out.Rows += a.Rows
		result := ledger.RunResult{
			RunID:        runID,
			Symbol:       symbol,
			Dataset:      dataset,
			Artifact:     a.Artifact,
			RowsAppended: a.Rows,
			Status:       ledger.ResultStatusSucceeded,
		}
		if err := r.ledger.RecordResult(ctx, result); err != nil {
			r.logger.Error("record result failed", "artifact", a.Artifact, "error", err)
		}
		journal.Record(runID, journal.ActionAppend, a.Artifact, symbol, a.Rows, "")
		r.publish(bus.TopicArtifactAppended, bus.ArtifactEvent{
			RunID: runID, Artifact: a.Artifact, Rows: a.Rows, Columns: a.Columns,
		})
	}
	if len(appends) > 0 {
		r.publish(bus.TopicDatasetFetched, bus.DatasetEvent{
			RunID: runID, Symbol: symbol, Dataset: dataset, Records: records,
		})
	}
}

func (r *Runner) recordFailure(ctx context.Context, symbol, dataset string, cause error) {
	result := ledger.RunResult{
		RunID:   shared.RunID(ctx),
		Symbol:  symbol,
		Dataset: dataset,
		Status:  ledger.ResultStatusFailed,
		Error:   cause.Error(),
	}
	if err := r.ledger.RecordResult(ctx, result); err != nil {
		r.logger.Error("record result failed", "symbol", symbol, "error", err)
	}
}

func (r *Runner) publish(topic string, payload any) {
	if r.bus != nil {
		r.bus.Publish(topic, payload)
	}
}
