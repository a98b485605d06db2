package otel

import "go.opentelemetry.io/otel/metric"

// Metrics holds all biofetch metrics instruments.
type Metrics struct {
	RunDuration      metric.Float64Histogram
	SymbolDuration   metric.Float64Histogram
	RunsTotal        metric.Int64Counter
	SymbolFailures   metric.Int64Counter
	DatasetRecords   metric.Int64Counter
	ArtifactRows     metric.Int64Counter
	ArtifactAppends  metric.Int64Counter
	MappingsResolved metric.Int64Counter
	ScheduleFires    metric.Int64Counter
	ActiveRuns       metric.Int64UpDownCounter
}

// NewMetrics creates all metric instruments from the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.RunDuration, err = meter.Float64Histogram("biofetch.run.duration",
		metric.WithDescription("Fetch run duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	m.SymbolDuration, err = meter.Float64Histogram("biofetch.symbol.duration",
		metric.WithDescription("Per-symbol processing duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	m.RunsTotal, err = meter.Int64Counter("biofetch.runs",
		metric.WithDescription("Completed fetch runs by status"),
	)
	if err != nil {
		return nil, err
	}

	m.SymbolFailures, err = meter.Int64Counter("biofetch.symbol.failures",
		metric.WithDescription("Symbols that failed to process"),
	)
	if err != nil {
		return nil, err
	}

	m.DatasetRecords, err = meter.Int64Counter("biofetch.dataset.records",
		metric.WithDescription("Records fetched from the service by dataset"),
	)
	if err != nil {
		return nil, err
	}

	m.ArtifactRows, err = meter.Int64Counter("biofetch.artifact.rows",
		metric.WithDescription("Rows appended to artifacts"),
	)
	if err != nil {
		return nil, err
	}

	m.ArtifactAppends, err = meter.Int64Counter("biofetch.artifact.appends",
		metric.WithDescription("Artifact append operations"),
	)
	if err != nil {
		return nil, err
	}

	m.MappingsResolved, err = meter.Int64Counter("biofetch.mappings.resolved",
		metric.WithDescription("Gene symbol to accession resolutions"),
	)
	if err != nil {
		return nil, err
	}

	m.ScheduleFires, err = meter.Int64Counter("biofetch.schedule.fires",
		metric.WithDescription("Cron schedule firings by schedule name"),
	)
	if err != nil {
		return nil, err
	}

	m.ActiveRuns, err = meter.Int64UpDownCounter("biofetch.runs.active",
		metric.WithDescription("Number of currently active fetch runs"),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}
