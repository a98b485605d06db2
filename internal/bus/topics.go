package bus

// Topics published over the course of a fetch run. The runner
// publishes these; the TUI, the telemetry bridge, and notification
// channels subscribe.
const (
	TopicRunStarted       = "run.started"
	TopicRunFinished      = "run.finished"
	TopicSymbolStarted    = "run.symbol_started"
	TopicSymbolFinished   = "run.symbol_finished"
	TopicDatasetFetched   = "dataset.fetched"
	TopicArtifactAppended = "artifact.appended"
	TopicMappingResolved  = "mapping.resolved"
)

// Schedule and watch topics. The scheduler and the symbols-file
// watcher publish these; the notifier and the TUI subscribe.
const (
	TopicScheduleFired  = "schedule.fired"
	TopicWatchTriggered = "watch.triggered"
	TopicAlert          = "alert"
)

// RunEvent is the payload on run.started and run.finished.
type RunEvent struct {
	RunID    string   // Run ID
	Symbols  []string // Gene symbols in the run
	Datasets []string // Dataset names in the run
	Status   string   // Final status (empty on start)
	Err      string   // Final error text (empty on success)
}

// SymbolEvent is published per gene symbol as a run works through it.
type SymbolEvent struct {
	RunID       string // Run ID
	Symbol      string // Gene symbol
	UniProtKBAC string // Resolved accession (empty until mapped)
	Err         string // Failure text (empty on success)
}

// DatasetEvent is published when one dataset finishes fetching for a symbol.
type DatasetEvent struct {
	RunID   string // Run ID
	Symbol  string // Gene symbol
	Dataset string // Dataset name
	Records int    // Records fetched
}

// ArtifactEvent is published after an artifact write.
type ArtifactEvent struct {
	RunID    string // Run ID
	Artifact string // Artifact name
	Rows     int    // Rows appended
	Columns  int    // Columns in the artifact after the write
}

// ScheduleEvent is published when a cron schedule comes due.
type ScheduleEvent struct {
	Name    string // Schedule name from the config
	Spec    string // Cron expression that fired
	Symbols int    // Symbols queued for the run
}

// WatchEvent is published when the watched symbols file changes.
type WatchEvent struct {
	Path    string // Watched file path
	Symbols int    // Symbols read after the change
}

// Alert is published for conditions an operator should hear about:
// failed runs, corrupt artifacts, unreachable services.
type Alert struct {
	Severity string // "info", "warning", or "error"
	Message  string
	RunID    string // Run ID when the alert belongs to a run
}
