// Package journal keeps an append-only record of artifact mutations.
// Artifacts are rewritten in full on every append, so the journal is
// the only place the history of a file survives.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/basket/biofetch/internal/shared"
)

// Journaled actions.
const (
	ActionEnsure      = "ensure"
	ActionAppend      = "append"
	ActionOverwrite   = "overwrite"
	ActionMigration   = "migration"
	ActionRunStarted  = "run_started"
	ActionRunFinished = "run_finished"
)

type entry struct {
	Timestamp string `json:"timestamp"`
	RunID     string `json:"run_id,omitempty"`
	Action    string `json:"action"`
	Artifact  string `json:"artifact,omitempty"`
	Symbol    string `json:"symbol,omitempty"`
	Rows      int    `json:"rows,omitempty"`
	Detail    string `json:"detail,omitempty"`
}

var (
	mu             sync.Mutex
	file           *os.File
	db             *sql.DB
	overwriteCount atomic.Int64
)

func Init(homeDir string) error {
	mu.Lock()
	defer mu.Unlock()
	if file != nil {
		return nil
	}
	logDir := filepath.Join(homeDir, "logs")
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(filepath.Join(logDir, "journal.jsonl"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	file = f
	return nil
}

// SetDB configures the database for journal_log table writes.
func SetDB(d *sql.DB) {
	mu.Lock()
	defer mu.Unlock()
	db = d
}

func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if file == nil {
		return nil
	}
	err := file.Close()
	file = nil
	return err
}

// OverwriteCount returns the number of destructive overwrites recorded
// since startup. Anything above zero means an artifact was found
// unreadable and replaced.
func OverwriteCount() int64 {
	return overwriteCount.Load()
}

func Record(runID, action, artifact, symbol string, rows int, detail string) {
	if action == ActionOverwrite {
		overwriteCount.Add(1)
	}

	// Service errors can carry auth headers; scrub before persisting.
	detail = shared.Redact(detail)

	mu.Lock()
	defer mu.Unlock()

	// Write to JSONL file.
	if file != nil {
		ev := entry{
			Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
			RunID:     runID,
			Action:    action,
			Artifact:  artifact,
			Symbol:    symbol,
			Rows:      rows,
			Detail:    detail,
		}
		b, err := json.Marshal(ev)
		if err == nil {
			_, _ = file.Write(append(b, '\n'))
		}
	}

	// Write to journal_log table.
	if db != nil {
		_, _ = db.ExecContext(context.Background(), `
			INSERT INTO journal_log (run_id, action, artifact, symbol, row_count, detail)
			VALUES (NULLIF(?, ''), ?, NULLIF(?, ''), NULLIF(?, ''), ?, ?);
		`, runID, action, artifact, symbol, rows, detail)
	}
}
