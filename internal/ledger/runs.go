package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/basket/biofetch/internal/bus"
	"github.com/google/uuid"
)

type RunStatus string

const (
	RunStatusRunning   RunStatus = "RUNNING"
	RunStatusSucceeded RunStatus = "SUCCEEDED"
	RunStatusPartial   RunStatus = "PARTIAL"
	RunStatusFailed    RunStatus = "FAILED"
)

type Run struct {
	ID         string     `json:"id"`
	Status     RunStatus  `json:"status"`
	Symbols    []string   `json:"symbols"`
	Datasets   []string   `json:"datasets"`
	OutputDir  string     `json:"output_dir"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

type ResultStatus string

const (
	ResultStatusSucceeded ResultStatus = "SUCCEEDED"
	ResultStatusFailed    ResultStatus = "FAILED"
	ResultStatusSkipped   ResultStatus = "SKIPPED"
)

// RunResult is one symbol/dataset outcome within a run.
type RunResult struct {
	ID           int64        `json:"id"`
	RunID        string       `json:"run_id"`
	Symbol       string       `json:"symbol"`
	Dataset      string       `json:"dataset"`
	Artifact     string       `json:"artifact,omitempty"`
	RowsAppended int          `json:"rows_appended"`
	Status       ResultStatus `json:"status"`
	Error        string       `json:"error,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
}

// BeginRun records a new run in RUNNING state and returns its id.
func (s *Store) BeginRun(ctx context.Context, symbols, datasets []string, outputDir string) (string, error) {
	runID := uuid.NewString()
	symbolsJSON, err := json.Marshal(symbols)
	if err != nil {
		return "", fmt.Errorf("encode symbols: %w", err)
	}
	datasetsJSON, err := json.Marshal(datasets)
	if err != nil {
		return "", fmt.Errorf("encode datasets: %w", err)
	}
	err = withBusyRetry(ctx, 5, func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO runs (id, status, symbols_json, datasets_json, output_dir, started_at)
			VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP);
		`, runID, RunStatusRunning, string(symbolsJSON), string(datasetsJSON), outputDir)
		if err != nil {
			return fmt.Errorf("insert run: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if s.bus != nil {
		s.bus.Publish(bus.TopicRunStarted, bus.RunEvent{
			RunID:    runID,
			Symbols:  symbols,
			Datasets: datasets,
		})
	}
	return runID, nil
}

// FinishRun moves a run out of RUNNING. Finishing a run twice, or one
// that never started, is an error.
func (s *Store) FinishRun(ctx context.Context, runID string, status RunStatus, errMsg string) error {
	if status == RunStatusRunning {
		return fmt.Errorf("cannot finish run %s into RUNNING", runID)
	}
	err := withBusyRetry(ctx, 5, func() error {
		res, err := s.db.ExecContext(ctx, `
			UPDATE runs
			SET status = ?, error = NULLIF(?, ''), finished_at = CURRENT_TIMESTAMP
			WHERE id = ? AND status = ?;
		`, status, errMsg, runID, RunStatusRunning)
		if err != nil {
			return fmt.Errorf("finish run: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("finish run rows affected: %w", err)
		}
		if affected != 1 {
			return fmt.Errorf("run %s is not running", runID)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if s.bus != nil {
		s.bus.Publish(bus.TopicRunFinished, bus.RunEvent{
			RunID:  runID,
			Status: string(status),
			Err:    errMsg,
		})
	}
	return nil
}

// RecordResult appends one symbol/dataset outcome to a run.
func (s *Store) RecordResult(ctx context.Context, r RunResult) error {
	if r.RunID == "" || r.Symbol == "" || r.Dataset == "" {
		return fmt.Errorf("result needs run, symbol and dataset: %+v", r)
	}
	return withBusyRetry(ctx, 5, func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO run_results (run_id, symbol, dataset, artifact, rows_appended, status, error, created_at)
			VALUES (?, ?, ?, ?, ?, ?, NULLIF(?, ''), CURRENT_TIMESTAMP);
		`, r.RunID, r.Symbol, r.Dataset, r.Artifact, r.RowsAppended, r.Status, r.Error)
		if err != nil {
			return fmt.Errorf("insert run result: %w", err)
		}
		return nil
	})
}

// RunResults returns a run's outcomes in insertion order.
func (s *Store) RunResults(ctx context.Context, runID string) ([]RunResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, symbol, dataset, artifact, rows_appended, status, COALESCE(error, ''), created_at
		FROM run_results
		WHERE run_id = ?
		ORDER BY id ASC;
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query run results: %w", err)
	}
	defer rows.Close()

	var out []RunResult
	for rows.Next() {
		var r RunResult
		if err := rows.Scan(&r.ID, &r.RunID, &r.Symbol, &r.Dataset, &r.Artifact, &r.RowsAppended, &r.Status, &r.Error, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan run result: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("run result rows: %w", err)
	}
	return out, nil
}

// GetRun returns one run, or nil when absent.
func (s *Store) GetRun(ctx context.Context, runID string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, status, symbols_json, datasets_json, output_dir, COALESCE(error, ''), started_at, finished_at
		FROM runs
		WHERE id = ?;
	`, runID)
	run, err := scanRun(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", runID, err)
	}
	return run, nil
}

// LastRun returns the most recently started run, or nil when the
// ledger has none.
func (s *Store) LastRun(ctx context.Context) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, status, symbols_json, datasets_json, output_dir, COALESCE(error, ''), started_at, finished_at
		FROM runs
		ORDER BY started_at DESC, id DESC
		LIMIT 1;
	`)
	run, err := scanRun(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("last run: %w", err)
	}
	return run, nil
}

// ListRuns returns recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 || limit > 1000 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, status, symbols_json, datasets_json, output_dir, COALESCE(error, ''), started_at, finished_at
		FROM runs
		ORDER BY started_at DESC, id DESC
		LIMIT ?;
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		run, err := scanRun(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("run rows: %w", err)
	}
	return out, nil
}

func scanRun(scanFn func(dest ...any) error) (*Run, error) {
	var run Run
	var symbolsJSON, datasetsJSON string
	var finished sql.NullTime
	if err := scanFn(&run.ID, &run.Status, &symbolsJSON, &datasetsJSON, &run.OutputDir, &run.Error, &run.StartedAt, &finished); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(symbolsJSON), &run.Symbols); err != nil {
		return nil, fmt.Errorf("decode symbols: %w", err)
	}
	if err := json.Unmarshal([]byte(datasetsJSON), &run.Datasets); err != nil {
		return nil, fmt.Errorf("decode datasets: %w", err)
	}
	if finished.Valid {
		t := finished.Time
		run.FinishedAt = &t
	}
	return &run, nil
}
