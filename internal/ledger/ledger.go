// Package ledger is the SQLite store behind fetch runs: the symbol to
// accession mapping cache, the run journal, and a small kv table for
// operational state. Artifacts themselves live on disk as CSV and
// workbook files; the ledger only records what was done to them.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/basket/biofetch/internal/bus"
	"github.com/basket/biofetch/internal/journal"
	_ "github.com/mattn/go-sqlite3"
)

const (
	// v1: mapping cache + run journal.
	schemaVersionV1  = 1
	schemaChecksumV1 = "bf-v1-2026-07-28-run-ledger"

	// v2: run_results.artifact column, so a result names the file it fed.
	schemaVersionV2  = 2
	schemaChecksumV2 = "bf-v2-2026-08-05-result-artifact"

	schemaVersionLatest  = schemaVersionV2
	schemaChecksumLatest = schemaChecksumV2
)

const createMigrationsTable = `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		checksum TEXT NOT NULL,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`

var tableStatements = []string{
	`CREATE TABLE IF NOT EXISTS protein_mappings (
		symbol TEXT PRIMARY KEY,
		uniprotkb_ac TEXT NOT NULL,
		primary_symbol TEXT NOT NULL,
		symbols_json TEXT NOT NULL DEFAULT '[]',
		ensp_ids_json TEXT NOT NULL DEFAULT '[]',
		resolved_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`,
	`CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		status TEXT NOT NULL CHECK(status IN ('RUNNING', 'SUCCEEDED', 'PARTIAL', 'FAILED')),
		symbols_json TEXT NOT NULL DEFAULT '[]',
		datasets_json TEXT NOT NULL DEFAULT '[]',
		output_dir TEXT NOT NULL DEFAULT '',
		error TEXT,
		started_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		finished_at DATETIME
	);`,
	`CREATE TABLE IF NOT EXISTS run_results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id),
		symbol TEXT NOT NULL,
		dataset TEXT NOT NULL,
		artifact TEXT NOT NULL DEFAULT '',
		rows_appended INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL CHECK(status IN ('SUCCEEDED', 'FAILED', 'SKIPPED')),
		error TEXT,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`,
	`CREATE TABLE IF NOT EXISTS journal_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT,
		action TEXT NOT NULL,
		artifact TEXT,
		symbol TEXT,
		row_count INTEGER NOT NULL DEFAULT 0,
		detail TEXT,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`,
	`CREATE TABLE IF NOT EXISTS kv_store (
		key TEXT PRIMARY KEY,
		value TEXT,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);`,
}

var indexStatements = []string{
	`CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at DESC);`,
	`CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status, started_at);`,
	`CREATE INDEX IF NOT EXISTS idx_run_results_run ON run_results(run_id, id);`,
	`CREATE INDEX IF NOT EXISTS idx_journal_log_run ON journal_log(run_id, id);`,
	`CREATE INDEX IF NOT EXISTS idx_mappings_resolved ON protein_mappings(resolved_at);`,
}

type Store struct {
	db  *sql.DB
	bus *bus.Bus // may be nil in tests
}

func DefaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		home = "."
	}
	return filepath.Join(home, ".biofetch", "biofetch.db")
}

func Open(path string, eventBus *bus.Bus) (*Store, error) {
	if path == "" {
		path = DefaultDBPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create ledger directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open ledger db: %w", err)
	}
	// A single connection sidesteps SQLITE_BUSY between our own writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &Store{db: db, bus: eventBus}
	if err := store.applyPragmas(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := store.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) applyPragmas(ctx context.Context) error {
	// WAL keeps readers unblocked during appends; FULL sync because the
	// ledger is the recovery record for interrupted runs.
	for _, q := range []string{"PRAGMA journal_mode=WAL;", "PRAGMA synchronous=FULL;"} {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("apply %s: %w", strings.TrimSuffix(q, ";"), err)
		}
	}
	return nil
}

// migrate brings the database to the latest schema inside one
// transaction. Checksums on the version rows catch a db file that was
// produced by a different build of the schema.
func (s *Store) migrate(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, createMigrationsTable); err != nil {
		return fmt.Errorf("create migration table: %w", err)
	}

	var have int
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations;`).Scan(&have); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	switch {
	case have > schemaVersionLatest:
		return fmt.Errorf("ledger schema v%d is newer than supported v%d", have, schemaVersionLatest)
	case have == schemaVersionLatest:
		if err := verifyChecksum(ctx, tx, schemaVersionLatest, schemaChecksumLatest); err != nil {
			return err
		}
		return tx.Commit()
	case have == schemaVersionV1:
		// Validate the v1 row before building on top of it.
		if err := verifyChecksum(ctx, tx, schemaVersionV1, schemaChecksumV1); err != nil {
			return err
		}
	}

	for _, stmt := range tableStatements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}

	// Databases created at v1 gain the v2 column here; fresh databases
	// already have it from the CREATE above.
	alters := []struct{ stmt, col string }{
		{`ALTER TABLE run_results ADD COLUMN artifact TEXT NOT NULL DEFAULT '';`, "run_results.artifact"},
	}
	for _, a := range alters {
		if _, err := tx.ExecContext(ctx, a.stmt); err != nil && !strings.Contains(err.Error(), "duplicate column name") {
			return fmt.Errorf("add %s: %w", a.col, err)
		}
	}

	for _, stmt := range indexStatements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO schema_migrations (version, checksum) VALUES (?, ?);`,
		schemaVersionLatest, schemaChecksumLatest); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}

	journal.Record("", journal.ActionMigration, "", "", 0,
		fmt.Sprintf("ledger schema upgraded v%d -> v%d (%s)", have, schemaVersionLatest, schemaChecksumLatest))
	return nil
}

func verifyChecksum(ctx context.Context, tx *sql.Tx, version int, want string) error {
	var have string
	if err := tx.QueryRowContext(ctx, `SELECT checksum FROM schema_migrations WHERE version = ?;`, version).Scan(&have); err != nil {
		return fmt.Errorf("read schema checksum: %w", err)
	}
	if have != want {
		return fmt.Errorf("schema v%d checksum mismatch: have %q want %q", version, have, want)
	}
	return nil
}

// withBusyRetry retries f when SQLite reports BUSY or LOCKED. Backoff
// doubles from 50ms up to 500ms with ±25% jitter, on top of the
// driver's own 5s busy_timeout.
func withBusyRetry(ctx context.Context, attempts int, f func() error) error {
	delay := 50 * time.Millisecond
	const maxDelay = 500 * time.Millisecond

	var err error
	for try := 0; ; try++ {
		err = f()
		if err == nil || !sqliteBusy(err) || try == attempts {
			return err
		}
		wait := delay - delay/4 + time.Duration(rand.IntN(int(delay/2)))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		delay *= 2
		if delay > maxDelay {
			delay = maxDelay
		}
	}
}

func sqliteBusy(err error) bool {
	if err == nil {
		return false
	}
	// Matching on text keeps sqlite3 types out of the query paths.
	// Codes: SQLITE_BUSY (5), SQLITE_LOCKED (6).
	msg := err.Error()
	for _, marker := range []string{"database is locked", "database table is locked", "(5)", "(6)"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// SetValue stores an operational key/value pair.
func (s *Store) SetValue(ctx context.Context, key, value string) error {
	return withBusyRetry(ctx, 5, func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO kv_store (key, value, updated_at)
			VALUES (?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP;
		`, key, value)
		if err != nil {
			return fmt.Errorf("set kv %q: %w", key, err)
		}
		return nil
	})
}

// GetValue reads an operational key/value pair. Returns "" when absent.
func (s *Store) GetValue(ctx context.Context, key string) (string, error) {
	var value sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv_store WHERE key = ?;`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get kv %q: %w", key, err)
	}
	return value.String, nil
}
