package artifact

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/basket/biofetch/internal/journal"
	"github.com/basket/biofetch/internal/tabular"
)

var _ Store = (*CSVStore)(nil)

// CSVStore keeps one CSV file per artifact under a single directory.
// Appends are full read-modify-write: column growth retrofits every
// existing row, so the file is rebuilt and swapped in with a rename.
type CSVStore struct {
	dir    string
	logger *slog.Logger
}

func NewCSVStore(dir string, logger *slog.Logger) *CSVStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &CSVStore{dir: dir, logger: logger.With("store", "csv")}
}

func (s *CSVStore) Path(name string) string {
	return filepath.Join(s.dir, name)
}

func (s *CSVStore) Ensure(name string, initial *tabular.Schema) (*tabular.Schema, error) {
	schema, _, exists, err := s.load(name)
	if err != nil {
		return nil, err
	}
	if exists {
		return schema, nil
	}
	if err := s.writeGrid(name, initial, nil); err != nil {
		return nil, err
	}
	return initial.Clone(), nil
}

func (s *CSVStore) Append(name string, rowSchema *tabular.Schema, rows []tabular.Row) error {
	existing, existingRows, exists, err := s.load(name)
	if err != nil {
		return err
	}
	if !exists {
		existing = tabular.NewSchema()
	}

	final, grid, err := reconcile(existing, existingRows, rowSchema, rows)
	if err != nil {
		return fmt.Errorf("append %s: %w", name, err)
	}
	if exists && len(rows) == 0 && final.Equal(existing) {
		return nil
	}
	return s.writeGrid(name, final, grid)
}

// load reads the artifact. An unreadable file is reported as a warning
// and then treated as absent; the next write replaces it. Losing a
// corrupt accumulation beats wedging every future run on it.
func (s *CSVStore) load(name string) (*tabular.Schema, [][]string, bool, error) {
	f, err := os.Open(s.Path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, false, nil
		}
		return nil, nil, false, fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()

	all, err := csv.NewReader(f).ReadAll()
	if err != nil {
		s.logger.Warn("artifact unreadable, previous content will be overwritten",
			"artifact", name, "path", s.Path(name), "error", err)
		journal.Record("", journal.ActionOverwrite, name, "", 0, err.Error())
		return nil, nil, false, nil
	}
	if len(all) == 0 {
		s.logger.Warn("artifact has no header, previous content will be overwritten",
			"artifact", name, "path", s.Path(name))
		journal.Record("", journal.ActionOverwrite, name, "", 0, "no header")
		return nil, nil, false, nil
	}
	schema := tabular.NewSchema(all[0]...)
	return schema, padRows(all[1:], schema.Len()), true, nil
}

// writeGrid replaces the file contents via a temp file in the same
// directory so readers never observe a half-written artifact.
func (s *CSVStore) writeGrid(name string, schema *tabular.Schema, grid [][]string) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	tmp, err := os.CreateTemp(s.dir, name+".tmp-*")
	if err != nil {
		return fmt.Errorf("temp file for %s: %w", name, err)
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.Write(schema.Columns()); err != nil {
		tmp.Close()
		return fmt.Errorf("write header %s: %w", name, err)
	}
	for _, row := range grid {
		if err := w.Write(row); err != nil {
			tmp.Close()
			return fmt.Errorf("write row %s: %w", name, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("flush %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), s.Path(name)); err != nil {
		return fmt.Errorf("replace %s: %w", name, err)
	}
	return nil
}

// Read returns the current schema and decoded rows, for consumers that
// post-process an artifact (score recombination, status reporting).
func (s *CSVStore) Read(name string) (*tabular.Schema, []tabular.Row, error) {
	schema, raw, exists, err := s.load(name)
	if err != nil {
		return nil, nil, err
	}
	if !exists {
		return nil, nil, fmt.Errorf("artifact %s does not exist", name)
	}
	rows := make([]tabular.Row, len(raw))
	for i, r := range raw {
		row := make(tabular.Row, len(r))
		for j, cell := range r {
			row[j] = tabular.Decode(cell)
		}
		rows[i] = row
	}
	return schema, rows, nil
}
