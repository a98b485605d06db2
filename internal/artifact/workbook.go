package artifact

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/basket/biofetch/internal/journal"
	"github.com/basket/biofetch/internal/tabular"
)

var _ Store = (*WorkbookStore)(nil)

// WorkbookStore keeps every artifact as a named sheet of one xlsx
// workbook. Reconciliation matches the CSV store; a rewritten sheet
// only ever grows, so cells are overwritten in place and the workbook
// is saved through a temp file.
type WorkbookStore struct {
	path   string
	logger *slog.Logger
}

func NewWorkbookStore(path string, logger *slog.Logger) *WorkbookStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkbookStore{path: path, logger: logger.With("store", "workbook")}
}

func (s *WorkbookStore) Path() string { return s.path }

func (s *WorkbookStore) Ensure(name string, initial *tabular.Schema) (*tabular.Schema, error) {
	f, fresh := s.open()
	defer f.Close()

	schema, _, exists := s.loadSheet(f, name)
	if exists {
		return schema, nil
	}
	if err := s.writeSheet(f, fresh, name, initial, nil); err != nil {
		return nil, err
	}
	return initial.Clone(), nil
}

func (s *WorkbookStore) Append(name string, rowSchema *tabular.Schema, rows []tabular.Row) error {
	f, fresh := s.open()
	defer f.Close()

	existing, existingRows, exists := s.loadSheet(f, name)
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
	return s.writeSheet(f, fresh, name, final, grid)
}

// open returns the workbook, creating a fresh one when the file is
// absent. An unreadable workbook is reported and replaced wholesale,
// which drops every sheet in it, not just the artifact being written.
func (s *WorkbookStore) open() (f *excelize.File, fresh bool) {
	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		return excelize.NewFile(), true
	}
	f, err := excelize.OpenFile(s.path)
	if err != nil {
		s.logger.Warn("workbook unreadable, all sheets will be overwritten",
			"path", s.path, "error", err)
		journal.Record("", journal.ActionOverwrite, filepath.Base(s.path), "", 0, err.Error())
		return excelize.NewFile(), true
	}
	return f, false
}

func (s *WorkbookStore) loadSheet(f *excelize.File, name string) (*tabular.Schema, [][]string, bool) {
	sheet := SheetName(name)
	if idx, _ := f.GetSheetIndex(sheet); idx < 0 {
		return nil, nil, false
	}
	all, err := f.GetRows(sheet)
	if err != nil || len(all) == 0 {
		if err != nil {
			s.logger.Warn("sheet unreadable, previous content will be overwritten",
				"artifact", name, "sheet", sheet, "error", err)
			journal.Record("", journal.ActionOverwrite, name, "", 0, err.Error())
		}
		return nil, nil, false
	}
	schema := tabular.NewSchema(all[0]...)
	return schema, padRows(all[1:], schema.Len()), true
}

func (s *WorkbookStore) writeSheet(f *excelize.File, fresh bool, name string, schema *tabular.Schema, grid [][]string) error {
	sheet := SheetName(name)
	if idx, _ := f.GetSheetIndex(sheet); idx < 0 {
		if fresh && len(f.GetSheetList()) == 1 {
			// A new workbook carries a default sheet; claim it rather
			// than leaving an empty Sheet1 behind.
			if err := f.SetSheetName(f.GetSheetList()[0], sheet); err != nil {
				return fmt.Errorf("name sheet %s: %w", sheet, err)
			}
		} else if _, err := f.NewSheet(sheet); err != nil {
			return fmt.Errorf("create sheet %s: %w", sheet, err)
		}
	}

	header := schema.Columns()
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write header %s: %w", sheet, err)
	}
	for i, row := range grid {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("cell name: %w", err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d of %s: %w", i, sheet, err)
		}
	}
	return s.save(f)
}

// save writes the workbook next to its final path and renames it in,
// so a crash mid-save cannot leave a torn xlsx behind.
func (s *WorkbookStore) save(f *excelize.File) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	// SaveAs rejects paths without a workbook extension, so the temp
	// name has to end in .xlsx.
	tmp, err := os.CreateTemp(dir, ".workbook-*.xlsx")
	if err != nil {
		return fmt.Errorf("temp workbook: %w", err)
	}
	tmpName := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpName)

	if err := f.SaveAs(tmpName); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace workbook: %w", err)
	}
	return nil
}
