package artifact

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/basket/biofetch/internal/tabular"
)

func testWorkbookStore(t *testing.T) *WorkbookStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "biofetch.xlsx")
	return NewWorkbookStore(path, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func sheetRows(t *testing.T, path, sheet string) [][]string {
	t.Helper()
	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows(sheet)
	if err != nil {
		t.Fatalf("get rows: %v", err)
	}
	return rows
}

func TestWorkbookStore_EnsureCreatesSheetShell(t *testing.T) {
	s := testWorkbookStore(t)

	schema, err := s.Ensure("m.csv", tabular.NewSchema("Gene"))
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if got := schema.Columns(); !reflect.DeepEqual(got, []string{"Gene"}) {
		t.Fatalf("schema = %v, want [Gene]", got)
	}

	rows := sheetRows(t, s.Path(), "m")
	if len(rows) != 1 || !reflect.DeepEqual(rows[0], []string{"Gene"}) {
		t.Fatalf("sheet = %v, want header only", rows)
	}
}

func TestWorkbookStore_ClaimsDefaultSheet(t *testing.T) {
	s := testWorkbookStore(t)

	if _, err := s.Ensure(WCEData, tabular.NewSchema("Gene")); err != nil {
		t.Fatalf("ensure: %v", err)
	}

	f, err := excelize.OpenFile(s.Path())
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()
	if got := f.GetSheetList(); !reflect.DeepEqual(got, []string{"wce_data"}) {
		t.Fatalf("sheets = %v, want [wce_data] with no leftover Sheet1", got)
	}
}

func TestWorkbookStore_SheetsAreIndependent(t *testing.T) {
	s := testWorkbookStore(t)

	if err := s.Append(WCEData, tabular.NewSchema("Gene", "Cell Line"), []tabular.Row{{"EGFR", "A549"}}); err != nil {
		t.Fatalf("append wce: %v", err)
	}
	if err := s.Append(UMapData, tabular.NewSchema("Replicate Set ID"), []tabular.Row{{int64(7)}}); err != nil {
		t.Fatalf("append umap: %v", err)
	}
	// Growing one sheet must not disturb the other.
	if err := s.Append(WCEData, tabular.NewSchema("Gene", "Title"), []tabular.Row{{"KRAS", "run2"}}); err != nil {
		t.Fatalf("append wce 2: %v", err)
	}

	wce := sheetRows(t, s.Path(), "wce_data")
	want := [][]string{
		{"Gene", "Cell Line", "Title"},
		{"EGFR", "A549"},
		{"KRAS", "", "run2"},
	}
	if !reflect.DeepEqual(wce, want) {
		t.Fatalf("wce sheet = %v, want %v", wce, want)
	}

	umap := sheetRows(t, s.Path(), "umap_data")
	if len(umap) != 2 || umap[1][0] != "7" {
		t.Fatalf("umap sheet = %v", umap)
	}
}

func TestWorkbookStore_AppendOnlyColumnOrder(t *testing.T) {
	s := testWorkbookStore(t)

	if err := s.Append("m.csv", tabular.NewSchema("Gene", "A", "C"), []tabular.Row{{"X", 1.0, 2.0}}); err != nil {
		t.Fatalf("append 1: %v", err)
	}
	if err := s.Append("m.csv", tabular.NewSchema("Gene", "B"), []tabular.Row{{"Y", 3.0}}); err != nil {
		t.Fatalf("append 2: %v", err)
	}

	rows := sheetRows(t, s.Path(), "m")
	if !reflect.DeepEqual(rows[0], []string{"Gene", "A", "C", "B"}) {
		t.Fatalf("header = %v, want [Gene A C B]", rows[0])
	}
	if rows[2][0] != "Y" || rows[2][3] != "3" {
		t.Fatalf("row = %v", rows[2])
	}
}

func TestWorkbookStore_EmptyAppendMigratesSchema(t *testing.T) {
	s := testWorkbookStore(t)

	if err := s.Append("m.csv", tabular.NewSchema("Gene"), []tabular.Row{{"X"}}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.Append("m.csv", tabular.NewSchema("Gene", "New"), nil); err != nil {
		t.Fatalf("empty append: %v", err)
	}

	rows := sheetRows(t, s.Path(), "m")
	if !reflect.DeepEqual(rows[0], []string{"Gene", "New"}) {
		t.Fatalf("header = %v, want [Gene New]", rows[0])
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want header plus one", len(rows))
	}
}

func TestWorkbookStore_CorruptWorkbookOverwritten(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "biofetch.xlsx")
	if err := os.WriteFile(path, []byte("not a zip archive"), 0o644); err != nil {
		t.Fatalf("seed corrupt workbook: %v", err)
	}
	var buf strings.Builder
	s := NewWorkbookStore(path, slog.New(slog.NewTextHandler(&buf, nil)))

	schema, err := s.Ensure("m.csv", tabular.NewSchema("Gene"))
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if got := schema.Columns(); !reflect.DeepEqual(got, []string{"Gene"}) {
		t.Fatalf("schema = %v, want [Gene]", got)
	}
	if !strings.Contains(buf.String(), "unreadable") {
		t.Fatalf("expected a warning, got log: %s", buf.String())
	}

	rows := sheetRows(t, path, "m")
	if len(rows) != 1 {
		t.Fatalf("sheet = %v, want fresh shell", rows)
	}
}
