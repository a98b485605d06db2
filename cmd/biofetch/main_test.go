package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/basket/biofetch/internal/artifact"
	"github.com/basket/biofetch/internal/config"
)

func TestLoadDotEnv_SetsUnsetKeys(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	content := `
# comment
BIOFETCH_TEST_FRESH=from-file
BIOFETCH_TEST_KEPT=from-file
no_equals_line
=empty-key
`
	if err := os.WriteFile(envFile, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("BIOFETCH_TEST_FRESH", "")
	t.Setenv("BIOFETCH_TEST_KEPT", "from-env")

	loadDotEnv(envFile)

	if got := os.Getenv("BIOFETCH_TEST_FRESH"); got != "from-file" {
		t.Errorf("BIOFETCH_TEST_FRESH = %q, want from-file", got)
	}
	if got := os.Getenv("BIOFETCH_TEST_KEPT"); got != "from-env" {
		t.Errorf("BIOFETCH_TEST_KEPT = %q, want from-env (env wins)", got)
	}
}

func TestLoadDotEnv_MissingFile(t *testing.T) {
	// Must be a no-op, not a crash.
	loadDotEnv(filepath.Join(t.TempDir(), "nope", ".env"))
}

func TestNewArtifactStore_CSVDefault(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Config{}
	cfg.Output.Dir = dir
	cfg.Output.Format = "csv"

	store, path, err := newArtifactStore(cfg, "", nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := store.(*artifact.CSVStore); !ok {
		t.Fatalf("store is %T, want *artifact.CSVStore", store)
	}
	if path != dir {
		t.Errorf("path = %q, want %q", path, dir)
	}
}

func TestNewArtifactStore_WorkbookFormat(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Config{}
	cfg.Output.Dir = dir
	cfg.Output.Format = "workbook"
	cfg.Output.Workbook = "biofetch.xlsx"

	store, path, err := newArtifactStore(cfg, "", nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := store.(*artifact.WorkbookStore); !ok {
		t.Fatalf("store is %T, want *artifact.WorkbookStore", store)
	}
	if want := filepath.Join(dir, "biofetch.xlsx"); path != want {
		t.Errorf("path = %q, want %q", path, want)
	}
}

func TestNewArtifactStore_OverrideSelectsFormat(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Config{}
	cfg.Output.Dir = dir
	cfg.Output.Format = "csv"

	// An .xlsx override flips to the workbook store regardless of config.
	wbPath := filepath.Join(dir, "out", "results.XLSX")
	store, path, err := newArtifactStore(cfg, wbPath, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := store.(*artifact.WorkbookStore); !ok {
		t.Fatalf("store is %T, want *artifact.WorkbookStore", store)
	}
	if path != wbPath {
		t.Errorf("path = %q, want %q", path, wbPath)
	}

	// A directory override keeps CSV and creates the directory.
	csvDir := filepath.Join(dir, "elsewhere")
	store, path, err = newArtifactStore(cfg, csvDir, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := store.(*artifact.CSVStore); !ok {
		t.Fatalf("store is %T, want *artifact.CSVStore", store)
	}
	if path != csvDir {
		t.Errorf("path = %q, want %q", path, csvDir)
	}
	if _, err := os.Stat(csvDir); err != nil {
		t.Errorf("override dir not created: %v", err)
	}
}
