package main

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/basket/biofetch/internal/config"
)

func TestSplitList(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"depmap", []string{"depmap"}},
		{"depmap, umap", []string{"depmap", "umap"}},
		{" , depmap ,, ", []string{"depmap"}},
	}
	for _, tt := range tests {
		if got := splitList(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("splitList(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestDedupeSymbols(t *testing.T) {
	got := dedupeSymbols([]string{"KRAS", " TP53 ", "", "KRAS", "TP53"})
	want := []string{"KRAS", "TP53"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("dedupeSymbols = %v, want %v", got, want)
	}
}

func TestShortID(t *testing.T) {
	if got := shortID("3f2a9c1e-0000-4000-8000-000000000000"); got != "3f2a9c1e" {
		t.Errorf("shortID = %q, want 3f2a9c1e", got)
	}
	if got := shortID("plain"); got != "plain" {
		t.Errorf("shortID = %q, want plain", got)
	}
}

func TestGatherSymbols_CombinesSources(t *testing.T) {
	dir := t.TempDir()
	symbolsFile := filepath.Join(dir, "symbols.txt")
	if err := os.WriteFile(symbolsFile, []byte("EGFR\nKRAS # already queued\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := config.Config{Panels: map[string][]string{"onc": {"KRAS", "TP53"}}}

	got, err := gatherSymbols(cfg, []string{"TP53"}, "onc", symbolsFile, "")
	if err != nil {
		t.Fatal(err)
	}
	// Args first, then panel, then file, first occurrence wins.
	want := []string{"TP53", "KRAS", "EGFR"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("gatherSymbols = %v, want %v", got, want)
	}
}

func TestGatherSymbols_UnknownPanel(t *testing.T) {
	if _, err := gatherSymbols(config.Config{}, nil, "nope", "", ""); err == nil {
		t.Fatal("expected error for unknown panel")
	}
}

func TestGatherSymbols_MissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.txt")
	if _, err := gatherSymbols(config.Config{}, nil, "", missing, ""); err == nil {
		t.Fatal("expected error for missing symbols file")
	}
}

func TestRunFetchCommand_NoSymbols(t *testing.T) {
	t.Setenv("BIOFETCH_HOME", t.TempDir())

	if code := runFetchCommand(context.Background(), nil); code != 2 {
		t.Errorf("exit code = %d, want 2", code)
	}
}

func TestRunFetchCommand_BadFlag(t *testing.T) {
	t.Setenv("BIOFETCH_HOME", t.TempDir())

	if code := runFetchCommand(context.Background(), []string{"-nope"}); code != 2 {
		t.Errorf("exit code = %d, want 2", code)
	}
}

func TestRunFetchCommand_UnknownPanel(t *testing.T) {
	t.Setenv("BIOFETCH_HOME", t.TempDir())

	if code := runFetchCommand(context.Background(), []string{"-panel", "nope"}); code != 2 {
		t.Errorf("exit code = %d, want 2", code)
	}
}

func TestRunFetchCommand_UnknownCategory(t *testing.T) {
	t.Setenv("BIOFETCH_HOME", t.TempDir())

	args := []string{"-datasets", "not_a_category", "KRAS"}
	if code := runFetchCommand(context.Background(), args); code != 2 {
		t.Errorf("exit code = %d, want 2", code)
	}
}
