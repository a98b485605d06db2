package journal

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRecordWritesJournalEntry(t *testing.T) {
	home := t.TempDir()
	if err := Init(home); err != nil {
		t.Fatalf("init journal: %v", err)
	}
	t.Cleanup(func() { _ = Close() })

	Record("run-1", ActionAppend, "gene_expression.csv", "TP53", 42, "")
	Record("run-1", ActionOverwrite, "cell_line_proteomics.csv", "TP53", 0, "artifact unreadable")

	path := filepath.Join(home, "logs", "journal.jsonl")
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read journal file: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	if len(lines) < 2 {
		t.Fatalf("expected at least two journal entries, got %d", len(lines))
	}
	var first map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("unmarshal first journal entry: %v", err)
	}
	if first["action"] != ActionAppend {
		t.Fatalf("expected append action, got %#v", first["action"])
	}
	if first["artifact"] != "gene_expression.csv" {
		t.Fatalf("expected artifact gene_expression.csv, got %#v", first["artifact"])
	}
	if first["rows"] != float64(42) {
		t.Fatalf("expected 42 rows, got %#v", first["rows"])
	}
	if OverwriteCount() < 1 {
		t.Fatalf("expected overwrite count >= 1, got %d", OverwriteCount())
	}
}

func TestJournalAppendOnly(t *testing.T) {
	home := t.TempDir()
	if err := Init(home); err != nil {
		t.Fatalf("init journal: %v", err)
	}
	t.Cleanup(func() { _ = Close() })

	// Write two entries.
	Record("run-1", ActionEnsure, "depmap.csv", "TP53", 0, "")
	Record("run-1", ActionAppend, "depmap.csv", "TP53", 7, "")

	path := filepath.Join(home, "logs", "journal.jsonl")

	// Capture file size after writes.
	info1, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat journal file: %v", err)
	}
	size1 := info1.Size()

	// Write a third entry.
	Record("run-2", ActionRunFinished, "", "", 0, "status=SUCCEEDED")

	// File size must grow (append-only).
	info2, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat journal file after append: %v", err)
	}
	size2 := info2.Size()
	if size2 <= size1 {
		t.Fatalf("expected file to grow (append-only), size before=%d after=%d", size1, size2)
	}

	// Verify all three entries are present and in order.
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read journal file: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	if len(lines) < 3 {
		t.Fatalf("expected at least 3 lines, got %d", len(lines))
	}

	// Verify each line is valid JSON with expected fields.
	for i, line := range lines {
		var e map[string]any
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			t.Fatalf("line %d is not valid JSON: %v", i, err)
		}
		if _, ok := e["timestamp"]; !ok {
			t.Fatalf("line %d missing timestamp", i)
		}
		if _, ok := e["action"]; !ok {
			t.Fatalf("line %d missing action", i)
		}
	}
}

func TestRecordRedactsDetail(t *testing.T) {
	home := t.TempDir()
	if err := Init(home); err != nil {
		t.Fatalf("init journal: %v", err)
	}
	t.Cleanup(func() { _ = Close() })

	Record("run-3", ActionRunFinished, "", "", 0, "request failed: Bearer abc123def456ghi789jkl0")

	path := filepath.Join(home, "logs", "journal.jsonl")
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read journal file: %v", err)
	}
	if strings.Contains(string(raw), "abc123def456ghi789jkl0") {
		t.Fatal("journal leaked a bearer token")
	}
	if !strings.Contains(string(raw), "[REDACTED]") {
		t.Fatal("expected redaction placeholder in journal")
	}
}
