package telemetry

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func readLogLines(t *testing.T, home string) []map[string]any {
	t.Helper()
	raw, err := os.ReadFile(filepath.Join(home, "logs", "system.jsonl"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var entries []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(string(raw)), "\n") {
		if line == "" {
			continue
		}
		var e map[string]any
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			t.Fatalf("log line is not JSON: %v\n%s", err, line)
		}
		entries = append(entries, e)
	}
	return entries
}

func TestNewLogger_EmitsStructuredSchema(t *testing.T) {
	home := t.TempDir()
	logger, closer, err := NewLogger(home, "debug", true)
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	defer closer.Close()

	logger.Info("run started", "run_id", "run-1", "symbols", 3)

	entries := readLogLines(t, home)
	if len(entries) != 1 {
		t.Fatalf("expected one log entry, got %d", len(entries))
	}
	entry := entries[0]
	for _, key := range []string{"timestamp", "level", "msg", "component", "trace_id"} {
		if _, ok := entry[key]; !ok {
			t.Fatalf("missing key %q in log entry: %#v", key, entry)
		}
	}
	if entry["component"] != "runtime" {
		t.Fatalf("component = %#v, want runtime", entry["component"])
	}
	if entry["trace_id"] != "-" {
		t.Fatalf("trace_id = %#v, want -", entry["trace_id"])
	}
	if entry["run_id"] != "run-1" {
		t.Fatalf("run_id = %#v, want run-1", entry["run_id"])
	}
	if _, ok := entry["time"]; ok {
		t.Fatal("expected the time key to be renamed to timestamp")
	}
}

func TestNewLogger_LevelFiltersDebug(t *testing.T) {
	home := t.TempDir()
	logger, closer, err := NewLogger(home, "info", true)
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	defer closer.Close()

	logger.Debug("noise")
	logger.Info("signal")

	entries := readLogLines(t, home)
	if len(entries) != 1 {
		t.Fatalf("expected only the info entry, got %d entries", len(entries))
	}
	if entries[0]["msg"] != "signal" {
		t.Fatalf("msg = %#v, want signal", entries[0]["msg"])
	}
}

func TestNewLogger_RedactsSensitiveFields(t *testing.T) {
	home := t.TempDir()
	logger, closer, err := NewLogger(home, "info", true)
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	defer closer.Close()

	logger.Warn("service call failed",
		"api_key", "abc123",
		"detail", "Authorization: Bearer super-secret-token",
	)

	entries := readLogLines(t, home)
	if len(entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry["api_key"] != "[REDACTED]" {
		t.Fatalf("api_key = %#v, want [REDACTED]", entry["api_key"])
	}
	if entry["detail"] != "[REDACTED]" {
		t.Fatalf("detail = %#v, want [REDACTED]", entry["detail"])
	}
}
