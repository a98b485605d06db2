package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/basket/biofetch/internal/config"
)

func TestLoad_FromBiofetchHome(t *testing.T) {
	home := filepath.Join(t.TempDir(), "home")
	ic := filepath.Join(home, ".biofetch")
	if err := os.MkdirAll(ic, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	yamlContent := "log_level: debug\nservice:\n  timeout_seconds: 60\n  api_key: yaml-key\n"
	if err := os.WriteFile(filepath.Join(ic, "config.yaml"), []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("HOME", home)
	t.Setenv("BIOFETCH_HOME", "")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.HomeDir != ic {
		t.Fatalf("expected home %s got %s", ic, cfg.HomeDir)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("expected log_level=debug got %q", cfg.LogLevel)
	}
	if cfg.Service.TimeoutSeconds != 60 {
		t.Fatalf("expected timeout_seconds=60 got %d", cfg.Service.TimeoutSeconds)
	}
	if cfg.NeedsInit {
		t.Fatalf("expected NeedsInit=false when config.yaml exists")
	}
}

func TestLoad_NeedsInitWhenNoConfig(t *testing.T) {
	t.Setenv("BIOFETCH_HOME", t.TempDir())

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if !cfg.NeedsInit {
		t.Fatalf("expected NeedsInit=true when config.yaml missing")
	}
}

func TestLoad_DefaultsApplied(t *testing.T) {
	homeDir := t.TempDir()
	if err := os.WriteFile(config.ConfigPath(homeDir), []byte("{}\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("BIOFETCH_HOME", homeDir)

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Service.TimeoutSeconds != 30 {
		t.Fatalf("expected default timeout_seconds=30 got %d", cfg.Service.TimeoutSeconds)
	}
	if cfg.Service.MaxRetries != 3 {
		t.Fatalf("expected default max_retries=3 got %d", cfg.Service.MaxRetries)
	}
	if cfg.Output.Format != "csv" {
		t.Fatalf("expected default format=csv got %q", cfg.Output.Format)
	}
	if cfg.Watch.DebounceSeconds != 2 {
		t.Fatalf("expected default debounce_seconds=2 got %d", cfg.Watch.DebounceSeconds)
	}
	if got := cfg.OutputDir(); got != filepath.Join(homeDir, "artifacts") {
		t.Fatalf("unexpected default output dir %s", got)
	}
	if !cfg.Notify.OnFailure {
		t.Fatalf("expected on_failure notifications by default")
	}
}

func TestLoad_EnvOverridesConfig(t *testing.T) {
	homeDir := t.TempDir()
	yamlContent := "output:\n  dir: /from/yaml\nservice:\n  api_key: yaml-key\n"
	if err := os.WriteFile(config.ConfigPath(homeDir), []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("BIOFETCH_HOME", homeDir)
	t.Setenv("BIOFETCH_OUTPUT_DIR", "/from/env")
	t.Setenv("UMAP_API_KEY", "env-key")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Output.Dir != "/from/env" {
		t.Fatalf("expected output dir override, got %q", cfg.Output.Dir)
	}
	if cfg.Service.APIKey != "env-key" {
		t.Fatalf("expected api key override, got %q", cfg.Service.APIKey)
	}
}

func TestLoad_WorkbookFormatNormalized(t *testing.T) {
	homeDir := t.TempDir()
	if err := os.WriteFile(config.ConfigPath(homeDir), []byte("output:\n  format: XLSX\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("BIOFETCH_HOME", homeDir)

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Output.Format != "workbook" {
		t.Fatalf("expected xlsx normalized to workbook, got %q", cfg.Output.Format)
	}
	if cfg.Output.Workbook != "biofetch.xlsx" {
		t.Fatalf("expected default workbook name, got %q", cfg.Output.Workbook)
	}
}

func TestLoad_RejectsScheduleWithoutSymbols(t *testing.T) {
	homeDir := t.TempDir()
	yamlContent := "schedules:\n  - name: nightly\n    cron: \"0 2 * * *\"\n"
	if err := os.WriteFile(config.ConfigPath(homeDir), []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("BIOFETCH_HOME", homeDir)

	_, err := config.Load()
	if err == nil {
		t.Fatalf("expected error for schedule without a symbol source")
	}
	if !strings.Contains(err.Error(), "nightly") {
		t.Fatalf("expected error to name the schedule, got %v", err)
	}
}

func TestLoad_RejectsDuplicateScheduleNames(t *testing.T) {
	homeDir := t.TempDir()
	yamlContent := `schedules:
  - name: nightly
    cron: "0 2 * * *"
    symbols: [KRAS]
  - name: nightly
    cron: "0 3 * * *"
    symbols: [TP53]
`
	if err := os.WriteFile(config.ConfigPath(homeDir), []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("BIOFETCH_HOME", homeDir)

	_, err := config.Load()
	if err == nil || !strings.Contains(err.Error(), "duplicate") {
		t.Fatalf("expected duplicate schedule error, got %v", err)
	}
}

func TestLoad_RejectsScheduleWithUnknownPanel(t *testing.T) {
	homeDir := t.TempDir()
	yamlContent := `panels:
  oncogenes: [KRAS, EGFR]
schedules:
  - name: nightly
    cron: "0 2 * * *"
    panel: tumor_suppressors
`
	if err := os.WriteFile(config.ConfigPath(homeDir), []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("BIOFETCH_HOME", homeDir)

	_, err := config.Load()
	if err == nil || !strings.Contains(err.Error(), "tumor_suppressors") {
		t.Fatalf("expected unknown panel error, got %v", err)
	}
}

func TestLoad_ScheduleWithPanel(t *testing.T) {
	homeDir := t.TempDir()
	yamlContent := `panels:
  oncogenes: [KRAS, EGFR]
schedules:
  - name: nightly
    cron: "0 2 * * *"
    panel: oncogenes
    datasets: [gene_expression]
`
	if err := os.WriteFile(config.ConfigPath(homeDir), []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("BIOFETCH_HOME", homeDir)

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if len(cfg.Schedules) != 1 {
		t.Fatalf("expected 1 schedule got %d", len(cfg.Schedules))
	}
	symbols, ok := cfg.Panel("oncogenes")
	if !ok || len(symbols) != 2 || symbols[0] != "KRAS" {
		t.Fatalf("unexpected panel lookup: %v %v", symbols, ok)
	}
	if _, ok := cfg.Panel("nonexistent"); ok {
		t.Fatalf("expected missing panel to report !ok")
	}
}

func TestMappingTTL(t *testing.T) {
	cfg := config.Config{}
	if got := cfg.MappingTTL(); got != 0 {
		t.Fatalf("expected zero TTL by default, got %v", got)
	}
	cfg.Datasets.MappingTTLHours = 48
	if got := cfg.MappingTTL(); got != 48*time.Hour {
		t.Fatalf("expected 48h TTL, got %v", got)
	}
}

func TestSetAPIKey_PreservesOtherSettings(t *testing.T) {
	homeDir := t.TempDir()
	if err := os.WriteFile(config.ConfigPath(homeDir), []byte("log_level: debug\n"), 0o644); err != nil {
		t.Fatalf("write initial config: %v", err)
	}

	if err := config.SetAPIKey(homeDir, "test-key-123"); err != nil {
		t.Fatalf("SetAPIKey: %v", err)
	}

	t.Setenv("BIOFETCH_HOME", homeDir)
	t.Setenv("UMAP_API_KEY", "")
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("reload config: %v", err)
	}
	if cfg.Service.APIKey != "test-key-123" {
		t.Fatalf("expected api_key=test-key-123, got %q", cfg.Service.APIKey)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("expected log_level=debug preserved, got %q", cfg.LogLevel)
	}
}

func TestSetOutputDir_CreatesNewConfig(t *testing.T) {
	homeDir := t.TempDir()
	if err := config.SetOutputDir(homeDir, "/data/artifacts"); err != nil {
		t.Fatalf("SetOutputDir: %v", err)
	}

	data, err := os.ReadFile(config.ConfigPath(homeDir))
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	if !strings.Contains(string(data), "/data/artifacts") {
		t.Fatalf("expected output dir in config, got: %s", string(data))
	}
}

func TestFingerprint_TracksRunSettings(t *testing.T) {
	a := config.Config{HomeDir: "/tmp/biofetch"}
	b := config.Config{HomeDir: "/tmp/biofetch"}
	if a.Fingerprint() != b.Fingerprint() {
		t.Fatalf("expected identical configs to share a fingerprint")
	}
	b.Output.Dir = "/elsewhere"
	if a.Fingerprint() == b.Fingerprint() {
		t.Fatalf("expected fingerprint to change with output dir")
	}
}

func TestWriteStarter(t *testing.T) {
	homeDir := t.TempDir()
	if err := config.WriteStarter(homeDir); err != nil {
		t.Fatalf("WriteStarter: %v", err)
	}

	t.Setenv("BIOFETCH_HOME", homeDir)
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load starter config: %v", err)
	}
	if cfg.NeedsInit {
		t.Fatalf("expected NeedsInit=false after WriteStarter")
	}
	if _, ok := cfg.Panel("example"); !ok {
		t.Fatalf("expected starter config to define the example panel")
	}

	if err := config.WriteStarter(homeDir); err == nil {
		t.Fatalf("expected WriteStarter to refuse overwriting config.yaml")
	}
}
