package doctor

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/basket/biofetch/internal/artifact"
	"github.com/basket/biofetch/internal/config"
)

func TestCheckConfig(t *testing.T) {
	if got := checkConfig(context.Background(), nil); got.Status != StatusFail {
		t.Fatalf("expected FAIL for nil config, got %s", got.Status)
	}

	needsInit := &config.Config{HomeDir: "/tmp/biofetch", NeedsInit: true}
	if got := checkConfig(context.Background(), needsInit); got.Status != StatusWarn {
		t.Fatalf("expected WARN when config.yaml missing, got %s", got.Status)
	}

	loaded := &config.Config{HomeDir: "/tmp/biofetch"}
	if got := checkConfig(context.Background(), loaded); got.Status != StatusPass {
		t.Fatalf("expected PASS for loaded config, got %s", got.Status)
	}
}

func TestCheckAPIKey(t *testing.T) {
	cfg := &config.Config{}
	if got := checkAPIKey(context.Background(), cfg); got.Status != StatusWarn {
		t.Fatalf("expected WARN without api key, got %s", got.Status)
	}
	cfg.Service.APIKey = "secret"
	if got := checkAPIKey(context.Background(), cfg); got.Status != StatusPass {
		t.Fatalf("expected PASS with api key, got %s", got.Status)
	}
}

func TestCheckLedger_FreshHome(t *testing.T) {
	cfg := &config.Config{HomeDir: t.TempDir()}
	got := checkLedger(context.Background(), cfg)
	if got.Status != StatusPass {
		t.Fatalf("expected PASS for fresh ledger, got %s (%s)", got.Status, got.Message)
	}
}

func TestCheckOutputDir(t *testing.T) {
	cfg := &config.Config{HomeDir: t.TempDir()}
	got := checkOutputDir(context.Background(), cfg)
	if got.Status != StatusPass {
		t.Fatalf("expected PASS for writable output dir, got %s (%s)", got.Status, got.Message)
	}
}

func TestCheckArtifacts_EmptyDir(t *testing.T) {
	cfg := &config.Config{HomeDir: t.TempDir()}
	got := checkArtifacts(context.Background(), cfg)
	if got.Status != StatusPass {
		t.Fatalf("expected PASS for empty artifact dir, got %s (%s)", got.Status, got.Message)
	}
}

func TestCheckArtifacts_FlagsUnreadable(t *testing.T) {
	cfg := &config.Config{HomeDir: t.TempDir()}
	dir := cfg.OutputDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	readable := artifact.AllNames()[0]
	if err := os.WriteFile(filepath.Join(dir, readable), []byte("gene_symbol\nKRAS\n"), 0o644); err != nil {
		t.Fatalf("write readable artifact: %v", err)
	}
	corrupt := artifact.AllNames()[1]
	if err := os.WriteFile(filepath.Join(dir, corrupt), []byte("\"unterminated\n"), 0o644); err != nil {
		t.Fatalf("write corrupt artifact: %v", err)
	}

	got := checkArtifacts(context.Background(), cfg)
	if got.Status != StatusWarn {
		t.Fatalf("expected WARN with a corrupt artifact, got %s (%s)", got.Status, got.Message)
	}
}

func TestCheckArtifacts_WorkbookFormat(t *testing.T) {
	cfg := &config.Config{HomeDir: t.TempDir()}
	cfg.Output.Format = "workbook"
	cfg.Output.Workbook = "biofetch.xlsx"

	got := checkArtifacts(context.Background(), cfg)
	if got.Status != StatusPass {
		t.Fatalf("expected PASS for absent workbook, got %s (%s)", got.Status, got.Message)
	}
}

func TestCheckStringDB(t *testing.T) {
	cfg := &config.Config{}
	if got := checkStringDB(context.Background(), cfg); got.Status != StatusSkip {
		t.Fatalf("expected SKIP when unconfigured, got %s", got.Status)
	}

	cfg.StringDB.LinksPath = filepath.Join(t.TempDir(), "absent.txt")
	if got := checkStringDB(context.Background(), cfg); got.Status != StatusWarn {
		t.Fatalf("expected WARN for missing links file, got %s", got.Status)
	}

	links := filepath.Join(t.TempDir(), "links.txt")
	if err := os.WriteFile(links, []byte("protein1 protein2\n"), 0o644); err != nil {
		t.Fatalf("write links: %v", err)
	}
	cfg.StringDB.LinksPath = links
	if got := checkStringDB(context.Background(), cfg); got.Status != StatusPass {
		t.Fatalf("expected PASS for present files, got %s", got.Status)
	}
}

func TestCheckNetwork_DefaultService(t *testing.T) {
	cfg := &config.Config{}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	result := checkNetwork(ctx, cfg)
	// DNS lookup should succeed for the default service endpoint.
	if result.Status != StatusPass {
		t.Logf("network check result: %+v", result)
		// Allow FAIL in CI/offline environments.
		if result.Status != StatusFail {
			t.Fatalf("expected PASS or FAIL, got %s", result.Status)
		}
	}
	if result.Name != "Network" {
		t.Fatalf("expected name Network, got %s", result.Name)
	}
}

func TestCheckNetwork_NilConfig(t *testing.T) {
	result := checkNetwork(context.Background(), nil)
	if result.Status != StatusSkip {
		t.Fatalf("expected SKIP for nil config, got %s", result.Status)
	}
}

func TestCheckNetwork_InvalidURL(t *testing.T) {
	cfg := &config.Config{}
	cfg.Service.BaseURL = "not-a-url"

	result := checkNetwork(context.Background(), cfg)
	if result.Status != StatusFail {
		t.Fatalf("expected FAIL for URL without a host, got %s", result.Status)
	}
}

func TestCheckNetwork_CanceledContext(t *testing.T) {
	cfg := &config.Config{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := checkNetwork(ctx, cfg)
	if result.Status != StatusFail {
		t.Fatalf("expected FAIL for canceled context, got %s", result.Status)
	}
}

func TestRun_CollectsAllChecks(t *testing.T) {
	cfg := &config.Config{HomeDir: t.TempDir()}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	d := Run(ctx, cfg, "test")
	if len(d.Results) != 7 {
		t.Fatalf("expected 7 check results, got %d", len(d.Results))
	}
	if d.System.OS == "" || d.System.Go == "" {
		t.Fatalf("expected system info to be populated: %+v", d.System)
	}
	for _, r := range d.Results {
		if r.Name == "" || r.Status == "" {
			t.Fatalf("check missing name or status: %+v", r)
		}
	}
}
