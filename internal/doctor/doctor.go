// Package doctor runs environment diagnostics for the doctor command.
package doctor

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/basket/biofetch/internal/artifact"
	"github.com/basket/biofetch/internal/config"
	"github.com/basket/biofetch/internal/ledger"
	"github.com/basket/biofetch/internal/umap"
)

// Check outcomes.
const (
	StatusPass = "PASS"
	StatusFail = "FAIL"
	StatusWarn = "WARN"
	StatusSkip = "SKIP"
)

type CheckResult struct {
	Name    string `json:"name"`
	Status  string `json:"status"` // StatusPass, StatusFail, StatusWarn, or StatusSkip
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

type Diagnosis struct {
	Timestamp time.Time     `json:"timestamp"`
	System    SystemInfo    `json:"system"`
	Results   []CheckResult `json:"results"`
}

type SystemInfo struct {
	OS      string `json:"os"`
	Arch    string `json:"arch"`
	Go      string `json:"go_version"`
	Version string `json:"version"`
}

// Run executes all diagnostic checks.
func Run(ctx context.Context, cfg *config.Config, version string) Diagnosis {
	d := Diagnosis{
		Timestamp: time.Now().UTC(),
		System: SystemInfo{
			OS:      runtime.GOOS,
			Arch:    runtime.GOARCH,
			Go:      runtime.Version(),
			Version: version,
		},
	}

	checks := []func(context.Context, *config.Config) CheckResult{
		checkConfig,
		checkAPIKey,
		checkLedger,
		checkOutputDir,
		checkArtifacts,
		checkStringDB,
		checkNetwork,
	}

	for _, check := range checks {
		d.Results = append(d.Results, check(ctx, cfg))
	}

	return d
}

func checkConfig(ctx context.Context, cfg *config.Config) CheckResult {
	if cfg == nil {
		return CheckResult{Name: "Config", Status: StatusFail, Message: "Configuration not loaded"}
	}
	if cfg.NeedsInit {
		return CheckResult{
			Name:    "Config",
			Status:  StatusWarn,
			Message: "No config.yaml found, defaults in effect",
			Detail:  "Run `biofetch init` to create one",
		}
	}
	return CheckResult{Name: "Config", Status: StatusPass, Message: fmt.Sprintf("Loaded from %s", cfg.HomeDir)}
}

func checkAPIKey(_ context.Context, cfg *config.Config) CheckResult {
	if cfg == nil {
		return CheckResult{Name: "API Key", Status: StatusSkip, Message: "Config missing"}
	}
	if cfg.Service.APIKey != "" {
		return CheckResult{Name: "API Key", Status: StatusPass, Message: "Service API key configured"}
	}
	return CheckResult{
		Name:    "API Key",
		Status:  StatusWarn,
		Message: "No service API key configured",
		Detail:  "Set UMAP_API_KEY or run `biofetch config set-key`",
	}
}

func checkLedger(ctx context.Context, cfg *config.Config) CheckResult {
	if cfg == nil {
		return CheckResult{Name: "Ledger", Status: StatusSkip, Message: "Config missing"}
	}

	store, err := ledger.Open(cfg.LedgerPath(), nil)
	if err != nil {
		return CheckResult{Name: "Ledger", Status: StatusFail, Message: fmt.Sprintf("Open failed: %v", err)}
	}
	defer store.Close()

	runs, err := store.ListRuns(ctx, 1)
	if err != nil {
		return CheckResult{Name: "Ledger", Status: StatusFail, Message: fmt.Sprintf("Query failed: %v", err)}
	}

	msg := "Connection and schema valid, no runs recorded yet"
	if len(runs) > 0 {
		msg = fmt.Sprintf("Connection and schema valid, last run %s (%s)", runs[0].ID, runs[0].Status)
	}
	return CheckResult{Name: "Ledger", Status: StatusPass, Message: msg}
}

func checkOutputDir(_ context.Context, cfg *config.Config) CheckResult {
	if cfg == nil {
		return CheckResult{Name: "Output Dir", Status: StatusSkip, Message: "Config missing"}
	}

	dir := cfg.OutputDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return CheckResult{Name: "Output Dir", Status: StatusFail, Message: fmt.Sprintf("Cannot create %s: %v", dir, err)}
	}
	testFile := filepath.Join(dir, ".write_test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return CheckResult{Name: "Output Dir", Status: StatusFail, Message: fmt.Sprintf("%s unwritable: %v", dir, err)}
	}
	os.Remove(testFile)

	return CheckResult{Name: "Output Dir", Status: StatusPass, Message: fmt.Sprintf("%s writable", dir)}
}

// checkArtifacts verifies that every artifact file already on disk
// still parses. An unreadable artifact would be silently rebuilt from
// scratch on the next run, losing accumulated rows.
func checkArtifacts(_ context.Context, cfg *config.Config) CheckResult {
	if cfg == nil {
		return CheckResult{Name: "Artifacts", Status: StatusSkip, Message: "Config missing"}
	}

	dir := cfg.OutputDir()
	if cfg.Output.Format == "workbook" {
		path := filepath.Join(dir, cfg.Output.Workbook)
		info, err := os.Stat(path)
		if os.IsNotExist(err) {
			return CheckResult{Name: "Artifacts", Status: StatusPass, Message: "Workbook not created yet"}
		}
		if err != nil {
			return CheckResult{Name: "Artifacts", Status: StatusFail, Message: fmt.Sprintf("Stat %s: %v", path, err)}
		}
		return CheckResult{Name: "Artifacts", Status: StatusPass, Message: fmt.Sprintf("Workbook %s (%d bytes)", path, info.Size())}
	}

	store := artifact.NewCSVStore(dir, nil)
	names := append(artifact.AllNames(), artifact.ProteinScores)

	var present int
	var unreadable []string
	for _, name := range names {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			continue
		}
		present++
		if _, _, err := store.Read(name); err != nil {
			unreadable = append(unreadable, name)
		}
	}

	if len(unreadable) > 0 {
		return CheckResult{
			Name:    "Artifacts",
			Status:  StatusWarn,
			Message: fmt.Sprintf("%d of %d present artifacts unreadable", len(unreadable), present),
			Detail:  fmt.Sprintf("%v will be rebuilt on next append", unreadable),
		}
	}
	return CheckResult{Name: "Artifacts", Status: StatusPass, Message: fmt.Sprintf("%d of %d artifacts present and readable", present, len(names))}
}

func checkStringDB(_ context.Context, cfg *config.Config) CheckResult {
	if cfg == nil {
		return CheckResult{Name: "STRING Inputs", Status: StatusSkip, Message: "Config missing"}
	}
	if cfg.StringDB.LinksPath == "" && cfg.StringDB.PairsPath == "" {
		return CheckResult{Name: "STRING Inputs", Status: StatusSkip, Message: "Not configured"}
	}

	var missing []string
	for _, path := range []string{cfg.StringDB.LinksPath, cfg.StringDB.PairsPath} {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			missing = append(missing, path)
		}
	}
	if len(missing) > 0 {
		return CheckResult{
			Name:    "STRING Inputs",
			Status:  StatusWarn,
			Message: fmt.Sprintf("%d configured input(s) missing", len(missing)),
			Detail:  fmt.Sprintf("%v", missing),
		}
	}
	return CheckResult{Name: "STRING Inputs", Status: StatusPass, Message: "Links and pairs files present"}
}

func checkNetwork(ctx context.Context, cfg *config.Config) CheckResult {
	if cfg == nil {
		return CheckResult{Name: "Network", Status: StatusSkip, Message: "Config missing"}
	}

	baseURL := cfg.Service.BaseURL
	if baseURL == "" {
		baseURL = umap.DefaultBaseURL
	}
	parsed, err := url.Parse(baseURL)
	if err != nil || parsed.Hostname() == "" {
		return CheckResult{Name: "Network", Status: StatusFail, Message: fmt.Sprintf("Invalid service URL %q", baseURL)}
	}
	host := parsed.Hostname()

	// DNS lookup with timeout.
	lookupCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	start := time.Now()
	addrs, err := net.DefaultResolver.LookupHost(lookupCtx, host)
	latency := time.Since(start)

	if err != nil {
		return CheckResult{
			Name:    "Network",
			Status:  StatusFail,
			Message: fmt.Sprintf("DNS lookup failed for %s: %v", host, err),
			Detail:  fmt.Sprintf("latency=%dms", latency.Milliseconds()),
		}
	}

	return CheckResult{
		Name:    "Network",
		Status:  StatusPass,
		Message: fmt.Sprintf("DNS resolved %s (%d addresses, %dms)", host, len(addrs), latency.Milliseconds()),
		Detail:  fmt.Sprintf("addresses=%v", addrs),
	}
}
