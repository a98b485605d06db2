package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func seedDoctorHome(t *testing.T) {
	t.Helper()
	home := t.TempDir()
	t.Setenv("BIOFETCH_HOME", home)
	cfg := filepath.Join(home, "config.yaml")
	if err := os.WriteFile(cfg, []byte("log_level: info\n"), 0o644); err != nil {
		t.Fatalf("seed config: %v", err)
	}
}

func TestRunDoctorCommand_TextReport(t *testing.T) {
	seedDoctorHome(t)

	// Network and API key checks depend on the environment, so 0 and 1
	// are both acceptable; 2 would mean argument handling broke.
	if code := runDoctorCommand(context.Background(), nil); code == 2 {
		t.Fatal("unexpected exit code 2")
	}
}

func TestRunDoctorCommand_JSONFlagForms(t *testing.T) {
	for _, flag := range []string{"-json", "--json"} {
		seedDoctorHome(t)
		if code := runDoctorCommand(context.Background(), []string{flag}); code != 0 {
			t.Fatalf("%s: exit code = %d, want 0", flag, code)
		}
	}
}

func TestRunDoctorCommand_MissingConfig(t *testing.T) {
	t.Setenv("BIOFETCH_HOME", t.TempDir())

	// Doctor diagnoses the absent config rather than crashing.
	if code := runDoctorCommand(context.Background(), nil); code == 2 {
		t.Fatal("unexpected exit code 2")
	}
}
