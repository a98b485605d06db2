package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

const scheduleYAML = `log_level: info
panels:
  onc:
    - KRAS
schedules:
  - name: nightly
    cron: "0 2 * * *"
    panel: onc
`

func TestRunScheduleCommand_NoSchedules(t *testing.T) {
	t.Setenv("BIOFETCH_HOME", t.TempDir())

	if code := runScheduleCommand(context.Background(), nil); code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
}

func TestRunScheduleCommand_ExtraArgs(t *testing.T) {
	t.Setenv("BIOFETCH_HOME", t.TempDir())

	if code := runScheduleCommand(context.Background(), []string{"stray"}); code != 2 {
		t.Errorf("exit code = %d, want 2", code)
	}
}

func TestRunScheduleCommand_List(t *testing.T) {
	home := t.TempDir()
	t.Setenv("BIOFETCH_HOME", home)
	if err := os.WriteFile(filepath.Join(home, "config.yaml"), []byte(scheduleYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	if code := runScheduleCommand(context.Background(), []string{"-list"}); code != 0 {
		t.Errorf("exit code = %d, want 0", code)
	}
}

func TestRunScheduleCommand_OnceUnknownName(t *testing.T) {
	home := t.TempDir()
	t.Setenv("BIOFETCH_HOME", home)
	if err := os.WriteFile(filepath.Join(home, "config.yaml"), []byte(scheduleYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	if code := runScheduleCommand(context.Background(), []string{"-once", "nope"}); code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
}
