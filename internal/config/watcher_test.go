package config_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/basket/biofetch/internal/config"
)

func TestWatcher_ReportsConfigRewrite(t *testing.T) {
	home := t.TempDir()
	path := config.ConfigPath(home)
	if err := os.WriteFile(path, []byte("log_level: info\n"), 0o644); err != nil {
		t.Fatalf("seed config: %v", err)
	}

	w := config.NewWatcher(home, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// Notification readiness varies by platform, so keep rewriting the
	// file until the watcher reports it or the deadline passes.
	timeout := time.After(3 * time.Second)
	retry := time.NewTicker(50 * time.Millisecond)
	defer retry.Stop()
	body := []byte("log_level: debug\n")
	if err := os.WriteFile(path, body, 0o644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}
	for {
		select {
		case ev := <-w.Events():
			if got := filepath.Base(ev.Path); got != "config.yaml" {
				t.Fatalf("event path = %s, want config.yaml", ev.Path)
			}
			return
		case <-retry.C:
			_ = os.WriteFile(path, body, 0o644)
		case <-timeout:
			t.Fatal("no reload event within 3s")
		}
	}
}

func TestWatcher_IgnoresUnrelatedFiles(t *testing.T) {
	home := t.TempDir()
	if err := os.WriteFile(config.ConfigPath(home), []byte("log_level: info\n"), 0o644); err != nil {
		t.Fatalf("seed config: %v", err)
	}

	w := config.NewWatcher(home, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	other := filepath.Join(home, "notes.txt")
	for i := 0; i < 5; i++ {
		if err := os.WriteFile(other, []byte("scratch\n"), 0o644); err != nil {
			t.Fatalf("write unrelated file: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	select {
	case ev := <-w.Events():
		t.Fatalf("unexpected event for %s", ev.Path)
	case <-time.After(300 * time.Millisecond):
	}
}
