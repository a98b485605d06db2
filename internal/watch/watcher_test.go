package watch_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/basket/biofetch/internal/bus"
	"github.com/basket/biofetch/internal/watch"
)

func TestReadSymbols(t *testing.T) {
	path := filepath.Join(t.TempDir(), "symbols.txt")
	content := `# oncogene panel
KRAS, EGFR
TP53
KRAS # already listed

STK11	BRAF
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write symbols: %v", err)
	}

	symbols, err := watch.ReadSymbols(path)
	if err != nil {
		t.Fatalf("ReadSymbols: %v", err)
	}
	want := []string{"KRAS", "EGFR", "TP53", "STK11", "BRAF"}
	if len(symbols) != len(want) {
		t.Fatalf("expected %d symbols got %v", len(want), symbols)
	}
	for i, s := range want {
		if symbols[i] != s {
			t.Fatalf("symbols[%d] = %q, want %q", i, symbols[i], s)
		}
	}
}

func TestReadSymbols_MissingFile(t *testing.T) {
	if _, err := watch.ReadSymbols(filepath.Join(t.TempDir(), "absent.txt")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestNewWatcher_RequiresPath(t *testing.T) {
	if _, err := watch.NewWatcher(watch.Config{}); err == nil {
		t.Fatalf("expected error for empty path")
	}
}

func TestWatcher_EmitsBatchOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "symbols.txt")
	if err := os.WriteFile(path, []byte("KRAS\n"), 0o644); err != nil {
		t.Fatalf("write initial symbols: %v", err)
	}

	b := bus.New()
	sub := b.Subscribe(bus.TopicWatchTriggered)
	defer b.Unsubscribe(sub)

	w, err := watch.NewWatcher(watch.Config{
		Path:     path,
		Debounce: 50 * time.Millisecond,
		Bus:      b,
	})
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("start watcher: %v", err)
	}

	// Retry the write until the watcher reports a batch, to absorb any
	// platform-specific delay in notification readiness.
	deadline := time.After(3 * time.Second)
	writeTick := time.NewTicker(100 * time.Millisecond)
	defer writeTick.Stop()

	if err := os.WriteFile(path, []byte("KRAS\nTP53\n"), 0o644); err != nil {
		t.Fatalf("write updated symbols: %v", err)
	}

	for {
		select {
		case batch := <-w.Events():
			if len(batch) != 2 || batch[0] != "KRAS" || batch[1] != "TP53" {
				t.Fatalf("unexpected batch %v", batch)
			}
			select {
			case ev := <-sub.Ch():
				we, ok := ev.Payload.(bus.WatchEvent)
				if !ok {
					t.Fatalf("unexpected payload %T", ev.Payload)
				}
				if we.Symbols != 2 {
					t.Fatalf("expected 2 symbols in event, got %d", we.Symbols)
				}
			case <-time.After(time.Second):
				t.Fatalf("no watch.triggered event published")
			}
			return
		case <-writeTick.C:
			_ = os.WriteFile(path, []byte("KRAS\nTP53\n"), 0o644)
		case <-deadline:
			t.Fatalf("timed out waiting for symbols batch")
		}
	}
}

func TestWatcher_SkipsEmptyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "symbols.txt")
	if err := os.WriteFile(path, []byte("KRAS\n"), 0o644); err != nil {
		t.Fatalf("write initial symbols: %v", err)
	}

	w, err := watch.NewWatcher(watch.Config{Path: path, Debounce: 30 * time.Millisecond})
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("start watcher: %v", err)
	}

	if err := os.WriteFile(path, []byte("# nothing left\n"), 0o644); err != nil {
		t.Fatalf("truncate symbols: %v", err)
	}

	select {
	case batch := <-w.Events():
		t.Fatalf("expected no batch for empty file, got %v", batch)
	case <-time.After(500 * time.Millisecond):
	}
}
