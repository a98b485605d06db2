package channels

import (
	"strings"
	"testing"

	"github.com/basket/biofetch/internal/bus"
)

func TestEscapeMarkdownV2(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"run-42", "run\\-42"},
		{"a.b (c)", "a\\.b \\(c\\)"},
		{"x_y*z", "x\\_y\\*z"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := escapeMarkdownV2(tc.in); got != tc.want {
			t.Errorf("escapeMarkdownV2(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestFormatRunOutcome(t *testing.T) {
	ok := formatRunOutcome(bus.RunEvent{
		RunID:    "run-1",
		Symbols:  []string{"KRAS", "TP53"},
		Datasets: []string{"depmap"},
		Status:   "SUCCEEDED",
	})
	if !strings.Contains(ok, "succeeded") {
		t.Fatalf("expected success wording, got %q", ok)
	}
	if !strings.Contains(ok, "`run\\-1`") {
		t.Fatalf("expected escaped run id, got %q", ok)
	}
	if !strings.Contains(ok, "Symbols: 2") {
		t.Fatalf("expected symbol count, got %q", ok)
	}

	partial := formatRunOutcome(bus.RunEvent{
		RunID:  "run-2",
		Status: "PARTIAL",
		Err:    "1 of 2 symbols failed",
	})
	if !strings.Contains(partial, "finished with failures") {
		t.Fatalf("expected partial wording, got %q", partial)
	}
	if !strings.Contains(partial, "Error:") {
		t.Fatalf("expected error line, got %q", partial)
	}

	failed := formatRunOutcome(bus.RunEvent{RunID: "run-3", Status: "FAILED"})
	if !strings.Contains(failed, "failed") {
		t.Fatalf("expected failure wording, got %q", failed)
	}
}

func TestFormatAlert(t *testing.T) {
	got := formatAlert(bus.Alert{Severity: "error", Message: "ledger unreachable", RunID: "run-9"})
	if !strings.Contains(got, "ledger unreachable") {
		t.Fatalf("expected message text, got %q", got)
	}
	if !strings.Contains(got, "`run\\-9`") {
		t.Fatalf("expected run reference, got %q", got)
	}

	info := formatAlert(bus.Alert{Severity: "info", Message: "hello"})
	if strings.Contains(info, "Run:") {
		t.Fatalf("expected no run line without a run id, got %q", info)
	}
}

func TestShouldNotify(t *testing.T) {
	cases := []struct {
		onSuccess bool
		onFailure bool
		status    string
		want      bool
	}{
		{true, true, "SUCCEEDED", true},
		{false, true, "SUCCEEDED", false},
		{false, true, "FAILED", true},
		{false, true, "PARTIAL", true},
		{true, false, "PARTIAL", false},
		{false, false, "FAILED", false},
	}
	for _, tc := range cases {
		n := &TelegramNotifier{onSuccess: tc.onSuccess, onFailure: tc.onFailure}
		if got := n.shouldNotify(tc.status); got != tc.want {
			t.Errorf("shouldNotify(%q) with success=%v failure=%v = %v, want %v",
				tc.status, tc.onSuccess, tc.onFailure, got, tc.want)
		}
	}
}
