package channels_test

import (
	"testing"

	"github.com/basket/biofetch/internal/bus"
	"github.com/basket/biofetch/internal/channels"
)

// Compile-time interface check: TelegramNotifier must implement Channel.
var _ channels.Channel = (*channels.TelegramNotifier)(nil)

func TestTelegramNotifier_Name(t *testing.T) {
	n, err := channels.NewTelegramNotifier(channels.NotifierConfig{
		Token:  "fake-token",
		ChatID: 42,
		Bus:    bus.New(),
	})
	if err != nil {
		t.Fatalf("NewTelegramNotifier: %v", err)
	}
	if got := n.Name(); got != "telegram" {
		t.Fatalf("TelegramNotifier.Name() = %q, want %q", got, "telegram")
	}
}

func TestNewTelegramNotifier_RequiresSettings(t *testing.T) {
	b := bus.New()
	cases := []struct {
		name string
		cfg  channels.NotifierConfig
	}{
		{"missing token", channels.NotifierConfig{ChatID: 42, Bus: b}},
		{"missing chat id", channels.NotifierConfig{Token: "fake", Bus: b}},
		{"missing bus", channels.NotifierConfig{Token: "fake", ChatID: 42}},
	}
	for _, tc := range cases {
		if _, err := channels.NewTelegramNotifier(tc.cfg); err == nil {
			t.Errorf("%s: expected error", tc.name)
		}
	}
}
