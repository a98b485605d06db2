package channels

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/basket/biofetch/internal/bus"
	"github.com/basket/biofetch/internal/ledger"
)

// TelegramNotifier pushes run outcomes and alerts to a Telegram chat.
// It is one-way: incoming messages are ignored.
type TelegramNotifier struct {
	token     string
	chatID    int64
	onSuccess bool
	onFailure bool
	eventBus  *bus.Bus
	logger    *slog.Logger
	bot       *tgbotapi.BotAPI
}

// NotifierConfig holds the settings for a TelegramNotifier.
type NotifierConfig struct {
	Token     string
	ChatID    int64
	OnSuccess bool
	OnFailure bool
	Bus       *bus.Bus
	Logger    *slog.Logger
}

// NewTelegramNotifier creates a notifier. Token, chat ID, and bus are
// required.
func NewTelegramNotifier(cfg NotifierConfig) (*TelegramNotifier, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("telegram notifier: no token configured")
	}
	if cfg.ChatID == 0 {
		return nil, fmt.Errorf("telegram notifier: no chat_id configured")
	}
	if cfg.Bus == nil {
		return nil, fmt.Errorf("telegram notifier: no event bus")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &TelegramNotifier{
		token:     cfg.Token,
		chatID:    cfg.ChatID,
		onSuccess: cfg.OnSuccess,
		onFailure: cfg.OnFailure,
		eventBus:  cfg.Bus,
		logger:    logger,
	}, nil
}

func (t *TelegramNotifier) Name() string {
	return "telegram"
}

// Start connects to the Telegram API and forwards bus events until the
// context is canceled.
func (t *TelegramNotifier) Start(ctx context.Context) error {
	var err error
	t.bot, err = tgbotapi.NewBotAPI(t.token)
	if err != nil {
		return fmt.Errorf("telegram init failed: %w", err)
	}

	t.logger.Info("telegram notifier started", "user", t.bot.Self.UserName, "chat_id", t.chatID)

	runs := t.eventBus.Subscribe(bus.TopicRunFinished)
	defer t.eventBus.Unsubscribe(runs)
	alerts := t.eventBus.Subscribe(bus.TopicAlert)
	defer t.eventBus.Unsubscribe(alerts)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-runs.Ch():
			t.onRunFinished(ev.Payload)
		case ev := <-alerts.Ch():
			t.onAlert(ev.Payload)
		}
	}
}

func (t *TelegramNotifier) onRunFinished(data interface{}) {
	re, ok := data.(bus.RunEvent)
	if !ok {
		t.logger.Warn("invalid RunEvent payload", "type", fmt.Sprintf("%T", data))
		return
	}
	if !t.shouldNotify(re.Status) {
		return
	}
	t.sendMarkdown(formatRunOutcome(re))
}

func (t *TelegramNotifier) onAlert(data interface{}) {
	alert, ok := data.(bus.Alert)
	if !ok {
		t.logger.Warn("invalid Alert payload", "type", fmt.Sprintf("%T", data))
		return
	}
	t.sendMarkdown(formatAlert(alert))
}

// shouldNotify applies the on_success / on_failure settings. PARTIAL
// counts as a failure: some symbol did not land.
func (t *TelegramNotifier) shouldNotify(status string) bool {
	if status == string(ledger.RunStatusSucceeded) {
		return t.onSuccess
	}
	return t.onFailure
}

// sendMarkdown sends a MarkdownV2-formatted message to the configured chat.
func (t *TelegramNotifier) sendMarkdown(text string) {
	msg := tgbotapi.NewMessage(t.chatID, text)
	msg.ParseMode = "MarkdownV2"
	if _, err := t.bot.Send(msg); err != nil {
		t.logger.Error("failed to send telegram notification", "error", err)
	}
}

// formatRunOutcome formats a finished run as MarkdownV2.
func formatRunOutcome(ev bus.RunEvent) string {
	emoji := "✅" // check mark
	verb := "succeeded"
	switch ev.Status {
	case string(ledger.RunStatusFailed):
		emoji = "\U0001f6a8" // rotating light
		verb = "failed"
	case string(ledger.RunStatusPartial):
		emoji = "⚠️" // warning sign
		verb = "finished with failures"
	}

	msg := fmt.Sprintf("%s *Fetch run %s*\nRun: `%s`\nSymbols: %d, datasets: %d",
		emoji,
		escapeMarkdownV2(verb),
		escapeMarkdownV2(ev.RunID),
		len(ev.Symbols),
		len(ev.Datasets))
	if ev.Err != "" {
		msg += fmt.Sprintf("\nError: %s", escapeMarkdownV2(ev.Err))
	}
	return msg
}

// formatAlert formats an alert as MarkdownV2 with a severity emoji.
func formatAlert(alert bus.Alert) string {
	emoji := "ℹ️" // information
	switch alert.Severity {
	case "warning":
		emoji = "⚠️"
	case "error":
		emoji = "\U0001f6a8"
	}

	msg := fmt.Sprintf("%s *%s*\n%s",
		emoji,
		escapeMarkdownV2(alert.Severity),
		escapeMarkdownV2(alert.Message))
	if alert.RunID != "" {
		msg += fmt.Sprintf("\nRun: `%s`", escapeMarkdownV2(alert.RunID))
	}
	return msg
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2.
// Must escape: _ * [ ] ( ) ~ > # + - = | { } . !
func escapeMarkdownV2(s string) string {
	const specialChars = "_*[]()~>#+-=|{}.!"

	result := make([]byte, 0, len(s)*2)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if strings.IndexByte(specialChars, c) >= 0 {
			result = append(result, '\\')
		}
		result = append(result, c)
	}
	return string(result)
}
