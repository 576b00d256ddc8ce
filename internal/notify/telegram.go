// ABOUTME: Best-effort Telegram notification delivery
// ABOUTME: Failures are logged and swallowed, never surfaced to the caller

package notify

import (
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Notifier delivers a short message to a Telegram chat.
// Delivery is best-effort: implementations report nothing to the caller.
type Notifier interface {
	Send(chatID int64, text string)
}

// TelegramNotifier sends messages through the Telegram bot API.
type TelegramNotifier struct {
	bot    *tgbotapi.BotAPI
	logger *slog.Logger
}

// NewTelegramNotifier creates a notifier using the given bot token.
func NewTelegramNotifier(token string, logger *slog.Logger) (*TelegramNotifier, error) {
	if logger == nil {
		logger = slog.Default()
	}

	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	return &TelegramNotifier{
		bot:    bot,
		logger: logger.With("component", "notify"),
	}, nil
}

// Send delivers text to the chat. Errors are logged and dropped so a failed
// notification never changes the response sent to the original caller.
func (n *TelegramNotifier) Send(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := n.bot.Send(msg); err != nil {
		n.logger.Error("failed to send telegram message", "chat_id", chatID, "error", err)
		return
	}
	n.logger.Info("telegram message sent", "chat_id", chatID)
}

// NopNotifier discards all notifications. Used when no bot token is
// configured and in tests.
type NopNotifier struct{}

func (NopNotifier) Send(chatID int64, text string) {}
