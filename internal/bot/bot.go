// ABOUTME: Telegram bot that fronts the agent backend
// ABOUTME: Handles onboarding of new group members and private chat turns

package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const fallbackReply = "Sorry, something went wrong."

// Asker runs one chat turn against the agent backend.
type Asker interface {
	Ask(ctx context.Context, userAddress, msg string) (string, error)
}

// MemberStore records Telegram members for KYC onboarding.
type MemberStore interface {
	UpsertMember(ctx context.Context, tgid int64, tgname string) error
}

// Bot long-polls Telegram and routes private messages through the agent API.
type Bot struct {
	token   string
	kycLink string
	client  Asker
	members MemberStore
	logger  *slog.Logger
	api     *tgbotapi.BotAPI
}

// New creates a Bot. members may be nil when onboarding persistence is
// disabled; joins are then only greeted.
func New(token, kycLink string, client Asker, members MemberStore, logger *slog.Logger) *Bot {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bot{
		token:   token,
		kycLink: kycLink,
		client:  client,
		members: members,
		logger:  logger.With("component", "bot"),
	}
}

// Run connects to Telegram and processes updates until ctx is cancelled.
// Disconnects trigger reconnection with exponential backoff.
func (b *Bot) Run(ctx context.Context) error {
	var err error
	b.api, err = tgbotapi.NewBotAPI(b.token)
	if err != nil {
		return fmt.Errorf("telegram init failed: %w", err)
	}

	b.logger.Info("telegram bot started", "user", b.api.Self.UserName)

	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		u := tgbotapi.NewUpdate(0)
		u.Timeout = 60
		updates := b.api.GetUpdatesChan(u)

		pollErr := b.pollUpdates(ctx, updates)
		b.api.StopReceivingUpdates()

		if pollErr != nil {
			b.logger.Warn("telegram poll disconnected, reconnecting", "error", pollErr, "backoff", backoff)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}

		return nil
	}
}

// pollUpdates reads updates until ctx is done, the channel closes, or no
// updates arrive within 2.5x the long-poll timeout (stall detection).
func (b *Bot) pollUpdates(ctx context.Context, updates tgbotapi.UpdatesChannel) error {
	const stallTimeout = 150 * time.Second

	timer := time.NewTimer(stallTimeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return fmt.Errorf("update channel closed")
			}

			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(stallTimeout)

			if update.Message == nil {
				continue
			}

			if len(update.Message.NewChatMembers) > 0 {
				b.handleNewMembers(ctx, update.Message)
				continue
			}

			if update.Message.IsCommand() && update.Message.Command() == "start" {
				b.reply(update.Message.Chat.ID,
					"Hello! I'm CKB agent!\nI will help you do KYC on telegram. Please ask me anything.")
				continue
			}

			if update.Message.Chat.IsPrivate() && update.Message.Text != "" {
				b.handleDirectMessage(ctx, update.Message)
			}

		case <-timer.C:
			return fmt.Errorf("no updates received for %v (possible disconnect)", stallTimeout)
		}
	}
}

// handleNewMembers greets each joiner with the KYC invite and records them.
// Delivery failures are logged and skipped; the group flow must not stall.
func (b *Bot) handleNewMembers(ctx context.Context, msg *tgbotapi.Message) {
	for _, member := range msg.NewChatMembers {
		tgname := member.UserName
		if tgname == "" {
			tgname = member.FirstName
		}

		text := fmt.Sprintf(
			"Hello %s, welcome to the group! 👋\n"+
				"Please complete your KYC to get started.\n"+
				"Click the link below to begin:\n"+
				"[KYC Form](%s)\n"+
				"Please ask me anything if you need any help\n",
			tgname, b.kycLink)

		if _, err := b.api.Send(tgbotapi.NewMessage(member.ID, text)); err != nil {
			b.logger.Error("could not message new member", "tgname", tgname, "tgid", member.ID, "error", err)
			continue
		}

		if b.members != nil {
			if err := b.members.UpsertMember(ctx, member.ID, tgname); err != nil {
				b.logger.Error("recording member failed", "tgid", member.ID, "error", err)
			}
		}

		b.logger.Info("sent KYC message", "tgname", tgname, "tgid", member.ID)
	}
}

// handleDirectMessage routes a private message through the agent API.
// The sender's Telegram id is the per-user history key.
func (b *Bot) handleDirectMessage(ctx context.Context, msg *tgbotapi.Message) {
	userAddress := strconv.FormatInt(msg.From.ID, 10)

	reply, err := b.client.Ask(ctx, userAddress, msg.Text)
	if err != nil {
		b.logger.Error("agent request failed", "user", userAddress, "error", err)
		reply = fallbackReply
	}

	b.reply(msg.Chat.ID, reply)
}

func (b *Bot) reply(chatID int64, text string) {
	if _, err := b.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		b.logger.Error("failed to send reply", "chat_id", chatID, "error", err)
	}
}
