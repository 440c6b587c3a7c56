// Package telegram_bot exposes the feedback ledger and activation metric
// to moderators over Telegram, so corrections do not require the HTTP API.
package telegram_bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/seseseee/discourse-insight/internal/activation"
	"github.com/seseseee/discourse-insight/internal/config"
	"github.com/seseseee/discourse-insight/internal/feedback"
)

// Bot bridges moderator chat commands to the feedback ledger.
type Bot struct {
	api        *tgbotapi.BotAPI
	logger     *zap.Logger
	ledger     *feedback.Ledger
	activation *activation.Service
	cfg        *config.Config
}

// NewBot creates a new Telegram bot instance. Returns (nil, nil) when the
// bot is disabled in config; callers must tolerate a nil bot.
func NewBot(cfg *config.Config, ledger *feedback.Ledger, activationSvc *activation.Service, logger *zap.Logger) (*Bot, error) {
	if !cfg.AccessControl.Enabled || cfg.AccessControl.TelegramBotToken == "" {
		logger.Info("Telegram bot is disabled (access_control.enabled=false or token is empty)")
		return nil, nil
	}

	botAPI, err := tgbotapi.NewBotAPI(cfg.AccessControl.TelegramBotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot API: %w", err)
	}

	logger.Info("Telegram bot authorized", zap.String("username", botAPI.Self.UserName))

	return &Bot{
		api:        botAPI,
		logger:     logger,
		ledger:     ledger,
		activation: activationSvc,
		cfg:        cfg,
	}, nil
}

// Start begins listening for updates from Telegram
func (b *Bot) Start(ctx context.Context) error {
	if b == nil {
		return nil // Bot is disabled
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	b.logger.Info("Telegram bot started, waiting for updates...")

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("Telegram bot shutting down...")
			b.api.StopReceivingUpdates()
			return nil
		case update := <-updates:
			if update.Message != nil {
				b.handleMessage(ctx, update.Message)
			}
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	if !message.IsCommand() {
		return
	}

	switch message.Command() {
	case "start", "help":
		b.handleHelpCommand(message)
	case "label":
		b.handleLabelCommand(ctx, message)
	case "unlabel":
		b.handleUnlabelCommand(ctx, message)
	case "sai":
		b.handleSAICommand(ctx, message)
	default:
		b.sendMessage(message.Chat.ID, "Unknown command. Use /help for usage.")
	}
}

func (b *Bot) handleHelpCommand(message *tgbotapi.Message) {
	help := `Commands:
/label <server_id> <message_id> <label> [label...] — record label feedback
/unlabel <server_id> <message_id> [label...] — withdraw feedback
/sai <server_id> [channel_id] — activation index for the last 24h`
	b.sendMessage(message.Chat.ID, help)
}

// handleLabelCommand parses "/label <server_id> <message_id> <labels...>"
// and grants feedback under the sender's Telegram ID.
func (b *Bot) handleLabelCommand(ctx context.Context, message *tgbotapi.Message) {
	args := strings.Fields(message.CommandArguments())
	if len(args) < 3 {
		b.sendMessage(message.Chat.ID, "Usage: /label <server_id> <message_id> <label> [label...]")
		return
	}

	messageID, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		b.sendMessage(message.Chat.ID, "message_id must be a number")
		return
	}

	receipt, err := b.ledger.Grant(ctx, feedback.GrantRequest{
		ServerID:  args[0],
		MessageID: messageID,
		UserID:    strconv.FormatInt(message.From.ID, 10),
		Labels:    args[2:],
	})
	if err != nil {
		b.logger.Error("Failed to grant feedback from bot",
			zap.Int64("message_id", messageID),
			zap.Error(err))
		b.sendMessage(message.Chat.ID, fmt.Sprintf("Failed: %v", err))
		return
	}

	b.sendMessage(message.Chat.ID, formatReceipt("Recorded", receipt))
}

func (b *Bot) handleUnlabelCommand(ctx context.Context, message *tgbotapi.Message) {
	args := strings.Fields(message.CommandArguments())
	if len(args) < 2 {
		b.sendMessage(message.Chat.ID, "Usage: /unlabel <server_id> <message_id> [label...]")
		return
	}

	messageID, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		b.sendMessage(message.Chat.ID, "message_id must be a number")
		return
	}

	receipt, err := b.ledger.Revoke(ctx, feedback.RevokeRequest{
		ServerID:  args[0],
		MessageID: messageID,
		UserID:    strconv.FormatInt(message.From.ID, 10),
		Labels:    args[2:],
	})
	if err != nil {
		b.logger.Error("Failed to revoke feedback from bot",
			zap.Int64("message_id", messageID),
			zap.Error(err))
		b.sendMessage(message.Chat.ID, fmt.Sprintf("Failed: %v", err))
		return
	}

	b.sendMessage(message.Chat.ID, formatReceipt("Withdrawn", receipt))
}

func (b *Bot) handleSAICommand(ctx context.Context, message *tgbotapi.Message) {
	args := strings.Fields(message.CommandArguments())
	if len(args) < 1 {
		b.sendMessage(message.Chat.ID, "Usage: /sai <server_id> [channel_id]")
		return
	}

	var channelID *string
	if len(args) > 1 {
		channelID = &args[1]
	}

	to := time.Now()
	from := to.Add(-24 * time.Hour)

	point, err := b.activation.Compute(ctx, args[0], channelID, from, to)
	if err != nil {
		b.logger.Error("Failed to compute activation from bot",
			zap.String("server_id", args[0]),
			zap.Error(err))
		b.sendMessage(message.Chat.ID, fmt.Sprintf("Failed: %v", err))
		return
	}

	b.sendMessage(message.Chat.ID, fmt.Sprintf(
		"SAI %.1f (messages: %d, users: %d)\nrate=%.2f diversity=%.2f turn=%.2f burst=%.2f variety=%.2f",
		point.SAI, point.Messages, point.Users,
		point.SubMetrics.MsgRate, point.SubMetrics.UserDiversity,
		point.SubMetrics.TurnTaking, point.SubMetrics.BurstInverse,
		point.SubMetrics.TopicalVariety))
}

func formatReceipt(verb string, receipt *feedback.Receipt) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %d label(s).", verb, len(receipt.AppliedLabels))
	for _, delta := range receipt.TriggerDeltas {
		if delta.Deleted {
			fmt.Fprintf(&sb, "\n%s trigger removed", delta.Label)
			continue
		}
		fmt.Fprintf(&sb, "\n%s trigger: hits=%d weight=%.2f", delta.Label, delta.HitCount, delta.Weight)
	}
	return sb.String()
}

func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("Failed to send Telegram message", zap.Error(err))
	}
}
