package alerts

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// TelegramAlerter sends alerts via a Telegram bot.
type TelegramAlerter struct {
	api     *tgbotapi.BotAPI
	chatIDs []int64
	log     zerolog.Logger
}

// NewTelegramAlerter creates a Telegram-based alerter. botToken is the
// bot API token; chatIDs is the set of chats to notify.
func NewTelegramAlerter(botToken string, chatIDs []int64, log zerolog.Logger) (*TelegramAlerter, error) {
	if botToken == "" {
		return nil, fmt.Errorf("bot token is required")
	}

	api, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot api: %w", err)
	}

	log = log.With().Str("component", "alerts_telegram").Logger()
	log.Info().Str("bot_username", api.Self.UserName).Int("chat_count", len(chatIDs)).Msg("telegram alerter initialized")

	return &TelegramAlerter{api: api, chatIDs: chatIDs, log: log}, nil
}

func (t *TelegramAlerter) Send(ctx context.Context, alert Alert) error {
	if len(t.chatIDs) == 0 {
		t.log.Warn().Msg("no telegram chat ids configured, skipping alert")
		return nil
	}

	message := t.formatAlert(alert)

	var lastErr error
	successCount := 0
	for _, chatID := range t.chatIDs {
		msg := tgbotapi.NewMessage(chatID, message)
		msg.ParseMode = "Markdown"

		if _, err := t.api.Send(msg); err != nil {
			t.log.Error().Err(err).Int64("chat_id", chatID).Str("alert_title", alert.Title).Msg("failed to send telegram alert")
			lastErr = err
			continue
		}
		successCount++
	}

	if successCount == 0 && lastErr != nil {
		return fmt.Errorf("send alert to any chat: %w", lastErr)
	}

	t.log.Debug().Int("success_count", successCount).Int("total_chats", len(t.chatIDs)).Str("alert_title", alert.Title).Msg("telegram alert sent")
	return nil
}

func (t *TelegramAlerter) formatAlert(alert Alert) string {
	var emoji string
	switch alert.Severity {
	case SeverityCritical:
		emoji = "🚨"
	case SeverityWarning:
		emoji = "⚠️"
	case SeverityInfo:
		emoji = "ℹ️"
	default:
		emoji = "📢"
	}

	message := fmt.Sprintf("%s *%s*\n\n%s", emoji, alert.Title, alert.Message)

	if len(alert.Fields) > 0 {
		message += "\n\n*Details:*"
		for key, value := range alert.Fields {
			message += fmt.Sprintf("\n• %s: `%v`", key, value)
		}
	}

	message += fmt.Sprintf("\n\n_Time: %s_", alert.Timestamp.Format("2006-01-02 15:04:05"))
	return message
}

// AddChatID registers chatID if not already present.
func (t *TelegramAlerter) AddChatID(chatID int64) {
	for _, id := range t.chatIDs {
		if id == chatID {
			return
		}
	}
	t.chatIDs = append(t.chatIDs, chatID)
	t.log.Info().Int64("chat_id", chatID).Msg("added chat id")
}

// RemoveChatID deregisters chatID if present.
func (t *TelegramAlerter) RemoveChatID(chatID int64) {
	for i, id := range t.chatIDs {
		if id == chatID {
			t.chatIDs = append(t.chatIDs[:i], t.chatIDs[i+1:]...)
			t.log.Info().Int64("chat_id", chatID).Msg("removed chat id")
			return
		}
	}
}

func (t *TelegramAlerter) GetChatIDs() []int64 { return t.chatIDs }

func (t *TelegramAlerter) SetChatIDs(chatIDs []int64) {
	t.chatIDs = chatIDs
	t.log.Info().Int("chat_count", len(chatIDs)).Msg("updated chat ids")
}
