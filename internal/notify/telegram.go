package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"zapisly/internal/models"
)

// ChatResolver maps bookings to Telegram chat IDs. Implemented by the
// database layer; a zero chat ID means the party has no linked chat.
type ChatResolver interface {
	GetBusinessChatID(ctx context.Context, businessID int64) (int64, error)
	GetClientChatID(ctx context.Context, clientID int64) (int64, error)
}

// TelegramNotifier sends booking notifications to the client and the
// business chat via the Bot API.
type TelegramNotifier struct {
	bot    *tgbotapi.BotAPI
	chats  ChatResolver
	logger zerolog.Logger
}

// NewTelegramNotifier creates a notifier for the given bot token.
func NewTelegramNotifier(token string, chats ChatResolver, logger zerolog.Logger) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return &TelegramNotifier{
		bot:    bot,
		chats:  chats,
		logger: logger.With().Str("component", "telegram_notify").Logger(),
	}, nil
}

func (n *TelegramNotifier) NotifyConfirmed(ctx context.Context, b *models.Booking) error {
	text := fmt.Sprintf("✅ Запись подтверждена на %s.", b.StartTime.Format("02.01.2006 15:04"))
	bizText := fmt.Sprintf("📅 Новая запись: %s, %d мин.", b.StartTime.Format("02.01.2006 15:04"), b.DurationMinutes)
	return n.sendBoth(ctx, b, text, bizText)
}

func (n *TelegramNotifier) NotifyCancelled(ctx context.Context, b *models.Booking) error {
	text := fmt.Sprintf("❌ Запись на %s отменена.", b.StartTime.Format("02.01.2006 15:04"))
	bizText := fmt.Sprintf("❌ Отмена записи: %s.", b.StartTime.Format("02.01.2006 15:04"))
	return n.sendBoth(ctx, b, text, bizText)
}

func (n *TelegramNotifier) SendReminder(ctx context.Context, b *models.Booking) error {
	chatID, err := n.chats.GetClientChatID(ctx, b.ClientID)
	if err != nil {
		return fmt.Errorf("failed to resolve client chat: %w", err)
	}
	if chatID == 0 {
		n.logger.Debug().Int64("client_id", b.ClientID).Msg("client has no linked chat, skipping reminder")
		return nil
	}
	text := fmt.Sprintf("🔔 Напоминание: запись на %s.", b.StartTime.Format("02.01.2006 15:04"))
	return n.send(chatID, text)
}

// sendBoth delivers to the client and the business chat. A failure on
// one side does not stop delivery to the other.
func (n *TelegramNotifier) sendBoth(ctx context.Context, b *models.Booking, clientText, bizText string) error {
	var firstErr error

	clientChat, err := n.chats.GetClientChatID(ctx, b.ClientID)
	if err != nil {
		firstErr = fmt.Errorf("failed to resolve client chat: %w", err)
	} else if clientChat != 0 {
		if err := n.send(clientChat, clientText); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	bizChat, err := n.chats.GetBusinessChatID(ctx, b.BusinessID)
	if err != nil {
		if firstErr == nil {
			firstErr = fmt.Errorf("failed to resolve business chat: %w", err)
		}
	} else if bizChat != 0 {
		if err := n.send(bizChat, bizText); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

func (n *TelegramNotifier) send(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := n.bot.Send(msg); err != nil {
		return fmt.Errorf("failed to send telegram message to chat %d: %w", chatID, err)
	}
	return nil
}
