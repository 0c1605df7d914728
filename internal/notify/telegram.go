package notify

import (
	"context"
	"fmt"
	"log"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Sender is the part of tgbotapi.BotAPI used to deliver messages.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramSink sends notices as chat messages. User ids are Telegram user ids,
// which double as private chat ids.
type TelegramSink struct {
	api Sender
}

// NewTelegramSink creates a Sink backed by a Telegram bot.
func NewTelegramSink(api Sender) *TelegramSink {
	return &TelegramSink{api: api}
}

func (s *TelegramSink) Notify(_ context.Context, n Notice) {
	chatID, err := strconv.ParseInt(n.UserID, 10, 64)
	if err != nil {
		log.Printf("Warning: cannot notify non-telegram user %q: %v", n.UserID, err)
		return
	}

	msg := tgbotapi.NewMessage(chatID, FormatMarkdown(n))
	msg.ParseMode = "Markdown"
	if _, err := s.api.Send(msg); err != nil {
		log.Printf("Warning: failed to deliver notice to %d: %v", chatID, err)
	}
}

// FormatMarkdown renders a notice as a Telegram Markdown message.
func FormatMarkdown(n Notice) string {
	icon := map[Level]string{
		LevelSuccess: "✅",
		LevelInfo:    "ℹ️",
		LevelWarning: "⚠️",
		LevelError:   "❌",
	}[n.Level]
	if n.Title == "" {
		return fmt.Sprintf("%s %s", icon, n.Message)
	}
	return fmt.Sprintf("%s *%s*\n%s", icon, n.Title, n.Message)
}
