package notifier

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/semmidev/filevault/internal/config"
	"github.com/semmidev/filevault/internal/domain"
)

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier posts a short message about each finished backup run.
// Archives are never uploaded.
type TelegramNotifier struct {
	bot    sender
	chatID int64
}

func NewTelegram(cfg *config.TelegramConfig) (*TelegramNotifier, error) {
	chatID, err := strconv.ParseInt(cfg.ChatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid telegram chat id %q: %w", cfg.ChatID, err)
	}

	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	return &TelegramNotifier{bot: bot, chatID: chatID}, nil
}

func (t *TelegramNotifier) Notify(ctx context.Context, status domain.Status) error {
	msg := tgbotapi.NewMessage(t.chatID, FormatMessage(status))
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("failed to send telegram notification: %w", err)
	}
	return nil
}

func FormatMessage(status domain.Status) string {
	when := status.FinishedAt.Format("2006-01-02 15:04:05")

	if status.Succeeded() {
		msg := fmt.Sprintf(
			"✅ Backup Created\n\n"+
				"📁 File: %s\n"+
				"🗂 Files: %d\n"+
				"📊 Size: %.2f MB\n"+
				"🕐 Time: %s",
			filepath.Base(status.ArchivePath),
			status.Files,
			float64(status.SizeBytes)/(1024*1024),
			when,
		)
		if n := len(status.Deleted); n > 0 {
			msg += fmt.Sprintf("\n♻️ Rotated: %d old backup(s)", n)
		}
		return msg
	}

	return fmt.Sprintf(
		"❌ Backup Failed\n\n"+
			"⚠️ Reason: %s\n"+
			"🕐 Time: %s",
		status.Message,
		when,
	)
}
