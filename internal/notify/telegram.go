package notify

import (
	"context"
	"fmt"
	"log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"crm-tasks/internal/service"
)

// sender is the part of tgbotapi.BotAPI the notifier needs.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier sends batch reports to an operator chat.
type TelegramNotifier struct {
	api    sender
	chatID int64
}

// NewTelegramNotifier authorizes the bot token.
func NewTelegramNotifier(token string, chatID int64) (*TelegramNotifier, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	log.Printf("[info] operator notifications via bot %s", api.Self.UserName)
	return &TelegramNotifier{api: api, chatID: chatID}, nil
}

func (n *TelegramNotifier) NotifyReport(ctx context.Context, report service.Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(n.chatID, FormatReport(report))
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := n.api.Send(msg); err != nil {
		return fmt.Errorf("send report to %d: %w", n.chatID, err)
	}
	return nil
}

// LogNotifier writes reports to the standard logger.
type LogNotifier struct{}

func (LogNotifier) NotifyReport(_ context.Context, report service.Report) error {
	for _, f := range report.Failures {
		log.Printf("[warn] run %s: template %d (%s) needs attention: %v", report.RunID, f.TemplateID, f.Title, f.Err)
	}
	return nil
}
