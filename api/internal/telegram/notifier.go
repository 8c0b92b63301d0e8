// Package telegram шлёт администраторам уведомления об эскалациях.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"assist-bot/api/internal/evidence"
	"assist-bot/api/internal/util"
)

// лимит Telegram 4096, оставляем запас под разметку
const maxMessageLen = 3900

// Sender — часть *tgbotapi.BotAPI, которая нужна уведомлениям.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type Notifier struct {
	Bot         Sender
	AdminChatID int64
	// Если задан, в сообщение добавляется кнопка со ссылкой на заявку: AdminURL + "/" + id.
	AdminURL string
}

func NewNotifier(bot Sender, adminChatID int64, adminURL string) *Notifier {
	return &Notifier{Bot: bot, AdminChatID: adminChatID, AdminURL: strings.TrimRight(adminURL, "/")}
}

func (n *Notifier) NotifyEscalation(ctx context.Context, req *evidence.Request, reason string) error {
	if n == nil || n.Bot == nil {
		return errors.New("telegram notifier is not configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(n.AdminChatID, util.Truncate(escalationText(req, reason), maxMessageLen))
	msg.ParseMode = tgbotapi.ModeMarkdown
	if n.AdminURL != "" {
		kb := openRequestKeyboard(n.AdminURL + "/" + req.ID)
		msg.ReplyMarkup = kb
	}
	if _, err := n.Bot.Send(msg); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

func escalationText(req *evidence.Request, reason string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*Заявка %s требует проверки*\n", esc(req.ID))
	if req.IncidentType != "" {
		fmt.Fprintf(&b, "Тип: %s\n", esc(req.IncidentType))
	}
	if req.ServiceCategory != nil {
		fmt.Fprintf(&b, "Категория: %s\n", esc(*req.ServiceCategory))
	}
	fmt.Fprintf(&b, "Документов: %d, форм: %d\n", len(req.Items), len(req.Forms))
	fmt.Fprintf(&b, "Причина: %s", esc(reason))
	return b.String()
}

var _ evidence.Notifier = (*Notifier)(nil)
