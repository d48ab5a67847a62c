package telegram

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	app "grid-annotator/internal/application"
	"grid-annotator/internal/domain/entity"
	"grid-annotator/internal/domain/port"
)

// captionLimit — максимальная длина подписи к фото в Telegram.
const captionLimit = 1024

const (
	msgRunDone   = "✅ Прогон завершён"
	msgRunFailed = "⚠️ Прогон завершился с ошибкой"
)

// sender — часть tgbotapi.BotAPI, нужная для отправки.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Notifier отправляет отчёт о прогоне в чат Telegram
type Notifier struct {
	api    sender
	chatID int64
	log    logrus.FieldLogger
}

// NewNotifier создаёт нотификатор и проверяет токен
func NewNotifier(token string, chatID int64, log logrus.FieldLogger) (*Notifier, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram auth: %w", err)
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	log.WithField("account", api.Self.UserName).Info("telegram notifier authorized")

	return newNotifier(api, chatID, log), nil
}

func newNotifier(api sender, chatID int64, log logrus.FieldLogger) *Notifier {
	return &Notifier{api: api, chatID: chatID, log: log}
}

// Notify отправляет текст отчёта; если есть превью, текст идёт подписью к фото
func (n *Notifier) Notify(ctx context.Context, run *entity.RunSummary, preview []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	text := FormatMessage(run)

	var msg tgbotapi.Chattable
	if len(preview) > 0 {
		photo := tgbotapi.NewPhoto(n.chatID, tgbotapi.FileBytes{Name: "preview.jpg", Bytes: preview})
		photo.Caption = truncate(text, captionLimit)
		msg = photo
	} else {
		msg = tgbotapi.NewMessage(n.chatID, text)
	}

	if _, err := n.api.Send(msg); err != nil {
		return fmt.Errorf("send run %s: %w", run.ID, err)
	}
	n.log.WithFields(logrus.Fields{"run_id": run.ID, "chat_id": n.chatID}).Debug("run notification sent")
	return nil
}

// FormatMessage собирает текст уведомления
func FormatMessage(run *entity.RunSummary) string {
	header := msgRunDone
	if !run.Succeeded() {
		header = msgRunFailed
	}
	return header + "\n\n" + app.FormatSummary(run)
}

// truncate обрезает строку до limit символов (рун)
func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit-1]) + "…"
}

// Проверка реализации интерфейса
var _ port.RunNotifier = (*Notifier)(nil)
