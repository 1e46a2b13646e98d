package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/membership-bot/internal/lib/smtp"
	"github.com/magabrotheeeer/membership-bot/internal/models"
	"github.com/magabrotheeeer/membership-bot/internal/rabbitmq"
)

// Relay обрабатывает сообщения из очередей notifications.admin и notifications.email.
type Relay struct {
	notifier Notifier
	mailer   Mailer
	log      *slog.Logger
	timeout  time.Duration
}

// NewRelay создаёт обработчик очередей.
func NewRelay(notifier Notifier, mailer Mailer, log *slog.Logger) *Relay {
	return &Relay{notifier: notifier, mailer: mailer, log: log, timeout: 30 * time.Second}
}

// HandleAdmin доставляет административное уведомление.
func (r *Relay) HandleAdmin(body []byte) error {
	const op = "notify.Relay.HandleAdmin"

	var msg models.AdminNotification
	if err := json.Unmarshal(body, &msg); err != nil {
		// битое сообщение не вернётся в очередь
		r.log.Error("dropping malformed admin notification", slog.String("op", op), slog.String("body", string(body)))
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	if err := r.notifier.Notify(ctx, msg.Text); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// HandleEmail отправляет письмо. Отказ сервера с кодом 5xx помечается
// rabbitmq.ErrPermanent, и сообщение не возвращается в очередь.
func (r *Relay) HandleEmail(body []byte) error {
	const op = "notify.Relay.HandleEmail"

	var msg models.EmailNotification
	if err := json.Unmarshal(body, &msg); err != nil || msg.To == "" {
		r.log.Error("dropping malformed email notification", slog.String("op", op), slog.String("body", string(body)))
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	if err := r.mailer.SendEmail(ctx, msg); err != nil {
		if smtp.IsPermanent(err) {
			return fmt.Errorf("%s: %w: %w", op, rabbitmq.ErrPermanent, err)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
