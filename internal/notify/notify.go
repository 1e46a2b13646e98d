// Package notify доставляет административные уведомления и письма подписчикам:
// напрямую (Telegram, SMTP), через очередь RabbitMQ или только в лог.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/magabrotheeeer/membership-bot/internal/lib/sl"
	"github.com/magabrotheeeer/membership-bot/internal/metrics"
	"github.com/magabrotheeeer/membership-bot/internal/models"
	"github.com/magabrotheeeer/membership-bot/internal/rabbitmq"
)

// Notifier отправляет текст администратору.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// Mailer отправляет письмо подписчику.
type Mailer interface {
	SendEmail(ctx context.Context, msg models.EmailNotification) error
}

// TextSender отправка сообщения в чат Telegram.
type TextSender interface {
	SendText(ctx context.Context, chatID int64, text string) error
}

// TelegramNotifier пишет в административный чат Telegram.
type TelegramNotifier struct {
	sender TextSender
	chatID int64
	log    *slog.Logger
}

// NewTelegramNotifier создаёт уведомитель. При chatID == 0 сообщения только логируются.
func NewTelegramNotifier(sender TextSender, chatID int64, log *slog.Logger) *TelegramNotifier {
	return &TelegramNotifier{sender: sender, chatID: chatID, log: log}
}

// Notify отправляет текст в админ-чат.
func (n *TelegramNotifier) Notify(ctx context.Context, text string) error {
	const op = "notify.TelegramNotifier.Notify"

	if n.chatID == 0 || n.sender == nil {
		n.log.Info("admin notification", slog.String("text", text))
		metrics.Notifications.WithLabelValues("log", "ok").Inc()
		return nil
	}
	if err := n.sender.SendText(ctx, n.chatID, text); err != nil {
		metrics.Notifications.WithLabelValues("telegram", "error").Inc()
		return fmt.Errorf("%s: %w", op, err)
	}
	metrics.Notifications.WithLabelValues("telegram", "ok").Inc()
	return nil
}

// LogNotifier пишет уведомления в лог.
type LogNotifier struct {
	log *slog.Logger
}

// NewLogNotifier создаёт уведомитель в лог.
func NewLogNotifier(log *slog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

// Notify пишет текст в лог.
func (n *LogNotifier) Notify(_ context.Context, text string) error {
	n.log.Info("admin notification", slog.String("text", text))
	metrics.Notifications.WithLabelValues("log", "ok").Inc()
	return nil
}

// SendEmail пишет письмо в лог вместо отправки.
func (n *LogNotifier) SendEmail(_ context.Context, msg models.EmailNotification) error {
	n.log.Info("email notification", slog.String("to", msg.To), slog.String("subject", msg.Subject))
	metrics.Notifications.WithLabelValues("log", "ok").Inc()
	return nil
}

// QueueNotifier публикует уведомления и письма в exchange notifications.
// Доставкой занимается cmd/notifier.
type QueueNotifier struct {
	mu  sync.Mutex
	pub rabbitmq.Publisher
	log *slog.Logger
}

// NewQueueNotifier создаёт публикатора поверх канала.
func NewQueueNotifier(pub rabbitmq.Publisher, log *slog.Logger) *QueueNotifier {
	return &QueueNotifier{pub: pub, log: log}
}

// Notify ставит административное уведомление в очередь.
func (q *QueueNotifier) Notify(_ context.Context, text string) error {
	const op = "notify.QueueNotifier.Notify"

	if err := q.publish(rabbitmq.RoutingAdmin, models.AdminNotification{Text: text}); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// SendEmail ставит письмо в очередь.
func (q *QueueNotifier) SendEmail(_ context.Context, msg models.EmailNotification) error {
	const op = "notify.QueueNotifier.SendEmail"

	if err := q.publish(rabbitmq.RoutingEmail, msg); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (q *QueueNotifier) publish(routingKey string, msg any) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if err := rabbitmq.PublishMessage(q.pub, rabbitmq.Exchange, routingKey, msg); err != nil {
		q.log.Error("failed to enqueue notification", slog.String("routing_key", routingKey), sl.Err(err))
		metrics.Notifications.WithLabelValues("queue", "error").Inc()
		return err
	}
	metrics.Notifications.WithLabelValues("queue", "ok").Inc()
	return nil
}

// Fallback пробует основной канал, при ошибке пишет в запасной.
type Fallback struct {
	Primary   Notifier
	Secondary Notifier
}

// Notify отправляет через Primary, при ошибке через Secondary.
func (f Fallback) Notify(ctx context.Context, text string) error {
	if err := f.Primary.Notify(ctx, text); err != nil {
		if serr := f.Secondary.Notify(ctx, text); serr != nil {
			return fmt.Errorf("notify.Fallback: %w", serr)
		}
	}
	return nil
}
