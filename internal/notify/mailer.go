package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/magabrotheeeer/membership-bot/internal/lib/sl"
	"github.com/magabrotheeeer/membership-bot/internal/lib/smtp"
	"github.com/magabrotheeeer/membership-bot/internal/metrics"
	"github.com/magabrotheeeer/membership-bot/internal/models"
)

// SMTPMailer отправляет письма через SMTP.
type SMTPMailer struct {
	transport smtp.TransportInterface
	log       *slog.Logger
}

// NewSMTPMailer создаёт почтовый отправитель.
func NewSMTPMailer(transport smtp.TransportInterface, log *slog.Logger) *SMTPMailer {
	return &SMTPMailer{transport: transport, log: log}
}

// SendEmail отправляет одно письмо в text/plain.
func (m *SMTPMailer) SendEmail(_ context.Context, msg models.EmailNotification) error {
	const op = "notify.SMTPMailer.SendEmail"

	if err := m.send(msg); err != nil {
		m.log.Error("failed to send email", slog.String("to", msg.To), sl.Err(err))
		metrics.Notifications.WithLabelValues("email", "error").Inc()
		return fmt.Errorf("%s: %w", op, err)
	}
	metrics.Notifications.WithLabelValues("email", "ok").Inc()
	m.log.Info("email sent", slog.String("to", msg.To))
	return nil
}

func (m *SMTPMailer) send(msg models.EmailNotification) error {
	from := m.transport.Sender()
	raw := strings.Join([]string{
		"From: " + from,
		"To: " + msg.To,
		"Subject: " + msg.Subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"UTF-8\"",
		"",
		msg.Body,
	}, "\r\n")

	client, err := m.transport.Connect()
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.Mail(from); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	if err := client.Rcpt(msg.To); err != nil {
		return fmt.Errorf("rcpt to: %w", err)
	}
	wc, err := client.Data()
	if err != nil {
		return fmt.Errorf("data: %w", err)
	}
	if _, err := wc.Write([]byte(raw)); err != nil {
		return fmt.Errorf("write body: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("close body: %w", err)
	}
	return client.Quit()
}

// FrozenEmail письмо о приостановке доступа.
func FrozenEmail(sub *models.Subscriber) models.EmailNotification {
	return models.EmailNotification{
		To:      sub.Email,
		Subject: "Your membership has expired",
		Body: "Hello,\n\nyour subscription has expired and access to the community has been suspended.\n" +
			"Renew your plan to regain access.",
	}
}

// ReactivatedEmail письмо о возобновлении доступа.
func ReactivatedEmail(sub *models.Subscriber) models.EmailNotification {
	expires := "-"
	if sub.ExpiresAt != nil {
		expires = sub.ExpiresAt.Format("2006-01-02")
	}
	return models.EmailNotification{
		To:      sub.Email,
		Subject: "Your membership is active again",
		Body:    "Hello,\n\nyour access has been restored. Your plan is valid until " + expires + ".",
	}
}
