// Package notifier доставляет уведомления из очередей RabbitMQ: сообщения
// администратору в Telegram и письма подписчикам.
package notifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/membership-bot/internal/config"
	"github.com/magabrotheeeer/membership-bot/internal/gateway/telegram"
	"github.com/magabrotheeeer/membership-bot/internal/lib/sl"
	"github.com/magabrotheeeer/membership-bot/internal/lib/smtp"
	"github.com/magabrotheeeer/membership-bot/internal/notify"
	"github.com/magabrotheeeer/membership-bot/internal/rabbitmq"
	"github.com/magabrotheeeer/membership-bot/internal/supervisor"
)

// App процесс доставки уведомлений.
type App struct {
	conn   *amqp.Connection
	ch     *amqp.Channel
	relay  *notify.Relay
	logger *slog.Logger
}

// New подключается к брокеру и собирает каналы доставки.
func New(_ context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "notifier.New"
	if !cfg.RabbitMQ.Enabled() {
		return nil, fmt.Errorf("%s: RABBITMQ_URL is not set", op)
	}

	var api telegram.API
	if cfg.Telegram.Enabled() {
		bot, err := telegram.NewBotAPI(cfg.Telegram.BotToken, cfg.Telegram.APIURL)
		if err != nil {
			logger.Error("telegram bot unavailable, admin messages go to log", sl.Err(err))
		} else {
			api = bot
		}
	}
	tg := telegram.New(api, cfg.Telegram.GroupID, logger)

	logNotifier := notify.NewLogNotifier(logger)
	var mailer notify.Mailer = logNotifier
	if cfg.SMTP.Enabled() {
		mailer = notify.NewSMTPMailer(smtp.NewTransport(cfg.SMTP, logger), logger)
	}
	relay := notify.NewRelay(notify.Fallback{
		Primary:   notify.NewTelegramNotifier(tg, cfg.Telegram.AdminChatID, logger),
		Secondary: logNotifier,
	}, mailer, logger)

	conn, err := rabbitmq.Connect(cfg.RabbitMQ.URL, cfg.RabbitMQ.Retries, cfg.RabbitMQ.Delay)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetNotificationQueues())
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &App{conn: conn, ch: ch, relay: relay, logger: logger}, nil
}

// Run читает очереди до отмены ctx.
func (a *App) Run(ctx context.Context) error {
	sup := supervisor.New("notifier", a.logger, supervisor.DefaultSpec())
	sup.Add(rabbitmq.NewConsumerService(a.ch, rabbitmq.QueueAdmin, a.relay.HandleAdmin, a.logger))
	sup.Add(rabbitmq.NewConsumerService(a.ch, rabbitmq.QueueEmail, a.relay.HandleEmail, a.logger))

	err := sup.Serve(ctx)
	a.logger.Info("notifier shutting down gracefully")

	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", sl.Err(err))
	}
	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", sl.Err(err))
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
