// Package membership собирает основной процесс: хранилище, шлюзы Telegram и
// Discord, мастер регистрации, сверку подписок и HTTP API.
package membership

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/streadway/amqp"
	"github.com/thejerf/suture/v4"

	_ "github.com/magabrotheeeer/membership-bot/docs"
	"github.com/magabrotheeeer/membership-bot/internal/bot/discordbot"
	"github.com/magabrotheeeer/membership-bot/internal/bot/tgbot"
	"github.com/magabrotheeeer/membership-bot/internal/cache"
	"github.com/magabrotheeeer/membership-bot/internal/config"
	"github.com/magabrotheeeer/membership-bot/internal/gateway/discord"
	"github.com/magabrotheeeer/membership-bot/internal/gateway/telegram"
	"github.com/magabrotheeeer/membership-bot/internal/http/middlewarectx"
	"github.com/magabrotheeeer/membership-bot/internal/lib/sl"
	"github.com/magabrotheeeer/membership-bot/internal/lib/smtp"
	"github.com/magabrotheeeer/membership-bot/internal/migrations"
	"github.com/magabrotheeeer/membership-bot/internal/notify"
	"github.com/magabrotheeeer/membership-bot/internal/rabbitmq"
	"github.com/magabrotheeeer/membership-bot/internal/services/account"
	"github.com/magabrotheeeer/membership-bot/internal/services/reconciler"
	"github.com/magabrotheeeer/membership-bot/internal/services/subscription"
	"github.com/magabrotheeeer/membership-bot/internal/services/wizard"
	"github.com/magabrotheeeer/membership-bot/internal/storage/repository"
	"github.com/magabrotheeeer/membership-bot/internal/supervisor"
)

// App основной процесс.
type App struct {
	cfg        *config.Config
	log        *slog.Logger
	db         *repository.Storage
	cache      *cache.Cache
	amqpConn   *amqp.Connection
	amqpCh     *amqp.Channel
	reconciler *reconciler.Reconciler
	poller     *tgbot.Poller
	services   []suture.Service
}

// New подключается к хранилищу и собирает все компоненты. Необязательные
// интеграции без настроек превращаются в no-op.
func New(ctx context.Context, cfg *config.Config, log *slog.Logger) (*App, error) {
	const op = "membership.New"
	a := &App{cfg: cfg, log: log}

	db, err := repository.Connect(ctx, cfg.Database.URL, cfg.Database.ConnectRetries, cfg.Database.ConnectDelay, log)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	a.db = db

	if err := migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		a.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if cfg.Redis.Enabled() {
		c, err := cache.InitServer(ctx, cfg.Redis)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		a.cache = c
	}

	bot := a.connectTelegram()
	var api telegram.API
	if bot != nil {
		api = bot
	}
	tg := telegram.New(api, cfg.Telegram.GroupID, log.With(slog.String("component", "telegram")))
	dc := discord.NewClient(cfg.Discord, log.With(slog.String("component", "discord")))

	direct, directMail := directChannels(cfg, tg, log)
	notifier, mailer := direct, directMail
	if cfg.RabbitMQ.Enabled() {
		if err := a.connectRabbitMQ(); err != nil {
			a.Close()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		queue := notify.NewQueueNotifier(a.amqpCh, log)
		notifier = notify.Fallback{Primary: queue, Secondary: direct}
		mailer = queue
	}
	tg.SetAlerter(notifier)

	loc, err := cfg.Reconcile.Location()
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	a.reconciler = reconciler.New(db, tg, dc, notifier, mailer, reconciler.Config{
		Interval:      cfg.Reconcile.Interval,
		DailyAt:       cfg.Reconcile.DailyAt,
		Location:      loc,
		Readmit:       cfg.Telegram.Readmit,
		ReminderEvery: cfg.Reconcile.LinkReminderEvery,
	}, log.With(slog.String("component", "reconciler")))

	var subsCache subscription.Cache
	var sessions wizard.SessionStore = wizard.NewMemoryStore()
	if a.cache != nil {
		subsCache = a.cache
		sessions = wizard.NewRedisStore(a.cache, cfg.Wizard.SessionTTL)
	}
	subs := subscription.New(db, subsCache, log)
	accounts := account.New(db, tg, dc, log)

	router := chi.NewRouter()
	RegisterRoutes(router, RouteDeps{
		Log:           log,
		Subscriptions: subs,
		DB:            db,
		AdminToken:    cfg.AdminToken,
		Limiter:       middlewarectx.NewIPRateLimiter(cfg.HTTPServer.RateLimit, cfg.HTTPServer.RateBurst),
	})
	srv := &http.Server{
		Addr:         cfg.HTTPServer.Address(),
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.TimeoutHTTP,
		WriteTimeout: cfg.HTTPServer.TimeoutHTTP,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}
	a.services = append(a.services, supervisor.NewHTTPService(srv, srv.Addr, 0, log), a.reconciler)

	if bot != nil {
		wiz := wizard.New(subs, sessions, wizard.Config{HasPlanStep: cfg.Wizard.HasPlanStep}, log)
		a.poller = tgbot.NewPoller(bot, tgbot.NewRouter(wiz, accounts, tg, log))
		a.services = append(a.services, a.poller)
	} else {
		log.Warn("telegram bot disabled")
	}

	if cfg.Discord.Enabled() {
		dr := discordbot.NewRouter(cfg.Discord.GuildID, accounts, dc, log)
		a.services = append(a.services, discord.NewListener(cfg.Discord.GatewayURL, cfg.Discord.BotToken, dr.HandleMessage, log))
	} else {
		log.Warn("discord bot disabled")
	}

	if a.amqpCh != nil && cfg.RabbitMQ.Consume {
		relay := notify.NewRelay(direct, directMail, log)
		a.services = append(a.services,
			rabbitmq.NewConsumerService(a.amqpCh, rabbitmq.QueueAdmin, relay.HandleAdmin, log),
			rabbitmq.NewConsumerService(a.amqpCh, rabbitmq.QueueEmail, relay.HandleEmail, log),
		)
	}

	return a, nil
}

// directChannels уведомления без очереди: админ-чат Telegram с запасным логом
// и SMTP, если он настроен, иначе лог.
func directChannels(cfg *config.Config, tg *telegram.Gateway, log *slog.Logger) (notify.Notifier, notify.Mailer) {
	logNotifier := notify.NewLogNotifier(log)
	notifier := notify.Fallback{
		Primary:   notify.NewTelegramNotifier(tg, cfg.Telegram.AdminChatID, log),
		Secondary: logNotifier,
	}
	if cfg.SMTP.Enabled() {
		return notifier, notify.NewSMTPMailer(smtp.NewTransport(cfg.SMTP, log), log)
	}
	return notifier, logNotifier
}

func (a *App) connectTelegram() *tgbotapi.BotAPI {
	if !a.cfg.Telegram.Enabled() {
		return nil
	}
	bot, err := telegram.NewBotAPI(a.cfg.Telegram.BotToken, a.cfg.Telegram.APIURL)
	if err != nil {
		a.log.Error("telegram bot unavailable, continuing without it", sl.Err(err))
		return nil
	}
	a.log.Info("telegram bot authorized", slog.String("username", bot.Self.UserName))
	return bot
}

func (a *App) connectRabbitMQ() error {
	conn, err := rabbitmq.Connect(a.cfg.RabbitMQ.URL, a.cfg.RabbitMQ.Retries, a.cfg.RabbitMQ.Delay)
	if err != nil {
		return err
	}
	a.amqpConn = conn
	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetNotificationQueues())
	if err != nil {
		return err
	}
	a.amqpCh = ch
	return nil
}

// Run запускает все сервисы под супервизором и блокируется до отмены ctx.
func (a *App) Run(ctx context.Context) error {
	defer a.Close()

	sup := supervisor.New("membership", a.log, supervisor.DefaultSpec())
	for _, svc := range a.services {
		sup.Add(svc)
	}
	if err := sup.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// RunOnce выполняет один проход сверки без запуска сервисов.
func (a *App) RunOnce(ctx context.Context) (reconciler.Summary, error) {
	return a.reconciler.RunOnce(ctx)
}

// Close освобождает соединения.
func (a *App) Close() {
	if a.poller != nil {
		a.poller.Stop()
	}
	if a.amqpCh != nil {
		if err := a.amqpCh.Close(); err != nil {
			a.log.Warn("failed to close amqp channel", sl.Err(err))
		}
	}
	if a.amqpConn != nil {
		if err := a.amqpConn.Close(); err != nil {
			a.log.Warn("failed to close amqp connection", sl.Err(err))
		}
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.log.Warn("failed to close redis", sl.Err(err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.Warn("failed to close database", sl.Err(err))
		}
	}
}
