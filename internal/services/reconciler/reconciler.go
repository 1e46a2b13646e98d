// Package reconciler сверяет сроки подписок с доступом в Telegram и Discord.
// За один проход: дозаполняет дату окончания, замораживает истёкших,
// размораживает продлённых и напоминает о непривязанных аккаунтах.
package reconciler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/magabrotheeeer/membership-bot/internal/lib/sl"
	"github.com/magabrotheeeer/membership-bot/internal/metrics"
	"github.com/magabrotheeeer/membership-bot/internal/models"
	"github.com/magabrotheeeer/membership-bot/internal/notify"
)

// Repository доступ к подписчикам.
type Repository interface {
	ListAll(ctx context.Context) ([]models.Subscriber, error)
	SetExpiresAt(ctx context.Context, id string, expiresAt time.Time) error
	SetStatus(ctx context.Context, id string, status models.Status) error
	MarkLinkReminded(ctx context.Context, id string, at time.Time) error
}

// TelegramGateway ограничение доступа в группе Telegram.
type TelegramGateway interface {
	Restrict(ctx context.Context, userID int64) models.Outcome
	Unrestrict(ctx context.Context, userID int64) models.Outcome
	Readmit(ctx context.Context, userID int64) models.Outcome
}

// DiscordGateway переключение ролей в Discord.
type DiscordGateway interface {
	Freeze(ctx context.Context, userID string) models.Outcome
	Unfreeze(ctx context.Context, userID string) models.Outcome
}

// Config настройки сверки.
type Config struct {
	Interval time.Duration
	// DailyAt HH:MM; если задано, проход выполняется раз в сутки в Location.
	DailyAt  string
	Location *time.Location
	// Readmit при разморозке разбанить и отправить одноразовую ссылку.
	Readmit bool
	// ReminderEvery минимальный интервал между напоминаниями; 0 отключает их.
	ReminderEvery time.Duration
}

// Summary итог одного прохода.
type Summary struct {
	Scanned    int
	Backfilled int
	Frozen     int
	Unfrozen   int
	Reminded   int
	Failed     int
}

// Reconciler задача сверки. Реализует suture.Service.
type Reconciler struct {
	repo     Repository
	telegram TelegramGateway
	discord  DiscordGateway
	notifier notify.Notifier
	mailer   notify.Mailer
	cfg      Config
	log      *slog.Logger
	now      func() time.Time
}

// New создаёт задачу сверки. mailer может быть nil.
func New(repo Repository, telegram TelegramGateway, discord DiscordGateway,
	notifier notify.Notifier, mailer notify.Mailer, cfg Config, log *slog.Logger,
) *Reconciler {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Reconciler{
		repo:     repo,
		telegram: telegram,
		discord:  discord,
		notifier: notifier,
		mailer:   mailer,
		cfg:      cfg,
		log:      log,
		now:      time.Now,
	}
}

// Serve запускает проходы по расписанию до отмены ctx.
func (r *Reconciler) Serve(ctx context.Context) error {
	const op = "reconciler.Serve"

	if r.cfg.DailyAt != "" {
		if _, _, err := ParseDailyAt(r.cfg.DailyAt); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		return r.serveDaily(ctx)
	}
	return r.serveInterval(ctx)
}

func (r *Reconciler) String() string {
	return "reconciler"
}

func (r *Reconciler) serveInterval(ctx context.Context) error {
	interval := r.cfg.Interval
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	r.log.Info("reconciler started", slog.Duration("interval", interval))

	r.runLogged(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.runLogged(ctx)
		}
	}
}

func (r *Reconciler) serveDaily(ctx context.Context) error {
	for {
		next, err := NextDailyRun(r.now(), r.cfg.DailyAt, r.cfg.Location)
		if err != nil {
			return err
		}
		r.log.Info("next reconciliation scheduled", slog.Time("at", next))

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			r.runLogged(ctx)
		}
	}
}

func (r *Reconciler) runLogged(ctx context.Context) {
	if _, err := r.RunOnce(ctx); err != nil {
		r.log.Error("reconciliation tick failed", sl.Err(err))
	}
}

// RunOnce выполняет один проход и пишет итог в лог.
func (r *Reconciler) RunOnce(ctx context.Context) (Summary, error) {
	start := time.Now()
	summary, err := r.Tick(ctx)
	metrics.ReconcileTicks.Inc()
	metrics.ReconcileDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return summary, err
	}
	r.log.Info("reconciliation tick finished",
		slog.Int("scanned", summary.Scanned),
		slog.Int("backfilled", summary.Backfilled),
		slog.Int("frozen", summary.Frozen),
		slog.Int("unfrozen", summary.Unfrozen),
		slog.Int("reminded", summary.Reminded),
		slog.Int("failed", summary.Failed),
		slog.Duration("took", time.Since(start)))
	return summary, nil
}

// Tick один проход по всем подписчикам. Ошибка одной записи не прерывает проход.
func (r *Reconciler) Tick(ctx context.Context) (Summary, error) {
	const op = "reconciler.Tick"

	var summary Summary
	subs, err := r.repo.ListAll(ctx)
	if err != nil {
		return summary, fmt.Errorf("%s: %w", op, err)
	}

	now := r.now()
	for i := range subs {
		if ctx.Err() != nil {
			return summary, fmt.Errorf("%s: %w", op, ctx.Err())
		}
		summary.Scanned++
		if err := r.reconcile(ctx, &subs[i], now, &summary); err != nil {
			summary.Failed++
			metrics.ReconcileRecords.WithLabelValues("failed").Inc()
			r.log.Error("failed to reconcile subscriber",
				slog.String("subscriber_id", subs[i].ID),
				slog.String("email", subs[i].Email),
				sl.Err(err))
		}
	}
	return summary, nil
}

func (r *Reconciler) reconcile(ctx context.Context, sub *models.Subscriber, now time.Time, summary *Summary) error {
	if sub.HasPlan() && sub.ExpiresAt == nil {
		start := sub.CreatedAt
		if sub.StartDate != nil {
			start = *sub.StartDate
		}
		expires, err := models.ExpiryFor(*sub.Plan, start)
		if err != nil {
			return fmt.Errorf("backfill: %w", err)
		}
		if err := r.repo.SetExpiresAt(ctx, sub.ID, expires); err != nil {
			return fmt.Errorf("backfill: %w", err)
		}
		sub.ExpiresAt = &expires
		summary.Backfilled++
		metrics.ReconcileRecords.WithLabelValues("backfilled").Inc()
	}

	if !sub.HasPlan() || sub.ExpiresAt == nil {
		return nil
	}

	expired := sub.Expired(now)
	switch {
	case expired && sub.Status != models.StatusFrozen:
		if err := r.freeze(ctx, sub); err != nil {
			return err
		}
		summary.Frozen++
		metrics.ReconcileRecords.WithLabelValues("frozen").Inc()
	case !expired && sub.Status == models.StatusFrozen:
		if err := r.unfreeze(ctx, sub); err != nil {
			return err
		}
		summary.Unfrozen++
		metrics.ReconcileRecords.WithLabelValues("unfrozen").Inc()
	}

	reminded, err := r.remind(ctx, sub, now)
	if err != nil {
		return err
	}
	if reminded {
		summary.Reminded++
		metrics.ReconcileRecords.WithLabelValues("reminded").Inc()
	}
	return nil
}

// outcomes исходы вызовов шлюзов по одной записи.
type outcomes struct {
	discord  models.Outcome
	telegram models.Outcome
	readmit  models.Outcome
}

func (o outcomes) String() string {
	s := fmt.Sprintf("discord: %s, telegram: %s", o.discord, o.telegram)
	if o.readmit != "" {
		s += fmt.Sprintf(", readmit: %s", o.readmit)
	}
	return s
}

// callGateways вызывает оба шлюза параллельно. Без привязанного id вызов не делается.
func (r *Reconciler) callGateways(sub *models.Subscriber, discord func(string) models.Outcome, telegram func(int64) models.Outcome) outcomes {
	res := outcomes{discord: models.OutcomeSkipped, telegram: models.OutcomeSkipped}

	var wg sync.WaitGroup
	if sub.LinkedDiscord() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res.discord = discord(*sub.DiscordUserID)
		}()
	}
	if sub.LinkedTelegram() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res.telegram = telegram(*sub.TelegramUserID)
		}()
	}
	wg.Wait()
	return res
}

func (r *Reconciler) freeze(ctx context.Context, sub *models.Subscriber) error {
	res := r.callGateways(sub,
		func(id string) models.Outcome { return r.discord.Freeze(ctx, id) },
		func(id int64) models.Outcome { return r.telegram.Restrict(ctx, id) },
	)
	if err := r.repo.SetStatus(ctx, sub.ID, models.StatusFrozen); err != nil {
		return fmt.Errorf("freeze: %w", err)
	}
	sub.Status = models.StatusFrozen

	r.log.Info("subscriber frozen", slog.String("email", sub.Email), slog.String("outcomes", res.String()))
	r.notify(ctx, fmt.Sprintf("Freeze %s (%s)", sub.Email, res))
	r.email(ctx, notify.FrozenEmail(sub))
	return nil
}

func (r *Reconciler) unfreeze(ctx context.Context, sub *models.Subscriber) error {
	res := r.callGateways(sub,
		func(id string) models.Outcome { return r.discord.Unfreeze(ctx, id) },
		func(id int64) models.Outcome { return r.telegram.Unrestrict(ctx, id) },
	)
	if r.cfg.Readmit && sub.LinkedTelegram() {
		res.readmit = r.telegram.Readmit(ctx, *sub.TelegramUserID)
	}
	if err := r.repo.SetStatus(ctx, sub.ID, models.StatusActive); err != nil {
		return fmt.Errorf("unfreeze: %w", err)
	}
	sub.Status = models.StatusActive

	r.log.Info("subscriber unfrozen", slog.String("email", sub.Email), slog.String("outcomes", res.String()))
	r.notify(ctx, fmt.Sprintf("Unfreeze %s (%s)", sub.Email, res))
	r.email(ctx, notify.ReactivatedEmail(sub))
	return nil
}

// remind напоминает администратору о непривязанных аккаунтах не чаще ReminderEvery.
func (r *Reconciler) remind(ctx context.Context, sub *models.Subscriber, now time.Time) (bool, error) {
	if r.cfg.ReminderEvery <= 0 || sub.Status != models.StatusActive {
		return false, nil
	}
	if sub.LinkedDiscord() && sub.LinkedTelegram() {
		return false, nil
	}
	if sub.LinkReminderAt != nil && now.Sub(*sub.LinkReminderAt) < r.cfg.ReminderEvery {
		return false, nil
	}

	if err := r.repo.MarkLinkReminded(ctx, sub.ID, now); err != nil {
		return false, fmt.Errorf("remind: %w", err)
	}
	sub.LinkReminderAt = &now
	r.notify(ctx, fmt.Sprintf("%s has an active plan but missing links: discord=%t telegram=%t",
		sub.Email, sub.LinkedDiscord(), sub.LinkedTelegram()))
	return true, nil
}

func (r *Reconciler) notify(ctx context.Context, text string) {
	if r.notifier == nil {
		return
	}
	if err := r.notifier.Notify(ctx, text); err != nil {
		r.log.Warn("failed to notify admin", sl.Err(err))
	}
}

func (r *Reconciler) email(ctx context.Context, msg models.EmailNotification) {
	if r.mailer == nil || msg.To == "" {
		return
	}
	if err := r.mailer.SendEmail(ctx, msg); err != nil {
		r.log.Warn("failed to send subscriber email", slog.String("to", msg.To), sl.Err(err))
	}
}
