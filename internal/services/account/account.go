// Package account связывает аккаунты Telegram и Discord с подписчиком по коду
// и отдаёт сведения о подписке.
package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/magabrotheeeer/membership-bot/internal/metrics"
	"github.com/magabrotheeeer/membership-bot/internal/models"
	"github.com/magabrotheeeer/membership-bot/internal/storage/repository"
)

var (
	// ErrInvalidCode код не найден или не подходит по формату.
	ErrInvalidCode = errors.New("invalid link code")
	// ErrNotRegistered аккаунт Telegram не привязан ни к одному подписчику.
	ErrNotRegistered = errors.New("account not registered")
)

var codePattern = regexp.MustCompile(`^[A-Za-z0-9]{6,8}$`)

// NormalizeCode проверяет формат кода и приводит его к верхнему регистру.
func NormalizeCode(raw string) (string, bool) {
	c := strings.TrimSpace(raw)
	if !codePattern.MatchString(c) {
		return "", false
	}
	return strings.ToUpper(c), true
}

// Repository доступ к подписчикам.
type Repository interface {
	FindByVerifyCode(ctx context.Context, code string) (*models.Subscriber, error)
	FindByTelegramUserID(ctx context.Context, telegramUserID int64) (*models.Subscriber, error)
	SetTelegramUserID(ctx context.Context, id string, telegramUserID int64) error
	SetDiscordUserID(ctx context.Context, id string, discordUserID string) error
}

// TelegramGateway ограничение доступа в группе Telegram.
type TelegramGateway interface {
	Restrict(ctx context.Context, userID int64) models.Outcome
	Unrestrict(ctx context.Context, userID int64) models.Outcome
}

// DiscordGateway переключение ролей в Discord.
type DiscordGateway interface {
	Freeze(ctx context.Context, userID string) models.Outcome
	Unfreeze(ctx context.Context, userID string) models.Outcome
}

// Service привязка аккаунтов.
type Service struct {
	repo     Repository
	telegram TelegramGateway
	discord  DiscordGateway
	log      *slog.Logger
}

// New создаёт сервис.
func New(repo Repository, telegram TelegramGateway, discord DiscordGateway, log *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		telegram: telegram,
		discord:  discord,
		log:      log,
	}
}

// LinkTelegram привязывает аккаунт Telegram и сразу применяет текущий статус в группе.
func (s *Service) LinkTelegram(ctx context.Context, rawCode string, userID int64) (*models.Subscriber, models.Outcome, error) {
	const op = "account.LinkTelegram"

	sub, err := s.find(ctx, rawCode, "telegram")
	if err != nil {
		return nil, models.OutcomeSkipped, fmt.Errorf("%s: %w", op, err)
	}
	if err := s.repo.SetTelegramUserID(ctx, sub.ID, userID); err != nil {
		metrics.Links.WithLabelValues("telegram", "error").Inc()
		return nil, models.OutcomeSkipped, fmt.Errorf("%s: %w", op, err)
	}
	sub.TelegramUserID = &userID
	metrics.Links.WithLabelValues("telegram", "linked").Inc()

	outcome := models.OutcomeSkipped
	switch {
	case sub.Status == models.StatusFrozen:
		outcome = s.telegram.Restrict(ctx, userID)
	case sub.HasPlan():
		outcome = s.telegram.Unrestrict(ctx, userID)
	}
	s.log.Info("telegram account linked",
		slog.String("subscriber_id", sub.ID),
		slog.Int64("telegram_user_id", userID),
		slog.String("outcome", string(outcome)))
	return sub, outcome, nil
}

// LinkDiscord привязывает аккаунт Discord и сразу выставляет роли по статусу.
func (s *Service) LinkDiscord(ctx context.Context, rawCode string, userID string) (*models.Subscriber, models.Outcome, error) {
	const op = "account.LinkDiscord"

	sub, err := s.find(ctx, rawCode, "discord")
	if err != nil {
		return nil, models.OutcomeSkipped, fmt.Errorf("%s: %w", op, err)
	}
	if err := s.repo.SetDiscordUserID(ctx, sub.ID, userID); err != nil {
		metrics.Links.WithLabelValues("discord", "error").Inc()
		return nil, models.OutcomeSkipped, fmt.Errorf("%s: %w", op, err)
	}
	sub.DiscordUserID = &userID
	metrics.Links.WithLabelValues("discord", "linked").Inc()

	outcome := models.OutcomeSkipped
	switch {
	case sub.Status == models.StatusFrozen:
		outcome = s.discord.Freeze(ctx, userID)
	case sub.HasPlan():
		outcome = s.discord.Unfreeze(ctx, userID)
	}
	s.log.Info("discord account linked",
		slog.String("subscriber_id", sub.ID),
		slog.String("discord_user_id", userID),
		slog.String("outcome", string(outcome)))
	return sub, outcome, nil
}

func (s *Service) find(ctx context.Context, rawCode, platform string) (*models.Subscriber, error) {
	code, ok := NormalizeCode(rawCode)
	if !ok {
		metrics.Links.WithLabelValues(platform, "invalid").Inc()
		return nil, ErrInvalidCode
	}
	sub, err := s.repo.FindByVerifyCode(ctx, code)
	if errors.Is(err, repository.ErrSubscriberNotFound) {
		metrics.Links.WithLabelValues(platform, "invalid").Inc()
		return nil, ErrInvalidCode
	}
	if err != nil {
		metrics.Links.WithLabelValues(platform, "error").Inc()
		return nil, err
	}
	return sub, nil
}

// Status возвращает подписку, привязанную к аккаунту Telegram.
func (s *Service) Status(ctx context.Context, telegramUserID int64) (*models.Subscriber, error) {
	const op = "account.Status"

	sub, err := s.repo.FindByTelegramUserID(ctx, telegramUserID)
	if errors.Is(err, repository.ErrSubscriberNotFound) {
		return nil, fmt.Errorf("%s: %w", op, ErrNotRegistered)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return sub, nil
}

// FormatStatus текст ответа на /status.
func FormatStatus(sub *models.Subscriber) string {
	plan := "not selected"
	if sub.HasPlan() {
		plan = string(*sub.Plan)
	}
	expires := "-"
	if sub.ExpiresAt != nil {
		expires = sub.ExpiresAt.Format("2006-01-02")
	}
	return fmt.Sprintf("Email: %s\nPlan: %s\nExpires: %s\nStatus: %s\nCode: %s",
		sub.Email, plan, expires, sub.Status, sub.VerifyCode)
}
