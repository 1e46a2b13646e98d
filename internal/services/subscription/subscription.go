// Package subscription содержит бизнес-логику регистрации подписчиков и
// назначения тарифа: генерацию уникального кода привязки, расчёт дат
// и кеширование карточки подписчика.
package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/membership-bot/internal/lib/code"
	"github.com/magabrotheeeer/membership-bot/internal/lib/sl"
	"github.com/magabrotheeeer/membership-bot/internal/lib/validate"
	"github.com/magabrotheeeer/membership-bot/internal/models"
	"github.com/magabrotheeeer/membership-bot/internal/storage/repository"
)

// MaxCodeAttempts число попыток сгенерировать незанятый код.
const MaxCodeAttempts = 5

const cacheTTL = time.Minute

var (
	// ErrCodeExhausted все попытки сгенерировать уникальный код исчерпаны.
	ErrCodeExhausted = errors.New("verify code attempts exhausted")
	// ErrNotFound подписчик с таким email не найден.
	ErrNotFound = errors.New("subscriber not found")
)

// Repository определяет методы хранилища подписчиков.
type Repository interface {
	UpsertByEmail(ctx context.Context, sub *models.Subscriber) (id string, verifyCode string, err error)
	FindByEmail(ctx context.Context, email string) (*models.Subscriber, error)
	SetPlan(ctx context.Context, email string, plan models.Plan, start, expiresAt time.Time) (*models.Subscriber, error)
}

// Cache описывает методы для кэширования данных.
type Cache interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Invalidate(ctx context.Context, key string) error
}

// Service регистрация и тарифы. cache может быть nil.
type Service struct {
	repo    Repository
	cache   Cache
	log     *slog.Logger
	newCode code.Generator
	now     func() time.Time
}

// New создает сервис.
func New(repo Repository, cache Cache, log *slog.Logger) *Service {
	return &Service{
		repo:    repo,
		cache:   cache,
		log:     log,
		newCode: code.New,
		now:     time.Now,
	}
}

func cacheKey(email string) string {
	return "subscriber:" + email
}

// Register сохраняет подписчика по email. При конфликте кода генерирует новый,
// не более MaxCodeAttempts раз. Возвращает id и действующий код привязки.
func (s *Service) Register(ctx context.Context, sub *models.Subscriber) (string, string, error) {
	const op = "subscription.Register"

	sub.Email = validate.NormalizeEmail(sub.Email)
	for attempt := 1; attempt <= MaxCodeAttempts; attempt++ {
		c, err := s.newCode()
		if err != nil {
			return "", "", fmt.Errorf("%s: %w", op, err)
		}
		sub.VerifyCode = c

		id, storedCode, err := s.repo.UpsertByEmail(ctx, sub)
		if errors.Is(err, repository.ErrVerifyCodeConflict) {
			s.log.Warn("verify code collision, regenerating", slog.Int("attempt", attempt))
			continue
		}
		if err != nil {
			return "", "", fmt.Errorf("%s: %w", op, err)
		}
		s.invalidate(ctx, sub.Email)
		s.log.Info("subscriber registered", slog.String("id", id))
		return id, storedCode, nil
	}
	return "", "", fmt.Errorf("%s: %w", op, ErrCodeExhausted)
}

// SetPlan назначает тариф с даты start (nil означает сейчас) и делает подписчика активным.
func (s *Service) SetPlan(ctx context.Context, email string, plan models.Plan, start *time.Time) (*models.Subscriber, error) {
	const op = "subscription.SetPlan"

	from := s.now()
	if start != nil {
		from = *start
	}
	expires, err := models.ExpiryFor(plan, from)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	email = validate.NormalizeEmail(email)
	sub, err := s.repo.SetPlan(ctx, email, plan, from, expires)
	if errors.Is(err, repository.ErrSubscriberNotFound) {
		return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.invalidate(ctx, email)
	s.log.Info("plan set",
		slog.String("id", sub.ID),
		slog.String("plan", string(plan)),
		slog.Time("expires_at", expires))
	return sub, nil
}

// Get возвращает подписчика по email, сначала пытаясь взять его из кеша.
func (s *Service) Get(ctx context.Context, email string) (*models.Subscriber, error) {
	const op = "subscription.Get"

	email = validate.NormalizeEmail(email)
	if s.cache != nil {
		var cached models.Subscriber
		found, err := s.cache.Get(ctx, cacheKey(email), &cached)
		if err != nil {
			s.log.Warn("cache read failed", slog.String("email", email), sl.Err(err))
		}
		if found {
			return &cached, nil
		}
	}

	sub, err := s.repo.FindByEmail(ctx, email)
	if errors.Is(err, repository.ErrSubscriberNotFound) {
		return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey(email), sub, cacheTTL); err != nil {
			s.log.Warn("cache write failed", slog.String("email", email), sl.Err(err))
		}
	}
	return sub, nil
}

func (s *Service) invalidate(ctx context.Context, email string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, cacheKey(email)); err != nil {
		s.log.Warn("cache invalidate failed", slog.String("email", email), sl.Err(err))
	}
}
