// Package models содержит доменные структуры подписчика, тарифов и статусов,
// а также сообщения, которыми обмениваются сервисы через очередь.
package models

import (
	"errors"
	"strings"
	"time"
)

// ErrUnknownPlan возвращается, когда тариф не распознан.
var ErrUnknownPlan = errors.New("unknown plan")

// Plan тариф подписки.
type Plan string

const (
	// PlanMonthly месячная подписка.
	PlanMonthly Plan = "MONTHLY"
	// PlanAnnual годовая подписка.
	PlanAnnual Plan = "ANNUAL"
)

// ParsePlan нормализует название тарифа. YEARLY принимается как синоним ANNUAL.
func ParsePlan(s string) (Plan, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "MONTHLY":
		return PlanMonthly, nil
	case "ANNUAL", "YEARLY":
		return PlanAnnual, nil
	}
	return "", ErrUnknownPlan
}

// ExpiryFor считает дату окончания по календарю: +1 месяц или +1 год.
func ExpiryFor(plan Plan, start time.Time) (time.Time, error) {
	switch plan {
	case PlanMonthly:
		return start.AddDate(0, 1, 0), nil
	case PlanAnnual:
		return start.AddDate(1, 0, 0), nil
	}
	return time.Time{}, ErrUnknownPlan
}

// Status состояние доступа подписчика.
type Status string

const (
	// StatusActive доступ открыт.
	StatusActive Status = "ACTIVE"
	// StatusFrozen доступ ограничен.
	StatusFrozen Status = "FROZEN"
)

// Subscriber запись подписчика. Указатели означают NULL в базе.
type Subscriber struct {
	ID             string
	Email          string
	Phone          string
	TelegramNick   string
	DiscordNick    string
	BitgetUID      string
	TelegramUserID *int64
	DiscordUserID  *string
	VerifyCode     string
	Plan           *Plan
	StartDate      *time.Time
	ExpiresAt      *time.Time
	Status         Status
	LinkReminderAt *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// HasPlan сообщает, выбран ли тариф.
func (s *Subscriber) HasPlan() bool {
	return s.Plan != nil && *s.Plan != ""
}

// Expired возвращает true, если now строго позже даты окончания.
func (s *Subscriber) Expired(now time.Time) bool {
	return s.ExpiresAt != nil && now.After(*s.ExpiresAt)
}

// LinkedTelegram сообщает, привязан ли аккаунт Telegram.
func (s *Subscriber) LinkedTelegram() bool {
	return s.TelegramUserID != nil && *s.TelegramUserID != 0
}

// LinkedDiscord сообщает, привязан ли аккаунт Discord.
func (s *Subscriber) LinkedDiscord() bool {
	return s.DiscordUserID != nil && *s.DiscordUserID != ""
}

// ApplyPlan выставляет тариф, даты и активный статус.
func (s *Subscriber) ApplyPlan(plan Plan, start time.Time) error {
	expires, err := ExpiryFor(plan, start)
	if err != nil {
		return err
	}
	s.Plan = &plan
	s.StartDate = &start
	s.ExpiresAt = &expires
	s.Status = StatusActive
	return nil
}
