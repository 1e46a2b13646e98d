// Package breaker создаёт circuit breaker для вызовов внешних API.
package breaker

import (
	"errors"
	"log/slog"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/magabrotheeeer/membership-bot/internal/metrics"
)

// ErrRejected запрос отклонён открытым breaker.
var ErrRejected = errors.New("circuit breaker rejected request")

// Breaker circuit breaker с логированием и метриками.
type Breaker struct {
	cb *gobreaker.CircuitBreaker[any]
}

// New создаёт breaker. isSoft помечает ошибки, которые не считаются отказом
// сервиса (например, пользователь не состоит в группе).
func New(name string, log *slog.Logger, isSoft func(error) bool) *Breaker {
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || (isSoft != nil && isSoft(err))
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed",
				slog.String("name", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
		},
	})
	return &Breaker{cb: cb}
}

// Do выполняет fn через breaker.
func (b *Breaker) Do(fn func() error) error {
	_, err := b.cb.Execute(func() (any, error) {
		return nil, fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return errors.Join(ErrRejected, err)
	}
	return err
}

// State текущее состояние.
func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}

func stateToFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
