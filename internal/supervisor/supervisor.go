// Package supervisor собирает долгоживущие компоненты процесса в дерево suture
// и оборачивает HTTP-сервер в suture.Service.
package supervisor

import (
	"log/slog"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"
)

// Spec параметры перезапуска.
type Spec struct {
	FailureThreshold float64
	FailureDecay     float64
	FailureBackoff   time.Duration
	ShutdownTimeout  time.Duration
}

// DefaultSpec значения по умолчанию.
func DefaultSpec() Spec {
	return Spec{
		FailureThreshold: 5,
		FailureDecay:     30,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	}
}

// New создаёт корневой супервизор, события которого пишутся в log.
func New(name string, log *slog.Logger, spec Spec) *suture.Supervisor {
	hook := (&sutureslog.Handler{Logger: log}).MustHook()
	return suture.New(name, suture.Spec{
		EventHook:        hook,
		FailureThreshold: spec.FailureThreshold,
		FailureDecay:     spec.FailureDecay,
		FailureBackoff:   spec.FailureBackoff,
		Timeout:          spec.ShutdownTimeout,
	})
}
