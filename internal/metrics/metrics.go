// Package metrics содержит prometheus-метрики сервиса.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ReconcileTicks число выполненных проходов сверки.
	ReconcileTicks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "membership_reconcile_ticks_total",
			Help: "Total number of reconciliation ticks",
		},
	)

	// ReconcileDuration длительность прохода сверки.
	ReconcileDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "membership_reconcile_duration_seconds",
			Help:    "Duration of reconciliation ticks in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// ReconcileRecords записи, обработанные сверкой, по результату.
	ReconcileRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "membership_reconcile_records_total",
			Help: "Subscriber records processed by reconciliation",
		},
		[]string{"result"}, // frozen, unfrozen, backfilled, reminded, failed
	)

	// GatewayCalls вызовы шлюзов по платформе, действию и исходу.
	GatewayCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "membership_gateway_calls_total",
			Help: "Gateway calls by platform, action and outcome",
		},
		[]string{"gateway", "action", "outcome"},
	)

	// CircuitBreakerState 0 closed, 1 half-open, 2 open.
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "membership_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	// Registrations завершённые регистрации по источнику.
	Registrations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "membership_registrations_total",
			Help: "Completed subscriber registrations",
		},
		[]string{"source"}, // wizard, http
	)

	// Links успешные и неуспешные привязки аккаунтов.
	Links = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "membership_links_total",
			Help: "Link handshake attempts",
		},
		[]string{"platform", "result"},
	)

	// Notifications административные уведомления по каналу доставки.
	Notifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "membership_admin_notifications_total",
			Help: "Administrative notifications by delivery channel and result",
		},
		[]string{"channel", "result"},
	)
)
