package membership

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/magabrotheeeer/membership-bot/internal/http/handlers/admin/lookup"
	"github.com/magabrotheeeer/membership-bot/internal/http/handlers/admin/setplan"
	"github.com/magabrotheeeer/membership-bot/internal/http/handlers/health"
	"github.com/magabrotheeeer/membership-bot/internal/http/handlers/subscribe"
	"github.com/magabrotheeeer/membership-bot/internal/http/middlewarectx"
)

// Subscriptions сервис, которым пользуются HTTP-обработчики.
type Subscriptions interface {
	subscribe.Service
	setplan.Service
	lookup.Service
}

// RouteDeps зависимости маршрутов.
type RouteDeps struct {
	Log           *slog.Logger
	Subscriptions Subscriptions
	DB            health.Pinger
	AdminToken    string
	Limiter       *middlewarectx.IPRateLimiter
}

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, d RouteDeps) {
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
	)

	r.Get("/health", health.Live)
	r.Get("/healthz", health.Live)
	r.Get("/readyz", health.NewReady(d.Log, d.DB).ServeHTTP)

	r.Route("/api", func(r chi.Router) {
		r.Use(middlewarectx.RateLimitMiddleware(d.Limiter, d.Log))
		r.Post("/subscribe", subscribe.New(d.Log, d.Subscriptions).ServeHTTP)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(middlewarectx.AdminTokenMiddleware(d.AdminToken, d.Log))
		r.Post("/set-plan", setplan.New(d.Log, d.Subscriptions).ServeHTTP)
		r.Get("/subscribers/{email}", lookup.New(d.Log, d.Subscriptions).ServeHTTP)
	})

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
