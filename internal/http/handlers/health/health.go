// Package health содержит проверки живости и готовности сервиса.
package health

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/render"

	"github.com/magabrotheeeer/membership-bot/internal/http/response"
	"github.com/magabrotheeeer/membership-bot/internal/lib/sl"
)

const readyTimeout = 2 * time.Second

// Live отвечает 200 ok, пока процесс обслуживает запросы.
func Live(w http.ResponseWriter, r *http.Request) {
	render.PlainText(w, r, "ok")
}

// Pinger проверка доступности хранилища.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ReadyHandler обработчик GET /readyz.
type ReadyHandler struct {
	log *slog.Logger
	db  Pinger
}

// NewReady создает ReadyHandler.
func NewReady(log *slog.Logger, db Pinger) *ReadyHandler {
	return &ReadyHandler{log: log, db: db}
}

func (h *ReadyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		h.log.Warn("readiness check failed", sl.Err(err))
		render.Status(r, http.StatusServiceUnavailable)
		render.JSON(w, r, response.Error("database unavailable"))
		return
	}
	render.JSON(w, r, response.OKWithData(map[string]any{"database": "ok"}))
}
