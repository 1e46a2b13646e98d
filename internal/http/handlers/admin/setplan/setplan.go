// Package setplan реализует админский HTTP-обработчик назначения тарифа.
package setplan

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/membership-bot/internal/http/response"
	"github.com/magabrotheeeer/membership-bot/internal/lib/sl"
	"github.com/magabrotheeeer/membership-bot/internal/models"
	"github.com/magabrotheeeer/membership-bot/internal/services/subscription"
)

// Request тело запроса. StartDate в RFC3339 или 2006-01-02, по умолчанию сейчас.
type Request struct {
	Email     string `json:"email" example:"mario@example.it"`
	Plan      string `json:"plan" example:"ANNUAL"`
	StartDate string `json:"startDate,omitempty" example:"2025-01-31"`
}

// Result ответ 200.
type Result struct {
	OK        bool      `json:"ok"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Service назначает тариф.
type Service interface {
	SetPlan(ctx context.Context, email string, plan models.Plan, start *time.Time) (*models.Subscriber, error)
}

// Handler обработчик POST /admin/set-plan. Токен проверяет middleware.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

func parseStartDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ServeHTTP godoc
// @Summary Назначить тариф
// @Description Выставляет тариф, дату начала и окончания, делает подписчика активным.
// @Tags Admin
// @Accept  json
// @Produce  json
// @Param X-Admin-Token header string true "Админский токен"
// @Param request body setplan.Request true "Email, тариф и дата начала"
// @Success 200 {object} setplan.Result
// @Failure 400 {object} response.ErrorResponse "Нет email или тарифа, неверная дата"
// @Failure 401 {object} response.ErrorResponse "Неверный токен"
// @Failure 404 {object} response.ErrorResponse "Подписчик не найден"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /admin/set-plan [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.setplan"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}
	if strings.TrimSpace(req.Email) == "" || strings.TrimSpace(req.Plan) == "" {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("email and plan are required"))
		return
	}

	plan, err := models.ParsePlan(req.Plan)
	if err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("plan must be MONTHLY or ANNUAL"))
		return
	}
	start, err := parseStartDate(req.StartDate)
	if err != nil {
		log.Info("invalid start date", slog.String("start_date", req.StartDate))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("startDate must be RFC3339 or YYYY-MM-DD"))
		return
	}

	sub, err := h.service.SetPlan(r.Context(), req.Email, plan, start)
	if errors.Is(err, subscription.ErrNotFound) {
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, response.Error("subscriber not found"))
		return
	}
	if err != nil {
		log.Error("failed to set plan", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not set plan"))
		return
	}

	var expires time.Time
	if sub.ExpiresAt != nil {
		expires = *sub.ExpiresAt
	}
	log.Info("plan updated", slog.String("id", sub.ID), slog.String("plan", string(plan)))
	render.JSON(w, r, Result{OK: true, ExpiresAt: expires})
}
