// Package lookup отдаёт карточку подписчика по email для администратора.
package lookup

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/membership-bot/internal/http/response"
	"github.com/magabrotheeeer/membership-bot/internal/lib/sl"
	"github.com/magabrotheeeer/membership-bot/internal/models"
	"github.com/magabrotheeeer/membership-bot/internal/services/subscription"
)

// Subscriber представление подписчика в ответе.
type Subscriber struct {
	ID             string     `json:"id"`
	Email          string     `json:"email"`
	Phone          string     `json:"phone"`
	TelegramNick   string     `json:"telegramNick"`
	DiscordNick    string     `json:"discordNick"`
	BitgetUID      string     `json:"bitgetUid"`
	TelegramLinked bool       `json:"telegramLinked"`
	DiscordLinked  bool       `json:"discordLinked"`
	VerifyCode     string     `json:"verifyCode"`
	Plan           string     `json:"plan,omitempty"`
	StartDate      *time.Time `json:"startDate,omitempty"`
	ExpiresAt      *time.Time `json:"expiresAt,omitempty"`
	Status         string     `json:"status"`
}

func fromModel(s *models.Subscriber) Subscriber {
	out := Subscriber{
		ID:             s.ID,
		Email:          s.Email,
		Phone:          s.Phone,
		TelegramNick:   s.TelegramNick,
		DiscordNick:    s.DiscordNick,
		BitgetUID:      s.BitgetUID,
		TelegramLinked: s.LinkedTelegram(),
		DiscordLinked:  s.LinkedDiscord(),
		VerifyCode:     s.VerifyCode,
		StartDate:      s.StartDate,
		ExpiresAt:      s.ExpiresAt,
		Status:         string(s.Status),
	}
	if s.HasPlan() {
		out.Plan = string(*s.Plan)
	}
	return out
}

// Service ищет подписчика.
type Service interface {
	Get(ctx context.Context, email string) (*models.Subscriber, error)
}

// Handler обработчик GET /admin/subscribers/{email}.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Найти подписчика
// @Tags Admin
// @Produce  json
// @Param X-Admin-Token header string true "Админский токен"
// @Param email path string true "Email подписчика"
// @Success 200 {object} response.Response{data=lookup.Subscriber}
// @Failure 401 {object} response.ErrorResponse "Неверный токен"
// @Failure 404 {object} response.ErrorResponse "Подписчик не найден"
// @Router /admin/subscribers/{email} [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.lookup"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	email := chi.URLParam(r, "email")
	sub, err := h.service.Get(r.Context(), email)
	if errors.Is(err, subscription.ErrNotFound) {
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, response.Error("subscriber not found"))
		return
	}
	if err != nil {
		log.Error("failed to get subscriber", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not get subscriber"))
		return
	}
	render.JSON(w, r, response.OKWithData(fromModel(sub)))
}
