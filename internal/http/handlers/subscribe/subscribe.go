// Package subscribe реализует HTTP-обработчик регистрации подписчика.
//
// Handler принимает JSON с данными подписчика, валидирует поля теми же правилами,
// что и мастер в Telegram, сохраняет подписчика по email и возвращает id и код привязки.
package subscribe

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/membership-bot/internal/http/response"
	"github.com/magabrotheeeer/membership-bot/internal/lib/sl"
	"github.com/magabrotheeeer/membership-bot/internal/lib/validate"
	"github.com/magabrotheeeer/membership-bot/internal/metrics"
	"github.com/magabrotheeeer/membership-bot/internal/models"
)

// Request тело запроса на регистрацию.
type Request struct {
	Phone        string `json:"phone" validate:"required,phone" example:"+393331234567"`
	TelegramNick string `json:"telegramNick" validate:"required,handle" example:"@trader_01"`
	DiscordNick  string `json:"discordNick" validate:"required,handle" example:"@trader_01"`
	BitgetUID    string `json:"bitgetUid" validate:"required,bitgetuid" example:"1234567890"`
	Email        string `json:"email" validate:"required,email" example:"mario@example.it"`
	Plan         string `json:"plan,omitempty" validate:"omitempty,plan" example:"MONTHLY"`
}

// Created данные ответа 201.
type Created struct {
	ID         string `json:"id"`
	VerifyCode string `json:"verifyCode"`
}

// Service регистрирует подписчика.
type Service interface {
	Register(ctx context.Context, sub *models.Subscriber) (id string, verifyCode string, err error)
}

// Handler обработчик POST /api/subscribe.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
	now      func() time.Time
}

// New создает Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validate.NewValidator(),
		now:      time.Now,
	}
}

// ServeHTTP godoc
// @Summary Зарегистрировать подписчика
// @Description Создает или обновляет подписчика по email. Возвращает id и код привязки для /link и !link.
// @Tags Subscribers
// @Accept  json
// @Produce  json
// @Param request body subscribe.Request true "Данные подписчика"
// @Success 201 {object} response.Response{data=subscribe.Created}
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON или ошибка валидации"
// @Failure 429 {object} response.ErrorResponse "Слишком много запросов"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /api/subscribe [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscribe"
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

	if err := h.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			log.Error("validation failed", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("invalid request"))
			return
		}
		log.Info("validation failed", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.ValidationError(verrs))
		return
	}

	sub := &models.Subscriber{
		Email:        req.Email,
		Phone:        req.Phone,
		TelegramNick: req.TelegramNick,
		DiscordNick:  req.DiscordNick,
		BitgetUID:    req.BitgetUID,
		Status:       models.StatusActive,
	}
	if req.Plan != "" {
		plan, err := models.ParsePlan(req.Plan)
		if err == nil {
			err = sub.ApplyPlan(plan, h.now())
		}
		if err != nil {
			log.Info("invalid plan", slog.String("plan", req.Plan))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("invalid plan"))
			return
		}
	}

	id, code, err := h.service.Register(r.Context(), sub)
	if err != nil {
		log.Error("failed to register subscriber", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not register subscriber"))
		return
	}

	metrics.Registrations.WithLabelValues("http").Inc()
	log.Info("subscriber registered", slog.String("id", id))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.OKWithData(Created{ID: id, VerifyCode: code}))
}
