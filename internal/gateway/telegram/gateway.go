// Package telegram реализует шлюз к Telegram Bot API: ограничение и снятие
// ограничений в группе, повторный вход по ссылке-приглашению и отправку сообщений.
package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/magabrotheeeer/membership-bot/internal/lib/breaker"
	"github.com/magabrotheeeer/membership-bot/internal/lib/sl"
	"github.com/magabrotheeeer/membership-bot/internal/metrics"
	"github.com/magabrotheeeer/membership-bot/internal/models"
)

// Callback data кнопок выбора тарифа.
const (
	CallbackPlanMonthly = "PLAN:MONTHLY"
	CallbackPlanAnnual  = "PLAN:ANNUAL"
	CallbackPlanPrefix  = "PLAN:"
)

// API часть tgbotapi.BotAPI, которой пользуется шлюз.
type API interface {
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Alerter отправляет сообщение администратору.
type Alerter interface {
	Notify(ctx context.Context, text string) error
}

// Gateway шлюз Telegram. Нулевой api или groupID выключают операции с группой.
type Gateway struct {
	api     API
	groupID int64
	log     *slog.Logger
	breaker *breaker.Breaker
	alerter Alerter
}

// New создаёт шлюз. api может быть nil, тогда все операции пропускаются.
func New(api API, groupID int64, log *slog.Logger) *Gateway {
	return &Gateway{
		api:     api,
		groupID: groupID,
		log:     log,
		breaker: breaker.New("telegram-api", log, isSoftError),
	}
}

// NewBotAPI подключается к Bot API. endpoint пустой - используется api.telegram.org.
func NewBotAPI(token, endpoint string) (*tgbotapi.BotAPI, error) {
	const op = "telegram.NewBotAPI"

	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	bot, err := tgbotapi.NewBotAPIWithClient(token, endpoint, &http.Client{})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return bot, nil
}

// SetAlerter задаёт канал для сообщений об ошибках.
func (g *Gateway) SetAlerter(a Alerter) {
	g.alerter = a
}

// Enabled сообщает, может ли шлюз отправлять сообщения.
func (g *Gateway) Enabled() bool {
	return g.api != nil
}

func (g *Gateway) groupEnabled() bool {
	return g.api != nil && g.groupID != 0
}

// isSoftError ошибки Bot API уровня запроса (400/403), а не отказа сервиса.
func isSoftError(err error) bool {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusBadRequest || apiErr.Code == http.StatusForbidden
	}
	return false
}

func (g *Gateway) request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	var resp *tgbotapi.APIResponse
	err := g.breaker.Do(func() error {
		var err error
		resp, err = g.api.Request(c)
		return err
	})
	return resp, err
}

func (g *Gateway) send(c tgbotapi.Chattable) error {
	return g.breaker.Do(func() error {
		_, err := g.api.Send(c)
		return err
	})
}

func restrictedPermissions() *tgbotapi.ChatPermissions {
	return &tgbotapi.ChatPermissions{}
}

// memberPermissions права обычного участника: без смены описания и закрепления.
func memberPermissions() *tgbotapi.ChatPermissions {
	return &tgbotapi.ChatPermissions{
		CanSendMessages:       true,
		CanSendMediaMessages:  true,
		CanSendPolls:          true,
		CanSendOtherMessages:  true,
		CanAddWebPagePreviews: true,
		CanChangeInfo:         false,
		CanInviteUsers:        true,
		CanPinMessages:        false,
	}
}

// Restrict снимает с пользователя все права в группе.
func (g *Gateway) Restrict(ctx context.Context, userID int64) models.Outcome {
	return g.setPermissions(ctx, "restrict", userID, restrictedPermissions())
}

// Unrestrict возвращает пользователю права обычного участника.
func (g *Gateway) Unrestrict(ctx context.Context, userID int64) models.Outcome {
	return g.setPermissions(ctx, "unrestrict", userID, memberPermissions())
}

func (g *Gateway) setPermissions(ctx context.Context, action string, userID int64, perms *tgbotapi.ChatPermissions) models.Outcome {
	const op = "telegram.setPermissions"

	if !g.groupEnabled() || userID == 0 {
		return g.record(action, models.OutcomeSkipped)
	}

	_, err := g.request(tgbotapi.RestrictChatMemberConfig{
		ChatMemberConfig: tgbotapi.ChatMemberConfig{ChatID: g.groupID, UserID: userID},
		Permissions:      perms,
	})
	if err != nil {
		g.fail(ctx, op, action, userID, err)
		return g.record(action, models.OutcomeFailed)
	}
	return g.record(action, models.OutcomeOK)
}

// Readmit снимает бан (если он есть), создаёт одноразовую ссылку-приглашение
// и отправляет её пользователю в личные сообщения.
func (g *Gateway) Readmit(ctx context.Context, userID int64) models.Outcome {
	const op = "telegram.Readmit"
	const action = "readmit"

	if !g.groupEnabled() || userID == 0 {
		return g.record(action, models.OutcomeSkipped)
	}

	_, err := g.request(tgbotapi.UnbanChatMemberConfig{
		ChatMemberConfig: tgbotapi.ChatMemberConfig{ChatID: g.groupID, UserID: userID},
		OnlyIfBanned:     true,
	})
	if err != nil {
		g.fail(ctx, op, action, userID, err)
		return g.record(action, models.OutcomeFailed)
	}

	resp, err := g.request(tgbotapi.CreateChatInviteLinkConfig{
		ChatConfig:  tgbotapi.ChatConfig{ChatID: g.groupID},
		MemberLimit: 1,
	})
	if err != nil {
		g.fail(ctx, op, action, userID, err)
		return g.record(action, models.OutcomeFailed)
	}

	var link tgbotapi.ChatInviteLink
	if err := json.Unmarshal(resp.Result, &link); err != nil || link.InviteLink == "" {
		g.fail(ctx, op, action, userID, fmt.Errorf("invalid invite link response: %w", err))
		return g.record(action, models.OutcomeFailed)
	}

	text := "Your subscription has been reactivated.\nJoin the group again: " + link.InviteLink
	if err := g.send(tgbotapi.NewMessage(userID, text)); err != nil {
		g.fail(ctx, op, action, userID, err)
		return g.record(action, models.OutcomeFailed)
	}
	return g.record(action, models.OutcomeOK)
}

// SendText отправляет текстовое сообщение в чат.
func (g *Gateway) SendText(_ context.Context, chatID int64, text string) error {
	const op = "telegram.SendText"

	if g.api == nil {
		return nil
	}
	if err := g.send(tgbotapi.NewMessage(chatID, text)); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// SendPlanChoice отправляет сообщение с двумя кнопками выбора тарифа.
func (g *Gateway) SendPlanChoice(_ context.Context, chatID int64, text string) error {
	const op = "telegram.SendPlanChoice"

	if g.api == nil {
		return nil
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Monthly", CallbackPlanMonthly),
			tgbotapi.NewInlineKeyboardButtonData("Annual", CallbackPlanAnnual),
		),
	)
	if err := g.send(msg); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// AnswerCallback подтверждает нажатие inline-кнопки.
func (g *Gateway) AnswerCallback(_ context.Context, callbackID, text string) error {
	const op = "telegram.AnswerCallback"

	if g.api == nil {
		return nil
	}
	if _, err := g.request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (g *Gateway) record(action string, outcome models.Outcome) models.Outcome {
	metrics.GatewayCalls.WithLabelValues("telegram", action, string(outcome)).Inc()
	return outcome
}

// fail логирует ошибку и пересылает её администратору.
func (g *Gateway) fail(ctx context.Context, op, action string, userID int64, err error) {
	g.log.Error("telegram call failed",
		slog.String("op", op),
		slog.String("action", action),
		slog.Int64("user_id", userID),
		sl.Err(err))

	if g.alerter == nil {
		return
	}
	text := fmt.Sprintf("Telegram %s failed for user %s: %v", action, strconv.FormatInt(userID, 10), err)
	if aerr := g.alerter.Notify(ctx, text); aerr != nil {
		g.log.Warn("failed to alert admin", sl.Err(aerr))
	}
}
