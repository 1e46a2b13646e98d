// Package tgbot разбирает обновления Telegram: команды, шаги мастера
// регистрации и нажатия кнопок выбора тарифа.
package tgbot

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/magabrotheeeer/membership-bot/internal/gateway/telegram"
	"github.com/magabrotheeeer/membership-bot/internal/lib/sl"
	"github.com/magabrotheeeer/membership-bot/internal/metrics"
	"github.com/magabrotheeeer/membership-bot/internal/models"
	"github.com/magabrotheeeer/membership-bot/internal/services/account"
	"github.com/magabrotheeeer/membership-bot/internal/services/wizard"
)

const (
	linkUsageText    = "Usage: /link CODE"
	invalidCodeText  = "Invalid code."
	linkedText       = "Telegram linked to your membership!"
	notRegisteredTxt = "You are not registered yet. Send /start to register."
	internalErrText  = "Internal error, please try again later."
	unknownCmdText   = "Unknown command. Available: /start, /restart, /status, /link CODE"
)

// Wizard мастер регистрации.
type Wizard interface {
	Start(ctx context.Context, chatID int64) (wizard.Reply, error)
	Restart(ctx context.Context, chatID int64) (wizard.Reply, error)
	HandleText(ctx context.Context, chatID, userID int64, text string) (wizard.Reply, bool, error)
	SelectPlan(ctx context.Context, chatID, userID int64, rawPlan string) (wizard.Reply, error)
}

// Accounts привязка и статус.
type Accounts interface {
	LinkTelegram(ctx context.Context, rawCode string, userID int64) (*models.Subscriber, models.Outcome, error)
	Status(ctx context.Context, telegramUserID int64) (*models.Subscriber, error)
}

// Messenger отправка ответов.
type Messenger interface {
	SendText(ctx context.Context, chatID int64, text string) error
	SendPlanChoice(ctx context.Context, chatID int64, text string) error
	AnswerCallback(ctx context.Context, callbackID, text string) error
}

// Router обработчик обновлений.
type Router struct {
	wizard   Wizard
	accounts Accounts
	out      Messenger
	log      *slog.Logger
}

// NewRouter создаёт обработчик.
func NewRouter(w Wizard, accounts Accounts, out Messenger, log *slog.Logger) *Router {
	return &Router{wizard: w, accounts: accounts, out: out, log: log}
}

// HandleUpdate обрабатывает одно обновление. Ошибки логируются и не прерывают поллинг.
func (r *Router) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	switch {
	case upd.CallbackQuery != nil:
		r.handleCallback(ctx, upd.CallbackQuery)
	case upd.Message != nil:
		r.handleMessage(ctx, upd.Message)
	}
}

func (r *Router) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	// в группе бот только ограничивает права, диалог ведётся в личке
	if msg.Chat == nil || !msg.Chat.IsPrivate() || msg.From == nil {
		return
	}
	chatID, userID := msg.Chat.ID, msg.From.ID

	if msg.IsCommand() {
		switch msg.Command() {
		case "start":
			reply, err := r.wizard.Start(ctx, chatID)
			r.sendWizardReply(ctx, chatID, reply, err)
		case "restart":
			reply, err := r.wizard.Restart(ctx, chatID)
			r.sendWizardReply(ctx, chatID, reply, err)
		case "status":
			r.handleStatus(ctx, chatID, userID)
		case "link":
			r.handleLink(ctx, chatID, userID, msg.CommandArguments())
		default:
			r.send(ctx, chatID, unknownCmdText)
		}
		return
	}

	reply, handled, err := r.wizard.HandleText(ctx, chatID, userID, msg.Text)
	if !handled && err == nil {
		return
	}
	r.sendWizardReply(ctx, chatID, reply, err)
}

func (r *Router) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if cb.From == nil || cb.Message == nil || cb.Message.Chat == nil {
		return
	}
	if err := r.out.AnswerCallback(ctx, cb.ID, ""); err != nil {
		r.log.Warn("failed to answer callback", sl.Err(err))
	}
	if !strings.HasPrefix(cb.Data, telegram.CallbackPlanPrefix) {
		return
	}

	chatID := cb.Message.Chat.ID
	reply, err := r.wizard.SelectPlan(ctx, chatID, cb.From.ID, strings.TrimPrefix(cb.Data, telegram.CallbackPlanPrefix))
	r.sendWizardReply(ctx, chatID, reply, err)
}

func (r *Router) handleStatus(ctx context.Context, chatID, userID int64) {
	sub, err := r.accounts.Status(ctx, userID)
	switch {
	case errors.Is(err, account.ErrNotRegistered):
		r.send(ctx, chatID, notRegisteredTxt)
	case err != nil:
		r.log.Error("status lookup failed", slog.Int64("user_id", userID), sl.Err(err))
		r.send(ctx, chatID, internalErrText)
	default:
		r.send(ctx, chatID, account.FormatStatus(sub))
	}
}

func (r *Router) handleLink(ctx context.Context, chatID, userID int64, args string) {
	code := strings.TrimSpace(args)
	if code == "" {
		r.send(ctx, chatID, linkUsageText)
		return
	}
	_, _, err := r.accounts.LinkTelegram(ctx, code, userID)
	switch {
	case errors.Is(err, account.ErrInvalidCode):
		r.send(ctx, chatID, invalidCodeText)
	case err != nil:
		r.log.Error("telegram link failed", slog.Int64("user_id", userID), sl.Err(err))
		r.send(ctx, chatID, internalErrText)
	default:
		r.send(ctx, chatID, linkedText)
	}
}

func (r *Router) sendWizardReply(ctx context.Context, chatID int64, reply wizard.Reply, err error) {
	if err != nil {
		r.log.Error("wizard step failed", slog.Int64("chat_id", chatID), sl.Err(err))
		r.send(ctx, chatID, internalErrText)
		return
	}
	if reply.Done {
		metrics.Registrations.WithLabelValues("wizard").Inc()
	}
	if reply.AskPlan {
		if err := r.out.SendPlanChoice(ctx, chatID, reply.Text); err != nil {
			r.log.Error("failed to send plan choice", slog.Int64("chat_id", chatID), sl.Err(err))
		}
		return
	}
	r.send(ctx, chatID, reply.Text)
}

func (r *Router) send(ctx context.Context, chatID int64, text string) {
	if text == "" {
		return
	}
	if err := r.out.SendText(ctx, chatID, text); err != nil {
		r.log.Error("failed to send message", slog.Int64("chat_id", chatID), sl.Err(err))
	}
}
