// Package discordbot обрабатывает команду !link в сообщениях гильдии.
package discordbot

import (
	"context"
	"errors"
	"log/slog"
	"regexp"

	"github.com/magabrotheeeer/membership-bot/internal/gateway/discord"
	"github.com/magabrotheeeer/membership-bot/internal/lib/sl"
	"github.com/magabrotheeeer/membership-bot/internal/models"
	"github.com/magabrotheeeer/membership-bot/internal/services/account"
)

const (
	invalidCodeText = "Invalid code."
	linkedText      = "Discord linked to your membership!"
	internalErrText = "Internal error, please try again later."
)

var linkCommand = regexp.MustCompile(`^\s*!link\s+(\S+)\s*$`)

// Accounts привязка Discord.
type Accounts interface {
	LinkDiscord(ctx context.Context, rawCode string, userID string) (*models.Subscriber, models.Outcome, error)
}

// Replier ответ на сообщение.
type Replier interface {
	Reply(ctx context.Context, channelID, messageID, text string) error
}

// Router обработчик сообщений Discord.
type Router struct {
	guildID  string
	accounts Accounts
	out      Replier
	log      *slog.Logger
}

// NewRouter создаёт обработчик. Сообщения из чужих гильдий игнорируются.
func NewRouter(guildID string, accounts Accounts, out Replier, log *slog.Logger) *Router {
	return &Router{guildID: guildID, accounts: accounts, out: out, log: log}
}

// HandleMessage подходит как discord.MessageHandler.
func (r *Router) HandleMessage(ctx context.Context, msg discord.Message) {
	if msg.Author.Bot || msg.GuildID != r.guildID {
		return
	}
	m := linkCommand.FindStringSubmatch(msg.Content)
	if m == nil {
		return
	}

	_, outcome, err := r.accounts.LinkDiscord(ctx, m[1], msg.Author.ID)
	switch {
	case errors.Is(err, account.ErrInvalidCode):
		r.reply(ctx, msg, invalidCodeText)
	case err != nil:
		r.log.Error("discord link failed", slog.String("user_id", msg.Author.ID), sl.Err(err))
		r.reply(ctx, msg, internalErrText)
	default:
		r.log.Info("discord account linked",
			slog.String("user_id", msg.Author.ID),
			slog.String("outcome", string(outcome)))
		r.reply(ctx, msg, linkedText)
	}
}

func (r *Router) reply(ctx context.Context, msg discord.Message, text string) {
	if err := r.out.Reply(ctx, msg.ChannelID, msg.ID, text); err != nil {
		r.log.Warn("failed to reply in discord", slog.String("channel_id", msg.ChannelID), sl.Err(err))
	}
}
