package discordbot

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/membership-bot/internal/gateway/discord"
	"github.com/magabrotheeeer/membership-bot/internal/models"
	"github.com/magabrotheeeer/membership-bot/internal/services/account"
)

type MockAccounts struct {
	mock.Mock
}

func (m *MockAccounts) LinkDiscord(ctx context.Context, rawCode string, userID string) (*models.Subscriber, models.Outcome, error) {
	args := m.Called(ctx, rawCode, userID)
	if args.Get(0) == nil {
		return nil, args.Get(1).(models.Outcome), args.Error(2)
	}
	return args.Get(0).(*models.Subscriber), args.Get(1).(models.Outcome), args.Error(2)
}

type MockReplier struct {
	mock.Mock
}

func (m *MockReplier) Reply(ctx context.Context, channelID, messageID, text string) error {
	return m.Called(ctx, channelID, messageID, text).Error(0)
}

func setup() (*Router, *MockAccounts, *MockReplier) {
	acc := new(MockAccounts)
	out := new(MockReplier)
	log := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
	return NewRouter("guild-1", acc, out, log), acc, out
}

func message(content string) discord.Message {
	return discord.Message{
		ID:        "m1",
		ChannelID: "c1",
		GuildID:   "guild-1",
		Content:   content,
		Author:    discord.Author{ID: "u1"},
	}
}

func TestRouter_Link(t *testing.T) {
	tests := []struct {
		name     string
		linkErr  error
		wantText string
	}{
		{name: "linked", wantText: linkedText},
		{name: "unknown code", linkErr: account.ErrInvalidCode, wantText: invalidCodeText},
		{name: "store failure", linkErr: errors.New("db down"), wantText: internalErrText},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, acc, out := setup()
			ctx := context.Background()

			if tt.linkErr != nil {
				acc.On("LinkDiscord", ctx, "ABC123", "u1").Return(nil, models.OutcomeSkipped, tt.linkErr)
			} else {
				acc.On("LinkDiscord", ctx, "ABC123", "u1").Return(&models.Subscriber{ID: "s1"}, models.OutcomeOK, nil)
			}
			out.On("Reply", ctx, "c1", "m1", tt.wantText).Return(nil)

			r.HandleMessage(ctx, message("!link ABC123"))

			acc.AssertExpectations(t)
			out.AssertExpectations(t)
		})
	}
}

func TestRouter_Ignored(t *testing.T) {
	bot := message("!link ABC123")
	bot.Author.Bot = true
	otherGuild := message("!link ABC123")
	otherGuild.GuildID = "guild-2"

	tests := []struct {
		name string
		msg  discord.Message
	}{
		{name: "bot author", msg: bot},
		{name: "other guild", msg: otherGuild},
		{name: "plain chat", msg: message("hello everyone")},
		{name: "missing code", msg: message("!link")},
		{name: "extra words", msg: message("!link ABC123 please")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, acc, out := setup()

			r.HandleMessage(context.Background(), tt.msg)

			acc.AssertNotCalled(t, "LinkDiscord", mock.Anything, mock.Anything, mock.Anything)
			out.AssertNotCalled(t, "Reply", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestRouter_ReplyErrorIsSwallowed(t *testing.T) {
	r, acc, out := setup()
	ctx := context.Background()

	acc.On("LinkDiscord", ctx, "ABC123", "u1").Return(nil, models.OutcomeSkipped, account.ErrInvalidCode)
	out.On("Reply", ctx, "c1", "m1", invalidCodeText).Return(errors.New("rate limited"))

	r.HandleMessage(ctx, message("!link ABC123"))

	out.AssertExpectations(t)
}
