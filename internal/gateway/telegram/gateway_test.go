package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/membership-bot/internal/models"
)

type MockAPI struct {
	mock.Mock
}

func (m *MockAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	args := m.Called(c)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*tgbotapi.APIResponse), args.Error(1)
}

func (m *MockAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	args := m.Called(c)
	return tgbotapi.Message{}, args.Error(0)
}

type MockAlerter struct {
	mock.Mock
}

func (m *MockAlerter) Notify(ctx context.Context, text string) error {
	args := m.Called(ctx, text)
	return args.Error(0)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

const groupID = int64(-100123)

func TestGateway_Restrict(t *testing.T) {
	api := new(MockAPI)
	gw := New(api, groupID, newNoopLogger())

	api.On("Request", mock.MatchedBy(func(c tgbotapi.RestrictChatMemberConfig) bool {
		p := c.Permissions
		return c.ChatID == groupID && c.UserID == 42 &&
			!p.CanSendMessages && !p.CanSendMediaMessages && !p.CanSendPolls &&
			!p.CanSendOtherMessages && !p.CanAddWebPagePreviews &&
			!p.CanChangeInfo && !p.CanInviteUsers && !p.CanPinMessages
	})).Return(&tgbotapi.APIResponse{Ok: true}, nil).Once()

	assert.Equal(t, models.OutcomeOK, gw.Restrict(context.Background(), 42))
	api.AssertExpectations(t)
}

func TestGateway_Unrestrict(t *testing.T) {
	api := new(MockAPI)
	gw := New(api, groupID, newNoopLogger())

	api.On("Request", mock.MatchedBy(func(c tgbotapi.RestrictChatMemberConfig) bool {
		p := c.Permissions
		return c.UserID == 42 &&
			p.CanSendMessages && p.CanSendMediaMessages && p.CanSendPolls &&
			p.CanSendOtherMessages && p.CanAddWebPagePreviews && p.CanInviteUsers &&
			!p.CanChangeInfo && !p.CanPinMessages
	})).Return(&tgbotapi.APIResponse{Ok: true}, nil).Once()

	assert.Equal(t, models.OutcomeOK, gw.Unrestrict(context.Background(), 42))
	api.AssertExpectations(t)
}

func TestGateway_SkippedWithoutIDOrGroup(t *testing.T) {
	api := new(MockAPI)

	assert.Equal(t, models.OutcomeSkipped, New(api, groupID, newNoopLogger()).Restrict(context.Background(), 0))
	assert.Equal(t, models.OutcomeSkipped, New(api, 0, newNoopLogger()).Unrestrict(context.Background(), 42))
	assert.Equal(t, models.OutcomeSkipped, New(nil, groupID, newNoopLogger()).Restrict(context.Background(), 42))
	api.AssertNotCalled(t, "Request", mock.Anything)
}

func TestGateway_FailureIsOutcomeAndAlerts(t *testing.T) {
	api := new(MockAPI)
	alerter := new(MockAlerter)
	gw := New(api, groupID, newNoopLogger())
	gw.SetAlerter(alerter)

	notMember := &tgbotapi.Error{Code: http.StatusBadRequest, Message: "Bad Request: user not found"}
	api.On("Request", mock.Anything).Return(nil, notMember).Once()
	alerter.On("Notify", mock.Anything, mock.MatchedBy(func(text string) bool {
		return strings.Contains(text, "restrict") && strings.Contains(text, "42")
	})).Return(nil).Once()

	assert.Equal(t, models.OutcomeFailed, gw.Restrict(context.Background(), 42))
	alerter.AssertExpectations(t)
}

func TestGateway_AlerterErrorIsSwallowed(t *testing.T) {
	api := new(MockAPI)
	alerter := new(MockAlerter)
	gw := New(api, groupID, newNoopLogger())
	gw.SetAlerter(alerter)

	api.On("Request", mock.Anything).Return(nil, errors.New("timeout")).Once()
	alerter.On("Notify", mock.Anything, mock.Anything).Return(errors.New("also down")).Once()

	assert.Equal(t, models.OutcomeFailed, gw.Unrestrict(context.Background(), 7))
}

func TestGateway_Readmit(t *testing.T) {
	api := new(MockAPI)
	gw := New(api, groupID, newNoopLogger())

	link, err := json.Marshal(tgbotapi.ChatInviteLink{InviteLink: "https://t.me/+abc"})
	require.NoError(t, err)

	api.On("Request", mock.MatchedBy(func(c tgbotapi.UnbanChatMemberConfig) bool {
		return c.UserID == 42 && c.OnlyIfBanned
	})).Return(&tgbotapi.APIResponse{Ok: true}, nil).Once()
	api.On("Request", mock.MatchedBy(func(c tgbotapi.CreateChatInviteLinkConfig) bool {
		return c.ChatID == groupID && c.MemberLimit == 1
	})).Return(&tgbotapi.APIResponse{Ok: true, Result: link}, nil).Once()
	api.On("Send", mock.MatchedBy(func(c tgbotapi.MessageConfig) bool {
		return c.ChatID == 42 && strings.Contains(c.Text, "https://t.me/+abc")
	})).Return(nil).Once()

	assert.Equal(t, models.OutcomeOK, gw.Readmit(context.Background(), 42))
	api.AssertExpectations(t)
}

func TestGateway_SendPlanChoice(t *testing.T) {
	api := new(MockAPI)
	gw := New(api, groupID, newNoopLogger())

	api.On("Send", mock.MatchedBy(func(c tgbotapi.MessageConfig) bool {
		kb, ok := c.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
		if !ok || len(kb.InlineKeyboard) != 1 || len(kb.InlineKeyboard[0]) != 2 {
			return false
		}
		row := kb.InlineKeyboard[0]
		return *row[0].CallbackData == CallbackPlanMonthly && *row[1].CallbackData == CallbackPlanAnnual
	})).Return(nil).Once()

	require.NoError(t, gw.SendPlanChoice(context.Background(), 1, "Choose your plan:"))
	api.AssertExpectations(t)
}

func TestGateway_DisabledSendIsNoop(t *testing.T) {
	gw := New(nil, 0, newNoopLogger())

	assert.False(t, gw.Enabled())
	assert.NoError(t, gw.SendText(context.Background(), 1, "hi"))
	assert.NoError(t, gw.AnswerCallback(context.Background(), "cb", ""))
}

// fakeBotServer имитирует Bot API: getMe и restrictChatMember.
func fakeBotServer(t *testing.T, restrictOK bool) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/getMe"):
			fmt.Fprint(w, `{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"bot","username":"member_bot"}}`)
		case strings.HasSuffix(r.URL.Path, "/restrictChatMember"):
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "42", r.Form.Get("user_id"))
			if restrictOK {
				fmt.Fprint(w, `{"ok":true,"result":true}`)
				return
			}
			fmt.Fprint(w, `{"ok":false,"error_code":400,"description":"Bad Request: user not found"}`)
		default:
			http.NotFound(w, r)
		}
	}))
}

func TestGateway_AgainstBotAPIServer(t *testing.T) {
	tests := []struct {
		name string
		ok   bool
		want models.Outcome
	}{
		{name: "member restricted", ok: true, want: models.OutcomeOK},
		{name: "user not in group", ok: false, want: models.OutcomeFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := fakeBotServer(t, tt.ok)
			defer srv.Close()

			bot, err := NewBotAPI("123:abc", srv.URL+"/bot%s/%s")
			require.NoError(t, err)
			assert.Equal(t, "member_bot", bot.Self.UserName)

			gw := New(bot, groupID, newNoopLogger())
			assert.Equal(t, tt.want, gw.Restrict(context.Background(), 42))
		})
	}
}
