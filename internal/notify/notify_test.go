package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/textproto"
	"testing"

	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/membership-bot/internal/lib/smtp"
	"github.com/magabrotheeeer/membership-bot/internal/models"
	"github.com/magabrotheeeer/membership-bot/internal/rabbitmq"
)

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

type MockSender struct {
	mock.Mock
}

func (m *MockSender) SendText(ctx context.Context, chatID int64, text string) error {
	args := m.Called(ctx, chatID, text)
	return args.Error(0)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	args := m.Called(exchange, key, mandatory, immediate, msg)
	return args.Error(0)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, text string) error {
	args := m.Called(ctx, text)
	return args.Error(0)
}

type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) SendEmail(ctx context.Context, msg models.EmailNotification) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

type MockTransport struct {
	mock.Mock
}

func (m *MockTransport) Connect() (smtp.Client, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(smtp.Client), args.Error(1)
}

func (m *MockTransport) Sender() string {
	return m.Called().String(0)
}

type MockSMTPClient struct {
	mock.Mock
}

func (m *MockSMTPClient) Mail(from string) error { return m.Called(from).Error(0) }
func (m *MockSMTPClient) Rcpt(to string) error { return m.Called(to).Error(0) }
func (m *MockSMTPClient) Quit() error { return m.Called().Error(0) }
func (m *MockSMTPClient) Close() error { return m.Called().Error(0) }

func (m *MockSMTPClient) Data() (io.WriteCloser, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.WriteCloser), args.Error(1)
}

type bufferWriter struct {
	data   []byte
	closed bool
}

func (b *bufferWriter) Write(p []byte) (int, error) {
	b.data = append(b.data, p...)
	return len(p), nil
}

func (b *bufferWriter) Close() error {
	b.closed = true
	return nil
}

func TestTelegramNotifier(t *testing.T) {
	t.Run("sends to admin chat", func(t *testing.T) {
		sender := new(MockSender)
		sender.On("SendText", mock.Anything, int64(-500), "hello").Return(nil).Once()

		require.NoError(t, NewTelegramNotifier(sender, -500, newNoopLogger()).Notify(context.Background(), "hello"))
		sender.AssertExpectations(t)
	})

	t.Run("no admin chat logs only", func(t *testing.T) {
		sender := new(MockSender)

		require.NoError(t, NewTelegramNotifier(sender, 0, newNoopLogger()).Notify(context.Background(), "hello"))
		sender.AssertNotCalled(t, "SendText", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("send error is returned", func(t *testing.T) {
		sender := new(MockSender)
		sender.On("SendText", mock.Anything, int64(-500), "hello").Return(errors.New("blocked")).Once()

		err := NewTelegramNotifier(sender, -500, newNoopLogger()).Notify(context.Background(), "hello")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "blocked")
	})
}

func TestQueueNotifier(t *testing.T) {
	pub := new(MockPublisher)
	q := NewQueueNotifier(pub, newNoopLogger())

	pub.On("Publish", rabbitmq.Exchange, rabbitmq.RoutingAdmin, false, false, mock.MatchedBy(func(p amqp.Publishing) bool {
		var n models.AdminNotification
		return json.Unmarshal(p.Body, &n) == nil && n.Text == "frozen"
	})).Return(nil).Once()
	pub.On("Publish", rabbitmq.Exchange, rabbitmq.RoutingEmail, false, false, mock.MatchedBy(func(p amqp.Publishing) bool {
		var n models.EmailNotification
		return json.Unmarshal(p.Body, &n) == nil && n.To == "a@b.io"
	})).Return(nil).Once()

	require.NoError(t, q.Notify(context.Background(), "frozen"))
	require.NoError(t, q.SendEmail(context.Background(), models.EmailNotification{To: "a@b.io"}))
	pub.AssertExpectations(t)
}

func TestFallback(t *testing.T) {
	primary := new(MockNotifier)
	secondary := new(MockNotifier)
	primary.On("Notify", mock.Anything, "x").Return(errors.New("down")).Once()
	secondary.On("Notify", mock.Anything, "x").Return(nil).Once()

	require.NoError(t, Fallback{Primary: primary, Secondary: secondary}.Notify(context.Background(), "x"))
	secondary.AssertExpectations(t)
}

func TestSMTPMailer_SendEmail(t *testing.T) {
	tests := []struct {
		name       string
		setupMocks func(*MockTransport, *MockSMTPClient, *bufferWriter)
		wantErr    string
	}{
		{
			name: "success",
			setupMocks: func(tr *MockTransport, c *MockSMTPClient, w *bufferWriter) {
				tr.On("Sender").Return("bot@example.com")
				tr.On("Connect").Return(c, nil).Once()
				c.On("Mail", "bot@example.com").Return(nil).Once()
				c.On("Rcpt", "a@b.io").Return(nil).Once()
				c.On("Data").Return(w, nil).Once()
				c.On("Quit").Return(nil).Once()
				c.On("Close").Return(nil).Once()
			},
		},
		{
			name: "connect error",
			setupMocks: func(tr *MockTransport, _ *MockSMTPClient, _ *bufferWriter) {
				tr.On("Sender").Return("bot@example.com")
				tr.On("Connect").Return(nil, errors.New("connection refused")).Once()
			},
			wantErr: "connection refused",
		},
		{
			name: "recipient rejected",
			setupMocks: func(tr *MockTransport, c *MockSMTPClient, _ *bufferWriter) {
				tr.On("Sender").Return("bot@example.com")
				tr.On("Connect").Return(c, nil).Once()
				c.On("Mail", "bot@example.com").Return(nil).Once()
				c.On("Rcpt", "a@b.io").Return(errors.New("550 no such user")).Once()
				c.On("Close").Return(nil).Once()
			},
			wantErr: "rcpt to",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := new(MockTransport)
			client := new(MockSMTPClient)
			w := &bufferWriter{}
			tt.setupMocks(tr, client, w)

			err := NewSMTPMailer(tr, newNoopLogger()).SendEmail(context.Background(),
				models.EmailNotification{To: "a@b.io", Subject: "Subj", Body: "Body"})

			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.True(t, w.closed)
			assert.Contains(t, string(w.data), "Subject: Subj\r\n")
			assert.Contains(t, string(w.data), "To: a@b.io\r\n")
			client.AssertExpectations(t)
		})
	}
}

func TestRelay(t *testing.T) {
	notifier := new(MockNotifier)
	mailer := new(MockMailer)
	relay := NewRelay(notifier, mailer, newNoopLogger())

	notifier.On("Notify", mock.Anything, "hello").Return(nil).Once()
	require.NoError(t, relay.HandleAdmin([]byte(`{"text":"hello"}`)))

	mailer.On("SendEmail", mock.Anything, models.EmailNotification{To: "a@b.io", Subject: "s", Body: "b"}).
		Return(errors.New("smtp down")).Once()
	err := relay.HandleEmail([]byte(`{"to":"a@b.io","subject":"s","body":"b"}`))
	require.Error(t, err)
	assert.NotErrorIs(t, err, rabbitmq.ErrPermanent)

	mailer.On("SendEmail", mock.Anything, models.EmailNotification{To: "gone@b.io", Subject: "s", Body: "b"}).
		Return(fmt.Errorf("rcpt to: %w", &textproto.Error{Code: 550, Msg: "mailbox unavailable"})).Once()
	err = relay.HandleEmail([]byte(`{"to":"gone@b.io","subject":"s","body":"b"}`))
	require.ErrorIs(t, err, rabbitmq.ErrPermanent)

	// битые сообщения подтверждаются без доставки
	require.NoError(t, relay.HandleAdmin([]byte(`not json`)))
	require.NoError(t, relay.HandleEmail([]byte(`{"subject":"no recipient"}`)))

	notifier.AssertExpectations(t)
	mailer.AssertExpectations(t)
}
