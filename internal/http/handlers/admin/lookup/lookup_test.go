package lookup

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/membership-bot/internal/models"
	"github.com/magabrotheeeer/membership-bot/internal/services/subscription"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) Get(ctx context.Context, email string) (*models.Subscriber, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Subscriber), args.Error(1)
}

func TestLookupHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
	plan := models.PlanMonthly
	expires := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
	tgID := int64(555)

	tests := []struct {
		name           string
		url            string
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "найден",
			url:  "/admin/subscribers/mario@example.it",
			setupMock: func(m *MockService) {
				m.On("Get", mock.Anything, "mario@example.it").Return(&models.Subscriber{
					ID: "id-1", Email: "mario@example.it", VerifyCode: "ABCD2345",
					Plan: &plan, ExpiresAt: &expires, Status: models.StatusActive, TelegramUserID: &tgID,
				}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody: `{"status":"OK","data":{"id":"id-1","email":"mario@example.it","phone":"","telegramNick":"",` +
				`"discordNick":"","bitgetUid":"","telegramLinked":true,"discordLinked":false,"verifyCode":"ABCD2345",` +
				`"plan":"MONTHLY","expiresAt":"2025-03-01T00:00:00Z","status":"ACTIVE"}}`,
		},
		{
			name: "не найден",
			url:  "/admin/subscribers/ghost@example.it",
			setupMock: func(m *MockService) {
				m.On("Get", mock.Anything, "ghost@example.it").
					Return(nil, fmt.Errorf("subscription.Get: %w", subscription.ErrNotFound))
			},
			expectedStatus: http.StatusNotFound,
			expectedBody:   `{"status":"Error","error":"subscriber not found"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			tt.setupMock(svc)

			r := chi.NewRouter()
			r.Get("/admin/subscribers/{email}", New(logger, svc).ServeHTTP)

			req := httptest.NewRequest(http.MethodGet, tt.url, nil)
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, req)

			assert.Equal(t, tt.expectedStatus, rr.Code)
			assert.JSONEq(t, tt.expectedBody, rr.Body.String())
		})
	}
}
