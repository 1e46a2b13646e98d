package setplan

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/membership-bot/internal/http/middlewarectx"
	"github.com/magabrotheeeer/membership-bot/internal/models"
	"github.com/magabrotheeeer/membership-bot/internal/services/subscription"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) SetPlan(ctx context.Context, email string, plan models.Plan, start *time.Time) (*models.Subscriber, error) {
	args := m.Called(ctx, email, plan, start)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Subscriber), args.Error(1)
}

const adminToken = "s3cret"

func newRouter(svc Service) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
	r := chi.NewRouter()
	r.With(middlewarectx.AdminTokenMiddleware(adminToken, logger)).
		Post("/admin/set-plan", New(logger, svc).ServeHTTP)
	return r
}

func TestSetPlanHandler(t *testing.T) {
	expires := time.Date(2026, time.January, 31, 0, 0, 0, 0, time.UTC)
	jan31 := time.Date(2025, time.January, 31, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name           string
		token          string
		body           string
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name:  "тариф с датой начала",
			token: adminToken,
			body:  `{"email":"mario@example.it","plan":"ANNUAL","startDate":"2025-01-31"}`,
			setupMock: func(m *MockService) {
				m.On("SetPlan", mock.Anything, "mario@example.it", models.PlanAnnual,
					mock.MatchedBy(func(s *time.Time) bool { return s != nil && s.Equal(jan31) })).
					Return(&models.Subscriber{ID: "id-1", ExpiresAt: &expires}, nil).Once()
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `{"ok":true,"expiresAt":"2026-01-31T00:00:00Z"}`,
		},
		{
			name:  "дата в RFC3339 и синоним YEARLY",
			token: adminToken,
			body:  `{"email":"mario@example.it","plan":"yearly","startDate":"2025-01-31T00:00:00Z"}`,
			setupMock: func(m *MockService) {
				m.On("SetPlan", mock.Anything, "mario@example.it", models.PlanAnnual,
					mock.MatchedBy(func(s *time.Time) bool { return s != nil && s.Equal(jan31) })).
					Return(&models.Subscriber{ID: "id-1", ExpiresAt: &expires}, nil).Once()
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `{"ok":true,"expiresAt":"2026-01-31T00:00:00Z"}`,
		},
		{
			name:  "без даты начала",
			token: adminToken,
			body:  `{"email":"mario@example.it","plan":"MONTHLY"}`,
			setupMock: func(m *MockService) {
				m.On("SetPlan", mock.Anything, "mario@example.it", models.PlanMonthly, (*time.Time)(nil)).
					Return(&models.Subscriber{ID: "id-1", ExpiresAt: &expires}, nil).Once()
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `{"ok":true,"expiresAt":"2026-01-31T00:00:00Z"}`,
		},
		{
			name:           "без токена",
			body:           `{"email":"mario@example.it","plan":"MONTHLY"}`,
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   `{"status":"Error","error":"unauthorized"}`,
		},
		{
			name:           "неверный токен",
			token:          "nope",
			body:           `{"email":"mario@example.it","plan":"MONTHLY"}`,
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   `{"status":"Error","error":"unauthorized"}`,
		},
		{
			name:           "нет тарифа",
			token:          adminToken,
			body:           `{"email":"mario@example.it"}`,
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"status":"Error","error":"email and plan are required"}`,
		},
		{
			name:           "неизвестный тариф",
			token:          adminToken,
			body:           `{"email":"mario@example.it","plan":"WEEKLY"}`,
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"status":"Error","error":"plan must be MONTHLY or ANNUAL"}`,
		},
		{
			name:           "неверная дата",
			token:          adminToken,
			body:           `{"email":"mario@example.it","plan":"MONTHLY","startDate":"31/01/2025"}`,
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"status":"Error","error":"startDate must be RFC3339 or YYYY-MM-DD"}`,
		},
		{
			name:  "подписчик не найден",
			token: adminToken,
			body:  `{"email":"ghost@example.it","plan":"MONTHLY"}`,
			setupMock: func(m *MockService) {
				m.On("SetPlan", mock.Anything, "ghost@example.it", models.PlanMonthly, mock.Anything).
					Return(nil, fmt.Errorf("subscription.SetPlan: %w", subscription.ErrNotFound)).Once()
			},
			expectedStatus: http.StatusNotFound,
			expectedBody:   `{"status":"Error","error":"subscriber not found"}`,
		},
		{
			name:  "ошибка сервиса",
			token: adminToken,
			body:  `{"email":"mario@example.it","plan":"MONTHLY"}`,
			setupMock: func(m *MockService) {
				m.On("SetPlan", mock.Anything, "mario@example.it", models.PlanMonthly, mock.Anything).
					Return(nil, errors.New("db down")).Once()
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `{"status":"Error","error":"could not set plan"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			tt.setupMock(svc)

			req := httptest.NewRequest(http.MethodPost, "/admin/set-plan", strings.NewReader(tt.body))
			if tt.token != "" {
				req.Header.Set(middlewarectx.AdminTokenHeader, tt.token)
			}
			rr := httptest.NewRecorder()
			newRouter(svc).ServeHTTP(rr, req)

			assert.Equal(t, tt.expectedStatus, rr.Code)
			assert.JSONEq(t, tt.expectedBody, rr.Body.String())
			svc.AssertExpectations(t)
		})
	}
}

func TestSetPlanHandler_UnauthorizedDoesNotMutate(t *testing.T) {
	svc := new(MockService)

	req := httptest.NewRequest(http.MethodPost, "/admin/set-plan",
		strings.NewReader(`{"email":"mario@example.it","plan":"ANNUAL"}`))
	rr := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	svc.AssertNotCalled(t, "SetPlan", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
