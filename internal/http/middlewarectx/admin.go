// Package middlewarectx содержит HTTP middleware: проверку админского токена
// и ограничение частоты запросов по IP.
package middlewarectx

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/membership-bot/internal/http/response"
)

// AdminTokenHeader заголовок с общим секретом админки.
const AdminTokenHeader = "X-Admin-Token"

// AdminTokenMiddleware пропускает запрос, только если заголовок X-Admin-Token
// совпадает с token. Пустой token закрывает доступ полностью.
func AdminTokenMiddleware(token string, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.AdminToken"

			got := r.Header.Get(AdminTokenHeader)
			if token == "" || got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				log.Warn("admin request rejected",
					slog.String("op", op),
					slog.String("request_id", middleware.GetReqID(r.Context())),
					slog.String("path", r.URL.Path))
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error("unauthorized"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
