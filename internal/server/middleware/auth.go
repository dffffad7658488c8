package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/iudanet/agrisync/internal/crypto"
	"github.com/iudanet/agrisync/internal/server/handlers"
	"github.com/iudanet/agrisync/internal/server/jwt"
	"github.com/iudanet/agrisync/pkg/api"
)

// TokenValidator проверяет access token устройства
type TokenValidator interface {
	ValidateAccessToken(token string) (*jwt.Claims, error)
}

// AuthMiddleware создает middleware для проверки JWT токена устройства
func AuthMiddleware(logger *slog.Logger, tokens TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Ожидаем формат: "Bearer <token>"
			authHeader := r.Header.Get("Authorization")
			scheme, token, found := strings.Cut(authHeader, " ")
			if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
				logger.Warn("Missing or malformed Authorization header", "path", r.URL.Path)
				handlers.WriteError(w, logger, http.StatusUnauthorized, api.CodeAuthentication, "missing bearer token")
				return
			}

			claims, err := tokens.ValidateAccessToken(token)
			if err != nil {
				logger.Warn("Invalid access token", "error", err)
				handlers.WriteError(w, logger, http.StatusUnauthorized, api.CodeAuthentication, "invalid or expired token")
				return
			}

			logger.Debug("Device authenticated", "device_id", claims.DeviceID, "user_id", claims.UserID)
			recordDevice(r, claims.DeviceID)

			ctx := handlers.WithIdentity(r.Context(), claims.DeviceID, claims.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AdminKeyHeader заголовок с ключом оператора
const AdminKeyHeader = "X-Admin-Key"

// AdminKeyMiddleware пропускает только запросы с верным ключом оператора.
// Пустой ключ в конфигурации закрывает доступ полностью.
func AdminKeyMiddleware(logger *slog.Logger, adminKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !crypto.KeysEqual(adminKey, r.Header.Get(AdminKeyHeader)) {
				logger.Warn("Admin key rejected", "path", r.URL.Path, "ip", getClientIP(r))
				handlers.WriteError(w, logger, http.StatusForbidden, api.CodeAuthorization, "admin key required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
