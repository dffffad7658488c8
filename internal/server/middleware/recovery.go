package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/iudanet/agrisync/internal/server/handlers"
	"github.com/iudanet/agrisync/pkg/api"
)

// RecoveryMiddleware создает middleware для восстановления после паники.
// Логирует стек вызовов и возвращает ErrorResponse с кодом INTERNAL_ERROR.
func RecoveryMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				err := recover()
				if err == nil {
					return
				}
				if err == http.ErrAbortHandler {
					panic(err)
				}

				logger.Error("Panic recovered",
					"error", err,
					"method", r.Method,
					"path", r.URL.Path,
					"remote_addr", getClientIP(r),
					"stack", string(debug.Stack()),
				)

				// Детали паники клиенту не раскрываем
				handlers.WriteError(w, logger, http.StatusInternalServerError, api.CodeInternal, "internal server error")
			}()

			next.ServeHTTP(w, r)
		})
	}
}
