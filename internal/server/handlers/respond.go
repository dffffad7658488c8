package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/iudanet/agrisync/pkg/api"
)

// WriteJSON отправляет JSON ответ
func WriteJSON(w http.ResponseWriter, logger *slog.Logger, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode JSON response", slog.Any("error", err))
	}
}

// WriteError отправляет JSON ответ с ошибкой и машинно-читаемым кодом
func WriteError(w http.ResponseWriter, logger *slog.Logger, statusCode int, code, message string) {
	WriteJSON(w, logger, api.ErrorResponse{
		Error:   http.StatusText(statusCode),
		Code:    code,
		Message: message,
	}, statusCode)
}
