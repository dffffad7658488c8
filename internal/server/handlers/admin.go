package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/iudanet/agrisync/internal/models"
	"github.com/iudanet/agrisync/internal/server/service"
	"github.com/iudanet/agrisync/pkg/api"
)

// Publisher публикует общие сущности от имени сервера
type Publisher interface {
	Publish(ctx context.Context, entity *models.CachedEntity) (int64, error)
}

// AdminHandler обрабатывает операторские запросы (загрузка цен с мандов и т.п.)
type AdminHandler struct {
	logger    *slog.Logger
	publisher Publisher
}

// NewAdminHandler создает новый admin handler
func NewAdminHandler(logger *slog.Logger, publisher Publisher) *AdminHandler {
	return &AdminHandler{
		logger:    logger,
		publisher: publisher,
	}
}

// PublishEntity обрабатывает POST /api/v1/admin/entities
func (h *AdminHandler) PublishEntity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.PublishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, h.logger, http.StatusBadRequest, api.CodeValidation, "invalid request body")
		return
	}

	entity := &models.CachedEntity{
		EntityID:        req.EntityID,
		EntityType:      models.EntityType(req.EntityType),
		Payload:         req.Payload,
		ClientTimestamp: req.ClientTimestamp,
		Tombstone:       req.Tombstone,
	}

	version, err := h.publisher.Publish(ctx, entity)
	switch {
	case errors.Is(err, models.ErrInvalidPayload):
		WriteError(w, h.logger, http.StatusBadRequest, api.CodeValidation, err.Error())
		return
	case errors.Is(err, service.ErrForeignEntity):
		WriteError(w, h.logger, http.StatusConflict, api.CodeConflict, err.Error())
		return
	case err != nil:
		h.logger.ErrorContext(ctx, "failed to publish entity", slog.Any("error", err))
		WriteError(w, h.logger, http.StatusInternalServerError, api.CodeInternal, "internal server error")
		return
	}

	WriteJSON(w, h.logger, api.Outcome{
		EntityID:      entity.EntityID,
		Status:        api.StatusAcked,
		ServerVersion: version,
	}, http.StatusOK)
}
