package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/iudanet/agrisync/internal/models"
	"github.com/iudanet/agrisync/internal/server/service"
	"github.com/iudanet/agrisync/pkg/api"
)

//go:generate moq -out sync_service_mock.go . SyncService

// SyncService определяет серверную логику синхронизации
type SyncService interface {
	AcceptChanges(ctx context.Context, deviceID, userID string, changes []*models.ChangeRecord, cursor models.SyncCursor) ([]service.Outcome, []*models.CachedEntity, error)
	ComputeDelta(ctx context.Context, userID string, cursor models.SyncCursor) ([]*models.CachedEntity, error)
}

// SyncHandler handles synchronization requests
type SyncHandler struct {
	logger       *slog.Logger
	service      SyncService
	now          func() time.Time
	maxBatchSize int
}

// NewSyncHandler creates a new sync handler
func NewSyncHandler(logger *slog.Logger, svc SyncService, maxBatchSize int) *SyncHandler {
	return &SyncHandler{
		logger:       logger,
		service:      svc,
		maxBatchSize: maxBatchSize,
		now:          time.Now,
	}
}

// Sync обрабатывает POST /api/v1/sync
// Принимает пакет изменений, возвращает результаты по каждой записи и дельту
func (h *SyncHandler) Sync(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	deviceID, userID, ok := identity(ctx)
	if !ok {
		WriteError(w, h.logger, http.StatusUnauthorized, api.CodeAuthentication, "unauthorized")
		return
	}

	var req api.SyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "failed to decode sync request", slog.Any("error", err))
		WriteError(w, h.logger, http.StatusBadRequest, api.CodeValidation, "invalid request body")
		return
	}

	if req.DeviceID != "" && req.DeviceID != deviceID {
		h.logger.WarnContext(ctx, "device id mismatch",
			slog.String("token_device_id", deviceID),
			slog.String("body_device_id", req.DeviceID))
		WriteError(w, h.logger, http.StatusForbidden, api.CodeAuthorization, "device_id does not match token")
		return
	}

	if len(req.Changes) > h.maxBatchSize {
		WriteError(w, h.logger, http.StatusBadRequest, api.CodeValidation,
			fmt.Sprintf("batch exceeds %d changes", h.maxBatchSize))
		return
	}

	changes := make([]*models.ChangeRecord, 0, len(req.Changes))
	for _, c := range req.Changes {
		changes = append(changes, c.ToModel())
	}

	outcomes, deltas, err := h.service.AcceptChanges(ctx, deviceID, userID, changes, api.CursorFromWire(req.Cursor))
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to process sync batch",
			slog.String("device_id", deviceID),
			slog.Any("error", err))
		WriteError(w, h.logger, http.StatusInternalServerError, api.CodeInternal, "internal server error")
		return
	}

	resp := api.SyncResponse{
		ServerTime: h.now().UTC(),
		Outcomes:   make([]api.Outcome, 0, len(outcomes)),
		Deltas:     entitiesToWire(deltas),
	}
	for _, o := range outcomes {
		resp.Outcomes = append(resp.Outcomes, outcomeToWire(o))
	}

	WriteJSON(w, h.logger, resp, http.StatusOK)
}

// Delta обрабатывает GET /api/v1/sync/delta?PRICE_QUERY=12&PROFILE_UPDATE=3
// Возвращает только дельту по курсору без приема изменений
func (h *SyncHandler) Delta(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	_, userID, ok := identity(ctx)
	if !ok {
		WriteError(w, h.logger, http.StatusUnauthorized, api.CodeAuthentication, "unauthorized")
		return
	}

	cursor, err := parseCursor(r)
	if err != nil {
		WriteError(w, h.logger, http.StatusBadRequest, api.CodeValidation, err.Error())
		return
	}

	deltas, err := h.service.ComputeDelta(ctx, userID, cursor)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to compute delta", slog.Any("error", err))
		WriteError(w, h.logger, http.StatusInternalServerError, api.CodeInternal, "internal server error")
		return
	}

	WriteJSON(w, h.logger, api.SyncResponse{
		ServerTime: h.now().UTC(),
		Outcomes:   []api.Outcome{},
		Deltas:     entitiesToWire(deltas),
	}, http.StatusOK)
}

func identity(ctx context.Context) (string, string, bool) {
	deviceID, ok := GetDeviceID(ctx)
	if !ok || deviceID == "" {
		return "", "", false
	}
	userID, ok := GetUserID(ctx)
	if !ok || userID == "" {
		return "", "", false
	}
	return deviceID, userID, true
}

func parseCursor(r *http.Request) (models.SyncCursor, error) {
	cursor := models.SyncCursor{}
	for key, values := range r.URL.Query() {
		t, err := models.ParseEntityType(key)
		if err != nil {
			return nil, err
		}
		if len(values) == 0 {
			continue
		}
		v, err := strconv.ParseInt(values[0], 10, 64)
		if err != nil || v < 0 {
			return nil, fmt.Errorf("invalid cursor value for %s", key)
		}
		cursor[t] = v
	}
	return cursor, nil
}

func outcomeToWire(o service.Outcome) api.Outcome {
	status := api.StatusAcked
	if o.Status == models.StateRejected {
		status = api.StatusRejected
	}
	return api.Outcome{
		ChangeID:      o.ChangeID,
		EntityID:      o.EntityID,
		Status:        status,
		Reason:        string(o.Reason),
		ServerVersion: o.ServerVersion,
	}
}

func entitiesToWire(entities []*models.CachedEntity) []api.Entity {
	out := make([]api.Entity, 0, len(entities))
	for _, e := range entities {
		out = append(out, api.EntityFromModel(e))
	}
	return out
}
