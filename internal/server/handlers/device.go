package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/iudanet/agrisync/internal/crypto"
	"github.com/iudanet/agrisync/internal/models"
	"github.com/iudanet/agrisync/internal/server/storage"
	"github.com/iudanet/agrisync/internal/validation"
	"github.com/iudanet/agrisync/pkg/api"
)

// TokenIssuer выпускает access token устройства
type TokenIssuer interface {
	GenerateAccessToken(deviceID, userID string) (string, int64, error)
}

// DeviceHandler обрабатывает регистрацию устройств и выдачу токенов
type DeviceHandler struct {
	logger        *slog.Logger
	devices       storage.DeviceStorage
	tokens        TokenIssuer
	now           func() time.Time
	enrollmentKey string
}

// NewDeviceHandler создает новый handler для устройств
func NewDeviceHandler(logger *slog.Logger, devices storage.DeviceStorage, tokens TokenIssuer, enrollmentKey string) *DeviceHandler {
	return &DeviceHandler{
		logger:        logger,
		devices:       devices,
		tokens:        tokens,
		enrollmentKey: enrollmentKey,
		now:           time.Now,
	}
}

// Register обрабатывает POST /api/v1/devices/register
func (h *DeviceHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.RegisterDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "failed to decode register request", slog.Any("error", err))
		WriteError(w, h.logger, http.StatusBadRequest, api.CodeValidation, "invalid request body")
		return
	}

	if err := validateRegistration(req); err != nil {
		WriteError(w, h.logger, http.StatusBadRequest, api.CodeValidation, err.Error())
		return
	}

	if !crypto.KeysEqual(h.enrollmentKey, req.EnrollmentKey) {
		h.logger.WarnContext(ctx, "enrollment key rejected", slog.String("device_id", req.DeviceID))
		WriteError(w, h.logger, http.StatusForbidden, api.CodeAuthorization, "invalid enrollment key")
		return
	}

	hash, err := crypto.HashSecret(req.DeviceSecret)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to hash device secret", slog.Any("error", err))
		WriteError(w, h.logger, http.StatusInternalServerError, api.CodeInternal, "internal server error")
		return
	}

	device := &models.Device{
		ID:         req.DeviceID,
		UserID:     req.UserID,
		SecretHash: hash,
		CreatedAt:  h.now(),
	}
	if err := h.devices.CreateDevice(ctx, device); err != nil {
		if errors.Is(err, storage.ErrDeviceExists) {
			WriteError(w, h.logger, http.StatusConflict, api.CodeConflict, "device already registered")
			return
		}
		h.logger.ErrorContext(ctx, "failed to create device", slog.Any("error", err))
		WriteError(w, h.logger, http.StatusInternalServerError, api.CodeInternal, "internal server error")
		return
	}

	h.logger.InfoContext(ctx, "device registered",
		slog.String("device_id", device.ID),
		slog.String("user_id", device.UserID))

	WriteJSON(w, h.logger, api.RegisterDeviceResponse{
		DeviceID: device.ID,
		Message:  "Device registered successfully",
	}, http.StatusCreated)
}

// Token обрабатывает POST /api/v1/devices/token
// Обменивает секрет устройства на короткоживущий access token
func (h *DeviceHandler) Token(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.TokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, h.logger, http.StatusBadRequest, api.CodeValidation, "invalid request body")
		return
	}
	if req.DeviceID == "" || req.DeviceSecret == "" {
		WriteError(w, h.logger, http.StatusBadRequest, api.CodeValidation, "device_id and device_secret are required")
		return
	}

	device, err := h.devices.GetDevice(ctx, req.DeviceID)
	if err != nil {
		if errors.Is(err, storage.ErrDeviceNotFound) {
			h.authFailed(ctx, w, req.DeviceID)
			return
		}
		h.logger.ErrorContext(ctx, "failed to get device", slog.Any("error", err))
		WriteError(w, h.logger, http.StatusInternalServerError, api.CodeInternal, "internal server error")
		return
	}

	if err := crypto.VerifySecret(req.DeviceSecret, device.SecretHash); err != nil {
		h.authFailed(ctx, w, req.DeviceID)
		return
	}

	token, expiresIn, err := h.tokens.GenerateAccessToken(device.ID, device.UserID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to issue token", slog.Any("error", err))
		WriteError(w, h.logger, http.StatusInternalServerError, api.CodeInternal, "internal server error")
		return
	}

	if err := h.devices.TouchDevice(ctx, device.ID, h.now()); err != nil {
		h.logger.WarnContext(ctx, "failed to update last seen", slog.Any("error", err))
	}

	WriteJSON(w, h.logger, api.TokenResponse{
		AccessToken: token,
		ExpiresIn:   expiresIn,
	}, http.StatusOK)
}

func (h *DeviceHandler) authFailed(ctx context.Context, w http.ResponseWriter, deviceID string) {
	h.logger.WarnContext(ctx, "device authentication failed", slog.String("device_id", deviceID))
	WriteError(w, h.logger, http.StatusUnauthorized, api.CodeAuthentication, "invalid device credentials")
}

func validateRegistration(req api.RegisterDeviceRequest) error {
	if err := validation.ValidateDeviceID(req.DeviceID); err != nil {
		return err
	}
	if err := validation.ValidateUserID(req.UserID); err != nil {
		return err
	}
	return validation.ValidateSecret(req.DeviceSecret)
}
