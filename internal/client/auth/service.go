package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iudanet/agrisync/internal/client/storage"
	"github.com/iudanet/agrisync/internal/crypto"
	"github.com/iudanet/agrisync/internal/validation"
	pkgapi "github.com/iudanet/agrisync/pkg/api"
)

// tokenSkew запас до истечения токена, после которого запрашивается новый
const tokenSkew = 30 * time.Second

// ErrAlreadyRegistered устройство уже зарегистрировано
var ErrAlreadyRegistered = errors.New("device already registered")

//go:generate moq -out deviceapi_mock.go . DeviceAPI

// DeviceAPI серверные вызовы регистрации и выдачи токенов
type DeviceAPI interface {
	RegisterDevice(ctx context.Context, req pkgapi.RegisterDeviceRequest) (*pkgapi.RegisterDeviceResponse, error)
	IssueToken(ctx context.Context, req pkgapi.TokenRequest) (*pkgapi.TokenResponse, error)
}

// Service регистрирует устройство и выдает access token для синхронизации
type Service struct {
	api    DeviceAPI
	store  storage.DeviceStorage
	logger *slog.Logger
	now    func() time.Time
	mu     sync.Mutex
}

// NewService создает новый сервис авторизации устройства
func NewService(api DeviceAPI, store storage.DeviceStorage, logger *slog.Logger) *Service {
	return &Service{
		api:    api,
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// Register регистрирует устройство для фермера userID.
// Идентификатор и секрет устройства генерируются локально; сервер хранит только хеш секрета.
func (s *Service) Register(ctx context.Context, userID, enrollmentKey string) (*storage.DeviceData, error) {
	if err := validation.ValidateUserID(userID); err != nil {
		return nil, fmt.Errorf("invalid user id: %w", err)
	}
	if enrollmentKey == "" {
		return nil, fmt.Errorf("enrollment key is required")
	}

	if _, err := s.store.GetDevice(ctx); err == nil {
		return nil, ErrAlreadyRegistered
	} else if !errors.Is(err, storage.ErrDeviceNotRegistered) {
		return nil, fmt.Errorf("failed to check device: %w", err)
	}

	secret, err := crypto.GenerateSecret()
	if err != nil {
		return nil, err
	}

	device := &storage.DeviceData{
		DeviceID:     uuid.NewString(),
		UserID:       userID,
		DeviceSecret: secret,
	}

	_, err = s.api.RegisterDevice(ctx, pkgapi.RegisterDeviceRequest{
		DeviceID:      device.DeviceID,
		UserID:        device.UserID,
		DeviceSecret:  device.DeviceSecret,
		EnrollmentKey: enrollmentKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to register device: %w", err)
	}

	if err := s.store.SaveDevice(ctx, device); err != nil {
		return nil, fmt.Errorf("failed to save device: %w", err)
	}

	s.logger.Info("Device registered", "device_id", device.DeviceID, "user_id", device.UserID)
	return device, nil
}

// Device возвращает сохраненные данные устройства
func (s *Service) Device(ctx context.Context) (*storage.DeviceData, error) {
	return s.store.GetDevice(ctx)
}

// AccessToken возвращает действующий токен, запрашивая новый при истечении
func (s *Service) AccessToken(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	device, err := s.store.GetDevice(ctx)
	if err != nil {
		return "", err
	}
	if device.TokenValid(s.now().Add(tokenSkew)) {
		return device.AccessToken, nil
	}

	resp, err := s.api.IssueToken(ctx, pkgapi.TokenRequest{
		DeviceID:     device.DeviceID,
		DeviceSecret: device.DeviceSecret,
	})
	if err != nil {
		return "", fmt.Errorf("failed to issue token: %w", err)
	}

	device.AccessToken = resp.AccessToken
	device.TokenExpiresAt = s.now().Add(time.Duration(resp.ExpiresIn) * time.Second)
	if err := s.store.SaveDevice(ctx, device); err != nil {
		return "", fmt.Errorf("failed to save token: %w", err)
	}

	s.logger.Debug("Access token issued", "device_id", device.DeviceID, "expires_at", device.TokenExpiresAt)
	return device.AccessToken, nil
}

// Invalidate сбрасывает сохраненный токен
func (s *Service) Invalidate(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	device, err := s.store.GetDevice(ctx)
	if err != nil {
		return err
	}
	device.AccessToken = ""
	device.TokenExpiresAt = time.Time{}
	return s.store.SaveDevice(ctx, device)
}

// Forget удаляет локальные данные устройства
func (s *Service) Forget(ctx context.Context) error {
	if err := s.store.DeleteDevice(ctx); err != nil {
		return fmt.Errorf("failed to delete device: %w", err)
	}
	return nil
}
