package storage

import (
	"context"
	"time"
)

// DeviceStorage keeps the credentials of this device
type DeviceStorage interface {
	// SaveDevice stores device credentials
	SaveDevice(ctx context.Context, device *DeviceData) error

	// GetDevice returns device credentials
	// Returns ErrDeviceNotRegistered if the device was never registered
	GetDevice(ctx context.Context) (*DeviceData, error)

	// DeleteDevice removes stored credentials
	DeleteDevice(ctx context.Context) error
}

// DeviceData represents device identity and the current access token
type DeviceData struct {
	TokenExpiresAt time.Time `json:"token_expires_at"`
	DeviceID       string    `json:"device_id"`
	UserID         string    `json:"user_id"`
	DeviceSecret   string    `json:"device_secret"`
	AccessToken    string    `json:"access_token,omitempty"`
}

// TokenValid reports whether the stored token can still be used at now
func (d *DeviceData) TokenValid(now time.Time) bool {
	return d.AccessToken != "" && now.Before(d.TokenExpiresAt)
}
