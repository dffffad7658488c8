package storage

import (
	"context"
	"time"

	"github.com/iudanet/agrisync/internal/models"
)

// DeviceStorage defines interface for registered devices persistence
type DeviceStorage interface {
	// CreateDevice registers a new device
	// Returns ErrDeviceExists if device id is taken
	CreateDevice(ctx context.Context, device *models.Device) error

	// GetDevice retrieves device by ID
	// Returns ErrDeviceNotFound if device doesn't exist
	GetDevice(ctx context.Context, deviceID string) (*models.Device, error)

	// TouchDevice updates the last seen timestamp
	TouchDevice(ctx context.Context, deviceID string, seenAt time.Time) error
}
