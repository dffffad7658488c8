package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iudanet/agrisync/internal/models"
	"github.com/iudanet/agrisync/internal/server/storage"
)

// CreateDevice registers a new device
func (s *Storage) CreateDevice(ctx context.Context, device *models.Device) error {
	query := `
		INSERT INTO devices (id, user_id, secret_hash, created_at, last_seen_at)
		VALUES (?, ?, ?, ?, ?)
	`

	var lastSeen sql.NullInt64
	if device.LastSeenAt != nil {
		lastSeen = sql.NullInt64{Int64: device.LastSeenAt.Unix(), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, query,
		device.ID,
		device.UserID,
		device.SecretHash,
		device.CreatedAt.Unix(),
		lastSeen,
	)
	if isUniqueViolation(err) {
		return storage.ErrDeviceExists
	}
	if err != nil {
		return fmt.Errorf("failed to create device: %w", err)
	}
	return nil
}

// GetDevice retrieves device by ID
func (s *Storage) GetDevice(ctx context.Context, deviceID string) (*models.Device, error) {
	query := `SELECT id, user_id, secret_hash, created_at, last_seen_at FROM devices WHERE id = ?`

	var (
		device    models.Device
		createdAt int64
		lastSeen  sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, query, deviceID).Scan(
		&device.ID,
		&device.UserID,
		&device.SecretHash,
		&createdAt,
		&lastSeen,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrDeviceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get device: %w", err)
	}

	device.CreatedAt = time.Unix(createdAt, 0).UTC()
	if lastSeen.Valid {
		t := time.Unix(lastSeen.Int64, 0).UTC()
		device.LastSeenAt = &t
	}
	return &device, nil
}

// TouchDevice updates the last seen timestamp
func (s *Storage) TouchDevice(ctx context.Context, deviceID string, seenAt time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE devices SET last_seen_at = ? WHERE id = ?`, seenAt.Unix(), deviceID)
	if err != nil {
		return fmt.Errorf("failed to touch device: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return storage.ErrDeviceNotFound
	}
	return nil
}
