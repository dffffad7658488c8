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

// GetOutcome returns the stored outcome of a device change
func (s *Storage) GetOutcome(ctx context.Context, deviceID, changeID string) (*models.ChangeOutcome, error) {
	var (
		o           models.ChangeOutcome
		status      string
		reason      string
		processedAt int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT device_id, change_id, entity_id, status, reason, server_version, processed_at
		FROM change_outcomes WHERE device_id = ? AND change_id = ?
	`, deviceID, changeID).Scan(
		&o.DeviceID,
		&o.ChangeID,
		&o.EntityID,
		&status,
		&reason,
		&o.ServerVersion,
		&processedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrOutcomeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get outcome: %w", err)
	}

	o.Status = models.SyncState(status)
	o.Reason = models.RejectReason(reason)
	o.ProcessedAt = time.Unix(processedAt, 0).UTC()
	return &o, nil
}

// SaveOutcome records an outcome and an optional conflict in one transaction
func (s *Storage) SaveOutcome(ctx context.Context, outcome *models.ChangeOutcome, conflict *models.Conflict) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if conflict != nil {
		if err := insertConflict(ctx, tx, conflict); err != nil {
			return err
		}
	}
	if err := insertOutcome(ctx, tx, outcome); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit outcome: %w", err)
	}
	return nil
}

// insertOutcome не перезаписывает уже сохраненный итог: первый ответ окончательный
func insertOutcome(ctx context.Context, ex execer, o *models.ChangeOutcome) error {
	processedAt := o.ProcessedAt
	if processedAt.IsZero() {
		processedAt = time.Now()
	}

	_, err := ex.ExecContext(ctx, `
		INSERT INTO change_outcomes
			(device_id, change_id, entity_id, status, reason, server_version, processed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(device_id, change_id) DO NOTHING
	`,
		o.DeviceID,
		o.ChangeID,
		o.EntityID,
		string(o.Status),
		string(o.Reason),
		o.ServerVersion,
		processedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert outcome: %w", err)
	}
	return nil
}
