package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/iudanet/agrisync/internal/models"
)

const conflictColumns = `id, entity_id, entity_type, incoming_change_id, incoming_device_id,
	current_device_id, winner, reason, incoming_base, current_version,
	incoming_timestamp, current_timestamp, archived, detected_at`

// execer - общий интерфейс *sql.DB и *sql.Tx
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// SaveConflict records a resolved conflict
func (s *Storage) SaveConflict(ctx context.Context, conflict *models.Conflict) error {
	return insertConflict(ctx, s.db, conflict)
}

// ListConflicts returns conflicts recorded for an entity
func (s *Storage) ListConflicts(ctx context.Context, entityID string) ([]*models.Conflict, error) {
	return s.queryConflicts(ctx,
		`SELECT `+conflictColumns+` FROM conflicts WHERE entity_id = ? ORDER BY detected_at, id`,
		entityID,
	)
}

// ListUnarchivedConflicts returns conflicts waiting for archival
func (s *Storage) ListUnarchivedConflicts(ctx context.Context, limit int) ([]*models.Conflict, error) {
	return s.queryConflicts(ctx,
		`SELECT `+conflictColumns+` FROM conflicts WHERE archived = 0 ORDER BY detected_at, id LIMIT ?`,
		limit,
	)
}

// MarkConflictsArchived flags conflicts as archived
func (s *Storage) MarkConflictsArchived(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	_, err := s.db.ExecContext(ctx,
		`UPDATE conflicts SET archived = 1 WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return fmt.Errorf("failed to mark conflicts archived: %w", err)
	}
	return nil
}

func insertConflict(ctx context.Context, ex execer, c *models.Conflict) error {
	detectedAt := c.DetectedAt
	if detectedAt.IsZero() {
		detectedAt = time.Now()
	}

	_, err := ex.ExecContext(ctx, `
		INSERT INTO conflicts (`+conflictColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		c.ID,
		c.EntityID,
		string(c.EntityType),
		c.IncomingChangeID,
		c.IncomingDeviceID,
		c.CurrentDeviceID,
		c.Winner,
		string(c.Reason),
		c.IncomingBase,
		c.CurrentVersion,
		c.IncomingTimestamp,
		c.CurrentTimestamp,
		boolToInt(c.Archived),
		detectedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert conflict: %w", err)
	}
	return nil
}

func (s *Storage) queryConflicts(ctx context.Context, query string, args ...any) ([]*models.Conflict, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query conflicts: %w", err)
	}
	defer rows.Close()

	var result []*models.Conflict
	for rows.Next() {
		var (
			c          models.Conflict
			entityType string
			reason     string
			archived   int
			detectedAt int64
		)
		err := rows.Scan(
			&c.ID,
			&c.EntityID,
			&entityType,
			&c.IncomingChangeID,
			&c.IncomingDeviceID,
			&c.CurrentDeviceID,
			&c.Winner,
			&reason,
			&c.IncomingBase,
			&c.CurrentVersion,
			&c.IncomingTimestamp,
			&c.CurrentTimestamp,
			&archived,
			&detectedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan conflict: %w", err)
		}
		c.EntityType = models.EntityType(entityType)
		c.Reason = models.RejectReason(reason)
		c.Archived = archived != 0
		c.DetectedAt = time.Unix(detectedAt, 0).UTC()
		result = append(result, &c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating conflicts: %w", err)
	}
	return result, nil
}
