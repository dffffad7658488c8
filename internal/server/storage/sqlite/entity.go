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

const entityColumns = `entity_id, entity_type, user_id, device_id, payload,
	server_version, client_timestamp, tombstone, updated_at`

// GetEntity retrieves the current state of an entity
func (s *Storage) GetEntity(ctx context.Context, entityID string) (*models.CachedEntity, error) {
	query := `SELECT ` + entityColumns + ` FROM entities WHERE entity_id = ?`

	e, err := scanEntity(s.db.QueryRowContext(ctx, query, entityID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrEntityNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entity: %w", err)
	}
	return e, nil
}

// CommitEntity назначает следующую версию типа и сохраняет сущность в одной транзакции
func (s *Storage) CommitEntity(
	ctx context.Context,
	entity *models.CachedEntity,
	expectedVersion int64,
	conflict *models.Conflict,
	outcome *models.ChangeOutcome,
) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var current int64
	err = tx.QueryRowContext(ctx,
		`SELECT server_version FROM entities WHERE entity_id = ?`, entity.EntityID,
	).Scan(&current)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("failed to read current version: %w", err)
	}
	if current != expectedVersion {
		return 0, fmt.Errorf("%w: %s expected %d, found %d",
			storage.ErrVersionConflict, entity.EntityID, expectedVersion, current)
	}

	var next int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO entity_sequences (entity_type, last_version) VALUES (?, 1)
		ON CONFLICT(entity_type) DO UPDATE SET last_version = last_version + 1
		RETURNING last_version
	`, string(entity.EntityType)).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("failed to advance sequence: %w", err)
	}

	updatedAt := entity.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO entities (`+entityColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(entity_id) DO UPDATE SET
			entity_type = excluded.entity_type,
			user_id = excluded.user_id,
			device_id = excluded.device_id,
			payload = excluded.payload,
			server_version = excluded.server_version,
			client_timestamp = excluded.client_timestamp,
			tombstone = excluded.tombstone,
			updated_at = excluded.updated_at
	`,
		entity.EntityID,
		string(entity.EntityType),
		entity.UserID,
		entity.DeviceID,
		entity.Payload,
		next,
		entity.ClientTimestamp,
		boolToInt(entity.Tombstone),
		updatedAt.Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert entity: %w", err)
	}

	if conflict != nil {
		if err := insertConflict(ctx, tx, conflict); err != nil {
			return 0, err
		}
	}

	if outcome != nil {
		outcome.ServerVersion = next
		if err := insertOutcome(ctx, tx, outcome); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit entity: %w", err)
	}

	entity.ServerVersion = next
	entity.UpdatedAt = updatedAt
	return next, nil
}

// ListEntitiesSince returns own and shared entities above the cursor
func (s *Storage) ListEntitiesSince(ctx context.Context, userID string, cursor models.SyncCursor, limit int) ([]*models.CachedEntity, error) {
	query := `SELECT ` + entityColumns + ` FROM entities
		WHERE entity_type = ? AND server_version > ? AND (user_id = ? OR user_id = '')
		ORDER BY server_version ASC
		LIMIT ?`

	var result []*models.CachedEntity
	for _, t := range models.EntityTypes {
		rows, err := s.db.QueryContext(ctx, query, string(t), cursor.Get(t), userID, limit)
		if err != nil {
			return nil, fmt.Errorf("failed to query %s delta: %w", t, err)
		}

		for rows.Next() {
			e, err := scanEntity(rows)
			if err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan entity: %w", err)
			}
			result = append(result, e)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, fmt.Errorf("error iterating entities: %w", err)
		}
	}

	return result, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntity(row rowScanner) (*models.CachedEntity, error) {
	var (
		e          models.CachedEntity
		entityType string
		tombstone  int
		updatedAt  int64
	)
	err := row.Scan(
		&e.EntityID,
		&entityType,
		&e.UserID,
		&e.DeviceID,
		&e.Payload,
		&e.ServerVersion,
		&e.ClientTimestamp,
		&tombstone,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	e.EntityType = models.EntityType(entityType)
	e.Tombstone = tombstone != 0
	e.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &e, nil
}
