package storage

import (
	"context"

	"github.com/iudanet/agrisync/internal/models"
)

// EntityStorage defines interface for the canonical entity store
type EntityStorage interface {
	// GetEntity retrieves the current state of an entity (tombstones included)
	// Returns ErrEntityNotFound if entity was never written
	GetEntity(ctx context.Context, entityID string) (*models.CachedEntity, error)

	// CommitEntity assigns the next server_version from the entity type sequence
	// and upserts the entity in one transaction. expectedVersion is the version
	// the caller based its decision on (0 for a new entity); a mismatch returns
	// ErrVersionConflict. A non-nil conflict and outcome are persisted in the
	// same transaction; the outcome receives the assigned version.
	// Returns the assigned server_version.
	CommitEntity(ctx context.Context, entity *models.CachedEntity, expectedVersion int64, conflict *models.Conflict, outcome *models.ChangeOutcome) (int64, error)

	// ListEntitiesSince returns entities visible to userID (own and shared)
	// with server_version above the cursor for their type, ascending by
	// server_version within each type. At most limit entities per type.
	ListEntitiesSince(ctx context.Context, userID string, cursor models.SyncCursor, limit int) ([]*models.CachedEntity, error)
}

// ConflictStorage defines interface for the conflict audit trail
type ConflictStorage interface {
	// SaveConflict records a resolved conflict
	SaveConflict(ctx context.Context, conflict *models.Conflict) error

	// ListConflicts returns conflicts recorded for an entity, oldest first
	ListConflicts(ctx context.Context, entityID string) ([]*models.Conflict, error)

	// ListUnarchivedConflicts returns up to limit conflicts not yet archived, oldest first
	ListUnarchivedConflicts(ctx context.Context, limit int) ([]*models.Conflict, error)

	// MarkConflictsArchived flags conflicts as archived
	MarkConflictsArchived(ctx context.Context, ids []string) error
}

// OutcomeStorage defines interface for the per-device outcome log
type OutcomeStorage interface {
	// GetOutcome returns the stored outcome of a change sent by deviceID
	// Returns ErrOutcomeNotFound if the change was never processed
	GetOutcome(ctx context.Context, deviceID, changeID string) (*models.ChangeOutcome, error)

	// SaveOutcome records an outcome that did not change the entity,
	// together with an optional conflict, in one transaction.
	// An outcome already stored for the same change is kept.
	SaveOutcome(ctx context.Context, outcome *models.ChangeOutcome, conflict *models.Conflict) error
}
