package storage

import (
	"context"

	"github.com/iudanet/agrisync/internal/models"
)

// Cache is the local read model of server-confirmed entities plus the sync cursor
type Cache interface {
	// UpsertCacheEntity stores an entity snapshot, replacing an older one
	UpsertCacheEntity(ctx context.Context, entity *models.CachedEntity) error

	// GetCacheEntity returns an entity snapshot by id
	// Returns ErrEntityNotFound if entity isn't cached
	GetCacheEntity(ctx context.Context, entityID string) (*models.CachedEntity, error)

	// ListCacheEntities returns cached entities of a type, tombstones excluded
	ListCacheEntities(ctx context.Context, entityType models.EntityType) ([]*models.CachedEntity, error)

	// GetCursor returns the current sync cursor (empty for a fresh device)
	GetCursor(ctx context.Context) (models.SyncCursor, error)

	// ApplyDeltas writes the entities and the advanced cursor in one transaction.
	// Either everything is applied or nothing is.
	ApplyDeltas(ctx context.Context, deltas []*models.CachedEntity, cursor models.SyncCursor) error
}
