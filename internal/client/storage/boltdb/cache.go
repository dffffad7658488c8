package boltdb

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"go.etcd.io/bbolt"

	"github.com/iudanet/agrisync/internal/client/storage"
	"github.com/iudanet/agrisync/internal/models"
)

// UpsertCacheEntity stores an entity snapshot
func (s *Storage) UpsertCacheEntity(ctx context.Context, entity *models.CachedEntity) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		return putEntity(tx.Bucket(bucketCache), entity)
	})
	if err != nil {
		return fmt.Errorf("failed to upsert cache entity: %w", err)
	}

	return nil
}

// GetCacheEntity returns an entity snapshot by id
func (s *Storage) GetCacheEntity(ctx context.Context, entityID string) (*models.CachedEntity, error) {
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}

	var entity *models.CachedEntity
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketCache).Get([]byte(entityID))
		if data == nil {
			return storage.ErrEntityNotFound
		}

		entity = &models.CachedEntity{}
		if err := json.Unmarshal(data, entity); err != nil {
			return fmt.Errorf("failed to unmarshal entity: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return entity, nil
}

// ListCacheEntities returns live cached entities of a type ordered by server version
func (s *Storage) ListCacheEntities(ctx context.Context, entityType models.EntityType) ([]*models.CachedEntity, error) {
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}

	var entities []*models.CachedEntity
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketCache).ForEach(func(k, v []byte) error {
			var e models.CachedEntity
			if err := json.Unmarshal(v, &e); err != nil {
				return fmt.Errorf("failed to unmarshal entity: %w", err)
			}
			if e.EntityType == entityType && !e.Tombstone {
				entities = append(entities, &e)
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list cache entities: %w", err)
	}

	sort.Slice(entities, func(i, j int) bool {
		return entities[i].ServerVersion < entities[j].ServerVersion
	})
	return entities, nil
}

// GetCursor returns the current sync cursor
func (s *Storage) GetCursor(ctx context.Context) (models.SyncCursor, error) {
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}

	cursor := make(models.SyncCursor)
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketCursor).ForEach(func(k, v []byte) error {
			cursor[models.EntityType(k)] = int64(btoi(v))
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get cursor: %w", err)
	}

	return cursor, nil
}

// ApplyDeltas writes entities and the cursor in one transaction.
// Cursor values below the stored ones are ignored.
func (s *Storage) ApplyDeltas(ctx context.Context, deltas []*models.CachedEntity, cursor models.SyncCursor) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		cache := tx.Bucket(bucketCache)
		for _, e := range deltas {
			if err := putEntity(cache, e); err != nil {
				return err
			}
		}

		cur := tx.Bucket(bucketCursor)
		for t, v := range cursor {
			if old := cur.Get([]byte(t)); old != nil && int64(btoi(old)) >= v {
				continue
			}
			if err := cur.Put([]byte(t), itob(uint64(v))); err != nil {
				return fmt.Errorf("failed to save cursor: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to apply deltas: %w", err)
	}

	return nil
}

func putEntity(b *bbolt.Bucket, e *models.CachedEntity) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal entity: %w", err)
	}
	if err := b.Put([]byte(e.EntityID), data); err != nil {
		return fmt.Errorf("failed to save entity: %w", err)
	}
	return nil
}
