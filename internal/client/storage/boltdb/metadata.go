package boltdb

import (
	"context"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/iudanet/agrisync/internal/client/storage"
)

var (
	keyLastSyncedAt = []byte("last_synced_at")
	keyClock        = []byte("lamport_clock")
)

// SaveLastSyncedAt saves the time of the last successful sync
func (s *Storage) SaveLastSyncedAt(ctx context.Context, t time.Time) error {
	return s.putInt(keyLastSyncedAt, t.UnixNano())
}

// GetLastSyncedAt retrieves the time of the last successful sync
// Returns zero time if no sync has been performed yet
func (s *Storage) GetLastSyncedAt(ctx context.Context) (time.Time, error) {
	v, ok, err := s.getInt(keyLastSyncedAt)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get last synced at: %w", err)
	}
	if !ok {
		return time.Time{}, nil
	}
	return time.Unix(0, v), nil
}

// SaveClock persists the Lamport clock counter
func (s *Storage) SaveClock(ctx context.Context, counter int64) error {
	return s.putInt(keyClock, counter)
}

// GetClock returns the persisted Lamport clock counter
func (s *Storage) GetClock(ctx context.Context) (int64, error) {
	v, _, err := s.getInt(keyClock)
	if err != nil {
		return 0, fmt.Errorf("failed to get clock: %w", err)
	}
	return v, nil
}

func (s *Storage) putInt(key []byte, v int64) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(bucketMetadata).Put(key, itob(uint64(v))); err != nil {
			return fmt.Errorf("failed to save %s: %w", key, err)
		}
		return nil
	})
}

func (s *Storage) getInt(key []byte) (int64, bool, error) {
	if s.db == nil {
		return 0, false, storage.ErrStorageClosed
	}

	var (
		v     int64
		found bool
	)
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketMetadata).Get(key)
		if data == nil {
			return nil
		}
		v = int64(btoi(data))
		found = true
		return nil
	})
	return v, found, err
}
