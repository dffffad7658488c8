package storage

import (
	"context"
	"time"
)

// MetadataStorage defines interface for storing client metadata
type MetadataStorage interface {
	// SaveLastSyncedAt saves the time of the last successful sync
	SaveLastSyncedAt(ctx context.Context, t time.Time) error

	// GetLastSyncedAt retrieves the time of the last successful sync
	// Returns zero time if no sync has been performed yet
	GetLastSyncedAt(ctx context.Context) (time.Time, error)

	// SaveClock persists the Lamport clock counter
	SaveClock(ctx context.Context, counter int64) error

	// GetClock returns the persisted Lamport clock counter (0 if never saved)
	GetClock(ctx context.Context) (int64, error)
}
