package boltdb

import (
	"context"
	"encoding/binary"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/iudanet/agrisync/internal/client/storage"
)

var (
	// BoltDB bucket names
	bucketChangeLog   = []byte("changelog")     // seq -> ChangeRecord
	bucketChangeIndex = []byte("changelog_idx") // change_id -> seq
	bucketCache       = []byte("cache")         // entity_id -> CachedEntity
	bucketCursor      = []byte("cursor")        // entity_type -> server_version
	bucketMetadata    = []byte("metadata")
	bucketDevice      = []byte("device")
)

var allBuckets = [][]byte{
	bucketChangeLog,
	bucketChangeIndex,
	bucketCache,
	bucketCursor,
	bucketMetadata,
	bucketDevice,
}

// Storage represents BoltDB storage implementation for client
type Storage struct {
	db *bbolt.DB
}

// New creates a new BoltDB storage instance
// dbPath is the path to the BoltDB database file
func New(ctx context.Context, dbPath string) (*Storage, error) {
	// Открываем BoltDB
	db, err := bbolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open boltdb: %w", err)
	}

	storage := &Storage{db: db}

	// Инициализируем buckets
	if err := storage.initBuckets(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize buckets: %w", err)
	}

	return storage, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// initBuckets создает необходимые buckets если они не существуют
func (s *Storage) initBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("failed to create %s bucket: %w", name, err)
			}
		}
		return nil
	})
}

func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func btoi(b []byte) uint64 {
	return binary.BigEndian.Uint64(b)
}

var (
	_ storage.ChangeLog       = (*Storage)(nil)
	_ storage.Cache           = (*Storage)(nil)
	_ storage.MetadataStorage = (*Storage)(nil)
	_ storage.DeviceStorage   = (*Storage)(nil)
)
