package boltdb

import (
	"context"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/iudanet/agrisync/internal/client/storage"
)

var deviceKey = []byte("current")

// SaveDevice stores device credentials
func (s *Storage) SaveDevice(ctx context.Context, device *storage.DeviceData) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		// Сериализуем данные в JSON
		data, err := json.Marshal(device)
		if err != nil {
			return fmt.Errorf("failed to marshal device data: %w", err)
		}

		if err := tx.Bucket(bucketDevice).Put(deviceKey, data); err != nil {
			return fmt.Errorf("failed to save device data: %w", err)
		}

		return nil
	})
}

// GetDevice returns device credentials
func (s *Storage) GetDevice(ctx context.Context) (*storage.DeviceData, error) {
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}

	var device *storage.DeviceData
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketDevice).Get(deviceKey)
		if data == nil {
			return storage.ErrDeviceNotRegistered
		}

		device = &storage.DeviceData{}
		if err := json.Unmarshal(data, device); err != nil {
			return fmt.Errorf("failed to unmarshal device data: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return device, nil
}

// DeleteDevice removes stored credentials
func (s *Storage) DeleteDevice(ctx context.Context) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketDevice)
		if bucket.Get(deviceKey) == nil {
			return storage.ErrDeviceNotRegistered
		}
		if err := bucket.Delete(deviceKey); err != nil {
			return fmt.Errorf("failed to delete device data: %w", err)
		}
		return nil
	})
}
