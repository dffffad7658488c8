package storage

import "errors"

// Common storage errors
var (
	// ErrEntityNotFound indicates that entity was never written to the canonical store
	ErrEntityNotFound = errors.New("entity not found")

	// ErrDeviceNotFound indicates that device is not registered
	ErrDeviceNotFound = errors.New("device not found")

	// ErrDeviceExists indicates that device with this id is already registered
	ErrDeviceExists = errors.New("device already exists")

	// ErrOutcomeNotFound indicates that the change was never processed for this device
	ErrOutcomeNotFound = errors.New("outcome not found")

	// ErrVersionConflict indicates that entity version changed between read and write
	ErrVersionConflict = errors.New("entity version changed concurrently")
)
