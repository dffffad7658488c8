package storage

import "errors"

// Common client storage errors
var (
	// ErrDeviceNotRegistered indicates that the device has no stored credentials
	ErrDeviceNotRegistered = errors.New("device not registered")

	// ErrChangeNotFound indicates that change record was not found in the log
	ErrChangeNotFound = errors.New("change record not found")

	// ErrChangeExists indicates that a change with the same id is already logged
	ErrChangeExists = errors.New("change record already exists")

	// ErrEntityNotFound indicates that entity is not present in the local cache
	ErrEntityNotFound = errors.New("cached entity not found")

	// ErrInvalidTransition indicates a state change the log does not allow
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrStorageClosed indicates that storage is closed
	ErrStorageClosed = errors.New("storage is closed")
)
