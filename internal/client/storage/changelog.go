package storage

import (
	"context"

	"github.com/iudanet/agrisync/internal/models"
)

// StateUpdate describes one state transition of a logged change.
// An ACKED update removes the record from the log.
type StateUpdate struct {
	ChangeID string
	State    models.SyncState
	Reason   models.RejectReason
}

// ChangeLog is the durable, append-only journal of local mutations
type ChangeLog interface {
	// Append stores a new change as PENDING and assigns its log sequence.
	// The record is durable when Append returns.
	Append(ctx context.Context, change *models.ChangeRecord) error

	// GetChange returns a change by id
	// Returns ErrChangeNotFound if change doesn't exist
	GetChange(ctx context.Context, changeID string) (*models.ChangeRecord, error)

	// ScanPending returns up to limit PENDING changes in transmission order
	// (CRITICAL first, then client timestamp, then sequence). limit <= 0 means no limit.
	ScanPending(ctx context.Context, limit int) ([]*models.ChangeRecord, error)

	// UpdateState applies a single state transition
	UpdateState(ctx context.Context, changeID string, state models.SyncState, reason models.RejectReason) error

	// UpdateStates applies several transitions in one transaction
	UpdateStates(ctx context.Context, updates []StateUpdate) error

	// RevertInFlight moves every IN_FLIGHT change back to PENDING.
	// Returns the number of reverted records.
	RevertInFlight(ctx context.Context) (int, error)

	// ListRejected returns REJECTED changes in log order
	ListRejected(ctx context.Context) ([]*models.ChangeRecord, error)

	// Remove deletes a change regardless of state (used to dismiss rejections)
	Remove(ctx context.Context, changeID string) error

	// CountByState returns the number of records per state
	CountByState(ctx context.Context) (map[models.SyncState]int, error)
}
