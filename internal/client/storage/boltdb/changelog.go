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

// Append stores a new change as PENDING
func (s *Storage) Append(ctx context.Context, change *models.ChangeRecord) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		log := tx.Bucket(bucketChangeLog)
		idx := tx.Bucket(bucketChangeIndex)

		if idx.Get([]byte(change.ChangeID)) != nil {
			return storage.ErrChangeExists
		}

		seq, err := log.NextSequence()
		if err != nil {
			return fmt.Errorf("failed to allocate sequence: %w", err)
		}

		record := change.Clone()
		record.Seq = seq
		record.State = models.StatePending
		record.Reason = models.ReasonNone

		if err := putChange(log, record); err != nil {
			return err
		}
		if err := idx.Put([]byte(record.ChangeID), itob(seq)); err != nil {
			return fmt.Errorf("failed to index change: %w", err)
		}

		change.Seq = seq
		change.State = models.StatePending
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to append change: %w", err)
	}

	return nil
}

// GetChange returns a change by id
func (s *Storage) GetChange(ctx context.Context, changeID string) (*models.ChangeRecord, error) {
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}

	var record *models.ChangeRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		var err error
		record, _, err = lookupChange(tx, changeID)
		return err
	})
	if err != nil {
		return nil, err
	}

	return record, nil
}

// ScanPending returns PENDING changes in transmission order
func (s *Storage) ScanPending(ctx context.Context, limit int) ([]*models.ChangeRecord, error) {
	pending, err := s.scan(func(r *models.ChangeRecord) bool {
		return r.State == models.StatePending
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan pending changes: %w", err)
	}

	sort.Slice(pending, func(i, j int) bool { return pending[i].Less(pending[j]) })

	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}
	return pending, nil
}

// ListRejected returns REJECTED changes in log order
func (s *Storage) ListRejected(ctx context.Context) ([]*models.ChangeRecord, error) {
	rejected, err := s.scan(func(r *models.ChangeRecord) bool {
		return r.State == models.StateRejected
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list rejected changes: %w", err)
	}
	return rejected, nil
}

// CountByState returns the number of records per state
func (s *Storage) CountByState(ctx context.Context) (map[models.SyncState]int, error) {
	counts := make(map[models.SyncState]int)
	_, err := s.scan(func(r *models.ChangeRecord) bool {
		counts[r.State]++
		return false
	})
	if err != nil {
		return nil, fmt.Errorf("failed to count changes: %w", err)
	}
	return counts, nil
}

// UpdateState applies a single state transition
func (s *Storage) UpdateState(ctx context.Context, changeID string, state models.SyncState, reason models.RejectReason) error {
	return s.UpdateStates(ctx, []storage.StateUpdate{{ChangeID: changeID, State: state, Reason: reason}})
}

// UpdateStates applies several transitions in one transaction
func (s *Storage) UpdateStates(ctx context.Context, updates []storage.StateUpdate) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		for _, u := range updates {
			if err := applyUpdate(tx, u); err != nil {
				return fmt.Errorf("change %s: %w", u.ChangeID, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to update change states: %w", err)
	}

	return nil
}

// RevertInFlight moves every IN_FLIGHT change back to PENDING
func (s *Storage) RevertInFlight(ctx context.Context) (int, error) {
	if s.db == nil {
		return 0, storage.ErrStorageClosed
	}

	var reverted int
	err := s.db.Update(func(tx *bbolt.Tx) error {
		log := tx.Bucket(bucketChangeLog)

		var stuck []*models.ChangeRecord
		err := log.ForEach(func(k, v []byte) error {
			var r models.ChangeRecord
			if err := json.Unmarshal(v, &r); err != nil {
				return fmt.Errorf("failed to unmarshal change: %w", err)
			}
			if r.State == models.StateInFlight {
				stuck = append(stuck, &r)
			}
			return nil
		})
		if err != nil {
			return err
		}

		// Изменять bucket во время ForEach нельзя
		for _, r := range stuck {
			r.State = models.StatePending
			if err := putChange(log, r); err != nil {
				return err
			}
		}
		reverted = len(stuck)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to revert in-flight changes: %w", err)
	}

	return reverted, nil
}

// Remove deletes a change regardless of state
func (s *Storage) Remove(ctx context.Context, changeID string) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		_, seqKey, err := lookupChange(tx, changeID)
		if err != nil {
			return err
		}
		return deleteChange(tx, changeID, seqKey)
	})
}

func (s *Storage) scan(match func(*models.ChangeRecord) bool) ([]*models.ChangeRecord, error) {
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}

	var out []*models.ChangeRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketChangeLog).ForEach(func(k, v []byte) error {
			var r models.ChangeRecord
			if err := json.Unmarshal(v, &r); err != nil {
				return fmt.Errorf("failed to unmarshal change: %w", err)
			}
			if match(&r) {
				out = append(out, &r)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

// applyUpdate проверяет допустимость перехода и применяет его
func applyUpdate(tx *bbolt.Tx, u storage.StateUpdate) error {
	record, seqKey, err := lookupChange(tx, u.ChangeID)
	if err != nil {
		return err
	}

	if !allowedTransition(record.State, u.State) {
		return fmt.Errorf("%w: %s -> %s", storage.ErrInvalidTransition, record.State, u.State)
	}

	if u.State == models.StateAcked {
		return deleteChange(tx, u.ChangeID, seqKey)
	}

	record.State = u.State
	record.Reason = models.ReasonNone
	if u.State == models.StateRejected {
		record.Reason = u.Reason
	}
	return putChange(tx.Bucket(bucketChangeLog), record)
}

// allowedTransition: PENDING -> IN_FLIGHT -> {ACKED | REJECTED | PENDING}
func allowedTransition(from, to models.SyncState) bool {
	switch from {
	case models.StatePending:
		return to == models.StateInFlight || to == models.StatePending
	case models.StateInFlight:
		return to == models.StateAcked || to == models.StateRejected || to == models.StatePending
	}
	return false
}

func lookupChange(tx *bbolt.Tx, changeID string) (*models.ChangeRecord, []byte, error) {
	seqKey := tx.Bucket(bucketChangeIndex).Get([]byte(changeID))
	if seqKey == nil {
		return nil, nil, storage.ErrChangeNotFound
	}

	data := tx.Bucket(bucketChangeLog).Get(seqKey)
	if data == nil {
		return nil, nil, storage.ErrChangeNotFound
	}

	var r models.ChangeRecord
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, nil, fmt.Errorf("failed to unmarshal change: %w", err)
	}

	key := make([]byte, len(seqKey))
	copy(key, seqKey)
	return &r, key, nil
}

func putChange(log *bbolt.Bucket, r *models.ChangeRecord) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal change: %w", err)
	}
	if err := log.Put(itob(r.Seq), data); err != nil {
		return fmt.Errorf("failed to save change: %w", err)
	}
	return nil
}

func deleteChange(tx *bbolt.Tx, changeID string, seqKey []byte) error {
	if err := tx.Bucket(bucketChangeLog).Delete(seqKey); err != nil {
		return fmt.Errorf("failed to delete change: %w", err)
	}
	if err := tx.Bucket(bucketChangeIndex).Delete([]byte(changeID)); err != nil {
		return fmt.Errorf("failed to delete change index: %w", err)
	}
	return nil
}
