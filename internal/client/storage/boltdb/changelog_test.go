package boltdb

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/agrisync/internal/client/storage"
	"github.com/iudanet/agrisync/internal/models"
)

func errClosed() error { return storage.ErrStorageClosed }

// newChange создает тестовую запись ценового запроса
func newChange(id string, ts int64) *models.ChangeRecord {
	return &models.ChangeRecord{
		ChangeID:        id,
		EntityType:      models.EntityPriceQuery,
		EntityID:        "entity-" + id,
		Priority:        models.PriorityCritical,
		Payload:         []byte(`{"crop":"onion"}`),
		ClientTimestamp: ts,
		WallTime:        time.Now(),
	}
}

func newNormalChange(id string, ts int64) *models.ChangeRecord {
	c := newChange(id, ts)
	c.EntityType = models.EntityAdvisoryRequest
	c.Priority = models.PriorityNormal
	c.Payload = []byte(`{"question":"q","language":"hi"}`)
	return c
}

func changeIDs(records []*models.ChangeRecord) []string {
	ids := make([]string, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.ChangeID)
	}
	return ids
}

func TestAppend(t *testing.T) {
	ctx := context.Background()
	store := createTestStorage(t)

	change := newChange("c1", 1)
	change.State = models.StateRejected // должно быть сброшено
	require.NoError(t, store.Append(ctx, change))

	assert.Equal(t, uint64(1), change.Seq)
	assert.Equal(t, models.StatePending, change.State)

	got, err := store.GetChange(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, models.StatePending, got.State)
	assert.Equal(t, change.Payload, got.Payload)
	assert.Equal(t, uint64(1), got.Seq)
}

func TestAppend_Duplicate(t *testing.T) {
	ctx := context.Background()
	store := createTestStorage(t)

	require.NoError(t, store.Append(ctx, newChange("c1", 1)))
	err := store.Append(ctx, newChange("c1", 2))
	assert.ErrorIs(t, err, storage.ErrChangeExists)
}

func TestAppend_Concurrent(t *testing.T) {
	ctx := context.Background()
	store := createTestStorage(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, store.Append(ctx, newChange(fmt.Sprintf("c%d", i), int64(i))))
		}(i)
	}
	wg.Wait()

	pending, err := store.ScanPending(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, pending, 20)

	seqs := make(map[uint64]bool)
	for _, p := range pending {
		seqs[p.Seq] = true
	}
	assert.Len(t, seqs, 20, "sequences must be unique")
}

func TestGetChange_NotFound(t *testing.T) {
	store := createTestStorage(t)

	_, err := store.GetChange(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrChangeNotFound)
}

func TestScanPending_Order(t *testing.T) {
	ctx := context.Background()
	store := createTestStorage(t)

	// Порядок добавления намеренно перемешан
	require.NoError(t, store.Append(ctx, newNormalChange("profile", 1)))
	require.NoError(t, store.Append(ctx, newChange("price-3", 3)))
	require.NoError(t, store.Append(ctx, newNormalChange("advisory", 2)))
	require.NoError(t, store.Append(ctx, newChange("price-2", 2)))
	require.NoError(t, store.Append(ctx, newChange("price-2b", 2)))

	pending, err := store.ScanPending(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"price-2", "price-2b", "price-3", "profile", "advisory"}, changeIDs(pending))

	limited, err := store.ScanPending(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"price-2", "price-2b"}, changeIDs(limited))
}

func TestUpdateStates_Lifecycle(t *testing.T) {
	ctx := context.Background()
	store := createTestStorage(t)

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, store.Append(ctx, newChange(id, 1)))
	}

	require.NoError(t, store.UpdateStates(ctx, []storage.StateUpdate{
		{ChangeID: "a", State: models.StateInFlight},
		{ChangeID: "b", State: models.StateInFlight},
		{ChangeID: "c", State: models.StateInFlight},
	}))

	pending, err := store.ScanPending(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, pending)

	require.NoError(t, store.UpdateStates(ctx, []storage.StateUpdate{
		{ChangeID: "a", State: models.StateAcked},
		{ChangeID: "b", State: models.StateRejected, Reason: models.ReasonSuperseded},
		{ChangeID: "c", State: models.StatePending},
	}))

	_, err = store.GetChange(ctx, "a")
	assert.ErrorIs(t, err, storage.ErrChangeNotFound, "acked records are removed")

	rejected, err := store.ListRejected(ctx)
	require.NoError(t, err)
	require.Len(t, rejected, 1)
	assert.Equal(t, "b", rejected[0].ChangeID)
	assert.Equal(t, models.ReasonSuperseded, rejected[0].Reason)

	pending, err = store.ScanPending(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, changeIDs(pending))
}

func TestUpdateStates_InvalidTransitionIsAtomic(t *testing.T) {
	ctx := context.Background()
	store := createTestStorage(t)

	require.NoError(t, store.Append(ctx, newChange("a", 1)))
	require.NoError(t, store.Append(ctx, newChange("b", 1)))

	// PENDING -> ACKED недопустим, поэтому вся транзакция откатывается
	err := store.UpdateStates(ctx, []storage.StateUpdate{
		{ChangeID: "a", State: models.StateInFlight},
		{ChangeID: "b", State: models.StateAcked},
	})
	require.ErrorIs(t, err, storage.ErrInvalidTransition)

	a, err := store.GetChange(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, models.StatePending, a.State)
}

func TestUpdateState_Missing(t *testing.T) {
	store := createTestStorage(t)

	err := store.UpdateState(context.Background(), "nope", models.StateInFlight, models.ReasonNone)
	assert.ErrorIs(t, err, storage.ErrChangeNotFound)
}

func TestRevertInFlight(t *testing.T) {
	ctx := context.Background()
	store := createTestStorage(t)

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, store.Append(ctx, newChange(id, 1)))
	}
	require.NoError(t, store.UpdateState(ctx, "a", models.StateInFlight, models.ReasonNone))
	require.NoError(t, store.UpdateState(ctx, "b", models.StateInFlight, models.ReasonNone))

	n, err := store.RevertInFlight(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	counts, err := store.CountByState(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, counts[models.StatePending])
	assert.Equal(t, 0, counts[models.StateInFlight])
}

func TestRemove(t *testing.T) {
	ctx := context.Background()
	store := createTestStorage(t)

	require.NoError(t, store.Append(ctx, newChange("a", 1)))
	require.NoError(t, store.UpdateState(ctx, "a", models.StateInFlight, models.ReasonNone))
	require.NoError(t, store.UpdateState(ctx, "a", models.StateRejected, models.ReasonStaleEntity))

	require.NoError(t, store.Remove(ctx, "a"))
	assert.ErrorIs(t, store.Remove(ctx, "a"), storage.ErrChangeNotFound)

	rejected, err := store.ListRejected(ctx)
	require.NoError(t, err)
	assert.Empty(t, rejected)
}
