package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/agrisync/internal/models"
	"github.com/iudanet/agrisync/internal/server/storage"
)

func newEntity(userID string, t models.EntityType, ts int64) *models.CachedEntity {
	return &models.CachedEntity{
		EntityID:        uuid.NewString(),
		EntityType:      t,
		UserID:          userID,
		DeviceID:        "device-a",
		Payload:         []byte(`{"crop":"wheat"}`),
		ClientTimestamp: ts,
		UpdatedAt:       time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestCommitEntity_AssignsPerTypeVersions(t *testing.T) {
	ctx := context.Background()
	s := setupTestStorage(t)

	p1 := newEntity("farmer-1", models.EntityPriceQuery, 1)
	p2 := newEntity("farmer-1", models.EntityPriceQuery, 2)
	a1 := newEntity("farmer-1", models.EntityAdvisoryRequest, 3)

	v, err := s.CommitEntity(ctx, p1, 0, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)

	v, err = s.CommitEntity(ctx, p2, 0, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), v)

	v, err = s.CommitEntity(ctx, a1, 0, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v, "sequences are independent per entity type")

	// Обновление существующей сущности получает версию строго больше прежней
	p1.Payload = []byte(`{"crop":"rice"}`)
	p1.ClientTimestamp = 10
	v, err = s.CommitEntity(ctx, p1, 1, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(3), v)

	got, err := s.GetEntity(ctx, p1.EntityID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.ServerVersion)
	assert.Equal(t, int64(10), got.ClientTimestamp)
	assert.JSONEq(t, `{"crop":"rice"}`, string(got.Payload))
	assert.Equal(t, p1.UpdatedAt, got.UpdatedAt)
}

func TestCommitEntity_VersionConflict(t *testing.T) {
	ctx := context.Background()
	s := setupTestStorage(t)

	e := newEntity("farmer-1", models.EntityProfileUpdate, 1)
	_, err := s.CommitEntity(ctx, e, 0, nil, nil)
	require.NoError(t, err)

	_, err = s.CommitEntity(ctx, e, 0, nil, nil)
	assert.ErrorIs(t, err, storage.ErrVersionConflict)

	// Неудачная запись не расходует номер версии
	other := newEntity("farmer-1", models.EntityProfileUpdate, 2)
	v, err := s.CommitEntity(ctx, other, 0, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), v)
}

func TestCommitEntity_WithConflict(t *testing.T) {
	ctx := context.Background()
	s := setupTestStorage(t)

	e := newEntity("farmer-1", models.EntityCropAvailability, 5)
	_, err := s.CommitEntity(ctx, e, 0, nil, nil)
	require.NoError(t, err)

	conflict := &models.Conflict{
		ID:                uuid.NewString(),
		EntityID:          e.EntityID,
		EntityType:        e.EntityType,
		IncomingChangeID:  "change-2",
		IncomingDeviceID:  "device-b",
		CurrentDeviceID:   "device-a",
		Winner:            models.WinnerIncoming,
		Reason:            models.ReasonSuperseded,
		IncomingBase:      0,
		CurrentVersion:    1,
		IncomingTimestamp: 9,
		CurrentTimestamp:  5,
		DetectedAt:        time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC),
	}
	e.DeviceID = "device-b"
	e.ClientTimestamp = 9
	_, err = s.CommitEntity(ctx, e, 1, conflict, nil)
	require.NoError(t, err)

	conflicts, err := s.ListConflicts(ctx, e.EntityID)
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, conflict, conflicts[0])
}

func TestGetEntity_NotFound(t *testing.T) {
	s := setupTestStorage(t)
	_, err := s.GetEntity(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrEntityNotFound)
}

func TestListEntitiesSince(t *testing.T) {
	ctx := context.Background()
	s := setupTestStorage(t)

	own := newEntity("farmer-1", models.EntityPriceQuery, 1)
	foreign := newEntity("farmer-2", models.EntityPriceQuery, 2)
	shared := newEntity("", models.EntityPriceQuery, 3)
	advisory := newEntity("farmer-1", models.EntityAdvisoryRequest, 4)
	tomb := newEntity("farmer-1", models.EntityProfileUpdate, 5)
	tomb.Tombstone = true
	tomb.Payload = nil

	for _, e := range []*models.CachedEntity{own, foreign, shared, advisory, tomb} {
		_, err := s.CommitEntity(ctx, e, 0, nil, nil)
		require.NoError(t, err)
	}

	all, err := s.ListEntitiesSince(ctx, "farmer-1", models.SyncCursor{}, 100)
	require.NoError(t, err)

	ids := make([]string, 0, len(all))
	for _, e := range all {
		ids = append(ids, e.EntityID)
	}
	assert.ElementsMatch(t, []string{own.EntityID, shared.EntityID, advisory.EntityID, tomb.EntityID}, ids)

	// Курсор отсекает уже полученные версии
	delta, err := s.ListEntitiesSince(ctx, "farmer-1", models.SyncCursor{
		models.EntityPriceQuery:      1,
		models.EntityAdvisoryRequest: 1,
		models.EntityProfileUpdate:   1,
	}, 100)
	require.NoError(t, err)
	require.Len(t, delta, 1)
	assert.Equal(t, shared.EntityID, delta[0].EntityID)
	assert.Equal(t, int64(3), delta[0].ServerVersion)

	limited, err := s.ListEntitiesSince(ctx, "farmer-1", models.SyncCursor{}, 1)
	require.NoError(t, err)
	require.NotEmpty(t, limited)
	assert.Equal(t, own.EntityID, limited[0].EntityID, "lowest version first")
}
