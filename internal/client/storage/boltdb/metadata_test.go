package boltdb

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveAndGetLastSyncedAt(t *testing.T) {
	ctx := context.Background()
	store := createTestStorage(t)

	// Изначально синхронизации не было
	ts, err := store.GetLastSyncedAt(ctx)
	require.NoError(t, err)
	assert.True(t, ts.IsZero())

	want := time.Date(2026, 6, 1, 8, 30, 0, 0, time.UTC)
	require.NoError(t, store.SaveLastSyncedAt(ctx, want))

	got, err := store.GetLastSyncedAt(ctx)
	require.NoError(t, err)
	assert.True(t, want.Equal(got))
}

func TestSaveAndGetClock(t *testing.T) {
	ctx := context.Background()
	store := createTestStorage(t)

	v, err := store.GetClock(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), v)

	require.NoError(t, store.SaveClock(ctx, 42))
	require.NoError(t, store.SaveClock(ctx, 43))

	v, err = store.GetClock(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(43), v)
}
