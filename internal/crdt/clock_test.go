package crdt

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memClockStore struct {
	err   error
	saved []int64
	mu    sync.Mutex
}

func (m *memClockStore) SaveClock(_ context.Context, counter int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.saved = append(m.saved, counter)
	return nil
}

func TestLamportClock_Tick(t *testing.T) {
	ctx := context.Background()
	store := &memClockStore{}
	clock := NewLamportClock("device-a", 0, store)

	for want := int64(1); want <= 5; want++ {
		got, err := clock.Tick(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	assert.Equal(t, []int64{1, 2, 3, 4, 5}, store.saved)
	assert.Equal(t, "device-a", clock.DeviceID())
}

func TestLamportClock_ResumesFromStart(t *testing.T) {
	clock := NewLamportClock("device-a", 41, nil)

	got, err := clock.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(42), got)
}

func TestLamportClock_Observe(t *testing.T) {
	tests := []struct {
		name     string
		local    int64
		remote   int64
		wantNow  int64
		wantTick int64
	}{
		{"remote ahead", 5, 10, 10, 11},
		{"remote behind", 15, 10, 15, 16},
		{"equal", 10, 10, 10, 11},
		{"zero remote", 3, 0, 3, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			clock := NewLamportClock("d", tt.local, nil)

			require.NoError(t, clock.Observe(ctx, tt.remote))
			assert.Equal(t, tt.wantNow, clock.Now())

			next, err := clock.Tick(ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.wantTick, next)
		})
	}
}

func TestLamportClock_PersistFailure(t *testing.T) {
	ctx := context.Background()
	store := &memClockStore{err: errors.New("disk full")}
	clock := NewLamportClock("d", 7, store)

	_, err := clock.Tick(ctx)
	require.Error(t, err)
	assert.Equal(t, int64(7), clock.Now(), "counter must not advance when not persisted")

	require.Error(t, clock.Observe(ctx, 100))
	assert.Equal(t, int64(7), clock.Now())
}

func TestLamportClock_ConcurrentTick(t *testing.T) {
	ctx := context.Background()
	clock := NewLamportClock("d", 0, nil)
	iterations := 500
	goroutines := 8

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[int64]bool)
	)
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < iterations; j++ {
				ts, err := clock.Tick(ctx)
				if err != nil {
					t.Error(err)
					return
				}
				mu.Lock()
				seen[ts] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(goroutines*iterations), clock.Now())
	assert.Len(t, seen, goroutines*iterations, "timestamps must be unique")
}

func BenchmarkLamportClock_Tick(b *testing.B) {
	ctx := context.Background()
	clock := NewLamportClock("d", 0, nil)
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		_, _ = clock.Tick(ctx)
	}
}
