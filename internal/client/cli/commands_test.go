package cli

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/agrisync/internal/client/connectivity"
	"github.com/iudanet/agrisync/internal/client/storage"
	clientsync "github.com/iudanet/agrisync/internal/client/sync"
	"github.com/iudanet/agrisync/internal/models"
	"github.com/iudanet/agrisync/pkg/api"
)

func TestCli_runRegister_Prompts(t *testing.T) {
	env := newTestEnv(t, "farmer-7\nvillage-coop-2026\n", nil)

	err := env.cli.runRegister(context.Background(), "", "")
	require.NoError(t, err)

	calls := env.deviceAPI.RegisterDeviceCalls()
	require.Len(t, calls, 1)
	req := calls[0].Req
	assert.Equal(t, "farmer-7", req.UserID)
	assert.Equal(t, "village-coop-2026", req.EnrollmentKey)

	out := env.out.String()
	assert.Contains(t, out, "Farmer ID: Enrollment key: ")
	assert.Contains(t, out, "✓ Device registered")
	assert.Contains(t, out, "Device ID: "+req.DeviceID)
}

func TestCli_runRegister_Twice(t *testing.T) {
	env := newTestEnv(t, "", nil)
	env.registerDevice(t)

	err := env.cli.runRegister(context.Background(), "farmer-1", "key")
	require.Error(t, err)
	assert.Empty(t, env.deviceAPI.RegisterDeviceCalls())
}

func TestCli_EnqueuePriceAndSync(t *testing.T) {
	env := newTestEnv(t, "", nil)
	env.registerDevice(t)

	cmd := env.cli.newEnqueueCommand()
	cmd.SetArgs([]string{"price", "--crop", "wheat", "--mandi", "Azadpur", "--sync"})
	require.NoError(t, cmd.ExecuteContext(context.Background()))

	require.Len(t, env.transport.SyncCalls(), 1)
	req := env.transport.SyncCalls()[0].Req
	require.Len(t, req.Changes, 1)
	assert.Equal(t, string(models.EntityPriceQuery), req.Changes[0].EntityType)
	assert.Equal(t, string(models.PriorityCritical), req.Changes[0].Priority)
	assert.Equal(t, "token-"+testDeviceID, env.transport.SyncCalls()[0].AccessToken)

	out := env.out.String()
	assert.Contains(t, out, "✓ Change queued")
	assert.Contains(t, out, "Priority:  CRITICAL")
	assert.Contains(t, out, "✓ Synchronization completed")
	assert.Contains(t, out, "Acknowledged:    1")
}

func TestCli_EnqueueProfile_PromptsForName(t *testing.T) {
	env := newTestEnv(t, "Lakshmi\n", nil)

	cmd := env.cli.newEnqueueCommand()
	cmd.SetArgs([]string{"profile", "--id", "profile-1", "--language", "ta", "--crops", "paddy,banana"})
	require.NoError(t, cmd.ExecuteContext(context.Background()))

	change, err := env.store.ScanPending(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, change, 1)
	assert.Equal(t, "profile-1", change[0].EntityID)

	var p models.ProfileUpdate
	require.NoError(t, json.Unmarshal(change[0].Payload, &p))
	assert.Equal(t, "Lakshmi", p.Name)
	assert.Equal(t, models.LanguageTamil, p.Language)
	assert.Equal(t, []string{"paddy", "banana"}, p.CropTypes)
	assert.Empty(t, env.transport.SyncCalls(), "no --sync, nothing sent")
}

func TestCli_EnqueueAvailability_InvalidInput(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"bad date", []string{"availability", "--crop", "tomato", "--quantity", "5", "--from", "01/11/2026"}},
		{"no quantity", []string{"availability", "--crop", "tomato"}},
		{"unknown grade", []string{"availability", "--crop", "tomato", "--quantity", "5", "--grade", "Z"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, "", nil)
			cmd := env.cli.newEnqueueCommand()
			cmd.SilenceErrors = true
			cmd.SilenceUsage = true
			cmd.SetArgs(tt.args)

			require.Error(t, cmd.ExecuteContext(context.Background()))
			pending, err := env.store.ScanPending(context.Background(), 10)
			require.NoError(t, err)
			assert.Empty(t, pending)
		})
	}
}

func TestCli_EnqueueWithdraw(t *testing.T) {
	env := newTestEnv(t, "", nil)

	cmd := env.cli.newEnqueueCommand()
	cmd.SetArgs([]string{"withdraw", "crop_availability", "listing-9"})
	require.NoError(t, cmd.ExecuteContext(context.Background()))

	pending, err := env.store.ScanPending(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.True(t, pending[0].Tombstone)
	assert.Equal(t, models.EntityCropAvailability, pending[0].EntityType)
}

func TestCli_runSync_NotRegistered(t *testing.T) {
	env := newTestEnv(t, "", nil)

	err := env.cli.runSync(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "agrisync register")
	assert.Empty(t, env.transport.SyncCalls())
}

func TestCli_runSync_CriticalRejected(t *testing.T) {
	transport := &clientsync.TransportMock{
		SyncFunc: func(ctx context.Context, accessToken string, req *api.SyncRequest) (*api.SyncResponse, error) {
			resp := &api.SyncResponse{}
			for _, c := range req.Changes {
				resp.Outcomes = append(resp.Outcomes, api.Outcome{
					ChangeID: c.ChangeID,
					EntityID: c.EntityID,
					Status:   api.StatusRejected,
					Reason:   string(models.ReasonSuperseded),
				})
			}
			return resp, nil
		},
	}
	env := newTestEnv(t, "", transport)
	env.registerDevice(t)
	ctx := context.Background()

	change, err := env.cli.data.PostCropAvailability(ctx, "listing-1", models.CropAvailability{
		Crop: "onion", QuantityQuintal: 12, QualityGrade: models.GradeB,
	})
	require.NoError(t, err)

	err = env.cli.runSync(ctx)
	var rejected *clientsync.RejectedError
	require.True(t, errors.As(err, &rejected))
	require.Len(t, rejected.Changes, 1)

	out := env.out.String()
	assert.Contains(t, out, "Rejected:        1")
	assert.Contains(t, out, change.ChangeID+" CROP_AVAILABILITY listing-1: SUPERSEDED")

	env.out.Reset()
	require.NoError(t, env.cli.runRejectedList(ctx))
	assert.Contains(t, env.out.String(), "Reason:   SUPERSEDED")

	env.out.Reset()
	require.NoError(t, env.cli.runRejectedDismiss(ctx, change.ChangeID))
	assert.Contains(t, env.out.String(), "dismissed")

	left, err := env.cli.sync.Rejected(ctx)
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestCli_runRejectedDismiss_Pending(t *testing.T) {
	env := newTestEnv(t, "", nil)
	ctx := context.Background()

	change, err := env.cli.data.SubmitPriceQuery(ctx, models.PriceQuery{Crop: "maize"})
	require.NoError(t, err)

	err = env.cli.runRejectedDismiss(ctx, change.ChangeID)
	assert.ErrorIs(t, err, clientsync.ErrNotRejected)
}

func TestCli_runStatus(t *testing.T) {
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)

	t.Run("unregistered", func(t *testing.T) {
		env := newTestEnv(t, "", nil)

		require.NoError(t, env.cli.runStatus(context.Background()))
		g.Assert(t, "status_unregistered", env.out.Bytes())
	})

	t.Run("pending_and_rejected", func(t *testing.T) {
		env := newTestEnv(t, "", nil)
		env.registerDevice(t)
		ctx := context.Background()

		for _, crop := range []string{"wheat", "gram"} {
			_, err := env.cli.data.SubmitPriceQuery(ctx, models.PriceQuery{Crop: crop})
			require.NoError(t, err)
		}
		rejected, err := env.cli.data.RequestAdvisory(ctx, models.AdvisoryRequest{
			Question: "Is it too late to sow?", Language: models.LanguageMarathi,
		})
		require.NoError(t, err)
		require.NoError(t, env.store.UpdateStates(ctx, []storage.StateUpdate{
			{ChangeID: rejected.ChangeID, State: models.StateInFlight},
		}))
		require.NoError(t, env.store.UpdateStates(ctx, []storage.StateUpdate{
			{ChangeID: rejected.ChangeID, State: models.StateRejected, Reason: models.ReasonStaleEntity},
		}))
		require.NoError(t, env.store.SaveLastSyncedAt(ctx, time.Date(2026, 10, 18, 5, 45, 0, 0, time.UTC)))

		require.NoError(t, env.cli.runStatus(ctx))
		g.Assert(t, "status_pending_and_rejected", env.out.Bytes())
	})

	t.Run("synchronized", func(t *testing.T) {
		env := newTestEnv(t, "", nil)
		env.registerDevice(t)
		require.NoError(t, env.store.SaveLastSyncedAt(context.Background(), time.Date(2026, 10, 19, 7, 0, 0, 0, time.UTC)))

		require.NoError(t, env.cli.runStatus(context.Background()))
		g.Assert(t, "status_synchronized", env.out.Bytes())
	})
}

func TestCli_Cache(t *testing.T) {
	env := newTestEnv(t, "", nil)
	ctx := context.Background()

	payload, err := models.EncodePayload(models.PriceQuery{Crop: "onion", Mandi: "Lasalgaon", PricePerQuintal: 1850})
	require.NoError(t, err)
	require.NoError(t, env.store.ApplyDeltas(ctx, []*models.CachedEntity{{
		EntityID:        "mandi-onion",
		EntityType:      models.EntityPriceQuery,
		DeviceID:        "server",
		Payload:         payload,
		ServerVersion:   4,
		ClientTimestamp: 9,
		UpdatedAt:       time.Date(2026, 10, 19, 6, 0, 0, 0, time.UTC),
		FetchedAt:       time.Now(),
	}}, models.SyncCursor{models.EntityPriceQuery: 4}))

	require.NoError(t, env.cli.runCacheGet(ctx, "mandi-onion"))
	out := env.out.String()
	assert.Contains(t, out, "=== PRICE_QUERY mandi-onion ===")
	assert.Contains(t, out, "Version:    4")
	assert.Contains(t, out, `"price_per_quintal": 1850`)
	assert.NotContains(t, out, "freshness window")

	env.out.Reset()
	require.NoError(t, env.cli.runCacheList(ctx, "price_query"))
	assert.Contains(t, env.out.String(), "1. mandi-onion v4")
	assert.Contains(t, env.out.String(), "onion at Lasalgaon: 1850.00 INR/quintal")

	err = env.cli.runCacheGet(ctx, "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not cached")

	assert.Error(t, env.cli.runCacheList(ctx, "weather"))
}

func TestCli_runWatch(t *testing.T) {
	env := newTestEnv(t, "", nil)
	env.registerDevice(t)

	monitor := connectivity.NewManualMonitor(4)
	env.cli.newWatcher = func() (Watcher, error) {
		return manualWatcher{monitor}, nil
	}

	_, err := env.cli.data.SubmitPriceQuery(context.Background(), models.PriceQuery{Crop: "cotton"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- env.cli.runWatch(ctx) }()

	monitor.SetOnline()
	require.Eventually(t, func() bool {
		counts, err := env.store.CountByState(context.Background())
		return err == nil && len(env.transport.SyncCalls()) > 0 && counts[models.StatePending] == 0
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop")
	}
}
