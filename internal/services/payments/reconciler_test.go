package payments

import (
	"context"
	"testing"
	"time"

	"github.com/fastprodman/tombola/internal/config"
	repo "github.com/fastprodman/tombola/internal/repos/payments"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reconcileConfig() config.ReconcileConfig {
	return config.ReconcileConfig{
		Schedule:    "@every 1m",
		GracePeriod: 2 * time.Minute,
		BatchSize:   10,
		MaxAge:      72 * time.Hour,
	}
}

func TestSweep_TimedOutAcceptedLate(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.store.put(repo.Transaction{ID: "late", UserKey: buyer, Quantity: 12, Bonus: 1, Status: repo.StatusTimedOut})
	f.clock.Advance(5 * time.Minute)
	f.provider.setStatuses("ACCEPTED")

	rep, err := NewReconciler(f.tracker, reconcileConfig()).Sweep(t.Context())
	require.NoError(t, err)

	assert.Equal(t, SweepReport{Scanned: 1, Settled: 1}, rep)
	assert.Equal(t, repo.StatusAccepted, f.store.status("late"))
	bal, _ := f.store.Balance(t.Context(), buyer)
	assert.Equal(t, int64(13), bal)
}

func TestSweep_Mixed(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.store.put(repo.Transaction{ID: "refused", UserKey: buyer, Quantity: 1, Status: repo.StatusTimedOut})
	f.store.put(repo.Transaction{ID: "pending", UserKey: buyer, Quantity: 1, Status: repo.StatusPending})
	f.store.put(repo.Transaction{ID: "done", UserKey: buyer, Quantity: 1, Status: repo.StatusRefused})
	f.clock.Advance(5 * time.Minute)
	f.store.put(repo.Transaction{ID: "fresh", UserKey: buyer, Quantity: 1, Status: repo.StatusPending})

	f.provider.byID = map[string]string{"refused": "REFUSED", "pending": "PENDING"}

	rep, err := NewReconciler(f.tracker, reconcileConfig()).Sweep(t.Context())
	require.NoError(t, err)

	assert.Equal(t, SweepReport{Scanned: 2, Failed: 1, Pending: 1}, rep, "fresh and terminal records are skipped")
	assert.Equal(t, repo.StatusRefused, f.store.status("refused"))
	assert.Equal(t, repo.StatusTimedOut, f.store.status("pending"))
	assert.Equal(t, repo.StatusPending, f.store.status("fresh"))
	assert.Zero(t, f.store.creditCount())
}

func TestSweep_StalePendingTimesOut(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.pending("stale", 4)
	f.clock.Advance(10 * time.Minute)
	f.provider.setStatuses("PENDING")

	r := NewReconciler(f.tracker, reconcileConfig())

	rep, err := r.Sweep(t.Context())
	require.NoError(t, err)
	assert.Equal(t, SweepReport{Scanned: 1, Pending: 1}, rep)
	assert.Equal(t, repo.StatusTimedOut, f.store.status("stale"))
	assert.Zero(t, f.store.creditCount())

	// A later sweep may still settle it.
	f.provider.setStatuses("ACCEPTED")

	rep, err = r.Sweep(t.Context())
	require.NoError(t, err)
	assert.Equal(t, SweepReport{Scanned: 1, Settled: 1}, rep)
	assert.Equal(t, 1, f.store.creditCount())
}

func TestSweep_ProviderDownIsCountedNotReturned(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.pending("tx", 1)
	f.clock.Advance(time.Hour)
	f.provider.statusErr = errProviderDown

	rep, err := NewReconciler(f.tracker, reconcileConfig()).Sweep(t.Context())
	require.NoError(t, err)
	assert.Equal(t, SweepReport{Scanned: 1, Errors: 1}, rep)
	assert.Equal(t, repo.StatusPending, f.store.status("tx"))
}

func TestSweep_MaxAgeBoundsTheBatch(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.pending("ancient", 1)
	f.clock.Advance(100 * time.Hour)

	rep, err := NewReconciler(f.tracker, reconcileConfig()).Sweep(t.Context())
	require.NoError(t, err)
	assert.Zero(t, rep.Scanned)
}

func TestReconciler_StartStop(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	r := NewReconciler(f.tracker, reconcileConfig())

	require.NoError(t, r.Start())
	require.Error(t, r.Start(), "double start")

	ctx, cancel := context.WithTimeout(t.Context(), time.Second)
	defer cancel()
	require.NoError(t, r.Stop(ctx))
	require.NoError(t, r.Stop(ctx), "stop is idempotent")

	bad := NewReconciler(f.tracker, config.ReconcileConfig{Schedule: "every now and then"})
	require.Error(t, bad.Start())
}
