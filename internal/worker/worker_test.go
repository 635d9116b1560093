package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReconciler struct {
	limit    int
	repaired int
	err      error
}

func (f *fakeReconciler) ReconcileDrifted(_ context.Context, limit int) (int, error) {
	f.limit = limit
	return f.repaired, f.err
}

type fakeRefresher struct{ calls int }

func (f *fakeRefresher) refresh(context.Context) error {
	f.calls++
	return nil
}

type fakePruner struct{ idle time.Duration }

func (f *fakePruner) Prune(idle time.Duration) int {
	f.idle = idle
	return 2
}

func TestNewRegistersEnabledJobs(t *testing.T) {
	w, err := New(Config{ReconcileInterval: time.Hour, PruneInterval: time.Minute},
		&fakeReconciler{}, (&fakeRefresher{}).refresh, &fakePruner{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Stop() })

	assert.ElementsMatch(t, []string{"reconcile-balances", "prune-rate-limiter"}, w.Jobs())
}

func TestNilDependencyDisablesJob(t *testing.T) {
	w, err := New(Config{ReconcileInterval: time.Hour, RefreshInterval: time.Hour}, nil, (&fakeRefresher{}).refresh, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Stop() })

	assert.Equal(t, []string{"refresh-seasonal-catalog"}, w.Jobs())
}

func TestJobBodies(t *testing.T) {
	rec := &fakeReconciler{repaired: 3}
	ref := &fakeRefresher{}
	pr := &fakePruner{}
	w, err := New(Config{}, rec, ref.refresh, pr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Stop() })

	w.reconcile()
	assert.Equal(t, 500, rec.limit)

	rec.err = errors.New("db down")
	w.reconcile()

	w.refresh()
	assert.Equal(t, 1, ref.calls)

	w.prune()
	assert.Equal(t, 30*time.Minute, pr.idle)
}
