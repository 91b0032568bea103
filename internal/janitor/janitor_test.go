package janitor

import (
	"context"
	"sync"
	"testing"
	"time"

	"match-reward-engine/internal/settlement"
	"match-reward-engine/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCleaner struct {
	mu      sync.Mutex
	calls   int
	cutoffs [3]time.Time
}

func (f *fakeCleaner) Cleanup(_ context.Context, nonce, rate, usage time.Time) (store.CleanupReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.cutoffs = [3]time.Time{nonce, rate, usage}
	return store.CleanupReport{Nonces: 1}, nil
}

func (f *fakeCleaner) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeSettler struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeSettler) RetryPending(context.Context) (settlement.RetryReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return settlement.RetryReport{}, nil
}

func (f *fakeSettler) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestRunCleanupCutoffs(t *testing.T) {
	cleaner := &fakeCleaner{}
	j, err := New(cleaner, nil, Config{
		NonceRetention: 10 * time.Minute,
		RateRetention:  time.Minute,
		UsageRetention: 7 * 24 * time.Hour,
	})
	require.NoError(t, err)
	defer j.Shutdown()
	now := time.Date(2026, 5, 10, 15, 30, 0, 0, time.UTC)
	j.now = func() time.Time { return now }

	rep, err := j.RunCleanup(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, rep.Nonces)
	assert.Equal(t, now.Add(-10*time.Minute), cleaner.cutoffs[0])
	assert.Equal(t, now.Add(-time.Minute), cleaner.cutoffs[1])
	assert.Equal(t, time.Date(2026, 5, 3, 0, 0, 0, 0, time.UTC), cleaner.cutoffs[2])
}

func TestScheduledJobsRun(t *testing.T) {
	cleaner := &fakeCleaner{}
	settler := &fakeSettler{}
	j, err := New(cleaner, settler, Config{
		CleanupInterval:    20 * time.Millisecond,
		SettlementInterval: 20 * time.Millisecond,
	})
	require.NoError(t, err)
	j.Start()
	defer j.Shutdown()

	require.Eventually(t, func() bool {
		return cleaner.Calls() >= 2 && settler.Calls() >= 2
	}, 2*time.Second, 10*time.Millisecond)
}
