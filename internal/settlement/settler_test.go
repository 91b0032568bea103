package settlement

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"match-reward-engine/internal/mint"
	"match-reward-engine/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMinter struct {
	mu    sync.Mutex
	calls []mint.Request
	errs  map[string]error
}

func (f *fakeMinter) Mint(_ context.Context, req mint.Request) (mint.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	if err := f.errs[req.MatchID]; err != nil {
		return mint.Receipt{}, err
	}
	return mint.Receipt{Success: true, TxReference: "tx-" + req.MatchID}, nil
}

type fakeStore struct {
	minted  map[string]string
	failed  map[string]string
	pending []store.ProcessedMatch
	before  time.Time
	markErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{minted: map[string]string{}, failed: map[string]string{}}
}

func (f *fakeStore) MarkMatchMinted(_ context.Context, matchID, ref string, _ time.Time) error {
	if f.markErr != nil {
		return f.markErr
	}
	f.minted[matchID] = ref
	return nil
}

func (f *fakeStore) MarkMintFailed(_ context.Context, matchID, reason string) error {
	if f.markErr != nil {
		return f.markErr
	}
	f.failed[matchID] = reason
	return nil
}

func (f *fakeStore) ListUnsettledMatches(_ context.Context, before time.Time, _ int, limit int) ([]store.ProcessedMatch, error) {
	f.before = before
	if len(f.pending) > limit {
		return f.pending[:limit], nil
	}
	return f.pending, nil
}

func TestSettleMintsAndStoresReference(t *testing.T) {
	m := &fakeMinter{}
	st := newFakeStore()
	s := NewSettler(m, st, Config{})

	out, err := s.Settle(context.Background(), "match-1", "0xabc", decimal.NewFromInt(71))
	require.NoError(t, err)
	assert.Equal(t, store.SettlementMinted, out.Status)
	assert.Equal(t, "tx-match-1", out.TxReference)
	assert.Equal(t, "tx-match-1", st.minted["match-1"])
	require.Len(t, m.calls, 1)
	assert.True(t, m.calls[0].Amount.Equal(decimal.NewFromInt(71)))
	assert.Equal(t, "0xabc", m.calls[0].Player)
}

func TestSettleRecordsMintFailure(t *testing.T) {
	m := &fakeMinter{errs: map[string]error{"match-1": errors.New("timeout")}}
	st := newFakeStore()
	s := NewSettler(m, st, Config{})

	out, err := s.Settle(context.Background(), "match-1", "0xabc", decimal.NewFromInt(10))
	require.NoError(t, err)
	assert.Equal(t, store.SettlementFailed, out.Status)
	assert.Equal(t, "timeout", st.failed["match-1"])
}

func TestSettleWithoutMinterStaysPending(t *testing.T) {
	st := newFakeStore()
	s := NewSettler(nil, st, Config{})

	out, err := s.Settle(context.Background(), "match-1", "0xabc", decimal.NewFromInt(10))
	require.NoError(t, err)
	assert.Equal(t, store.SettlementPending, out.Status)
	assert.Empty(t, st.minted)

	rep, err := s.RetryPending(context.Background())
	require.NoError(t, err)
	assert.Zero(t, rep.Attempted)
}

func TestSettleSurfacesStoreErrors(t *testing.T) {
	st := newFakeStore()
	st.markErr = errors.New("db down")
	s := NewSettler(&fakeMinter{}, st, Config{})

	out, err := s.Settle(context.Background(), "match-1", "0xabc", decimal.NewFromInt(10))
	require.Error(t, err)
	assert.Equal(t, "tx-match-1", out.TxReference)
}

func TestRetryPendingBatch(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	m := &fakeMinter{errs: map[string]error{"b": errors.New("rejected")}}
	st := newFakeStore()
	st.pending = []store.ProcessedMatch{
		{MatchID: "a", Wallet: "0x1", Reward: decimal.NewFromInt(5)},
		{MatchID: "b", Wallet: "0x2", Reward: decimal.NewFromInt(6)},
		{MatchID: "c", Wallet: "0x3", Reward: decimal.NewFromInt(7)},
	}
	s := NewSettler(m, st, Config{BatchSize: 10, MinAge: time.Minute})
	s.now = func() time.Time { return now }

	rep, err := s.RetryPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, RetryReport{Attempted: 3, Minted: 2, Failed: 1}, rep)
	assert.Equal(t, now.Add(-time.Minute), st.before)
	assert.Equal(t, "tx-c", st.minted["c"])
}

func TestRetryPendingStopsOnOpenCircuit(t *testing.T) {
	m := &fakeMinter{errs: map[string]error{"a": mint.ErrCircuitOpen}}
	st := newFakeStore()
	st.pending = []store.ProcessedMatch{{MatchID: "a"}, {MatchID: "b"}}
	s := NewSettler(m, st, Config{})

	rep, err := s.RetryPending(context.Background())
	require.NoError(t, err)
	assert.Zero(t, rep.Attempted)
	assert.Len(t, m.calls, 1)
	assert.Empty(t, st.failed, "an open circuit is not a mint attempt")
}
