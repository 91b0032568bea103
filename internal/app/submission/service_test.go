package submission

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"match-reward-engine/internal/integrity"
	"match-reward-engine/internal/match"
	"match-reward-engine/internal/reward"
	"match-reward-engine/internal/security"
	"match-reward-engine/internal/settlement"
	"match-reward-engine/internal/signature"
	"match-reward-engine/internal/store"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

type usageKey struct {
	wallet string
	typ    match.UsageType
}

type walletEntry struct {
	wallet string
	entry  match.HistoryEntry
}

type memStore struct {
	mu        sync.Mutex
	nonces    map[string]string
	matches   map[string]store.AcceptedMatch
	usage     map[usageKey]decimal.Decimal
	history   []walletEntry
	audits    []store.AuditRecord
	nonceErr  error
	recordErr error
	auditErr  error
}

func newMemStore() *memStore {
	return &memStore{
		nonces:  map[string]string{},
		matches: map[string]store.AcceptedMatch{},
		usage:   map[usageKey]decimal.Decimal{},
	}
}

func (m *memStore) ConsumeNonce(_ context.Context, nonce, wallet string, _ time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.nonceErr != nil {
		return false, m.nonceErr
	}
	if _, ok := m.nonces[nonce]; ok {
		return false, nil
	}
	m.nonces[nonce] = wallet
	return true, nil
}

func (m *memStore) IsMatchProcessed(_ context.Context, matchID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.matches[matchID]
	return ok, nil
}

func (m *memStore) DailyUsageTotal(_ context.Context, wallet string, _ time.Time, usage match.UsageType) (decimal.Decimal, error) {
	return m.used(wallet, usage), nil
}

func (m *memStore) used(wallet string, usage match.UsageType) decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.usage[usageKey{wallet, usage}]
}

func (m *memStore) RecentMatches(_ context.Context, wallet string, since time.Time, limit int) ([]match.HistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []match.HistoryEntry{}
	for _, h := range m.history {
		if h.wallet != wallet || h.entry.ProcessedAt.Before(since) {
			continue
		}
		out = append(out, h.entry)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *memStore) RecordAcceptedMatch(_ context.Context, am store.AcceptedMatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.recordErr != nil {
		return m.recordErr
	}
	if _, ok := m.matches[am.MatchID]; ok {
		return store.ErrAlreadyRecorded
	}
	m.matches[am.MatchID] = am
	mk, rk := usageKey{am.Wallet, match.UsageMatch}, usageKey{am.Wallet, match.UsageReward}
	m.usage[mk] = m.usage[mk].Add(decimal.NewFromInt(1))
	m.usage[rk] = m.usage[rk].Add(am.Reward)
	entry := match.HistoryEntry{MatchID: am.MatchID, Placement: am.Placement, ProcessedAt: am.ProcessedAt}
	m.history = append([]walletEntry{{am.Wallet, entry}}, m.history...)
	return nil
}

func (m *memStore) InsertAudit(_ context.Context, rec store.AuditRecord) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.auditErr != nil {
		return "", m.auditErr
	}
	m.audits = append(m.audits, rec)
	return fmt.Sprintf("audit-%d", len(m.audits)), nil
}

type fakeSettler struct {
	out   settlement.Outcome
	err   error
	calls  int
	wallet string
}

func (f *fakeSettler) Settle(_ context.Context, _, wallet string, _ decimal.Decimal) (settlement.Outcome, error) {
	f.calls++
	f.wallet = wallet
	return f.out, f.err
}

func newTestService(st *memStore, settler Settler) *Service {
	clock := func() time.Time { return testNow }
	gate := security.NewGate(st, nil, security.DefaultLimits(), security.WithClock(clock))
	validator := integrity.NewValidator(integrity.DefaultRules(), integrity.WithClock(clock))
	calc := reward.NewCalculator(reward.DefaultTable())
	cfg := Config{RequireSignature: true, MaxClockSkew: 5 * time.Minute}
	return NewService(gate, validator, calc, st, settler, cfg, WithClock(clock))
}

func newKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return key
}

// scenarioA is a clean five player win with three kills in three minutes.
func scenarioA(n int) match.Submission {
	return match.Submission{
		MatchID:     fmt.Sprintf("match-%032d", n),
		Placement:   1,
		PlayerCount: 5,
		DurationMs:  180_000,
		Kills:       3,
		AntiCheat: match.AntiCheat{
			InputHash:           "abc123",
			FrameCount:          10_800,
			AvgTickRate:         60,
			InputTimingVariance: 80,
		},
		Timestamp: testNow.UnixMilli(),
		Nonce:     fmt.Sprintf("nonce-%032d", n),
	}
}

func sign(t *testing.T, key *ecdsa.PrivateKey, sub match.Submission) match.Submission {
	t.Helper()
	sub.Wallet = signature.Address(key)
	sig, err := signature.Sign(key, sub.SigningMessage())
	require.NoError(t, err)
	sub.Signature = sig
	return sub
}

func TestSubmitAcceptsCleanMatch(t *testing.T) {
	st := newMemStore()
	settler := &fakeSettler{out: settlement.Outcome{Status: store.SettlementMinted, TxReference: "0xtx"}}
	svc := newTestService(st, settler)
	sub := sign(t, newKey(t), scenarioA(1))

	resp, err := svc.Submit(testContext(t), sub)
	require.NoError(t, err)

	assert.True(t, resp.Allowed)
	assert.Equal(t, match.ReasonValid, resp.ReasonCode)
	assert.Equal(t, "71.00", resp.CalculatedReward.StringFixed(2))
	assert.Equal(t, 0, resp.RiskScore)
	assert.Empty(t, resp.ValidationFlags)
	require.NotNil(t, resp.RewardBreakdown)
	assert.Equal(t, "25.00", resp.RewardBreakdown.Placement.StringFixed(2))
	assert.Equal(t, store.SettlementMinted, resp.SettlementStatus)
	assert.Equal(t, "0xtx", resp.TxReference)
	assert.Equal(t, []State{
		StateReceived, StateStructureValidated, StateSecurityChecked, StateIntegrityValidated,
		StateRewardCalculated, StateRecorded, StateResponded,
	}, resp.Trail)

	recorded, ok := st.matches[sub.MatchID]
	require.True(t, ok)
	assert.Equal(t, "71.00", recorded.Reward.StringFixed(2))
	assert.Equal(t, "1", st.used(sub.Wallet, match.UsageMatch).String())
	assert.Equal(t, 1, settler.calls)

	require.Len(t, st.audits, 1)
	assert.Equal(t, "RESPONDED", st.audits[0].FinalState)
	assert.True(t, st.audits[0].Allowed)
	assert.NotEmpty(t, st.audits[0].RewardBreakdown)
}

func TestSubmitStructuralErrorsTouchNothing(t *testing.T) {
	key := newKey(t)
	cases := []struct {
		name  string
		edit  func(*match.Submission)
		field string
		code  string
	}{
		{"missing wallet", func(s *match.Submission) { s.Wallet = "" }, "walletAddress", CodeMissingField},
		{"short match id", func(s *match.Submission) { s.MatchID = "m-1" }, "matchId", CodeInvalidValue},
		{"short nonce", func(s *match.Submission) { s.Nonce = "n-1" }, "nonce", CodeInvalidValue},
		{"unsupported player count", func(s *match.Submission) { s.PlayerCount = 4 }, "playerCount", CodeInvalidValue},
		{"placement zero", func(s *match.Submission) { s.Placement = 0 }, "placement", CodeOutOfRange},
		{"placement above count", func(s *match.Submission) { s.Placement = 6 }, "placement", CodeOutOfRange},
		{"negative kills", func(s *match.Submission) { s.Kills = -1 }, "kills", CodeOutOfRange},
		{"negative duration", func(s *match.Submission) { s.DurationMs = -1 }, "durationMs", CodeOutOfRange},
		{"missing signature", func(s *match.Submission) { s.Signature = "" }, "signature", CodeMissingField},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			st := newMemStore()
			svc := newTestService(st, nil)
			sub := sign(t, key, scenarioA(1))
			tc.edit(&sub)

			resp, err := svc.Submit(testContext(t), sub)
			require.Nil(t, resp)
			require.ErrorIs(t, err, ErrInvalidRequest)
			var se *StructuralError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tc.field, se.Field)
			assert.Equal(t, tc.code, se.Code)
			assert.Empty(t, st.nonces)
			assert.Empty(t, st.audits)
		})
	}
}

func TestSubmitStaleTimestampRejectedBeforeGate(t *testing.T) {
	st := newMemStore()
	svc := newTestService(st, nil)
	sub := scenarioA(1)
	sub.Timestamp = testNow.Add(-10 * time.Minute).UnixMilli()
	sub = sign(t, newKey(t), sub)

	resp, err := svc.Submit(testContext(t), sub)
	require.NoError(t, err)
	assert.False(t, resp.Allowed)
	assert.Equal(t, match.ReasonStaleTimestamp, resp.ReasonCode)
	assert.Equal(t, StateRejected, resp.FinalState)
	assert.Empty(t, st.nonces)
	assert.Empty(t, st.audits)
}

func TestSubmitWrongSignerRejected(t *testing.T) {
	st := newMemStore()
	svc := newTestService(st, nil)
	sub := sign(t, newKey(t), scenarioA(1))
	sub.Wallet = signature.Address(newKey(t))

	resp, err := svc.Submit(testContext(t), sub)
	require.NoError(t, err)
	assert.Equal(t, match.ReasonInvalidSignature, resp.ReasonCode)
	assert.Empty(t, st.nonces)
}

func TestSubmitTamperedFieldBreaksSignature(t *testing.T) {
	st := newMemStore()
	svc := newTestService(st, nil)
	sub := sign(t, newKey(t), scenarioA(1))
	sub.Kills = 4

	resp, err := svc.Submit(testContext(t), sub)
	require.NoError(t, err)
	assert.Equal(t, match.ReasonInvalidSignature, resp.ReasonCode)
}

func TestSubmitInvalidWalletBlockedByGate(t *testing.T) {
	st := newMemStore()
	svc := newTestService(st, nil)
	sub := scenarioA(1)
	sub.Wallet = "not-a-wallet"
	sub.Signature = "0xdead"

	resp, err := svc.Submit(testContext(t), sub)
	require.NoError(t, err)
	assert.False(t, resp.Allowed)
	assert.Equal(t, match.ReasonInvalidWallet, resp.ReasonCode)
	assert.Equal(t, 100, resp.RiskScore)
	assert.NotEmpty(t, resp.SecurityChecks)
	require.Len(t, st.audits, 1)
	assert.Equal(t, "REJECTED", st.audits[0].FinalState)
}

func TestSubmitNonceReplay(t *testing.T) {
	st := newMemStore()
	svc := newTestService(st, nil)
	key := newKey(t)

	first, err := svc.Submit(testContext(t), sign(t, key, scenarioA(1)))
	require.NoError(t, err)
	require.True(t, first.Allowed)

	replay := scenarioA(2)
	replay.Nonce = scenarioA(1).Nonce
	resp, err := svc.Submit(testContext(t), sign(t, key, replay))
	require.NoError(t, err)
	assert.False(t, resp.Allowed)
	assert.Equal(t, match.ReasonNonceReused, resp.ReasonCode)
	assert.Len(t, st.matches, 1)
}

func TestSubmitSameMatchTwiceIsRejected(t *testing.T) {
	st := newMemStore()
	svc := newTestService(st, nil)
	key := newKey(t)

	_, err := svc.Submit(testContext(t), sign(t, key, scenarioA(1)))
	require.NoError(t, err)

	again := scenarioA(1)
	again.Nonce = scenarioA(2).Nonce
	resp, err := svc.Submit(testContext(t), sign(t, key, again))
	require.NoError(t, err)
	assert.Equal(t, match.ReasonMatchAlreadyProcessed, resp.ReasonCode)
	assert.Equal(t, "1", st.used(signature.Address(key), match.UsageMatch).String())
}

func TestSubmitIntegrityRejectionBurnsNonce(t *testing.T) {
	st := newMemStore()
	svc := newTestService(st, nil)
	sub := scenarioA(1)
	sub.AntiCheat.InputTimingVariance = 3
	sub = sign(t, newKey(t), sub)

	resp, err := svc.Submit(testContext(t), sub)
	require.NoError(t, err)
	assert.False(t, resp.Allowed)
	assert.Equal(t, match.ReasonZeroInputVariance, resp.ReasonCode)
	assert.Equal(t, 100, resp.RiskScore)
	assert.True(t, resp.CalculatedReward.IsZero())
	assert.Contains(t, st.nonces, sub.Nonce)
	assert.Empty(t, st.matches)
	require.Len(t, st.audits, 1)
	assert.Contains(t, string(st.audits[0].Flags), "ZERO_INPUT_VARIANCE")
}

func TestSubmitHighRiskHalvesReward(t *testing.T) {
	st := newMemStore()
	svc := newTestService(st, nil)
	sub := scenarioA(1)
	sub.Placement = 2
	sub.Kills = 1
	sub.AntiCheat.InputTimingVariance = 20
	sub.AntiCheat.AvgTickRate = 30
	sub.AntiCheat.FrameCount = 0
	sub = sign(t, newKey(t), sub)

	resp, err := svc.Submit(testContext(t), sub)
	require.NoError(t, err)
	require.True(t, resp.Allowed)
	assert.Equal(t, 70, resp.RiskScore)
	assert.Equal(t, "flagged for review", resp.ReasonMessage)
	// (25 * 1.5 + 5 + 6) * 0.5
	assert.Equal(t, "24.25", resp.CalculatedReward.StringFixed(2))

	var suspicious bool
	for _, c := range resp.SecurityChecks {
		if c.Name == security.CheckBotConfidence {
			suspicious = !c.Passed && !c.Fatal
		}
	}
	assert.True(t, suspicious)
}

func TestSubmitDailyRewardCapRecordsNothing(t *testing.T) {
	st := newMemStore()
	key := newKey(t)
	wallet := signature.Address(key)
	st.usage[usageKey{wallet, match.UsageReward}] = decimal.NewFromInt(4950)
	svc := newTestService(st, nil)

	resp, err := svc.Submit(testContext(t), sign(t, key, scenarioA(1)))
	require.NoError(t, err)
	assert.False(t, resp.Allowed)
	assert.Equal(t, match.ReasonDailyRewardCap, resp.ReasonCode)
	assert.True(t, resp.CalculatedReward.IsZero())
	assert.Empty(t, st.matches)
	assert.Equal(t, "4950", st.used(wallet, match.UsageReward).String())
	require.Len(t, st.audits, 1)
	assert.NotEmpty(t, st.audits[0].RewardBreakdown)
}

// upperHex keeps the 0x prefix and uppercases the hex digits.
func upperHex(wallet string) string {
	return "0x" + strings.ToUpper(wallet[2:])
}

func TestSubmitWalletCaseVariantsShareDailyCaps(t *testing.T) {
	st := newMemStore()
	key := newKey(t)
	wallet := signature.Address(key)
	st.usage[usageKey{wallet, match.UsageReward}] = decimal.NewFromInt(5000)
	svc := newTestService(st, nil)

	for i, variant := range []string{upperHex(wallet), crypto.PubkeyToAddress(key.PublicKey).Hex()} {
		sub := sign(t, key, scenarioA(i+1))
		sub.Wallet = variant

		resp, err := svc.Submit(testContext(t), sub)
		require.NoError(t, err)
		assert.False(t, resp.Allowed, variant)
		assert.Equal(t, match.ReasonDailyRewardCap, resp.ReasonCode, variant)
		assert.True(t, resp.CalculatedReward.IsZero(), variant)
	}
	assert.Empty(t, st.matches)
	assert.True(t, st.used(upperHex(wallet), match.UsageReward).IsZero())
	for _, a := range st.audits {
		assert.Equal(t, wallet, a.Wallet)
	}
}

func TestSubmitWalletCaseVariantsRecordCanonicalWallet(t *testing.T) {
	st := newMemStore()
	settler := &fakeSettler{out: settlement.Outcome{Status: store.SettlementMinted, TxReference: "0xtx"}}
	svc := newTestService(st, settler)
	key := newKey(t)
	wallet := signature.Address(key)

	first := sign(t, key, scenarioA(1))
	first.Wallet = upperHex(wallet)
	resp, err := svc.Submit(testContext(t), first)
	require.NoError(t, err)
	require.True(t, resp.Allowed, resp.ReasonMessage)

	recorded := st.matches[first.MatchID]
	assert.Equal(t, wallet, recorded.Wallet)
	assert.Equal(t, wallet, settler.wallet)
	assert.Equal(t, wallet, st.nonces[first.Nonce])

	second := sign(t, key, scenarioA(2))
	resp, err = svc.Submit(testContext(t), second)
	require.NoError(t, err)
	require.True(t, resp.Allowed, resp.ReasonMessage)
	assert.Equal(t, "2", st.used(wallet, match.UsageMatch).String())
	assert.Equal(t, "142.00", st.used(wallet, match.UsageReward).StringFixed(2))

	history, err := st.RecentMatches(testContext(t), wallet, testNow.Add(-time.Hour), 10)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestSubmitLostRecordRace(t *testing.T) {
	st := newMemStore()
	st.recordErr = store.ErrAlreadyRecorded
	svc := newTestService(st, nil)

	resp, err := svc.Submit(testContext(t), sign(t, newKey(t), scenarioA(1)))
	require.NoError(t, err)
	assert.False(t, resp.Allowed)
	assert.Equal(t, match.ReasonMatchAlreadyProcessed, resp.ReasonCode)
	assert.Equal(t, StateRejected, resp.FinalState)
}

func TestSubmitInfrastructureFailures(t *testing.T) {
	down := errors.New("connection refused")

	t.Run("gate", func(t *testing.T) {
		st := newMemStore()
		st.nonceErr = down
		svc := newTestService(st, nil)

		resp, err := svc.Submit(testContext(t), sign(t, newKey(t), scenarioA(1)))
		require.Nil(t, resp)
		require.ErrorIs(t, err, security.ErrStoreUnavailable)
		require.ErrorIs(t, err, down)
		assert.Empty(t, st.audits)
	})

	t.Run("record", func(t *testing.T) {
		st := newMemStore()
		st.recordErr = down
		svc := newTestService(st, nil)

		resp, err := svc.Submit(testContext(t), sign(t, newKey(t), scenarioA(1)))
		require.Nil(t, resp)
		require.ErrorIs(t, err, security.ErrStoreUnavailable)
		var ie *InfrastructureError
		require.ErrorAs(t, err, &ie)
		assert.Equal(t, "record_match", ie.Op)
	})
}

func TestSubmitAuditFailureKeepsDecision(t *testing.T) {
	st := newMemStore()
	st.auditErr = errors.New("audit table locked")
	svc := newTestService(st, nil)

	resp, err := svc.Submit(testContext(t), sign(t, newKey(t), scenarioA(1)))
	require.NoError(t, err)
	assert.True(t, resp.Allowed)
	assert.Len(t, st.matches, 1)
}

func TestSubmitSettlementFailureKeepsAcceptance(t *testing.T) {
	st := newMemStore()
	settler := &fakeSettler{err: errors.New("mark minted: timeout")}
	svc := newTestService(st, settler)

	resp, err := svc.Submit(testContext(t), sign(t, newKey(t), scenarioA(1)))
	require.NoError(t, err)
	assert.True(t, resp.Allowed)
	assert.Equal(t, store.SettlementPending, resp.SettlementStatus)
	assert.Empty(t, resp.TxReference)
}

func TestSubmitWithoutSignatureRequirement(t *testing.T) {
	st := newMemStore()
	svc := newTestService(st, nil)
	svc.cfg.RequireSignature = false
	sub := scenarioA(1)
	sub.Wallet = "0x" + "ab12cd34ef56ab12cd34ef56ab12cd34ef56ab12"

	resp, err := svc.Submit(testContext(t), sub)
	require.NoError(t, err)
	assert.True(t, resp.Allowed)
}

func TestQuote(t *testing.T) {
	svc := newTestService(newMemStore(), nil)

	calc, err := svc.Quote(QuoteRequest{Placement: 1, PlayerCount: 5, Kills: 3, DurationMs: 180_000})
	require.NoError(t, err)
	assert.Equal(t, "71.00", calc.FinalReward.StringFixed(2))

	failed := false
	calc, err = svc.Quote(QuoteRequest{Placement: 1, PlayerCount: 5, Kills: 3, DurationMs: 180_000, AntiCheatPassed: &failed})
	require.NoError(t, err)
	assert.True(t, calc.FinalReward.IsZero())

	_, err = svc.Quote(QuoteRequest{Placement: 4, PlayerCount: 3})
	var se *StructuralError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "placement", se.Field)

	_, err = svc.Quote(QuoteRequest{Placement: 1, PlayerCount: 2, BotConfidence: 1.5})
	require.ErrorIs(t, err, ErrInvalidRequest)
}
