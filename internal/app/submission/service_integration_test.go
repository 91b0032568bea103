package submission

import (
	"context"
	"testing"
	"time"

	"match-reward-engine/internal/integrity"
	"match-reward-engine/internal/match"
	"match-reward-engine/internal/reward"
	"match-reward-engine/internal/security"
	"match-reward-engine/internal/settlement"
	"match-reward-engine/internal/store"
	"match-reward-engine/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitAgainstPostgres(t *testing.T) {
	st, cleanup := testutil.OpenTestStore(t)
	defer cleanup()

	gate := security.NewGate(st, st, security.DefaultLimits())
	validator := integrity.NewValidator(integrity.DefaultRules())
	calc := reward.NewCalculator(reward.DefaultTable())
	settler := settlement.NewSettler(nil, st, settlement.Config{})
	svc := NewService(gate, validator, calc, st, settler, Config{MaxClockSkew: 5 * time.Minute})

	sub := scenarioA(1)
	sub.Wallet = testutil.Wallet(7)
	sub.Timestamp = time.Now().UnixMilli()

	ctx := context.Background()
	resp, err := svc.Submit(ctx, sub)
	require.NoError(t, err)
	require.True(t, resp.Allowed)
	assert.Equal(t, "71.00", resp.CalculatedReward.StringFixed(2))
	assert.Equal(t, store.SettlementPending, resp.SettlementStatus)

	pm, err := st.GetProcessedMatch(ctx, sub.MatchID)
	require.NoError(t, err)
	assert.Equal(t, "71.00", pm.Reward.StringFixed(2))
	assert.Equal(t, store.SettlementPending, pm.SettlementStatus)

	total, err := st.DailyUsageTotal(ctx, sub.Wallet, match.DayBucket(time.Now()), match.UsageReward)
	require.NoError(t, err)
	assert.Equal(t, "71.00", total.StringFixed(2))

	replay, err := svc.Submit(ctx, sub)
	require.NoError(t, err)
	assert.False(t, replay.Allowed)
	assert.Equal(t, match.ReasonNonceReused, replay.ReasonCode)

	audits, err := st.ListAudit(ctx, store.AuditFilter{MatchID: sub.MatchID}, 10, 0)
	require.NoError(t, err)
	require.Len(t, audits, 2)
	assert.Equal(t, "REJECTED", audits[0].FinalState)
	assert.Equal(t, "RESPONDED", audits[1].FinalState)
}
