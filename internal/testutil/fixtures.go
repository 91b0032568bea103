package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"match-reward-engine/internal/store"

	"github.com/shopspring/decimal"
)

// Wallet returns a deterministic, well-formed wallet address for index n.
func Wallet(n int) string {
	return fmt.Sprintf("0x%040x", n)
}

// MatchID returns a deterministic match id long enough to pass validation.
func MatchID(n int) string {
	return fmt.Sprintf("match-%032d", n)
}

// Nonce returns a deterministic nonce long enough to pass validation.
func Nonce(n int) string {
	return fmt.Sprintf("nonce-%032d", n)
}

// SeedAcceptedMatch records an accepted match directly in the store.
func SeedAcceptedMatch(t *testing.T, st *store.Store, wallet, matchID string, placement int, reward string, at time.Time) {
	t.Helper()
	err := st.RecordAcceptedMatch(context.Background(), store.AcceptedMatch{
		MatchID:     matchID,
		Wallet:      wallet,
		Placement:   placement,
		PlayerCount: 5,
		Reward:      decimal.RequireFromString(reward),
		ProcessedAt: at,
	})
	if err != nil {
		t.Fatalf("seed match %s: %v", matchID, err)
	}
}
