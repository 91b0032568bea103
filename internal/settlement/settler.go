// Package settlement turns accepted matches into minted rewards and retries
// the ones the mint authority did not confirm.
package settlement

import (
	"context"
	"errors"
	"time"

	"match-reward-engine/internal/mint"
	"match-reward-engine/internal/store"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

type Minter interface {
	Mint(ctx context.Context, req mint.Request) (mint.Receipt, error)
}

type Store interface {
	MarkMatchMinted(ctx context.Context, matchID, ref string, at time.Time) error
	MarkMintFailed(ctx context.Context, matchID, reason string) error
	ListUnsettledMatches(ctx context.Context, before time.Time, maxAttempts, limit int) ([]store.ProcessedMatch, error)
}

type Outcome struct {
	Status      store.SettlementStatus
	TxReference string
}

type Config struct {
	MaxAttempts int
	BatchSize   int
	// MinAge keeps the retry job away from matches whose inline mint may
	// still be in flight.
	MinAge time.Duration
}

type Settler struct {
	minter Minter
	store  Store
	cfg    Config
	now    func() time.Time
}

// NewSettler accepts a nil minter; matches then stay pending until one is
// configured.
func NewSettler(m Minter, st Store, cfg Config) *Settler {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 10
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.MinAge <= 0 {
		cfg.MinAge = 30 * time.Second
	}
	return &Settler{minter: m, store: st, cfg: cfg, now: time.Now}
}

// Settle requests the mint for one recorded match. Mint failures are
// recorded and reported through the outcome, not the error; the error is
// reserved for store failures.
func (s *Settler) Settle(ctx context.Context, matchID, wallet string, amount decimal.Decimal) (Outcome, error) {
	a, err := s.settle(ctx, matchID, wallet, amount)
	return a.Outcome, err
}

type attempt struct {
	Outcome
	mintErr error
}

func (s *Settler) settle(ctx context.Context, matchID, wallet string, amount decimal.Decimal) (attempt, error) {
	if s.minter == nil {
		return attempt{Outcome: Outcome{Status: store.SettlementPending}}, nil
	}
	rec, mintErr := s.minter.Mint(ctx, mint.Request{MatchID: matchID, Player: wallet, Amount: amount})
	if errors.Is(mintErr, mint.ErrCircuitOpen) {
		// Not an attempt: the request never left the process.
		return attempt{Outcome: Outcome{Status: store.SettlementPending}, mintErr: mintErr}, nil
	}
	if mintErr != nil {
		log.Warn().Err(mintErr).Str("match_id", matchID).Str("wallet", wallet).Msg("mint request failed")
		a := attempt{Outcome: Outcome{Status: store.SettlementFailed}, mintErr: mintErr}
		return a, s.store.MarkMintFailed(ctx, matchID, mintErr.Error())
	}
	a := attempt{Outcome: Outcome{Status: store.SettlementMinted, TxReference: rec.TxReference}}
	if err := s.store.MarkMatchMinted(ctx, matchID, rec.TxReference, s.now().UTC()); err != nil {
		return a, err
	}
	log.Info().Str("match_id", matchID).Str("wallet", wallet).Str("tx_reference", rec.TxReference).Msg("reward minted")
	return a, nil
}

type RetryReport struct {
	Attempted int
	Minted    int
	Failed    int
}

// RetryPending re-submits one batch of unsettled matches. An open circuit
// ends the batch early.
func (s *Settler) RetryPending(ctx context.Context) (RetryReport, error) {
	var rep RetryReport
	if s.minter == nil {
		return rep, nil
	}
	pending, err := s.store.ListUnsettledMatches(ctx, s.now().Add(-s.cfg.MinAge), s.cfg.MaxAttempts, s.cfg.BatchSize)
	if err != nil {
		return rep, err
	}
	for _, m := range pending {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		a, err := s.settle(ctx, m.MatchID, m.Wallet, m.Reward)
		if errors.Is(a.mintErr, mint.ErrCircuitOpen) {
			break
		}
		rep.Attempted++
		if err != nil {
			return rep, err
		}
		if a.Status == store.SettlementMinted {
			rep.Minted++
		} else {
			rep.Failed++
		}
	}
	return rep, nil
}
