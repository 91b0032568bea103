// Package security implements the request gate that runs before any match is
// trusted: wallet shape, nonce replay, rate limit, match uniqueness, daily caps
// and the bot-confidence ban.
package security

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"match-reward-engine/internal/match"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

var walletPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

func ValidWallet(addr string) bool {
	return walletPattern.MatchString(addr)
}

// CanonicalWallet returns the lowercase form of a well-formed address so that
// checksum and case variants share one nonce, rate, cap and history key.
// Malformed input is returned unchanged for the wallet check to reject.
func CanonicalWallet(addr string) string {
	if !ValidWallet(addr) {
		return addr
	}
	return strings.ToLower(addr)
}

// Store is the persistent state the gate reads and writes. ConsumeNonce must
// be an atomic unique insert: it reports false when the nonce already exists,
// including when another request inserted it concurrently.
type Store interface {
	ConsumeNonce(ctx context.Context, nonce, wallet string, at time.Time) (bool, error)
	IsMatchProcessed(ctx context.Context, matchID string) (bool, error)
	DailyUsageTotal(ctx context.Context, wallet string, day time.Time, usage match.UsageType) (decimal.Decimal, error)
}

// RateLog counts and records requests per wallet and endpoint. Count then
// record is not atomic; concurrent requests can overshoot RateMax slightly.
type RateLog interface {
	CountRequests(ctx context.Context, wallet, endpoint string, since time.Time) (int, error)
	RecordRequest(ctx context.Context, wallet, endpoint string, at time.Time) error
}

type Input struct {
	Wallet        string
	MatchID       string
	Nonce         string
	Endpoint      string
	RewardAmount  *decimal.Decimal
	BotConfidence *float64
}

type CheckOutcome struct {
	Name     CheckName        `json:"name"`
	Passed   bool             `json:"passed"`
	Fatal    bool             `json:"fatal,omitempty"`
	Weight   int              `json:"weight,omitempty"`
	Reason   match.ReasonCode `json:"reasonCode"`
	Message  string           `json:"message,omitempty"`
	Degraded bool             `json:"degraded,omitempty"`
}

type Result struct {
	Passed      bool             `json:"passed"`
	RiskScore   int              `json:"riskScore"`
	BlockReason string           `json:"blockReason,omitempty"`
	BlockCode   match.ReasonCode `json:"blockCode"`
	Degraded    bool             `json:"degraded,omitempty"`
	Checks      []CheckOutcome   `json:"checks"`
}

type Option func(*Gate)

func WithClock(now func() time.Time) Option {
	return func(g *Gate) { g.now = now }
}

type Gate struct {
	store  Store
	rates  RateLog
	limits Limits
	now    func() time.Time
}

func NewGate(st Store, rates RateLog, limits Limits, opts ...Option) *Gate {
	g := &Gate{store: st, rates: rates, limits: limits, now: time.Now}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Gate) Limits() Limits {
	return g.limits
}

// PerformSecurityCheck runs every applicable sub-check in a fixed order. The
// first fatal failure names the block reason, while the risk score sums the
// weights of every failing check. An error is returned only when a FailClosed
// check could not reach its store.
func (g *Gate) PerformSecurityCheck(ctx context.Context, in Input) (*Result, error) {
	now := g.now().UTC()
	res := &result{}
	in.Wallet = CanonicalWallet(in.Wallet)

	res.add(g.checkWallet(in.Wallet))

	nonce, err := g.checkNonce(ctx, in, now)
	if err != nil {
		return nil, err
	}
	res.add(nonce)

	res.add(g.checkRateLimit(ctx, in, now))

	unique, err := g.checkMatchUnique(ctx, in.MatchID)
	if err != nil {
		return nil, err
	}
	res.add(unique)

	matchCap, err := g.checkDailyMatchCap(ctx, in.Wallet, now)
	if err != nil {
		return nil, err
	}
	res.add(matchCap)

	if in.RewardAmount != nil {
		outs, err := g.checkRewardCaps(ctx, in.Wallet, *in.RewardAmount, now)
		if err != nil {
			return nil, err
		}
		res.add(outs...)
	}
	if in.BotConfidence != nil {
		res.add(g.checkBotConfidence(*in.BotConfidence))
	}
	return res.finish(), nil
}

// CheckReward runs only the reward-phase sub-checks (daily reward cap,
// per-match cap, bot confidence) once an amount is known. It never touches
// nonces or rate limits.
func (g *Gate) CheckReward(ctx context.Context, wallet string, amount decimal.Decimal, botConfidence *float64) (*Result, error) {
	now := g.now().UTC()
	res := &result{}
	outs, err := g.checkRewardCaps(ctx, CanonicalWallet(wallet), amount, now)
	if err != nil {
		return nil, err
	}
	res.add(outs...)
	if botConfidence != nil {
		res.add(g.checkBotConfidence(*botConfidence))
	}
	return res.finish(), nil
}

func (g *Gate) checkWallet(wallet string) CheckOutcome {
	if ValidWallet(wallet) {
		return pass(CheckWalletFormat)
	}
	return fail(CheckWalletFormat, WeightInvalidWallet, true, match.ReasonInvalidWallet, "invalid wallet address format")
}

func (g *Gate) checkNonce(ctx context.Context, in Input, now time.Time) (CheckOutcome, error) {
	var consumed bool
	out, err := g.guard(CheckNonce, func() error {
		var err error
		consumed, err = g.store.ConsumeNonce(ctx, in.Nonce, in.Wallet, now)
		return err
	})
	if err != nil || out != nil {
		return derefOutcome(out), err
	}
	if !consumed {
		return fail(CheckNonce, WeightNonceReused, true, match.ReasonNonceReused, "nonce already used (possible replay attack)"), nil
	}
	return pass(CheckNonce), nil
}

func (g *Gate) checkRateLimit(ctx context.Context, in Input, now time.Time) CheckOutcome {
	if g.rates == nil {
		return pass(CheckRateLimit)
	}
	var count int
	out, _ := g.guard(CheckRateLimit, func() error {
		var err error
		count, err = g.rates.CountRequests(ctx, in.Wallet, in.Endpoint, now.Add(-g.limits.RateWindow))
		return err
	})
	if out != nil {
		return *out
	}
	if count >= g.limits.RateMax {
		return fail(CheckRateLimit, WeightRateLimited, true, match.ReasonRateLimited,
			fmt.Sprintf("rate limit exceeded: %d requests in %s", count, g.limits.RateWindow))
	}
	if out, _ := g.guard(CheckRateLimit, func() error {
		return g.rates.RecordRequest(ctx, in.Wallet, in.Endpoint, now)
	}); out != nil {
		return *out
	}
	return pass(CheckRateLimit)
}

func (g *Gate) checkMatchUnique(ctx context.Context, matchID string) (CheckOutcome, error) {
	var processed bool
	out, err := g.guard(CheckMatchUnique, func() error {
		var err error
		processed, err = g.store.IsMatchProcessed(ctx, matchID)
		return err
	})
	if err != nil || out != nil {
		return derefOutcome(out), err
	}
	if processed {
		return fail(CheckMatchUnique, WeightMatchProcessed, true, match.ReasonMatchAlreadyProcessed, "match already processed"), nil
	}
	return pass(CheckMatchUnique), nil
}

func (g *Gate) checkDailyMatchCap(ctx context.Context, wallet string, now time.Time) (CheckOutcome, error) {
	var used decimal.Decimal
	out, err := g.guard(CheckDailyMatchCap, func() error {
		var err error
		used, err = g.store.DailyUsageTotal(ctx, wallet, match.DayBucket(now), match.UsageMatch)
		return err
	})
	if err != nil || out != nil {
		return derefOutcome(out), err
	}
	if used.IntPart()+1 > g.limits.DailyMatchCap {
		return fail(CheckDailyMatchCap, WeightDailyMatchCap, true, match.ReasonDailyMatchCap,
			fmt.Sprintf("daily match cap reached (%d)", g.limits.DailyMatchCap)), nil
	}
	return pass(CheckDailyMatchCap), nil
}

func (g *Gate) checkRewardCaps(ctx context.Context, wallet string, amount decimal.Decimal, now time.Time) ([]CheckOutcome, error) {
	var used decimal.Decimal
	out, err := g.guard(CheckDailyRewardCap, func() error {
		var err error
		used, err = g.store.DailyUsageTotal(ctx, wallet, match.DayBucket(now), match.UsageReward)
		return err
	})
	if err != nil {
		return nil, err
	}
	outs := make([]CheckOutcome, 0, 2)
	switch {
	case out != nil:
		outs = append(outs, *out)
	case used.Add(amount).GreaterThan(g.limits.DailyRewardCap):
		outs = append(outs, fail(CheckDailyRewardCap, WeightDailyRewardCap, true, match.ReasonDailyRewardCap,
			fmt.Sprintf("daily reward cap exceeded: %s + %s > %s", used, amount, g.limits.DailyRewardCap)))
	default:
		outs = append(outs, pass(CheckDailyRewardCap))
	}

	if amount.GreaterThan(g.limits.MaxRewardPerMatch) {
		outs = append(outs, fail(CheckMatchRewardCap, WeightMatchRewardCap, true, match.ReasonMatchRewardCap,
			fmt.Sprintf("reward %s exceeds per-match cap %s", amount, g.limits.MaxRewardPerMatch)))
	} else {
		outs = append(outs, pass(CheckMatchRewardCap))
	}
	return outs, nil
}

func (g *Gate) checkBotConfidence(confidence float64) CheckOutcome {
	switch {
	case confidence >= g.limits.BotBanThreshold:
		return fail(CheckBotConfidence, WeightBotBanned, true, match.ReasonBotBanned,
			fmt.Sprintf("bot confidence %.2f at or above ban threshold", confidence))
	case confidence >= g.limits.BotSuspiciousThreshold:
		return fail(CheckBotConfidence, WeightBotSuspicious, false, match.ReasonValid,
			fmt.Sprintf("bot confidence %.2f is suspicious", confidence))
	default:
		return pass(CheckBotConfidence)
	}
}

// guard runs a store call under the check's failure policy. For FailOpen
// checks a store error yields a passing, degraded outcome. For FailClosed
// checks it yields an InfrastructureError. A nil outcome and nil error mean
// the call succeeded and the caller decides.
func (g *Gate) guard(name CheckName, fn func() error) (*CheckOutcome, error) {
	err := fn()
	if err == nil {
		return nil, nil
	}
	if PolicyFor(name) == FailOpen {
		log.Warn().Err(err).Str("check", string(name)).Msg("security check degraded, failing open")
		out := pass(name)
		out.Degraded = true
		out.Message = "store unavailable; allowed in degraded mode"
		return &out, nil
	}
	log.Error().Err(err).Str("check", string(name)).Msg("security check store failure, failing closed")
	return nil, &InfrastructureError{Check: name, Err: err}
}

func derefOutcome(out *CheckOutcome) CheckOutcome {
	if out == nil {
		return CheckOutcome{}
	}
	return *out
}

func pass(name CheckName) CheckOutcome {
	return CheckOutcome{Name: name, Passed: true, Reason: match.ReasonValid}
}

func fail(name CheckName, weight int, fatal bool, reason match.ReasonCode, msg string) CheckOutcome {
	return CheckOutcome{Name: name, Passed: false, Fatal: fatal, Weight: weight, Reason: reason, Message: msg}
}

type result struct {
	checks []CheckOutcome
}

func (r *result) add(outs ...CheckOutcome) {
	r.checks = append(r.checks, outs...)
}

func (r *result) finish() *Result {
	out := &Result{Passed: true, BlockCode: match.ReasonValid, Checks: r.checks}
	total := 0
	for _, c := range r.checks {
		total += c.Weight
		if c.Degraded {
			out.Degraded = true
		}
		if c.Fatal && out.Passed {
			out.Passed = false
			out.BlockReason = c.Message
			out.BlockCode = c.Reason
		}
	}
	out.RiskScore = match.ClampScore(total)
	return out
}
