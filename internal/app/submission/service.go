// Package submission runs a match submission through the validation pipeline:
// structure, request freshness and signature, the security gate, integrity
// validation, reward calculation, the reward caps, recording and settlement.
package submission

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"time"

	"match-reward-engine/internal/integrity"
	"match-reward-engine/internal/match"
	"match-reward-engine/internal/reward"
	"match-reward-engine/internal/security"
	"match-reward-engine/internal/settlement"
	"match-reward-engine/internal/signature"
	"match-reward-engine/internal/store"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

const (
	minMatchIDLength = 32
	minNonceLength   = 32

	EndpointSubmit = "match_submit"
)

type Gate interface {
	PerformSecurityCheck(ctx context.Context, in security.Input) (*security.Result, error)
	CheckReward(ctx context.Context, wallet string, amount decimal.Decimal, botConfidence *float64) (*security.Result, error)
}

type Validator interface {
	Validate(ctx context.Context, history integrity.History, sub match.Submission) match.ValidationResult
}

// Store is what the pipeline persists beyond the gate's own reads.
type Store interface {
	integrity.History
	RecordAcceptedMatch(ctx context.Context, m store.AcceptedMatch) error
	InsertAudit(ctx context.Context, rec store.AuditRecord) (string, error)
}

type Settler interface {
	Settle(ctx context.Context, matchID, wallet string, amount decimal.Decimal) (settlement.Outcome, error)
}

type Config struct {
	RequireSignature bool
	MaxClockSkew     time.Duration
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

type Service struct {
	gate      Gate
	validator Validator
	calc      *reward.Calculator
	store     Store
	settler   Settler
	cfg       Config
	now       func() time.Time
}

// NewService wires the pipeline. settler may be nil, in which case recorded
// matches stay pending for the settlement job.
func NewService(gate Gate, validator Validator, calc *reward.Calculator, st Store, settler Settler, cfg Config, opts ...Option) *Service {
	s := &Service{
		gate:      gate,
		validator: validator,
		calc:      calc,
		store:     st,
		settler:   settler,
		cfg:       cfg,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit returns a response for every accepted or rejected submission. The
// error is a *StructuralError for malformed input, or an infrastructure error
// (errors.Is security.ErrStoreUnavailable) when a fail-closed store call
// failed.
func (s *Service) Submit(ctx context.Context, sub match.Submission) (*SubmitResponse, error) {
	metricSubmissionsTotal.Add(1)
	lc := newLifecycle()

	if err := validateStructure(sub, s.cfg.RequireSignature); err != nil {
		return nil, err
	}
	sub.Wallet = security.CanonicalWallet(sub.Wallet)
	s.advance(lc, StateStructureValidated)

	if code, msg := s.checkBoundary(sub); code != match.ReasonValid {
		return s.reject(lc, sub, code, msg, 0, nil, nil), nil
	}

	gateRes, err := s.gate.PerformSecurityCheck(ctx, security.Input{
		Wallet:   sub.Wallet,
		MatchID:  sub.MatchID,
		Nonce:    sub.Nonce,
		Endpoint: EndpointSubmit,
	})
	if err != nil {
		return nil, s.infraFailure(sub, "security_gate", err)
	}
	checks := gateRes.Checks
	if !gateRes.Passed {
		resp := s.reject(lc, sub, gateRes.BlockCode, gateRes.BlockReason, gateRes.RiskScore, nil, checks)
		s.audit(ctx, sub, resp, nil)
		return resp, nil
	}
	s.advance(lc, StateSecurityChecked)

	verdict := s.validator.Validate(ctx, s.store, sub)
	if !verdict.Allowed {
		resp := s.reject(lc, sub, verdict.Reason, verdict.Message, verdict.RiskScore, verdict.Flags, checks)
		s.audit(ctx, sub, resp, nil)
		return resp, nil
	}
	s.advance(lc, StateIntegrityValidated)

	botConfidence := float64(verdict.RiskScore) / match.MaxRiskScore
	calc := s.calc.Calculate(reward.Input{
		Placement:       sub.Placement,
		PlayerCount:     sub.PlayerCount,
		Kills:           sub.Kills,
		DurationMs:      sub.DurationMs,
		AntiCheatPassed: verdict.Allowed,
		BotConfidence:   botConfidence,
	})
	s.advance(lc, StateRewardCalculated)

	capRes, err := s.gate.CheckReward(ctx, sub.Wallet, calc.FinalReward, &botConfidence)
	if err != nil {
		return nil, s.infraFailure(sub, "reward_caps", err)
	}
	checks = append(checks, capRes.Checks...)
	if !capRes.Passed {
		risk := max(verdict.RiskScore, capRes.RiskScore)
		resp := s.reject(lc, sub, capRes.BlockCode, capRes.BlockReason, risk, verdict.Flags, checks)
		s.audit(ctx, sub, resp, &calc.Breakdown)
		return resp, nil
	}

	err = s.store.RecordAcceptedMatch(ctx, store.AcceptedMatch{
		MatchID:     sub.MatchID,
		Wallet:      sub.Wallet,
		Placement:   sub.Placement,
		PlayerCount: sub.PlayerCount,
		Reward:      calc.FinalReward,
		RiskScore:   verdict.RiskScore,
		ProcessedAt: s.now().UTC(),
	})
	switch {
	case errors.Is(err, store.ErrAlreadyRecorded):
		resp := s.reject(lc, sub, match.ReasonMatchAlreadyProcessed, "match already processed",
			max(verdict.RiskScore, security.WeightMatchProcessed), verdict.Flags, checks)
		s.audit(ctx, sub, resp, &calc.Breakdown)
		return resp, nil
	case err != nil:
		return nil, s.infraFailure(sub, "record_match", &InfrastructureError{Op: "record_match", Err: err})
	}
	s.advance(lc, StateRecorded)

	resp := &SubmitResponse{
		Allowed:          true,
		MatchID:          sub.MatchID,
		Placement:        sub.Placement,
		PlayerCount:      sub.PlayerCount,
		CalculatedReward: calc.FinalReward,
		ReasonCode:       match.ReasonValid,
		ReasonMessage:    verdict.Message,
		RiskScore:        verdict.RiskScore,
		ValidationFlags:  verdict.Flags,
		RewardBreakdown:  &calc.Breakdown,
		SecurityChecks:   checks,
		SettlementStatus: store.SettlementPending,
	}
	s.settle(ctx, sub, resp)
	s.advance(lc, StateResponded)
	resp.FinalState, resp.Trail = lc.state, lc.trail

	metricAcceptedTotal.Add(1)
	issued, _ := calc.FinalReward.Float64()
	metricRewardIssuedTotal.Add(issued)
	log.Info().
		Str("wallet", sub.Wallet).
		Str("match_id", sub.MatchID).
		Str("state", lc.state.String()).
		Str("reason_code", resp.ReasonCode.String()).
		Int("risk_score", resp.RiskScore).
		Str("reward", calc.FinalReward.StringFixed(2)).
		Str("settlement", string(resp.SettlementStatus)).
		Msg("match accepted")
	s.audit(ctx, sub, resp, resp.RewardBreakdown)
	return resp, nil
}

// Quote previews the reward for the given attributes without touching any
// state.
func (s *Service) Quote(req QuoteRequest) (reward.Calculation, error) {
	if !match.IsSupportedPlayerCount(req.PlayerCount) {
		return reward.Calculation{}, &StructuralError{Field: "playerCount", Code: CodeInvalidValue}
	}
	if req.Placement < 1 || req.Placement > req.PlayerCount {
		return reward.Calculation{}, &StructuralError{Field: "placement", Code: CodeOutOfRange}
	}
	if req.Kills < 0 {
		return reward.Calculation{}, &StructuralError{Field: "kills", Code: CodeOutOfRange}
	}
	if req.DurationMs < 0 {
		return reward.Calculation{}, &StructuralError{Field: "durationMs", Code: CodeOutOfRange}
	}
	if req.BotConfidence < 0 || req.BotConfidence > 1 || math.IsNaN(req.BotConfidence) {
		return reward.Calculation{}, &StructuralError{Field: "botConfidence", Code: CodeOutOfRange}
	}
	passed := true
	if req.AntiCheatPassed != nil {
		passed = *req.AntiCheatPassed
	}
	return s.calc.Calculate(reward.Input{
		Placement:       req.Placement,
		PlayerCount:     req.PlayerCount,
		Kills:           req.Kills,
		DurationMs:      req.DurationMs,
		AntiCheatPassed: passed,
		BotConfidence:   req.BotConfidence,
	}), nil
}

func validateStructure(sub match.Submission, requireSignature bool) error {
	switch {
	case sub.Wallet == "":
		return &StructuralError{Field: "walletAddress", Code: CodeMissingField}
	case sub.MatchID == "":
		return &StructuralError{Field: "matchId", Code: CodeMissingField}
	case len(sub.MatchID) < minMatchIDLength:
		return &StructuralError{Field: "matchId", Code: CodeInvalidValue}
	case sub.Nonce == "":
		return &StructuralError{Field: "nonce", Code: CodeMissingField}
	case len(sub.Nonce) < minNonceLength:
		return &StructuralError{Field: "nonce", Code: CodeInvalidValue}
	case !match.IsSupportedPlayerCount(sub.PlayerCount):
		return &StructuralError{Field: "playerCount", Code: CodeInvalidValue}
	case sub.Placement < 1 || sub.Placement > sub.PlayerCount:
		return &StructuralError{Field: "placement", Code: CodeOutOfRange}
	case sub.DurationMs < 0:
		return &StructuralError{Field: "durationMs", Code: CodeOutOfRange}
	case sub.Kills < 0:
		return &StructuralError{Field: "kills", Code: CodeOutOfRange}
	case sub.Timestamp <= 0:
		return &StructuralError{Field: "timestamp", Code: CodeMissingField}
	case sub.AntiCheat.FrameCount < 0:
		return &StructuralError{Field: "antiCheat.frameCount", Code: CodeOutOfRange}
	case sub.AntiCheat.AvgTickRate < 0 || math.IsNaN(sub.AntiCheat.AvgTickRate):
		return &StructuralError{Field: "antiCheat.avgTickRate", Code: CodeOutOfRange}
	case sub.AntiCheat.InputTimingVariance < 0 || math.IsNaN(sub.AntiCheat.InputTimingVariance):
		return &StructuralError{Field: "antiCheat.inputTimingVariance", Code: CodeOutOfRange}
	case requireSignature && sub.Signature == "":
		return &StructuralError{Field: "signature", Code: CodeMissingField}
	}
	return nil
}

// checkBoundary verifies freshness and the wallet signature. A wallet that
// is not an address is left to the gate, which rejects it as INVALID_WALLET.
func (s *Service) checkBoundary(sub match.Submission) (match.ReasonCode, string) {
	if s.cfg.MaxClockSkew > 0 {
		skew := s.now().Sub(sub.SubmittedAt())
		if skew < 0 {
			skew = -skew
		}
		if skew > s.cfg.MaxClockSkew {
			return match.ReasonStaleTimestamp, "request timestamp outside allowed clock skew"
		}
	}
	if s.cfg.RequireSignature && security.ValidWallet(sub.Wallet) {
		if err := signature.Verify(sub.Wallet, sub.SigningMessage(), sub.Signature); err != nil {
			return match.ReasonInvalidSignature, "signature does not match wallet"
		}
	}
	return match.ReasonValid, ""
}

func (s *Service) reject(lc *lifecycle, sub match.Submission, code match.ReasonCode, msg string, risk int,
	flags []match.Flag, checks []security.CheckOutcome) *SubmitResponse {
	s.advance(lc, StateRejected)
	if flags == nil {
		flags = []match.Flag{}
	}
	resp := &SubmitResponse{
		Allowed:          false,
		MatchID:          sub.MatchID,
		Placement:        sub.Placement,
		PlayerCount:      sub.PlayerCount,
		CalculatedReward: decimal.Zero,
		ReasonCode:       code,
		ReasonMessage:    msg,
		RiskScore:        match.ClampScore(risk),
		ValidationFlags:  flags,
		SecurityChecks:   checks,
		FinalState:       lc.state,
		Trail:            lc.trail,
	}

	metricRejectedByClass.Add(code.Class().String(), 1)
	metricRejectedByReason.Add(code.String(), 1)
	log.Info().
		Str("wallet", sub.Wallet).
		Str("match_id", sub.MatchID).
		Str("state", lc.state.String()).
		Str("reason_code", code.String()).
		Int("risk_score", resp.RiskScore).
		Msg("match rejected")
	return resp
}

func (s *Service) advance(lc *lifecycle, to State) {
	if err := lc.advance(to); err != nil {
		log.Error().Err(err).Msg("submission lifecycle")
	}
}

// settle asks for the mint. Any failure leaves the match for the settlement
// job; the acceptance itself stands.
func (s *Service) settle(ctx context.Context, sub match.Submission, resp *SubmitResponse) {
	if s.settler == nil {
		return
	}
	out, err := s.settler.Settle(ctx, sub.MatchID, sub.Wallet, resp.CalculatedReward)
	if err != nil {
		log.Error().Err(err).Str("match_id", sub.MatchID).Msg("settlement bookkeeping failed")
		return
	}
	resp.SettlementStatus = out.Status
	resp.TxReference = out.TxReference
}

func (s *Service) infraFailure(sub match.Submission, op string, err error) error {
	metricInfraFailuresTotal.Add(1)
	log.Error().Err(err).
		Str("wallet", sub.Wallet).
		Str("match_id", sub.MatchID).
		Str("op", op).
		Msg("submission aborted, store unavailable")
	return err
}

// audit is best effort. A failed insert is logged and never changes the
// decision already made.
func (s *Service) audit(ctx context.Context, sub match.Submission, resp *SubmitResponse, breakdown *reward.Breakdown) {
	flags, err := json.Marshal(resp.ValidationFlags)
	if err != nil {
		log.Error().Err(err).Msg("encode audit flags")
		return
	}
	checks := []security.CheckOutcome{}
	if resp.SecurityChecks != nil {
		checks = resp.SecurityChecks
	}
	checksJSON, err := json.Marshal(checks)
	if err != nil {
		log.Error().Err(err).Msg("encode audit checks")
		return
	}
	rec := store.AuditRecord{
		MatchID:        sub.MatchID,
		Wallet:         sub.Wallet,
		FinalState:     resp.FinalState.String(),
		Allowed:        resp.Allowed,
		ReasonCode:     resp.ReasonCode.String(),
		RiskScore:      resp.RiskScore,
		Flags:          flags,
		SecurityChecks: checksJSON,
		CreatedAt:      s.now().UTC(),
	}
	if breakdown != nil {
		if rec.RewardBreakdown, err = json.Marshal(breakdown); err != nil {
			log.Error().Err(err).Msg("encode audit breakdown")
			return
		}
	}
	if _, err := s.store.InsertAudit(ctx, rec); err != nil {
		log.Warn().Err(err).Str("match_id", sub.MatchID).Msg("audit insert failed")
	}
}
