// Package integrity scores how plausible a reported match is. Hard violations
// reject outright; soft anomalies add to a risk score that decides between
// accept, accept-for-review and BOT_DETECTED.
package integrity

import (
	"context"
	"fmt"
	"math"
	"time"

	"match-reward-engine/internal/match"

	"github.com/rs/zerolog/log"
)

// History returns a wallet's accepted matches processed at or after since,
// newest first, at most limit rows.
type History interface {
	RecentMatches(ctx context.Context, wallet string, since time.Time, limit int) ([]match.HistoryEntry, error)
}

type Option func(*Validator)

func WithClock(now func() time.Time) Option {
	return func(v *Validator) { v.now = now }
}

type Validator struct {
	rules Rules
	now   func() time.Time
}

func NewValidator(rules Rules, opts ...Option) *Validator {
	v := &Validator{rules: rules, now: time.Now}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

func (v *Validator) Rules() Rules {
	return v.rules
}

type rejection struct {
	reason  match.ReasonCode
	message string
}

type scorer struct {
	score int
	flags []match.Flag
}

func (s *scorer) add(weight int, code match.FlagCode, sev match.Severity, msg string) {
	s.score += weight
	s.flags = append(s.flags, match.Flag{Code: code, Severity: sev, Message: msg})
}

// Validate runs the plausibility checks in order. A nil history skips the
// win-pattern and cadence checks. History lookup failures never reject.
func (v *Validator) Validate(ctx context.Context, history History, sub match.Submission) match.ValidationResult {
	sc := &scorer{flags: []match.Flag{}}

	steps := []func(*scorer, match.Submission) *rejection{
		v.checkDuration,
		v.checkInputVariance,
		v.checkKills,
		v.checkFrames,
	}
	for _, step := range steps {
		if rej := step(sc, sub); rej != nil {
			return reject(sc, rej)
		}
	}

	if history != nil {
		if rej := v.checkWinPattern(ctx, sc, history, sub); rej != nil {
			return reject(sc, rej)
		}
		v.checkCadence(ctx, sc, history, sub)
	}
	return v.decide(sc)
}

func (v *Validator) checkDuration(sc *scorer, sub match.Submission) *rejection {
	r, ok := v.rules.Durations[sub.PlayerCount]
	if !ok {
		return nil
	}
	d := sub.DurationMs
	switch {
	case d < r.HardMinMs:
		return &rejection{match.ReasonDurationTooShort, fmt.Sprintf("duration %dms below minimum %dms", d, r.HardMinMs)}
	case d > r.HardMaxMs:
		return &rejection{match.ReasonDurationTooLong, fmt.Sprintf("duration %dms above maximum %dms", d, r.HardMaxMs)}
	}
	if sub.IsWin() && sub.Kills > 0 && d < int64(sub.Kills)*v.rules.MinMsPerKill {
		return &rejection{match.ReasonDurationImpossible,
			fmt.Sprintf("%d kills in %dms is not achievable", sub.Kills, d)}
	}
	switch {
	case d < r.TypicalMinMs:
		sc.add(WeightShortDuration, match.FlagShortDuration, match.SeverityMedium,
			fmt.Sprintf("duration %dms below typical %dms", d, r.TypicalMinMs))
	case d > r.TypicalMaxMs:
		sc.add(WeightLongDuration, match.FlagLongDuration, match.SeverityLow,
			fmt.Sprintf("duration %dms above typical %dms", d, r.TypicalMaxMs))
	}
	return nil
}

func (v *Validator) checkInputVariance(sc *scorer, sub match.Submission) *rejection {
	variance := sub.AntiCheat.InputTimingVariance
	switch {
	case variance <= v.rules.ZeroVarianceMs:
		return &rejection{match.ReasonZeroInputVariance,
			fmt.Sprintf("input timing variance %.1fms indicates automated input", variance)}
	case variance <= v.rules.LowVarianceMs:
		sc.add(WeightLowVariance, match.FlagLowInputVariance, match.SeverityHigh,
			fmt.Sprintf("input timing variance %.1fms is unusually low", variance))
		if sub.IsWin() {
			sc.add(WeightLowVarianceWin, match.FlagLowVarianceWin, match.SeverityHigh, "low input variance on a winning match")
		}
	case variance > v.rules.HighVarianceMs:
		sc.add(0, match.FlagHighInputVariance, match.SeverityInfo,
			fmt.Sprintf("input timing variance %.1fms is unusually high", variance))
	}
	return nil
}

func (v *Validator) checkKills(sc *scorer, sub match.Submission) *rejection {
	if sub.Kills >= sub.PlayerCount {
		return &rejection{match.ReasonKillCountImpossible,
			fmt.Sprintf("%d kills in a %d player match", sub.Kills, sub.PlayerCount)}
	}
	if sub.Kills > 0 && sub.IsLastPlace() {
		sc.add(WeightKillsLastPlace, match.FlagKillsInLastPlace, match.SeverityLow, "kills reported from last place")
	}
	if sub.IsWin() && sub.Kills == sub.PlayerCount-1 {
		r, ok := v.rules.Durations[sub.PlayerCount]
		if ok && sub.DurationMs < r.TypicalMinMs {
			sc.add(WeightPerfectFast, match.FlagPerfectGameFast, match.SeverityMedium, "perfect game faster than typical")
			if sub.AntiCheat.InputTimingVariance <= v.rules.LowVarianceMs {
				sc.add(WeightPerfectLowInput, match.FlagPerfectGameLowInput, match.SeverityMedium, "fast perfect game with low input variance")
			}
		}
	}
	return nil
}

func (v *Validator) checkFrames(sc *scorer, sub match.Submission) *rejection {
	ac := sub.AntiCheat
	expected := v.rules.ExpectedTickRate
	if math.Abs(ac.AvgTickRate-expected) > expected*v.rules.TickRateTolerance {
		sc.add(WeightTickRate, match.FlagTickRateAnomaly, match.SeverityMedium,
			fmt.Sprintf("average tick rate %.1f outside %.0f±%.0f%%", ac.AvgTickRate, expected, v.rules.TickRateTolerance*100))
	}

	expectedFrames := float64(sub.DurationMs) / 1000 * expected
	if expectedFrames > 0 {
		ratio := float64(ac.FrameCount) / expectedFrames
		if ratio < v.rules.FrameRatioMin || ratio > v.rules.FrameRatioMax {
			sc.add(WeightFrameMismatch, match.FlagFrameCountMismatch, match.SeverityMedium,
				fmt.Sprintf("frame count %d does not fit duration (ratio %.2f)", ac.FrameCount, ratio))
		}
	}

	for _, f := range ac.SuspiciousFlags {
		sc.add(WeightClientFlag, match.FlagClientReported, match.SeverityLow, "client reported: "+f)
	}
	return nil
}

func (v *Validator) checkWinPattern(ctx context.Context, sc *scorer, history History, sub match.Submission) *rejection {
	now := v.now()
	recent, err := history.RecentMatches(ctx, sub.Wallet, now.Add(-v.rules.HistoryWindow), v.rules.HistoryLimit)
	if err != nil {
		log.Warn().Err(err).Str("wallet", sub.Wallet).Str("match_id", sub.MatchID).Msg("match history unavailable, skipping win pattern")
		sc.add(0, match.FlagHistoryUnavailable, match.SeverityInfo, "win pattern analysis skipped")
		return nil
	}

	wins, total := 0, len(recent)+1
	if sub.IsWin() {
		wins++
	}
	for _, h := range recent {
		if h.IsWin() {
			wins++
		}
	}
	if total >= v.rules.WinRateMinSample {
		rate := float64(wins) / float64(total)
		if rate > v.rules.WinRateThreshold {
			sc.add(WeightHighWinRate, match.FlagHighWinRate, match.SeverityHigh,
				fmt.Sprintf("win rate %.0f%% over %d matches", rate*100, total))
		}
	}

	if !sub.IsWin() {
		return nil
	}
	streak := 1
	for _, h := range recent {
		if !h.IsWin() {
			break
		}
		streak++
	}
	switch {
	case streak >= v.rules.WinStreakReject:
		return &rejection{match.ReasonSuspiciousWinStreak, fmt.Sprintf("%d consecutive wins", streak)}
	case streak >= v.rules.WinStreakFlag:
		sc.add(WeightWinStreak, match.FlagWinStreak, match.SeverityHigh, fmt.Sprintf("%d consecutive wins", streak))
	}
	return nil
}

func (v *Validator) checkCadence(ctx context.Context, sc *scorer, history History, sub match.Submission) {
	now := v.now()
	lookback := v.rules.RapidWindow * time.Duration(v.rules.RapidLookbackWindows)
	recent, err := history.RecentMatches(ctx, sub.Wallet, now.Add(-lookback), v.rules.HistoryLimit)
	if err != nil {
		log.Warn().Err(err).Str("wallet", sub.Wallet).Str("match_id", sub.MatchID).Msg("match history unavailable, skipping cadence")
		return
	}
	cutoff := now.Add(-v.rules.RapidWindow)
	n := 0
	for _, h := range recent {
		if !h.ProcessedAt.Before(cutoff) {
			n++
		}
	}
	if n >= v.rules.RapidMinMatches {
		sc.add(WeightRapidMatches, match.FlagRapidMatches, match.SeverityMedium,
			fmt.Sprintf("%d matches in the last %s", n, v.rules.RapidWindow))
	}
}

func (v *Validator) decide(sc *scorer) match.ValidationResult {
	score := match.ClampScore(sc.score)
	res := match.ValidationResult{Allowed: true, Reason: match.ReasonValid, RiskScore: score, Flags: sc.flags}
	switch {
	case score >= v.rules.BotDetectedScore:
		res.Allowed = false
		res.Reason = match.ReasonBotDetected
		res.Message = fmt.Sprintf("risk score %d indicates automated play", score)
		res.Flags = append(res.Flags, match.Flag{Code: match.FlagScoreBotDetected, Severity: match.SeverityCritical, Message: res.Message})
	case score >= v.rules.ReviewScore:
		res.Message = "flagged for review"
		res.Flags = append(res.Flags, match.Flag{Code: match.FlagScoreFlaggedReview, Severity: match.SeverityMedium, Message: res.Message})
	default:
		res.Message = "match validated"
	}
	return res
}

func reject(sc *scorer, rej *rejection) match.ValidationResult {
	flags := append(sc.flags, match.Flag{
		Code:     match.FlagCode(rej.reason.String()),
		Severity: match.SeverityCritical,
		Message:  rej.message,
	})
	return match.ValidationResult{
		Allowed:   false,
		Reason:    rej.reason,
		Message:   rej.message,
		RiskScore: match.MaxRiskScore,
		Flags:     flags,
	}
}
