package match

import "fmt"

const MaxRiskScore = 100

type Severity uint8

const (
	SeverityInfo Severity = iota
	SeverityLow
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	case SeverityCritical:
		return "critical"
	default:
		return fmt.Sprintf("Severity(%d)", uint8(s))
	}
}

func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Severity) UnmarshalText(b []byte) error {
	for v := SeverityInfo; v <= SeverityCritical; v++ {
		if v.String() == string(b) {
			*s = v
			return nil
		}
	}
	return fmt.Errorf("unknown severity %q", string(b))
}

type FlagCode string

const (
	FlagDurationTooShort     FlagCode = "DURATION_TOO_SHORT"
	FlagDurationTooLong      FlagCode = "DURATION_TOO_LONG"
	FlagDurationImpossible   FlagCode = "DURATION_IMPOSSIBLE"
	FlagShortDuration        FlagCode = "SHORT_DURATION"
	FlagLongDuration         FlagCode = "LONG_DURATION"
	FlagZeroInputVariance    FlagCode = "ZERO_INPUT_VARIANCE"
	FlagLowInputVariance     FlagCode = "LOW_INPUT_VARIANCE"
	FlagLowVarianceWin       FlagCode = "LOW_VARIANCE_WIN"
	FlagHighInputVariance    FlagCode = "HIGH_INPUT_VARIANCE"
	FlagKillCountImpossible  FlagCode = "KILL_COUNT_IMPOSSIBLE"
	FlagKillsInLastPlace     FlagCode = "KILLS_IN_LAST_PLACE"
	FlagPerfectGameFast      FlagCode = "PERFECT_GAME_FAST"
	FlagPerfectGameLowInput  FlagCode = "PERFECT_GAME_LOW_VARIANCE"
	FlagTickRateAnomaly      FlagCode = "TICK_RATE_ANOMALY"
	FlagFrameCountMismatch   FlagCode = "FRAME_COUNT_MISMATCH"
	FlagClientReported       FlagCode = "CLIENT_REPORTED"
	FlagHighWinRate          FlagCode = "HIGH_WIN_RATE"
	FlagWinStreak            FlagCode = "WIN_STREAK"
	FlagSuspiciousWinStreak  FlagCode = "SUSPICIOUS_WIN_STREAK"
	FlagRapidMatches         FlagCode = "RAPID_MATCHES"
	FlagHistoryUnavailable   FlagCode = "HISTORY_UNAVAILABLE"
	FlagScoreBotDetected     FlagCode = "BOT_DETECTED"
	FlagScoreFlaggedReview   FlagCode = "FLAGGED_FOR_REVIEW"
)

type Flag struct {
	Code     FlagCode `json:"code"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// ValidationResult is the decision of the integrity validator.
type ValidationResult struct {
	Allowed   bool       `json:"allowed"`
	Reason    ReasonCode `json:"reasonCode"`
	Message   string     `json:"message"`
	RiskScore int        `json:"riskScore"`
	Flags     []Flag     `json:"flags"`
}

// ClampScore bounds a raw accumulated score into [0, MaxRiskScore].
func ClampScore(n int) int {
	if n < 0 {
		return 0
	}
	if n > MaxRiskScore {
		return MaxRiskScore
	}
	return n
}
