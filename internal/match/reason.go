package match

import "fmt"

// ReasonCode is the closed set of decision codes. New codes must be added to
// the const block, String and Class, otherwise they fail to marshal.
type ReasonCode uint8

const (
	ReasonValid ReasonCode = iota

	ReasonInvalidSignature
	ReasonStaleTimestamp

	ReasonInvalidWallet
	ReasonNonceReused
	ReasonRateLimited
	ReasonMatchAlreadyProcessed
	ReasonDailyMatchCap
	ReasonDailyRewardCap
	ReasonMatchRewardCap
	ReasonBotBanned

	ReasonDurationTooShort
	ReasonDurationTooLong
	ReasonDurationImpossible
	ReasonZeroInputVariance
	ReasonKillCountImpossible
	ReasonSuspiciousWinStreak
	ReasonBotDetected

	reasonCodeCount
)

type ReasonClass uint8

const (
	ClassNone ReasonClass = iota
	ClassBoundary
	ClassSecurity
	ClassIntegrity
)

func (c ReasonClass) String() string {
	switch c {
	case ClassBoundary:
		return "boundary"
	case ClassSecurity:
		return "security"
	case ClassIntegrity:
		return "integrity"
	default:
		return "none"
	}
}

func (c ReasonCode) String() string {
	switch c {
	case ReasonValid:
		return "VALID"
	case ReasonInvalidSignature:
		return "INVALID_SIGNATURE"
	case ReasonStaleTimestamp:
		return "STALE_TIMESTAMP"
	case ReasonInvalidWallet:
		return "INVALID_WALLET"
	case ReasonNonceReused:
		return "NONCE_REUSED"
	case ReasonRateLimited:
		return "RATE_LIMITED"
	case ReasonMatchAlreadyProcessed:
		return "MATCH_ALREADY_PROCESSED"
	case ReasonDailyMatchCap:
		return "DAILY_MATCH_CAP"
	case ReasonDailyRewardCap:
		return "DAILY_REWARD_CAP"
	case ReasonMatchRewardCap:
		return "MATCH_REWARD_CAP"
	case ReasonBotBanned:
		return "BOT_BANNED"
	case ReasonDurationTooShort:
		return "DURATION_TOO_SHORT"
	case ReasonDurationTooLong:
		return "DURATION_TOO_LONG"
	case ReasonDurationImpossible:
		return "DURATION_IMPOSSIBLE"
	case ReasonZeroInputVariance:
		return "ZERO_INPUT_VARIANCE"
	case ReasonKillCountImpossible:
		return "KILL_COUNT_IMPOSSIBLE"
	case ReasonSuspiciousWinStreak:
		return "SUSPICIOUS_WIN_STREAK"
	case ReasonBotDetected:
		return "BOT_DETECTED"
	default:
		return fmt.Sprintf("ReasonCode(%d)", uint8(c))
	}
}

func (c ReasonCode) Class() ReasonClass {
	switch c {
	case ReasonValid:
		return ClassNone
	case ReasonInvalidSignature, ReasonStaleTimestamp:
		return ClassBoundary
	case ReasonInvalidWallet, ReasonNonceReused, ReasonRateLimited, ReasonMatchAlreadyProcessed,
		ReasonDailyMatchCap, ReasonDailyRewardCap, ReasonMatchRewardCap, ReasonBotBanned:
		return ClassSecurity
	case ReasonDurationTooShort, ReasonDurationTooLong, ReasonDurationImpossible, ReasonZeroInputVariance,
		ReasonKillCountImpossible, ReasonSuspiciousWinStreak, ReasonBotDetected:
		return ClassIntegrity
	default:
		return ClassNone
	}
}

func (c ReasonCode) Valid() bool {
	return c < reasonCodeCount
}

func (c ReasonCode) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("unknown reason code %d", uint8(c))
	}
	return []byte(c.String()), nil
}

func (c *ReasonCode) UnmarshalText(b []byte) error {
	v, err := ParseReasonCode(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

func ParseReasonCode(s string) (ReasonCode, error) {
	for c := ReasonCode(0); c < reasonCodeCount; c++ {
		if c.String() == s {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown reason code %q", s)
}

// AllReasonCodes returns every defined code in declaration order.
func AllReasonCodes() []ReasonCode {
	out := make([]ReasonCode, 0, reasonCodeCount)
	for c := ReasonCode(0); c < reasonCodeCount; c++ {
		out = append(out, c)
	}
	return out
}
