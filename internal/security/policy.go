package security

import (
	"errors"
	"fmt"
)

// FailurePolicy decides what a check does when its backing store errors.
// The zero value is FailClosed.
type FailurePolicy uint8

const (
	FailClosed FailurePolicy = iota
	FailOpen
)

func (p FailurePolicy) String() string {
	if p == FailOpen {
		return "fail_open"
	}
	return "fail_closed"
}

type CheckName string

const (
	CheckWalletFormat   CheckName = "wallet_format"
	CheckNonce          CheckName = "nonce"
	CheckRateLimit      CheckName = "rate_limit"
	CheckMatchUnique    CheckName = "match_uniqueness"
	CheckDailyMatchCap  CheckName = "daily_match_cap"
	CheckDailyRewardCap CheckName = "daily_reward_cap"
	CheckMatchRewardCap CheckName = "match_reward_cap"
	CheckBotConfidence  CheckName = "bot_confidence"
)

// checkPolicies is the single place where a store-backed check is allowed to
// fail open. Anything guarding issuance of value stays FailClosed.
var checkPolicies = map[CheckName]FailurePolicy{
	CheckNonce:          FailClosed,
	CheckRateLimit:      FailOpen,
	CheckMatchUnique:    FailClosed,
	CheckDailyMatchCap:  FailClosed,
	CheckDailyRewardCap: FailClosed,
}

func PolicyFor(name CheckName) FailurePolicy {
	return checkPolicies[name]
}

var ErrStoreUnavailable = errors.New("store_unavailable")

// InfrastructureError is returned when a FailClosed check could not reach its
// store. It is the only gate error a client may retry unchanged.
type InfrastructureError struct {
	Check CheckName
	Err   error
}

func (e *InfrastructureError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrStoreUnavailable, e.Check, e.Err)
}

func (e *InfrastructureError) Unwrap() []error {
	return []error{ErrStoreUnavailable, e.Err}
}
