package submission

import (
	"match-reward-engine/internal/match"
	"match-reward-engine/internal/reward"
	"match-reward-engine/internal/security"
	"match-reward-engine/internal/store"

	"github.com/shopspring/decimal"
)

// SubmitResponse is returned for every accepted or rejected submission.
type SubmitResponse struct {
	Allowed          bool                    `json:"allowed"`
	MatchID          string                  `json:"matchId"`
	Placement        int                     `json:"placement"`
	PlayerCount      int                     `json:"playerCount"`
	CalculatedReward decimal.Decimal         `json:"calculatedReward"`
	ReasonCode       match.ReasonCode        `json:"reasonCode"`
	ReasonMessage    string                  `json:"reasonMessage"`
	RiskScore        int                     `json:"riskScore"`
	ValidationFlags  []match.Flag            `json:"validationFlags"`
	RewardBreakdown  *reward.Breakdown       `json:"rewardBreakdown,omitempty"`
	SecurityChecks   []security.CheckOutcome `json:"securityChecks,omitempty"`
	SettlementStatus store.SettlementStatus  `json:"settlementStatus,omitempty"`
	TxReference      string                  `json:"txReference,omitempty"`

	FinalState State   `json:"-"`
	Trail      []State `json:"-"`
}

type QuoteRequest struct {
	Placement       int     `json:"placement"`
	PlayerCount     int     `json:"playerCount"`
	Kills           int     `json:"kills"`
	DurationMs      int64   `json:"durationMs"`
	BotConfidence   float64 `json:"botConfidence"`
	AntiCheatPassed *bool   `json:"antiCheatPassed,omitempty"`
}
