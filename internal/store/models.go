package store

import (
	"encoding/json"
	"time"

	"match-reward-engine/internal/match"

	"github.com/shopspring/decimal"
)

type SettlementStatus string

const (
	SettlementPending SettlementStatus = "pending"
	SettlementMinted  SettlementStatus = "minted"
	SettlementFailed  SettlementStatus = "failed"
)

// AcceptedMatch is everything written when a match passes the pipeline.
type AcceptedMatch struct {
	MatchID     string
	Wallet      string
	Placement   int
	PlayerCount int
	Reward      decimal.Decimal
	RiskScore   int
	ProcessedAt time.Time
}

type ProcessedMatch struct {
	MatchID          string           `json:"match_id"`
	Wallet           string           `json:"wallet"`
	Placement        int              `json:"placement"`
	PlayerCount      int              `json:"player_count"`
	Reward           decimal.Decimal  `json:"reward"`
	RiskScore        int              `json:"risk_score"`
	SettlementStatus SettlementStatus `json:"settlement_status"`
	SettlementRef    string           `json:"settlement_ref,omitempty"`
	MintAttempts     int              `json:"mint_attempts"`
	LastMintError    string           `json:"last_mint_error,omitempty"`
	ProcessedAt      time.Time        `json:"processed_at"`
	SettledAt        *time.Time       `json:"settled_at,omitempty"`
}

type UsageTotal struct {
	Day   time.Time       `json:"day"`
	Type  match.UsageType `json:"usage_type"`
	Total decimal.Decimal `json:"total"`
}

// AuditRecord is one handled submission. JSON columns are stored as given.
type AuditRecord struct {
	ID              string          `json:"id"`
	MatchID         string          `json:"match_id"`
	Wallet          string          `json:"wallet"`
	FinalState      string          `json:"final_state"`
	Allowed         bool            `json:"allowed"`
	ReasonCode      string          `json:"reason_code"`
	RiskScore       int             `json:"risk_score"`
	Flags           json.RawMessage `json:"flags"`
	SecurityChecks  json.RawMessage `json:"security_checks"`
	RewardBreakdown json.RawMessage `json:"reward_breakdown,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

type AuditFilter struct {
	Wallet  string
	MatchID string
}

// CleanupReport counts rows removed by one hygiene pass.
type CleanupReport struct {
	Nonces      int64
	RateEntries int64
	UsageRows   int64
}
