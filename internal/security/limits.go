package security

import (
	"time"

	"github.com/shopspring/decimal"
)

// Risk weights contributed by each failing sub-check.
const (
	WeightInvalidWallet  = 100
	WeightNonceReused    = 50
	WeightRateLimited    = 40
	WeightMatchProcessed = 50
	WeightDailyMatchCap  = 30
	WeightDailyRewardCap = 30
	WeightMatchRewardCap = 40
	WeightBotBanned      = 50
	WeightBotSuspicious  = 20
)

type Limits struct {
	RateWindow             time.Duration   `yaml:"rate_window"`
	RateMax                int             `yaml:"rate_max"`
	NonceWindow            time.Duration   `yaml:"nonce_window"`
	DailyMatchCap          int64           `yaml:"daily_match_cap"`
	DailyRewardCap         decimal.Decimal `yaml:"daily_reward_cap"`
	MaxRewardPerMatch      decimal.Decimal `yaml:"max_reward_per_match"`
	BotBanThreshold        float64         `yaml:"bot_ban_threshold"`
	BotSuspiciousThreshold float64         `yaml:"bot_suspicious_threshold"`
}

func DefaultLimits() Limits {
	return Limits{
		RateWindow:             60 * time.Second,
		RateMax:                30,
		NonceWindow:            5 * time.Minute,
		DailyMatchCap:          50,
		DailyRewardCap:         decimal.NewFromInt(5000),
		MaxRewardPerMatch:      decimal.NewFromInt(1000),
		BotBanThreshold:        0.9,
		BotSuspiciousThreshold: 0.7,
	}
}
