package config

import (
	"fmt"
	"os"

	"match-reward-engine/internal/integrity"
	"match-reward-engine/internal/reward"
	"match-reward-engine/internal/security"

	"gopkg.in/yaml.v3"
)

// Rules groups every tunable threshold of the pipeline.
type Rules struct {
	Security  security.Limits `yaml:"security"`
	Integrity integrity.Rules `yaml:"integrity"`
	Reward    reward.Table    `yaml:"reward"`
}

func DefaultRules() Rules {
	return Rules{
		Security:  security.DefaultLimits(),
		Integrity: integrity.DefaultRules(),
		Reward:    reward.DefaultTable(),
	}
}

// LoadRules reads a YAML override file on top of the defaults. Keys absent
// from the file keep their default; a duration entry replaces the whole
// range for that player count. An empty path returns the defaults.
func LoadRules(path string) (Rules, error) {
	rules := DefaultRules()
	if path == "" {
		return rules, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, fmt.Errorf("read rules: %w", err)
	}
	if err := yaml.Unmarshal(b, &rules); err != nil {
		return Rules{}, fmt.Errorf("parse rules: %w", err)
	}
	if err := rules.Validate(); err != nil {
		return Rules{}, err
	}
	return rules, nil
}

func (r Rules) Validate() error {
	for players, d := range r.Integrity.Durations {
		if d.HardMinMs <= 0 || d.HardMinMs > d.TypicalMinMs || d.TypicalMinMs > d.TypicalMaxMs || d.TypicalMaxMs > d.HardMaxMs {
			return fmt.Errorf("rules: duration range for %d players must satisfy 0 < hard_min <= typical_min <= typical_max <= hard_max", players)
		}
	}
	if r.Integrity.ReviewScore > r.Integrity.BotDetectedScore {
		return fmt.Errorf("rules: review_score %d above bot_detected_score %d", r.Integrity.ReviewScore, r.Integrity.BotDetectedScore)
	}
	if r.Security.BotSuspiciousThreshold > r.Security.BotBanThreshold {
		return fmt.Errorf("rules: bot_suspicious_threshold above bot_ban_threshold")
	}
	if r.Security.RateMax <= 0 || r.Security.RateWindow <= 0 {
		return fmt.Errorf("rules: rate limit window and max must be positive")
	}
	if r.Reward.MaxPerMatch.IsNegative() || r.Security.MaxRewardPerMatch.IsNegative() || r.Security.DailyRewardCap.IsNegative() {
		return fmt.Errorf("rules: reward caps must not be negative")
	}
	return nil
}
