package reward

import "github.com/shopspring/decimal"

// Table holds the fixed reward economy. Amounts are in whole tokens.
type Table struct {
	BaseByPlayers        map[int]decimal.Decimal `yaml:"base_by_players"`
	DefaultBase          decimal.Decimal         `yaml:"default_base"`
	PlacementMultipliers map[int]decimal.Decimal `yaml:"placement_multipliers"`
	DefaultMultiplier    decimal.Decimal         `yaml:"default_multiplier"`
	KillBonus            decimal.Decimal         `yaml:"kill_bonus"`
	SurvivalPerMinute    decimal.Decimal         `yaml:"survival_per_minute"`
	SurvivalCap          decimal.Decimal         `yaml:"survival_cap"`
	SuspiciousConfidence float64                 `yaml:"suspicious_confidence"`
	SuspiciousModifier   decimal.Decimal         `yaml:"suspicious_modifier"`
	MaxPerMatch          decimal.Decimal         `yaml:"max_per_match"`
}

func DefaultTable() Table {
	return Table{
		BaseByPlayers: map[int]decimal.Decimal{
			2: decimal.NewFromInt(10),
			3: decimal.NewFromInt(15),
			5: decimal.NewFromInt(25),
		},
		DefaultBase: decimal.NewFromInt(10),
		PlacementMultipliers: map[int]decimal.Decimal{
			1: decimal.RequireFromString("2.0"),
			2: decimal.RequireFromString("1.5"),
			3: decimal.RequireFromString("1.0"),
			4: decimal.RequireFromString("0.5"),
			5: decimal.RequireFromString("0.25"),
		},
		DefaultMultiplier:    decimal.RequireFromString("0.1"),
		KillBonus:            decimal.NewFromInt(5),
		SurvivalPerMinute:    decimal.NewFromInt(2),
		SurvivalCap:          decimal.NewFromInt(20),
		SuspiciousConfidence: 0.7,
		SuspiciousModifier:   decimal.RequireFromString("0.5"),
		MaxPerMatch:          decimal.NewFromInt(1000),
	}
}

func (t Table) base(playerCount int) decimal.Decimal {
	if v, ok := t.BaseByPlayers[playerCount]; ok {
		return v
	}
	return t.DefaultBase
}

func (t Table) multiplier(placement int) decimal.Decimal {
	if v, ok := t.PlacementMultipliers[placement]; ok {
		return v
	}
	return t.DefaultMultiplier
}
