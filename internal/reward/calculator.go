// Package reward maps validated match attributes to a token amount.
//
// Calculate is a total, side-effect-free function of its input and the table:
// the same Input always yields the same Calculation, breakdown included.
package reward

import "github.com/shopspring/decimal"

const amountPlaces = 2

var msPerMinute = decimal.NewFromInt(60000)

type Input struct {
	Placement       int
	PlayerCount     int
	Kills           int
	DurationMs      int64
	AntiCheatPassed bool
	BotConfidence   float64
}

type Breakdown struct {
	Base      decimal.Decimal `json:"base"`
	Placement decimal.Decimal `json:"placement"`
	Kills     decimal.Decimal `json:"kills"`
	Survival  decimal.Decimal `json:"survival"`
	Penalties decimal.Decimal `json:"penalties"`
	Final     decimal.Decimal `json:"final"`
}

type Calculation struct {
	BaseReward          decimal.Decimal `json:"baseReward"`
	PlacementMultiplier decimal.Decimal `json:"placementMultiplier"`
	KillBonus           decimal.Decimal `json:"killBonus"`
	SurvivalBonus       decimal.Decimal `json:"survivalBonus"`
	AntiCheatModifier   decimal.Decimal `json:"antiCheatModifier"`
	FinalReward         decimal.Decimal `json:"finalReward"`
	Breakdown           Breakdown       `json:"breakdown"`
}

type Calculator struct {
	table Table
}

func NewCalculator(t Table) *Calculator {
	return &Calculator{table: t}
}

func (c *Calculator) Table() Table {
	return c.table
}

// Calculate runs the default table.
func Calculate(in Input) Calculation {
	return NewCalculator(DefaultTable()).Calculate(in)
}

func (c *Calculator) Calculate(in Input) Calculation {
	t := c.table

	base := t.base(in.PlayerCount)
	mult := t.multiplier(in.Placement)
	kills := in.Kills
	if kills < 0 {
		kills = 0
	}
	duration := in.DurationMs
	if duration < 0 {
		duration = 0
	}

	placed := base.Mul(mult).Round(amountPlaces)
	killBonus := t.KillBonus.Mul(decimal.NewFromInt(int64(kills))).Round(amountPlaces)
	survival := decimal.Min(
		decimal.NewFromInt(duration).Div(msPerMinute).Mul(t.SurvivalPerMinute),
		t.SurvivalCap,
	).Round(amountPlaces)
	modifier := c.modifier(in)

	gross := placed.Add(killBonus).Add(survival)
	final := clamp(gross.Mul(modifier), decimal.Zero, t.MaxPerMatch).Round(amountPlaces)

	return Calculation{
		BaseReward:          base,
		PlacementMultiplier: mult,
		KillBonus:           killBonus,
		SurvivalBonus:       survival,
		AntiCheatModifier:   modifier,
		FinalReward:         final,
		Breakdown: Breakdown{
			Base:      base,
			Placement: placed.Sub(base),
			Kills:     killBonus,
			Survival:  survival,
			Penalties: gross.Sub(final),
			Final:     final,
		},
	}
}

func (c *Calculator) modifier(in Input) decimal.Decimal {
	switch {
	case !in.AntiCheatPassed:
		return decimal.Zero
	case in.BotConfidence >= c.table.SuspiciousConfidence:
		return c.table.SuspiciousModifier
	default:
		return decimal.NewFromInt(1)
	}
}

func clamp(v, lo, hi decimal.Decimal) decimal.Decimal {
	if v.LessThan(lo) {
		return lo
	}
	if v.GreaterThan(hi) {
		return hi
	}
	return v
}
