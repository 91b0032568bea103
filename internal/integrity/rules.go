package integrity

import "time"

// DurationRange bounds a match length for one lobby size. Outside the hard
// range the match is rejected; outside the typical range it is only scored.
type DurationRange struct {
	HardMinMs    int64 `yaml:"hard_min_ms"`
	HardMaxMs    int64 `yaml:"hard_max_ms"`
	TypicalMinMs int64 `yaml:"typical_min_ms"`
	TypicalMaxMs int64 `yaml:"typical_max_ms"`
}

// Soft score weights.
const (
	WeightShortDuration   = 15
	WeightLongDuration    = 5
	WeightLowVariance     = 35
	WeightLowVarianceWin  = 15
	WeightKillsLastPlace  = 5
	WeightPerfectFast     = 20
	WeightPerfectLowInput = 10
	WeightTickRate        = 15
	WeightFrameMismatch   = 20
	WeightClientFlag      = 10
	WeightHighWinRate     = 25
	WeightWinStreak       = 30
	WeightRapidMatches    = 20
)

type Rules struct {
	Durations map[int]DurationRange `yaml:"durations"`

	MinMsPerKill int64 `yaml:"min_ms_per_kill"`

	ZeroVarianceMs float64 `yaml:"zero_variance_ms"`
	LowVarianceMs  float64 `yaml:"low_variance_ms"`
	HighVarianceMs float64 `yaml:"high_variance_ms"`

	ExpectedTickRate  float64 `yaml:"expected_tick_rate"`
	TickRateTolerance float64 `yaml:"tick_rate_tolerance"`
	FrameRatioMin     float64 `yaml:"frame_ratio_min"`
	FrameRatioMax     float64 `yaml:"frame_ratio_max"`

	HistoryWindow    time.Duration `yaml:"history_window"`
	HistoryLimit     int           `yaml:"history_limit"`
	WinRateThreshold float64       `yaml:"win_rate_threshold"`
	WinRateMinSample int           `yaml:"win_rate_min_sample"`
	WinStreakFlag    int           `yaml:"win_streak_flag"`
	WinStreakReject  int           `yaml:"win_streak_reject"`

	RapidWindow          time.Duration `yaml:"rapid_window"`
	RapidLookbackWindows int           `yaml:"rapid_lookback_windows"`
	RapidMinMatches      int           `yaml:"rapid_min_matches"`

	BotDetectedScore int `yaml:"bot_detected_score"`
	ReviewScore      int `yaml:"review_score"`
}

func DefaultRules() Rules {
	return Rules{
		Durations: map[int]DurationRange{
			2: {HardMinMs: 10_000, HardMaxMs: 600_000, TypicalMinMs: 30_000, TypicalMaxMs: 300_000},
			3: {HardMinMs: 15_000, HardMaxMs: 900_000, TypicalMinMs: 45_000, TypicalMaxMs: 450_000},
			5: {HardMinMs: 20_000, HardMaxMs: 1_200_000, TypicalMinMs: 60_000, TypicalMaxMs: 600_000},
		},
		MinMsPerKill:         3000,
		ZeroVarianceMs:       5,
		LowVarianceMs:        30,
		HighVarianceMs:       500,
		ExpectedTickRate:     60,
		TickRateTolerance:    0.3,
		FrameRatioMin:        0.5,
		FrameRatioMax:        2.0,
		HistoryWindow:        24 * time.Hour,
		HistoryLimit:         100,
		WinRateThreshold:     0.85,
		WinRateMinSample:     5,
		WinStreakFlag:        10,
		WinStreakReject:      20,
		RapidWindow:          60 * time.Second,
		RapidLookbackWindows: 5,
		RapidMinMatches:      3,
		BotDetectedScore:     75,
		ReviewScore:          50,
	}
}
