package match

import (
	"fmt"
	"strings"
	"time"
)

// SupportedPlayerCounts lists the lobby sizes the game runs.
var SupportedPlayerCounts = []int{2, 3, 5}

func IsSupportedPlayerCount(n int) bool {
	for _, v := range SupportedPlayerCounts {
		if v == n {
			return true
		}
	}
	return false
}

type AntiCheat struct {
	InputHash           string   `json:"inputHash"`
	FrameCount          int64    `json:"frameCount"`
	AvgTickRate         float64  `json:"avgTickRate"`
	SuspiciousFlags     []string `json:"suspiciousFlags"`
	InputTimingVariance float64  `json:"inputTimingVariance"`
	MovementHash        string   `json:"movementHash"`
}

// Submission is a client-reported match result. It is consumed once by the
// pipeline and never mutated.
type Submission struct {
	Wallet      string    `json:"walletAddress"`
	MatchID     string    `json:"matchId"`
	Placement   int       `json:"placement"`
	PlayerCount int       `json:"playerCount"`
	DurationMs  int64     `json:"durationMs"`
	Kills       int       `json:"kills"`
	AntiCheat   AntiCheat `json:"antiCheat"`
	Timestamp   int64     `json:"timestamp"`
	Nonce       string    `json:"nonce"`
	Signature   string    `json:"signature"`
}

func (s Submission) IsWin() bool {
	return s.Placement == 1
}

func (s Submission) IsLastPlace() bool {
	return s.PlayerCount > 0 && s.Placement == s.PlayerCount
}

func (s Submission) Duration() time.Duration {
	return time.Duration(s.DurationMs) * time.Millisecond
}

func (s Submission) SubmittedAt() time.Time {
	return time.UnixMilli(s.Timestamp)
}

// SigningMessage is the canonical text the client signs with its wallet key.
// Every field that influences the reward is bound into it.
func (s Submission) SigningMessage() string {
	return fmt.Sprintf(
		"match-result\nwallet:%s\nmatch:%s\nplacement:%d/%d\nduration:%d\nkills:%d\ninput:%s\ntimestamp:%d\nnonce:%s",
		strings.ToLower(s.Wallet),
		s.MatchID,
		s.Placement,
		s.PlayerCount,
		s.DurationMs,
		s.Kills,
		s.AntiCheat.InputHash,
		s.Timestamp,
		s.Nonce,
	)
}

// HistoryEntry is one previously accepted match used by pattern analysis.
type HistoryEntry struct {
	MatchID     string
	Placement   int
	ProcessedAt time.Time
}

func (h HistoryEntry) IsWin() bool {
	return h.Placement == 1
}

type UsageType string

const (
	UsageReward UsageType = "reward"
	UsageMatch  UsageType = "match"
)

// DayBucket truncates t to its UTC calendar day.
func DayBucket(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
