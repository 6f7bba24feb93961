package model

import (
	"time"

	"github.com/secmon-lab/stratagem/pkg/domain/types"
)

// GameSummary reports the outcome of one game
type GameSummary struct {
	GameID              GameID                    `json:"game_id"`
	Scenario            string                    `json:"scenario"`
	State               types.EngineState         `json:"state"`
	StopReason          types.StopReason          `json:"stop_reason"`
	TerminalDetail      string                    `json:"terminal_detail,omitempty"`
	Rounds              int                       `json:"rounds"`
	Duration            float64                   `json:"duration"`
	TotalActions        int                       `json:"total_actions"`
	SuccessfulActions   int                       `json:"successful_actions"`
	CooperationEvents   int                       `json:"cooperation_events"`
	CommunicationEvents int                       `json:"communication_events"`
	PatternEvents       int                       `json:"pattern_events"`
	FailuresByKind      map[types.FailureKind]int `json:"failures_by_kind"`
	Agents              map[string]map[string]any `json:"agents"`
	Persisted           bool                      `json:"persisted"`
	StartedAt           time.Time                 `json:"started_at"`
	FinishedAt          time.Time                 `json:"finished_at"`
}

// FailedActions returns the number of failed actions of all kinds
func (s *GameSummary) FailedActions() int {
	n := 0
	for _, c := range s.FailuresByKind {
		n += c
	}
	return n
}

// Trend classifies how cooperation evolved across games
type Trend string

const (
	TrendUnknown   Trend = "insufficient_games"
	TrendEmerging  Trend = "cooperation_emerging"
	TrendDeclining Trend = "becoming_competitive"
	TrendStable    Trend = "stable"
)

// RunSummary reports the outcome of a multi-game run
type RunSummary struct {
	Games              []*GameSummary `json:"games"`
	TotalEvents        int            `json:"total_events"`
	TotalPatterns      int            `json:"total_patterns"`
	CooperationTrend   []int          `json:"cooperation_trend"`
	CommunicationTrend []int          `json:"communication_trend"`
	Trend              Trend          `json:"trend"`
	EarlyCooperation   float64        `json:"early_cooperation"`
	RecentCooperation  float64        `json:"recent_cooperation"`
}

// AverageDuration returns the mean simulated duration per game
func (s *RunSummary) AverageDuration() float64 {
	if len(s.Games) == 0 {
		return 0
	}
	var total float64
	for _, g := range s.Games {
		total += g.Duration
	}
	return total / float64(len(s.Games))
}
