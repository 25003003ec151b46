// models/models.go
package models

import (
	"time"
)

// PlayerResult 玩家成绩（用于排行榜和对局记录）
type PlayerResult struct {
	MatchID  string `json:"match_id,omitempty"` // set on leaderboard entries only
	PlayerID int64  `json:"player_id"`
	Score    int    `json:"score"`
	Rank     int    `json:"rank"`
}

// MatchResult 对局记录
type MatchResult struct {
	MatchID    string         `json:"match_id"`
	Seed       int64          `json:"seed"`
	Rows       int            `json:"rows"`
	Cols       int            `json:"cols"`
	Treasures  int            `json:"treasures"`
	WinnerID   int64          `json:"winner_id"`
	Players    []PlayerResult `json:"players"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
}

// Status is a point-in-time view of the running match.
type Status struct {
	MatchID            string `json:"match_id"`
	Phase              string `json:"phase"`
	Seed               int64  `json:"seed"`
	Players            int    `json:"players"`
	TreasuresRemaining int    `json:"treasures_remaining"`
	RoomsOccupied      int    `json:"rooms_occupied"`
	RoomsCleared       int    `json:"rooms_cleared"`
}
