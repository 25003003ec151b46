// models/gorm_models.go
package models

import (
	"time"

	"gorm.io/gorm"
)

// GormMatch 对局记录模型
type GormMatch struct {
	gorm.Model
	MatchID    string `gorm:"uniqueIndex;not null"`
	Seed       int64  `gorm:"not null"`
	Rows       int    `gorm:"not null"`
	Cols       int    `gorm:"not null"`
	Treasures  int    `gorm:"not null"`
	WinnerID   int64
	StartedAt  time.Time
	FinishedAt time.Time
	Players    []GormPlayerResult `gorm:"foreignKey:MatchRefID;constraint:OnDelete:CASCADE"`
}

func (GormMatch) TableName() string { return "matches" }

// GormPlayerResult 玩家成绩模型
type GormPlayerResult struct {
	ID         uint  `gorm:"primaryKey"`
	MatchRefID uint  `gorm:"index;not null"`
	PlayerID   int64 `gorm:"not null"`
	Score      int   `gorm:"not null"`
	Rank       int   `gorm:"not null"`
}

func (GormPlayerResult) TableName() string { return "match_players" }

func NewGormMatch(r *MatchResult) *GormMatch {
	m := &GormMatch{
		MatchID:    r.MatchID,
		Seed:       r.Seed,
		Rows:       r.Rows,
		Cols:       r.Cols,
		Treasures:  r.Treasures,
		WinnerID:   r.WinnerID,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
	}
	for _, p := range r.Players {
		m.Players = append(m.Players, GormPlayerResult{PlayerID: p.PlayerID, Score: p.Score, Rank: p.Rank})
	}
	return m
}

func (m *GormMatch) Result() *MatchResult {
	r := &MatchResult{
		MatchID:    m.MatchID,
		Seed:       m.Seed,
		Rows:       m.Rows,
		Cols:       m.Cols,
		Treasures:  m.Treasures,
		WinnerID:   m.WinnerID,
		StartedAt:  m.StartedAt,
		FinishedAt: m.FinishedAt,
	}
	for _, p := range m.Players {
		r.Players = append(r.Players, PlayerResult{PlayerID: p.PlayerID, Score: p.Score, Rank: p.Rank})
	}
	return r
}
