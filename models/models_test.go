package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGormMatchConversion(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	r := &MatchResult{
		MatchID:    "m-1",
		Seed:       99,
		Rows:       8,
		Cols:       8,
		Treasures:  8,
		WinnerID:   2,
		StartedAt:  now.Add(-time.Minute),
		FinishedAt: now,
		Players: []PlayerResult{
			{PlayerID: 2, Score: 5, Rank: 1},
			{PlayerID: 1, Score: 3, Rank: 2},
		},
	}

	m := NewGormMatch(r)
	assert.Equal(t, "matches", m.TableName())
	assert.Len(t, m.Players, 2)
	assert.Equal(t, r, m.Result())
}
