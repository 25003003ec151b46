package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wfunc/treasurerace/models"
)

type failingDB struct{}

func (failingDB) SaveMatchResult(context.Context, *models.MatchResult) error {
	return errors.New("db down")
}
func (failingDB) LoadMatchResult(context.Context, string) (*models.MatchResult, error) {
	return nil, errors.New("db down")
}
func (failingDB) Close() error { return nil }

type memoryDB struct {
	saved map[string]*models.MatchResult
}

func (m *memoryDB) SaveMatchResult(_ context.Context, r *models.MatchResult) error {
	m.saved[r.MatchID] = r
	return nil
}
func (m *memoryDB) LoadMatchResult(_ context.Context, id string) (*models.MatchResult, error) {
	return m.saved[id], nil
}
func (m *memoryDB) Close() error { return nil }

func TestRank(t *testing.T) {
	s := NewRankingService(nil)
	ranked := s.Rank([]models.PlayerResult{
		{PlayerID: 3, Score: 2},
		{PlayerID: 1, Score: 5},
		{PlayerID: 4, Score: 0},
		{PlayerID: 2, Score: 2},
	})

	want := []models.PlayerResult{
		{PlayerID: 1, Score: 5, Rank: 1},
		{PlayerID: 2, Score: 2, Rank: 2},
		{PlayerID: 3, Score: 2, Rank: 2},
		{PlayerID: 4, Score: 0, Rank: 4},
	}
	assert.Equal(t, want, ranked)

	winner, ok := s.Winner(ranked)
	require.True(t, ok)
	assert.Equal(t, int64(1), winner.PlayerID)

	_, ok = s.Winner(nil)
	assert.False(t, ok)
}

func TestTable(t *testing.T) {
	s := NewRankingService(nil)
	lines := s.Table(s.Rank([]models.PlayerResult{{PlayerID: 7, Score: 1}, {PlayerID: 2, Score: 3}}))
	assert.Equal(t, []string{
		"Ranking:",
		"1. Jogador 2 - 3 tesouros",
		"2. Jogador 7 - 1 tesouros",
	}, lines)
}

func TestRecord(t *testing.T) {
	db := &memoryDB{saved: map[string]*models.MatchResult{}}
	s := NewRankingService(db)
	result := &models.MatchResult{MatchID: "m-1", WinnerID: 2}

	require.NoError(t, s.Record(context.Background(), result))
	got, err := s.Load(context.Background(), "m-1")
	require.NoError(t, err)
	assert.Same(t, result, got)

	err = NewRankingService(failingDB{}).Record(context.Background(), result)
	assert.ErrorContains(t, err, "record match m-1")
}
