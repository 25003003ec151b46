package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/wfunc/treasurerace/models"
	"github.com/wfunc/treasurerace/network"
	"github.com/wfunc/treasurerace/persistence"
)

const recordTimeout = 5 * time.Second

type RankingService struct {
	db persistence.Database
}

func NewRankingService(db persistence.Database) *RankingService {
	if db == nil {
		db = persistence.NopDatabase{}
	}
	return &RankingService{db: db}
}

// Rank orders scores best first, ties by lower player id. Tied scores share
// a rank (1, 1, 3).
func (s *RankingService) Rank(scores []models.PlayerResult) []models.PlayerResult {
	ranked := append([]models.PlayerResult(nil), scores...)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].PlayerID < ranked[j].PlayerID
	})
	for i := range ranked {
		if i > 0 && ranked[i].Score == ranked[i-1].Score {
			ranked[i].Rank = ranked[i-1].Rank
		} else {
			ranked[i].Rank = i + 1
		}
	}
	return ranked
}

// Winner is the top of an already ranked list.
func (s *RankingService) Winner(ranked []models.PlayerResult) (models.PlayerResult, bool) {
	if len(ranked) == 0 {
		return models.PlayerResult{}, false
	}
	return ranked[0], true
}

// Table renders the ranking as status lines.
func (s *RankingService) Table(ranked []models.PlayerResult) []string {
	lines := make([]string, 0, len(ranked)+1)
	lines = append(lines, network.TextRankingHeader)
	for _, p := range ranked {
		lines = append(lines, network.RankingLine(p.Rank, p.PlayerID, p.Score))
	}
	return lines
}

// Record stores a finished match.
func (s *RankingService) Record(ctx context.Context, result *models.MatchResult) error {
	ctx, cancel := context.WithTimeout(ctx, recordTimeout)
	defer cancel()
	if err := s.db.SaveMatchResult(ctx, result); err != nil {
		return fmt.Errorf("record match %s: %w", result.MatchID, err)
	}
	return nil
}

func (s *RankingService) Load(ctx context.Context, matchID string) (*models.MatchResult, error) {
	return s.db.LoadMatchResult(ctx, matchID)
}
