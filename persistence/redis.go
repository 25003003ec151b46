package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wfunc/treasurerace/models"
)

const (
	redisMatchKey      = "tesouro:match:"
	redisLeaderboard   = "tesouro:leaderboard"
	redisMatchIndexKey = "tesouro:matches"
)

// RedisStore keeps each match result as JSON and ranks every player's score
// from every match in one sorted set. Player ids only name a connection within
// a match, so leaderboard members are scoped by match id.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(addr, password string, db int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return &RedisStore{client: client}, nil
}

func (s *RedisStore) SaveMatchResult(ctx context.Context, result *models.MatchResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, redisMatchKey+result.MatchID, data, 0)
		pipe.ZAdd(ctx, redisMatchIndexKey, redis.Z{
			Score:  float64(result.FinishedAt.Unix()),
			Member: result.MatchID,
		})
		for _, p := range result.Players {
			pipe.ZAdd(ctx, redisLeaderboard, redis.Z{
				Score:  float64(p.Score),
				Member: leaderboardMember(result.MatchID, p.PlayerID),
			})
		}
		return nil
	})
	return err
}

func (s *RedisStore) LoadMatchResult(ctx context.Context, matchID string) (*models.MatchResult, error) {
	data, err := s.client.Get(ctx, redisMatchKey+matchID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	var result models.MatchResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Leaderboard returns the n best single-match scores.
func (s *RedisStore) Leaderboard(ctx context.Context, n int64) ([]models.PlayerResult, error) {
	entries, err := s.client.ZRevRangeWithScores(ctx, redisLeaderboard, 0, n-1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]models.PlayerResult, 0, len(entries))
	for i, e := range entries {
		member, _ := e.Member.(string)
		matchID, id, ok := parseLeaderboardMember(member)
		if !ok {
			continue
		}
		out = append(out, models.PlayerResult{MatchID: matchID, PlayerID: id, Score: int(e.Score), Rank: i + 1})
	}
	return out, nil
}

func leaderboardMember(matchID string, playerID int64) string {
	return matchID + ":" + strconv.FormatInt(playerID, 10)
}

func parseLeaderboardMember(member string) (string, int64, bool) {
	i := strings.LastIndexByte(member, ':')
	if i <= 0 {
		return "", 0, false
	}
	id, err := strconv.ParseInt(member[i+1:], 10, 64)
	if err != nil {
		return "", 0, false
	}
	return member[:i], id, true
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
