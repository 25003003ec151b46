// persistence/interface.go
package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/wfunc/treasurerace/config"
	"github.com/wfunc/treasurerace/models"
)

// Database 对局结果存储接口. Results are written once per finished match and
// never loaded back into a running game.
type Database interface {
	SaveMatchResult(ctx context.Context, result *models.MatchResult) error
	LoadMatchResult(ctx context.Context, matchID string) (*models.MatchResult, error)
	Close() error
}

// Leaderboard is implemented by stores that rank the best single-match scores
// across matches. Each entry carries the match it was scored in.
type Leaderboard interface {
	Leaderboard(ctx context.Context, n int64) ([]models.PlayerResult, error)
}

// 错误定义
var (
	ErrRecordNotFound = errors.New("record not found")
	ErrUnknownDriver  = errors.New("unknown database driver")
)

// Open builds the store selected by cfg.Driver.
func Open(cfg config.DatabaseConfig) (Database, error) {
	pg := cfg.Postgres
	switch cfg.Driver {
	case "", "none":
		return NopDatabase{}, nil
	case "postgres":
		return NewPostgreSQL(pg.Host, pg.Port, pg.User, pg.Password, pg.DBName)
	case "gorm":
		return NewGormPostgreSQL(pg.Host, pg.Port, pg.User, pg.Password, pg.DBName)
	case "bolt":
		return NewBoltStore(cfg.Bolt.Path)
	case "redis":
		return NewRedisStore(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
}

func postgresDSN(host string, port int, user, password, dbname string) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)
}

// NopDatabase discards results.
type NopDatabase struct{}

func (NopDatabase) SaveMatchResult(context.Context, *models.MatchResult) error { return nil }

func (NopDatabase) LoadMatchResult(context.Context, string) (*models.MatchResult, error) {
	return nil, ErrRecordNotFound
}

func (NopDatabase) Close() error { return nil }
