// persistence/postgresql.go
package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	_ "github.com/lib/pq" // PostgreSQL 驱动

	"github.com/wfunc/treasurerace/models"
)

// PostgreSQL 数据库实现
type PostgreSQL struct {
	db *sql.DB
}

// NewPostgreSQL 创建 PostgreSQL 数据库连接
func NewPostgreSQL(host string, port int, user, password, dbname string) (*PostgreSQL, error) {
	db, err := sql.Open("postgres", postgresDSN(host, port, user, password, dbname))
	if err != nil {
		return nil, err
	}

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := initTables(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &PostgreSQL{db: db}, nil
}

// initTables 初始化数据库表结构
func initTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
        CREATE TABLE IF NOT EXISTS match_results (
            id SERIAL PRIMARY KEY,
            match_id VARCHAR(64) UNIQUE NOT NULL,
            seed BIGINT NOT NULL,
            winner_id BIGINT NOT NULL,
            players JSONB NOT NULL,
            result JSONB NOT NULL,
            finished_at TIMESTAMP NOT NULL,
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
        )
    `)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
        CREATE INDEX IF NOT EXISTS idx_match_results_finished_at ON match_results(finished_at);
    `)
	return err
}

// SaveMatchResult upserts on match_id so a retried write is harmless.
func (p *PostgreSQL) SaveMatchResult(ctx context.Context, result *models.MatchResult) error {
	playersJSON, err := json.Marshal(result.Players)
	if err != nil {
		return err
	}
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return err
	}

	query := `
        INSERT INTO match_results (match_id, seed, winner_id, players, result, finished_at)
        VALUES ($1, $2, $3, $4, $5, $6)
        ON CONFLICT (match_id)
        DO UPDATE SET winner_id = $3, players = $4, result = $5, finished_at = $6
    `
	_, err = p.db.ExecContext(ctx, query,
		result.MatchID, result.Seed, result.WinnerID, playersJSON, resultJSON, result.FinishedAt)
	return err
}

func (p *PostgreSQL) LoadMatchResult(ctx context.Context, matchID string) (*models.MatchResult, error) {
	var data []byte
	query := `SELECT result FROM match_results WHERE match_id = $1`
	err := p.db.QueryRowContext(ctx, query, matchID).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
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

// Close 关闭数据库连接
func (p *PostgreSQL) Close() error {
	return p.db.Close()
}
