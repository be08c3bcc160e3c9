// persistence/postgresql.go
package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/wfunc/nightfall/config"
	"github.com/wfunc/nightfall/models"
)

// PostgreSQL 数据库实现
type PostgreSQL struct {
	db *sql.DB
}

// NewPostgreSQL 创建 PostgreSQL 数据库连接
func NewPostgreSQL(cfg config.PostgresConfig) (*PostgreSQL, error) {
	connector, err := pq.NewConnector(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	db := sql.OpenDB(connector)

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	// 设置连接池参数
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	// 初始化表结构
	if err := initTables(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("init tables: %w", err)
	}

	return &PostgreSQL{db: db}, nil
}

// initTables 初始化数据库表结构
func initTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
        CREATE TABLE IF NOT EXISTS game_records (
            id UUID PRIMARY KEY,
            session_id VARCHAR(64) UNIQUE NOT NULL,
            winners JSONB NOT NULL,
            losers JSONB NOT NULL,
            created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
        )
    `)
	if err != nil {
		return err
	}

	// 创建索引以提高查询性能
	_, err = db.ExecContext(ctx, `
        CREATE INDEX IF NOT EXISTS idx_game_records_created_at ON game_records(created_at);
        CREATE INDEX IF NOT EXISTS idx_game_records_winners ON game_records USING GIN (winners);
        CREATE INDEX IF NOT EXISTS idx_game_records_losers ON game_records USING GIN (losers);
    `)
	return err
}

// SaveGameRecord 保存游戏记录
func (p *PostgreSQL) SaveGameRecord(ctx context.Context, record *models.GameRecord) error {
	winners, err := json.Marshal(record.Winners)
	if err != nil {
		return err
	}
	losers, err := json.Marshal(record.Losers)
	if err != nil {
		return err
	}

	res, err := p.db.ExecContext(ctx, `
        INSERT INTO game_records (id, session_id, winners, losers, created_at)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (session_id) DO NOTHING
    `, record.ID, record.SessionID, winners, losers, record.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert game record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrDuplicateRecord
	}
	return nil
}

// ListGameRecords 查询玩家参与过的对局
func (p *PostgreSQL) ListGameRecords(ctx context.Context, participantID string, limit int) ([]models.GameRecord, error) {
	member, err := memberJSON(participantID)
	if err != nil {
		return nil, err
	}

	rows, err := p.db.QueryContext(ctx, `
        SELECT id, session_id, winners, losers, created_at
        FROM game_records
        WHERE winners @> $1::jsonb OR losers @> $1::jsonb
        ORDER BY created_at DESC
        LIMIT $2
    `, member, listLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list game records: %w", err)
	}
	defer rows.Close()

	out := []models.GameRecord{}
	for rows.Next() {
		var (
			r               models.GameRecord
			winners, losers []byte
		)
		if err := rows.Scan(&r.ID, &r.SessionID, &winners, &losers, &r.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(winners, &r.Winners); err != nil {
			return nil, fmt.Errorf("decode winners: %w", err)
		}
		if err := json.Unmarshal(losers, &r.Losers); err != nil {
			return nil, fmt.Errorf("decode losers: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetParticipantStats 统计玩家胜负
func (p *PostgreSQL) GetParticipantStats(ctx context.Context, participantID string) (*models.ParticipantStats, error) {
	member, err := memberJSON(participantID)
	if err != nil {
		return nil, err
	}

	stats := &models.ParticipantStats{ParticipantID: participantID}
	err = p.db.QueryRowContext(ctx, `
        SELECT
            COUNT(*),
            COALESCE(SUM(CASE WHEN winners @> $1::jsonb THEN 1 ELSE 0 END), 0),
            COALESCE(SUM(CASE WHEN losers @> $1::jsonb THEN 1 ELSE 0 END), 0)
        FROM game_records
        WHERE winners @> $1::jsonb OR losers @> $1::jsonb
    `, member).Scan(&stats.TotalGames, &stats.Wins, &stats.Losses)
	if err != nil {
		return nil, fmt.Errorf("participant stats: %w", err)
	}
	return stats, nil
}

// Close 关闭数据库连接
func (p *PostgreSQL) Close() error {
	return p.db.Close()
}
