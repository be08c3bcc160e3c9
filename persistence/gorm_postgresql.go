// persistence/gorm_postgresql.go
package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/wfunc/nightfall/config"
	"github.com/wfunc/nightfall/models"
)

// GormPostgreSQL 使用GORM的PostgreSQL实现
type GormPostgreSQL struct {
	db *gorm.DB
}

// NewGormPostgreSQL 创建GORM PostgreSQL数据库连接
func NewGormPostgreSQL(cfg config.PostgresConfig) (*GormPostgreSQL, error) {
	// 配置GORM日志
	gormLogger := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("open gorm postgres: %w", err)
	}

	// 获取通用数据库对象 sql.DB
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// 设置连接池
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	// 自动迁移表结构
	if err := db.AutoMigrate(&GameRecordModel{}); err != nil {
		return nil, fmt.Errorf("migrate game records: %w", err)
	}

	return &GormPostgreSQL{db: db}, nil
}

// GameRecordModel 结算记录表
type GameRecordModel struct {
	ID        string    `gorm:"primaryKey;type:uuid"`
	SessionID string    `gorm:"uniqueIndex;not null"`
	Winners   []string  `gorm:"type:jsonb;serializer:json;not null"`
	Losers    []string  `gorm:"type:jsonb;serializer:json;not null"`
	CreatedAt time.Time `gorm:"index"`
}

func (GameRecordModel) TableName() string { return "game_records" }

func (m GameRecordModel) toRecord() models.GameRecord {
	return models.GameRecord{
		ID:        m.ID,
		SessionID: m.SessionID,
		Winners:   m.Winners,
		Losers:    m.Losers,
		CreatedAt: m.CreatedAt,
	}
}

// SaveGameRecord 保存游戏记录
func (p *GormPostgreSQL) SaveGameRecord(ctx context.Context, record *models.GameRecord) error {
	row := GameRecordModel{
		ID:        record.ID,
		SessionID: record.SessionID,
		Winners:   record.Winners,
		Losers:    record.Losers,
		CreatedAt: record.CreatedAt,
	}
	result := p.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "session_id"}}, DoNothing: true}).
		Create(&row)
	if result.Error != nil {
		return fmt.Errorf("insert game record: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrDuplicateRecord
	}
	return nil
}

// ListGameRecords 查询玩家参与过的对局
func (p *GormPostgreSQL) ListGameRecords(ctx context.Context, participantID string, limit int) ([]models.GameRecord, error) {
	member, err := memberJSON(participantID)
	if err != nil {
		return nil, err
	}

	var rows []GameRecordModel
	err = p.db.WithContext(ctx).
		Where("winners @> ?::jsonb OR losers @> ?::jsonb", member, member).
		Order("created_at DESC").
		Limit(listLimit(limit)).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list game records: %w", err)
	}

	out := make([]models.GameRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toRecord())
	}
	return out, nil
}

// GetParticipantStats 统计玩家胜负
func (p *GormPostgreSQL) GetParticipantStats(ctx context.Context, participantID string) (*models.ParticipantStats, error) {
	member, err := memberJSON(participantID)
	if err != nil {
		return nil, err
	}

	var row struct {
		TotalGames int
		Wins       int
		Losses     int
	}
	err = p.db.WithContext(ctx).Raw(`
        SELECT
            COUNT(*) AS total_games,
            COALESCE(SUM(CASE WHEN winners @> @member::jsonb THEN 1 ELSE 0 END), 0) AS wins,
            COALESCE(SUM(CASE WHEN losers @> @member::jsonb THEN 1 ELSE 0 END), 0) AS losses
        FROM game_records
        WHERE winners @> @member::jsonb OR losers @> @member::jsonb`,
		map[string]any{"member": member},
	).Scan(&row).Error
	if err != nil {
		return nil, fmt.Errorf("participant stats: %w", err)
	}

	return &models.ParticipantStats{
		ParticipantID: participantID,
		TotalGames:    row.TotalGames,
		Wins:          row.Wins,
		Losses:        row.Losses,
	}, nil
}

// Close 关闭数据库连接
func (p *GormPostgreSQL) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// memberJSON encodes a one-element JSON array for jsonb containment queries.
func memberJSON(participantID string) (string, error) {
	b, err := json.Marshal([]string{participantID})
	if err != nil {
		return "", fmt.Errorf("encode participant id: %w", err)
	}
	return string(b), nil
}
