// persistence/interface.go
package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/wfunc/nightfall/config"
	"github.com/wfunc/nightfall/models"
)

// Database 结算记录存储接口
type Database interface {
	// SaveGameRecord fails with ErrDuplicateRecord when the session already
	// has a record.
	SaveGameRecord(ctx context.Context, record *models.GameRecord) error
	// ListGameRecords returns the newest records the participant took part in.
	ListGameRecords(ctx context.Context, participantID string, limit int) ([]models.GameRecord, error)
	GetParticipantStats(ctx context.Context, participantID string) (*models.ParticipantStats, error)
	Close() error
}

// 错误定义
var (
	ErrDuplicateRecord = errors.New("game record already exists for session")
	ErrUnknownDriver   = errors.New("unknown database driver")
)

const defaultListLimit = 20

// Open 根据配置选择数据库实现
func Open(cfg config.DatabaseConfig) (Database, error) {
	switch cfg.Driver {
	case "", "memory":
		return NewMemoryDatabase(), nil
	case "gorm":
		return NewGormPostgreSQL(cfg.Postgres)
	case "postgres":
		return NewPostgreSQL(cfg.Postgres)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}

func listLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	return limit
}
