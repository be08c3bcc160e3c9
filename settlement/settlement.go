// Package settlement pays out finished sessions by recording the result
// ledger that stats are computed from.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wfunc/nightfall/logger"
	"github.com/wfunc/nightfall/models"
	"github.com/wfunc/nightfall/persistence"
)

// RecordSettler writes one GameRecord per finished session.
type RecordSettler struct {
	db    persistence.Database
	clock func() time.Time
}

func NewRecordSettler(db persistence.Database) *RecordSettler {
	return &RecordSettler{db: db, clock: time.Now}
}

// DistributeRewards records the result. A second call for the same session
// is accepted and leaves the first record in place.
func (s *RecordSettler) DistributeRewards(ctx context.Context, sessionID string, winners, losers []string) error {
	record := &models.GameRecord{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Winners:   winners,
		Losers:    losers,
		CreatedAt: s.clock(),
	}
	err := s.db.SaveGameRecord(ctx, record)
	switch {
	case errors.Is(err, persistence.ErrDuplicateRecord):
		logger.Log.Warnf("会话 %s 已结算, 忽略重复请求", sessionID)
		return nil
	case err != nil:
		return fmt.Errorf("record settlement for %s: %w", sessionID, err)
	}
	logger.Log.Infof("会话 %s 结算完成, 胜者 %v, 败者 %v", sessionID, winners, losers)
	return nil
}
