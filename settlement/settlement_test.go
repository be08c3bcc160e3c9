package settlement

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wfunc/nightfall/models"
	"github.com/wfunc/nightfall/persistence"
)

type failingDB struct{ persistence.Database }

func (failingDB) SaveGameRecord(ctx context.Context, record *models.GameRecord) error {
	return errors.New("connection refused")
}

func TestRecordSettler_RecordsOnce(t *testing.T) {
	db := persistence.NewMemoryDatabase()
	s := NewRecordSettler(db)
	ctx := context.Background()

	require.NoError(t, s.DistributeRewards(ctx, "s1", []string{"P2", "P3"}, []string{"P1"}))
	require.NoError(t, s.DistributeRewards(ctx, "s1", []string{"P1"}, []string{"P2", "P3"}))

	stats, err := db.GetParticipantStats(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalGames)
	assert.Equal(t, 1, stats.Losses)

	records, err := db.ListGameRecords(ctx, "P2", 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.NotEmpty(t, records[0].ID)
	assert.Equal(t, "s1", records[0].SessionID)
}

func TestRecordSettler_PropagatesStoreFailure(t *testing.T) {
	s := NewRecordSettler(failingDB{})
	err := s.DistributeRewards(context.Background(), "s1", nil, nil)
	assert.ErrorContains(t, err, "connection refused")
}
