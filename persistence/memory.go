package persistence

import (
	"context"
	"slices"
	"sync"

	"github.com/wfunc/nightfall/models"
)

// MemoryDatabase keeps records in process memory. It is the default driver
// and the test double for the SQL implementations.
type MemoryDatabase struct {
	records   []models.GameRecord
	bySession map[string]bool
	mutex     sync.RWMutex
}

func NewMemoryDatabase() *MemoryDatabase {
	return &MemoryDatabase{bySession: make(map[string]bool)}
}

func (d *MemoryDatabase) SaveGameRecord(ctx context.Context, record *models.GameRecord) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.bySession[record.SessionID] {
		return ErrDuplicateRecord
	}
	d.bySession[record.SessionID] = true
	saved := *record
	saved.Winners = slices.Clone(record.Winners)
	saved.Losers = slices.Clone(record.Losers)
	d.records = append(d.records, saved)
	return nil
}

func (d *MemoryDatabase) ListGameRecords(ctx context.Context, participantID string, limit int) ([]models.GameRecord, error) {
	d.mutex.RLock()
	defer d.mutex.RUnlock()

	limit = listLimit(limit)
	out := []models.GameRecord{}
	for i := len(d.records) - 1; i >= 0 && len(out) < limit; i-- {
		r := d.records[i]
		if slices.Contains(r.Winners, participantID) || slices.Contains(r.Losers, participantID) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (d *MemoryDatabase) GetParticipantStats(ctx context.Context, participantID string) (*models.ParticipantStats, error) {
	d.mutex.RLock()
	defer d.mutex.RUnlock()

	stats := &models.ParticipantStats{ParticipantID: participantID}
	for _, r := range d.records {
		switch {
		case slices.Contains(r.Winners, participantID):
			stats.Wins++
		case slices.Contains(r.Losers, participantID):
			stats.Losses++
		default:
			continue
		}
		stats.TotalGames++
	}
	return stats, nil
}

func (d *MemoryDatabase) Close() error { return nil }
