// services/game_service.go
package services

import (
	"context"
	"strings"

	"github.com/wfunc/nightfall/apperr"
	"github.com/wfunc/nightfall/models"
	"github.com/wfunc/nightfall/persistence"
	"github.com/wfunc/nightfall/room"
)

// GameService is the API the transports call. Every session operation is
// routed to the session's room and serialized there.
type GameService struct {
	rooms *room.Manager
	db    persistence.Database
}

func NewGameService(rooms *room.Manager, db persistence.Database) *GameService {
	return &GameService{rooms: rooms, db: db}
}

// CreateSession 创建会话, 创建者自动加入
func (s *GameService) CreateSession(ctx context.Context, creatorID, stake string, minParticipants int) (models.CreateResult, error) {
	return s.rooms.CreateSession(ctx, creatorID, stake, minParticipants)
}

// JoinSession 通过会话ID或房间码加入
func (s *GameService) JoinSession(ctx context.Context, idOrCode, participantID string) (models.Snapshot, error) {
	if err := requireID("participant id", participantID); err != nil {
		return models.Snapshot{}, err
	}
	return s.rooms.Join(ctx, idOrCode, participantID)
}

// GetPublicState 获取脱敏后的公共视图
func (s *GameService) GetPublicState(ctx context.Context, sessionID string) (models.Snapshot, error) {
	r, err := s.rooms.Lookup(sessionID)
	if err != nil {
		return models.Snapshot{}, err
	}
	return r.PublicState(ctx)
}

// GetStateForParticipant 获取玩家自己的视图
func (s *GameService) GetStateForParticipant(ctx context.Context, sessionID, participantID string) (models.Snapshot, error) {
	r, err := s.rooms.Lookup(sessionID)
	if err != nil {
		return models.Snapshot{}, err
	}
	return r.StateFor(ctx, participantID)
}

func (s *GameService) SubmitNightAction(ctx context.Context, sessionID, participantID string, action models.NightAction) error {
	r, err := s.rooms.Lookup(sessionID)
	if err != nil {
		return err
	}
	return r.SubmitNightAction(ctx, participantID, action)
}

func (s *GameService) SubmitTaskAnswer(ctx context.Context, sessionID, participantID string, answer []string) error {
	r, err := s.rooms.Lookup(sessionID)
	if err != nil {
		return err
	}
	return r.SubmitTaskAnswer(ctx, participantID, answer)
}

func (s *GameService) SubmitVote(ctx context.Context, sessionID, participantID, target string) error {
	r, err := s.rooms.Lookup(sessionID)
	if err != nil {
		return err
	}
	return r.SubmitVote(ctx, participantID, target)
}

func (s *GameService) SignalReady(ctx context.Context, sessionID, participantID string) error {
	r, err := s.rooms.Lookup(sessionID)
	if err != nil {
		return err
	}
	return r.SignalReady(ctx, participantID)
}

// ListSessions returns the public view of every live session.
func (s *GameService) ListSessions(ctx context.Context) ([]models.Snapshot, error) {
	rooms := s.rooms.Rooms()
	out := make([]models.Snapshot, 0, len(rooms))
	for _, r := range rooms {
		snap, err := r.PublicState(ctx)
		if err != nil {
			// reaped between listing and reading
			continue
		}
		out = append(out, snap)
	}
	return out, nil
}

// ParticipantStats 获取玩家战绩
func (s *GameService) ParticipantStats(ctx context.Context, participantID string) (*models.ParticipantStats, error) {
	if err := requireID("participant id", participantID); err != nil {
		return nil, err
	}
	return s.db.GetParticipantStats(ctx, participantID)
}

// ParticipantHistory 获取玩家最近的对局记录
func (s *GameService) ParticipantHistory(ctx context.Context, participantID string, limit int) ([]models.GameRecord, error) {
	if err := requireID("participant id", participantID); err != nil {
		return nil, err
	}
	return s.db.ListGameRecords(ctx, participantID, limit)
}

func requireID(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return apperr.ErrInvalidInput.WithDetail("%s is required", name)
	}
	return nil
}
