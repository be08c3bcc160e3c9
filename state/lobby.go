package state

import (
	"errors"
	"fmt"

	"github.com/wfunc/nightfall/apperr"
	"github.com/wfunc/nightfall/game"
	"github.com/wfunc/nightfall/logger"
	"github.com/wfunc/nightfall/models"
	"github.com/wfunc/nightfall/timer"
)

// 大厅状态: 收集玩家, 人数达到下限后开始准备倒计时
type LobbyState struct {
	RoomStateBase
}

func NewLobbyState(room RoomContext) *LobbyState {
	return &LobbyState{RoomStateBase{ID: models.PhaseLobby, Room: room}}
}

func (s *LobbyState) HandleAction(action Action) error {
	switch a := action.(type) {
	case Join:
		return s.join(a.ParticipantID)
	case Ready:
		return s.ready(a.ParticipantID)
	}
	return s.RoomStateBase.HandleAction(action)
}

func (s *LobbyState) OnExpire() {
	if err := s.start(); err != nil {
		logger.Log.Warnf("会话 %s 准备超时后开局失败: %v", s.Room.GetID(), err)
	}
}

func (s *LobbyState) join(id string) error {
	if id == "" {
		return apperr.ErrInvalidInput.WithDetail("participant id is required")
	}
	sess := s.Room.Session()
	if sess.HasParticipant(id) {
		return apperr.ErrAlreadyJoined
	}
	if len(sess.Participants) >= sess.MaxParticipants {
		return apperr.ErrSessionFull.WithDetail("limit is %d", sess.MaxParticipants)
	}

	sess.Participants = append(sess.Participants, id)
	logger.Log.Infof("玩家 %s 加入会话 %s (%d/%d)", id, s.Room.GetID(), len(sess.Participants), sess.MaxParticipants)

	countdown := s.Room.Countdown()
	switch {
	case countdown.Mode() == timer.ModeReadyGated:
		if err := countdown.AddToRoster(id); err != nil {
			logger.Log.Warnf("会话 %s 无法将 %s 加入准备名单: %v", s.Room.GetID(), id, err)
		}
	case len(sess.Participants) >= sess.MinParticipants:
		if err := s.beginStart(); err != nil {
			logger.Log.Warnf("会话 %s 开局失败: %v", s.Room.GetID(), err)
		}
	}

	s.Room.NotifyStateChanged()
	return nil
}

// beginStart opens the ready window, or starts the first night right away
// when ready gating is disabled.
func (s *LobbyState) beginStart() error {
	cfg := s.Room.Config()
	if !cfg.ReadyGated {
		return s.start()
	}
	sess := s.Room.Session()
	countdown := s.Room.Countdown()
	_, err := countdown.ArmReadyGated(string(models.PhaseLobby), sess.Participants,
		cfg.Durations.ReadyTimeout, cfg.Durations.ReadyGrace)
	if err != nil {
		return fmt.Errorf("arm ready window: %w", err)
	}
	sess.TimeLeft = countdown.Remaining()
	logger.Log.Infof("会话 %s 开始准备倒计时 %d", s.Room.GetID(), sess.TimeLeft)
	return nil
}

func (s *LobbyState) ready(id string) error {
	sess := s.Room.Session()
	if !sess.HasParticipant(id) {
		return apperr.ErrNotInSession.WithDetail("participant %q", id)
	}

	countdown := s.Room.Countdown()
	allReady, err := countdown.Ready(id)
	switch {
	case errors.Is(err, timer.ErrNotGated):
		return apperr.ErrNotReadyWindow
	case errors.Is(err, timer.ErrNotInRoster):
		return apperr.ErrNotInSession.WithDetail("participant %q is not on the ready roster", id)
	case err != nil:
		return err
	}

	sess.Ready[id] = true
	sess.TimeLeft = countdown.Remaining()
	if allReady {
		return s.start()
	}
	s.Room.NotifyStateChanged()
	return nil
}

// start assigns roles, commits to them and enters the first night. On
// failure the session stays in the lobby with no timer armed.
func (s *LobbyState) start() error {
	sess := s.Room.Session()
	if sess.Phase != models.PhaseLobby {
		return nil
	}
	s.Room.Countdown().Cancel()

	roles, err := game.AssignRoles(sess.Participants, s.Room.Rand())
	if err != nil {
		s.abort()
		return err
	}
	commitment, err := game.Commit(roles, s.Room.Entropy())
	if err != nil {
		s.abort()
		return fmt.Errorf("commit roles: %w", err)
	}

	sess.Roles = roles
	sess.Commitment = commitment.Hash
	sess.Salt = commitment.Salt
	sess.StartedAt = s.Room.Now()
	logger.Log.Infof("会话 %s 开局, %d 名玩家, 承诺 %s", s.Room.GetID(), len(sess.Participants), sess.Commitment)

	return s.Room.ChangeState(NewNightState(s.Room))
}

func (s *LobbyState) abort() {
	sess := s.Room.Session()
	clear(sess.Ready)
	sess.TimeLeft = 0
	s.Room.NotifyStateChanged()
}
