package state

import (
	"github.com/wfunc/nightfall/apperr"
	"github.com/wfunc/nightfall/models"
)

// 结束状态: 终态, 触发一次结算
type EndedState struct {
	RoomStateBase
}

func NewEndedState(room RoomContext) *EndedState {
	return &EndedState{RoomStateBase{ID: models.PhaseEnded, Room: room}}
}

func (s *EndedState) OnEnter() {
	s.RoomStateBase.OnEnter()
	sess := s.Room.Session()
	sess.Status = models.StatusCompleted
	sess.EndedAt = s.Room.Now()
	s.Room.Countdown().Cancel()
	sess.TimeLeft = 0

	s.Room.Metrics().ObservePhase(string(s.ID))
	s.Room.Metrics().ObserveGameCompleted(string(sess.WinningFaction))
	s.Room.Settle(sess.Winners, sess.Losers())
	s.Room.NotifyStateChanged()
}

func (s *EndedState) HandleAction(action Action) error {
	if _, ok := action.(Join); ok {
		return s.RoomStateBase.HandleAction(action)
	}
	return apperr.ErrGameEnded
}
