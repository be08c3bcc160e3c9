package state

import "github.com/wfunc/nightfall/models"

// 结算展示状态: 公布夜晚结果, 超时后进入任务阶段
type ResolutionState struct {
	RoomStateBase
	done bool
}

func NewResolutionState(room RoomContext) *ResolutionState {
	return &ResolutionState{RoomStateBase: RoomStateBase{ID: models.PhaseResolution, Room: room}}
}

func (s *ResolutionState) OnEnter() {
	s.RoomStateBase.OnEnter()
	s.arm(s.Room.Config().Durations.Resolution)
	s.Room.Metrics().ObservePhase(string(s.ID))
	s.Room.NotifyStateChanged()
}

func (s *ResolutionState) OnExpire() {
	sess := s.Room.Session()
	if s.done || sess.Phase != models.PhaseResolution {
		return
	}
	s.done = true
	sess.NightActions = make(map[string]models.NightAction)
	advance(s.Room, NewTaskState(s.Room))
}
