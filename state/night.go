package state

import (
	"github.com/wfunc/nightfall/apperr"
	"github.com/wfunc/nightfall/game"
	"github.com/wfunc/nightfall/models"
)

// 夜晚状态: 收集隐藏行动, 全员提交或超时后结算
type NightState struct {
	RoomStateBase
	resolved bool
}

func NewNightState(room RoomContext) *NightState {
	return &NightState{RoomStateBase: RoomStateBase{ID: models.PhaseNight, Room: room}}
}

func (s *NightState) OnEnter() {
	s.RoomStateBase.OnEnter()
	sess := s.Room.Session()
	sess.Day++
	sess.NightActions = make(map[string]models.NightAction)
	s.arm(s.Room.Config().Durations.Night)
	s.Room.Metrics().ObservePhase(string(s.ID))
	s.Room.NotifyStateChanged()
}

func (s *NightState) HandleAction(action Action) error {
	if a, ok := action.(SubmitNightAction); ok {
		return s.submit(a)
	}
	return s.RoomStateBase.HandleAction(action)
}

func (s *NightState) OnExpire() {
	s.resolve()
}

func (s *NightState) submit(a SubmitNightAction) error {
	if err := s.checkActor(a.ParticipantID); err != nil {
		return err
	}
	sess := s.Room.Session()
	if _, done := sess.NightActions[a.ParticipantID]; done {
		return apperr.ErrDuplicateSubmission
	}

	action := a.Action
	role := sess.Roles[a.ParticipantID]
	if !game.AllowedAction(role, action.Type) {
		return apperr.ErrInvalidAction.WithDetail("%q is not available to this role", action.Type)
	}
	if action.Type == models.ActionSkip {
		action.Target = ""
	} else {
		if action.Target == "" {
			return apperr.ErrInvalidTarget.WithDetail("target is required")
		}
		if !sess.HasParticipant(action.Target) {
			return apperr.ErrParticipantNotFound.WithDetail("target %q", action.Target)
		}
		if action.Type == models.ActionKill && action.Target == a.ParticipantID {
			return apperr.ErrInvalidTarget.WithDetail("cannot target self")
		}
	}

	sess.NightActions[a.ParticipantID] = action
	if len(sess.NightActions) >= len(sess.Active()) {
		s.Room.Countdown().Cancel()
		s.resolve()
		return nil
	}
	s.Room.NotifyStateChanged()
	return nil
}

// resolve runs at most once per night, whichever of early completion or
// timer expiry happens first.
func (s *NightState) resolve() {
	sess := s.Room.Session()
	if s.resolved || sess.Phase != models.PhaseNight {
		return
	}
	s.resolved = true

	outcome := game.ResolveNight(sess)
	if outcome.Investigation != nil {
		sess.Investigations[outcome.Investigator] = append(sess.Investigations[outcome.Investigator], *outcome.Investigation)
	}
	sess.LastNight = &outcome

	if outcome.Eliminated != "" {
		if faction, won := eliminate(s.Room, outcome.Eliminated, "night"); won {
			endGame(s.Room, faction)
			return
		}
	}
	advance(s.Room, NewResolutionState(s.Room))
}
