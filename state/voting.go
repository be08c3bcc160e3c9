package state

import (
	"github.com/wfunc/nightfall/apperr"
	"github.com/wfunc/nightfall/game"
	"github.com/wfunc/nightfall/models"
)

// 投票状态: 收集投票, 超时后计票
type VotingState struct {
	RoomStateBase
	resolved bool
}

func NewVotingState(room RoomContext) *VotingState {
	return &VotingState{RoomStateBase: RoomStateBase{ID: models.PhaseVoting, Room: room}}
}

func (s *VotingState) OnEnter() {
	s.RoomStateBase.OnEnter()
	s.Room.Session().Votes = make(map[string]string)
	s.arm(s.Room.Config().Durations.Voting)
	s.Room.Metrics().ObservePhase(string(s.ID))
	s.Room.NotifyStateChanged()
}

func (s *VotingState) OnExit() {
	s.Room.Session().Votes = make(map[string]string)
}

func (s *VotingState) HandleAction(action Action) error {
	if a, ok := action.(SubmitVote); ok {
		return s.vote(a)
	}
	return s.RoomStateBase.HandleAction(action)
}

func (s *VotingState) OnExpire() {
	s.resolve()
}

func (s *VotingState) vote(a SubmitVote) error {
	if err := s.checkActor(a.ParticipantID); err != nil {
		return err
	}
	sess := s.Room.Session()
	if a.Target == "" {
		return apperr.ErrInvalidTarget.WithDetail("target is required")
	}
	if !sess.HasParticipant(a.Target) {
		return apperr.ErrParticipantNotFound.WithDetail("target %q", a.Target)
	}
	if sess.IsEliminated(a.Target) {
		return apperr.ErrTargetEliminated
	}
	if _, done := sess.Votes[a.ParticipantID]; done {
		return apperr.ErrDuplicateSubmission
	}

	sess.Votes[a.ParticipantID] = a.Target
	s.Room.NotifyStateChanged()
	return nil
}

func (s *VotingState) resolve() {
	sess := s.Room.Session()
	if s.resolved || sess.Phase != models.PhaseVoting {
		return
	}
	s.resolved = true

	outcome := game.Tally(sess)
	sess.LastVote = &outcome
	if outcome.Eliminated != "" {
		if faction, won := eliminate(s.Room, outcome.Eliminated, "vote"); won {
			endGame(s.Room, faction)
			return
		}
	}
	advance(s.Room, NewNightState(s.Room))
}
