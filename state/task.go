package state

import (
	"github.com/wfunc/nightfall/apperr"
	"github.com/wfunc/nightfall/game"
	"github.com/wfunc/nightfall/models"
)

// 任务状态: 生成小任务并记录每位存活玩家的答案
type TaskState struct {
	RoomStateBase
	done bool
}

func NewTaskState(room RoomContext) *TaskState {
	return &TaskState{RoomStateBase: RoomStateBase{ID: models.PhaseTask, Room: room}}
}

func (s *TaskState) OnEnter() {
	s.RoomStateBase.OnEnter()
	s.Room.Session().Task = game.GenerateTask(s.Room.Rand())
	s.arm(s.Room.Config().Durations.Task)
	s.Room.Metrics().ObservePhase(string(s.ID))
	s.Room.NotifyStateChanged()
}

func (s *TaskState) OnExit() {
	s.Room.Session().Task = nil
}

func (s *TaskState) HandleAction(action Action) error {
	if a, ok := action.(SubmitTaskAnswer); ok {
		return s.answer(a)
	}
	return s.RoomStateBase.HandleAction(action)
}

func (s *TaskState) OnExpire() {
	s.finish()
}

func (s *TaskState) answer(a SubmitTaskAnswer) error {
	if err := s.checkActor(a.ParticipantID); err != nil {
		return err
	}
	sess := s.Room.Session()
	task := sess.Task
	if task == nil {
		return apperr.ErrWrongPhase.WithDetail("no task is active")
	}
	if _, done := task.Submissions[a.ParticipantID]; done {
		return apperr.ErrDuplicateSubmission
	}
	if len(a.Answer) == 0 {
		return apperr.ErrInvalidAnswer.WithDetail("answer is empty")
	}

	correct := game.ValidateAnswer(task, a.Answer)
	task.Submissions[a.ParticipantID] = models.TaskSubmission{
		Answer:      a.Answer,
		Correct:     correct,
		SubmittedAt: s.Room.Now(),
	}
	if correct {
		sess.TaskScores[a.ParticipantID]++
	}

	if len(task.Submissions) >= len(sess.Active()) {
		s.Room.Countdown().Cancel()
		s.finish()
		return nil
	}
	s.Room.NotifyStateChanged()
	return nil
}

func (s *TaskState) finish() {
	if s.done || s.Room.Session().Phase != models.PhaseTask {
		return
	}
	s.done = true
	advance(s.Room, NewVotingState(s.Room))
}
