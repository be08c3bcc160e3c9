package state

import (
	"errors"
	"fmt"
	"sync"

	"github.com/wfunc/nightfall/apperr"
	"github.com/wfunc/nightfall/game"
	"github.com/wfunc/nightfall/logger"
	"github.com/wfunc/nightfall/models"
)

// 状态机接口
type StateMachine interface {
	ChangeState(state State) error
	GetCurrentState() State
	AddTransition(from, to models.Phase, condition func() bool) error
}

// 状态接口
type State interface {
	OnEnter()
	OnExit()
	// OnExpire is called when the phase timer armed by this state runs out.
	OnExpire()
	GetID() models.Phase
	HandleAction(action Action) error
}

// ErrTransitionNotAllowed is returned when a state transition is not allowed.
var ErrTransitionNotAllowed = errors.New("state transition not allowed")

// 基础状态机实现。只允许已注册的转换。
// OnEnter/OnExit run under the machine lock and must not call ChangeState.
type BaseStateMachine struct {
	currentState State
	transitions  map[models.Phase]map[models.Phase]func() bool // fromState -> toState -> condition
	mutex        sync.RWMutex
}

func NewBaseStateMachine(initialState State) *BaseStateMachine {
	machine := &BaseStateMachine{
		currentState: initialState,
		transitions:  make(map[models.Phase]map[models.Phase]func() bool),
	}
	initialState.OnEnter()
	return machine
}

func (sm *BaseStateMachine) ChangeState(newState State) error {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	currentID := sm.currentState.GetID()
	newID := newState.GetID()

	conditions, exists := sm.transitions[currentID]
	if !exists {
		return fmt.Errorf("%w: %s -> %s", ErrTransitionNotAllowed, currentID, newID)
	}
	condition, exists := conditions[newID]
	if !exists {
		return fmt.Errorf("%w: %s -> %s", ErrTransitionNotAllowed, currentID, newID)
	}
	if condition != nil && !condition() {
		return fmt.Errorf("%w: %s -> %s: condition failed", ErrTransitionNotAllowed, currentID, newID)
	}

	sm.currentState.OnExit()
	sm.currentState = newState
	sm.currentState.OnEnter()

	return nil
}

func (sm *BaseStateMachine) GetCurrentState() State {
	sm.mutex.RLock()
	defer sm.mutex.RUnlock()
	return sm.currentState
}

func (sm *BaseStateMachine) AddTransition(from, to models.Phase, condition func() bool) error {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	if from == models.PhaseEnded {
		return fmt.Errorf("%w: %s is terminal", ErrTransitionNotAllowed, from)
	}
	if _, exists := sm.transitions[from]; !exists {
		sm.transitions[from] = make(map[models.Phase]func() bool)
	}

	sm.transitions[from][to] = condition
	return nil
}

// NewPhaseMachine builds the game cycle
// lobby -> night -> resolution -> task -> voting -> (night | ended),
// with any phase allowed to end once a faction has won.
func NewPhaseMachine(room RoomContext) *BaseStateMachine {
	sm := NewBaseStateMachine(NewLobbyState(room))

	rolesAssigned := func() bool {
		s := room.Session()
		return len(s.Roles) == len(s.Participants) && len(s.Roles) >= game.MinRoleParticipants
	}
	hasWinner := func() bool {
		return room.Session().WinningFaction != models.FactionNone
	}

	sm.AddTransition(models.PhaseLobby, models.PhaseNight, rolesAssigned)
	sm.AddTransition(models.PhaseNight, models.PhaseResolution, nil)
	sm.AddTransition(models.PhaseResolution, models.PhaseTask, nil)
	sm.AddTransition(models.PhaseTask, models.PhaseVoting, nil)
	sm.AddTransition(models.PhaseVoting, models.PhaseNight, nil)
	for _, from := range []models.Phase{
		models.PhaseLobby,
		models.PhaseNight,
		models.PhaseResolution,
		models.PhaseTask,
		models.PhaseVoting,
	} {
		sm.AddTransition(from, models.PhaseEnded, hasWinner)
	}
	return sm
}

// 房间状态基础结构
type RoomStateBase struct {
	ID   models.Phase
	Room RoomContext
}

func (s *RoomStateBase) GetID() models.Phase {
	return s.ID
}

func (s *RoomStateBase) OnEnter() {
	s.Room.Session().Phase = s.ID
}

func (s *RoomStateBase) OnExit() {}

func (s *RoomStateBase) OnExpire() {}

// HandleAction rejects everything; states override the actions they accept.
func (s *RoomStateBase) HandleAction(action Action) error {
	switch a := action.(type) {
	case Join:
		if s.Room.Session().HasParticipant(a.ParticipantID) {
			return apperr.ErrAlreadyJoined
		}
		return apperr.ErrSessionStarted
	case Ready:
		return apperr.ErrNotReadyWindow
	}
	return apperr.ErrWrongPhase.WithDetail("phase is %s", s.ID)
}

// checkActor verifies a submitting participant is in the session and alive.
func (s *RoomStateBase) checkActor(id string) error {
	sess := s.Room.Session()
	if !sess.HasParticipant(id) {
		return apperr.ErrNotInSession.WithDetail("participant %q", id)
	}
	if sess.IsEliminated(id) {
		return apperr.ErrEliminated
	}
	return nil
}

// arm starts this phase's countdown and mirrors it into the session.
func (s *RoomStateBase) arm(units int) {
	c := s.Room.Countdown()
	if _, err := c.Arm(string(s.ID), units); err != nil {
		logger.Log.Errorf("会话 %s 阶段 %s 计时器启动失败: %v", s.Room.GetID(), s.ID, err)
	}
	s.Room.Session().TimeLeft = c.Remaining()
}

// advance moves the room to next and logs a refused transition.
func advance(room RoomContext, next State) {
	if err := room.ChangeState(next); err != nil {
		logger.Log.Errorf("会话 %s 状态切换失败: %v", room.GetID(), err)
	}
}

// endGame records the winning faction and moves to the ended phase.
func endGame(room RoomContext, faction models.Faction) {
	sess := room.Session()
	sess.WinningFaction = faction
	sess.Winners = game.Winners(sess, faction)
	logger.Log.Infof("会话 %s 结束, 胜利阵营: %s, 胜者: %v", room.GetID(), faction, sess.Winners)
	advance(room, NewEndedState(room))
}

// eliminate applies an elimination and reports whether a faction has won.
func eliminate(room RoomContext, id, cause string) (models.Faction, bool) {
	sess := room.Session()
	if !sess.Eliminate(id) {
		return models.FactionNone, false
	}
	room.Metrics().ObserveElimination(cause)
	logger.Log.Infof("会话 %s 第 %d 天 %s 被淘汰 (%s)", room.GetID(), sess.Day, id, cause)
	return game.CheckWin(sess)
}
