// state/interfaces.go
package state

import (
	"io"
	"time"

	"github.com/wfunc/nightfall/config"
	"github.com/wfunc/nightfall/game"
	"github.com/wfunc/nightfall/models"
	"github.com/wfunc/nightfall/monitor"
	"github.com/wfunc/nightfall/timer"
)

// RoomContext defines the interface that a Room must implement to be managed by the state machine.
// This breaks the import cycle between room and state.
//
// Every method is called from the room's single event loop; implementations
// need not be safe for concurrent use from states.
type RoomContext interface {
	GetID() string
	Session() *models.Session
	Countdown() *timer.Countdown
	Config() config.GameConfig
	Rand() game.Rand
	Entropy() io.Reader
	Now() time.Time
	Metrics() *monitor.Monitor
	ChangeState(newState State) error
	// NotifyStateChanged must not block.
	NotifyStateChanged()
	// Settle must not block and is a no-op after its first call.
	Settle(winners, losers []string)
}

// Action is a player submission routed to the current state.
type Action interface {
	Participant() string
}

// Join adds a participant to the lobby.
type Join struct{ ParticipantID string }

// Ready signals readiness during the lobby ready window.
type Ready struct{ ParticipantID string }

// SubmitNightAction records a concealed night action.
type SubmitNightAction struct {
	ParticipantID string
	Action        models.NightAction
}

// SubmitTaskAnswer records an answer to the current task.
type SubmitTaskAnswer struct {
	ParticipantID string
	Answer        []string
}

// SubmitVote records an elimination vote.
type SubmitVote struct {
	ParticipantID string
	Target        string
}

func (a Join) Participant() string              { return a.ParticipantID }
func (a Ready) Participant() string             { return a.ParticipantID }
func (a SubmitNightAction) Participant() string { return a.ParticipantID }
func (a SubmitTaskAnswer) Participant() string  { return a.ParticipantID }
func (a SubmitVote) Participant() string        { return a.ParticipantID }
