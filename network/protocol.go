package network

import "github.com/wfunc/nightfall/models"

// 消息类型
const (
	MsgTypeHeartbeat uint16 = 1
	MsgTypeError     uint16 = 2
	MsgTypeHello     uint16 = 3

	MsgTypeCreateSession uint16 = 101
	MsgTypeJoinSession   uint16 = 102
	MsgTypeSignalReady   uint16 = 103
	MsgTypeGetState      uint16 = 104

	MsgTypeNightAction uint16 = 201
	MsgTypeTaskAnswer  uint16 = 202
	MsgTypeVote        uint16 = 203

	MsgTypeStateSnapshot uint16 = 301
	MsgTypeAck           uint16 = 302
)

// HelloRequest binds a connection to a participant identity.
type HelloRequest struct {
	ParticipantID string `json:"participant_id"`
}

type CreateSessionRequest struct {
	Stake           string `json:"stake"`
	MinParticipants int    `json:"min_participants"`
}

type JoinSessionRequest struct {
	// Session is a session id or a room code.
	Session string `json:"session"`
}

// SessionRequest names a session for ready signals and state queries.
type SessionRequest struct {
	SessionID string `json:"session_id"`
}

type NightActionRequest struct {
	SessionID string             `json:"session_id"`
	Action    models.NightAction `json:"action"`
}

type TaskAnswerRequest struct {
	SessionID string   `json:"session_id"`
	Answer    []string `json:"answer"`
}

type VoteRequest struct {
	SessionID string `json:"session_id"`
	Target    string `json:"target"`
}

// Ack confirms a request. SessionID and RoomCode are set for create and join.
type Ack struct {
	MsgID     uint16 `json:"msg_id"`
	SessionID string `json:"session_id,omitempty"`
	RoomCode  string `json:"room_code,omitempty"`
}

// ErrorMessage reports a rejected request.
type ErrorMessage struct {
	MsgID   uint16 `json:"msg_id"`
	Kind    string `json:"kind"`
	Code    string `json:"code"`
	Message string `json:"message"`
}
