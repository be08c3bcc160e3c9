// models/models.go
package models

import (
	"slices"
	"time"
)

// Phase 会话所处的阶段
type Phase string

const (
	PhaseLobby      Phase = "lobby"
	PhaseNight      Phase = "night"
	PhaseResolution Phase = "resolution"
	PhaseTask       Phase = "task"
	PhaseVoting     Phase = "voting"
	PhaseEnded      Phase = "ended"
)

// Role 玩家的隐藏身份
type Role string

const (
	RoleKiller       Role = "killer"
	RoleProtector    Role = "protector"
	RoleInvestigator Role = "investigator"
	RoleBystander    Role = "bystander"
)

// Faction groups roles for win evaluation.
type Faction string

const (
	FactionNone      Faction = ""
	FactionKiller    Faction = "killer"
	FactionBystander Faction = "bystander"
)

// FactionOf returns the faction a role plays for.
func FactionOf(r Role) Faction {
	if r == RoleKiller {
		return FactionKiller
	}
	return FactionBystander
}

// Status 会话业务状态
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
)

// ActionType is the declared kind of a night action.
type ActionType string

const (
	ActionKill        ActionType = "kill"
	ActionProtect     ActionType = "protect"
	ActionInvestigate ActionType = "investigate"
	ActionSkip        ActionType = "skip"
)

// NightAction is one concealed submission made during the night.
type NightAction struct {
	Type   ActionType `json:"type"`
	Target string     `json:"target,omitempty"`
}

// Investigation is a role revealed to the investigator.
type Investigation struct {
	Day    int    `json:"day"`
	Target string `json:"target"`
	Role   Role   `json:"role"`
}

// NightOutcome is the result of resolving one night.
type NightOutcome struct {
	Day           int            `json:"day"`
	Eliminated    string         `json:"eliminated,omitempty"`
	Protected     bool           `json:"-"`
	Investigator  string         `json:"-"`
	Investigation *Investigation `json:"-"`
}

// VoteOutcome is the result of tallying one voting phase.
type VoteOutcome struct {
	Day        int            `json:"day"`
	Counts     map[string]int `json:"counts"`
	Eliminated string         `json:"eliminated,omitempty"`
	Tie        bool           `json:"tie"`
}

// Session 一局游戏的完整服务端状态
type Session struct {
	ID              string
	Code            string
	CreatorID       string
	Participants    []string
	MinParticipants int
	MaxParticipants int
	Phase           Phase
	Day             int
	TimeLeft        int
	CreatedAt       time.Time
	StartedAt       time.Time
	EndedAt         time.Time
	Stake           string
	Status          Status

	Roles      map[string]Role
	Commitment string
	Salt       string

	Ready          map[string]bool
	NightActions   map[string]NightAction
	Investigations map[string][]Investigation
	Task           *Task
	TaskScores     map[string]int
	Votes          map[string]string
	Eliminated     []string

	LastNight *NightOutcome
	LastVote  *VoteOutcome

	WinningFaction Faction
	Winners        []string
}

// NewSession 创建处于 lobby 阶段的新会话
func NewSession(id, code, creatorID, stake string, minParticipants, maxParticipants int, now time.Time) *Session {
	return &Session{
		ID:              id,
		Code:            code,
		CreatorID:       creatorID,
		Participants:    make([]string, 0, maxParticipants),
		MinParticipants: minParticipants,
		MaxParticipants: maxParticipants,
		Phase:           PhaseLobby,
		CreatedAt:       now,
		Stake:           stake,
		Status:          StatusActive,
		Roles:           make(map[string]Role),
		Ready:           make(map[string]bool),
		NightActions:    make(map[string]NightAction),
		Investigations:  make(map[string][]Investigation),
		TaskScores:      make(map[string]int),
		Votes:           make(map[string]string),
		Eliminated:      []string{},
	}
}

// HasParticipant reports whether id joined the session.
func (s *Session) HasParticipant(id string) bool {
	return slices.Contains(s.Participants, id)
}

// IsEliminated reports whether id has been eliminated.
func (s *Session) IsEliminated(id string) bool {
	return slices.Contains(s.Eliminated, id)
}

// Active returns the participants that have not been eliminated, in join order.
func (s *Session) Active() []string {
	active := make([]string, 0, len(s.Participants))
	for _, id := range s.Participants {
		if !s.IsEliminated(id) {
			active = append(active, id)
		}
	}
	return active
}

// Eliminate appends id to the eliminated list. The list only grows; a
// participant already eliminated, or unknown, is ignored.
func (s *Session) Eliminate(id string) bool {
	if id == "" || !s.HasParticipant(id) || s.IsEliminated(id) {
		return false
	}
	s.Eliminated = append(s.Eliminated, id)
	return true
}

// Losers returns every participant that is not a winner.
func (s *Session) Losers() []string {
	losers := make([]string, 0, len(s.Participants))
	for _, id := range s.Participants {
		if !slices.Contains(s.Winners, id) {
			losers = append(losers, id)
		}
	}
	return losers
}

// CreateResult is returned when a session is created.
type CreateResult struct {
	SessionID string `json:"session_id"`
	RoomCode  string `json:"room_code"`
}

// GameRecord 游戏结算记录
type GameRecord struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Winners   []string  `json:"winners"`
	Losers    []string  `json:"losers"`
	CreatedAt time.Time `json:"created_at"`
}

// ParticipantStats 玩家统计信息
type ParticipantStats struct {
	ParticipantID string `json:"participant_id"`
	TotalGames    int    `json:"total_games"`
	Wins          int    `json:"wins"`
	Losses        int    `json:"losses"`
}
