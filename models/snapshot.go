package models

import (
	"maps"
	"slices"
	"time"
)

// TaskView is the client-facing part of a task.
type TaskView struct {
	Kind         TaskKind `json:"kind"`
	Prompt       string   `json:"prompt"`
	Presentation []string `json:"presentation"`
	Submitted    []string `json:"submitted"`
}

// Reveal discloses the role map and salt once the game is over so anyone can
// recompute the commitment.
type Reveal struct {
	Roles map[string]Role `json:"roles"`
	Salt  string          `json:"salt"`
}

// ParticipantView holds the fields only the participant themself may see.
type ParticipantView struct {
	ID             string          `json:"id"`
	Role           Role            `json:"role,omitempty"`
	Eliminated     bool            `json:"eliminated"`
	Investigations []Investigation `json:"investigations,omitempty"`
	ActionSent     bool            `json:"action_sent"`
	AnswerSent     bool            `json:"answer_sent"`
	VoteSent       bool            `json:"vote_sent"`
	Ready          bool            `json:"ready"`
}

// Snapshot 会话的对外视图，隐藏身份、盐值与夜间行动
type Snapshot struct {
	SessionID       string           `json:"session_id"`
	RoomCode        string           `json:"room_code"`
	CreatorID       string           `json:"creator_id"`
	Participants    []string         `json:"participants"`
	MinParticipants int              `json:"min_participants"`
	MaxParticipants int              `json:"max_participants"`
	Phase           Phase            `json:"phase"`
	Day             int              `json:"day"`
	TimeLeft        int              `json:"time_left"`
	StartedAt       *time.Time       `json:"started_at,omitempty"`
	Stake           string           `json:"stake"`
	Status          Status           `json:"status"`
	Commitment      string           `json:"commitment,omitempty"`
	Ready           []string         `json:"ready,omitempty"`
	ActionsSent     int              `json:"actions_sent"`
	Voters          []string         `json:"voters,omitempty"`
	Task            *TaskView        `json:"task,omitempty"`
	TaskScores      map[string]int   `json:"task_scores,omitempty"`
	Eliminated      []string         `json:"eliminated"`
	LastNight       *NightOutcome    `json:"last_night,omitempty"`
	LastVote        *VoteOutcome     `json:"last_vote,omitempty"`
	WinningFaction  Faction          `json:"winning_faction,omitempty"`
	Winners         []string         `json:"winners,omitempty"`
	Reveal          *Reveal          `json:"reveal,omitempty"`
	You             *ParticipantView `json:"you,omitempty"`
}

// PublicSnapshot returns a deep copy of the session with every secret removed.
func (s *Session) PublicSnapshot() Snapshot {
	snap := Snapshot{
		SessionID:       s.ID,
		RoomCode:        s.Code,
		CreatorID:       s.CreatorID,
		Participants:    slices.Clone(s.Participants),
		MinParticipants: s.MinParticipants,
		MaxParticipants: s.MaxParticipants,
		Phase:           s.Phase,
		Day:             s.Day,
		TimeLeft:        s.TimeLeft,
		Stake:           s.Stake,
		Status:          s.Status,
		Commitment:      s.Commitment,
		ActionsSent:     len(s.NightActions),
		Eliminated:      slices.Clone(s.Eliminated),
		WinningFaction:  s.WinningFaction,
		Winners:         slices.Clone(s.Winners),
	}
	if !s.StartedAt.IsZero() {
		started := s.StartedAt
		snap.StartedAt = &started
	}
	for _, id := range s.Participants {
		if s.Ready[id] {
			snap.Ready = append(snap.Ready, id)
		}
		if _, ok := s.Votes[id]; ok {
			snap.Voters = append(snap.Voters, id)
		}
	}
	if len(s.TaskScores) > 0 {
		snap.TaskScores = maps.Clone(s.TaskScores)
	}
	if s.Task != nil {
		view := &TaskView{
			Kind:         s.Task.Kind,
			Prompt:       s.Task.Prompt,
			Presentation: slices.Clone(s.Task.Presentation),
			Submitted:    []string{},
		}
		for _, id := range s.Participants {
			if _, ok := s.Task.Submissions[id]; ok {
				view.Submitted = append(view.Submitted, id)
			}
		}
		snap.Task = view
	}
	if s.LastNight != nil {
		snap.LastNight = &NightOutcome{Day: s.LastNight.Day, Eliminated: s.LastNight.Eliminated}
	}
	if s.LastVote != nil {
		vote := *s.LastVote
		vote.Counts = maps.Clone(s.LastVote.Counts)
		snap.LastVote = &vote
	}
	if s.Phase == PhaseEnded && len(s.Roles) > 0 {
		snap.Reveal = &Reveal{Roles: maps.Clone(s.Roles), Salt: s.Salt}
	}
	return snap
}

// SnapshotFor returns the public snapshot plus the private fields of one
// participant. The caller must check membership first.
func (s *Session) SnapshotFor(participantID string) Snapshot {
	snap := s.PublicSnapshot()
	_, actionSent := s.NightActions[participantID]
	_, voteSent := s.Votes[participantID]
	you := &ParticipantView{
		ID:             participantID,
		Role:           s.Roles[participantID],
		Eliminated:     s.IsEliminated(participantID),
		Investigations: slices.Clone(s.Investigations[participantID]),
		ActionSent:     actionSent,
		VoteSent:       voteSent,
		Ready:          s.Ready[participantID],
	}
	if s.Task != nil {
		_, you.AnswerSent = s.Task.Submissions[participantID]
	}
	snap.You = you
	return snap
}
