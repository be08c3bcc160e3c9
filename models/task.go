package models

import "time"

// TaskKind tags the mini-game type.
type TaskKind string

const (
	TaskSequence     TaskKind = "sequence"
	TaskMemory       TaskKind = "memory"
	TaskHashFragment TaskKind = "hash_fragment"
)

// Task is a cooperative challenge generated for one task phase. Answer is the
// canonical solution and never leaves the server before the phase ends.
type Task struct {
	Kind         TaskKind
	Prompt       string
	Presentation []string
	Answer       []string
	Submissions  map[string]TaskSubmission
}

// TaskSubmission records one participant's answer.
type TaskSubmission struct {
	Answer      []string  `json:"answer"`
	Correct     bool      `json:"correct"`
	SubmittedAt time.Time `json:"submitted_at"`
}
