// Package apperr defines the error taxonomy returned by the game engine.
//
// Errors carry a Kind, which decides how transports report them, and a Code,
// which identifies the exact failure. Sentinels match with errors.Is on Code,
// so a copy produced by WithDetail still compares equal to its sentinel.
package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/grpc/codes"
)

// Kind classifies an error for propagation.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindNotFound
	KindStateConflict
	KindCapacity
	KindCollaborator
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindStateConflict:
		return "state_conflict"
	case KindCapacity:
		return "capacity"
	case KindCollaborator:
		return "collaborator"
	default:
		return "unknown"
	}
}

// GRPCCode maps a kind to a gRPC status code.
func (k Kind) GRPCCode() codes.Code {
	switch k {
	case KindValidation:
		return codes.InvalidArgument
	case KindNotFound:
		return codes.NotFound
	case KindStateConflict:
		return codes.FailedPrecondition
	case KindCapacity:
		return codes.ResourceExhausted
	case KindCollaborator:
		return codes.Unavailable
	default:
		return codes.Unknown
	}
}

// HTTPStatus maps a kind to an HTTP status code.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindStateConflict, KindCapacity:
		return http.StatusConflict
	case KindCollaborator:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Code is a machine-readable error code.
type Code string

// Error is a typed engine error.
type Error struct {
	Kind    Kind
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// New creates an error.
func New(kind Kind, code Code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// WithDetail returns a copy whose message is extended with a formatted detail.
func (e *Error) WithDetail(format string, args ...any) *Error {
	cp := *e
	cp.Message = e.Message + ": " + fmt.Sprintf(format, args...)
	return &cp
}

// Wrap returns a copy that wraps cause.
func (e *Error) Wrap(cause error) *Error {
	cp := *e
	cp.Err = cause
	return &cp
}

// KindOf returns the kind of err, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// CodeOf returns the code of err, or "UNKNOWN".
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return "UNKNOWN"
}

// HTTPStatus maps any error to an HTTP status.
func HTTPStatus(err error) int {
	return KindOf(err).HTTPStatus()
}

var (
	ErrInvalidInput  = New(KindValidation, "INVALID_INPUT", "invalid input")
	ErrInvalidAction = New(KindValidation, "INVALID_ACTION", "action not allowed for role")
	ErrInvalidTarget = New(KindValidation, "INVALID_TARGET", "invalid target")
	ErrInvalidAnswer = New(KindValidation, "INVALID_ANSWER", "invalid task answer")

	ErrSessionNotFound     = New(KindNotFound, "SESSION_NOT_FOUND", "session not found")
	ErrParticipantNotFound = New(KindNotFound, "PARTICIPANT_NOT_FOUND", "participant not found")
	ErrNotInSession        = New(KindNotFound, "NOT_IN_SESSION", "participant is not in this session")

	ErrSessionStarted      = New(KindStateConflict, "SESSION_STARTED", "session already started")
	ErrAlreadyJoined       = New(KindStateConflict, "ALREADY_IN_SESSION", "participant already in session")
	ErrWrongPhase          = New(KindStateConflict, "WRONG_PHASE", "operation not allowed in current phase")
	ErrEliminated          = New(KindStateConflict, "ELIMINATED", "participant has been eliminated")
	ErrTargetEliminated    = New(KindStateConflict, "TARGET_ELIMINATED", "target has been eliminated")
	ErrDuplicateSubmission = New(KindStateConflict, "DUPLICATE_SUBMISSION", "already submitted this phase")
	ErrNotReadyWindow      = New(KindStateConflict, "NOT_READY_WINDOW", "ready signals are not being collected")
	ErrGameEnded           = New(KindStateConflict, "GAME_ENDED", "game has ended")
	ErrSessionClosed       = New(KindStateConflict, "SESSION_CLOSED", "session is closed")

	ErrSessionFull              = New(KindCapacity, "SESSION_FULL", "session is full")
	ErrInsufficientParticipants = New(KindCapacity, "INSUFFICIENT_PARTICIPANTS", "not enough participants to assign roles")

	ErrCollaborator = New(KindCollaborator, "COLLABORATOR_FAILURE", "downstream collaborator failed")
)
