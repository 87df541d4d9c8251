package room

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by Service matches exactly one of these
// with errors.Is.
var (
	ErrValidation        = errors.New("validation error")
	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("forbidden")
	ErrConflict          = errors.New("conflict")
	ErrResourceExhausted = errors.New("resource exhausted")
	ErrInternal          = errors.New("internal error")
)

// ServiceError carries the kind, a stable "operation.reason" code and the
// underlying cause.
type ServiceError struct {
	kind    error
	code    string
	message string
	err     error
}

func (e *ServiceError) Error() string {
	if e.err == nil || e.kind != ErrInternal {
		return e.message
	}
	return fmt.Sprintf("%s: %v", e.message, e.err)
}

func (e *ServiceError) Unwrap() []error {
	if e.err == nil {
		return []error{e.kind}
	}
	return []error{e.kind, e.err}
}

// Code returns the "operation.reason" identifier.
func (e *ServiceError) Code() string {
	return e.code
}

// Message is safe to show to callers; it never includes the cause of
// internal failures.
func (e *ServiceError) Message() string {
	return e.message
}

const (
	opCreateGuest  = "room.create_guest"
	opCreateRoom   = "room.create_room"
	opGetRoom      = "room.get_room"
	opJoinRoom     = "room.join_room"
	opCloseRoom    = "room.close_room"
	opAddTrack     = "room.add_track"
	opRemoveTrack  = "room.remove_track"
	opCastVote     = "room.cast_vote"
	opGetQueue     = "room.get_queue"
	opAdvance      = "room.advance"
	opNowPlaying   = "room.now_playing"
)

func newError(kind error, operation, reason, message string, cause error) error {
	return &ServiceError{
		kind:    kind,
		code:    operation + "." + reason,
		message: message,
		err:     cause,
	}
}

func validationError(operation, reason, message string) error {
	return newError(ErrValidation, operation, reason, message, nil)
}

func notFound(operation, reason, message string) error {
	return newError(ErrNotFound, operation, reason, message, nil)
}

func forbidden(operation, reason, message string) error {
	return newError(ErrForbidden, operation, reason, message, nil)
}

// userNotFound reports a write that referenced a user with no stored identity.
func userNotFound(operation string) error {
	return notFound(operation, "user_not_found", "user not found")
}

func internal(operation, reason string, cause error) error {
	return newError(ErrInternal, operation, reason, "internal error", cause)
}

// passThrough keeps already classified errors and classifies anything else
// as internal.
func passThrough(operation, reason string, err error) error {
	var serviceErr *ServiceError
	if errors.As(err, &serviceErr) {
		return err
	}
	return internal(operation, reason, err)
}
