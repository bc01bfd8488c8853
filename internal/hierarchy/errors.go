package hierarchy

import (
	"errors"
	"fmt"
)

var (
	ErrTransport    = errors.New("transport failure")
	ErrValidation   = errors.New("validation rejected")
	ErrNotFound     = errors.New("not found")
	ErrTimeout      = errors.New("timeout")
	ErrPersistence  = errors.New("persistence failure")
	ErrInvalidInput = errors.New("invalid input")
)

// TransportError covers an unreachable network or a non-2xx response
// that does not map to a more specific error.
type TransportError struct {
	Op         string
	StatusCode int
	Code       string
	Message    string
	Err        error
}

func (e *TransportError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.Code != "":
		return fmt.Sprintf("%s: http %d %s: %s", e.Op, e.StatusCode, e.Code, e.Message)
	default:
		return fmt.Sprintf("%s: http %d: %s", e.Op, e.StatusCode, e.Message)
	}
}

func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ValidationError reports a payload the server rejected, e.g. a
// duplicate folder name or a move that would create a cycle.
type ValidationError struct {
	Code    string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("validation rejected (%s): %s", e.Code, e.Message)
	}
	return fmt.Sprintf("validation rejected: %s", e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NotFoundError reports a folder or process absent server side.
type NotFoundError struct {
	Resource string
	ID       string
	Message  string
}

func (e *NotFoundError) Error() string {
	switch {
	case e.Message != "":
		return fmt.Sprintf("not found: %s", e.Message)
	case e.ID != "":
		return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
	default:
		return fmt.Sprintf("%s not found", e.Resource)
	}
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// TimeoutError reports an exceeded request bound, most commonly the
// path-resolution deadline.
type TimeoutError struct {
	Op string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: deadline exceeded", e.Op)
}

func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

// PersistenceError reports a local snapshot read or write failure. It is
// never surfaced to callers; loss of durability only costs the offline
// fallback.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("snapshot %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
