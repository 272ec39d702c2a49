// Package apperr defines the error kinds shared by the server service layer
// and the client read-model.
//
// Every failure in the messaging core is scoped to the single user action
// that triggered it. The kind tells the caller how to recover:
//
//   - ErrValidation: rejected locally before any network call.
//   - ErrPermission: the lifecycle authority or a role gate said no.
//   - ErrPersistence: network or server failure; keep the user's input.
//   - ErrConsistency: a reference (reply target, channel) is missing.
//   - ErrNotFound: the addressed resource does not exist.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrValidation  = errors.New("validation error")
	ErrPermission  = errors.New("permission denied")
	ErrPersistence = errors.New("persistence error")
	ErrConsistency = errors.New("consistency error")
	ErrNotFound    = errors.New("not found")
)

// Error carries the kind, the operation that failed, and an optional cause.
type Error struct {
	Kind error
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = e.Kind.Error()
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, msg)
}

func (e *Error) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

func Validation(op, msg string) error {
	return &Error{Kind: ErrValidation, Op: op, Msg: msg}
}

func Permission(op, msg string) error {
	return &Error{Kind: ErrPermission, Op: op, Msg: msg}
}

func Persistence(op string, err error) error {
	return &Error{Kind: ErrPersistence, Op: op, Err: err}
}

func Consistency(op, msg string) error {
	return &Error{Kind: ErrConsistency, Op: op, Msg: msg}
}

func NotFound(op, msg string) error {
	return &Error{Kind: ErrNotFound, Op: op, Msg: msg}
}

// KindOf returns the kind sentinel of err, or nil when err is not an
// apperr error.
func KindOf(err error) error {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return nil
}

// Message returns the user-facing part of err without the op prefix.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Msg != "" {
			return e.Msg
		}
		return e.Kind.Error()
	}
	return err.Error()
}
