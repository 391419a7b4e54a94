package models

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures for the top level handler.
type ErrorKind string

const (
	KindIO         ErrorKind = "IOError"
	KindAuth       ErrorKind = "AuthError"
	KindValidation ErrorKind = "ValidationError"
	KindNetwork    ErrorKind = "NetworkError"
)

// Kind sentinels. Use errors.Is(err, models.ErrAuth) to test the kind of any
// wrapped *Error.
var (
	ErrIO         = &Error{Kind: KindIO}
	ErrAuth       = &Error{Kind: KindAuth}
	ErrValidation = &Error{Kind: KindValidation}
	ErrNetwork    = &Error{Kind: KindNetwork}
)

var (
	ErrEmptyInput    = errors.New("please input text")
	ErrNoSessionData = errors.New(
		"no session data to persist. did you pass an incorrect user name or password?")
	ErrPostTooLong  = errors.New("post text is too long")
	ErrInputTooLong = errors.New("input is longer than the configured limit")
)

type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case len(e.Op) > 0 && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	case len(e.Op) > 0:
		return fmt.Sprintf("%s: %s", e.Kind, e.Op)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so the kind sentinels work with
// errors.Is regardless of Op and Err.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Err == nil || errors.Is(e.Err, t.Err))
}

func newError(kind ErrorKind, op string, err error) error {
	if err == nil {
		return nil
	}
	var existing *Error
	if errors.As(err, &existing) && existing.Kind == kind {
		return err
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

func NewIOError(op string, err error) error         { return newError(KindIO, op, err) }
func NewAuthError(op string, err error) error       { return newError(KindAuth, op, err) }
func NewValidationError(op string, err error) error { return newError(KindValidation, op, err) }
func NewNetworkError(op string, err error) error    { return newError(KindNetwork, op, err) }

// KindOf returns the kind of the outermost *Error in the chain.
func KindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}
