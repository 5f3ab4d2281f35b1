package service

import (
	"errors"
	"fmt"

	"github.com/bitfantasy/nimo-hr/internal/hr/repository"
)

// Kind classifies service failures for the transport layer.
type Kind string

const (
	KindValidation    Kind = "validation"
	KindAuthorization Kind = "authorization"
	KindInvalidState  Kind = "invalid_state"
	KindNotFound      Kind = "not_found"
	KindInternal      Kind = "internal"
)

// Error is a classified service error.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func ErrValidation(format string, args ...any) *Error {
	return newError(KindValidation, format, args...)
}

func ErrAuthorization(format string, args ...any) *Error {
	return newError(KindAuthorization, format, args...)
}

func ErrInvalidState(format string, args ...any) *Error {
	return newError(KindInvalidState, format, args...)
}

func ErrNotFound(format string, args ...any) *Error {
	return newError(KindNotFound, format, args...)
}

// KindOf returns the kind of err, KindInternal for unclassified errors.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	if errors.Is(err, repository.ErrNotFound) {
		return KindNotFound
	}
	return KindInternal
}

// notFoundOr maps repository.ErrNotFound to a not_found error naming what,
// and wraps anything else.
func notFoundOr(err error, what string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return &Error{Kind: KindNotFound, Message: what + " not found", Err: err}
	}
	return fmt.Errorf("load %s: %w", what, err)
}
