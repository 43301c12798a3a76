package core

import (
	"fmt"

	"github.com/pkg/errors"
)

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

// ValidationError is raised when an input, or the state it would produce, breaks an invariant.
// It is always returned before anything is persisted.
type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

// NewValidationErrorf is a shortcut for NewValidationError(fmt.Errorf(format, args...)).
func NewValidationErrorf(format string, args ...interface{}) error {
	return &ValidationError{Err: fmt.Errorf(format, args...)}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

func IsValidationError(err error) bool {
	var vErr *ValidationError
	return errors.As(err, &vErr)
}

// NotFoundError is returned by strict reads of a missing record.
type NotFoundError struct {
	What string
}

func NewNotFoundError(what string) error {
	return &NotFoundError{What: what}
}

func (err NotFoundError) Error() string {
	return err.What + " not found"
}

func IsNotFound(err error) bool {
	var nfErr *NotFoundError
	return errors.As(err, &nfErr)
}

// AuthorizationError means the actor lacks the role required by the operation.
type AuthorizationError struct {
	Message string
}

func NewAuthorizationError(format string, args ...interface{}) error {
	return &AuthorizationError{Message: fmt.Sprintf(format, args...)}
}

func (err AuthorizationError) Error() string {
	return err.Message
}

func IsAuthorizationError(err error) bool {
	var aErr *AuthorizationError
	return errors.As(err, &aErr)
}

// PreconditionError means the target is not in a state that allows the operation.
type PreconditionError struct {
	Message string
}

func NewPreconditionError(format string, args ...interface{}) error {
	return &PreconditionError{Message: fmt.Sprintf(format, args...)}
}

func (err PreconditionError) Error() string {
	return err.Message
}

func IsPreconditionError(err error) bool {
	var pErr *PreconditionError
	return errors.As(err, &pErr)
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
