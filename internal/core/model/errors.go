package model

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when an entity is required to exist and does not.
	ErrNotFound = errors.New("entity was not found")

	// ErrValidation is returned when the input is malformed or incomplete.
	ErrValidation = errors.New("validation failed")

	// ErrForbidden is returned when the caller is authenticated but not allowed to perform the operation.
	ErrForbidden = errors.New("forbidden")

	// ErrUnauthorized is returned when the credential is missing, invalid or expired.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrConflict is returned on uniqueness violations and on concurrent modifications.
	ErrConflict = errors.New("conflict")

	// ErrIllegalTransition is returned when a parcel status change is not allowed by the state machine.
	ErrIllegalTransition = errors.New("illegal status transition")
)

// ErrorSource points at the input that caused an error.
type ErrorSource struct {
	// Path is the name of the offending field. Empty when the error is not tied to a field.
	Path string `json:"path"`

	// Message is a human-readable description of the problem.
	Message string `json:"message"`
}

// Error is a domain error. Kind is one of the sentinel errors of this package and can be matched with errors.Is.
type Error struct {
	// Kind is the sentinel classifying the error.
	Kind error

	// Message is the client facing message.
	Message string

	// Sources lists the offending inputs, if any.
	Sources []ErrorSource
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

// NewError builds an error of the given kind.
func NewError(kind error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// NewValidationError builds a validation error listing the offending sources.
func NewValidationError(message string, sources ...ErrorSource) *Error {
	return &Error{Kind: ErrValidation, Message: message, Sources: sources}
}

// AsError extracts the domain error from err. The boolean is false when err does not wrap an *Error.
func AsError(err error) (*Error, bool) {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr, true
	}
	return nil, false
}
