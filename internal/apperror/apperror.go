// Package apperror defines the typed failures shared by the store, service
// and handler layers.
//
// Every failure carries one of the sentinel kinds below. Handlers classify
// with errors.Is and render AppError.Message to the client; anything that is
// not an *AppError is treated as unexpected and never shown verbatim.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("Validation Error")
	ErrConflict     = errors.New("conflict")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
)

type AppError struct {
	Err     error  // sentinel kind
	Message string // human-readable message, safe to show to clients
	Field   string // optional: input field that caused the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
	}
}

// AlreadyExists is a conflict with a caller-chosen message, used where the
// generic "conflict with id" wording would leak or confuse.
func AlreadyExists(message string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: message,
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// Unauthorized marks a missing, malformed, expired or orphaned session.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

// InvalidCredentials is returned by login for both an unknown email and a
// wrong password. The message must stay identical for both.
func InvalidCredentials() *AppError {
	return Unauthorized("Invalid credentials")
}
