// Package apperr defines the error kinds shared by the identity core and
// the transport layer. Callers test kinds with errors.Is; the HTTP layer
// maps them to status codes with Status.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrValidation         = errors.New("validation failed")
	ErrInternal           = errors.New("internal error")
)

// Error pairs a kind with a stable machine-readable reason such as
// "email_exists". Reason is safe to show to clients; Err is not.
type Error struct {
	Kind   error
	Reason string
	Err    error
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func New(kind error, reason string) error {
	return &Error{Kind: kind, Reason: reason}
}

func Wrap(kind error, reason string, err error) error {
	return &Error{Kind: kind, Reason: reason, Err: err}
}

func Internal(op string, err error) error {
	return &Error{Kind: ErrInternal, Err: fmt.Errorf("%s: %w", op, err)}
}

// Reason returns the client-facing reason code carried by err, if any.
func Reason(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return ""
}

// Status maps an error to the HTTP status it should surface as.
func Status(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Message is the client-facing text for err. Internal details never leak.
func Message(err error) string {
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid email or password"
	case errors.Is(err, ErrUnauthorized):
		return "invalid or expired token"
	case errors.Is(err, ErrForbidden):
		return "insufficient permissions"
	case errors.Is(err, ErrNotFound):
		return "not found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrValidation):
		return "invalid request"
	default:
		return "internal server error"
	}
}
