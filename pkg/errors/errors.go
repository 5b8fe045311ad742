// Package errors defines the error kinds shared by the model store, the
// parsers and the service layer, plus their HTTP status mapping.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrIO            = errors.New("i/o error")
	ErrCorruption    = errors.New("corrupted data")
	ErrNotConfigured = errors.New("feature not configured")
	ErrUpstream      = errors.New("upstream dependency failed")
	ErrInvalidInput  = errors.New("invalid input")
	ErrInternal      = errors.New("internal error")
	ErrTimeout       = errors.New("operation timed out")
)

type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// KindError tags a lower-level cause with one of the sentinel kinds so that
// errors.Is matches both the kind and the original cause.
type KindError struct {
	Kind  error
	Op    string
	Cause error
}

func (e *KindError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Cause)
}

func (e *KindError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}

// Wrap classifies cause as kind. A nil cause yields a bare kind error.
func Wrap(kind error, op string, cause error) error {
	return &KindError{Kind: kind, Op: op, Cause: cause}
}

// IO is shorthand for Wrap(ErrIO, ...).
func IO(op string, cause error) error {
	return Wrap(ErrIO, op, cause)
}

// Corruption builds an ErrCorruption error with a formatted detail message.
func Corruption(op string, format string, args ...any) error {
	return Wrap(ErrCorruption, op, fmt.Errorf(format, args...))
}

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotConfigured):
		return http.StatusNotFound
	case errors.Is(err, ErrCorruption):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrIO), errors.Is(err, ErrUpstream), errors.Is(err, ErrTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
