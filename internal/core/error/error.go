package errx

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	// SystemErrorMessage is a user-facing fallback when internal errors occur.
	SystemErrorMessage = "internal server error"
	// RedisErrorMessage describes Redis related failures.
	RedisErrorMessage = "redis operation failed"
	// DatabaseErrorMessage describes SQL store failures.
	DatabaseErrorMessage = "database operation failed"
	// NotFoundMessage is returned for unknown agents or sessions.
	NotFoundMessage = "resource not found"
	// ValidationMessage is returned for malformed client input.
	ValidationMessage = "invalid request"
)

var (
	// ErrNotFound marks lookups of agents, sessions or listings that do not exist.
	ErrNotFound = errors.New("not found")
	// ErrStaleState is returned when a session save loses a compare-and-swap race.
	ErrStaleState = errors.New("stale session state")
	// ErrValidation marks malformed user or client supplied values.
	ErrValidation = errors.New("validation failed")
)

// AppError wraps an underlying error with an HTTP status and safe message.
type AppError struct {
	Err     error
	Status  int
	Message string
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError with the provided information.
func New(err error, status int, message string) *AppError {
	return &AppError{
		Err:     err,
		Status:  status,
		Message: message,
	}
}

// NotFound builds a 404 AppError for the given resource kind and id.
func NotFound(kind, id string) *AppError {
	return &AppError{
		Err:     fmt.Errorf("%s %q: %w", kind, id, ErrNotFound),
		Status:  http.StatusNotFound,
		Message: fmt.Sprintf("%s not found", kind),
	}
}

// Validation builds a 400 AppError with a client-safe message.
func Validation(message string) *AppError {
	return &AppError{
		Err:     fmt.Errorf("%s: %w", message, ErrValidation),
		Status:  http.StatusBadRequest,
		Message: message,
	}
}

// WrapRedis wraps a Redis error with a consistent status code and message.
func WrapRedis(err error) error {
	if err == nil {
		return nil
	}
	return &AppError{
		Err:     err,
		Status:  http.StatusBadGateway,
		Message: RedisErrorMessage,
	}
}

// WrapSQL wraps a database/sql error with a consistent status code and message.
func WrapSQL(err error) error {
	if err == nil {
		return nil
	}
	return &AppError{
		Err:     err,
		Status:  http.StatusInternalServerError,
		Message: DatabaseErrorMessage,
	}
}

// StatusOf returns the HTTP status carried by err, or 500 when none is attached.
func StatusOf(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Status != 0 {
		return appErr.Status
	}
	if errors.Is(err, ErrNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, ErrValidation) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// MessageOf returns the client-safe message for err.
func MessageOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return SystemErrorMessage
}

// Is reports whether the target matches the underlying error or the AppError itself.
func (e *AppError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// As allows casting to AppError or the wrapped error in a chain.
func (e *AppError) As(target any) bool {
	if errors.As(e.Err, target) {
		return true
	}
	if t, ok := target.(**AppError); ok {
		*t = e
		return true
	}
	return false
}
