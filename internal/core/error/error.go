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
	// RedisNotFoundMessage describes a missing Redis key.
	RedisNotFoundMessage = "redis key not found"
	// DatabaseErrorMessage describes libsql failures.
	DatabaseErrorMessage = "database operation failed"
	// NotFoundMessage describes a missing row.
	NotFoundMessage = "record not found"
	// UpstreamErrorMessage describes failures of model, embedding or web search providers.
	UpstreamErrorMessage = "upstream service failed"
	// ConflictMessage describes a lost optimistic write.
	ConflictMessage = "concurrent update conflict"
)

var (
	ErrEmptyQuery    = New(errors.New("query is empty"), http.StatusBadRequest, "query is required")
	ErrEmptySession  = New(errors.New("session id is empty"), http.StatusBadRequest, "session id is required")
	ErrRateLimited   = New(errors.New("rate limit exceeded"), http.StatusTooManyRequests, "too many requests")
	ErrOrderNotFound = New(errors.New("order not found"), http.StatusNotFound, NotFoundMessage)
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

// Is matches another AppError carrying the same status and message, so
// sentinel values survive re-wrapping.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e == t || (e.Status == t.Status && e.Message == t.Message && errors.Is(e.Err, t.Err))
}

// New creates a new AppError with the provided information.
func New(err error, status int, message string) *AppError {
	return &AppError{
		Err:     err,
		Status:  status,
		Message: message,
	}
}

// WrapUpstream marks a failed call to an external provider.
func WrapUpstream(err error, provider string) error {
	if err == nil {
		return nil
	}
	return New(fmt.Errorf("%s: %w", provider, err), http.StatusBadGateway, UpstreamErrorMessage)
}

// StatusOf returns the HTTP status carried by err, 500 when it carries none.
func StatusOf(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Status != 0 {
		return appErr.Status
	}
	return http.StatusInternalServerError
}

// MessageOf returns the safe message carried by err.
func MessageOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return SystemErrorMessage
}
