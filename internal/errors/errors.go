package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// AppError is an error that can be serialized to clients. The envelope is
// {error, message, code, request_id, timestamp}; Message is always safe to
// show to a client, the underlying error stays server-side.
type AppError struct {
	Type       string `json:"error"`
	Message    string `json:"message"`
	Code       int    `json:"code"`
	RequestID  string `json:"request_id,omitempty"`
	Timestamp  string `json:"timestamp,omitempty"`
	underlying error
}

func (e *AppError) Error() string {
	if e.underlying != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.underlying)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.underlying
}

// WriteJSON writes the error envelope to the response. The timestamp is
// stamped at write time.
func (e *AppError) WriteJSON(w http.ResponseWriter) {
	out := *e
	out.Timestamp = time.Now().UTC().Format(time.RFC3339)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(out.Code)
	json.NewEncoder(w).Encode(&out)
}

// Base errors. Messages mirror what clients of the quotes API expect.
var (
	ErrBadRequest = &AppError{
		Type:    "validation_error",
		Code:    http.StatusBadRequest,
		Message: "Bad Request",
	}

	ErrNotFound = &AppError{
		Type:    "not_found",
		Code:    http.StatusNotFound,
		Message: "Not Found",
	}

	ErrTooManyRequests = &AppError{
		Type:    "rate_limited",
		Code:    http.StatusTooManyRequests,
		Message: "Rate limit exceeded",
	}

	ErrInternalServer = &AppError{
		Type:    "internal_error",
		Code:    http.StatusInternalServerError,
		Message: "Internal server error",
	}

	ErrServiceUnavailable = &AppError{
		Type:    "service_unavailable",
		Code:    http.StatusServiceUnavailable,
		Message: "Service Unavailable",
	}

	ErrDatabase = &AppError{
		Type:    "database_error",
		Code:    http.StatusInternalServerError,
		Message: "Database operation failed",
	}

	ErrCache = &AppError{
		Type:    "redis_error",
		Code:    http.StatusInternalServerError,
		Message: "Cache operation failed",
	}

	ErrUpstream = &AppError{
		Type:    "http_client_error",
		Code:    http.StatusInternalServerError,
		Message: "External service error",
	}

	ErrTimeout = &AppError{
		Type:    "timeout_error",
		Code:    http.StatusRequestTimeout,
		Message: "Request timeout",
	}
)

// New creates a new AppError.
func New(errType string, code int, message string) *AppError {
	return &AppError{
		Type:    errType,
		Code:    code,
		Message: message,
	}
}

// Validation creates a 400 validation error with a client-visible message.
func Validation(message string) *AppError {
	return &AppError{
		Type:    "validation_error",
		Code:    http.StatusBadRequest,
		Message: message,
	}
}

// Wrap wraps an underlying error into a base error. The underlying error is
// kept for logs and errors.Is/As, never serialized.
func Wrap(base *AppError, err error) *AppError {
	return &AppError{
		Type:       base.Type,
		Code:       base.Code,
		Message:    base.Message,
		RequestID:  base.RequestID,
		underlying: err,
	}
}

// WithMessage returns a copy with a different client-visible message.
func (e *AppError) WithMessage(message string) *AppError {
	return &AppError{
		Type:       e.Type,
		Code:       e.Code,
		Message:    message,
		RequestID:  e.RequestID,
		underlying: e.underlying,
	}
}

// WithRequestID returns a copy carrying the request trace ID.
func (e *AppError) WithRequestID(requestID string) *AppError {
	return &AppError{
		Type:       e.Type,
		Code:       e.Code,
		Message:    e.Message,
		RequestID:  requestID,
		underlying: e.underlying,
	}
}

// IsAppError checks if an error is an AppError.
func IsAppError(err error) (*AppError, bool) {
	if ae, ok := err.(*AppError); ok {
		return ae, true
	}
	return nil, false
}
