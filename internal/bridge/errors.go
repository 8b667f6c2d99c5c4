package bridge

import (
	"errors"
	"fmt"
	"time"
)

// ErrorKind classifies adapter failures. The kind decides whether a retry
// can help: unsupported routes/assets and malformed JSON never recover.
type ErrorKind int

const (
	KindTimeout ErrorKind = iota
	KindBadResponse
	KindUnsupportedAsset
	KindUnsupportedRoute
	KindNetwork
	KindJSONParse
	KindRateLimited
	KindServiceUnavailable
	KindInternal
)

// String returns the metric-friendly label for the kind.
func (k ErrorKind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindBadResponse:
		return "bad_response"
	case KindUnsupportedAsset:
		return "unsupported_asset"
	case KindUnsupportedRoute:
		return "unsupported_route"
	case KindNetwork:
		return "network"
	case KindJSONParse:
		return "json_parse"
	case KindRateLimited:
		return "rate_limited"
	case KindServiceUnavailable:
		return "service_unavailable"
	default:
		return "internal"
	}
}

// Error is the adapter-level error type.
type Error struct {
	Kind    ErrorKind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Retryable reports whether another attempt could produce a different
// outcome.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindUnsupportedAsset, KindUnsupportedRoute, KindJSONParse:
		return false
	}
	return true
}

// IsRetryable reports whether err should be retried. Unknown error types
// are retried.
func IsRetryable(err error) bool {
	var be *Error
	if errors.As(err, &be) {
		return be.Retryable()
	}
	return true
}

// KindOf returns the error kind, or KindInternal for foreign errors.
func KindOf(err error) ErrorKind {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind
	}
	return KindInternal
}

func ErrTimeout(timeout time.Duration) *Error {
	return &Error{
		Kind:    KindTimeout,
		Message: fmt.Sprintf("Request timeout after %dms", timeout.Milliseconds()),
	}
}

func ErrBadResponse(message string) *Error {
	return &Error{
		Kind:    KindBadResponse,
		Message: fmt.Sprintf("Bad response from bridge API: %s", message),
	}
}

func ErrUnsupportedAsset(asset string) *Error {
	return &Error{
		Kind:    KindUnsupportedAsset,
		Message: fmt.Sprintf("Unsupported asset: %s", asset),
	}
}

func ErrUnsupportedRoute(fromChain, toChain string) *Error {
	return &Error{
		Kind:    KindUnsupportedRoute,
		Message: fmt.Sprintf("Unsupported route: %s -> %s", fromChain, toChain),
	}
}

func ErrNetwork(cause error) *Error {
	return &Error{
		Kind:    KindNetwork,
		Message: "Network error",
		cause:   cause,
	}
}

func ErrJSONParse(cause error) *Error {
	return &Error{
		Kind:    KindJSONParse,
		Message: "JSON parsing error",
		cause:   cause,
	}
}

func ErrRateLimited() *Error {
	return &Error{
		Kind:    KindRateLimited,
		Message: "API rate limit exceeded",
	}
}

func ErrServiceUnavailable() *Error {
	return &Error{
		Kind:    KindServiceUnavailable,
		Message: "Bridge service unavailable",
	}
}

func ErrInternal(message string) *Error {
	return &Error{
		Kind:    KindInternal,
		Message: fmt.Sprintf("Internal error: %s", message),
	}
}
