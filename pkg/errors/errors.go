package errors

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrorType represents the category of an upstream failure
type ErrorType string

const (
	ErrorTypeNetwork      ErrorType = "network"
	ErrorTypeRateLimit    ErrorType = "rate_limit"
	ErrorTypeAuth         ErrorType = "auth"
	ErrorTypeAccessDenied ErrorType = "access_denied"
	ErrorTypeBadRequest   ErrorType = "bad_request"
	ErrorTypeParsing      ErrorType = "parsing"
	ErrorTypeNotFound     ErrorType = "not_found"
	ErrorTypeServerError  ErrorType = "server_error"
	ErrorTypeUnknown      ErrorType = "unknown"
)

// Error is an upstream API error with type information
type Error struct {
	Type    ErrorType
	Message string
	Code    int
	// RetryAfter is the server's Retry-After hint, zero when absent
	RetryAfter time.Duration
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, e.Message)
}

// New creates a typed error
func New(errorType ErrorType, code int, format string, args ...interface{}) *Error {
	return &Error{
		Type:    errorType,
		Message: fmt.Sprintf(format, args...),
		Code:    code,
	}
}

// TypeOf returns the type of the first *Error in err's chain, or ErrorTypeUnknown
func TypeOf(err error) ErrorType {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Type
	}
	return ErrorTypeUnknown
}

// WithRetryAfter records the server's retry hint and returns e
func (e *Error) WithRetryAfter(d time.Duration) *Error {
	e.RetryAfter = d
	return e
}

// RetryAfterOf returns the Retry-After hint of the first *Error in err's chain
func RetryAfterOf(err error) time.Duration {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.RetryAfter
	}
	return 0
}

// IsType reports whether err carries an *Error of the given type
func IsType(err error, errorType ErrorType) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Type == errorType
}

// IsAccessDenied reports whether the upstream refused access to the target.
// Instagram answers both 400 and 403 for private or blocked reels.
func IsAccessDenied(err error) bool {
	return IsType(err, ErrorTypeAccessDenied) || IsType(err, ErrorTypeBadRequest)
}

// IsRetryable checks if an error type should be retried
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNetwork, ErrorTypeRateLimit, ErrorTypeServerError:
		return true
	default:
		return false
	}
}

// FromStatusCode maps an HTTP status code to an error type
func FromStatusCode(statusCode int) ErrorType {
	switch {
	case statusCode == 0:
		return ErrorTypeNetwork
	case statusCode == http.StatusBadRequest:
		return ErrorTypeBadRequest
	case statusCode == http.StatusUnauthorized:
		return ErrorTypeAuth
	case statusCode == http.StatusForbidden:
		return ErrorTypeAccessDenied
	case statusCode == http.StatusNotFound:
		return ErrorTypeNotFound
	case statusCode == http.StatusTooManyRequests:
		return ErrorTypeRateLimit
	case statusCode >= 500:
		return ErrorTypeServerError
	default:
		return ErrorTypeUnknown
	}
}

// IsRetryableStatusCode checks if an HTTP status code indicates a retryable error
func IsRetryableStatusCode(statusCode int) bool {
	return IsRetryable(FromStatusCode(statusCode))
}
