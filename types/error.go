package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unified error code across the agent.
type ErrorCode string

// Request and configuration error codes
const (
	ErrInvalidRequest     ErrorCode = "INVALID_REQUEST"
	ErrConfiguration      ErrorCode = "CONFIGURATION"
	ErrUnauthorized       ErrorCode = "UNAUTHORIZED"
	ErrToolValidation     ErrorCode = "TOOL_VALIDATION"
	ErrCapabilityNotFound ErrorCode = "CAPABILITY_NOT_FOUND"
)

// Upstream error codes
const (
	ErrUpstreamError    ErrorCode = "UPSTREAM_ERROR"
	ErrRateLimited      ErrorCode = "RATE_LIMITED"
	ErrTransport        ErrorCode = "TRANSPORT"
	ErrRetriesExhausted ErrorCode = "RETRIES_EXHAUSTED"
	ErrTimeout          ErrorCode = "TIMEOUT"
)

// Delivery error codes
const (
	ErrUploadFailed  ErrorCode = "UPLOAD_FAILED"
	ErrStorage       ErrorCode = "STORAGE"
	ErrInternalError ErrorCode = "INTERNAL_ERROR"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	HTTPStatus int       `json:"http_status,omitempty"`
	Retryable  bool      `json:"retryable"`
	Provider   string    `json:"provider,omitempty"`
	Cause      error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithHTTPStatus sets the HTTP status code.
func (e *Error) WithHTTPStatus(status int) *Error {
	e.HTTPStatus = status
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// WithProvider sets the provider name.
func (e *Error) WithProvider(provider string) *Error {
	e.Provider = provider
	return e
}

// AsError returns the outermost *Error in err's chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if e, ok := AsError(err); ok {
		return e.Retryable
	}
	return false
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) ErrorCode {
	if e, ok := AsError(err); ok {
		return e.Code
	}
	return ""
}

// IsErrorCode reports whether any *Error in err's chain carries code.
func IsErrorCode(err error, code ErrorCode) bool {
	for err != nil {
		if e, ok := err.(*Error); ok && e.Code == code {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}

// NewConfigurationError is returned when required settings such as the
// inference credential are missing.
func NewConfigurationError(message string) *Error {
	return NewError(ErrConfiguration, message)
}

// NewUpstreamError describes a non-retryable HTTP failure from the endpoint.
func NewUpstreamError(status int, body string) *Error {
	return NewError(ErrUpstreamError, fmt.Sprintf("API error: %d - %s", status, body)).
		WithHTTPStatus(status)
}

// NewRateLimitError describes an HTTP 429 response.
func NewRateLimitError(body string) *Error {
	msg := "rate limited by upstream"
	if body != "" {
		msg += ": " + body
	}
	return NewError(ErrRateLimited, msg).WithHTTPStatus(429).WithRetryable(true)
}

// NewTransportError wraps a network-level fault.
func NewTransportError(cause error) *Error {
	return NewError(ErrTransport, "request failed").WithCause(cause).WithRetryable(true)
}

// NewExhaustedRetriesError is returned once the attempt bound is reached.
func NewExhaustedRetriesError(attempts int, last error) *Error {
	return NewError(ErrRetriesExhausted, fmt.Sprintf("giving up after %d attempts", attempts)).
		WithCause(last)
}

// NewUploadError describes a failed workspace upload.
func NewUploadError(message string, cause error) *Error {
	return NewError(ErrUploadFailed, message).WithCause(cause)
}
