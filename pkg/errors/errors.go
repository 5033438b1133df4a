package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorCode classifies an error for the admin API and logs.
type ErrorCode string

const (
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	ErrCodeNotFound     ErrorCode = "NOT_FOUND"
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrCodeRateLimit    ErrorCode = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal     ErrorCode = "INTERNAL_ERROR"

	// Host-side failure classes surfaced through logs and the admin API.
	ErrCodeBindFailure          ErrorCode = "BIND_FAILURE"
	ErrCodeHandshakeFailure     ErrorCode = "HANDSHAKE_FAILURE"
	ErrCodeMalformedPacket      ErrorCode = "MALFORMED_PACKET"
	ErrCodeUnknownCommand       ErrorCode = "UNKNOWN_COMMAND"
	ErrCodeActuationFailure     ErrorCode = "ACTUATION_FAILURE"
	ErrCodePipelineParseFailure ErrorCode = "PIPELINE_PARSE_FAILURE"
	ErrCodePipelineStateFailure ErrorCode = "PIPELINE_STATE_FAILURE"
)

// AppError pairs an error code with an HTTP status and optional cause,
// so handlers can map failures to responses without string matching.
type AppError struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Cause      error
	Context    map[string]interface{}
}

func (e *AppError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext attaches a key/value detail and returns the error for
// chaining.
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WrapError builds an AppError around an underlying cause.
func WrapError(err error, code ErrorCode, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Cause:      err,
		Context:    make(map[string]interface{}),
	}
}

// NewAppError builds an AppError with no underlying cause.
func NewAppError(code ErrorCode, message string, httpStatus int) *AppError {
	return WrapError(nil, code, message, httpStatus)
}

func NewInvalidInputError(message string) *AppError {
	return NewAppError(ErrCodeInvalidInput, message, http.StatusBadRequest)
}

func NewNotFoundError(resource string) *AppError {
	return NewAppError(ErrCodeNotFound, fmt.Sprintf("%s not found", resource), http.StatusNotFound)
}

func NewUnauthorizedError(message string) *AppError {
	return NewAppError(ErrCodeUnauthorized, message, http.StatusUnauthorized)
}

func NewRateLimitError() *AppError {
	return NewAppError(ErrCodeRateLimit, "rate limit exceeded", http.StatusTooManyRequests)
}

func NewInternalError(message string) *AppError {
	return NewAppError(ErrCodeInternal, message, http.StatusInternalServerError)
}

// NewBindFailure wraps a listener bind error. Bind failures are fatal at
// startup: the process has no working endpoint to offer.
func NewBindFailure(err error, address string) *AppError {
	return WrapError(err, ErrCodeBindFailure, fmt.Sprintf("failed to bind %s", address), http.StatusServiceUnavailable)
}

// NewHandshakeFailure wraps a per-connection upgrade error.
func NewHandshakeFailure(err error, remote string) *AppError {
	return WrapError(err, ErrCodeHandshakeFailure, fmt.Sprintf("handshake with %s failed", remote), http.StatusBadRequest)
}

// NewActuationFailure wraps a failed injection or controller push.
func NewActuationFailure(err error, target string) *AppError {
	return WrapError(err, ErrCodeActuationFailure, fmt.Sprintf("actuation on %s failed", target), http.StatusInternalServerError)
}

// NewPipelineParseFailure wraps a rejected pipeline description.
func NewPipelineParseFailure(err error) *AppError {
	return WrapError(err, ErrCodePipelineParseFailure, "pipeline description rejected", http.StatusInternalServerError)
}

// NewPipelineStateFailure wraps a refused pipeline state transition.
func NewPipelineStateFailure(err error, transition string) *AppError {
	return WrapError(err, ErrCodePipelineStateFailure, fmt.Sprintf("pipeline transition %s refused", transition), http.StatusInternalServerError)
}

// GetAppError pulls the first AppError out of err's chain, or nil.
func GetAppError(err error) *AppError {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return nil
}

// IsAppError reports whether err carries an AppError anywhere in its
// chain.
func IsAppError(err error) bool {
	return GetAppError(err) != nil
}
