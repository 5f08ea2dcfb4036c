// internal/engine/errors.go
package engine

import (
	"errors"
	"fmt"

	"github.com/law-makers/revscrape/internal/errcode"
)

// Common engine errors
var (
	ErrContainerNotFound  = errors.New("review container not found")
	ErrNavigationFailed   = errors.New("navigation to next page failed")
	ErrWaitTimeout        = errors.New("wait timed out")
	ErrSessionFailed      = errors.New("page session failed")
	ErrInvalidURL         = errors.New("invalid URL")
	ErrUnexpectedShutdown = errors.New("session ended unexpectedly")
)

// ErrorCode represents a specific error condition
type ErrorCode = errcode.Code

const (
	ErrCodeContainerNotFound = errcode.ContainerNotFound
	ErrCodeNavigationFailed  = errcode.NavigationFailed
	ErrCodeWaitTimeout       = errcode.WaitTimeout
	ErrCodeSessionError      = errcode.SessionError
	ErrCodeValidation        = errcode.Validation
)

// EngineError wraps errors with additional context
type EngineError struct {
	Code       ErrorCode
	Message    string
	Underlying error
	Retry      bool
	Details    map[string]interface{}
}

// Error implements the error interface
func (e *EngineError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Underlying)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *EngineError) Unwrap() error {
	return e.Underlying
}

// Is matches another EngineError by code, or the underlying error
func (e *EngineError) Is(target error) bool {
	if t, ok := target.(*EngineError); ok {
		return e.Code == t.Code
	}
	return errors.Is(e.Underlying, target)
}

// NewEngineError creates a new EngineError
func NewEngineError(code ErrorCode, message string, err error) *EngineError {
	return &EngineError{
		Code:       code,
		Message:    message,
		Underlying: err,
		Details:    make(map[string]interface{}),
	}
}

// WithRetry marks the error as retryable
func (e *EngineError) WithRetry() *EngineError {
	e.Retry = true
	return e
}

// WithDetail adds a detail to the error
func (e *EngineError) WithDetail(key string, value interface{}) *EngineError {
	e.Details[key] = value
	return e
}

// CodeOf returns the code of the first EngineError in err's chain
func CodeOf(err error) (ErrorCode, bool) {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Code, true
	}
	return "", false
}

// IsRetryable reports whether any EngineError in err's chain is marked retryable
func IsRetryable(err error) bool {
	var ee *EngineError
	return errors.As(err, &ee) && ee.Retry
}
