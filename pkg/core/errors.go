package core

import (
	"errors"
	"fmt"
	"time"
)

// ExecutionError represents a structured error with category and details
type ExecutionError struct {
	Category ErrorCategory
	Code     string                 // Machine-readable code: invalid_config, wait_timeout, etc.
	Message  string                 // Human-readable message
	Details  map[string]interface{} // Additional context
	Cause    error                  // Underlying error
}

// Error implements the error interface
func (e *ExecutionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *ExecutionError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an ExecutionError with the same code, so that
// copies made with WithCause/WithMessage still match the predefined errors.
func (e *ExecutionError) Is(target error) bool {
	t, ok := target.(*ExecutionError)
	if !ok {
		return false
	}
	return t.Code != "" && t.Code == e.Code
}

// WithCause returns a copy of the error with the given cause
func (e *ExecutionError) WithCause(cause error) *ExecutionError {
	return &ExecutionError{
		Category: e.Category,
		Code:     e.Code,
		Message:  e.Message,
		Details:  e.Details,
		Cause:    cause,
	}
}

// WithMessage returns a copy of the error with a custom message
func (e *ExecutionError) WithMessage(msg string) *ExecutionError {
	return &ExecutionError{
		Category: e.Category,
		Code:     e.Code,
		Message:  msg,
		Details:  e.Details,
		Cause:    e.Cause,
	}
}

// WithDetails returns a copy of the error with additional details
func (e *ExecutionError) WithDetails(details map[string]interface{}) *ExecutionError {
	merged := make(map[string]interface{})
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &ExecutionError{
		Category: e.Category,
		Code:     e.Code,
		Message:  e.Message,
		Details:  merged,
		Cause:    e.Cause,
	}
}

// Predefined errors
var (
	// ErrInvalidConfig is the ConfigurationError: an inconsistent or incomplete
	// execution configuration, detected before any network activity.
	ErrInvalidConfig = &ExecutionError{
		Category: ErrCategoryConfig,
		Code:     "invalid_config",
		Message:  "invalid configuration",
	}
	ErrMissingRequired = &ExecutionError{
		Category: ErrCategoryConfig,
		Code:     "invalid_config",
		Message:  "missing required field",
	}
	ErrUnsupportedConfig = &ExecutionError{
		Category: ErrCategoryUnsupported,
		Code:     "unsupported_config",
		Message:  "unsupported configuration",
	}

	ErrSessionCreation = &ExecutionError{
		Category: ErrCategoryConnection,
		Code:     "session_creation",
		Message:  "could not create automation session",
	}
	ErrSessionTerminated = &ExecutionError{
		Category: ErrCategoryConnection,
		Code:     "session_terminated",
		Message:  "automation session is no longer available",
	}

	ErrWaitTimeout = &ExecutionError{
		Category: ErrCategoryTimeout,
		Code:     "wait_timeout",
		Message:  "wait condition timed out",
	}

	ErrElementNotFound = &ExecutionError{
		Category: ErrCategoryAssertion,
		Code:     "element_not_found",
		Message:  "element not found",
	}
)

// NewExecutionError creates a new ExecutionError with the given parameters
func NewExecutionError(category ErrorCategory, code, message string) *ExecutionError {
	return &ExecutionError{
		Category: category,
		Code:     code,
		Message:  message,
	}
}

// ConfigError returns an ErrInvalidConfig copy with a formatted message.
func ConfigError(format string, args ...interface{}) *ExecutionError {
	return ErrInvalidConfig.WithMessage("invalid configuration: " + fmt.Sprintf(format, args...))
}

// UnsupportedError returns an ErrUnsupportedConfig copy with a formatted message.
func UnsupportedError(format string, args ...interface{}) *ExecutionError {
	return ErrUnsupportedConfig.WithMessage("unsupported configuration: " + fmt.Sprintf(format, args...))
}

// SessionError builds a SessionCreationError for the given platform.
func SessionError(platform string, cause error) *ExecutionError {
	return ErrSessionCreation.
		WithMessage(fmt.Sprintf("could not create %s session", platform)).
		WithDetails(map[string]interface{}{"platform": platform}).
		WithCause(cause)
}

// WaitTimeoutError builds the timeout error for a wait that never succeeded.
func WaitTimeoutError(condition string, elapsed time.Duration) *ExecutionError {
	return ErrWaitTimeout.
		WithMessage(fmt.Sprintf("timed out after %v waiting for %s", elapsed.Round(time.Millisecond), condition)).
		WithDetails(map[string]interface{}{
			"condition": condition,
			"elapsed":   elapsed,
		})
}

// ElementNotFoundError builds the lookup failure for a locator.
func ElementNotFoundError(locator string) *ExecutionError {
	return ErrElementNotFound.
		WithMessage("element not found: " + locator).
		WithDetails(map[string]interface{}{"locator": locator})
}

// Elapsed extracts the elapsed duration recorded on a wait timeout.
func Elapsed(err error) (time.Duration, bool) {
	var e *ExecutionError
	if !errors.As(err, &e) {
		return 0, false
	}
	d, ok := e.Details["elapsed"].(time.Duration)
	return d, ok
}
