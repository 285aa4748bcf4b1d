package core

// Status represents the execution status of one test instance
type Status int

const (
	StatusPending Status = iota // Not yet started
	StatusRunning               // Session provisioned, test body executing
	StatusPassed                // Completed successfully
	StatusFailed                // Test body reported a failure (wait timeout, missing element)
	StatusErrored               // Setup could not complete (configuration, session creation)
	StatusSkipped               // Not run
)

// String returns the string representation of Status
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusPassed:
		return "passed"
	case StatusFailed:
		return "failed"
	case StatusErrored:
		return "errored"
	case StatusSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// IsTerminal returns true if the status is a final state
func (s Status) IsTerminal() bool {
	switch s {
	case StatusPassed, StatusFailed, StatusErrored, StatusSkipped:
		return true
	default:
		return false
	}
}

// ErrorCategory classifies the type of error for better debugging and reporting
type ErrorCategory int

const (
	ErrCategoryNone        ErrorCategory = iota // No error
	ErrCategoryAssertion                        // Element not found at lookup time
	ErrCategoryTimeout                          // Wait condition never satisfied
	ErrCategoryConnection                       // Session creation failed or session lost
	ErrCategoryConfig                           // Invalid configuration, missing required field
	ErrCategoryUnsupported                      // Platform/mode combination not implemented
)

// String returns the string representation of ErrorCategory
func (c ErrorCategory) String() string {
	switch c {
	case ErrCategoryNone:
		return "none"
	case ErrCategoryAssertion:
		return "assertion"
	case ErrCategoryTimeout:
		return "timeout"
	case ErrCategoryConnection:
		return "connection"
	case ErrCategoryConfig:
		return "config"
	case ErrCategoryUnsupported:
		return "unsupported"
	default:
		return "unknown"
	}
}

// IsSetup returns true for categories that stop a test before its body runs.
func (c ErrorCategory) IsSetup() bool {
	return c == ErrCategoryConfig || c == ErrCategoryUnsupported || c == ErrCategoryConnection
}
