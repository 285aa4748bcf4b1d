package webdriver

import (
	"errors"
	"fmt"
)

// W3C WebDriver error codes used by uiharness.
const (
	CodeNoSuchElement          = "no such element"
	CodeStaleElementReference  = "stale element reference"
	CodeElementNotInteractable = "element not interactable"
	CodeNoSuchAlert            = "no such alert"
	CodeNoSuchFrame            = "no such frame"
	CodeNoSuchWindow           = "no such window"
	CodeInvalidSessionID       = "invalid session id"
	CodeSessionNotCreated      = "session not created"
	CodeJavaScriptError        = "javascript error"
	CodeUnknownError           = "unknown error"
)

// Error is an error returned by the remote end.
type Error struct {
	Code    string // W3C error code, e.g. "no such element"
	Message string
	Status  int // HTTP status, 0 when synthesized locally
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// HasCode reports whether err is a remote error with the given code.
func HasCode(err error, code string) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}

// IsTransient reports whether err means the UI is not ready yet rather than
// that the session is broken: the element is not attached, went stale, is not
// interactable, or no prompt/frame is open.
func IsTransient(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	switch e.Code {
	case CodeNoSuchElement, CodeStaleElementReference, CodeElementNotInteractable,
		CodeNoSuchAlert, CodeNoSuchFrame:
		return true
	}
	return false
}

// IsSessionGone reports whether err means the session no longer exists.
func IsSessionGone(err error) bool {
	return HasCode(err, CodeInvalidSessionID) || HasCode(err, CodeNoSuchWindow)
}
