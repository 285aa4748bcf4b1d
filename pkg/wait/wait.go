// Package wait polls a session until a condition holds.
package wait

import (
	"context"
	"errors"
	"time"

	"github.com/devicelab-dev/uiharness/pkg/core"
	"github.com/devicelab-dev/uiharness/pkg/logger"
	"github.com/devicelab-dev/uiharness/pkg/session"
	"github.com/devicelab-dev/uiharness/pkg/webdriver"
)

// DefaultPollInterval is used when a Spec leaves PollInterval unset.
const DefaultPollInterval = 500 * time.Millisecond

// TimeoutPolicy says what Await does when the timeout elapses.
type TimeoutPolicy int

const (
	// Fail returns a core.ErrWaitTimeout error.
	Fail TimeoutPolicy = iota
	// ReturnFalse returns false with no error.
	ReturnFalse
)

// Condition is a named predicate over a session.
//
// Check reports (true, nil) when the condition holds and (false, nil) when it
// does not hold yet. Transient errors are treated like (false, nil); any other
// error stops the wait.
type Condition struct {
	Description string
	Check       func(ctx context.Context, s *session.Session) (bool, error)
}

// Spec describes one wait.
type Spec struct {
	Condition    Condition
	Timeout      time.Duration
	PollInterval time.Duration
	OnTimeout    TimeoutPolicy
}

// Await evaluates spec.Condition until it holds or spec.Timeout elapses.
// Evaluations run one at a time on the calling goroutine. The sleep between
// them is clamped to the remaining budget, and each evaluation runs under a
// deadline of Timeout plus one PollInterval, so a failing wait returns within
// that bound. Cancelling ctx aborts the wait with ctx.Err().
func Await(ctx context.Context, s *session.Session, spec Spec) (bool, error) {
	if spec.Condition.Check == nil {
		return false, core.ConfigError("wait condition is required")
	}
	if spec.Timeout < 0 {
		return false, core.ConfigError("wait timeout must not be negative")
	}
	interval := spec.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	start := time.Now()
	deadline := start.Add(spec.Timeout)
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	// A single evaluation may not outlive the budget by more than one interval.
	evalCtx, cancel := context.WithDeadline(ctx, deadline.Add(interval))
	defer cancel()

	for attempt := 1; ; attempt++ {
		ok, err := spec.Condition.Check(evalCtx, s)
		if err != nil && evalCtx.Err() != nil && ctx.Err() == nil {
			logger.Debug("wait %q attempt %d cut off at the deadline: %v", spec.Condition.Description, attempt, err)
			ok, err = false, nil
		}
		if err != nil {
			if !IsTransient(err) {
				return false, err
			}
			logger.Debug("wait %q attempt %d: %v", spec.Condition.Description, attempt, err)
		} else if ok {
			return true, nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			elapsed := time.Since(start)
			if spec.OnTimeout == ReturnFalse {
				return false, nil
			}
			return false, core.WaitTimeoutError(spec.Condition.Description, elapsed)
		}

		sleep := interval
		if sleep > remaining {
			sleep = remaining
		}
		if timer == nil {
			timer = time.NewTimer(sleep)
		} else {
			timer.Reset(sleep)
		}

		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-timer.C:
		}
	}
}

// IsTransient reports whether err means "not yet": a missing, stale or
// non-interactable element, or no open alert or frame.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, core.ErrSessionTerminated) {
		return false
	}
	return webdriver.IsTransient(err) || errors.Is(err, core.ErrElementNotFound)
}
