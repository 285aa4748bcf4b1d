package wait

import (
	"context"
	"time"

	"github.com/devicelab-dev/uiharness/pkg/logger"
	"github.com/devicelab-dev/uiharness/pkg/report"
	"github.com/devicelab-dev/uiharness/pkg/session"
)

// DefaultTimeout is the Waiter timeout when none is given.
const DefaultTimeout = 30 * time.Second

// Waiter runs waits against one session and records timeouts.
type Waiter struct {
	Session      *session.Session
	Timeout      time.Duration
	PollInterval time.Duration
	Recorder     report.Recorder
}

// NewWaiter returns a Waiter with the default timeout and poll interval.
func NewWaiter(s *session.Session, r report.Recorder) *Waiter {
	return &Waiter{Session: s, Timeout: DefaultTimeout, Recorder: r}
}

func (w *Waiter) spec(c Condition, policy TimeoutPolicy) Spec {
	timeout := w.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return Spec{Condition: c, Timeout: timeout, PollInterval: w.PollInterval, OnTimeout: policy}
}

func (w *Waiter) record(label, message string, sev report.Severity) {
	if w.Recorder != nil {
		w.Recorder.Record(label, message, sev)
	}
}

// Until waits for c and fails with core.ErrWaitTimeout if it never holds.
func (w *Waiter) Until(ctx context.Context, c Condition) error {
	_, err := Await(ctx, w.Session, w.spec(c, Fail))
	if err != nil {
		w.record("Wait", err.Error(), report.Fail)
	}
	return err
}

// Holds waits for c and reports whether it held before the timeout.
func (w *Waiter) Holds(ctx context.Context, c Condition) (bool, error) {
	return Await(ctx, w.Session, w.spec(c, ReturnFalse))
}

// UntilClickable waits for a visible, enabled element and returns it.
func (w *Waiter) UntilClickable(ctx context.Context, by session.By) (*session.Element, error) {
	if err := w.Until(ctx, ElementClickable(by)); err != nil {
		return nil, err
	}
	return w.Session.FindElement(ctx, by)
}

// UntilVisible waits for a displayed element and returns it.
func (w *Waiter) UntilVisible(ctx context.Context, by session.By) (*session.Element, error) {
	if err := w.Until(ctx, ElementVisible(by)); err != nil {
		return nil, err
	}
	return w.Session.FindElement(ctx, by)
}

// UntilInvisible waits for every element matching by to disappear.
func (w *Waiter) UntilInvisible(ctx context.Context, by session.By) error {
	return w.Until(ctx, ElementInvisible(by))
}

// UntilPageReady waits for document.readyState to be "complete".
func (w *Waiter) UntilPageReady(ctx context.Context) error {
	return w.Until(ctx, PageReadyStateComplete())
}

// UntilPageLoaded runs action and waits for it to replace the current
// document: the old <html> element must go stale and the new document must
// finish loading.
func (w *Waiter) UntilPageLoaded(ctx context.Context, action func(context.Context) error) error {
	old, err := w.Session.FindElement(ctx, session.ByTagName("html"))
	if err != nil {
		return err
	}
	if err := action(ctx); err != nil {
		return err
	}
	if err := w.Until(ctx, StalenessOf(old)); err != nil {
		return err
	}
	return w.UntilPageReady(ctx)
}

// Pause sleeps for d unless ctx ends first. Prefer a condition wait.
func (w *Waiter) Pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	logger.Debug("pausing %s", d)
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// UntilAlert waits for a user prompt and returns its text.
func (w *Waiter) UntilAlert(ctx context.Context) (string, error) {
	if err := w.Until(ctx, AlertPresent()); err != nil {
		return "", err
	}
	return w.Session.AlertText(ctx)
}

// Exists reports whether an element matching by appears before the timeout.
func (w *Waiter) Exists(ctx context.Context, by session.By) (bool, error) {
	return w.Holds(ctx, ElementPresent(by))
}
