package session

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff"

	"github.com/devicelab-dev/uiharness/pkg/capabilities"
	"github.com/devicelab-dev/uiharness/pkg/core"
	"github.com/devicelab-dev/uiharness/pkg/logger"
)

// RetryPolicy bounds OpenWithRetry.
type RetryPolicy struct {
	MaxAttempts     int // total attempts including the first; <1 means 1
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryPolicy suits a grid or Appium server that is still starting up.
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts:     3,
	InitialInterval: time.Second,
	MaxInterval:     10 * time.Second,
}

// OpenWithRetry opens a session, retrying only session-creation failures with
// exponential backoff. Configuration and unsupported-target errors are
// returned after the first attempt.
func OpenWithRetry(ctx context.Context, o Opener, t Target, caps capabilities.Set, p RetryPolicy) (*Session, error) {
	attempts := p.MaxAttempts
	if attempts <= 1 {
		// WithMaxRetries(b, 0) means unlimited in backoff v2.
		return o.Open(ctx, t, caps)
	}

	eb := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		eb.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		eb.MaxInterval = p.MaxInterval
	}
	eb.MaxElapsedTime = 0
	b := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(attempts-1)), ctx)

	var sess *Session
	attempt := 0
	op := func() error {
		attempt++
		s, err := o.Open(ctx, t, caps)
		if err == nil {
			sess = s
			return nil
		}
		if !errors.Is(err, core.ErrSessionCreation) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, next time.Duration) {
		logger.Warn("open %s attempt %d/%d failed: %v (retrying in %v)", t, attempt, attempts, err, next)
	}

	if err := backoff.RetryNotify(op, b, notify); err != nil {
		return nil, err
	}
	return sess, nil
}
