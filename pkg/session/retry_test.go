package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/devicelab-dev/uiharness/pkg/capabilities"
	"github.com/devicelab-dev/uiharness/pkg/config"
	"github.com/devicelab-dev/uiharness/pkg/core"
)

// scriptedOpener fails with the queued errors, then succeeds.
type scriptedOpener struct {
	errs  []error
	calls int
}

func (o *scriptedOpener) Open(ctx context.Context, t Target, caps capabilities.Set) (*Session, error) {
	o.calls++
	if len(o.errs) > 0 {
		err := o.errs[0]
		o.errs = o.errs[1:]
		return nil, err
	}
	return &Session{platform: t.Platform}, nil
}

var fastPolicy = RetryPolicy{MaxAttempts: 3, InitialInterval: time.Millisecond, MaxInterval: 5 * time.Millisecond}

func TestOpenWithRetry_RecoversFromSessionErrors(t *testing.T) {
	refused := core.SessionError("DESKTOP", errors.New("connection refused"))
	o := &scriptedOpener{errs: []error{refused, refused}}

	sess, err := OpenWithRetry(context.Background(), o, Target{Platform: config.PlatformDesktop}, nil, fastPolicy)
	if err != nil {
		t.Fatalf("OpenWithRetry failed: %v", err)
	}
	if sess == nil || o.calls != 3 {
		t.Errorf("Expected success on third attempt, calls=%d", o.calls)
	}
}

func TestOpenWithRetry_GivesUp(t *testing.T) {
	refused := core.SessionError("DESKTOP", errors.New("connection refused"))
	o := &scriptedOpener{errs: []error{refused, refused, refused, refused}}

	_, err := OpenWithRetry(context.Background(), o, Target{}, nil, fastPolicy)
	if !errors.Is(err, core.ErrSessionCreation) {
		t.Fatalf("Expected ErrSessionCreation, got %v", err)
	}
	if o.calls != 3 {
		t.Errorf("Expected 3 attempts, got %d", o.calls)
	}
}

func TestOpenWithRetry_DoesNotRetryConfigErrors(t *testing.T) {
	o := &scriptedOpener{errs: []error{core.ConfigError("bad endpoint")}}

	_, err := OpenWithRetry(context.Background(), o, Target{}, nil, fastPolicy)
	if !errors.Is(err, core.ErrInvalidConfig) {
		t.Fatalf("Expected ErrInvalidConfig, got %v", err)
	}
	if o.calls != 1 {
		t.Errorf("Expected a single attempt, got %d", o.calls)
	}
}

func TestOpenWithRetry_SingleAttemptPolicy(t *testing.T) {
	refused := core.SessionError("DESKTOP", errors.New("connection refused"))
	o := &scriptedOpener{errs: []error{refused}}

	_, err := OpenWithRetry(context.Background(), o, Target{}, nil, RetryPolicy{})
	if !errors.Is(err, core.ErrSessionCreation) || o.calls != 1 {
		t.Errorf("Expected one failed attempt, got calls=%d err=%v", o.calls, err)
	}
}

// refusingOpener never succeeds.
type refusingOpener struct {
	calls int
}

func (o *refusingOpener) Open(ctx context.Context, t Target, caps capabilities.Set) (*Session, error) {
	o.calls++
	return nil, core.SessionError("DESKTOP", errors.New("connection refused"))
}

func TestOpenWithRetry_SingleAttemptNeverRetries(t *testing.T) {
	policies := map[string]RetryPolicy{
		"zero":        {},
		"one attempt": {MaxAttempts: 1, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond},
		"negative":    {MaxAttempts: -2},
	}
	for name, p := range policies {
		t.Run(name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()

			o := &refusingOpener{}
			start := time.Now()
			_, err := OpenWithRetry(ctx, o, Target{}, nil, p)
			if !errors.Is(err, core.ErrSessionCreation) {
				t.Fatalf("Expected ErrSessionCreation, got %v", err)
			}
			if o.calls != 1 {
				t.Errorf("Expected exactly one attempt, got %d", o.calls)
			}
			if elapsed := time.Since(start); elapsed > time.Second {
				t.Errorf("Single attempt took %v", elapsed)
			}
		})
	}
}

func TestOpenWithRetry_StopsOnCancel(t *testing.T) {
	refused := core.SessionError("DESKTOP", errors.New("connection refused"))
	o := &scriptedOpener{errs: []error{refused, refused, refused, refused, refused}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	policy := RetryPolicy{MaxAttempts: 5, InitialInterval: time.Second, MaxInterval: time.Second}
	start := time.Now()
	_, err := OpenWithRetry(ctx, o, Target{}, nil, policy)
	if err == nil {
		t.Fatal("Expected error")
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Errorf("Cancelled retry should return promptly, took %v", time.Since(start))
	}
}
