// Package executor provisions sessions for execution configurations and runs
// test bodies against them, one goroutine per instance.
package executor

import (
	"context"
	"errors"
	"time"

	"github.com/devicelab-dev/uiharness/pkg/capabilities"
	"github.com/devicelab-dev/uiharness/pkg/config"
	"github.com/devicelab-dev/uiharness/pkg/core"
	"github.com/devicelab-dev/uiharness/pkg/logger"
	"github.com/devicelab-dev/uiharness/pkg/report"
	"github.com/devicelab-dev/uiharness/pkg/session"
)

// TestFunc is the body run against one provisioned session.
type TestFunc func(ctx context.Context, sess *session.Session, rec report.Recorder) error

// RunnerConfig configures the runner.
type RunnerConfig struct {
	Opener      session.Opener      // defaults to a session.Factory
	Retry       session.RetryPolicy // zero value opens once
	Parallelism int                 // max concurrent instances (0 = all at once)
	OutputDir   string              // report.json and run log; "" writes nothing
	Recorder    report.Recorder     // additional sink, e.g. a console
}

// RunResult contains the outcome of a run.
type RunResult struct {
	RunID          string
	Status         report.Status
	TotalInstances int
	Passed         int
	Failed         int
	Errored        int
	Duration       int64 // wall clock milliseconds
	Results        []InstanceResult
}

// InstanceResult contains the outcome of one instance.
type InstanceResult struct {
	Name      string
	Config    config.ExecutionConfiguration
	Status    report.Status
	SessionID string
	Duration  int64 // milliseconds
	Err       error
}

// Provision builds the capability set for cfg and opens a session with o.
// Configuration problems are reported before o is called.
func Provision(ctx context.Context, o session.Opener, cfg config.ExecutionConfiguration, policy session.RetryPolicy) (*session.Session, error) {
	caps, err := capabilities.Build(cfg)
	if err != nil {
		return nil, err
	}
	logger.WithFields(map[string]interface{}{
		"instance": cfg.Name(),
		"platform": cfg.Platform().String(),
	}).Debug("capabilities: " + caps.Describe())

	return session.OpenWithRetry(ctx, o, session.TargetFor(cfg), caps, policy)
}

// statusFor maps a test error to an instance status. Setup failures (bad
// configuration, unsupported target, unreachable endpoint) are errored; any
// other error is a failure.
func statusFor(err error) report.Status {
	if err == nil {
		return report.StatusPassed
	}
	var execErr *core.ExecutionError
	if errors.As(err, &execErr) && execErr.Category.IsSetup() {
		return report.StatusErrored
	}
	return report.StatusFailed
}

func buildRunResult(runID string, results []InstanceResult, wallClock time.Duration) *RunResult {
	r := &RunResult{
		RunID:          runID,
		TotalInstances: len(results),
		Duration:       wallClock.Milliseconds(),
		Results:        results,
	}
	for _, ir := range results {
		switch ir.Status {
		case report.StatusPassed:
			r.Passed++
		case report.StatusFailed:
			r.Failed++
		case report.StatusErrored:
			r.Errored++
		}
	}

	if r.Failed > 0 || r.Errored > 0 {
		r.Status = report.StatusFailed
	} else {
		r.Status = report.StatusPassed
	}
	return r
}

// Success reports whether every instance passed.
func (r *RunResult) Success() bool {
	return r.Status == report.StatusPassed
}
