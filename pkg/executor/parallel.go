package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/devicelab-dev/uiharness/pkg/config"
	"github.com/devicelab-dev/uiharness/pkg/logger"
	"github.com/devicelab-dev/uiharness/pkg/report"
	"github.com/devicelab-dev/uiharness/pkg/session"
)

// ParallelRunner runs a test body against several configurations at once.
// Each instance gets its own session; one instance failing does not stop
// the others.
type ParallelRunner struct {
	config RunnerConfig
}

// NewParallelRunner creates a runner.
func NewParallelRunner(config RunnerConfig) *ParallelRunner {
	if config.Opener == nil {
		config.Opener = &session.Factory{}
	}
	return &ParallelRunner{config: config}
}

// RunParallel is shorthand for NewParallelRunner(rc).Run.
func RunParallel(ctx context.Context, rc RunnerConfig, cfgs []config.ExecutionConfiguration, test TestFunc) (*RunResult, error) {
	return NewParallelRunner(rc).Run(ctx, cfgs, test)
}

// Run executes test once per configuration and collects per-instance results
// in input order. It returns an error only when the run cannot start.
func (pr *ParallelRunner) Run(ctx context.Context, cfgs []config.ExecutionConfiguration, test TestFunc) (*RunResult, error) {
	if len(cfgs) == 0 {
		return nil, fmt.Errorf("no configurations to run")
	}

	seen := make(map[string]bool, len(cfgs))
	entries := make([]report.InstanceEntry, 0, len(cfgs))
	for _, c := range cfgs {
		if seen[c.Name()] {
			return nil, fmt.Errorf("duplicate instance %q", c.Name())
		}
		seen[c.Name()] = true
		entries = append(entries, report.InstanceEntry{
			Name:     c.Name(),
			Platform: c.Platform().String(),
			Target:   session.TargetFor(c).String(),
		})
	}

	runID := uuid.NewString()
	sinks := report.Multi{}
	if pr.config.Recorder != nil {
		sinks = append(sinks, pr.config.Recorder)
	}

	var index *report.IndexWriter
	if pr.config.OutputDir != "" {
		file, err := report.NewFileWithRunID(pr.config.OutputDir, runID)
		if err != nil {
			return nil, err
		}
		defer file.Close()
		sinks = append(sinks, file)

		index = report.NewIndexWriter(pr.config.OutputDir, runID, entries)
		if err := index.Start(); err != nil {
			return nil, err
		}
	}

	logger.Info("run %s: %d instances", runID, len(cfgs))
	startTime := time.Now()
	results := make([]InstanceResult, len(cfgs))

	var g errgroup.Group
	if pr.config.Parallelism > 0 {
		g.SetLimit(pr.config.Parallelism)
	}
	for i := range cfgs {
		i := i
		g.Go(func() error {
			results[i] = pr.runInstance(ctx, cfgs[i], test, report.Scope(sinks, cfgs[i].Name()), index)
			return nil
		})
	}
	_ = g.Wait()

	if index != nil {
		_ = index.End()
	}

	result := buildRunResult(runID, results, time.Since(startTime))
	logger.Info("run %s finished: %s (%d passed, %d failed, %d errored)",
		runID, result.Status, result.Passed, result.Failed, result.Errored)
	return result, nil
}

func (pr *ParallelRunner) runInstance(ctx context.Context, cfg config.ExecutionConfiguration, test TestFunc, rec report.Recorder, index *report.IndexWriter) (res InstanceResult) {
	name := cfg.Name()
	start := time.Now()
	res = InstanceResult{Name: name, Config: cfg}

	update := func(u report.InstanceUpdate) {
		if index == nil {
			return
		}
		if err := index.UpdateInstance(name, u); err != nil {
			logger.Warn("report update for %s failed: %v", name, err)
		}
	}
	update(report.InstanceUpdate{Status: report.StatusRunning, StartTime: &start})

	defer func() {
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("panic in %s: %v", name, r)
			res.Status = report.StatusFailed
		}
		end := time.Now()
		res.Duration = end.Sub(start).Milliseconds()
		if res.Err != nil {
			rec.Record(name, res.Err.Error(), report.Fail)
		} else {
			rec.Record(name, "completed", report.Pass)
		}
		update(report.InstanceUpdate{Status: res.Status, SessionID: res.SessionID, EndTime: &end, Error: res.Err})
	}()

	sess, err := Provision(ctx, pr.config.Opener, cfg, pr.config.Retry)
	if err != nil {
		res.Err = err
		res.Status = statusFor(err)
		return res
	}
	res.SessionID = sess.ID()
	defer func() {
		if err := sess.Release(context.Background()); err != nil {
			logger.Warn("release %s for %s: %v", res.SessionID, name, err)
		}
	}()

	res.Err = test(ctx, sess, rec)
	res.Status = statusFor(res.Err)
	return res
}
