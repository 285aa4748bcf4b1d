package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/devicelab-dev/uiharness/pkg/logger"
)

// IndexWriter provides thread-safe updates to the report index.
// Instance goroutines can update it concurrently.
type IndexWriter struct {
	mu    sync.Mutex
	path  string
	index *Index
}

// NewIndexWriter creates an index for the named instances under outputDir.
func NewIndexWriter(outputDir, runID string, instances []InstanceEntry) *IndexWriter {
	entries := make([]InstanceEntry, len(instances))
	copy(entries, instances)
	for i := range entries {
		if entries[i].Status == "" {
			entries[i].Status = StatusPending
		}
	}

	return &IndexWriter{
		path: filepath.Join(outputDir, "report.json"),
		index: &Index{
			Version:   Version,
			RunID:     runID,
			Status:    StatusPending,
			Instances: entries,
		},
	}
}

// Path returns the report.json location.
func (w *IndexWriter) Path() string {
	return w.path
}

// Start marks the run as started.
func (w *IndexWriter) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.index.Status = StatusRunning
	w.index.StartTime = time.Now()
	return w.flushLocked()
}

// UpdateInstance applies update to the named instance and flushes.
func (w *IndexWriter) UpdateInstance(name string, update InstanceUpdate) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	found := false
	for i := range w.index.Instances {
		if w.index.Instances[i].Name != name {
			continue
		}
		found = true
		e := &w.index.Instances[i]
		e.Status = update.Status
		if update.SessionID != "" {
			e.SessionID = update.SessionID
		}
		if update.StartTime != nil {
			e.StartTime = update.StartTime
		}
		if update.EndTime != nil {
			e.EndTime = update.EndTime
		}
		if e.StartTime != nil && e.EndTime != nil {
			d := e.EndTime.Sub(*e.StartTime).Milliseconds()
			e.Duration = &d
		}
		if update.Error != nil {
			msg := update.Error.Error()
			e.Error = &msg
		}
		break
	}
	if !found {
		return fmt.Errorf("unknown instance %q", name)
	}
	return w.flushLocked()
}

// End marks the run as complete.
func (w *IndexWriter) End() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := time.Now()
	w.index.EndTime = &now
	w.index.Status = w.computeRunStatus()
	return w.flushLocked()
}

// Snapshot returns a copy of the current index.
func (w *IndexWriter) Snapshot() Index {
	w.mu.Lock()
	defer w.mu.Unlock()

	idx := *w.index
	idx.Instances = append([]InstanceEntry(nil), w.index.Instances...)
	return idx
}

// flushLocked writes the index while holding the lock.
func (w *IndexWriter) flushLocked() error {
	w.index.UpdateSeq++
	w.index.LastUpdated = time.Now()
	w.index.Summary = w.computeSummary()

	if err := atomicWriteJSON(w.path, w.index); err != nil {
		logger.Warn("failed to write %s: %v", w.path, err)
		return err
	}
	return nil
}

// computeSummary calculates summary from instance statuses.
func (w *IndexWriter) computeSummary() Summary {
	var s Summary
	for _, e := range w.index.Instances {
		s.Total++
		switch e.Status {
		case StatusPassed:
			s.Passed++
		case StatusFailed:
			s.Failed++
		case StatusErrored:
			s.Errored++
		case StatusSkipped:
			s.Skipped++
		case StatusRunning:
			s.Running++
		case StatusPending:
			s.Pending++
		}
	}
	return s
}

// computeRunStatus determines overall run status from instances.
func (w *IndexWriter) computeRunStatus() Status {
	hasFailure := false
	allComplete := true

	for _, e := range w.index.Instances {
		if e.Status == StatusFailed || e.Status == StatusErrored {
			hasFailure = true
		}
		if !e.Status.IsTerminal() {
			allComplete = false
		}
	}

	if !allComplete {
		return StatusRunning
	}
	if hasFailure {
		return StatusFailed
	}
	return StatusPassed
}

// atomicWriteJSON writes v to path through a temp file and rename.
func atomicWriteJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
