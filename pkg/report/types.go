// Package report records what a test run did.
//
// Tests log outcomes through a Recorder: Record(label, message, severity).
// Sinks keep entries in memory, print them to a console, or append them as
// JSON lines to a run file. The IndexWriter keeps a small report.json with
// per-instance status for the whole run.
package report

import (
	"fmt"
	"strings"
	"time"
)

// Version is the report schema version.
const Version = "1.0.0"

// Severity classifies a recorded entry.
type Severity int

// Severity values.
const (
	Done Severity = iota
	Pass
	Fail
	Warning
	Info
	Screenshot
)

var severityNames = [...]string{"DONE", "PASS", "FAIL", "WARNING", "INFO", "SCREENSHOT"}

func (s Severity) String() string {
	if s < 0 || int(s) >= len(severityNames) {
		return fmt.Sprintf("Severity(%d)", int(s))
	}
	return severityNames[s]
}

// MarshalText implements encoding.TextMarshaler.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Severity) UnmarshalText(b []byte) error {
	v, err := ParseSeverity(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ParseSeverity parses a severity name, case-insensitively.
func ParseSeverity(name string) (Severity, error) {
	for i, n := range severityNames {
		if strings.EqualFold(n, name) {
			return Severity(i), nil
		}
	}
	return 0, fmt.Errorf("unknown severity %q", name)
}

// Entry is one recorded line.
type Entry struct {
	RunID    string    `json:"runId,omitempty"`
	Time     time.Time `json:"time"`
	Instance string    `json:"instance,omitempty"`
	Label    string    `json:"label"`
	Message  string    `json:"message"`
	Severity Severity  `json:"severity"`
}

// Status represents the execution status of an instance or run.
type Status string

// Status values.
const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusErrored Status = "errored"
	StatusSkipped Status = "skipped"
)

// IsTerminal returns true if the status is a final state.
func (s Status) IsTerminal() bool {
	return s == StatusPassed || s == StatusFailed || s == StatusErrored || s == StatusSkipped
}

// Index is the report.json file for a run.
type Index struct {
	Version     string          `json:"version"`
	RunID       string          `json:"runId"`
	UpdateSeq   uint64          `json:"updateSeq"`
	Status      Status          `json:"status"`
	StartTime   time.Time       `json:"startTime"`
	EndTime     *time.Time      `json:"endTime,omitempty"`
	LastUpdated time.Time       `json:"lastUpdated"`
	Summary     Summary         `json:"summary"`
	Instances   []InstanceEntry `json:"instances"`
}

// Summary contains aggregated counts.
type Summary struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Errored int `json:"errored"`
	Skipped int `json:"skipped"`
	Running int `json:"running"`
	Pending int `json:"pending"`
}

// InstanceEntry is the index entry for one configured instance.
type InstanceEntry struct {
	Name      string     `json:"name"` // scenario/testCase/instance
	Platform  string     `json:"platform"`
	Target    string     `json:"target,omitempty"`
	SessionID string     `json:"sessionId,omitempty"`
	Status    Status     `json:"status"`
	StartTime *time.Time `json:"startTime,omitempty"`
	EndTime   *time.Time `json:"endTime,omitempty"`
	Duration  *int64     `json:"duration,omitempty"` // milliseconds
	Error     *string    `json:"error,omitempty"`
}

// InstanceUpdate contains the fields to update for an instance.
type InstanceUpdate struct {
	Status    Status
	SessionID string
	StartTime *time.Time
	EndTime   *time.Time
	Error     error
}
