package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/devicelab-dev/uiharness/pkg/logger"
)

// Recorder receives test outcomes.
type Recorder interface {
	Record(label, message string, sev Severity)
}

// entryWriter is implemented by sinks that keep the instance name.
type entryWriter interface {
	writeEntry(e Entry)
}

// Nop discards everything.
type Nop struct{}

// Record implements Recorder.
func (Nop) Record(string, string, Severity) {}

// Scope returns a Recorder that attributes entries to instance.
func Scope(r Recorder, instance string) Recorder {
	if r == nil {
		r = Nop{}
	}
	return &scoped{instance: instance, next: r}
}

type scoped struct {
	instance string
	next     Recorder
}

func (s *scoped) Record(label, message string, sev Severity) {
	s.writeEntry(Entry{Time: time.Now(), Label: label, Message: message, Severity: sev})
}

func (s *scoped) writeEntry(e Entry) {
	if e.Instance == "" {
		e.Instance = s.instance
	}
	if w, ok := s.next.(entryWriter); ok {
		w.writeEntry(e)
		return
	}
	s.next.Record("["+e.Instance+"] "+e.Label, e.Message, e.Severity)
}

// Memory keeps entries in memory. Safe for concurrent use.
type Memory struct {
	mu      sync.Mutex
	entries []Entry
}

// NewMemory creates an empty in-memory sink.
func NewMemory() *Memory {
	return &Memory{}
}

// Record implements Recorder.
func (m *Memory) Record(label, message string, sev Severity) {
	m.writeEntry(Entry{Time: time.Now(), Label: label, Message: message, Severity: sev})
}

func (m *Memory) writeEntry(e Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
}

// Entries returns a copy of the recorded entries.
func (m *Memory) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Entry(nil), m.entries...)
}

// Count returns how many entries have the given severity.
func (m *Memory) Count(sev Severity) int {
	n := 0
	for _, e := range m.Entries() {
		if e.Severity == sev {
			n++
		}
	}
	return n
}

// Console prints entries as they arrive.
type Console struct {
	mu sync.Mutex
	w  io.Writer
}

// NewConsole writes to w.
func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

// Record implements Recorder.
func (c *Console) Record(label, message string, sev Severity) {
	c.writeEntry(Entry{Label: label, Message: message, Severity: sev})
}

func (c *Console) writeEntry(e Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	prefix := ""
	if e.Instance != "" {
		prefix = e.Instance + " "
	}
	fmt.Fprintf(c.w, "%-10s %s%s: %s\n", "["+e.Severity.String()+"]", prefix, e.Label, e.Message)
}

// File appends entries as JSON lines, stamped with a run id.
type File struct {
	mu    sync.Mutex
	runID string
	path  string
	f     *os.File
	enc   *json.Encoder
	err   error
}

// NewFile creates <dir>/<runID>.jsonl with a fresh run id.
func NewFile(dir string) (*File, error) {
	return NewFileWithRunID(dir, uuid.NewString())
}

// NewFileWithRunID creates <dir>/<runID>.jsonl.
func NewFileWithRunID(dir, runID string) (*File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	path := filepath.Join(dir, runID+".jsonl")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &File{runID: runID, path: path, f: f, enc: json.NewEncoder(f)}, nil
}

// RunID returns the id stamped on every entry.
func (f *File) RunID() string { return f.runID }

// Path returns the JSON-lines file location.
func (f *File) Path() string { return f.path }

// Record implements Recorder.
func (f *File) Record(label, message string, sev Severity) {
	f.writeEntry(Entry{Time: time.Now(), Label: label, Message: message, Severity: sev})
}

func (f *File) writeEntry(e Entry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.f == nil {
		return
	}
	e.RunID = f.runID
	if err := f.enc.Encode(e); err != nil {
		logger.Warn("report entry %q not written to %s: %v", e.Label, f.path, err)
		if f.err == nil {
			f.err = err
		}
	}
}

// Err returns the first write failure, if any.
func (f *File) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// Close closes the file. Later entries are dropped.
func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.f == nil {
		return nil
	}
	err := f.f.Close()
	f.f = nil
	return err
}

// ReadFile loads the entries of a JSON-lines run file.
func ReadFile(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []Entry
	dec := json.NewDecoder(f)
	for dec.More() {
		var e Entry
		if err := dec.Decode(&e); err != nil {
			return out, err
		}
		out = append(out, e)
	}
	return out, nil
}

// Multi fans entries out to several recorders.
type Multi []Recorder

// Record implements Recorder.
func (m Multi) Record(label, message string, sev Severity) {
	m.writeEntry(Entry{Time: time.Now(), Label: label, Message: message, Severity: sev})
}

func (m Multi) writeEntry(e Entry) {
	for _, r := range m {
		if w, ok := r.(entryWriter); ok {
			w.writeEntry(e)
			continue
		}
		r.Record(e.Label, e.Message, e.Severity)
	}
}
