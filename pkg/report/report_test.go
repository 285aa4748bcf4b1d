package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/devicelab-dev/uiharness/pkg/logger"
)

func TestSeverity_String(t *testing.T) {
	tests := []struct {
		sev  Severity
		want string
	}{
		{Done, "DONE"},
		{Pass, "PASS"},
		{Fail, "FAIL"},
		{Warning, "WARNING"},
		{Info, "INFO"},
		{Screenshot, "SCREENSHOT"},
		{Severity(42), "Severity(42)"},
	}
	for _, tt := range tests {
		if got := tt.sev.String(); got != tt.want {
			t.Errorf("Severity(%d).String() = %q, want %q", int(tt.sev), got, tt.want)
		}
	}
}

func TestParseSeverity(t *testing.T) {
	sev, err := ParseSeverity("warning")
	if err != nil || sev != Warning {
		t.Errorf("ParseSeverity(warning) = %v, %v", sev, err)
	}
	if _, err := ParseSeverity("LOUD"); err == nil {
		t.Error("Expected error for unknown severity")
	}
}

func TestMemory_Record(t *testing.T) {
	m := NewMemory()
	m.Record("Login", "user signed in", Pass)
	m.Record("Links", "https://x.test/404 BROKEN", Warning)
	m.Record("Links", "https://x.test/ OK", Done)

	entries := m.Entries()
	if len(entries) != 3 {
		t.Fatalf("Expected 3 entries, got %d", len(entries))
	}
	if entries[0].Label != "Login" || entries[0].Severity != Pass {
		t.Errorf("Unexpected first entry %+v", entries[0])
	}
	if m.Count(Warning) != 1 || m.Count(Fail) != 0 {
		t.Errorf("Unexpected counts: warning=%d fail=%d", m.Count(Warning), m.Count(Fail))
	}
}

func TestScope_AttributesInstance(t *testing.T) {
	m := NewMemory()
	r := Scope(m, "Login/TC01/Instance2")
	r.Record("Wait", "page ready", Done)

	e := m.Entries()[0]
	if e.Instance != "Login/TC01/Instance2" {
		t.Errorf("Instance = %q", e.Instance)
	}
}

// plainRecorder only implements Record.
type plainRecorder struct{ labels []string }

func (p *plainRecorder) Record(label, message string, sev Severity) {
	p.labels = append(p.labels, label)
}

func TestScope_PlainRecorderGetsPrefixedLabel(t *testing.T) {
	p := &plainRecorder{}
	Scope(p, "I1").Record("Wait", "ok", Done)
	if len(p.labels) != 1 || p.labels[0] != "[I1] Wait" {
		t.Errorf("labels = %v", p.labels)
	}

	// A nil recorder must not panic
	Scope(nil, "I1").Record("x", "y", Info)
}

func TestConsole_Record(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf)
	c.Record("Checkout", "order placed", Pass)
	Scope(c, "I2").Record("Checkout", "timed out", Fail)

	out := buf.String()
	if !strings.Contains(out, "[PASS]") || !strings.Contains(out, "Checkout: order placed") {
		t.Errorf("Unexpected output %q", out)
	}
	if !strings.Contains(out, "[FAIL]") || !strings.Contains(out, "I2 Checkout: timed out") {
		t.Errorf("Expected scoped line, got %q", out)
	}
}

func TestFile_WritesJSONLines(t *testing.T) {
	dir := t.TempDir()
	f, err := NewFile(dir)
	if err != nil {
		t.Fatalf("NewFile failed: %v", err)
	}
	if f.RunID() == "" {
		t.Fatal("Expected a run id")
	}

	f.Record("Links", "OK", Done)
	Scope(f, "I1").Record("Links", "BROKEN", Warning)
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	f.Record("late", "dropped", Info)

	if filepath.Base(f.Path()) != f.RunID()+".jsonl" {
		t.Errorf("Unexpected path %s", f.Path())
	}

	entries, err := ReadFile(f.Path())
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}
	for _, e := range entries {
		if e.RunID != f.RunID() {
			t.Errorf("Entry run id %q, want %q", e.RunID, f.RunID())
		}
	}
	if entries[1].Severity != Warning || entries[1].Instance != "I1" {
		t.Errorf("Unexpected second entry %+v", entries[1])
	}

	raw, _ := os.ReadFile(f.Path())
	if !strings.Contains(string(raw), `"severity":"WARNING"`) {
		t.Errorf("Expected severity names in file, got %s", raw)
	}
}

func TestFile_WriteFailureIsLogged(t *testing.T) {
	var logs bytes.Buffer
	logger.EnableVerbose(&logs)
	defer logger.Close()

	f, err := NewFileWithRunID(t.TempDir(), "run-broken")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	// Closing the handle underneath the sink makes every write fail.
	if err := f.f.Close(); err != nil {
		t.Fatal(err)
	}
	f.Record("Broken Links", "https://shop.test/x - 404 - BROKEN", Warning)

	if f.Err() == nil {
		t.Error("Expected the write failure to be kept")
	}
	if !strings.Contains(logs.String(), "Broken Links") {
		t.Errorf("Expected a warning naming the entry, got:\n%s", logs.String())
	}
}

func TestFile_DistinctRunIDs(t *testing.T) {
	dir := t.TempDir()
	a, err := NewFile(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()
	b, err := NewFile(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	if a.RunID() == b.RunID() {
		t.Error("Expected distinct run ids")
	}
}

func TestMulti_FansOut(t *testing.T) {
	m1, m2 := NewMemory(), NewMemory()
	p := &plainRecorder{}
	Scope(Multi{m1, m2, p}, "I3").Record("Step", "done", Done)

	if len(m1.Entries()) != 1 || len(m2.Entries()) != 1 || len(p.labels) != 1 {
		t.Fatalf("Expected every sink to receive the entry")
	}
	if m2.Entries()[0].Instance != "I3" {
		t.Errorf("Instance lost through Multi: %+v", m2.Entries()[0])
	}
}

func TestNop(t *testing.T) {
	var r Recorder = Nop{}
	r.Record("a", "b", Fail)
}

func TestIndexWriter_Lifecycle(t *testing.T) {
	dir := t.TempDir()
	w := NewIndexWriter(dir, "run-1", []InstanceEntry{
		{Name: "Login/TC01/Instance1", Platform: "DESKTOP"},
		{Name: "Login/TC01/Instance2", Platform: "DESKTOP"},
	})

	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	start := time.Now()
	end := start.Add(1500 * time.Millisecond)
	if err := w.UpdateInstance("Login/TC01/Instance1", InstanceUpdate{Status: StatusPassed, SessionID: "s1", StartTime: &start, EndTime: &end}); err != nil {
		t.Fatal(err)
	}

	snap := w.Snapshot()
	if snap.Status != StatusRunning || snap.Summary.Passed != 1 || snap.Summary.Pending != 1 {
		t.Errorf("Unexpected mid-run snapshot %+v", snap)
	}
	if d := snap.Instances[0].Duration; d == nil || *d != 1500 {
		t.Errorf("Expected 1500ms duration, got %v", d)
	}

	if err := w.UpdateInstance("Login/TC01/Instance2", InstanceUpdate{Status: StatusErrored, Error: errors.New("could not create DESKTOP session")}); err != nil {
		t.Fatal(err)
	}
	if err := w.End(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "report.json"))
	if err != nil {
		t.Fatalf("report.json missing: %v", err)
	}
	var idx Index
	if err := json.Unmarshal(data, &idx); err != nil {
		t.Fatal(err)
	}
	if idx.Status != StatusFailed || idx.RunID != "run-1" || idx.EndTime == nil {
		t.Errorf("Unexpected final index %+v", idx)
	}
	if idx.Summary.Errored != 1 || idx.Summary.Total != 2 {
		t.Errorf("Unexpected summary %+v", idx.Summary)
	}
	if idx.Instances[1].Error == nil || *idx.Instances[1].Error != "could not create DESKTOP session" {
		t.Errorf("Expected error message on instance, got %v", idx.Instances[1].Error)
	}
}

func TestIndexWriter_UnknownInstance(t *testing.T) {
	w := NewIndexWriter(t.TempDir(), "run-2", nil)
	if err := w.UpdateInstance("nope", InstanceUpdate{Status: StatusPassed}); err == nil {
		t.Error("Expected error for unknown instance")
	}
}

func TestIndexWriter_AllPassed(t *testing.T) {
	w := NewIndexWriter(t.TempDir(), "run-3", []InstanceEntry{{Name: "a"}})
	_ = w.Start()
	_ = w.UpdateInstance("a", InstanceUpdate{Status: StatusPassed})
	_ = w.End()
	if s := w.Snapshot().Status; s != StatusPassed {
		t.Errorf("Status = %s, want passed", s)
	}
}
