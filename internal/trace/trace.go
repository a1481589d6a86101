// Package trace builds the canonical JSON execution trace emitted by
// `loom run --trace`, mirroring the shape of the teacher's
// trace.ExecutionTrace/CanonicalJSON pair consumed by its traceFileWriter:
// one JSON object per run, with events sorted by script so their order does
// not depend on the executor's launch order. Each event's duration_ms is
// measured wall-clock time, so two runs do not produce identical bytes.
package trace

import (
	"bytes"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/loomrun/loom/internal/executor"
	"github.com/loomrun/loom/internal/script"
)

// EventKind names the state transition an Event records.
type EventKind string

const (
	EventStarted         EventKind = "started"
	EventFresh           EventKind = "fresh"
	EventCached          EventKind = "cached"
	EventExecuted        EventKind = "executed"
	EventNoOp            EventKind = "noop"
	EventSkipped         EventKind = "skipped"
	EventFailed          EventKind = "failed"
	EventDependencyFailed EventKind = "dependency-failed"
)

// Event is a single script's outcome within a run.
type Event struct {
	Script     string    `json:"script"`
	Kind       EventKind `json:"kind"`
	DurationMS int64     `json:"duration_ms"`
	Error      string    `json:"error,omitempty"`
}

// ExecutionTrace is the top-level document written to the trace file. Events
// is always sorted by Script so CanonicalJSON is stable regardless of the
// randomized launch order the executor uses internally.
type ExecutionTrace struct {
	GraphHash string  `json:"graph_hash"`
	Root      string  `json:"root"`
	Events    []Event `json:"events"`
}

// CanonicalJSON renders t as indent-free JSON with map and slice ordering
// normalized, so repeated runs over the same graph and results diff cleanly.
func (t ExecutionTrace) CanonicalJSON() ([]byte, error) {
	sorted := append([]Event(nil), t.Events...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Script < sorted[j].Script })
	t.Events = sorted

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(t); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Recorder accumulates Events from Observer callbacks across one run. It
// implements executor.Observer so it can be layered alongside (or chained
// through) internal/hooks.Engine as the run's trace-collecting observer.
//
// The Executor launches a script's dependencies concurrently, so
// BeforeNode/AfterNode fire from multiple goroutines at once; mu guards
// starts and events against concurrent access.
type Recorder struct {
	root script.Reference

	mu     sync.Mutex
	starts map[string]time.Time
	events []Event
}

// NewRecorder returns a Recorder for a run rooted at root. BeforeNode and
// AfterNode read the wall clock themselves to measure each event's
// duration.
func NewRecorder(root script.Reference) *Recorder {
	return &Recorder{root: root, starts: map[string]time.Time{}}
}

// BeforeNode implements executor.Observer.
func (r *Recorder) BeforeNode(ref script.Reference) {
	r.mu.Lock()
	r.starts[ref.Key()] = time.Now()
	r.mu.Unlock()
}

// AfterNode implements executor.Observer.
func (r *Recorder) AfterNode(ref script.Reference, result *executor.Result) {
	r.mu.Lock()
	started, ok := r.starts[ref.Key()]
	r.mu.Unlock()
	var durationMS int64
	if ok {
		durationMS = time.Since(started).Milliseconds()
	}

	evt := Event{Script: ref.Key(), DurationMS: durationMS}
	switch {
	case result == nil:
		evt.Kind = EventFailed
	case result.Fresh:
		evt.Kind = EventFresh
	case result.FromCache:
		evt.Kind = EventCached
	case result.Kind == executor.KindNoOp:
		evt.Kind = EventNoOp
	case result.Kind == executor.KindSkipped:
		evt.Kind = EventSkipped
	case result.Kind == executor.KindDependencyFailed:
		evt.Kind = EventDependencyFailed
	case result.Kind == executor.KindFailed:
		evt.Kind = EventFailed
	default:
		evt.Kind = EventExecuted
	}
	if result != nil && result.Err != nil {
		evt.Error = result.Err.Error()
	}
	r.mu.Lock()
	r.events = append(r.events, evt)
	r.mu.Unlock()
}

// Trace builds the ExecutionTrace document recorded so far.
func (r *Recorder) Trace(graphHash string) ExecutionTrace {
	r.mu.Lock()
	defer r.mu.Unlock()
	return ExecutionTrace{GraphHash: graphHash, Root: r.root.Key(), Events: append([]Event(nil), r.events...)}
}
