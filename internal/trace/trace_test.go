package trace

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/loomrun/loom/internal/executor"
	"github.com/loomrun/loom/internal/script"
)

func TestCanonicalJSONSortsEventsByScript(t *testing.T) {
	tr := ExecutionTrace{
		GraphHash: "abc",
		Root:      "root",
		Events: []Event{
			{Script: "zzz", Kind: EventExecuted},
			{Script: "aaa", Kind: EventFresh},
		},
	}
	data, err := tr.CanonicalJSON()
	if err != nil {
		t.Fatalf("CanonicalJSON() error = %v", err)
	}

	var decoded ExecutionTrace
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(decoded.Events) != 2 || decoded.Events[0].Script != "aaa" || decoded.Events[1].Script != "zzz" {
		t.Fatalf("unexpected event order: %+v", decoded.Events)
	}
}

func TestCanonicalJSONIsDeterministic(t *testing.T) {
	tr := ExecutionTrace{
		GraphHash: "abc",
		Events: []Event{
			{Script: "b", Kind: EventCached},
			{Script: "a", Kind: EventFresh},
		},
	}
	d1, err := tr.CanonicalJSON()
	if err != nil {
		t.Fatalf("CanonicalJSON() error = %v", err)
	}
	d2, err := tr.CanonicalJSON()
	if err != nil {
		t.Fatalf("CanonicalJSON() error = %v", err)
	}
	if string(d1) != string(d2) {
		t.Fatalf("CanonicalJSON() not deterministic: %q vs %q", d1, d2)
	}
}

func TestCanonicalJSONDoesNotEscapeHTML(t *testing.T) {
	tr := ExecutionTrace{Root: "a&b"}
	data, err := tr.CanonicalJSON()
	if err != nil {
		t.Fatalf("CanonicalJSON() error = %v", err)
	}
	if string(data) == "" {
		t.Fatalf("empty output")
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded["root"] != "a&b" {
		t.Fatalf("root = %v, want a&b", decoded["root"])
	}
}

func TestRecorderClassifiesFreshResult(t *testing.T) {
	r := NewRecorder(script.Reference{Name: "build"})
	ref := script.Reference{Name: "build"}
	r.BeforeNode(ref)
	r.AfterNode(ref, &executor.Result{Ref: ref, Kind: executor.KindSuccess, Fresh: true})

	tr := r.Trace("hash")
	if len(tr.Events) != 1 || tr.Events[0].Kind != EventFresh {
		t.Fatalf("unexpected events: %+v", tr.Events)
	}
}

func TestRecorderClassifiesFailedResultWithError(t *testing.T) {
	r := NewRecorder(script.Reference{Name: "build"})
	ref := script.Reference{Name: "build"}
	r.BeforeNode(ref)
	r.AfterNode(ref, &executor.Result{Ref: ref, Kind: executor.KindFailed, Err: errors.New("exit status 1")})

	tr := r.Trace("hash")
	if len(tr.Events) != 1 || tr.Events[0].Kind != EventFailed || tr.Events[0].Error != "exit status 1" {
		t.Fatalf("unexpected events: %+v", tr.Events)
	}
}

func TestRecorderClassifiesDependencyFailed(t *testing.T) {
	r := NewRecorder(script.Reference{Name: "build"})
	ref := script.Reference{Name: "build"}
	r.BeforeNode(ref)
	r.AfterNode(ref, &executor.Result{Ref: ref, Kind: executor.KindDependencyFailed})

	tr := r.Trace("hash")
	if len(tr.Events) != 1 || tr.Events[0].Kind != EventDependencyFailed {
		t.Fatalf("unexpected events: %+v", tr.Events)
	}
}

func TestRecorderTraceIncludesGraphHashAndRoot(t *testing.T) {
	root := script.Reference{PackageDir: "/pkg", Name: "build"}
	r := NewRecorder(root)
	tr := r.Trace("deadbeef")
	if tr.GraphHash != "deadbeef" || tr.Root != root.Key() {
		t.Fatalf("unexpected trace metadata: %+v", tr)
	}
}
