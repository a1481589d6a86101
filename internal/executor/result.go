package executor

import (
	"github.com/loomrun/loom/internal/fingerprint"
	"github.com/loomrun/loom/internal/script"
)

// ResultKind is the outcome variant of one script's execution, per
// spec.md §4.6 "Result variants".
type ResultKind string

const (
	KindSuccess          ResultKind = "success"
	KindNoOp             ResultKind = "no-op"
	KindFailed           ResultKind = "failed"
	KindSkipped          ResultKind = "skipped"
	KindDependencyFailed ResultKind = "dependency-failed"
)

// Result is the terminal outcome of one script's execution. Every variant
// carries Ref.
type Result struct {
	Ref  script.Reference
	Kind ResultKind

	Fingerprint fingerprint.Result
	FromCache   bool
	Fresh       bool

	// SkippedReason explains a Skipped result (e.g. "no-new policy active").
	SkippedReason string

	Err error
}

func (r *Result) Failed() bool {
	return r.Kind == KindFailed || r.Kind == KindDependencyFailed
}
