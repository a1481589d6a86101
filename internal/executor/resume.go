package executor

import (
	"context"

	"github.com/loomrun/loom/internal/fingerprint"
	"github.com/loomrun/loom/internal/script"
	"github.com/loomrun/loom/internal/statestore"
)

// ExecuteResumable runs ref the same way Execute does. `loom run --resume`
// calls Execute directly: the normal per-script freshness check of
// spec.md §4.6 step 4 already makes re-running a partially completed graph
// cheap, so resuming needs no new caching mechanism, only a reporting pass
// (ProbeSatisfied) run first so the CLI can tell the user what it is
// skipping before the real run starts.
func (e *Executor) ExecuteResumable(ctx context.Context, ref script.Reference) *Result {
	return e.Execute(ctx, ref)
}

// ProbeSatisfied recomputes ref's fingerprint bottom-up, purely from
// on-disk state (no commands are run), and reports whether it already
// matches the stored one. Used to report "N of M scripts already satisfied"
// before a resumed run.
func (e *Executor) ProbeSatisfied(ref script.Reference) (fingerprint.Result, bool) {
	cfg, ok := e.graph.Config(ref)
	if !ok {
		return fingerprint.Result{}, false
	}

	deps := make([]fingerprint.DependencyResult, len(cfg.Dependencies))
	for i, dep := range cfg.Dependencies {
		depFP, _ := e.ProbeSatisfied(dep.Target)
		deps[i] = fingerprint.DependencyResult{Target: dep.Target, Cascade: dep.Cascade, Result: depFP}
	}

	fp, err := e.fp.Compute(cfg, cfg.Ref.PackageDir, deps)
	if err != nil || fp.Uncacheable {
		return fp, false
	}

	store := statestore.Open(cfg.Ref.PackageDir, cfg.Ref.Name)
	prev, ok := store.ReadFingerprint()
	return fp, ok && string(prev) == string(fp.Value)
}
