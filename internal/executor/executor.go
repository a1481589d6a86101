// Package executor orchestrates per-script execution: memoization, waiting
// on dependencies, fingerprint computation, freshness short-circuiting,
// output cleaning, cache consult, spawning under a worker pool, output
// replay, and fingerprint persistence (spec.md §4.6).
package executor

import (
	"context"
	"io"
	"math/rand"
	"sync"

	"github.com/loomrun/loom/internal/analyzer"
	"github.com/loomrun/loom/internal/cachestore"
	"github.com/loomrun/loom/internal/failure"
	"github.com/loomrun/loom/internal/fingerprint"
	"github.com/loomrun/loom/internal/globfs"
	"github.com/loomrun/loom/internal/logging"
	"github.com/loomrun/loom/internal/script"
	"github.com/loomrun/loom/internal/statestore"
	"github.com/loomrun/loom/internal/workerpool"
)

// Observer is the lifecycle-hook contract consumed by internal/hooks, kept
// here (rather than importing internal/hooks, which would create a cycle)
// so the Executor core has no dependency on the plugin-discovery machinery.
type Observer interface {
	BeforeNode(ref script.Reference)
	AfterNode(ref script.Reference, result *Result)
}

type nopObserver struct{}

func (nopObserver) BeforeNode(script.Reference)          {}
func (nopObserver) AfterNode(script.Reference, *Result) {}

// Config bundles everything an Executor needs. Cache may be nil to disable
// caching entirely. Stdout/Stderr receive every script's live and replayed
// output verbatim; nil defaults to io.Discard (the structured Logger never
// carries the actual bytes — see internal/logging).
type Config struct {
	Graph       *analyzer.Graph
	Globs       globfs.Resolver
	Fingerprint *fingerprint.Computer
	Pool        *workerpool.Pool
	Coordinator *failure.Coordinator
	Cache       cachestore.Cache
	Logger      logging.Logger
	Observer    Observer
	Stdout      io.Writer
	Stderr      io.Writer
}

// Executor runs the graph produced by an Analyzer.
type Executor struct {
	graph  *analyzer.Graph
	globs  globfs.Resolver
	fp     *fingerprint.Computer
	pool   *workerpool.Pool
	coord  *failure.Coordinator
	cache  cachestore.Cache
	log    logging.Logger
	obs    Observer
	stdout io.Writer
	stderr io.Writer

	mu      sync.Mutex
	futures map[string]*future
}

type future struct {
	done   chan struct{}
	result *Result
}

// New returns an Executor ready to run cfg.Graph.
func New(cfg Config) *Executor {
	obs := cfg.Observer
	if obs == nil {
		obs = nopObserver{}
	}
	stdout := cfg.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	stderr := cfg.Stderr
	if stderr == nil {
		stderr = io.Discard
	}
	return &Executor{
		graph:   cfg.Graph,
		globs:   cfg.Globs,
		fp:      cfg.Fingerprint,
		pool:    cfg.Pool,
		coord:   cfg.Coordinator,
		cache:   cfg.Cache,
		log:     logging.OrNop(cfg.Logger),
		obs:     obs,
		stdout:  stdout,
		stderr:  stderr,
		futures: map[string]*future{},
	}
}

// Execute runs ref (and its transitive dependencies as needed), returning
// the same *Result to every caller for a given reference — a diamond
// dependency's shared tail runs exactly once (spec.md §4.6 "Per-script
// memoization").
func (e *Executor) Execute(ctx context.Context, ref script.Reference) *Result {
	key := ref.Key()

	e.mu.Lock()
	f, exists := e.futures[key]
	if !exists {
		f = &future{done: make(chan struct{})}
		e.futures[key] = f
	}
	e.mu.Unlock()

	if exists {
		<-f.done
		return f.result
	}

	e.obs.BeforeNode(ref)
	result := e.runScript(ctx, ref)
	e.obs.AfterNode(ref, result)

	f.result = result
	close(f.done)
	return result
}

// runScript implements spec.md §4.6 steps 1-9 for a single reference.
func (e *Executor) runScript(ctx context.Context, ref script.Reference) *Result {
	cfg, ok := e.graph.Config(ref)
	if !ok {
		return &Result{Ref: ref, Kind: KindFailed, Err: &SpawnError{Ref: ref, Err: errNoConfig}}
	}

	// Step 1: launch dependencies concurrently, in randomized order, and
	// wait for every one of them (settlement-all, not fail-fast).
	deps := append([]script.Dependency(nil), cfg.Dependencies...)
	rand.Shuffle(len(deps), func(i, j int) { deps[i], deps[j] = deps[j], deps[i] })

	depResults := make([]*Result, len(deps))
	var wg sync.WaitGroup
	for i, dep := range deps {
		wg.Add(1)
		go func(i int, dep script.Dependency) {
			defer wg.Done()
			depResults[i] = e.Execute(ctx, dep.Target)
		}(i, dep)
	}
	wg.Wait()

	// Step 2: propagate DependencyFailed for cascading failures.
	for i, dep := range deps {
		if dep.Cascade && depResults[i].Failed() {
			return &Result{
				Ref:  ref,
				Kind: KindDependencyFailed,
				Err:  &DependencyFailedError{Ref: ref, FailedDep: dep.Target},
			}
		}
	}

	// Step 3: compute this script's fingerprint given dependency results.
	fpDeps := make([]fingerprint.DependencyResult, len(deps))
	for i, dep := range deps {
		fpDeps[i] = fingerprint.DependencyResult{
			Target:  dep.Target,
			Cascade: dep.Cascade,
			Result:  depResults[i].Fingerprint,
		}
	}
	fp, err := e.fp.Compute(cfg, cfg.Ref.PackageDir, fpDeps)
	if err != nil {
		return &Result{Ref: ref, Kind: KindFailed, Err: err}
	}

	store := statestore.Open(cfg.Ref.PackageDir, cfg.Ref.Name)

	// Step 4: freshness short-circuit.
	if !fp.Uncacheable {
		if prev, ok := store.ReadFingerprint(); ok && string(prev) == string(fp.Value) {
			e.replay(store)
			e.log.Info("script.fresh", map[string]any{"ref": ref.String()})
			return &Result{Ref: ref, Kind: KindSuccess, Fingerprint: fp, Fresh: true}
		}
	}

	if !cfg.HasCommand {
		e.log.Info("script.noop", map[string]any{"ref": ref.String()})
		return &Result{Ref: ref, Kind: KindNoOp, Fingerprint: fp}
	}

	// Step 5: delete the previous fingerprint before anything destructive.
	if err := store.DeleteFingerprint(); err != nil {
		return &Result{Ref: ref, Kind: KindFailed, Err: err}
	}

	cacheHit, archive := e.peekCache(ref, fp)

	switch {
	case cfg.Clean == script.CleanTrue || cacheHit:
		if err := e.cleanOutputs(cfg, cfg.Ref.PackageDir); err != nil {
			return &Result{Ref: ref, Kind: KindFailed, Err: err}
		}
	case cfg.Clean == script.CleanIfFileDeleted:
		if shouldCleanIfFileDeleted(store.ReadFiles(), fp.Files) {
			if err := e.cleanOutputs(cfg, cfg.Ref.PackageDir); err != nil {
				return &Result{Ref: ref, Kind: KindFailed, Err: err}
			}
		}
	}

	// Step 6: cache hit.
	if cacheHit {
		if err := e.applyArchive(cfg.Ref.PackageDir, archive, store); err != nil {
			return &Result{Ref: ref, Kind: KindFailed, Err: err}
		}
		e.replay(store)
		if err := e.writeFingerprint(store, fp); err != nil {
			return &Result{Ref: ref, Kind: KindFailed, Err: err}
		}
		e.log.Info("script.cached", map[string]any{"ref": ref.String()})
		return &Result{Ref: ref, Kind: KindSuccess, Fingerprint: fp, FromCache: true}
	}

	// Step 7: spawn under the worker pool.
	result := e.spawnAndRun(ctx, cfg, fp, store)
	if result.Failed() {
		e.log.Error("script.failed", map[string]any{"ref": ref.String(), "error": result.Err.Error()})
		return result
	}
	if result.Kind == KindSkipped {
		e.log.Info("script.skipped", map[string]any{"ref": ref.String(), "reason": result.SkippedReason})
		return result
	}

	// Step 8: save to cache.
	if !fp.Uncacheable {
		e.saveCache(cfg, fp, store)
	}

	// Step 9: write the new fingerprint atomically.
	if err := e.writeFingerprint(store, fp); err != nil {
		return &Result{Ref: ref, Kind: KindFailed, Err: err}
	}

	e.log.Info("script.executed", map[string]any{"ref": ref.String()})
	return result
}

func (e *Executor) writeFingerprint(store *statestore.Store, fp fingerprint.Result) error {
	if fp.Uncacheable {
		return nil
	}
	if err := store.WriteFingerprint([]byte(fp.Value)); err != nil {
		return err
	}
	return store.WriteFiles(fp.Files)
}

// replay writes a script's previously captured stdout/stderr verbatim to
// the configured writers (spec.md §4.8), so a fresh or cache-hit script
// still shows the user the output its last real run produced.
func (e *Executor) replay(store *statestore.Store) {
	if out := store.ReplayStdout(); out != nil {
		e.stdout.Write(out)
		e.log.Info("script.stdout", map[string]any{"bytes": len(out)})
	}
	if errOut := store.ReplayStderr(); errOut != nil {
		e.stderr.Write(errOut)
		e.log.Info("script.stderr", map[string]any{"bytes": len(errOut)})
	}
}

func (e *Executor) peekCache(ref script.Reference, fp fingerprint.Result) (bool, *cachestore.Archive) {
	if e.cache == nil || fp.Uncacheable {
		return false, nil
	}
	archive, ok, err := e.cache.Get(ref, fp.Value)
	if err != nil || !ok {
		return false, nil
	}
	return true, archive
}

func (e *Executor) saveCache(cfg *script.Config, fp fingerprint.Result, store *statestore.Store) {
	if e.cache == nil {
		return
	}
	matches, err := e.globs.Resolve(cfg.Ref.PackageDir, cfg.Output, true)
	if err != nil {
		return
	}
	archive := &cachestore.Archive{
		Stdout: store.ReplayStdout(),
		Stderr: store.ReplayStderr(),
	}
	for _, m := range matches {
		f, err := openFile(m.AbsolutePath)
		if err != nil {
			continue
		}
		archive.Outputs = append(archive.Outputs, cachestore.Entry{RelativePath: m.RelativePath, Contents: f})
	}
	_ = e.cache.Put(cfg.Ref, fp.Value, archive)
}
