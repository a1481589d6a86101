// Package analyzer builds the validated script dependency graph from a
// root reference: it asynchronously upgrades placeholder nodes as
// manifests load, validates each node's config, resolves cross-package and
// "<dependencies>#..." edges, and runs a deterministic cycle check before
// declaring the graph valid.
package analyzer

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/loomrun/loom/internal/manifest"
	"github.com/loomrun/loom/internal/script"
)

// Analyzer builds graphs against a shared PackageReader. It holds no
// per-analysis state itself; each call to Analyze starts a fresh session
// with its own placeholder table, so concurrent callers analyzing
// different roots never interfere.
type Analyzer struct {
	reader *manifest.PackageReader
}

// New returns an Analyzer backed by reader.
func New(reader *manifest.PackageReader) *Analyzer {
	return &Analyzer{reader: reader}
}

// Graph is the immutable result of a successful analysis: every node
// reachable from Root, keyed by canonical reference key. After Analyze
// returns, Graph may be read concurrently without synchronization.
type Graph struct {
	Root  script.Reference
	Nodes map[string]*script.Config
}

// Config looks up the validated config for ref, if it is part of the graph.
func (g *Graph) Config(ref script.Reference) (*script.Config, bool) {
	cfg, ok := g.Nodes[ref.Key()]
	return cfg, ok
}

// session is the per-Analyze-call state: the placeholder table and the
// fan-out group used during phase 1.
type session struct {
	reader *manifest.PackageReader
	table  *placeholderTable
	group  *errgroup.Group
}

// spawn schedules n's phase-1 upgrade on the session's errgroup. Safe to
// call concurrently from multiple in-flight upgrades, since errgroup.Go's
// internal WaitGroup.Add always happens from a goroutine that is itself
// still being waited on.
func (s *session) spawn(n *node, extraArgs []string) {
	s.group.Go(func() error {
		s.upgrade(n, extraArgs)
		return nil
	})
}

// Analyze implements spec.md §4.2: analyze(root, extraArgs) -> Result<ScriptConfig, [Failure]>.
//
// A nil Graph means at least one error-severity Failure made the graph
// unusable. A non-nil Graph may still come back alongside warning-severity
// Failures (e.g. KindScriptNotWireit) that callers are free to surface
// without treating the analysis as failed.
func (a *Analyzer) Analyze(ctx context.Context, root script.Reference, extraArgs []string) (*Graph, []*Failure) {
	s := &session{reader: a.reader, table: newPlaceholderTable()}
	g, _ := errgroup.WithContext(ctx)
	s.group = g

	rootNode, _ := s.table.getOrCreate(root)
	s.spawn(rootNode, extraArgs)

	// errgroup.Go's first error (always nil here; upgrade never returns an
	// error, it records Failures on the node instead) is irrelevant; Wait
	// only serves as the fan-out barrier.
	_ = g.Wait()

	failures := s.checkCycles(root)
	if hasFatalFailure(failures) {
		return nil, failures
	}

	nodes := s.table.snapshot()
	out := &Graph{Root: root, Nodes: make(map[string]*script.Config, len(nodes))}
	for key, n := range nodes {
		n.mu.Lock()
		cfg := n.cfg
		n.mu.Unlock()
		out.Nodes[key] = cfg
	}
	if rootCfg, ok := out.Nodes[root.Key()]; ok {
		rootCfg.ExtraArgs = extraArgs
	}
	return out, failures
}

func hasFatalFailure(failures []*Failure) bool {
	for _, f := range failures {
		if f.Severity == SeverityError {
			return true
		}
	}
	return false
}
