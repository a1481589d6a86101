package analyzer

import (
	"sync"

	"github.com/loomrun/loom/internal/manifest"
	"github.com/loomrun/loom/internal/script"
)

type nodeState int

const (
	stateUnvalidated nodeState = iota
	stateLocallyValid
	stateValid
	stateInvalid
)

// node is a placeholder-graph handle: its identity never changes across
// state transitions (spec.md §3 "Node state" invariant), so that other
// nodes may hold a reference to it before its manifest has even been read.
// Every field after the zero value is written at most once, guarded by mu;
// once upgradeDone is closed the node is read-only except for the phase-2
// cycle fields, which only the single-threaded DFS in cycles.go touches.
type node struct {
	mu sync.Mutex

	ref   script.Reference
	state nodeState

	cfg       *script.Config
	failures  []*Failure // failures intrinsic to this node, before transitive propagation

	upgradeDone chan struct{}

	// edgePos records the declaration position of each outgoing dependency,
	// keyed by the target's canonical key, for Cycle diagnostics.
	edgePos map[string]manifest.Position
}

func newNode(ref script.Reference) *node {
	return &node{ref: ref, upgradeDone: make(chan struct{})}
}

// wait blocks until this node's phase-1 upgrade (unvalidated -> locally-valid
// or terminal) has completed.
func (n *node) wait() {
	<-n.upgradeDone
}

func (n *node) finishLocallyValid(cfg *script.Config, edgePos map[string]manifest.Position, warnings []*Failure) {
	n.mu.Lock()
	n.state = stateLocallyValid
	n.cfg = cfg
	n.edgePos = edgePos
	n.failures = append(n.failures, warnings...)
	n.mu.Unlock()
	close(n.upgradeDone)
}

func (n *node) finishInvalid(failures ...*Failure) {
	n.mu.Lock()
	n.state = stateInvalid
	n.failures = append(n.failures, failures...)
	n.mu.Unlock()
	close(n.upgradeDone)
}
