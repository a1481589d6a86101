package analyzer

import (
	"sync"

	"github.com/loomrun/loom/internal/script"
)

// placeholderTable is the "mapping from canonical reference key to node
// handle plus an upgrade-complete signal" of spec.md §3. getOrCreate is the
// sole allocator and is internally serialized; first writer wins.
type placeholderTable struct {
	mu    sync.Mutex
	nodes map[string]*node
}

func newPlaceholderTable() *placeholderTable {
	return &placeholderTable{nodes: map[string]*node{}}
}

// getOrCreate returns the node for ref, allocating it if this is the first
// request for that reference. created is true exactly once per reference,
// telling the caller it is responsible for starting the node's upgrade.
func (t *placeholderTable) getOrCreate(ref script.Reference) (n *node, created bool) {
	key := ref.Key()
	t.mu.Lock()
	defer t.mu.Unlock()
	if existing, ok := t.nodes[key]; ok {
		return existing, false
	}
	n = newNode(ref)
	t.nodes[key] = n
	return n, true
}

func (t *placeholderTable) get(ref script.Reference) (*node, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	n, ok := t.nodes[ref.Key()]
	return n, ok
}

func (t *placeholderTable) getByKey(key string) (*node, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	n, ok := t.nodes[key]
	return n, ok
}

func (t *placeholderTable) snapshot() map[string]*node {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]*node, len(t.nodes))
	for k, v := range t.nodes {
		out[k] = v
	}
	return out
}
