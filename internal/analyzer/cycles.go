package analyzer

import (
	"github.com/loomrun/loom/internal/manifest"
	"github.com/loomrun/loom/internal/script"
)

// checkCycles is phase 2 of spec.md §4.2: a deterministic depth-first walk
// from root, threading an insertion-ordered visit trail. Dependencies are
// already canonically sorted by (packageDir, name) at validation time, so
// two structurally identical graphs always produce the same trail and thus
// the same Cycle diagnostic, regardless of declaration order in the
// manifest.
func (s *session) checkCycles(root script.Reference) []*Failure {
	v := &cycleVisitor{
		session:   s,
		trailIdx:  map[string]int{},
		finalized: map[string]bool{},
	}
	rootNode, ok := s.table.get(root)
	if !ok {
		return nil
	}
	v.visit(rootNode)

	var out []*Failure
	superseded := map[*Failure]bool{}
	for _, f := range v.failures {
		if f.supersedes != nil {
			superseded[f.supersedes] = true
		}
	}
	for _, f := range v.failures {
		if !superseded[f] {
			out = append(out, f)
		}
	}
	return out
}

type cycleVisitor struct {
	*session

	trail     []string
	trailIdx  map[string]int
	finalized map[string]bool
	failures  []*Failure
}

// visit returns true if the node (and its transitive closure) is valid.
func (v *cycleVisitor) visit(n *node) bool {
	n.mu.Lock()
	state := n.state
	ownFailures := append([]*Failure(nil), n.failures...)
	cfg := n.cfg
	n.mu.Unlock()

	key := n.ref.Key()

	if idx, inTrail := v.trailIdx[key]; inTrail {
		v.failures = append(v.failures, v.buildCycleFailure(v.trail[idx:], n.ref))
		return false
	}

	if v.finalized[key] {
		return state == stateValid
	}

	v.failures = append(v.failures, ownFailures...)

	if state == stateInvalid {
		v.finalized[key] = true
		return false
	}

	v.trailIdx[key] = len(v.trail)
	v.trail = append(v.trail, key)

	depsOK := true
	var firstBadDep *script.Reference
	for _, dep := range cfg.Dependencies {
		child, ok := v.table.get(dep.Target)
		if !ok {
			depsOK = false
			continue
		}
		if !v.visit(child) {
			depsOK = false
			if firstBadDep == nil {
				t := dep.Target
				firstBadDep = &t
			}
			v.superseDependencyFailure(n, child, dep.Target)
		}
	}

	v.trail = v.trail[:len(v.trail)-1]
	delete(v.trailIdx, key)

	n.mu.Lock()
	if depsOK {
		n.state = stateValid
	} else {
		n.state = stateInvalid
	}
	n.mu.Unlock()

	v.finalized[key] = true

	if !depsOK && firstBadDep != nil {
		v.failures = append(v.failures, newFailure(KindDependencyInvalid, n.ref, n.edgePos[firstBadDep.Key()],
			"depends on %s, which is invalid", firstBadDep.String()))
	}

	return depsOK
}

// superseDependencyFailure replaces a bare MissingPackageJson/ScriptNotFound
// on child with a richer edge-aware diagnostic, per spec.md §4.2's
// "diagnostic deduplication".
func (v *cycleVisitor) superseDependencyFailure(parent, child *node, target script.Reference) {
	child.mu.Lock()
	childFailures := append([]*Failure(nil), child.failures...)
	child.mu.Unlock()

	pos := parent.edgePos[target.Key()]

	for _, cf := range childFailures {
		switch cf.Kind {
		case KindMissingPackageJSON:
			richer := newFailure(KindDependencyOnMissingPackageJSON, parent.ref, pos,
				"dependency on %s, which has no package.json", target.String())
			richer.supersedes = cf
			v.failures = append(v.failures, richer)
		case KindScriptNotFound:
			richer := newFailure(KindDependencyOnMissingScript, parent.ref, pos,
				"dependency on %s, which has no such script", target.String())
			richer.supersedes = cf
			v.failures = append(v.failures, richer)
		}
	}
}

// buildCycleFailure builds the Cycle diagnostic per spec.md §4.2: locations
// enumerate every edge in the cycle in trail order, from where the repeated
// key first appeared through to the closing edge back to it.
func (v *cycleVisitor) buildCycleFailure(cycleTrail []string, closingTarget script.Reference) *Failure {
	var locations []manifest.Position
	var refs []string

	for i, key := range cycleTrail {
		n, ok := v.table.getByKey(key)
		if !ok {
			continue
		}
		var nextKey string
		if i+1 < len(cycleTrail) {
			nextKey = cycleTrail[i+1]
		} else {
			nextKey = closingTarget.Key()
		}
		n.mu.Lock()
		pos := n.edgePos[nextKey]
		n.mu.Unlock()
		locations = append(locations, pos)
		refs = append(refs, n.ref.String())
	}
	refs = append(refs, closingTarget.String())

	rootNode, _ := v.table.getByKey(cycleTrail[0])

	return &Failure{
		Kind:      KindCycle,
		Severity:  SeverityError,
		Ref:       rootNode.ref,
		Message:   "dependency cycle: " + joinCycleRefs(refs),
		Locations: locations,
	}
}

func joinCycleRefs(refs []string) string {
	out := ""
	for i, r := range refs {
		if i > 0 {
			out += " -> "
		}
		out += r
	}
	return out
}
