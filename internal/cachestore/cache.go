// Package cachestore defines the content-addressed Cache interface the
// core consumes, plus a local-directory implementation. Remote object-store
// backends are an external collaborator per spec.md §1; this package only
// supplies the default so the Executor has something to run against.
package cachestore

import (
	"io"

	"github.com/loomrun/loom/internal/fingerprint"
	"github.com/loomrun/loom/internal/script"
)

// Entry is one file captured for (or restored from) the cache, relativized
// and forward-slashed (spec.md §4.6 step 8).
type Entry struct {
	RelativePath string
	Contents     io.Reader
}

// Archive is everything saved for one script's fingerprint: the output
// files plus the two replay streams.
type Archive struct {
	Outputs []Entry
	Stdout  []byte
	Stderr  []byte
}

// Cache is the interface the Executor consults. Implementations must treat
// (ref, fingerprint) as the sole cache key.
type Cache interface {
	// Get returns the archive for ref at fingerprint, or ok=false on miss.
	Get(ref script.Reference, fp fingerprint.Fingerprint) (archive *Archive, ok bool, err error)
	// Put saves archive under (ref, fingerprint).
	Put(ref script.Reference, fp fingerprint.Fingerprint, archive *Archive) error
}

// Mode selects which Cache implementation the Executor should use,
// mirroring spec.md §6's WIREIT_CACHE values.
type Mode string

const (
	ModeNone  Mode = "none"
	ModeLocal Mode = "local"
	// ModeGitHub names the remote object-store backend. It is a valid
	// configuration value, but no backend implements it: the CLI runs with
	// no cache in this mode and reports no error.
	ModeGitHub Mode = "github"
)

// ResolveMode implements spec.md §6's default rule: unset and CI=true means
// none, otherwise local; an explicit value always wins.
func ResolveMode(explicit string, ci bool) Mode {
	switch Mode(explicit) {
	case ModeNone, ModeLocal, ModeGitHub:
		return Mode(explicit)
	}
	if ci {
		return ModeNone
	}
	return ModeLocal
}
