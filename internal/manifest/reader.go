package manifest

import (
	"sync"

	"golang.org/x/sync/singleflight"
)

// PackageReader loads and memoizes package.json contents by directory.
//
// A directory that parses successfully is decoded only once per
// PackageReader lifetime; a failed read is not cached and is tried again
// on the next call. Concurrent callers for the same directory block on a single in-flight
// read via singleflight rather than each parsing the file independently
// (spec.md §4.1: the Analyzer may discover the same package from multiple
// dependency edges concurrently during its async fan-out phase).
type PackageReader struct {
	group singleflight.Group

	mu    sync.RWMutex
	cache map[string]*Package
}

// NewPackageReader returns a ready-to-use PackageReader.
func NewPackageReader() *PackageReader {
	return &PackageReader{cache: map[string]*Package{}}
}

// Read returns the parsed Package for dir, reading and caching it on first
// access. Errors are not cached: a transient failure (e.g. a file briefly
// missing during editor saves) does not poison later calls.
func (r *PackageReader) Read(dir string) (*Package, error) {
	r.mu.RLock()
	if pkg, ok := r.cache[dir]; ok {
		r.mu.RUnlock()
		return pkg, nil
	}
	r.mu.RUnlock()

	v, err, _ := r.group.Do(dir, func() (any, error) {
		return Parse(dir)
	})
	if err != nil {
		return nil, err
	}
	pkg := v.(*Package)

	r.mu.Lock()
	r.cache[dir] = pkg
	r.mu.Unlock()

	return pkg, nil
}

// ScriptInfo is a diagnostic-oriented view of a single script declaration,
// used by the Analyzer when it needs to know whether a name exists at all
// in scripts, in wireit, both, or neither, without re-deriving that from
// the raw maps at every call site.
type ScriptInfo struct {
	Declared       bool
	ScriptCommand  string
	HasWireit      bool
	Wireit         RawWireitConfig
	ScriptPosition Position
	WireitPosition Position
}

// GetScriptInfo looks up name within an already-loaded Package.
func (r *PackageReader) GetScriptInfo(pkg *Package, name string) ScriptInfo {
	info := ScriptInfo{
		ScriptPosition: pkg.ScriptPosition(name),
		WireitPosition: pkg.WireitPosition(name),
	}
	if cmd, ok := pkg.Scripts[name]; ok {
		info.Declared = true
		info.ScriptCommand = cmd
	}
	if cfg, ok := pkg.Wireit[name]; ok {
		info.HasWireit = true
		info.Wireit = cfg
	}
	return info
}
