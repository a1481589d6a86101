// Package globfs expands glob patterns against a package directory into a
// sorted, deduplicated list of matches, distinguishing files, directories,
// and symlinks. It is the concrete GlobResolver the Fingerprinter and
// Executor consult for file hashing and output cleaning.
package globfs

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Kind classifies a matched filesystem entry.
type Kind int

const (
	KindFile Kind = iota
	KindDirectory
	KindSymlink
)

// Match is one resolved glob result.
type Match struct {
	Kind         Kind
	RelativePath string // forward-slash, relative to BaseDir
	AbsolutePath string
}

// Resolver expands patterns against a base directory.
type Resolver interface {
	// Resolve returns matches for patterns, honoring `!`-prefixed negation
	// and re-inclusion in declaration order. onlyFiles excludes directory
	// entries from the result (directories are still walked to find file
	// descendants).
	Resolve(baseDir string, patterns []string, onlyFiles bool) ([]Match, error)
}

// DoublestarResolver implements Resolver on top of
// github.com/bmatcuk/doublestar/v4, walking baseDir once and testing each
// entry against the pattern list in declaration order so that later
// negations/re-inclusions can override earlier ones, per spec.md §4.3.
type DoublestarResolver struct{}

// NewResolver returns the default filesystem-backed Resolver.
func NewResolver() Resolver { return DoublestarResolver{} }

func (DoublestarResolver) Resolve(baseDir string, patterns []string, onlyFiles bool) ([]Match, error) {
	type rule struct {
		pattern string
		negate  bool
	}
	rules := make([]rule, 0, len(patterns))
	for _, p := range patterns {
		negate := strings.HasPrefix(p, "!")
		if negate {
			p = p[1:]
		}
		p = strings.TrimPrefix(p, "/")
		rules = append(rules, rule{pattern: p, negate: negate})
	}

	included := map[string]Match{}

	err := filepath.WalkDir(baseDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if path == baseDir {
			return nil
		}

		rel, relErr := filepath.Rel(baseDir, path)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)

		info, infoErr := d.Info()
		if infoErr != nil {
			return nil
		}

		isSymlink := info.Mode()&os.ModeSymlink != 0
		if isSymlink && d.IsDir() {
			// Never follow symlinks during matching (spec.md §4.3).
			return filepath.SkipDir
		}

		matched := false
		for _, r := range rules {
			ok, matchErr := doublestar.Match(r.pattern, rel)
			if matchErr != nil {
				continue
			}
			if !ok && d.IsDir() {
				// A directory pattern like "dir/**" still needs the
				// directory itself to be walked into even if "dir" alone
				// doesn't match; doublestar.Match already handles prefix
				// matching of "**" patterns against the dir path, so no
				// special-case beyond matched toggling is needed here.
				continue
			}
			if ok {
				matched = r.negate == false
				if r.negate {
					delete(included, rel)
				}
			}
		}

		if !matched {
			return nil
		}

		if d.IsDir() {
			if onlyFiles {
				return nil
			}
			included[rel] = Match{Kind: KindDirectory, RelativePath: rel, AbsolutePath: path}
			return nil
		}

		kind := KindFile
		if isSymlink {
			kind = KindSymlink
		}
		included[rel] = Match{Kind: kind, RelativePath: rel, AbsolutePath: path}
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]Match, 0, len(included))
	for _, m := range included {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RelativePath < out[j].RelativePath })
	return out, nil
}
