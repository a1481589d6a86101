// Package fingerprint computes the canonical, order-independent fingerprint
// of a script from its command, clean policy, declared files, output
// patterns, environment projection, and the fingerprints of its cascading
// dependencies.
package fingerprint

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"os"
	"sort"

	"github.com/loomrun/loom/internal/globfs"
	"github.com/loomrun/loom/internal/script"
)

// Fingerprint is the canonical, on-disk, byte-for-byte comparable digest of
// a script's observable state.
type Fingerprint string

// Uncacheable is the distinguished "no fingerprint is possible" value. It is
// not a Fingerprint; callers must branch on it explicitly rather than
// comparing strings.
type Result struct {
	Value       Fingerprint
	Uncacheable bool

	// Files is the sorted list of relative paths that contributed to
	// Value, kept so the Executor can compare against a previous run's
	// file list for the "if-file-deleted" clean policy (spec.md §4.6
	// step 5). Empty when Uncacheable or when the script declares no
	// files.
	Files []string
}

// DependencyResult is what the Executor hands the Fingerprinter for each of
// a script's dependencies: its resolved fingerprint (or Uncacheable) plus
// whether the edge cascades.
type DependencyResult struct {
	Target      script.Reference
	Cascade     bool
	Result      Result
}

// Computer computes fingerprints against a filesystem, via a glob resolver.
type Computer struct {
	Globs globfs.Resolver
}

// NewComputer returns a Computer backed by the default filesystem resolver.
func NewComputer() *Computer {
	return &Computer{Globs: globfs.NewResolver()}
}

// Compute implements spec.md §4.4: fingerprint(script, depResults).
func (c *Computer) Compute(cfg *script.Config, packageDir string, deps []DependencyResult) (Result, error) {
	for _, d := range deps {
		if d.Cascade && d.Result.Uncacheable {
			return Result{Uncacheable: true}, nil
		}
	}
	if cfg.HasCommand && len(cfg.Files) == 0 {
		return Result{Uncacheable: true}, nil
	}

	files, err := c.hashFiles(packageDir, cfg.Files)
	if err != nil {
		return Result{}, err
	}

	env := projectEnv(cfg.Env)

	depEntries := make([]depEntry, 0, len(deps))
	for _, d := range deps {
		if !d.Cascade {
			continue
		}
		depEntries = append(depEntries, depEntry{
			key:   d.Target.Key(),
			value: string(d.Result.Value),
		})
	}
	sort.Slice(depEntries, func(i, j int) bool { return depEntries[i].key < depEntries[j].key })

	h := sha256.New()
	writeString(h, cfg.Command)
	writeStrings(h, cfg.ExtraArgs)
	writeString(h, string(cfg.Clean))
	writeStrings(h, cfg.Output)

	writeUint(h, uint64(len(files)))
	for _, f := range files {
		writeString(h, f.relativePath)
		writeString(h, f.digest)
	}

	writeUint(h, uint64(len(env)))
	for _, e := range env {
		writeString(h, e.name)
		writeString(h, e.value)
		writeBool(h, e.present)
	}

	writeUint(h, uint64(len(depEntries)))
	for _, d := range depEntries {
		writeString(h, d.key)
		writeString(h, d.value)
	}

	relPaths := make([]string, 0, len(files))
	for _, f := range files {
		relPaths = append(relPaths, f.relativePath)
	}

	return Result{Value: Fingerprint(hex.EncodeToString(h.Sum(nil))), Files: relPaths}, nil
}

type fileEntry struct {
	relativePath string
	digest       string // "sha256:<hex>" for regular files, "link:<target>" for symlinks
}

func (c *Computer) hashFiles(packageDir string, patterns []string) ([]fileEntry, error) {
	if len(patterns) == 0 {
		return nil, nil
	}
	matches, err := c.Globs.Resolve(packageDir, patterns, false)
	if err != nil {
		return nil, err
	}

	out := make([]fileEntry, 0, len(matches))
	for _, m := range matches {
		switch m.Kind {
		case globfs.KindDirectory:
			out = append(out, fileEntry{relativePath: m.RelativePath, digest: "dir"})
		case globfs.KindSymlink:
			target, err := os.Readlink(m.AbsolutePath)
			if err != nil {
				return nil, err
			}
			out = append(out, fileEntry{relativePath: m.RelativePath, digest: "link:" + target})
		default:
			sum, err := sha256File(m.AbsolutePath)
			if err != nil {
				return nil, err
			}
			out = append(out, fileEntry{relativePath: m.RelativePath, digest: "sha256:" + sum})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].relativePath < out[j].relativePath })
	return out, nil
}

func sha256File(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

type envEntry struct {
	name    string
	value   string
	present bool
}

func projectEnv(vars []script.EnvVar) []envEntry {
	out := make([]envEntry, 0, len(vars))
	for _, v := range vars {
		if !v.External {
			out = append(out, envEntry{name: v.Name, value: v.Literal, present: true})
			continue
		}
		if val, ok := os.LookupEnv(v.Name); ok {
			out = append(out, envEntry{name: v.Name, value: val, present: true})
		} else if v.HasDefault {
			out = append(out, envEntry{name: v.Name, value: v.Default, present: true})
		} else {
			out = append(out, envEntry{name: v.Name, present: false})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

type depEntry struct {
	key   string
	value string
}

func writeString(h interface{ Write([]byte) (int, error) }, s string) {
	writeUint(h, uint64(len(s)))
	h.Write([]byte(s))
}

func writeStrings(h interface{ Write([]byte) (int, error) }, ss []string) {
	writeUint(h, uint64(len(ss)))
	for _, s := range ss {
		writeString(h, s)
	}
}

func writeUint(h interface{ Write([]byte) (int, error) }, v uint64) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	h.Write(buf[:])
}

func writeBool(h interface{ Write([]byte) (int, error) }, b bool) {
	if b {
		h.Write([]byte{1})
	} else {
		h.Write([]byte{0})
	}
}
