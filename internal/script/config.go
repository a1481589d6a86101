package script

import "sort"

// CleanPolicy is the output-cleaning policy evaluated before a script runs.
type CleanPolicy string

const (
	CleanTrue          CleanPolicy = "true"
	CleanFalse         CleanPolicy = "false"
	CleanIfFileDeleted CleanPolicy = "if-file-deleted"
)

// EnvVar is a single entry of a script's environment projection: either a
// literal inline value, or a reference to an external (inherited) variable
// with an optional default.
type EnvVar struct {
	Name     string
	External bool
	Literal  string // meaningful only when External is false
	Default  string // meaningful only when External is true
	HasDefault bool
}

// Config is a fully validated node produced by the Analyzer.
//
// Dependencies is always canonically sorted by (Target.PackageDir,
// Target.Name) before a Config is considered valid — see
// internal/analyzer.
type Config struct {
	Ref Reference

	Command string // empty means "no command"
	HasCommand bool

	Dependencies []Dependency

	Files  []string
	Output []string

	Clean CleanPolicy

	Service bool

	Env []EnvVar

	PackageLocks []string

	// ExtraArgs is only meaningful when Ref is the root of an execution.
	ExtraArgs []string
}

// SortDependencies sorts dependencies canonically by (PackageDir, Name),
// matching spec.md's "canonically sorted by (packageDir, name)" requirement
// for ScriptConfig.Dependencies and for Analyzer cycle-detection traversal.
func SortDependencies(deps []Dependency) []Dependency {
	out := append([]Dependency(nil), deps...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Target.PackageDir != out[j].Target.PackageDir {
			return out[i].Target.PackageDir < out[j].Target.PackageDir
		}
		return out[i].Target.Name < out[j].Target.Name
	})
	return out
}

// DefaultPackageLocks is the default packageLocks list when a config omits
// the field entirely. An explicit empty array (as opposed to an absent
// field) disables lockfile amendment; that distinction is tracked by the
// manifest layer, not here.
var DefaultPackageLocks = []string{"package-lock.json"}
