package manifest

import "encoding/json"

// RawDependency is the union of the two accepted dependency declaration
// forms: a bare string, or an object with an explicit cascade flag.
type RawDependency struct {
	// Script is always populated, whether the source was a bare string or
	// an object form.
	Script string

	Cascade    bool
	HasCascade bool

	Pos Position
}

// RawWireitConfig is the wireit[name] object as declared in the manifest,
// before analyzer validation. Unset slice/pointer fields distinguish
// "absent" from "present but empty", which matters for e.g. packageLocks
// (spec.md §4.2: "an explicit empty packageLocks array disables this
// behavior").
type RawWireitConfig struct {
	Command    *string
	HasCommand bool

	Dependencies []RawDependency

	Files  []string
	HasFiles bool

	Output  []string
	HasOutput bool

	Clean    *string
	HasClean bool

	Service        bool
	HasService     bool
	ServiceIsObject bool

	Env map[string]RawEnvEntry

	PackageLocks    []string
	HasPackageLocks bool

	AllowUsuallyExcludedPaths bool

	Pos Position
}

// RawEnvEntry is one entry of the wireit[name].env map.
type RawEnvEntry struct {
	// Literal is used when External is false.
	Literal string
	// External/Default/HasDefault are used when External is true.
	External   bool
	Default    string
	HasDefault bool
	Pos        Position
}

// Package is the parsed result of a single package.json: the scripts map,
// the wireit config map, and a position index for diagnostics.
type Package struct {
	Dir     string
	File    string
	Scripts map[string]string
	Wireit  map[string]RawWireitConfig

	// Dependencies/DevDependencies are used only to expand
	// "<dependencies>#name" edges (spec.md §4.2).
	Dependencies    []string
	DevDependencies []string

	positions offsetIndex
}

// ScriptPosition returns the diagnostic position of scripts[name], or a
// file-only position if name is not declared.
func (p *Package) ScriptPosition(name string) Position {
	return p.positions.positionFor(p.File, joinPath("scripts", name))
}

// WireitPosition returns the diagnostic position of wireit[name].
func (p *Package) WireitPosition(name string) Position {
	return p.positions.positionFor(p.File, joinPath("wireit", name))
}

type rawPackageJSON struct {
	Scripts         json.RawMessage `json:"scripts"`
	Wireit          json.RawMessage `json:"wireit"`
	Dependencies    map[string]string `json:"dependencies"`
	DevDependencies map[string]string `json:"devDependencies"`
}
