// Package script defines the identity and configuration types shared by the
// analyzer, fingerprinter, and executor: a ScriptReference, the Dependency
// edges between references, and the validated ScriptConfig a reference
// resolves to.
package script

import "encoding/json"

// Reference is the identity of a script: the absolute directory of the
// package that declares it, plus its name within that package's manifest.
//
// Two references are equal iff both fields are equal byte-for-byte.
type Reference struct {
	PackageDir string
	Name       string
}

// Key returns the canonical map-key encoding of a reference: the JSON
// encoding of [packageDir, name]. Two references with the same Key are the
// same script.
func (r Reference) Key() string {
	b, err := json.Marshal([2]string{r.PackageDir, r.Name})
	if err != nil {
		// Reference fields are plain strings; Marshal cannot fail.
		panic(err)
	}
	return string(b)
}

func (r Reference) String() string {
	return r.PackageDir + "#" + r.Name
}

// Dependency is an edge from a script to a target it depends on.
//
// Cascade controls whether the target's fingerprint flows into the
// dependent's fingerprint. cascade=false still requires the target to
// complete before the dependent runs; it just excludes the target's
// fingerprint from the dependent's.
type Dependency struct {
	Target  Reference
	Cascade bool
}
