package analyzer

import (
	"errors"
	"fmt"

	"github.com/loomrun/loom/internal/manifest"
	"github.com/loomrun/loom/internal/script"
)

// Sentinel errors for programmatic checking via errors.Is().
var (
	// ErrManifest wraps PackageReader failures surfaced during graph
	// construction (MissingPackageJson, InvalidPackageJson, InvalidConfigShape).
	ErrManifest = errors.New("manifest error")

	// ErrConfig indicates a wireit config shape violation.
	ErrConfig = errors.New("invalid config")

	// ErrReference indicates a dependency edge could not be resolved.
	ErrReference = errors.New("unresolved reference")

	// ErrStructural indicates a graph-shape violation: cycle or
	// propagated dependency invalidity.
	ErrStructural = errors.New("structural error")
)

// Kind enumerates spec.md §7's error taxonomy entries that originate from
// the Analyzer.
type Kind string

const (
	KindMissingPackageJSON            Kind = "MissingPackageJson"
	KindInvalidPackageJSON            Kind = "InvalidPackageJson"
	KindInvalidConfigSyntax           Kind = "InvalidConfigSyntax"
	KindScriptNotFound                Kind = "ScriptNotFound"
	KindScriptNotWireit               Kind = "ScriptNotWireit"
	KindDependencyOnMissingScript     Kind = "DependencyOnMissingScript"
	KindDependencyOnMissingPackageJSON Kind = "DependencyOnMissingPackageJson"
	KindDuplicateDependency           Kind = "DuplicateDependency"
	KindCycle                         Kind = "Cycle"
	KindDependencyInvalid             Kind = "DependencyInvalid"
	KindOutputOutsidePackage          Kind = "OutputOutsidePackage"
)

// Severity distinguishes warnings (ScriptNotWireit) from fatal failures.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Failure is one diagnostic produced during analysis, carrying enough
// context to print a precise message and to participate in the
// "supersedes" deduplication described in spec.md §4.2.
type Failure struct {
	Kind     Kind
	Severity Severity
	Ref      script.Reference
	Message  string
	Pos      manifest.Position

	// Locations are additional byte-offset positions relevant to the
	// failure: both occurrences of a DuplicateDependency, every edge of a
	// Cycle, etc.
	Locations []manifest.Position

	// supersedes, when non-nil, names a failure that this one replaces.
	// Resolved into removal of the superseded failure at the end of
	// analysis (§4.2 "diagnostic deduplication").
	supersedes *Failure
}

func (f *Failure) Error() string {
	if f.Pos.File != "" {
		return fmt.Sprintf("%s: %s: %s: %s", f.Kind, f.Ref, f.Pos, f.Message)
	}
	return fmt.Sprintf("%s: %s: %s", f.Kind, f.Ref, f.Message)
}

func (f *Failure) Unwrap() error {
	switch f.Kind {
	case KindMissingPackageJSON, KindInvalidPackageJSON:
		return ErrManifest
	case KindInvalidConfigSyntax, KindScriptNotWireit:
		return ErrConfig
	case KindScriptNotFound, KindDependencyOnMissingScript, KindDependencyOnMissingPackageJSON:
		return ErrReference
	case KindDuplicateDependency:
		return ErrConfig
	case KindCycle, KindDependencyInvalid:
		return ErrStructural
	case KindOutputOutsidePackage:
		return ErrConfig
	default:
		return ErrConfig
	}
}

func newFailure(kind Kind, ref script.Reference, pos manifest.Position, format string, args ...any) *Failure {
	return &Failure{
		Kind:     kind,
		Severity: SeverityError,
		Ref:      ref,
		Pos:      pos,
		Message:  fmt.Sprintf(format, args...),
	}
}

func newWarning(kind Kind, ref script.Reference, pos manifest.Position, format string, args ...any) *Failure {
	f := newFailure(kind, ref, pos, format, args...)
	f.Severity = SeverityWarning
	return f
}
