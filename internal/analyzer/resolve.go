package analyzer

import (
	"path/filepath"
	"strings"

	"github.com/loomrun/loom/internal/manifest"
	"github.com/loomrun/loom/internal/script"
)

const wireitSentinel = "wireit"

// wireitAlias is the sole accepted alias for the wireit sentinel (spec.md
// §9 open question: "do not invent new ones without a design note" — see
// DESIGN.md).
const wireitAlias = "yarn run -TB wireit"

func isWireitSentinel(scriptCommand string) bool {
	return scriptCommand == wireitSentinel || scriptCommand == wireitAlias
}

// resolvedDependency is one dependency string or object form, resolved to
// zero or more concrete references (zero only for a failed "<dependencies>#"
// expansion, which is itself a failure).
type resolvedDependency struct {
	targets []script.Reference
	cascade bool
	pos     manifest.Position
	// raw is the original declared string, for DuplicateDependency messages.
	raw string
}

// resolveDependency turns one raw dependency entry into concrete targets.
// pkg is the declaring package (for same-package and <dependencies>#
// expansion); pkgDir is its absolute directory.
func resolveDependency(pkg *manifest.Package, pkgDir string, raw manifest.RawDependency) (resolvedDependency, *Failure) {
	cascade := true
	if raw.HasCascade {
		cascade = raw.Cascade
	}

	s := raw.Script
	if s == "" {
		return resolvedDependency{}, newFailure(KindInvalidConfigSyntax, script.Reference{PackageDir: pkgDir}, raw.Pos,
			"dependency script name must not be empty")
	}

	if strings.HasPrefix(s, "<dependencies>#") {
		name := strings.TrimPrefix(s, "<dependencies>#")
		if name == "" {
			return resolvedDependency{}, newFailure(KindInvalidConfigSyntax, script.Reference{PackageDir: pkgDir}, raw.Pos,
				"<dependencies> expansion requires a script name")
		}
		// Every declared dependency and devDependency becomes a target,
		// whether or not its package defines the script; one that does not
		// is reported later as a dependency on a missing script.
		var targets []script.Reference
		for _, dep := range append(append([]string{}, pkg.Dependencies...), pkg.DevDependencies...) {
			depDir := filepath.Join(pkgDir, "node_modules", dep)
			targets = append(targets, script.Reference{PackageDir: depDir, Name: name})
		}
		if len(targets) == 0 {
			return resolvedDependency{}, newFailure(KindDependencyOnMissingScript, script.Reference{PackageDir: pkgDir}, raw.Pos,
				"<dependencies>#%s: the package declares no dependencies or devDependencies", name)
		}
		return resolvedDependency{targets: targets, cascade: cascade, pos: raw.Pos, raw: s}, nil
	}

	sep := -1
	if i := strings.Index(s, "#"); i >= 0 {
		sep = i
	} else if i := strings.Index(s, ":"); i >= 0 {
		sep = i
	}
	if sep < 0 {
		return resolvedDependency{
			targets: []script.Reference{{PackageDir: pkgDir, Name: s}},
			cascade: cascade,
			pos:     raw.Pos,
			raw:     s,
		}, nil
	}

	relPath := s[:sep]
	name := s[sep+1:]
	if relPath == "" || name == "" {
		return resolvedDependency{}, newFailure(KindInvalidConfigSyntax, script.Reference{PackageDir: pkgDir}, raw.Pos,
			"cross-package dependency %q must have a non-empty path and script name", s)
	}

	targetDir := filepath.Join(pkgDir, relPath)
	if targetDir == pkgDir {
		return resolvedDependency{}, newFailure(KindInvalidConfigSyntax, script.Reference{PackageDir: pkgDir}, raw.Pos,
			"cross-package dependency %q resolves to its own package", s)
	}

	return resolvedDependency{
		targets: []script.Reference{{PackageDir: targetDir, Name: name}},
		cascade: cascade,
		pos:     raw.Pos,
		raw:     s,
	}, nil
}

// packageLockPatterns returns the ancestor-depth lockfile glob patterns
// appended to `files` per spec.md §4.2 ("append ... at every ancestor depth
// ... up to the filesystem root").
func packageLockPatterns(pkgDir string, locks []string) []string {
	var out []string
	dir := pkgDir
	prefix := ""
	for {
		for _, lock := range locks {
			out = append(out, prefix+lock)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
		prefix = prefix + "../"
	}
	return out
}
