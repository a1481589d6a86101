package analyzer

import (
	"strings"

	"github.com/loomrun/loom/internal/manifest"
	"github.com/loomrun/loom/internal/script"
)

// upgrade performs phase-1 validation for n: read its manifest, validate
// its config shape, resolve dependency references, and register a
// placeholder (but not a validated config) for each. It never blocks on a
// dependency's own upgrade.
func (a *session) upgrade(n *node, extraArgs []string) {
	ref := n.ref

	pkg, err := a.reader.Read(ref.PackageDir)
	if err != nil {
		n.finishInvalid(manifestFailure(ref, err))
		return
	}

	info := a.reader.GetScriptInfo(pkg, ref.Name)
	if !info.Declared {
		n.finishInvalid(newFailure(KindScriptNotFound, ref, info.ScriptPosition,
			"package %s has no script named %q", ref.PackageDir, ref.Name))
		return
	}

	sentinel := isWireitSentinel(info.ScriptCommand)

	if !info.HasWireit {
		if sentinel {
			n.finishInvalid(newFailure(KindInvalidConfigSyntax, ref, info.ScriptPosition,
				"script %q is the wireit sentinel but has no wireit config", ref.Name))
			return
		}
		// Plain script: a leaf with its literal command, no wireit
		// dependency graph participation.
		cfg := &script.Config{
			Ref:          ref,
			Command:      info.ScriptCommand,
			HasCommand:   info.ScriptCommand != "",
			Clean:        script.CleanTrue,
			PackageLocks: script.DefaultPackageLocks,
		}
		n.finishLocallyValid(cfg, nil, nil)
		return
	}

	var warnings []*Failure
	if !sentinel {
		warnings = append(warnings, newWarning(KindScriptNotWireit, ref, info.ScriptPosition,
			"wireit config declared for %q but scripts[%q] is %q, not the wireit sentinel",
			ref.Name, ref.Name, info.ScriptCommand))
	}

	raw := info.Wireit
	cfg, edgePos, failures := a.validateWireitConfig(ref, pkg, raw)
	if len(failures) > 0 {
		n.finishInvalid(failures...)
		return
	}

	n.finishLocallyValid(cfg, edgePos, warnings)

	for _, dep := range cfg.Dependencies {
		child, created := a.table.getOrCreate(dep.Target)
		if created {
			a.spawn(child, nil)
		}
	}
}

func manifestFailure(ref script.Reference, err error) *Failure {
	switch e := err.(type) {
	case *manifest.MissingPackageJSONError:
		return newFailure(KindMissingPackageJSON, ref, manifest.Position{}, "%s", e.Error())
	case *manifest.InvalidPackageJSONError:
		return newFailure(KindInvalidPackageJSON, ref, e.Pos, "%s", e.Error())
	case *manifest.InvalidConfigShapeError:
		return newFailure(KindInvalidConfigSyntax, ref, e.Pos, "%s", e.Error())
	default:
		return newFailure(KindInvalidPackageJSON, ref, manifest.Position{}, "%v", err)
	}
}

// validateWireitConfig enforces spec.md §4.2's config validation rules and
// resolves dependency references, returning edge declaration positions
// (for Cycle diagnostics) keyed by target canonical key.
func (a *session) validateWireitConfig(ref script.Reference, pkg *manifest.Package, raw manifest.RawWireitConfig) (*script.Config, map[string]manifest.Position, []*Failure) {
	var failures []*Failure

	if !raw.HasCommand && len(raw.Dependencies) == 0 && !raw.HasFiles {
		failures = append(failures, newFailure(KindInvalidConfigSyntax, ref, raw.Pos,
			"wireit config must declare at least one of command, dependencies, files"))
	}

	command := ""
	if raw.HasCommand {
		command = *raw.Command
		if command == "" {
			failures = append(failures, newFailure(KindInvalidConfigSyntax, ref, raw.Pos, "command must be non-empty"))
		}
	}

	if raw.HasOutput && !raw.HasCommand {
		failures = append(failures, newFailure(KindInvalidConfigSyntax, ref, raw.Pos, "output requires command"))
	}

	if raw.HasService {
		if !raw.HasCommand {
			failures = append(failures, newFailure(KindInvalidConfigSyntax, ref, raw.Pos, "service requires command"))
		}
		if raw.HasOutput {
			failures = append(failures, newFailure(KindInvalidConfigSyntax, ref, raw.Pos, "service must not declare output"))
		}
	}

	clean := script.CleanTrue
	if raw.HasClean {
		switch *raw.Clean {
		case "true":
			clean = script.CleanTrue
		case "false":
			clean = script.CleanFalse
		case "if-file-deleted":
			clean = script.CleanIfFileDeleted
		default:
			failures = append(failures, newFailure(KindInvalidConfigSyntax, ref, raw.Pos,
				"clean must be true, false, or \"if-file-deleted\", got %q", *raw.Clean))
		}
	}

	for _, f := range raw.Files {
		if f == "" {
			failures = append(failures, newFailure(KindInvalidConfigSyntax, ref, raw.Pos, "files entries must be non-empty"))
			break
		}
	}
	for _, o := range raw.Output {
		if o == "" {
			failures = append(failures, newFailure(KindInvalidConfigSyntax, ref, raw.Pos, "output entries must be non-empty"))
			break
		}
	}

	packageLocks := script.DefaultPackageLocks
	if raw.HasPackageLocks {
		packageLocks = raw.PackageLocks
		for _, l := range packageLocks {
			if strings.ContainsAny(l, "/\\") {
				failures = append(failures, newFailure(KindInvalidConfigSyntax, ref, raw.Pos,
					"packageLocks entries must be basenames, got %q", l))
			}
		}
	}

	var env []script.EnvVar
	for name, e := range raw.Env {
		v := script.EnvVar{Name: name}
		if e.External {
			v.External = true
			v.Default = e.Default
			v.HasDefault = e.HasDefault
		} else {
			v.Literal = e.Literal
		}
		env = append(env, v)
	}

	// Resolve dependencies and detect duplicates by resolved target.
	seen := map[string]manifest.Position{}
	var deps []script.Dependency
	edgePos := map[string]manifest.Position{}

	for _, rd := range raw.Dependencies {
		resolved, failure := resolveDependency(pkg, ref.PackageDir, rd)
		if failure != nil {
			failures = append(failures, failure)
			continue
		}
		for _, target := range resolved.targets {
			key := target.Key()
			if firstPos, dup := seen[key]; dup {
				failures = append(failures, &Failure{
					Kind:     KindDuplicateDependency,
					Severity: SeverityError,
					Ref:      ref,
					Message:  "dependency " + target.String() + " declared more than once",
					Pos:      firstPos,
					Locations: []manifest.Position{firstPos, resolved.pos},
				})
				continue
			}
			seen[key] = resolved.pos
			deps = append(deps, script.Dependency{Target: target, Cascade: resolved.cascade})
			edgePos[key] = resolved.pos
		}
	}

	if len(failures) > 0 {
		return nil, nil, failures
	}

	deps = script.SortDependencies(deps)

	var files []string
	files = append(files, raw.Files...)
	if raw.HasFiles && (!raw.HasPackageLocks || len(packageLocks) > 0) {
		files = append(files, packageLockPatterns(ref.PackageDir, packageLocks)...)
	}

	cfg := &script.Config{
		Ref:          ref,
		Command:      command,
		HasCommand:   raw.HasCommand,
		Dependencies: deps,
		Files:        files,
		Output:       raw.Output,
		Clean:        clean,
		Service:      raw.HasService,
		Env:          env,
		PackageLocks: packageLocks,
	}

	return cfg, edgePos, nil
}
