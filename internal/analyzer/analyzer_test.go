package analyzer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/loomrun/loom/internal/manifest"
	"github.com/loomrun/loom/internal/script"
)

func writePackageJSON(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	if err := os.WriteFile(filepath.Join(dir, "package.json"), []byte(content), 0o644); err != nil {
		t.Fatalf("write package.json in %s: %v", dir, err)
	}
}

func TestAnalyzePlainScriptIsALeaf(t *testing.T) {
	dir := t.TempDir()
	writePackageJSON(t, dir, `{"scripts": {"greet": "echo hi"}}`)

	a := New(manifest.NewPackageReader())
	root := script.Reference{PackageDir: dir, Name: "greet"}
	graph, failures := a.Analyze(context.Background(), root, nil)
	if len(failures) != 0 {
		t.Fatalf("unexpected failures: %v", failures)
	}
	cfg, ok := graph.Config(root)
	if !ok {
		t.Fatalf("root not present in graph")
	}
	if cfg.Command != "echo hi" || len(cfg.Dependencies) != 0 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestAnalyzeWireitWithLocalDependency(t *testing.T) {
	dir := t.TempDir()
	writePackageJSON(t, dir, `{
		"scripts": {"build": "wireit", "compile": "wireit"},
		"wireit": {
			"build": {"command": "bundle", "dependencies": ["compile"]},
			"compile": {"command": "tsc", "files": ["src/**/*.ts"]}
		}
	}`)

	a := New(manifest.NewPackageReader())
	root := script.Reference{PackageDir: dir, Name: "build"}
	graph, failures := a.Analyze(context.Background(), root, nil)
	if len(failures) != 0 {
		t.Fatalf("unexpected failures: %v", failures)
	}
	cfg, ok := graph.Config(root)
	if !ok {
		t.Fatalf("root not present in graph")
	}
	if len(cfg.Dependencies) != 1 || cfg.Dependencies[0].Target.Name != "compile" {
		t.Fatalf("unexpected dependencies: %+v", cfg.Dependencies)
	}
	if _, ok := graph.Config(cfg.Dependencies[0].Target); !ok {
		t.Fatalf("dependency compile was not upgraded into the graph")
	}
}

func TestAnalyzeCrossPackageDependency(t *testing.T) {
	root := t.TempDir()
	app := filepath.Join(root, "app")
	lib := filepath.Join(root, "lib")

	writePackageJSON(t, app, `{
		"scripts": {"build": "wireit"},
		"wireit": {"build": {"command": "bundle", "dependencies": ["../lib#build"]}}
	}`)
	writePackageJSON(t, lib, `{"scripts": {"build": "wireit"}, "wireit": {"build": {"command": "tsc", "files": ["src/**"]}}}`)

	a := New(manifest.NewPackageReader())
	ref := script.Reference{PackageDir: app, Name: "build"}
	graph, failures := a.Analyze(context.Background(), ref, nil)
	if len(failures) != 0 {
		t.Fatalf("unexpected failures: %v", failures)
	}
	cfg, _ := graph.Config(ref)
	if len(cfg.Dependencies) != 1 {
		t.Fatalf("expected one dependency, got %+v", cfg.Dependencies)
	}
	target := cfg.Dependencies[0].Target
	if target.PackageDir != lib || target.Name != "build" {
		t.Fatalf("unexpected resolved target: %+v", target)
	}
}

func TestAnalyzeMissingPackageJSON(t *testing.T) {
	dir := t.TempDir()

	a := New(manifest.NewPackageReader())
	root := script.Reference{PackageDir: dir, Name: "build"}
	graph, failures := a.Analyze(context.Background(), root, nil)
	if graph != nil {
		t.Fatalf("expected a nil graph")
	}
	if len(failures) != 1 || failures[0].Kind != KindMissingPackageJSON {
		t.Fatalf("unexpected failures: %v", failures)
	}
}

func TestAnalyzeScriptNotFound(t *testing.T) {
	dir := t.TempDir()
	writePackageJSON(t, dir, `{"scripts": {"test": "jest"}}`)

	a := New(manifest.NewPackageReader())
	root := script.Reference{PackageDir: dir, Name: "build"}
	graph, failures := a.Analyze(context.Background(), root, nil)
	if graph != nil {
		t.Fatalf("expected a nil graph")
	}
	if len(failures) != 1 || failures[0].Kind != KindScriptNotFound {
		t.Fatalf("unexpected failures: %v", failures)
	}
}

func TestAnalyzeDirectCycle(t *testing.T) {
	dir := t.TempDir()
	writePackageJSON(t, dir, `{
		"scripts": {"a": "wireit", "b": "wireit"},
		"wireit": {
			"a": {"command": "echo a", "dependencies": ["b"]},
			"b": {"command": "echo b", "dependencies": ["a"]}
		}
	}`)

	a := New(manifest.NewPackageReader())
	root := script.Reference{PackageDir: dir, Name: "a"}
	graph, failures := a.Analyze(context.Background(), root, nil)
	if graph != nil {
		t.Fatalf("expected a nil graph for a cyclic dependency")
	}
	found := false
	for _, f := range failures {
		if f.Kind == KindCycle {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a Cycle failure, got %v", failures)
	}
}

func TestAnalyzeDuplicateDependency(t *testing.T) {
	dir := t.TempDir()
	writePackageJSON(t, dir, `{
		"scripts": {"build": "wireit", "compile": "wireit"},
		"wireit": {
			"build": {"command": "bundle", "dependencies": ["compile", "compile"]},
			"compile": {"command": "tsc", "files": ["src/**"]}
		}
	}`)

	a := New(manifest.NewPackageReader())
	root := script.Reference{PackageDir: dir, Name: "build"}
	graph, failures := a.Analyze(context.Background(), root, nil)
	if graph != nil {
		t.Fatalf("expected a nil graph for a duplicate dependency")
	}
	if len(failures) != 1 || failures[0].Kind != KindDuplicateDependency {
		t.Fatalf("unexpected failures: %v", failures)
	}
}

func TestAnalyzeDependencyInvalidPropagates(t *testing.T) {
	dir := t.TempDir()
	writePackageJSON(t, dir, `{
		"scripts": {"build": "wireit"},
		"wireit": {"build": {"command": "bundle", "dependencies": ["missing"]}}
	}`)

	a := New(manifest.NewPackageReader())
	root := script.Reference{PackageDir: dir, Name: "build"}
	graph, failures := a.Analyze(context.Background(), root, nil)
	if graph != nil {
		t.Fatalf("expected a nil graph")
	}
	kinds := map[Kind]bool{}
	for _, f := range failures {
		kinds[f.Kind] = true
	}
	if !kinds[KindDependencyOnMissingScript] {
		t.Fatalf("expected a DependencyOnMissingScript failure, got %v", failures)
	}
}

func TestAnalyzeScriptNotWireitIsAWarningOnly(t *testing.T) {
	dir := t.TempDir()
	writePackageJSON(t, dir, `{
		"scripts": {"build": "tsc"},
		"wireit": {"build": {"command": "tsc"}}
	}`)

	a := New(manifest.NewPackageReader())
	root := script.Reference{PackageDir: dir, Name: "build"}
	graph, failures := a.Analyze(context.Background(), root, nil)
	if graph == nil {
		t.Fatalf("expected a usable graph despite the warning, failures: %v", failures)
	}
	if len(failures) != 1 || failures[0].Kind != KindScriptNotWireit || failures[0].Severity != SeverityWarning {
		t.Fatalf("unexpected failures: %v", failures)
	}
}

func TestAnalyzeRootExtraArgsAttachedOnlyToRoot(t *testing.T) {
	dir := t.TempDir()
	writePackageJSON(t, dir, `{
		"scripts": {"build": "wireit", "compile": "wireit"},
		"wireit": {
			"build": {"command": "bundle", "dependencies": ["compile"]},
			"compile": {"command": "tsc", "files": ["src/**"]}
		}
	}`)

	a := New(manifest.NewPackageReader())
	root := script.Reference{PackageDir: dir, Name: "build"}
	graph, failures := a.Analyze(context.Background(), root, []string{"--watch"})
	if len(failures) != 0 {
		t.Fatalf("unexpected failures: %v", failures)
	}
	rootCfg, _ := graph.Config(root)
	if len(rootCfg.ExtraArgs) != 1 || rootCfg.ExtraArgs[0] != "--watch" {
		t.Fatalf("expected ExtraArgs on the root, got %+v", rootCfg.ExtraArgs)
	}
	depCfg, _ := graph.Config(rootCfg.Dependencies[0].Target)
	if len(depCfg.ExtraArgs) != 0 {
		t.Fatalf("expected no ExtraArgs on the dependency, got %+v", depCfg.ExtraArgs)
	}
}

func TestAnalyzeDependenciesExpansion(t *testing.T) {
	root := t.TempDir()
	app := filepath.Join(root, "app")
	dep := filepath.Join(app, "node_modules", "left-pad")

	writePackageJSON(t, app, `{
		"dependencies": {"left-pad": "^1.0.0"},
		"scripts": {"build": "wireit"},
		"wireit": {"build": {"command": "bundle", "dependencies": ["<dependencies>#build"]}}
	}`)
	writePackageJSON(t, dep, `{"scripts": {"build": "wireit"}, "wireit": {"build": {"command": "tsc", "files": ["src/**"]}}}`)

	a := New(manifest.NewPackageReader())
	ref := script.Reference{PackageDir: app, Name: "build"}
	graph, failures := a.Analyze(context.Background(), ref, nil)
	if len(failures) != 0 {
		t.Fatalf("unexpected failures: %v", failures)
	}
	cfg, _ := graph.Config(ref)
	if len(cfg.Dependencies) != 1 || cfg.Dependencies[0].Target.PackageDir != dep {
		t.Fatalf("unexpected dependencies: %+v", cfg.Dependencies)
	}
}

func TestAnalyzeDependenciesExpansionWithNoMatches(t *testing.T) {
	dir := t.TempDir()
	writePackageJSON(t, dir, `{
		"scripts": {"build": "wireit"},
		"wireit": {"build": {"command": "bundle", "dependencies": ["<dependencies>#build"]}}
	}`)

	a := New(manifest.NewPackageReader())
	ref := script.Reference{PackageDir: dir, Name: "build"}
	graph, failures := a.Analyze(context.Background(), ref, nil)
	if graph != nil {
		t.Fatalf("expected a nil graph")
	}
	if len(failures) != 1 || failures[0].Kind != KindDependencyOnMissingScript {
		t.Fatalf("unexpected failures: %v", failures)
	}
}
