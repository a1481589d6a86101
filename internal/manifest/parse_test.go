package manifest

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writePackageJSON(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, "package.json"), []byte(content), 0o644); err != nil {
		t.Fatalf("write package.json: %v", err)
	}
}

func TestParseMissingPackageJSON(t *testing.T) {
	dir := t.TempDir()
	_, err := Parse(dir)
	var missing *MissingPackageJSONError
	if !errors.As(err, &missing) {
		t.Fatalf("Parse() error = %v, want *MissingPackageJSONError", err)
	}
}

func TestParseInvalidJSON(t *testing.T) {
	dir := t.TempDir()
	writePackageJSON(t, dir, `{ not json`)

	_, err := Parse(dir)
	var invalid *InvalidPackageJSONError
	if !errors.As(err, &invalid) {
		t.Fatalf("Parse() error = %v, want *InvalidPackageJSONError", err)
	}
}

func TestParseScriptsAndWireit(t *testing.T) {
	dir := t.TempDir()
	writePackageJSON(t, dir, `{
		"dependencies": {"left-pad": "^1.0.0"},
		"devDependencies": {"eslint": "^8.0.0"},
		"scripts": {
			"build": "wireit",
			"plain": "echo hi"
		},
		"wireit": {
			"build": {
				"command": "tsc",
				"files": ["src/**/*.ts"],
				"output": ["lib/**"],
				"dependencies": ["./dep#build", {"script": "./other#build", "cascade": false}],
				"clean": "if-file-deleted",
				"env": {
					"NODE_ENV": "production",
					"HOME": {"external": true, "default": "/root"}
				}
			}
		}
	}`)

	pkg, err := Parse(dir)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if pkg.Scripts["build"] != "wireit" || pkg.Scripts["plain"] != "echo hi" {
		t.Fatalf("unexpected scripts: %+v", pkg.Scripts)
	}
	if len(pkg.Dependencies) != 1 || pkg.Dependencies[0] != "left-pad" {
		t.Fatalf("unexpected dependencies: %+v", pkg.Dependencies)
	}
	if len(pkg.DevDependencies) != 1 || pkg.DevDependencies[0] != "eslint" {
		t.Fatalf("unexpected devDependencies: %+v", pkg.DevDependencies)
	}

	build, ok := pkg.Wireit["build"]
	if !ok {
		t.Fatalf("expected wireit.build to exist")
	}
	if !build.HasCommand || *build.Command != "tsc" {
		t.Fatalf("unexpected command: %+v", build)
	}
	if !build.HasFiles || len(build.Files) != 1 || build.Files[0] != "src/**/*.ts" {
		t.Fatalf("unexpected files: %+v", build.Files)
	}
	if !build.HasClean || *build.Clean != "if-file-deleted" {
		t.Fatalf("unexpected clean: %+v", build.Clean)
	}
	if len(build.Dependencies) != 2 {
		t.Fatalf("expected 2 dependencies, got %d", len(build.Dependencies))
	}
	if build.Dependencies[0].Script != "./dep#build" {
		t.Fatalf("unexpected first dependency: %+v", build.Dependencies[0])
	}
	if build.Dependencies[1].Script != "./other#build" || !build.Dependencies[1].HasCascade || build.Dependencies[1].Cascade {
		t.Fatalf("unexpected second dependency: %+v", build.Dependencies[1])
	}

	nodeEnv, ok := build.Env["NODE_ENV"]
	if !ok || nodeEnv.External || nodeEnv.Literal != "production" {
		t.Fatalf("unexpected NODE_ENV entry: %+v", nodeEnv)
	}
	home, ok := build.Env["HOME"]
	if !ok || !home.External || !home.HasDefault || home.Default != "/root" {
		t.Fatalf("unexpected HOME entry: %+v", home)
	}
}

func TestParseLegacyBooleanClean(t *testing.T) {
	dir := t.TempDir()
	writePackageJSON(t, dir, `{
		"scripts": {"build": "wireit"},
		"wireit": {"build": {"command": "tsc", "clean": false}}
	}`)

	pkg, err := Parse(dir)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	build := pkg.Wireit["build"]
	if !build.HasClean || *build.Clean != "false" {
		t.Fatalf("legacy boolean clean not normalized: %+v", build.Clean)
	}
}

func TestParseRejectsNonObjectScripts(t *testing.T) {
	dir := t.TempDir()
	writePackageJSON(t, dir, `{"scripts": ["not", "an", "object"]}`)

	_, err := Parse(dir)
	var shapeErr *InvalidConfigShapeError
	if !errors.As(err, &shapeErr) {
		t.Fatalf("Parse() error = %v, want *InvalidConfigShapeError", err)
	}
}

func TestScriptAndWireitPositionsAreReported(t *testing.T) {
	dir := t.TempDir()
	writePackageJSON(t, dir, `{
		"scripts": {"build": "wireit"},
		"wireit": {"build": {"command": "tsc"}}
	}`)

	pkg, err := Parse(dir)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if pos := pkg.ScriptPosition("build"); pos.File == "" {
		t.Fatalf("expected a non-empty position for scripts.build")
	}
	if pos := pkg.WireitPosition("build"); pos.File == "" {
		t.Fatalf("expected a non-empty position for wireit.build")
	}
}
