package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/loomrun/loom/internal/analyzer"
	"github.com/loomrun/loom/internal/cachestore"
	"github.com/loomrun/loom/internal/executor"
	"github.com/loomrun/loom/internal/failure"
	"github.com/loomrun/loom/internal/fingerprint"
	"github.com/loomrun/loom/internal/globfs"
	"github.com/loomrun/loom/internal/hooks"
	"github.com/loomrun/loom/internal/logging"
	"github.com/loomrun/loom/internal/manifest"
	"github.com/loomrun/loom/internal/script"
	"github.com/loomrun/loom/internal/workerpool"
	"github.com/loomrun/loom/internal/workspace"
)

// builtinPlugins is the CLI's in-process plugin registration point: a
// manifest under .loom/plugins/<dir>/manifest.json only takes effect if its
// plugin_id has a matching entry here, since loom has no dynamic code
// loading. Empty until a first built-in plugin ships; any manifest found
// without a matching entry is reported as a warning, not a hard failure
// (see hooks.NewEngine).
var builtinPlugins []hooks.Plugin

// defaultParallelism mirrors wireit's WIREIT_PARALLEL default of treating
// "unset" as effectively unbounded, scaled down to a sane worker count
// since loom spawns real OS processes rather than a cooperative scheduler.
const defaultParallelism = 16

func workerPool(parallel int64) *workerpool.Pool {
	if parallel <= 0 {
		parallel = parsePositiveInt(os.Getenv("LOOM_PARALLEL"), defaultParallelism)
	}
	return workerpool.New(parallel)
}

// parseScriptArg resolves a CLI script argument into a script.Reference.
// "name" resolves against cwd; "./relative/dir#name" or an absolute
// "/path#name" names a specific package directory, matching the same
// "#"-separated syntax accepted in dependency declarations.
func parseScriptArg(cwd, arg string) (script.Reference, error) {
	if arg == "" {
		return script.Reference{}, fmt.Errorf("script name is required")
	}
	if idx := strings.LastIndex(arg, "#"); idx >= 0 {
		dir, name := arg[:idx], arg[idx+1:]
		if dir == "" || name == "" {
			return script.Reference{}, fmt.Errorf("invalid script reference %q", arg)
		}
		return script.Reference{PackageDir: resolveDir(cwd, dir), Name: name}, nil
	}
	return script.Reference{PackageDir: cwd, Name: arg}, nil
}

func resolveDir(cwd, dir string) string {
	if strings.HasPrefix(dir, "/") {
		return dir
	}
	return cwd + "/" + dir
}

func parsePositiveInt(s string, fallback int64) int64 {
	if s == "" {
		return fallback
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

// analyze runs the Analyzer against root, printing every Failure (including
// warnings) to stderr. It only reports overall failure when graph comes back
// nil.
func analyze(ctx context.Context, reader *manifest.PackageReader, root script.Reference, extraArgs []string, stderr *os.File) (*analyzer.Graph, bool) {
	a := analyzer.New(reader)
	graph, failures := a.Analyze(ctx, root, extraArgs)
	for _, f := range failures {
		fmt.Fprintln(stderr, f.Error())
	}
	return graph, graph != nil
}

type runEnv struct {
	log         logging.Logger
	coordinator *failure.Coordinator
	cache       cachestore.Cache
	hookEngine  *hooks.Engine
}

// buildRunEnv wires the ambient pieces (logging, failure policy, cache,
// discovered plugins) an Executor needs, shared between `loom run` and
// `loom watch`.
func buildRunEnv(packageDir, failurePolicy, cacheMode, pluginsDir string) (*runEnv, error) {
	log := logging.New(os.Stderr, os.Getenv("LOOM_LOG_LEVEL"))

	coord := failure.New(failure.Policy(failurePolicy))

	ws, err := workspace.Ensure(packageDir)
	if err != nil {
		return nil, err
	}

	mode := cachestore.ResolveMode(cacheMode, os.Getenv("CI") != "")
	var cache cachestore.Cache
	if mode == cachestore.ModeLocal {
		cache = cachestore.NewLocalCache(ws.CacheDir)
	}

	pluginRoot := pluginsDir
	if pluginRoot == "" {
		pluginRoot = ws.PluginsDir
	}
	reg, discoverErrs := hooks.Discover(pluginRoot, stderrLogger{})
	for _, e := range discoverErrs {
		fmt.Fprintf(os.Stderr, "loom: plugin discovery: %v\n", e)
	}
	engine, err := hooks.NewEngine(reg, builtinPlugins, stderrLogger{})
	if err != nil {
		return nil, fmt.Errorf("loom: failed to build plugin engine: %w", err)
	}
	for _, e := range engine.Errors() {
		fmt.Fprintf(os.Stderr, "loom: %v\n", e)
	}

	return &runEnv{log: log, coordinator: coord, cache: cache, hookEngine: engine}, nil
}

type stderrLogger struct{}

func (stderrLogger) Printf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
}

func newExecutor(graph *analyzer.Graph, env *runEnv, parallel int64, extra ...executor.Observer) *executor.Executor {
	observers := append([]executor.Observer{env.hookEngine}, extra...)
	return executor.New(executor.Config{
		Graph:       graph,
		Globs:       globfs.NewResolver(),
		Fingerprint: fingerprint.NewComputer(),
		Pool:        workerPool(parallel),
		Coordinator: env.coordinator,
		Cache:       env.cache,
		Logger:      env.log,
		Observer:    multiObserver{observers: observers},
		Stdout:      os.Stdout,
		Stderr:      os.Stderr,
	})
}
