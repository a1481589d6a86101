package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/loomrun/loom/internal/analyzer"
	"github.com/loomrun/loom/internal/manifest"
	"github.com/loomrun/loom/internal/script"
	"github.com/loomrun/loom/internal/watch"
)

func newWatchCmd() *cobra.Command {
	var parallel int64
	var failurePolicy string
	var cacheMode string
	var pluginsDir string
	var debounceMS int

	cmd := &cobra.Command{
		Use:   "watch <script>",
		Short: "Re-run a script whenever its declared input files change",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cwd, err := os.Getwd()
			if err != nil {
				return err
			}
			ref, err := parseScriptArg(cwd, args[0])
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
			defer cancel()

			reader := manifest.NewPackageReader()

			runOnce := func(ctx context.Context) error {
				graph, ok := analyze(ctx, reader, ref, nil, os.Stderr)
				if !ok {
					return fmt.Errorf("analysis failed")
				}
				env, err := buildRunEnv(ref.PackageDir, failurePolicy, cacheMode, pluginsDir)
				if err != nil {
					return err
				}
				exec := newExecutor(graph, env, parallel)
				env.hookEngine.BeforeRun(ref)
				result := exec.Execute(ctx, ref)
				env.hookEngine.AfterRun(ref, result.Failed())
				if result.Failed() {
					fmt.Fprintln(os.Stderr, "Run failed")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Run succeeded")
				return nil
			}

			if err := runOnce(ctx); err != nil {
				return err
			}

			patterns, err := watchedPatterns(reader, ref)
			if err != nil {
				return err
			}

			w, err := watch.New(watch.Config{
				BaseDir:  ref.PackageDir,
				Patterns: patterns,
				Debounce: time.Duration(debounceMS) * time.Millisecond,
				OnChange: func(ctx context.Context, changed []string) error {
					fmt.Fprintf(cmd.OutOrStdout(), "loom: %d file(s) changed, re-running\n", len(changed))
					return runOnce(ctx)
				},
			})
			if err != nil {
				return err
			}
			defer w.Close()

			return w.Run(ctx)
		},
	}

	cmd.Flags().Int64Var(&parallel, "parallel", 0, "maximum concurrent script processes (default: LOOM_PARALLEL, else 16)")
	cmd.Flags().StringVar(&failurePolicy, "failure-policy", "no-new", "no-new|continue|kill")
	cmd.Flags().StringVar(&cacheMode, "cache", "", "none|local|github (default: local, or none under CI)")
	cmd.Flags().StringVar(&pluginsDir, "plugin-dir", "", "override the discovered .loom/plugins directory")
	cmd.Flags().IntVar(&debounceMS, "debounce", 300, "debounce window in milliseconds")
	return cmd
}

// watchedPatterns re-analyzes ref to read back the root config's resolved
// Files patterns, which is what drives the watcher's match set.
func watchedPatterns(reader *manifest.PackageReader, ref script.Reference) ([]string, error) {
	a := analyzer.New(reader)
	graph, failures := a.Analyze(context.Background(), ref, nil)
	if len(failures) > 0 {
		return nil, failures[0]
	}
	cfg, ok := graph.Config(ref)
	if !ok {
		return nil, fmt.Errorf("script %s not found in graph", ref.String())
	}
	return cfg.Files, nil
}
