package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/loomrun/loom/internal/cachestore"
	"github.com/loomrun/loom/internal/executor"
	"github.com/loomrun/loom/internal/manifest"
	"github.com/loomrun/loom/internal/trace"
)

func newRunCmd() *cobra.Command {
	var parallel int64
	var failurePolicy string
	var cacheMode string
	var cacheDir string
	var pluginsDir string
	var resume bool
	var tracePath string

	cmd := &cobra.Command{
		Use:   "run <script> [-- extra args]",
		Short: "Analyze and execute a script and its dependencies",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cwd, err := os.Getwd()
			if err != nil {
				return err
			}
			ref, err := parseScriptArg(cwd, args[0])
			if err != nil {
				return err
			}
			extraArgs := args[1:]

			reader := manifest.NewPackageReader()
			ctx := context.Background()
			graph, ok := analyze(ctx, reader, ref, extraArgs, os.Stderr)
			if !ok {
				return fmt.Errorf("Run failed")
			}

			env, err := buildRunEnv(ref.PackageDir, failurePolicy, cacheMode, pluginsDir)
			if err != nil {
				return err
			}
			if cacheDir != "" && cacheMode != "none" {
				env.cache = cachestore.NewLocalCache(cacheDir)
			}

			var recorder *trace.Recorder
			var observers []executor.Observer
			if tracePath != "" {
				recorder = trace.NewRecorder(ref)
				observers = append(observers, recorder)
			}
			exec := newExecutor(graph, env, parallel, observers...)

			if resume {
				report := buildResumeReport(exec, graph)
				fmt.Fprintf(os.Stderr, "loom: %d of %d scripts already satisfied\n", report.satisfied, report.total)
			}

			env.hookEngine.BeforeRun(ref)
			result := exec.Execute(ctx, ref)
			env.hookEngine.AfterRun(ref, result.Failed())

			if recorder != nil {
				if err := writeTrace(recorder, graph, tracePath); err != nil {
					fmt.Fprintf(os.Stderr, "loom: trace: %v\n", err)
				}
			}

			if result.Failed() {
				fmt.Fprintln(os.Stderr, "Run failed")
				return fmt.Errorf("script %s: %v", ref.String(), result.Err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Run succeeded")
			return nil
		},
	}

	cmd.Flags().Int64Var(&parallel, "parallel", 0, "maximum concurrent script processes (default: LOOM_PARALLEL, else 16)")
	cmd.Flags().StringVar(&failurePolicy, "failure-policy", "no-new", "no-new|continue|kill")
	cmd.Flags().StringVar(&cacheMode, "cache", "", "none|local|github (default: local, or none under CI)")
	cmd.Flags().StringVar(&cacheDir, "cache-dir", "", "override the local cache directory")
	cmd.Flags().StringVar(&pluginsDir, "plugin-dir", "", "override the discovered .loom/plugins directory")
	cmd.Flags().BoolVar(&resume, "resume", false, "report already-satisfied scripts before running")
	cmd.Flags().StringVar(&tracePath, "trace", "", "write a canonical JSON execution trace to this path")
	return cmd
}
