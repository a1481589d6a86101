package main

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/loomrun/loom/internal/manifest"
)

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list <script>",
		Short: "Print the resolved dependency graph without running anything",
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

			reader := manifest.NewPackageReader()
			graph, ok := analyze(context.Background(), reader, ref, nil, os.Stderr)
			if !ok {
				return fmt.Errorf("analysis failed")
			}

			keys := make([]string, 0, len(graph.Nodes))
			for k := range graph.Nodes {
				keys = append(keys, k)
			}
			sort.Strings(keys)

			w := cmd.OutOrStdout()
			for _, k := range keys {
				cfg := graph.Nodes[k]
				fmt.Fprintln(w, cfg.Ref.String())
				for _, dep := range cfg.Dependencies {
					marker := "  -> "
					if dep.Cascade {
						marker = "  => "
					}
					fmt.Fprintln(w, marker+dep.Target.String())
				}
			}
			return nil
		},
	}
	return cmd
}
