package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/loomrun/loom/internal/hooks"
	"github.com/loomrun/loom/internal/workspace"
)

func newPluginsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plugins",
		Short: "Inspect lifecycle observer plugins",
	}
	cmd.AddCommand(newPluginsListCmd())
	return cmd
}

func newPluginsListCmd() *cobra.Command {
	var pluginsDir string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List discovered plugin manifests",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			root := pluginsDir
			if root == "" {
				cwd, err := os.Getwd()
				if err != nil {
					return err
				}
				root = filepath.Join(cwd, workspace.DirName, workspace.PluginsDirName)
			}

			reg, errs := hooks.Discover(root, stderrLogger{})
			if len(errs) > 0 {
				for _, e := range errs {
					fmt.Fprintln(os.Stderr, e)
				}
				return fmt.Errorf("plugin discovery failed")
			}

			ids := make([]string, 0, len(reg.Manifests))
			for _, m := range reg.Manifests {
				ids = append(ids, m.PluginID)
			}
			sort.Strings(ids)
			for _, id := range ids {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&pluginsDir, "plugin-dir", "", "directory to scan for plugin manifests (default: .loom/plugins)")
	return cmd
}
