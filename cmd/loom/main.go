// Command loom runs manifest-declared package scripts incrementally,
// tracking cross-package dependencies and caching their outputs.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "loom",
		Short:         "Incremental, dependency-aware script runner",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCmd())
	root.AddCommand(newListCmd())
	root.AddCommand(newWatchCmd())
	root.AddCommand(newPluginsCmd())
	return root
}
