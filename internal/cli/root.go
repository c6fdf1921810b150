// Package cli implements the tickbot command line.
package cli

import (
	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags.
var Version = "dev"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "tickbot",
		Short: "Tick-driven routine scheduler for a competition robot",
		Long: `tickbot runs autonomous routines and operator macros as behavior trees,
updating the active tree once per control loop tick.`,
		SilenceUsage: true,
	}
	root.Version = Version
	root.SetVersionTemplate("tickbot version {{.Version}}\n")
	root.AddCommand(newRunCmd(), newRoutinesCmd())
	return root
}

// Execute runs the root command.
func Execute() error {
	return newRootCmd().Execute()
}
