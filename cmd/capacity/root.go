package main

import (
	"github.com/spf13/cobra"
)

// newRootCmd creates the top-level "capacity" command. Subcommands load the
// configuration themselves so --config is honoured.
func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "capacity",
		Short:         "Team capacity planning service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "YAML configuration file")

	root.AddCommand(
		newServeCmd(&configPath),
		newSyncCmd(&configPath),
	)
	return root
}
