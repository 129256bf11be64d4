// Package command contains the CLI command constructors.
package command

import (
	"github.com/spf13/cobra"
)

// RootCommand instantiates the root command, with all sub-commands bound.
func RootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "moviedb [command] [flags]",
		Short:        "The movie library API",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
	}
	cmd.AddCommand(
		serveCommand(),
		migrateCommand(),
	)
	return cmd
}
