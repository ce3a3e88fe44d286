package root

import (
	"github.com/spf13/cobra"
)

// RootCmd is the top-level aqua command.
var RootCmd = NewRoot()

// NewRoot builds an empty aqua command carrying the global flags.
func NewRoot() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "aqua",
		Short:         "aquamarine device control CLI",
		Long:          "Command line interface for the aquamarine GPIO device and schedule API.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().Bool("json", false, "print raw JSON instead of tables")
	return cmd
}

// GetRoot returns RootCmd.
func GetRoot() *cobra.Command {
	return RootCmd
}
