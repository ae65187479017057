package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/evs-automation/evsctl/pkg/evs"
)

// Version is set at build time with -ldflags "-X".
var Version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the evsctl version",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintf(cmd.OutOrStdout(), "evsctl %s (EVS API %s)\n", Version, evs.SupportedAPIVersion)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
