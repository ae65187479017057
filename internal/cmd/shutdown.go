package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/evs-automation/evsctl/pkg/evs"
)

var (
	shutdownSelector selectorFlags
	shutdownForce    bool
)

var shutdownCmd = &cobra.Command{
	Use:   "shutdown",
	Short: "Ask a running EVS instance to shut down",
	Long: `Ask a running EVS instance to shut down and wait for the process to exit.
With --force the process is terminated if it does not exit within the
shutdown grace period.`,
	Args: cobra.NoArgs,
	RunE: runShutdown,
}

func init() {
	shutdownSelector.register(shutdownCmd)
	shutdownCmd.Flags().BoolVarP(&shutdownForce, "force", "f", false, "terminate the process if it does not exit in time")
	rootCmd.AddCommand(shutdownCmd)
}

func runShutdown(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s, err := evs.ConnectExisting(ctx, shutdownSelector.selector(), app.sessionConfig())
	if err != nil {
		return err
	}
	pid := s.PID()
	if err := s.Shutdown(ctx, shutdownForce); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "EVS (pid %d) shut down\n", pid)
	return nil
}
