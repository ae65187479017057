package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/evs-automation/evsctl/pkg/evs"
)

var loadSelector selectorFlags

var loadCmd = &cobra.Command{
	Use:   "load <app.evs>",
	Short: "Load an application into a running EVS instance",
	Args:  cobra.ExactArgs(1),
	RunE:  runLoad,
}

func init() {
	loadSelector.register(loadCmd)
	rootCmd.AddCommand(loadCmd)
}

func runLoad(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	path := args[0]
	return evs.WithExisting(ctx, loadSelector.selector(), app.sessionConfig(), func(s *evs.Session) error {
		if err := s.LoadApplication(ctx, path); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Loaded %s into pid %d\n", path, s.PID())
		return nil
	})
}
