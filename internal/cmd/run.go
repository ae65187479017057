package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/evs-automation/evsctl/pkg/evs"
)

var (
	runSelector selectorFlags
	runNew      bool
	runApp      string
)

var runCmd = &cobra.Command{
	Use:   "run <script.py>",
	Short: "Run a Python script in EVS",
	Long: `Run a Python script in a running EVS instance, or in a new one with --new.
A new instance is shut down once the script finishes.`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	runSelector.register(runCmd)
	runCmd.Flags().BoolVar(&runNew, "new", false, "launch a new instance for the script")
	runCmd.Flags().StringVar(&runApp, "app", "", "application (.evs) to load before the script")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	script := args[0]
	cfg := app.sessionConfig()

	fn := func(s *evs.Session) error {
		if runApp != "" {
			if err := s.LoadApplication(ctx, runApp); err != nil {
				return err
			}
		}
		if err := s.ExecutePythonScript(ctx, script); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Ran %s (pid %d)\n", script, s.PID())
		return nil
	}

	if runNew {
		return evs.WithNew(ctx, cfg, fn)
	}
	return evs.WithExisting(ctx, runSelector.selector(), cfg, fn)
}
