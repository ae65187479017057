package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/evs-automation/evsctl/pkg/evs"
)

var (
	startApp       string
	startScripts   []string
	startKeep      bool
	startMinimized bool
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Launch a new EVS instance",
	Long: `Launch Earth Volumetric Studio, wait until it is ready, optionally load an
application and run scripts in order. The instance is shut down afterwards
unless --keep is given.`,
	Args: cobra.NoArgs,
	RunE: runStart,
}

func init() {
	startCmd.Flags().StringVar(&startApp, "app", "", "application (.evs) to load after launch")
	startCmd.Flags().StringArrayVar(&startScripts, "script", nil, "Python script to run after loading (repeatable)")
	startCmd.Flags().BoolVar(&startKeep, "keep", false, "leave EVS running when the command finishes")
	startCmd.Flags().BoolVar(&startMinimized, "minimized", false, "start EVS minimized")
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := app.sessionConfig()
	if startMinimized {
		cfg.StartMinimized = true
	}
	switch {
	case startKeep:
		cfg.AutoShutdown = evs.KeepRunning
	case cfg.AutoShutdown == evs.ShutdownDefault:
		cfg.AutoShutdown = evs.ShutdownOnExit
	}

	out := cmd.OutOrStdout()
	return evs.WithNew(ctx, cfg, func(s *evs.Session) error {
		fmt.Fprintf(out, "EVS started (pid %d, endpoint %s)\n", s.PID(), s.Endpoint())

		if startApp != "" {
			if err := s.LoadApplication(ctx, startApp); err != nil {
				return err
			}
			fmt.Fprintf(out, "Loaded %s\n", startApp)
		}
		for _, script := range startScripts {
			if err := s.ExecutePythonScript(ctx, script); err != nil {
				return err
			}
			fmt.Fprintf(out, "Ran %s\n", script)
		}
		if cfg.AutoShutdown == evs.KeepRunning {
			fmt.Fprintf(out, "Leaving EVS running (pid %d)\n", s.PID())
		}
		return nil
	})
}
