package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/evs-automation/evsctl/internal/watch"
	"github.com/evs-automation/evsctl/pkg/evs"
)

var (
	watchSelector selectorFlags
	watchNew      bool
)

var watchCmd = &cobra.Command{
	Use:   "watch <script.py>",
	Short: "Re-run a script whenever it changes",
	Long: `Attach to EVS (or launch it with --new), run the script once and run it
again every time the file is saved. Stop with Ctrl+C.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchSelector.register(watchCmd)
	watchCmd.Flags().BoolVar(&watchNew, "new", false, "launch a new instance instead of attaching")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	script := args[0]
	out := cmd.OutOrStdout()

	fn := func(s *evs.Session) error {
		fmt.Fprintf(out, "Watching %s (pid %d)\n", script, s.PID())

		// A lost connection ends the watch; script errors do not.
		watchCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		var lost error
		err := watch.File(watchCtx, script, watch.Options{RunFirst: true, Logger: app.logger}, func(ctx context.Context) error {
			if err := s.ExecutePythonScript(ctx, script); err != nil {
				fmt.Fprintf(out, "%s failed: %v\n", script, err)
				if errors.Is(err, evs.ErrConnectionLost) {
					lost = err
					cancel()
				}
				return err
			}
			fmt.Fprintf(out, "Ran %s\n", script)
			return nil
		})
		if lost != nil {
			return lost
		}
		return err
	}

	cfg := app.sessionConfig()
	if watchNew {
		return evs.WithNew(ctx, cfg, fn)
	}
	return evs.WithExisting(ctx, watchSelector.selector(), cfg, fn)
}
