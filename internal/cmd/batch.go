package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/evs-automation/evsctl/internal/batch"
	"github.com/evs-automation/evsctl/pkg/evs"
)

var batchParallel int

var batchCmd = &cobra.Command{
	Use:   "batch <manifest.yaml>",
	Short: "Run a manifest of jobs, each in its own EVS instance",
	Long: `Run every job of a YAML manifest. Each job launches its own EVS instance,
loads its application, applies its property sets and runs its scripts.
Jobs run concurrently up to --parallel (or the manifest's parallel field).

Example manifest:

  parallel: 2
  jobs:
    - name: site-a
      application: C:\models\site-a.evs
      set:
        - module: titles
          category: Properties
          property: Title
          value: Site A
      scripts: [C:\models\export.py]`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	batchCmd.Flags().IntVarP(&batchParallel, "parallel", "p", 0, "maximum concurrent jobs (default from batch.parallel)")
	rootCmd.AddCommand(batchCmd)
}

func runBatch(cmd *cobra.Command, args []string) error {
	manifest, err := batch.Load(afero.NewOsFs(), args[0])
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("parallel") {
		if batchParallel < 1 {
			return fmt.Errorf("--parallel must be at least 1")
		}
		manifest.Parallel = batchParallel
	}

	base := app.sessionConfig()
	runner := &batch.Runner{
		Parallel: app.cfg.Batch.Parallel,
		Logger:   app.logger,
		Start: func(ctx context.Context, keepRunning bool, fn func(*evs.Session) error) error {
			cfg := base
			if keepRunning {
				cfg.AutoShutdown = evs.KeepRunning
			}
			return evs.WithNew(ctx, cfg, fn)
		},
	}

	results, runErr := runner.Run(cmd.Context(), manifest)

	out := cmd.OutOrStdout()
	for _, r := range results {
		status := "ok"
		if r.Err != nil {
			status = "FAILED: " + r.Err.Error()
		}
		fmt.Fprintf(out, "%-20s %8s  %s\n", r.Job, r.Duration.Round(time.Millisecond), status)
	}
	if failed := batch.Failed(results); len(failed) > 0 {
		return fmt.Errorf("%d of %d jobs failed", len(failed), len(results))
	}
	return runErr
}
