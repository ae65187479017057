package batch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/evs-automation/evsctl/internal/logging"
	"github.com/evs-automation/evsctl/pkg/evs"
)

// Starter opens a session for one job and runs fn inside it. keepRunning
// asks for the instance to be left open afterwards.
type Starter func(ctx context.Context, keepRunning bool, fn func(*evs.Session) error) error

// Result is the outcome of one job.
type Result struct {
	Job      string
	Err      error
	Duration time.Duration
}

// Runner executes manifests.
type Runner struct {
	Start Starter
	// Parallel bounds concurrent jobs. Values below 1 mean 1.
	Parallel int
	Logger   *logging.Logger
}

// Run executes every job and returns one Result per job in manifest order.
// A failing job does not stop the others. The returned error joins the
// failures.
func (r *Runner) Run(ctx context.Context, m *Manifest) ([]Result, error) {
	if r.Start == nil {
		return nil, errNoStarter
	}
	logger := r.Logger
	if logger == nil {
		logger = logging.NopLogger()
	}

	parallel := r.Parallel
	if m.Parallel > 0 {
		parallel = m.Parallel
	}
	parallel = max(parallel, 1)

	results := make([]Result, len(m.Jobs))
	p := pool.New().WithContext(ctx).WithMaxGoroutines(parallel)
	for i, job := range m.Jobs {
		p.Go(func(ctx context.Context) error {
			jobLogger := logger.With("job", job.Name)
			jobLogger.Info("job started")

			start := time.Now()
			err := r.Start(ctx, job.KeepRunning, func(s *evs.Session) error {
				return runJob(ctx, s, job)
			})
			results[i] = Result{Job: job.Name, Err: err, Duration: time.Since(start)}

			if err != nil {
				jobLogger.Error("job failed", "error", err.Error())
				return fmt.Errorf("job %s: %w", job.Name, err)
			}
			jobLogger.Info("job finished", "duration", results[i].Duration.String())
			return nil
		})
	}
	err := p.Wait()
	return results, err
}

func runJob(ctx context.Context, s *evs.Session, job Job) error {
	if job.Application != "" {
		if err := s.LoadApplication(ctx, job.Application); err != nil {
			return err
		}
		if err := s.WaitForReady(ctx); err != nil {
			return err
		}
	}

	for _, set := range job.Set {
		if err := apply(ctx, s, set); err != nil {
			return fmt.Errorf("setting %s.%s/%s: %w", set.Module, set.Category, set.Property, err)
		}
	}

	for _, script := range job.Scripts {
		if err := s.ExecutePythonScript(ctx, script); err != nil {
			return fmt.Errorf("running %s: %w", script, err)
		}
	}
	return nil
}

func apply(ctx context.Context, s *evs.Session, set Set) error {
	ref, err := s.Module(set.Module)
	if err != nil {
		return err
	}
	if set.Port != "" {
		return s.SetPort(ctx, ref, set.Port, set.Category, set.Property, set.Value)
	}
	return s.SetModule(ctx, ref, set.Category, set.Property, set.Value)
}

// Failed returns the results that carry an error.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if r.Err != nil {
			out = append(out, r)
		}
	}
	return out
}

// errNoStarter is returned when a Runner has no Starter.
var errNoStarter = errors.New("batch runner has no starter")
