package process

import (
	"context"
	"fmt"
	"sync"
	"time"

	gops "github.com/shirou/gopsutil/v4/process"

	evserrors "github.com/evs-automation/evsctl/internal/errors"
)

// exitPollInterval is how often an AttachedProcess rechecks the process table
// while waiting for exit.
const exitPollInterval = 100 * time.Millisecond

// AttachedProcess implements Process for a process this client did not start.
type AttachedProcess struct {
	pid  int
	proc *gops.Process

	mu     sync.Mutex
	exited bool
}

// Attach looks up pid in the process table. It fails with ErrNoInstanceFound
// if no such process exists.
func Attach(ctx context.Context, pid int) (*AttachedProcess, error) {
	if pid <= 0 {
		return nil, evserrors.NewValidationError("pid must be positive").WithField("pid").WithValue(pid)
	}

	proc, err := gops.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		return nil, evserrors.NewAttachError(fmt.Sprintf("process %d not found", pid), evserrors.ErrNoInstanceFound).WithPID(pid)
	}
	return &AttachedProcess{pid: pid, proc: proc}, nil
}

// PID returns the process identifier.
func (p *AttachedProcess) PID() int { return p.pid }

// IsRunning queries the process table. Once the process has been seen gone it
// stays gone, so a recycled PID is never mistaken for the original process.
func (p *AttachedProcess) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.exited {
		return false
	}

	running, err := p.proc.IsRunning()
	if err != nil || !running {
		p.exited = true
		return false
	}
	if status, err := p.proc.Status(); err == nil && len(status) > 0 && status[0] == gops.Zombie {
		p.exited = true
		return false
	}
	return true
}

// Wait polls the process table until the process is gone or ctx is done.
func (p *AttachedProcess) Wait(ctx context.Context) error {
	ticker := time.NewTicker(exitPollInterval)
	defer ticker.Stop()

	for p.IsRunning() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

// Terminate sends a terminate request and kills the process if it outlives grace.
func (p *AttachedProcess) Terminate(grace time.Duration) error {
	if !p.IsRunning() {
		return nil
	}

	_ = p.proc.Terminate()

	ctx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	if p.Wait(ctx) == nil {
		return nil
	}

	if err := p.proc.Kill(); err != nil && p.IsRunning() {
		return fmt.Errorf("killing pid %d: %w", p.pid, err)
	}

	killCtx, killCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer killCancel()
	return p.Wait(killCtx)
}

// Owned always returns false.
func (p *AttachedProcess) Owned() bool { return false }
