package process

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	evserrors "github.com/evs-automation/evsctl/internal/errors"
)

// ExecProcess implements Process for a child started by this client.
type ExecProcess struct {
	config Config
	mu     sync.RWMutex

	cmd     *exec.Cmd
	handle  platformHandle
	started bool
	done    chan struct{}
	exitErr error
}

// NewExecProcess creates an ExecProcess. Call Start to run it.
func NewExecProcess(config Config) *ExecProcess {
	return &ExecProcess{
		config: config,
		done:   make(chan struct{}),
	}
}

// Start launches the process. The context only bounds the start itself; the
// child keeps running after ctx is done.
func (p *ExecProcess) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return ErrAlreadyRunning
	}
	if err := p.config.Validate(); err != nil {
		return evserrors.NewLaunchError("invalid launch config", fmt.Errorf("%w: %w", evserrors.ErrLaunchFailure, err))
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	cmd := exec.Command(p.config.Executable, p.config.Args...)
	cmd.Dir = p.config.WorkDir
	if cmd.Dir == "" {
		cmd.Dir = filepath.Dir(p.config.Executable)
	}
	if len(p.config.Env) > 0 {
		cmd.Env = append(os.Environ(), p.config.Env...)
	}
	configureCmd(cmd)

	if err := cmd.Start(); err != nil {
		kind := evserrors.ErrLaunchFailure
		if evserrors.Is(err, os.ErrNotExist) || evserrors.Is(err, exec.ErrNotFound) {
			kind = evserrors.ErrExecutableNotFound
		}
		return evserrors.NewLaunchError(fmt.Sprintf("starting %s", filepath.Base(p.config.Executable)), fmt.Errorf("%w: %w", kind, err)).
			WithExecutable(p.config.Executable)
	}

	p.cmd = cmd
	p.handle = afterStart(cmd)
	p.started = true

	go p.reap()
	return nil
}

func (p *ExecProcess) reap() {
	err := p.cmd.Wait()

	p.mu.Lock()
	p.exitErr = err
	p.mu.Unlock()

	close(p.done)
}

// PID returns the child's process identifier, or 0 before Start.
func (p *ExecProcess) PID() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.cmd == nil || p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

// IsRunning reports whether the child has been started and not yet exited.
func (p *ExecProcess) IsRunning() bool {
	p.mu.RLock()
	started := p.started
	p.mu.RUnlock()
	if !started {
		return false
	}

	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

// Wait blocks until the child exits or ctx is done.
func (p *ExecProcess) Wait(ctx context.Context) error {
	p.mu.RLock()
	started := p.started
	p.mu.RUnlock()
	if !started {
		return ErrNotRunning
	}

	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ExitErr returns the error reported by the child's exit, if it has exited.
func (p *ExecProcess) ExitErr() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.exitErr
}

// Terminate signals the child and kills it if it outlives grace.
func (p *ExecProcess) Terminate(grace time.Duration) error {
	if !p.IsRunning() {
		p.release()
		return nil
	}

	p.mu.RLock()
	cmd, handle := p.cmd, p.handle
	p.mu.RUnlock()

	requestStop(cmd, handle)

	timer := time.NewTimer(grace)
	defer timer.Stop()

	select {
	case <-p.done:
	case <-timer.C:
		if err := forceKill(cmd, handle); err != nil && p.IsRunning() {
			return fmt.Errorf("killing pid %d: %w", cmd.Process.Pid, err)
		}
		<-p.done
	}

	p.release()
	return nil
}

// Owned always returns true.
func (p *ExecProcess) Owned() bool { return true }

func (p *ExecProcess) release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.handle != nil {
		p.handle.Close()
		p.handle = nil
	}
}
