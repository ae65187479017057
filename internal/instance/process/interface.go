package process

import (
	"context"
	"errors"
	"time"
)

// Common errors returned by Process implementations.
var (
	// ErrAlreadyRunning is returned when Start is called on an already running process.
	ErrAlreadyRunning = errors.New("process already running")

	// ErrNotRunning is returned when an operation requires a running process but none exists.
	ErrNotRunning = errors.New("process not running")
)

// Startup flags understood by EarthVolumetricStudio.exe.
const (
	FlagNoSplash  = "-n"
	FlagAutomate  = "-w"
	FlagMinimized = "-m"
)

// Config holds the configuration for launching a new process.
type Config struct {
	// Executable is the absolute path of the program to run.
	Executable string

	// Args are passed to the program verbatim. See LaunchArgs.
	Args []string

	// WorkDir is the working directory. Empty means the executable's directory.
	WorkDir string

	// Env is appended to the current environment.
	Env []string
}

// Validate checks that the Config has all required fields set.
func (c *Config) Validate() error {
	if c.Executable == "" {
		return errors.New("Executable is required")
	}
	return nil
}

// LaunchArgs returns the command line for an automation launch: no splash,
// automation endpoint enabled, optionally minimized, then extra.
func LaunchArgs(minimized bool, extra []string) []string {
	args := []string{FlagNoSplash, FlagAutomate}
	if minimized {
		args = append(args, FlagMinimized)
	}
	return append(args, extra...)
}

// Process is a handle on one operating-system process.
//
// The typical lifecycle is:
//  1. Obtain a Process with Launch or Attach
//  2. Poll IsRunning while waiting for the automation endpoint
//  3. Wait for a clean exit after a remote shutdown request
//  4. Terminate if the process is still running after the grace period
type Process interface {
	// PID returns the operating-system process identifier.
	PID() int

	// IsRunning reports whether the process is still alive.
	IsRunning() bool

	// Wait blocks until the process exits or ctx is done. It returns nil once
	// the process has exited, whatever its exit status, and ctx.Err() otherwise.
	Wait(ctx context.Context) error

	// Terminate asks the process to exit and force-kills it if it is still
	// running after grace. It is safe to call on a process that has exited.
	Terminate(grace time.Duration) error

	// Owned reports whether this client launched the process.
	Owned() bool
}

// Launcher starts new processes.
type Launcher interface {
	Launch(ctx context.Context, cfg Config) (Process, error)
}

// LauncherFunc adapts a function to the Launcher interface.
type LauncherFunc func(ctx context.Context, cfg Config) (Process, error)

// Launch calls f.
func (f LauncherFunc) Launch(ctx context.Context, cfg Config) (Process, error) {
	return f(ctx, cfg)
}

// ExecLauncher launches processes with os/exec.
type ExecLauncher struct{}

// Launch starts cfg.Executable and returns an *ExecProcess.
func (ExecLauncher) Launch(ctx context.Context, cfg Config) (Process, error) {
	p := NewExecProcess(cfg)
	if err := p.Start(ctx); err != nil {
		return nil, err
	}
	return p, nil
}
