package evs

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/evs-automation/evsctl/internal/instance/process"
	"github.com/evs-automation/evsctl/internal/locator"
	"github.com/evs-automation/evsctl/internal/logging"
	"github.com/evs-automation/evsctl/internal/telemetry"
	"github.com/evs-automation/evsctl/internal/transport"
)

// Defaults applied to zero Config fields.
const (
	DefaultLaunchTimeout  = 300 * time.Second
	DefaultConnectTimeout = 60 * time.Second
	DefaultShutdownGrace  = 10 * time.Second
	DefaultPollInterval   = 250 * time.Millisecond
)

// ShutdownPolicy decides what ending a scoped session does to the process.
type ShutdownPolicy int

const (
	// ShutdownDefault shuts down processes started with StartNew and leaves
	// processes found with ConnectExisting running.
	ShutdownDefault ShutdownPolicy = iota
	// ShutdownOnExit always shuts the process down.
	ShutdownOnExit
	// KeepRunning only closes the connection.
	KeepRunning
)

// String returns the policy name.
func (p ShutdownPolicy) String() string {
	switch p {
	case ShutdownOnExit:
		return "shutdown"
	case KeepRunning:
		return "keep"
	default:
		return "default"
	}
}

// Config controls launching, attaching and calling. The zero value is ready
// to use.
type Config struct {
	// Executable overrides installation discovery.
	Executable string
	// Version selects an installed version when several exist.
	Version string
	// PreferDevelopment selects a development build when one is installed.
	PreferDevelopment bool

	// StartMinimized launches EVS minimized.
	StartMinimized bool
	// ExtraArgs are appended to the launch command line.
	ExtraArgs []string
	// SkipWaitForReady disables the WaitForReady call made after connecting.
	SkipWaitForReady bool

	// LaunchTimeout bounds StartNew from process start to Ready.
	LaunchTimeout time.Duration
	// ConnectTimeout bounds ConnectExisting's wait for the endpoint.
	ConnectTimeout time.Duration
	// PollInterval is the first delay between endpoint probes.
	PollInterval time.Duration
	// ShutdownGrace is how long Shutdown waits for the process to exit.
	ShutdownGrace time.Duration
	// ScriptTimeout bounds ExecutePythonScript. Zero waits indefinitely.
	ScriptTimeout time.Duration

	// AutoShutdown is applied when a scoped session ends.
	AutoShutdown ShutdownPolicy

	// Endpoint overrides the endpoint path. "{pid}" is replaced by the
	// process identifier.
	Endpoint string
	// ProcessName is the default glob for ConnectExisting.
	ProcessName string

	// Logger receives session logs. Nil disables logging.
	Logger *logging.Logger
	// Recorder receives metrics and spans. Nil disables them.
	Recorder *telemetry.Recorder

	// Launcher starts processes. Nil uses os/exec.
	Launcher process.Launcher
	// Attacher opens a handle on a running process. Nil uses the OS process table.
	Attacher func(ctx context.Context, pid int) (process.Process, error)
	// Dialer opens endpoints. Nil uses named pipes or unix sockets.
	Dialer transport.Dialer
	// Locator resolves executables and running instances. Nil uses the OS.
	Locator *locator.Locator
}

func (c Config) withDefaults() Config {
	if c.LaunchTimeout <= 0 {
		c.LaunchTimeout = DefaultLaunchTimeout
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.ShutdownGrace <= 0 {
		c.ShutdownGrace = DefaultShutdownGrace
	}
	if c.ProcessName == "" {
		c.ProcessName = locator.DefaultProcessName
	}
	if c.Logger == nil {
		c.Logger = logging.NopLogger()
	}
	if c.Launcher == nil {
		c.Launcher = process.ExecLauncher{}
	}
	if c.Attacher == nil {
		c.Attacher = attachOS
	}
	if c.Dialer == nil {
		c.Dialer = transport.SystemDialer{}
	}
	if c.Locator == nil {
		c.Locator = locator.New()
	}
	return c
}

// endpointFor resolves the endpoint path for pid.
func (c Config) endpointFor(pid int) string {
	if c.Endpoint == "" {
		return transport.EndpointForPID(pid)
	}
	return strings.ReplaceAll(c.Endpoint, "{pid}", strconv.Itoa(pid))
}

func attachOS(ctx context.Context, pid int) (process.Process, error) {
	p, err := process.Attach(ctx, pid)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Selector picks the process ConnectExisting attaches to.
type Selector struct {
	// PID selects a process explicitly. Zero means search by name.
	PID int
	// NamePattern is a glob over process names. Empty uses Config.ProcessName.
	NamePattern string
	// Endpoint overrides Config.Endpoint for this connection.
	Endpoint string
}
