package evs

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	evserrors "github.com/evs-automation/evsctl/internal/errors"
	"github.com/evs-automation/evsctl/internal/instance/lifecycle"
	"github.com/evs-automation/evsctl/internal/instance/process"
	"github.com/evs-automation/evsctl/internal/locator"
	"github.com/evs-automation/evsctl/internal/transport"
)

// SupportedAPIVersion is the automation API version this client speaks.
const SupportedAPIVersion = "1.0"

var errProcessExited = errors.New("process exited before its endpoint accepted a connection")

// StartNew launches EVS and returns a Ready session. The process is killed
// if it does not become ready within LaunchTimeout. StartNew never returns
// both a session and an error.
func StartNew(ctx context.Context, cfg Config) (*Session, error) {
	cfg = cfg.withDefaults()
	rec := cfg.Recorder

	exe, err := cfg.Locator.ResolveExecutable(locator.ExecutableOptions{
		Override:          cfg.Executable,
		Version:           cfg.Version,
		PreferDevelopment: cfg.PreferDevelopment,
	})
	if err != nil {
		rec.RecordLaunch(err)
		return nil, err
	}

	cfg.Logger.Info("launching EVS", "executable", exe, "minimized", cfg.StartMinimized)
	proc, err := cfg.Launcher.Launch(ctx, process.Config{
		Executable: exe,
		Args:       process.LaunchArgs(cfg.StartMinimized, cfg.ExtraArgs),
	})
	if err != nil {
		var launchErr *evserrors.LaunchError
		if !errors.As(err, &launchErr) {
			err = evserrors.NewLaunchError("starting EVS", fmt.Errorf("%w: %w", evserrors.ErrLaunchFailure, err)).WithExecutable(exe)
		}
		rec.RecordLaunch(err)
		return nil, err
	}

	s := newSession(cfg, proc, cfg.endpointFor(proc.PID()))

	launchCtx, cancel := context.WithTimeout(ctx, cfg.LaunchTimeout)
	defer cancel()

	if err := s.open(launchCtx); err != nil {
		err = launchFailure(err, exe, proc.PID(), cfg.LaunchTimeout)
		s.abandon(err)
		rec.RecordLaunch(err)
		return nil, err
	}

	rec.RecordLaunch(nil)
	return s, nil
}

// launchFailure converts an open error into a *LaunchError.
func launchFailure(err error, exe string, pid int, timeout time.Duration) error {
	var launchErr *evserrors.LaunchError
	switch {
	case errors.As(err, &launchErr):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return evserrors.NewLaunchError(fmt.Sprintf("EVS not ready after %s", timeout), evserrors.ErrLaunchTimeout).
			WithExecutable(exe).WithPID(pid)
	case errors.Is(err, evserrors.ErrVersionMismatch):
		return evserrors.NewLaunchError("unsupported automation API", err).WithExecutable(exe).WithPID(pid)
	default:
		return evserrors.NewLaunchError("EVS did not become ready", fmt.Errorf("%w: %w", evserrors.ErrLaunchFailure, err)).
			WithExecutable(exe).WithPID(pid)
	}
}

// ConnectExisting attaches to a running EVS process chosen by sel. The
// process table is read on every call.
func ConnectExisting(ctx context.Context, sel Selector, cfg Config) (*Session, error) {
	cfg = cfg.withDefaults()

	pattern := sel.NamePattern
	if pattern == "" {
		pattern = cfg.ProcessName
	}
	inst, err := cfg.Locator.Select(ctx, sel.PID, pattern)
	if err != nil {
		return nil, err
	}

	proc, err := cfg.Attacher(ctx, inst.PID)
	if err != nil {
		return nil, err
	}

	if sel.Endpoint != "" {
		cfg.Endpoint = sel.Endpoint
	}
	s := newSession(cfg, proc, cfg.endpointFor(inst.PID))

	connectCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	if err := s.open(connectCtx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = evserrors.NewTimeoutError(fmt.Sprintf("connecting to %s", s.endpoint), cfg.ConnectTimeout).WithCause(err)
		}
		err = evserrors.NewAttachError("EVS did not accept the connection", err).WithPID(inst.PID)
		s.abandon(err)
		return nil, err
	}
	return s, nil
}

// open waits for the endpoint, runs the capability check and moves the
// session to Ready.
func (s *Session) open(ctx context.Context) error {
	conn, err := s.waitForEndpoint(ctx)
	if err != nil {
		return err
	}
	s.conn = conn

	version, err := s.apiVersion(ctx)
	if err != nil {
		return err
	}
	if version != SupportedAPIVersion {
		return fmt.Errorf("EVS reports API version %s, need %s: %w", version, SupportedAPIVersion, evserrors.ErrVersionMismatch)
	}

	if !s.cfg.SkipWaitForReady {
		if _, err := s.roundTrip(ctx, "WaitForReady", evserrors.ErrRemoteCall); err != nil {
			return err
		}
	}
	return s.markOpen()
}

func (s *Session) waitForEndpoint(ctx context.Context) (*transport.Conn, error) {
	poll := lifecycle.PollConfig{
		Interval:    s.cfg.PollInterval,
		MaxInterval: 4 * s.cfg.PollInterval,
	}

	var conn *transport.Conn
	var lastErr error
	err := lifecycle.WaitUntil(ctx, poll, func(ctx context.Context) (bool, error) {
		if !s.proc.IsRunning() {
			return false, errProcessExited
		}
		c, err := transport.Dial(ctx, s.cfg.Dialer, s.endpoint, s.logger)
		if err != nil {
			lastErr = err
			return false, nil
		}
		conn = c
		return true, nil
	})
	if err != nil {
		if lastErr != nil && errors.Is(err, context.DeadlineExceeded) {
			s.logger.Warn("endpoint never accepted a connection", "endpoint", s.endpoint, "last_error", lastErr.Error())
		}
		return nil, err
	}
	return conn, nil
}

// apiVersion asks EVS for its automation API version. EVS reports it as a
// number; it is normalized to "major.minor".
func (s *Session) apiVersion(ctx context.Context) (string, error) {
	resp, err := s.roundTrip(ctx, "Version", evserrors.ErrRemoteCall)
	if err != nil {
		return "", err
	}
	var v any
	if err := resp.Decode(&v); err != nil {
		return "", err
	}
	return normalizeVersion(v), nil
}

func normalizeVersion(v any) string {
	switch v := v.(type) {
	case float64:
		if v == math.Trunc(v) {
			return strconv.FormatFloat(v, 'f', 1, 64)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return normalizeVersion(f)
		}
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// WithNew launches EVS, runs fn and releases the session when fn returns or
// panics. By default the process is shut down. An error from fn is returned
// first, joined with any error from releasing the session.
func WithNew(ctx context.Context, cfg Config, fn func(*Session) error) error {
	s, err := StartNew(ctx, cfg)
	if err != nil {
		return err
	}
	return runScoped(ctx, s, fn)
}

// WithExisting attaches to a running EVS, runs fn and releases the session
// when fn returns or panics. By default the process is left running.
func WithExisting(ctx context.Context, sel Selector, cfg Config, fn func(*Session) error) error {
	s, err := ConnectExisting(ctx, sel, cfg)
	if err != nil {
		return err
	}
	return runScoped(ctx, s, fn)
}

func runScoped(ctx context.Context, s *Session, fn func(*Session) error) (err error) {
	defer func() {
		r := recover()
		endErr := s.end(context.WithoutCancel(ctx))
		if r != nil {
			panic(r)
		}
		if endErr != nil {
			err = errors.Join(err, endErr)
		}
	}()
	return fn(s)
}
