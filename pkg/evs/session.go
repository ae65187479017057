package evs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	evserrors "github.com/evs-automation/evsctl/internal/errors"
	"github.com/evs-automation/evsctl/internal/instance/lifecycle"
	"github.com/evs-automation/evsctl/internal/instance/process"
	"github.com/evs-automation/evsctl/internal/logging"
	"github.com/evs-automation/evsctl/internal/telemetry"
	"github.com/evs-automation/evsctl/internal/transport"
)

// State is a session's lifecycle state.
type State = lifecycle.State

// Lifecycle states.
const (
	StateLaunching    = lifecycle.StateLaunching
	StateReady        = lifecycle.StateReady
	StateActive       = lifecycle.StateActive
	StateShuttingDown = lifecycle.StateShuttingDown
	StateClosed       = lifecycle.StateClosed
	StateFailed       = lifecycle.StateFailed
)

var sessionIDs atomic.Uint64

// Session is a connection to one EVS process.
type Session struct {
	id           uint64
	cfg          Config
	proc         process.Process
	endpoint     string
	autoShutdown bool

	conn    *transport.Conn
	machine *lifecycle.Machine
	logger  *logging.Logger
	rec     *telemetry.Recorder

	// endMu serializes Shutdown and Close.
	endMu      sync.Mutex
	opened     bool
	closedOnce sync.Once
}

func newSession(cfg Config, proc process.Process, endpoint string) *Session {
	logger := cfg.Logger.WithSession(proc.PID())

	autoShutdown := proc.Owned()
	switch cfg.AutoShutdown {
	case ShutdownOnExit:
		autoShutdown = true
	case KeepRunning:
		autoShutdown = false
	}

	return &Session{
		id:           sessionIDs.Add(1),
		cfg:          cfg,
		proc:         proc,
		endpoint:     endpoint,
		autoShutdown: autoShutdown,
		machine:      lifecycle.NewMachine(logger),
		logger:       logger,
		rec:          cfg.Recorder,
	}
}

// PID returns the EVS process identifier.
func (s *Session) PID() int { return s.proc.PID() }

// Endpoint returns the endpoint path the session is connected to.
func (s *Session) Endpoint() string { return s.endpoint }

// Owned reports whether this client launched the process.
func (s *Session) Owned() bool { return s.proc.Owned() }

// AutoShutdown reports whether ending a scoped use shuts EVS down.
func (s *Session) AutoShutdown() bool { return s.autoShutdown }

// State returns the current lifecycle state.
func (s *Session) State() State { return s.machine.State() }

// OnStateChange registers fn to run after every state transition.
func (s *Session) OnStateChange(fn func(from, to State)) {
	s.machine.OnTransition(lifecycle.Observer(fn))
}

// markOpen records that the session reached Ready.
func (s *Session) markOpen() error {
	if err := s.machine.Transition(lifecycle.StateReady); err != nil {
		return err
	}
	s.opened = true
	s.rec.SessionOpened()
	s.logger.Info("session ready", "endpoint", s.endpoint, "owned", s.proc.Owned())
	return nil
}

func (s *Session) markClosed() {
	s.closedOnce.Do(func() {
		if s.opened {
			s.rec.SessionClosed()
		}
	})
}

// checkUsable fails when the session can no longer forward calls.
func (s *Session) checkUsable() error {
	switch state := s.machine.State(); {
	case state == lifecycle.StateFailed:
		cause := s.machine.Failure()
		if cause == nil {
			cause = evserrors.ErrConnectionLost
		}
		return evserrors.NewSessionError("session failed earlier", cause).
			WithPID(s.PID()).WithState(state.String())
	case !state.CanServe():
		return evserrors.NewSessionError("session is not connected", evserrors.ErrSessionClosed).
			WithPID(s.PID()).WithState(state.String())
	}
	return nil
}

// call forwards one operation after checking the session is usable.
func (s *Session) call(ctx context.Context, method string, kind error, args ...any) (*transport.Response, error) {
	if err := s.checkUsable(); err != nil {
		return nil, err
	}
	resp, err := s.roundTrip(ctx, method, kind, args...)
	if err == nil {
		s.machine.MarkActive()
	}
	return resp, err
}

// roundTrip sends one request and maps failures to the error taxonomy.
// A lost connection fails the session.
func (s *Session) roundTrip(ctx context.Context, method string, kind error, args ...any) (resp *transport.Response, err error) {
	ctx, done := s.rec.StartCall(ctx, method, s.PID())
	defer func() { done(err) }()

	resp, err = s.conn.Call(ctx, method, args...)
	if err != nil {
		if errors.Is(err, evserrors.ErrConnectionLost) {
			s.machine.Fail(err)
			return nil, evserrors.NewSessionError(fmt.Sprintf("calling %s", method), err).
				WithPID(s.PID()).WithState(lifecycle.StateFailed.String()).
				WithSeverity(evserrors.SeverityCritical)
		}
		return nil, err
	}
	if !resp.Success {
		return nil, evserrors.NewRemoteError(method, kind, resp.Error)
	}
	return resp, nil
}

// IsAlive reports whether EVS still answers. It is false once the session
// has ended or failed, or when the process has exited.
func (s *Session) IsAlive(ctx context.Context) bool {
	if !s.machine.State().CanServe() {
		return false
	}
	if !s.proc.IsRunning() {
		return false
	}
	_, err := s.roundTrip(ctx, "Version", evserrors.ErrRemoteCall)
	return err == nil
}

// terminateGrace is how long a forced termination waits between the stop
// request and the kill.
const terminateGrace = 2 * time.Second

// Shutdown asks EVS to exit, closes the connection and waits up to the
// configured grace period for the process to end. With force, a process
// still running after the grace period is terminated, and a call still
// holding the connection is abandoned instead of waited for. On a failed
// session the remote request is skipped.
//
// The session reaches Closed only once the process has exited. A Shutdown
// that gives up leaves the session ShuttingDown, so it can be repeated with
// force. Shutdown on a closed session returns nil.
func (s *Session) Shutdown(ctx context.Context, force bool) error {
	s.endMu.Lock()
	defer s.endMu.Unlock()

	state := s.machine.State()
	switch state {
	case lifecycle.StateClosed:
		return nil
	case lifecycle.StateShuttingDown:
		// An earlier Shutdown left the process running.
	default:
		if err := s.machine.Transition(lifecycle.StateShuttingDown); err != nil {
			return err
		}
	}

	grace := s.cfg.ShutdownGrace
	var errs []error
	if state.CanServe() {
		if force && s.conn.Busy() {
			s.logger.Warn("call in flight; abandoning it to shut down")
		} else {
			reqCtx, cancel := context.WithTimeout(ctx, grace)
			_, err := s.roundTrip(reqCtx, "Shutdown", evserrors.ErrRemoteCall)
			cancel()
			// EVS may drop the connection while exiting.
			if err != nil && !errors.Is(err, evserrors.ErrConnectionLost) {
				errs = append(errs, err)
			}
		}
	}
	_ = s.conn.Close()

	exited, err := s.awaitExit(ctx, force)
	if err != nil {
		errs = append(errs, err)
	}
	if exited {
		s.finish()
	} else {
		s.logger.Warn("session left shutting down; process still running")
	}
	return errors.Join(errs...)
}

// awaitExit waits for the process to end, terminating it when force is set.
// It reports whether the process is gone.
func (s *Session) awaitExit(ctx context.Context, force bool) (bool, error) {
	grace := s.cfg.ShutdownGrace
	waitCtx, cancel := context.WithTimeout(ctx, grace)
	defer cancel()

	if err := s.proc.Wait(waitCtx); err == nil {
		s.logExit()
		return true, nil
	}

	if !force {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		s.logger.Warn("process still running after shutdown request", "grace", grace.String())
		return false, evserrors.NewTimeoutError("waiting for EVS to exit", grace)
	}

	s.logger.Warn("terminating process after grace period", "grace", grace.String())
	if err := s.proc.Terminate(terminateGrace); err != nil {
		return false, fmt.Errorf("terminating EVS: %w", err)
	}
	return true, nil
}

// logExit records how a launched process exited.
func (s *Session) logExit() {
	if p, ok := s.proc.(interface{ ExitErr() error }); ok {
		if err := p.ExitErr(); err != nil {
			s.logger.Info("process exited", "exit", err.Error())
			return
		}
	}
	s.logger.Info("process exited")
}

// Close closes the connection and leaves EVS running. Close on a closed
// session returns nil.
func (s *Session) Close() error {
	s.endMu.Lock()
	defer s.endMu.Unlock()

	switch s.machine.State() {
	case lifecycle.StateClosed:
		return nil
	case lifecycle.StateShuttingDown:
	default:
		if err := s.machine.Transition(lifecycle.StateShuttingDown); err != nil {
			return err
		}
	}
	defer s.finish()

	s.logger.Info("closing connection")
	return s.conn.Close()
}

// finish moves the session to Closed. A connection lost during shutdown
// leaves the machine Failed, which must pass through ShuttingDown again.
func (s *Session) finish() {
	if s.machine.State() == lifecycle.StateFailed {
		_ = s.machine.Transition(lifecycle.StateShuttingDown)
	}
	_ = s.machine.Transition(lifecycle.StateClosed)
	s.markClosed()
}

// end releases the session according to its shutdown policy. A launched
// process is terminated if it ignores the shutdown request.
func (s *Session) end(ctx context.Context) error {
	if s.autoShutdown {
		return s.Shutdown(ctx, s.proc.Owned())
	}
	return s.Close()
}

// abandon tears down a session that never reached Ready. A launched process
// is killed.
func (s *Session) abandon(cause error) {
	s.machine.Fail(cause)
	if s.conn != nil {
		_ = s.conn.Close()
	}
	if s.proc.Owned() {
		if err := s.proc.Terminate(time.Second); err != nil {
			s.logger.Error("failed to terminate process", "error", err.Error())
		}
	}
}
