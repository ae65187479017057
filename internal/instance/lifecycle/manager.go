package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/evs-automation/evsctl/internal/errors"
	"github.com/evs-automation/evsctl/internal/logging"
)

// State represents the lifecycle state of a session.
type State int

const (
	// StateLaunching covers process start and endpoint polling.
	StateLaunching State = iota

	// StateReady means the endpoint answered and the capability check passed.
	StateReady

	// StateActive means at least one forwarded call has succeeded.
	StateActive

	// StateShuttingDown means shutdown was requested and is in progress.
	StateShuttingDown

	// StateClosed means the connection is closed and, for shutdowns, the process is gone.
	StateClosed

	// StateFailed means launch failed or the connection was lost.
	StateFailed
)

// String returns a human-readable string for the state.
func (s State) String() string {
	switch s {
	case StateLaunching:
		return "launching"
	case StateReady:
		return "ready"
	case StateActive:
		return "active"
	case StateShuttingDown:
		return "shutting_down"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether no further forwarded calls are possible.
func (s State) IsTerminal() bool {
	return s == StateClosed || s == StateFailed
}

// CanServe reports whether forwarded calls may be issued in this state.
func (s State) CanServe() bool {
	return s == StateReady || s == StateActive
}

var transitions = map[State][]State{
	StateLaunching:    {StateReady, StateFailed},
	StateReady:        {StateActive, StateShuttingDown, StateFailed},
	StateActive:       {StateShuttingDown, StateFailed},
	StateShuttingDown: {StateClosed, StateFailed},
	StateFailed:       {StateShuttingDown},
	StateClosed:       nil,
}

// CanTransition reports whether from → to is an allowed transition.
func CanTransition(from, to State) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Observer is called with the old and new state after every transition.
type Observer func(from, to State)

// Machine tracks the lifecycle state of one session. It is safe for
// concurrent use.
type Machine struct {
	mu        sync.Mutex
	state     State
	failure   error
	observers []Observer
	logger    *logging.Logger
}

// NewMachine creates a Machine in StateLaunching. A nil logger disables logging.
func NewMachine(logger *logging.Logger) *Machine {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Machine{
		state:  StateLaunching,
		logger: logger,
	}
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Failure returns the error that moved the machine to StateFailed, if any.
func (m *Machine) Failure() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failure
}

// OnTransition registers an observer.
func (m *Machine) OnTransition(obs Observer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, obs)
}

// Transition moves the machine to the given state.
func (m *Machine) Transition(to State) error {
	m.mu.Lock()
	from := m.state
	if !CanTransition(from, to) {
		m.mu.Unlock()
		return fmt.Errorf("%s -> %s: %w", from, to, errors.ErrInvalidTransition)
	}
	m.state = to
	observers := append([]Observer(nil), m.observers...)
	m.mu.Unlock()

	m.logger.Debug("session state changed", "from", from.String(), "to", to.String())
	for _, obs := range observers {
		obs(from, to)
	}
	return nil
}

// MarkActive performs Ready → Active and is a no-op in any other state.
func (m *Machine) MarkActive() {
	if m.State() == StateReady {
		_ = m.Transition(StateActive)
	}
}

// Fail moves the machine to StateFailed and records cause. It returns false
// if the machine was already Closed or Failed, in which case the recorded
// failure is unchanged.
func (m *Machine) Fail(cause error) bool {
	m.mu.Lock()
	from := m.state
	if !CanTransition(from, StateFailed) {
		m.mu.Unlock()
		return false
	}
	m.state = StateFailed
	m.failure = cause
	observers := append([]Observer(nil), m.observers...)
	m.mu.Unlock()

	m.logger.Warn("session failed", "from", from.String(), "error", fmt.Sprint(cause))
	for _, obs := range observers {
		obs(from, StateFailed)
	}
	return true
}

// -----------------------------------------------------------------------------
// Readiness polling
// -----------------------------------------------------------------------------

// Probe reports whether the target is ready. A non-nil error aborts polling.
type Probe func(ctx context.Context) (bool, error)

// PollConfig controls WaitUntil's backoff.
type PollConfig struct {
	// Interval is the first delay between probes.
	Interval time.Duration
	// MaxInterval caps the doubled delay.
	MaxInterval time.Duration
}

// DefaultPollConfig returns the poll settings used for endpoint readiness.
func DefaultPollConfig() PollConfig {
	return PollConfig{
		Interval:    50 * time.Millisecond,
		MaxInterval: time.Second,
	}
}

// WaitUntil calls probe immediately and then with a doubling interval until
// it reports ready, returns an error, or ctx is done. On ctx expiry it returns
// ctx.Err().
func WaitUntil(ctx context.Context, cfg PollConfig, probe Probe) error {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultPollConfig().Interval
	}
	maxInterval := cfg.MaxInterval
	if maxInterval < interval {
		maxInterval = interval
	}

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}

		ready, err := probe(ctx)
		if err != nil {
			return err
		}
		if ready {
			return nil
		}

		timer.Reset(interval)
		if interval < maxInterval {
			interval *= 2
			if interval > maxInterval {
				interval = maxInterval
			}
		}
	}
}
