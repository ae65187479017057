package lifecycle

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	evserrors "github.com/evs-automation/evsctl/internal/errors"
)

func TestState_String(t *testing.T) {
	tests := []struct {
		state    State
		expected string
	}{
		{StateLaunching, "launching"},
		{StateReady, "ready"},
		{StateActive, "active"},
		{StateShuttingDown, "shutting_down"},
		{StateClosed, "closed"},
		{StateFailed, "failed"},
		{State(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.state.String(); got != tt.expected {
				t.Errorf("State.String() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestState_Predicates(t *testing.T) {
	for _, s := range []State{StateClosed, StateFailed} {
		if !s.IsTerminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []State{StateLaunching, StateReady, StateActive, StateShuttingDown} {
		if s.IsTerminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
	if !StateReady.CanServe() || !StateActive.CanServe() {
		t.Error("Ready and Active should serve calls")
	}
	if StateLaunching.CanServe() || StateShuttingDown.CanServe() {
		t.Error("Launching and ShuttingDown should not serve calls")
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to State
		want     bool
	}{
		{StateLaunching, StateReady, true},
		{StateLaunching, StateFailed, true},
		{StateLaunching, StateActive, false},
		{StateReady, StateActive, true},
		{StateReady, StateShuttingDown, true},
		{StateActive, StateShuttingDown, true},
		{StateActive, StateFailed, true},
		{StateActive, StateReady, false},
		{StateShuttingDown, StateClosed, true},
		{StateFailed, StateShuttingDown, true},
		{StateFailed, StateReady, false},
		{StateClosed, StateShuttingDown, false},
		{StateClosed, StateFailed, false},
	}

	for _, tt := range tests {
		t.Run(tt.from.String()+"->"+tt.to.String(), func(t *testing.T) {
			if got := CanTransition(tt.from, tt.to); got != tt.want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestMachine_HappyPath(t *testing.T) {
	m := NewMachine(nil)
	if m.State() != StateLaunching {
		t.Fatalf("initial state = %s, want launching", m.State())
	}

	var seen []State
	m.OnTransition(func(_, to State) { seen = append(seen, to) })

	steps := []State{StateReady, StateActive, StateShuttingDown, StateClosed}
	for _, s := range steps {
		if err := m.Transition(s); err != nil {
			t.Fatalf("Transition(%s) = %v", s, err)
		}
	}

	if len(seen) != len(steps) {
		t.Fatalf("observer saw %d transitions, want %d", len(seen), len(steps))
	}
	for i := range steps {
		if seen[i] != steps[i] {
			t.Errorf("transition %d = %s, want %s", i, seen[i], steps[i])
		}
	}
}

func TestMachine_InvalidTransition(t *testing.T) {
	m := NewMachine(nil)

	err := m.Transition(StateClosed)
	if !errors.Is(err, evserrors.ErrInvalidTransition) {
		t.Fatalf("Transition(closed) from launching = %v, want ErrInvalidTransition", err)
	}
	if m.State() != StateLaunching {
		t.Errorf("state changed after rejected transition: %s", m.State())
	}
}

func TestMachine_MarkActive(t *testing.T) {
	m := NewMachine(nil)

	m.MarkActive()
	if m.State() != StateLaunching {
		t.Errorf("MarkActive from launching changed state to %s", m.State())
	}

	_ = m.Transition(StateReady)
	m.MarkActive()
	m.MarkActive()
	if m.State() != StateActive {
		t.Errorf("state = %s, want active", m.State())
	}
}

func TestMachine_Fail(t *testing.T) {
	m := NewMachine(nil)
	_ = m.Transition(StateReady)

	cause := evserrors.ErrConnectionLost
	if !m.Fail(cause) {
		t.Fatal("Fail() from ready = false, want true")
	}
	if m.State() != StateFailed {
		t.Errorf("state = %s, want failed", m.State())
	}
	if !errors.Is(m.Failure(), cause) {
		t.Errorf("Failure() = %v, want %v", m.Failure(), cause)
	}

	if m.Fail(errors.New("second")) {
		t.Error("Fail() on a failed machine should return false")
	}
	if !errors.Is(m.Failure(), cause) {
		t.Error("second Fail() must not overwrite the first cause")
	}

	// A failed session can still be reaped.
	if err := m.Transition(StateShuttingDown); err != nil {
		t.Fatalf("failed -> shutting_down = %v", err)
	}
	if err := m.Transition(StateClosed); err != nil {
		t.Fatalf("shutting_down -> closed = %v", err)
	}
	if m.Fail(cause) {
		t.Error("Fail() on a closed machine should return false")
	}
}

func TestMachine_ConcurrentTransitions(t *testing.T) {
	m := NewMachine(nil)
	_ = m.Transition(StateReady)

	var wins atomic.Int32
	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if m.Transition(StateShuttingDown) == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	if wins.Load() != 1 {
		t.Errorf("%d goroutines won the transition, want exactly 1", wins.Load())
	}
}

func TestWaitUntil(t *testing.T) {
	t.Run("returns once probe reports ready", func(t *testing.T) {
		var calls atomic.Int32
		probe := func(context.Context) (bool, error) {
			return calls.Add(1) >= 3, nil
		}

		cfg := PollConfig{Interval: time.Millisecond, MaxInterval: 4 * time.Millisecond}
		if err := WaitUntil(context.Background(), cfg, probe); err != nil {
			t.Fatalf("WaitUntil() = %v", err)
		}
		if calls.Load() != 3 {
			t.Errorf("probe called %d times, want 3", calls.Load())
		}
	})

	t.Run("stops on probe error", func(t *testing.T) {
		boom := errors.New("process exited")
		probe := func(context.Context) (bool, error) { return false, boom }

		if err := WaitUntil(context.Background(), DefaultPollConfig(), probe); !errors.Is(err, boom) {
			t.Errorf("WaitUntil() = %v, want %v", err, boom)
		}
	})

	t.Run("returns context error on timeout", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
		defer cancel()

		probe := func(context.Context) (bool, error) { return false, nil }
		cfg := PollConfig{Interval: 5 * time.Millisecond, MaxInterval: 10 * time.Millisecond}

		if err := WaitUntil(ctx, cfg, probe); !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("WaitUntil() = %v, want deadline exceeded", err)
		}
	})
}
