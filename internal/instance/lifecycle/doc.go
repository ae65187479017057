// Package lifecycle provides the session state machine and readiness polling.
//
// A session moves through:
//
//	Launching → Ready → Active → ShuttingDown → Closed
//
// with a terminal Failed state reachable from any non-terminal state when the
// connection to EVS is lost or launch fails. A Failed session may still be
// reaped: Failed → ShuttingDown → Closed.
//
// Usage:
//
//	m := lifecycle.NewMachine(logger)
//	err := lifecycle.WaitUntil(ctx, lifecycle.DefaultPollConfig(), probe)
//	if err != nil {
//	    m.Fail(err)
//	    return err
//	}
//	_ = m.Transition(lifecycle.StateReady)
//
// Transitions that are not allowed return an error wrapping
// errors.ErrInvalidTransition. Observers registered with OnTransition are
// called after each state change, outside the machine's lock.
package lifecycle
