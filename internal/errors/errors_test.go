package errors

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestSeverity_String(t *testing.T) {
	tests := []struct {
		severity Severity
		want     string
	}{
		{SeverityDebug, "debug"},
		{SeverityInfo, "info"},
		{SeverityWarning, "warning"},
		{SeverityError, "error"},
		{SeverityCritical, "critical"},
		{Severity(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.severity.String(); got != tt.want {
				t.Errorf("Severity.String() = %q, want %q", got, tt.want)
			}
		})
	}
}

// -----------------------------------------------------------------------------
// LaunchError Tests
// -----------------------------------------------------------------------------

func TestLaunchError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *LaunchError
		want string
	}{
		{
			name: "no context",
			err:  NewLaunchError("could not start", ErrLaunchFailure),
			want: "launch error: could not start: launch failed",
		},
		{
			name: "with pid",
			err:  NewLaunchError("endpoint not ready", ErrLaunchTimeout).WithPID(4120),
			want: "launch error [pid=4120]: endpoint not ready: launch timed out",
		},
		{
			name: "with executable and pid",
			err:  NewLaunchError("exited early", ErrLaunchFailure).WithExecutable("evs.exe").WithPID(7),
			want: "launch error [exe=evs.exe, pid=7]: exited early: launch failed",
		},
		{
			name: "without cause",
			err:  NewLaunchError("plain", nil),
			want: "launch error: plain",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLaunchError_Is(t *testing.T) {
	err := NewLaunchError("endpoint not ready", ErrLaunchTimeout)

	if !errors.Is(err, ErrLaunchTimeout) {
		t.Error("expected errors.Is(err, ErrLaunchTimeout)")
	}
	if errors.Is(err, ErrLaunchFailure) {
		t.Error("did not expect errors.Is(err, ErrLaunchFailure)")
	}
	if !errors.Is(err, &LaunchError{}) {
		t.Error("expected type match against *LaunchError")
	}
	if !err.IsRetryable() {
		t.Error("launch timeouts should be retryable")
	}
	if NewLaunchError("x", ErrExecutableNotFound).IsRetryable() {
		t.Error("missing executable should not be retryable")
	}
}

// -----------------------------------------------------------------------------
// AttachError Tests
// -----------------------------------------------------------------------------

func TestAttachError_Error(t *testing.T) {
	err := NewAttachError("2 processes match", ErrAmbiguousInstance).
		WithPattern("EarthVolumetricStudio*").
		WithCandidates([]int{10, 12})

	want := "attach error [pattern=EarthVolumetricStudio*, candidates=[10 12]]: 2 processes match: ambiguous instance"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, ErrAmbiguousInstance) {
		t.Error("expected errors.Is(err, ErrAmbiguousInstance)")
	}
	if err.Severity() != SeverityWarning {
		t.Errorf("Severity() = %v, want %v", err.Severity(), SeverityWarning)
	}
}

func TestAttachError_WithPID(t *testing.T) {
	err := NewAttachError("no such process", ErrNoInstanceFound).WithPID(99)
	want := "attach error [pid=99]: no such process: no running instance found"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

// -----------------------------------------------------------------------------
// RemoteError Tests
// -----------------------------------------------------------------------------

func TestRemoteError(t *testing.T) {
	err := NewRemoteError("SetValue", ErrPropertyRejected, "Expected a number")

	want := "remote error [method=SetValue]: Expected a number: property rejected"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, ErrPropertyRejected) {
		t.Error("expected errors.Is(err, ErrPropertyRejected)")
	}
	if err.RemoteText != "Expected a number" {
		t.Errorf("RemoteText = %q", err.RemoteText)
	}
}

func TestRemoteError_EmptyText(t *testing.T) {
	err := NewRemoteError("Connect", ErrPortMismatch, "")
	want := "remote error [method=Connect]: remote application rejected the call: port mismatch"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestIsRemoteAndRemoteText(t *testing.T) {
	remote := NewRemoteError("LoadApplication", ErrInvalidDocument, "File not found")
	wrapped := fmt.Errorf("loading demo: %w", remote)

	if !IsRemote(wrapped) {
		t.Error("IsRemote() = false for wrapped remote error")
	}
	if got := RemoteText(wrapped); got != "File not found" {
		t.Errorf("RemoteText() = %q, want %q", got, "File not found")
	}
	if IsRemote(ErrConnectionLost) {
		t.Error("IsRemote() = true for a transport error")
	}
	if got := RemoteText(errors.New("x")); got != "" {
		t.Errorf("RemoteText() = %q, want empty", got)
	}
}

// -----------------------------------------------------------------------------
// SessionError Tests
// -----------------------------------------------------------------------------

func TestSessionError(t *testing.T) {
	err := NewSessionError("session failed earlier", ErrConnectionLost).
		WithPID(4120).
		WithState("failed")

	want := "session error [pid=4120, state=failed]: session failed earlier: connection lost"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, ErrConnectionLost) {
		t.Error("expected errors.Is(err, ErrConnectionLost)")
	}
	if errors.Is(err, ErrSessionClosed) {
		t.Error("did not expect errors.Is(err, ErrSessionClosed)")
	}
	if got := err.WithSeverity(SeverityCritical).Severity(); got != SeverityCritical {
		t.Errorf("Severity() = %v, want critical", got)
	}
}

// -----------------------------------------------------------------------------
// Semantic Error Tests
// -----------------------------------------------------------------------------

func TestValidationError(t *testing.T) {
	err := NewValidationError("must be between 0 and 100").WithField("percent").WithValue(140.0)

	want := "validation error [field=percent, value=140]: must be between 0 and 100"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, ErrInvalidInput) {
		t.Error("validation errors should match ErrInvalidInput")
	}
	if err.IsRetryable() {
		t.Error("validation errors should not be retryable")
	}
}

func TestValidationError_WithCause(t *testing.T) {
	err := NewValidationError("module reference from another session").WithCause(ErrInvalidReference)
	if !errors.Is(err, ErrInvalidReference) {
		t.Error("expected errors.Is(err, ErrInvalidReference)")
	}
}

func TestTimeoutError(t *testing.T) {
	err := NewTimeoutError("ExecuteScript", 30*time.Second).WithCause(ErrScriptTimeout)

	want := "timeout error: ExecuteScript (timeout: 30s): script timed out"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, ErrTimeout) {
		t.Error("timeout errors should match ErrTimeout")
	}
	if !errors.Is(err, ErrScriptTimeout) {
		t.Error("expected errors.Is(err, ErrScriptTimeout)")
	}
}

// -----------------------------------------------------------------------------
// Classification Tests
// -----------------------------------------------------------------------------

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"timeout", NewTimeoutError("x", time.Second), true},
		{"wrapped sentinel timeout", fmt.Errorf("ctx: %w", ErrTimeout), true},
		{"remote rejection", NewRemoteError("SetValue", ErrPropertyRejected, "bad"), false},
		{"plain error", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsUserFacing(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"attach error", NewAttachError("x", ErrNoInstanceFound), true},
		{"validation error", NewValidationError("x"), true},
		{"standard error", errors.New("internal"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsUserFacing(tt.err); got != tt.want {
				t.Errorf("IsUserFacing() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetSeverity(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Severity
	}{
		{"nil", nil, SeverityDebug},
		{"session error", NewSessionError("x", nil), SeverityError},
		{"validation error", NewValidationError("x"), SeverityWarning},
		{"standard error", errors.New("x"), SeverityError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetSeverity(tt.err); got != tt.want {
				t.Errorf("GetSeverity() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWrap(t *testing.T) {
	if Wrap(nil, "ctx") != nil {
		t.Error("Wrap(nil) should return nil")
	}

	err := Wrap(ErrConnectionLost, "calling SetValue")
	if got := err.Error(); got != "calling SetValue: connection lost" {
		t.Errorf("Wrap() = %q", got)
	}
	if !errors.Is(err, ErrConnectionLost) {
		t.Error("Wrap() should preserve the chain")
	}

	err = Wrapf(ErrSessionClosed, "pid %d", 12)
	if got := err.Error(); got != "pid 12: session closed" {
		t.Errorf("Wrapf() = %q", got)
	}
}

func TestSentinelErrors_Distinct(t *testing.T) {
	sentinels := []error{
		ErrLaunchTimeout, ErrExecutableNotFound, ErrLaunchFailure, ErrVersionMismatch,
		ErrNoInstanceFound, ErrAmbiguousInstance,
		ErrInvalidDocument, ErrUnknownModuleType, ErrPortMismatch, ErrPropertyRejected,
		ErrScriptTimeout, ErrRemoteCall, ErrCanceledByUser, ErrAssertionFailed,
		ErrInvalidReference, ErrConnectionLost, ErrSessionClosed, ErrInvalidTransition,
		ErrTimeout, ErrInvalidInput,
	}

	for i, a := range sentinels {
		for j, b := range sentinels {
			if i != j && errors.Is(a, b) {
				t.Errorf("sentinel %q unexpectedly matches %q", a, b)
			}
		}
	}
}
