// Package errors provides centralized error definitions and error handling utilities
// for evsctl. It defines the automation error taxonomy, typed errors carrying
// launch, attach, remote-call and session context, and error classification helpers.
//
// # Error Types
//
// Domain-specific errors represent failures from one part of the client:
//   - LaunchError: starting the EVS process or reaching its endpoint
//   - AttachError: finding a running EVS process to connect to
//   - RemoteError: a call EVS received and rejected
//   - SessionError: operations on a session that can no longer serve them
//
// Semantic errors represent common error conditions:
//   - ValidationError: arguments rejected locally, before anything is sent
//   - TimeoutError: an operation exceeded its configured wait
//
// # Usage
//
// Creating errors:
//
//	err := errors.NewLaunchError("endpoint never came up", errors.ErrLaunchTimeout).
//	    WithExecutable(exe).WithPID(pid)
//
//	err := errors.NewRemoteError("SetValue", errors.ErrPropertyRejected, "value out of range")
//
// Checking errors:
//
//	if errors.Is(err, errors.ErrConnectionLost) { ... }
//
//	var remote *errors.RemoteError
//	if errors.As(err, &remote) {
//	    fmt.Println(remote.RemoteText)
//	}
//
// # Error Classification
//
// Errors can be classified by severity and behavior:
//   - Retryable: transient errors that may succeed on retry (the client never retries itself)
//   - UserFacing: errors safe to display to users
//   - Severity: Debug, Info, Warning, Error, Critical
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityDebug is for errors that are useful for debugging but not critical.
	SeverityDebug Severity = iota
	// SeverityInfo is for informational errors that don't indicate a problem.
	SeverityInfo
	// SeverityWarning is for errors that might indicate a problem but aren't critical.
	SeverityWarning
	// SeverityError is for errors that indicate a real problem.
	SeverityError
	// SeverityCritical is for errors that require immediate attention.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Launch-related sentinel errors
var (
	// ErrLaunchTimeout indicates the endpoint was not ready within the launch timeout.
	ErrLaunchTimeout = New("launch timed out")
	// ErrExecutableNotFound indicates the EVS executable could not be located.
	ErrExecutableNotFound = New("executable not found")
	// ErrLaunchFailure indicates any other failure creating the EVS process.
	ErrLaunchFailure = New("launch failed")
	// ErrVersionMismatch indicates EVS speaks an automation API version this client does not support.
	ErrVersionMismatch = New("unsupported automation api version")
)

// Attach-related sentinel errors
var (
	// ErrNoInstanceFound indicates no running process matched the selector.
	ErrNoInstanceFound = New("no running instance found")
	// ErrAmbiguousInstance indicates several processes matched and no PID was given.
	ErrAmbiguousInstance = New("ambiguous instance")
)

// Remote call sentinel errors
var (
	// ErrInvalidDocument indicates EVS rejected an application file.
	ErrInvalidDocument = New("invalid document")
	// ErrUnknownModuleType indicates EVS does not know the requested module type.
	ErrUnknownModuleType = New("unknown module type")
	// ErrPortMismatch indicates EVS rejected the port names of a connection.
	ErrPortMismatch = New("port mismatch")
	// ErrPropertyRejected indicates EVS refused a property value.
	ErrPropertyRejected = New("property rejected")
	// ErrScriptTimeout indicates a script did not complete within the script timeout.
	ErrScriptTimeout = New("script timed out")
	// ErrRemoteCall indicates EVS rejected a call that has no more specific kind.
	ErrRemoteCall = New("remote call failed")
	// ErrCanceledByUser indicates the user canceled the running script inside EVS.
	ErrCanceledByUser = New("script canceled by user")
	// ErrAssertionFailed indicates a Test assertion evaluated to false.
	ErrAssertionFailed = New("assertion failed")
)

// Session-related sentinel errors
var (
	// ErrInvalidReference indicates a module reference does not belong to the active session.
	ErrInvalidReference = New("invalid module reference")
	// ErrConnectionLost indicates the connection to EVS dropped unexpectedly.
	ErrConnectionLost = New("connection lost")
	// ErrSessionClosed indicates the session has been shut down or closed.
	ErrSessionClosed = New("session closed")
	// ErrInvalidTransition indicates a lifecycle state change that is not allowed.
	ErrInvalidTransition = New("invalid state transition")
)

// General sentinel errors
var (
	// ErrTimeout indicates that an operation timed out.
	ErrTimeout = New("operation timed out")
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
)

// -----------------------------------------------------------------------------
// Base Error Interface
// -----------------------------------------------------------------------------

// AutomationError is the base interface for all evsctl errors.
// It extends the standard error interface with additional methods for
// error handling and classification.
type AutomationError interface {
	error

	// Unwrap returns the underlying error, if any.
	Unwrap() error

	// Is reports whether this error matches the target error.
	Is(target error) bool

	// Severity returns the severity level of this error.
	Severity() Severity

	// IsRetryable returns true if the error is transient and the operation
	// may succeed on retry.
	IsRetryable() bool

	// IsUserFacing returns true if the error message is safe to display
	// to end users.
	IsUserFacing() bool
}

// -----------------------------------------------------------------------------
// Base Error Implementation
// -----------------------------------------------------------------------------

// baseError provides common functionality for all error types.
type baseError struct {
	message    string
	cause      error
	severity   Severity
	retryable  bool
	userFacing bool
}

// Error returns the error message.
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// Is checks if this error matches the target.
func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// Severity returns the error severity.
func (e *baseError) Severity() Severity {
	return e.severity
}

// IsRetryable returns whether the error is retryable.
func (e *baseError) IsRetryable() bool {
	return e.retryable
}

// IsUserFacing returns whether the error is safe to show users.
func (e *baseError) IsUserFacing() bool {
	return e.userFacing
}

// formatWithContext renders "<kind> [k=v, ...]: message: cause".
func formatWithContext(kind string, parts []string, message string, cause error) string {
	prefix := kind
	if len(parts) > 0 {
		prefix = fmt.Sprintf("%s [%s]", kind, strings.Join(parts, ", "))
	}
	if cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, message, cause)
	}
	return fmt.Sprintf("%s: %s", prefix, message)
}

// -----------------------------------------------------------------------------
// Domain-Specific Errors
// -----------------------------------------------------------------------------

// LaunchError represents failures starting EVS or reaching its endpoint.
//
// Example:
//
//	err := errors.NewLaunchError("endpoint not ready", errors.ErrLaunchTimeout).WithPID(4120)
//	fmt.Println(err) // "launch error [pid=4120]: endpoint not ready: launch timed out"
type LaunchError struct {
	baseError
	Executable string
	PID        int
}

// NewLaunchError creates a new LaunchError.
func NewLaunchError(message string, cause error) *LaunchError {
	return &LaunchError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			retryable:  Is(cause, ErrLaunchTimeout),
			userFacing: true,
		},
	}
}

// WithExecutable adds the executable path to the error context.
func (e *LaunchError) WithExecutable(path string) *LaunchError {
	e.Executable = path
	return e
}

// WithPID adds the process ID to the error context.
func (e *LaunchError) WithPID(pid int) *LaunchError {
	e.PID = pid
	return e
}

// Error returns the formatted error message.
func (e *LaunchError) Error() string {
	var parts []string
	if e.Executable != "" {
		parts = append(parts, fmt.Sprintf("exe=%s", e.Executable))
	}
	if e.PID != 0 {
		parts = append(parts, fmt.Sprintf("pid=%d", e.PID))
	}
	return formatWithContext("launch error", parts, e.message, e.cause)
}

// Is checks if this error matches the target.
func (e *LaunchError) Is(target error) bool {
	if _, ok := target.(*LaunchError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// AttachError represents failures selecting a running EVS process.
//
// Example:
//
//	err := errors.NewAttachError("2 processes match", errors.ErrAmbiguousInstance).
//	    WithPattern("EarthVolumetricStudio*").WithCandidates([]int{10, 12})
type AttachError struct {
	baseError
	Pattern    string
	PID        int
	Candidates []int
}

// NewAttachError creates a new AttachError.
func NewAttachError(message string, cause error) *AttachError {
	return &AttachError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityWarning,
			retryable:  false,
			userFacing: true,
		},
	}
}

// WithPattern adds the process name pattern to the error context.
func (e *AttachError) WithPattern(pattern string) *AttachError {
	e.Pattern = pattern
	return e
}

// WithPID adds the requested process ID to the error context.
func (e *AttachError) WithPID(pid int) *AttachError {
	e.PID = pid
	return e
}

// WithCandidates records the PIDs that matched an ambiguous selector.
func (e *AttachError) WithCandidates(pids []int) *AttachError {
	e.Candidates = pids
	return e
}

// Error returns the formatted error message.
func (e *AttachError) Error() string {
	var parts []string
	if e.Pattern != "" {
		parts = append(parts, fmt.Sprintf("pattern=%s", e.Pattern))
	}
	if e.PID != 0 {
		parts = append(parts, fmt.Sprintf("pid=%d", e.PID))
	}
	if len(e.Candidates) > 0 {
		parts = append(parts, fmt.Sprintf("candidates=%v", e.Candidates))
	}
	return formatWithContext("attach error", parts, e.message, e.cause)
}

// Is checks if this error matches the target.
func (e *AttachError) Is(target error) bool {
	if _, ok := target.(*AttachError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// RemoteError represents a call EVS received and refused. RemoteText holds
// the error text EVS sent back, verbatim.
//
// Example:
//
//	err := errors.NewRemoteError("SetValue", errors.ErrPropertyRejected, "Expected a number")
//	fmt.Println(err) // "remote error [method=SetValue]: Expected a number: property rejected"
type RemoteError struct {
	baseError
	Method     string
	RemoteText string
}

// NewRemoteError creates a new RemoteError. kind is one of the remote call
// sentinels and becomes the error's cause.
func NewRemoteError(method string, kind error, remoteText string) *RemoteError {
	msg := remoteText
	if msg == "" {
		msg = "remote application rejected the call"
	}
	return &RemoteError{
		baseError: baseError{
			message:    msg,
			cause:      kind,
			severity:   SeverityError,
			retryable:  false,
			userFacing: true,
		},
		Method:     method,
		RemoteText: remoteText,
	}
}

// Error returns the formatted error message.
func (e *RemoteError) Error() string {
	var parts []string
	if e.Method != "" {
		parts = append(parts, fmt.Sprintf("method=%s", e.Method))
	}
	return formatWithContext("remote error", parts, e.message, e.cause)
}

// Is checks if this error matches the target.
func (e *RemoteError) Is(target error) bool {
	if _, ok := target.(*RemoteError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// SessionError represents operations refused because of the session's state.
//
// Example:
//
//	err := errors.NewSessionError("session failed earlier", errors.ErrConnectionLost).WithPID(4120)
type SessionError struct {
	baseError
	PID   int
	State string
}

// NewSessionError creates a new SessionError.
func NewSessionError(message string, cause error) *SessionError {
	return &SessionError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			retryable:  false,
			userFacing: true,
		},
	}
}

// WithPID adds the process ID to the error context.
func (e *SessionError) WithPID(pid int) *SessionError {
	e.PID = pid
	return e
}

// WithState adds the lifecycle state to the error context.
func (e *SessionError) WithState(state string) *SessionError {
	e.State = state
	return e
}

// WithSeverity sets the error severity.
func (e *SessionError) WithSeverity(s Severity) *SessionError {
	e.severity = s
	return e
}

// Error returns the formatted error message.
func (e *SessionError) Error() string {
	var parts []string
	if e.PID != 0 {
		parts = append(parts, fmt.Sprintf("pid=%d", e.PID))
	}
	if e.State != "" {
		parts = append(parts, fmt.Sprintf("state=%s", e.State))
	}
	return formatWithContext("session error", parts, e.message, e.cause)
}

// Is checks if this error matches the target.
func (e *SessionError) Is(target error) bool {
	if _, ok := target.(*SessionError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Semantic Errors
// -----------------------------------------------------------------------------

// ValidationError represents arguments rejected before any remote call.
//
// Example:
//
//	err := errors.NewValidationError("percent must be between 0 and 100")
//	err = err.WithField("percent").WithValue(140.0)
type ValidationError struct {
	baseError
	Field string
	Value any
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		baseError: baseError{
			message:    message,
			severity:   SeverityWarning,
			retryable:  false,
			userFacing: true,
		},
	}
}

// WithField adds a field name to the error context.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue adds the invalid value to the error context.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

// WithCause adds a cause to the error.
func (e *ValidationError) WithCause(cause error) *ValidationError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	var parts []string
	if e.Field != "" {
		parts = append(parts, fmt.Sprintf("field=%s", e.Field))
	}
	if e.Value != nil {
		parts = append(parts, fmt.Sprintf("value=%v", e.Value))
	}
	return formatWithContext("validation error", parts, e.message, e.cause)
}

// Is checks if this error matches the target.
func (e *ValidationError) Is(target error) bool {
	if _, ok := target.(*ValidationError); ok {
		return true
	}
	if errors.Is(target, ErrInvalidInput) {
		return true
	}
	return e.baseError.Is(target)
}

// TimeoutError represents an operation that exceeded its wait.
//
// Example:
//
//	err := errors.NewTimeoutError("ExecuteScript", 30*time.Second).WithCause(errors.ErrScriptTimeout)
//	fmt.Println(err) // "timeout error: ExecuteScript (timeout: 30s): script timed out"
type TimeoutError struct {
	baseError
	Operation string
	Duration  time.Duration
}

// NewTimeoutError creates a new TimeoutError.
func NewTimeoutError(operation string, duration time.Duration) *TimeoutError {
	return &TimeoutError{
		baseError: baseError{
			message:    operation,
			severity:   SeverityWarning,
			retryable:  true, // Timeouts are generally retryable
			userFacing: true,
		},
		Operation: operation,
		Duration:  duration,
	}
}

// WithCause adds a cause to the error.
func (e *TimeoutError) WithCause(cause error) *TimeoutError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *TimeoutError) Error() string {
	base := fmt.Sprintf("timeout error: %s (timeout: %s)", e.Operation, e.Duration)
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", base, e.cause)
	}
	return base
}

// Is checks if this error matches the target.
func (e *TimeoutError) Is(target error) bool {
	if _, ok := target.(*TimeoutError); ok {
		return true
	}
	if errors.Is(target, ErrTimeout) {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Error Classification Helpers
// -----------------------------------------------------------------------------

// IsRetryable returns true if the error represents a transient condition
// that may succeed on retry. The client itself never retries; this is for
// callers that own a retry policy.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var autoErr AutomationError
	if As(err, &autoErr) {
		return autoErr.IsRetryable()
	}

	return Is(err, ErrTimeout)
}

// IsUserFacing returns true if the error message is safe to display to end users.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}

	var autoErr AutomationError
	if As(err, &autoErr) {
		return autoErr.IsUserFacing()
	}

	return false
}

// GetSeverity returns the severity level of the error.
// Returns SeverityError for errors that don't implement AutomationError.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityDebug
	}

	var autoErr AutomationError
	if As(err, &autoErr) {
		return autoErr.Severity()
	}

	return SeverityError
}

// IsRemote reports whether the error came back from EVS rather than from
// the client or the transport.
func IsRemote(err error) bool {
	var remote *RemoteError
	return As(err, &remote)
}

// RemoteText returns the text EVS sent with a rejection, or "" when err is
// not a remote rejection.
func RemoteText(err error) string {
	var remote *RemoteError
	if As(err, &remote) {
		return remote.RemoteText
	}
	return ""
}

// -----------------------------------------------------------------------------
// Convenience Constructors
// -----------------------------------------------------------------------------

// Wrap wraps an error with additional context message.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
