package evs

import (
	evserrors "github.com/evs-automation/evsctl/internal/errors"
)

// Error kinds. Every error returned by this package matches one of these
// with errors.Is.
var (
	ErrLaunchTimeout      = evserrors.ErrLaunchTimeout
	ErrExecutableNotFound = evserrors.ErrExecutableNotFound
	ErrLaunchFailure      = evserrors.ErrLaunchFailure
	ErrVersionMismatch    = evserrors.ErrVersionMismatch
	ErrNoInstanceFound    = evserrors.ErrNoInstanceFound
	ErrAmbiguousInstance  = evserrors.ErrAmbiguousInstance
	ErrInvalidDocument    = evserrors.ErrInvalidDocument
	ErrUnknownModuleType  = evserrors.ErrUnknownModuleType
	ErrInvalidReference   = evserrors.ErrInvalidReference
	ErrPortMismatch       = evserrors.ErrPortMismatch
	ErrPropertyRejected   = evserrors.ErrPropertyRejected
	ErrScriptTimeout      = evserrors.ErrScriptTimeout
	ErrRemoteCall         = evserrors.ErrRemoteCall
	ErrCanceledByUser     = evserrors.ErrCanceledByUser
	ErrAssertionFailed    = evserrors.ErrAssertionFailed
	ErrConnectionLost     = evserrors.ErrConnectionLost
	ErrSessionClosed      = evserrors.ErrSessionClosed
	ErrInvalidTransition  = evserrors.ErrInvalidTransition
	ErrInvalidInput       = evserrors.ErrInvalidInput
)

// Typed errors.
type (
	LaunchError     = evserrors.LaunchError
	AttachError     = evserrors.AttachError
	RemoteError     = evserrors.RemoteError
	SessionError    = evserrors.SessionError
	ValidationError = evserrors.ValidationError
	TimeoutError    = evserrors.TimeoutError
)
