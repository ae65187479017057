// Package logging provides structured logging for evsctl.
//
// This package wraps Go's log/slog to provide JSON-formatted logs with
// context propagation. Every session logs with the PID of the EVS process it
// is bound to, and forwarded calls log with their wire method name, so a log
// file covering several concurrent sessions can be filtered after the fact.
//
// # Thread Safety
//
// All types in this package are safe for concurrent use. Child loggers
// created via With* methods share the underlying writer.
//
// # Basic Usage
//
//	logger, err := logging.NewLogger("/var/log/evsctl.log", "INFO", logging.DefaultRotationConfig())
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	sessionLogger := logger.WithSession(4120)
//	sessionLogger.WithMethod("LoadApplication").Info("call completed", "duration_ms", 812)
//
// Output:
//
//	{"time":"...","level":"INFO","msg":"call completed","pid":4120,"method":"LoadApplication","duration_ms":812}
//
// # Log Rotation
//
// When writing to a file, the log rotates once it exceeds MaxSizeMB.
// Rotated files are named evsctl.log.1, evsctl.log.2, etc., where .1 is the
// most recent backup; with Compress they become evsctl.log.1.gz.
//
// # Testing
//
// Use [NopLogger] to discard all log output.
package logging
