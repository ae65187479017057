package config

import (
	"fmt"
	"net"
	"path/filepath"
	"slices"
	"strings"

	"github.com/gobwas/glob"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "launch.timeout_seconds")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Upper bounds for numeric settings.
const (
	maxTimeoutSeconds = 24 * 60 * 60
	maxPollIntervalMs = 60 * 1000
	maxParallel       = 64
	maxLogSizeMB      = 1000
)

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateEVS()...)
	errors = append(errors, c.validateLaunch()...)
	errors = append(errors, c.validateSession()...)
	errors = append(errors, c.validateScript()...)
	errors = append(errors, c.validateBatch()...)
	errors = append(errors, c.validateLogging()...)
	errors = append(errors, c.validateMetrics()...)

	return errors
}

// validateEVS validates the EVSConfig
func (c *Config) validateEVS() []ValidationError {
	var errors []ValidationError

	if c.EVS.Executable != "" && !strings.EqualFold(filepath.Ext(c.EVS.Executable), ".exe") {
		errors = append(errors, ValidationError{
			Field:   "evs.executable",
			Value:   c.EVS.Executable,
			Message: "must point to an .exe file",
		})
	}

	if c.EVS.ProcessName != "" {
		if _, err := glob.Compile(c.EVS.ProcessName); err != nil {
			errors = append(errors, ValidationError{
				Field:   "evs.process_name",
				Value:   c.EVS.ProcessName,
				Message: fmt.Sprintf("invalid glob pattern: %v", err),
			})
		}
	}

	return errors
}

// validateLaunch validates the LaunchConfig
func (c *Config) validateLaunch() []ValidationError {
	var errors []ValidationError

	errors = append(errors, checkRange("launch.timeout_seconds", c.Launch.TimeoutSeconds, 1, maxTimeoutSeconds)...)
	errors = append(errors, checkRange("launch.poll_interval_ms", c.Launch.PollIntervalMs, 1, maxPollIntervalMs)...)

	for i, arg := range c.Launch.ExtraArgs {
		if strings.TrimSpace(arg) == "" {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("launch.extra_args[%d]", i),
				Value:   arg,
				Message: "must not be empty",
			})
		}
	}

	return errors
}

// validateSession validates the SessionConfig
func (c *Config) validateSession() []ValidationError {
	var errors []ValidationError

	errors = append(errors, checkRange("session.connect_timeout_seconds", c.Session.ConnectTimeoutSeconds, 1, maxTimeoutSeconds)...)
	errors = append(errors, checkRange("session.shutdown_grace_seconds", c.Session.ShutdownGraceSeconds, 1, maxTimeoutSeconds)...)

	return errors
}

// validateScript validates the ScriptConfig (0 means no limit)
func (c *Config) validateScript() []ValidationError {
	return checkRange("script.timeout_seconds", c.Script.TimeoutSeconds, 0, maxTimeoutSeconds)
}

// validateBatch validates the BatchConfig
func (c *Config) validateBatch() []ValidationError {
	return checkRange("batch.parallel", c.Batch.Parallel, 1, maxParallel)
}

// validateLogging validates the LoggingConfig
func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), c.Logging.Level) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	if c.Logging.MaxSizeMB <= 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: "must be positive",
		})
	}
	if c.Logging.MaxSizeMB > maxLogSizeMB {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: fmt.Sprintf("exceeds maximum of %dMB", maxLogSizeMB),
		})
	}

	if c.Logging.MaxBackups < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_backups",
			Value:   c.Logging.MaxBackups,
			Message: "must be non-negative",
		})
	}

	return errors
}

// validateMetrics validates the MetricsConfig
func (c *Config) validateMetrics() []ValidationError {
	if c.Metrics.Addr == "" {
		return nil
	}
	if _, _, err := net.SplitHostPort(c.Metrics.Addr); err != nil {
		return []ValidationError{{
			Field:   "metrics.addr",
			Value:   c.Metrics.Addr,
			Message: "must be host:port",
		}}
	}
	return nil
}

func checkRange(field string, value, minValue, maxValue int) []ValidationError {
	switch {
	case value < minValue:
		msg := "must be positive"
		if minValue == 0 {
			msg = "must be non-negative"
		}
		return []ValidationError{{Field: field, Value: value, Message: msg}}
	case value > maxValue:
		return []ValidationError{{Field: field, Value: value, Message: fmt.Sprintf("exceeds maximum of %d", maxValue)}}
	}
	return nil
}
