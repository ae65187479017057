package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/evs-automation/evsctl/pkg/evs"
)

// Config represents the complete evsctl configuration
type Config struct {
	EVS     EVSConfig     `mapstructure:"evs"`
	Launch  LaunchConfig  `mapstructure:"launch"`
	Session SessionConfig `mapstructure:"session"`
	Script  ScriptConfig  `mapstructure:"script"`
	Batch   BatchConfig   `mapstructure:"batch"`
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// EVSConfig selects the EVS installation and how running instances are found
type EVSConfig struct {
	// Executable is an explicit path to EarthVolumetricStudio.exe.
	// When empty, the installation registry and PATH are searched.
	Executable string `mapstructure:"executable"`
	// Version selects an installed version, e.g. "2024.10" (default: newest)
	Version string `mapstructure:"version"`
	// PreferDevelopment picks a development build when one is installed,
	// ahead of Version (default: true)
	PreferDevelopment bool `mapstructure:"prefer_development"`
	// ProcessName is the glob used to find running instances
	// (default: "EarthVolumetricStudio.exe")
	ProcessName string `mapstructure:"process_name"`
	// Endpoint overrides the automation endpoint path. "{pid}" is replaced
	// with the process ID.
	Endpoint string `mapstructure:"endpoint"`
}

// LaunchConfig controls how new instances are started
type LaunchConfig struct {
	// TimeoutSeconds bounds the wait for a launched instance to become ready (default: 300)
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
	// StartMinimized launches EVS minimized (default: false)
	StartMinimized bool `mapstructure:"start_minimized"`
	// AutoWaitForReady calls WaitForReady after connecting (default: true)
	AutoWaitForReady bool `mapstructure:"auto_wait_for_ready"`
	// ExtraArgs are appended to the EVS command line
	ExtraArgs []string `mapstructure:"extra_args"`
	// PollIntervalMs is the first delay between endpoint probes (default: 250)
	PollIntervalMs int `mapstructure:"poll_interval_ms"`
}

// SessionConfig controls what happens when a session ends
type SessionConfig struct {
	// AutoShutdown shuts down instances evsctl launched when a command
	// finishes. Attached instances are never shut down implicitly. (default: true)
	AutoShutdown bool `mapstructure:"auto_shutdown"`
	// ConnectTimeoutSeconds bounds the wait for an attached instance's endpoint (default: 60)
	ConnectTimeoutSeconds int `mapstructure:"connect_timeout_seconds"`
	// ShutdownGraceSeconds is how long to wait for EVS to exit after a
	// shutdown request (default: 10)
	ShutdownGraceSeconds int `mapstructure:"shutdown_grace_seconds"`
}

// ScriptConfig controls script execution
type ScriptConfig struct {
	// TimeoutSeconds bounds a single script run (default: 0, wait indefinitely)
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// BatchConfig controls the batch runner
type BatchConfig struct {
	// Parallel is the number of jobs run at once, each in its own instance (default: 1)
	Parallel int `mapstructure:"parallel"`
}

// LoggingConfig controls logging behavior
type LoggingConfig struct {
	// Level is the log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level"`
	// File is the log file path. When empty, logs go to stderr.
	File string `mapstructure:"file"`
	// MaxSizeMB is the maximum log file size in megabytes before rotation (default: 10)
	MaxSizeMB int `mapstructure:"max_size_mb"`
	// MaxBackups is the number of backup log files to keep (default: 3)
	MaxBackups int `mapstructure:"max_backups"`
}

// MetricsConfig controls the Prometheus endpoint
type MetricsConfig struct {
	// Addr is the listen address for /metrics, e.g. ":9464". Empty disables it.
	Addr string `mapstructure:"addr"`
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		EVS: EVSConfig{
			PreferDevelopment: true,
			ProcessName:       "EarthVolumetricStudio.exe",
		},
		Launch: LaunchConfig{
			TimeoutSeconds:   300,
			StartMinimized:   false,
			AutoWaitForReady: true,
			ExtraArgs:        []string{},
			PollIntervalMs:   250,
		},
		Session: SessionConfig{
			AutoShutdown:          true,
			ConnectTimeoutSeconds: 60,
			ShutdownGraceSeconds:  10,
		},
		Script: ScriptConfig{
			TimeoutSeconds: 0, // Wait indefinitely
		},
		Batch: BatchConfig{
			Parallel: 1,
		},
		Logging: LoggingConfig{
			Level:      "info",
			File:       "",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

// Timeout returns the launch timeout as a time.Duration
func (c *LaunchConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// PollInterval returns the probe interval as a time.Duration
func (c *LaunchConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

// ConnectTimeout returns the attach timeout as a time.Duration
func (c *SessionConfig) ConnectTimeout() time.Duration {
	return time.Duration(c.ConnectTimeoutSeconds) * time.Second
}

// ShutdownGrace returns the shutdown grace period as a time.Duration
func (c *SessionConfig) ShutdownGrace() time.Duration {
	return time.Duration(c.ShutdownGraceSeconds) * time.Second
}

// Timeout returns the script timeout as a time.Duration (0 means no limit)
func (c *ScriptConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// SessionConfig converts the file settings into library options. Logger,
// recorder and process hooks are left for the caller to fill in.
func (c *Config) SessionConfig() evs.Config {
	policy := evs.ShutdownDefault
	if !c.Session.AutoShutdown {
		policy = evs.KeepRunning
	}

	return evs.Config{
		Executable:        c.EVS.Executable,
		Version:           c.EVS.Version,
		PreferDevelopment: c.EVS.PreferDevelopment,
		StartMinimized:    c.Launch.StartMinimized,
		ExtraArgs:         append([]string(nil), c.Launch.ExtraArgs...),
		SkipWaitForReady:  !c.Launch.AutoWaitForReady,
		LaunchTimeout:     c.Launch.Timeout(),
		ConnectTimeout:    c.Session.ConnectTimeout(),
		PollInterval:      c.Launch.PollInterval(),
		ShutdownGrace:     c.Session.ShutdownGrace(),
		ScriptTimeout:     c.Script.Timeout(),
		AutoShutdown:      policy,
		Endpoint:          c.EVS.Endpoint,
		ProcessName:       c.EVS.ProcessName,
	}
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	// EVS defaults
	viper.SetDefault("evs.executable", defaults.EVS.Executable)
	viper.SetDefault("evs.version", defaults.EVS.Version)
	viper.SetDefault("evs.prefer_development", defaults.EVS.PreferDevelopment)
	viper.SetDefault("evs.process_name", defaults.EVS.ProcessName)
	viper.SetDefault("evs.endpoint", defaults.EVS.Endpoint)

	// Launch defaults
	viper.SetDefault("launch.timeout_seconds", defaults.Launch.TimeoutSeconds)
	viper.SetDefault("launch.start_minimized", defaults.Launch.StartMinimized)
	viper.SetDefault("launch.auto_wait_for_ready", defaults.Launch.AutoWaitForReady)
	viper.SetDefault("launch.extra_args", defaults.Launch.ExtraArgs)
	viper.SetDefault("launch.poll_interval_ms", defaults.Launch.PollIntervalMs)

	// Session defaults
	viper.SetDefault("session.auto_shutdown", defaults.Session.AutoShutdown)
	viper.SetDefault("session.connect_timeout_seconds", defaults.Session.ConnectTimeoutSeconds)
	viper.SetDefault("session.shutdown_grace_seconds", defaults.Session.ShutdownGraceSeconds)

	viper.SetDefault("script.timeout_seconds", defaults.Script.TimeoutSeconds)
	viper.SetDefault("batch.parallel", defaults.Batch.Parallel)

	// Logging defaults
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.file", defaults.Logging.File)
	viper.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	viper.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)

	viper.SetDefault("metrics.addr", defaults.Metrics.Addr)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration (convenience function)
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		// Fall back to defaults if unmarshaling fails
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "evsctl")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".evsctl"
	}
	return filepath.Join(home, ".config", "evsctl")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// EnvKeyReplacer maps nested keys to environment names, so
// "launch.timeout_seconds" reads EVSCTL_LAUNCH_TIMEOUT_SECONDS.
func EnvKeyReplacer() *strings.Replacer {
	return strings.NewReplacer(".", "_")
}
