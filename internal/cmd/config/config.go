// Package config provides CLI commands for managing evsctl configuration.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	appconfig "github.com/evs-automation/evsctl/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or modify evsctl configuration",
	Long: `View or modify evsctl configuration.

Use 'config show' to display the effective configuration, 'config init'
to create a config file with every option documented, and 'config set'
to change a single value.`,
	// Config commands must keep working when the config file is invalid.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value in the user's config file.

Keys use dot notation, e.g.:
  evsctl config set evs.version 2024.10
  evsctl config set launch.start_minimized true
  evsctl config set session.auto_shutdown false
  evsctl config set batch.parallel 4`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default config file",
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the config file path",
	Args:  cobra.NoArgs,
	RunE:  runConfigPath,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
}

// Register adds the config command tree to parent.
func Register(parent *cobra.Command) {
	parent.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	if used := viper.ConfigFileUsed(); used != "" {
		fmt.Fprintf(out, "# Config file: %s\n", used)
	} else {
		fmt.Fprintln(out, "# Config file: (none - using defaults)")
	}

	data, err := yaml.Marshal(viper.AllSettings())
	if err != nil {
		return fmt.Errorf("failed to render configuration: %w", err)
	}
	_, err = out.Write(data)
	return err
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key, raw := args[0], args[1]

	if !knownKey(key) {
		return fmt.Errorf("unknown configuration key %q\nValid keys:\n  %s", key, strings.Join(knownKeys(), "\n  "))
	}

	value := parseScalar(raw)
	viper.Set(key, value)

	// Validate before writing so a bad value never reaches the file.
	if _, err := appconfig.Load(); err != nil {
		return err
	}

	configFile := viper.ConfigFileUsed()
	if configFile == "" {
		configFile = appconfig.ConfigFile()
		if err := os.MkdirAll(filepath.Dir(configFile), 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := viper.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %v in %s\n", key, value, configFile)
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	configFile := appconfig.ConfigFile()
	if _, err := os.Stat(configFile); err == nil {
		return fmt.Errorf("config file already exists at %s\nUse 'evsctl config set' to modify values", configFile)
	}

	if err := os.MkdirAll(filepath.Dir(configFile), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(configFile, []byte(defaultConfigFile), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created config file at %s\n", configFile)
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	path := viper.ConfigFileUsed()
	if path == "" {
		path = appconfig.ConfigFile()
	}
	_, err := io.WriteString(cmd.OutOrStdout(), path+"\n")
	return err
}

// knownKeys lists every leaf key registered with defaults.
func knownKeys() []string {
	keys := viper.AllKeys()
	sort.Strings(keys)
	return keys
}

func knownKey(key string) bool {
	for _, k := range viper.AllKeys() {
		if k == key {
			return true
		}
	}
	return false
}

// parseScalar converts CLI text to a bool, int, float or string.
func parseScalar(raw string) any {
	if b, err := strconv.ParseBool(raw); err == nil {
		return b
	}
	if i, err := strconv.Atoi(raw); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	return raw
}

const defaultConfigFile = `# evsctl configuration

# Which Earth Volumetric Studio to launch and how to find running ones
evs:
  # Explicit path to EarthVolumetricStudio.exe (default: registry, then PATH)
  executable: ""
  # Installed version to prefer, e.g. "2024.10" (default: newest)
  version: ""
  # Prefer a development build when one is installed
  prefer_development: true
  # Process name glob used by attach, list and friends
  process_name: EarthVolumetricStudio.exe
  # Automation endpoint override; {pid} is replaced with the process ID
  endpoint: ""

launch:
  # Seconds to wait for a new instance to accept connections
  timeout_seconds: 300
  start_minimized: false
  # Call WaitForReady after connecting
  auto_wait_for_ready: true
  # Extra command-line arguments for EVS
  extra_args: []
  poll_interval_ms: 250

session:
  # Shut down instances evsctl started when a command finishes
  auto_shutdown: true
  connect_timeout_seconds: 60
  shutdown_grace_seconds: 10

script:
  # Per-script timeout in seconds (0 = wait indefinitely)
  timeout_seconds: 0

batch:
  # Jobs run at once, each in its own EVS instance
  parallel: 1

logging:
  # debug, info, warn or error
  level: info
  # Log file path (default: stderr)
  file: ""
  max_size_mb: 10
  max_backups: 3

metrics:
  # Listen address for Prometheus metrics, e.g. ":9464" (default: disabled)
  addr: ""
`
