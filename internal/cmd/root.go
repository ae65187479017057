package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	cmdconfig "github.com/evs-automation/evsctl/internal/cmd/config"
	"github.com/evs-automation/evsctl/internal/config"
	"github.com/evs-automation/evsctl/internal/logging"
	"github.com/evs-automation/evsctl/internal/telemetry"
)

var rootCmd = &cobra.Command{
	Use:   "evsctl",
	Short: "Automate Earth Volumetric Studio",
	Long: `evsctl launches, attaches to and drives Earth Volumetric Studio
instances through their automation endpoint: load applications, run
Python scripts, set module properties and run batches of jobs.`,
	SilenceUsage:       true,
	PersistentPreRunE:  setupRuntime,
	PersistentPostRunE: teardownRuntime,
}

// Execute runs the root command with a context cancelled on SIGINT/SIGTERM.
func Execute() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	return rootCmd.ExecuteContext(ctx)
}

var dotenvPath string

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	flags := rootCmd.PersistentFlags()
	flags.StringP("config", "c", "", "config file (default is $HOME/.config/evsctl/config.yaml)")
	flags.String("exe", "", "path to EarthVolumetricStudio.exe (skips installation lookup)")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	flags.String("log-file", "", "write logs to this file instead of stderr")
	flags.String("metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9464")
	flags.StringVar(&dotenvPath, "env-file", ".env", "load environment variables from this file if it exists")

	_ = viper.BindPFlag("config", flags.Lookup("config"))
	_ = viper.BindPFlag("evs.executable", flags.Lookup("exe"))
	_ = viper.BindPFlag("logging.level", flags.Lookup("log-level"))
	_ = viper.BindPFlag("logging.file", flags.Lookup("log-file"))
	_ = viper.BindPFlag("metrics.addr", flags.Lookup("metrics-addr"))

	cmdconfig.Register(rootCmd)
}

func initConfig() {
	if err := loadDotEnv(dotenvPath); err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}

	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath(".")
	}

	// e.g. EVSCTL_LAUNCH_TIMEOUT_SECONDS for launch.timeout_seconds
	viper.SetEnvPrefix("EVSCTL")
	viper.SetEnvKeyReplacer(config.EnvKeyReplacer())
	viper.AutomaticEnv()

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}

// loadDotEnv loads environment variables from path. A missing file is not
// an error.
func loadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	err := godotenv.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// setupRuntime loads configuration and builds the logger and metrics shared
// by every command.
func setupRuntime(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(cfg.Logging.File, cfg.Logging.Level, logging.RotationConfig{
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
	})
	if err != nil {
		return fmt.Errorf("failed to open log: %w", err)
	}

	app = &appRuntime{
		cfg:      cfg,
		logger:   logger,
		recorder: telemetry.Default(),
	}

	if addr := cfg.Metrics.Addr; addr != "" {
		go func() {
			if err := telemetry.Serve(cmd.Context(), addr); err != nil {
				logger.Error("metrics server stopped", "addr", addr, "error", err.Error())
			}
		}()
		logger.Info("serving metrics", "addr", addr)
	}
	return nil
}

func teardownRuntime(cmd *cobra.Command, args []string) error {
	if app == nil {
		return nil
	}
	return app.logger.Close()
}
