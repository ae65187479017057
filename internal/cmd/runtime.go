package cmd

import (
	"github.com/spf13/cobra"

	"github.com/evs-automation/evsctl/internal/config"
	"github.com/evs-automation/evsctl/internal/locator"
	"github.com/evs-automation/evsctl/internal/logging"
	"github.com/evs-automation/evsctl/internal/telemetry"
	"github.com/evs-automation/evsctl/pkg/evs"
)

// appRuntime holds what every command needs once configuration is loaded.
type appRuntime struct {
	cfg      *config.Config
	logger   *logging.Logger
	recorder *telemetry.Recorder
}

var app *appRuntime

// configureSession, when set, adjusts every evs.Config the commands build.
// Tests use it to route sessions to a fake endpoint.
var configureSession func(*evs.Config)

func (a *appRuntime) sessionConfig() evs.Config {
	cfg := a.cfg.SessionConfig()
	cfg.Logger = a.logger
	cfg.Recorder = a.recorder
	if configureSession != nil {
		configureSession(&cfg)
	}
	return cfg
}

func (a *appRuntime) locator() *locator.Locator {
	if l := a.sessionConfig().Locator; l != nil {
		return l
	}
	return locator.New()
}

// selectorFlags are shared by commands that attach to a running instance.
type selectorFlags struct {
	pid      int
	name     string
	endpoint string
}

func (f *selectorFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.pid, "pid", 0, "attach to this process id")
	cmd.Flags().StringVar(&f.name, "name", "", "attach to the single process whose name matches this glob")
	cmd.Flags().StringVar(&f.endpoint, "endpoint", "", "endpoint path override; {pid} is replaced by the process id")
}

func (f *selectorFlags) selector() evs.Selector {
	return evs.Selector{PID: f.pid, NamePattern: f.name, Endpoint: f.endpoint}
}
