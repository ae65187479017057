package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/evs-automation/evsctl/pkg/evs"
)

var (
	attachSelector selectorFlags
	attachYAML     bool
)

var attachCmd = &cobra.Command{
	Use:   "attach",
	Short: "Connect to a running EVS instance and print its information",
	Args:  cobra.NoArgs,
	RunE:  runAttach,
}

func init() {
	attachSelector.register(attachCmd)
	attachCmd.Flags().BoolVar(&attachYAML, "yaml", false, "print the information as YAML")
	rootCmd.AddCommand(attachCmd)
}

// instanceInfo is what attach reports about an instance.
type instanceInfo struct {
	PID         int            `yaml:"pid"`
	Endpoint    string         `yaml:"endpoint"`
	APIVersion  string         `yaml:"api_version"`
	Application map[string]any `yaml:"application,omitempty"`
	Modules     []string       `yaml:"modules"`
}

func runAttach(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	var info instanceInfo
	err := evs.WithExisting(ctx, attachSelector.selector(), app.sessionConfig(), func(s *evs.Session) error {
		version, err := s.APIVersion(ctx)
		if err != nil {
			return err
		}
		appInfo, err := s.ApplicationInfo(ctx)
		if err != nil {
			return err
		}
		modules, err := s.Modules(ctx)
		if err != nil {
			return err
		}

		info = instanceInfo{
			PID:         s.PID(),
			Endpoint:    s.Endpoint(),
			APIVersion:  version,
			Application: appInfo,
			Modules:     make([]string, len(modules)),
		}
		for i, m := range modules {
			info.Modules[i] = m.Name()
		}
		return nil
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if attachYAML {
		data, err := yaml.Marshal(info)
		if err != nil {
			return fmt.Errorf("failed to encode info: %w", err)
		}
		_, err = out.Write(data)
		return err
	}

	fmt.Fprintf(out, "PID:         %d\n", info.PID)
	fmt.Fprintf(out, "Endpoint:    %s\n", info.Endpoint)
	fmt.Fprintf(out, "API version: %s\n", info.APIVersion)
	if len(info.Application) > 0 {
		fmt.Fprintln(out, "Application:")
		keys := make([]string, 0, len(info.Application))
		for k := range info.Application {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(out, "  %s: %v\n", k, info.Application[k])
		}
	}
	fmt.Fprintf(out, "Modules (%d):\n", len(info.Modules))
	for _, m := range info.Modules {
		fmt.Fprintf(out, "  %s\n", m)
	}
	return nil
}
