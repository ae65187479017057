package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/evs-automation/evsctl/pkg/evs"
)

var (
	setSelector selectorFlags
	setPort     string
	setString   bool
)

var setCmd = &cobra.Command{
	Use:   "set <module> <category> <property> <value>",
	Short: "Set a module or port property",
	Long: `Set a property on a module in a running EVS instance. The value is parsed
as a YAML scalar, so 12, 0.5, true and "text" become a number, a boolean and
a string. Use --string to send the value unparsed.

Examples:
  evsctl set titles Properties Title "Site overview"
  evsctl set viewer View Scale 1.5
  evsctl set --port "Input Field" explode_and_scale Properties Visible false`,
	Args: cobra.ExactArgs(4),
	RunE: runSet,
}

func init() {
	setSelector.register(setCmd)
	setCmd.Flags().StringVar(&setPort, "port", "", "set the property on this port of the module")
	setCmd.Flags().BoolVar(&setString, "string", false, "send the value as a string without parsing")
	rootCmd.AddCommand(setCmd)
}

func runSet(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	name, category, property := args[0], args[1], args[2]

	var value any = args[3]
	if !setString {
		v, err := parseValue(args[3])
		if err != nil {
			return err
		}
		value = v
	}

	return evs.WithExisting(ctx, setSelector.selector(), app.sessionConfig(), func(s *evs.Session) error {
		ref, err := s.Module(name)
		if err != nil {
			return err
		}
		if setPort != "" {
			err = s.SetPort(ctx, ref, setPort, category, property, value)
		} else {
			err = s.SetModule(ctx, ref, category, property, value)
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s.%s.%s = %v\n", name, category, property, value)
		return nil
	})
}

// parseValue decodes a command-line value as a YAML scalar.
func parseValue(raw string) (any, error) {
	var node yaml.Node
	if err := yaml.Unmarshal([]byte(raw), &node); err != nil {
		return nil, fmt.Errorf("invalid value %q: %w", raw, err)
	}
	if len(node.Content) == 0 {
		return raw, nil
	}
	if node.Content[0].Kind != yaml.ScalarNode {
		return nil, fmt.Errorf("invalid value %q: expected a single value", raw)
	}
	var v any
	if err := node.Content[0].Decode(&v); err != nil {
		return nil, fmt.Errorf("invalid value %q: %w", raw, err)
	}
	if v == nil {
		return raw, nil
	}
	return v, nil
}
