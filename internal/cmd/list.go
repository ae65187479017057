package cmd

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/evs-automation/evsctl/internal/locator"
	"github.com/evs-automation/evsctl/internal/transport"
)

var listName string

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List running EVS instances",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	listCmd.Flags().StringVar(&listName, "name", "", "process name glob (default from evs.process_name)")
	rootCmd.AddCommand(listCmd)
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#A78BFA"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#9CA3AF"))
)

func runList(cmd *cobra.Command, args []string) error {
	cfg := app.sessionConfig()
	pattern := listName
	if pattern == "" {
		pattern = cfg.ProcessName
	}

	instances, err := app.locator().Find(cmd.Context(), pattern)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(instances) == 0 {
		fmt.Fprintln(out, "No running EVS instances.")
		return nil
	}

	rows := make([][]string, len(instances))
	for i, inst := range instances {
		rows[i] = []string{
			strconv.Itoa(inst.PID),
			inst.Name,
			endpointFor(cfg.Endpoint, inst.PID),
			formatStarted(inst),
		}
	}
	writeTable(out, []string{"PID", "NAME", "ENDPOINT", "STARTED"}, rows, isTerminal(out))
	return nil
}

func endpointFor(override string, pid int) string {
	if override == "" {
		return transport.EndpointForPID(pid)
	}
	return strings.ReplaceAll(override, "{pid}", strconv.Itoa(pid))
}

func formatStarted(inst locator.Instance) string {
	if inst.Started.IsZero() {
		return "-"
	}
	return inst.Started.Local().Format(time.DateTime)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// writeTable prints left-aligned columns. Styling is applied after padding
// so escape codes do not disturb alignment.
func writeTable(w io.Writer, header []string, rows [][]string, styled bool) {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], len(cell))
		}
	}

	format := func(cells []string) string {
		padded := make([]string, len(cells))
		for i, cell := range cells {
			padded[i] = fmt.Sprintf("%-*s", widths[i], cell)
		}
		return strings.TrimRight(strings.Join(padded, "  "), " ")
	}

	line := format(header)
	if styled {
		line = headerStyle.Render(line)
	}
	fmt.Fprintln(w, line)
	for _, row := range rows {
		line := format(row)
		if styled {
			line = mutedStyle.Render(line)
		}
		fmt.Fprintln(w, line)
	}
}
