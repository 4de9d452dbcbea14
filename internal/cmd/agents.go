package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lastagent/lastagent/internal/display"
	"github.com/lastagent/lastagent/internal/executor"
)

// NewAgentsCommand creates the agents command
func NewAgentsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agents [name]",
		Short: "List registered agents or show one agent's profile",
		Long: `List every agent in the registry with its command, capabilities and
whether its CLI is installed. With a name, show the full profile.

Examples:
  lastagent agents
  lastagent agents gemini
  lastagent agents --capability research`,
		Args: cobra.MaximumNArgs(1),
		RunE: agentsCommand,
	}

	cmd.Flags().String("capability", "", "Only list agents declaring this capability")

	return cmd
}

func agentsCommand(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	exec := executor.New(a.registry, a.log)
	installed := make(map[string]bool)
	for _, name := range exec.AvailableAgents() {
		installed[name] = true
	}
	out := cmd.OutOrStdout()

	if len(args) == 1 {
		p, err := a.registry.Get(args[0])
		if err != nil {
			return err
		}
		display.KeyValues(out, [][2]string{
			{"Name", p.Name},
			{"Display name", p.DisplayName},
			{"Type", p.Type},
			{"Command", p.Command},
			{"Installed", yesNo(installed[p.Name])},
			{"Capabilities", strings.Join(p.Capabilities, ", ")},
			{"Strengths", strings.Join(p.Strengths, "; ")},
			{"MCP server", valueOr(p.MCPServer, "-")},
			{"Needs work dir", yesNo(p.RequiresWorkingDirectory)},
		})
		return nil
	}

	names := a.registry.Names()
	if capability, _ := cmd.Flags().GetString("capability"); capability != "" {
		names = a.registry.ByCapability(capability)
	}

	rows := make([][]string, 0, len(names))
	for _, name := range names {
		p, err := a.registry.Get(name)
		if err != nil {
			return err
		}
		rows = append(rows, []string{p.Name, p.Command, yesNo(installed[p.Name]), strings.Join(p.Capabilities, ", ")})
	}
	display.RenderTable(out, []string{"NAME", "COMMAND", "INSTALLED", "CAPABILITIES"}, rows)
	fmt.Fprintf(out, "%d of %d agents installed\n", len(installed), a.registry.Len())
	return nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func valueOr(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
