package cmd

import (
	"github.com/spf13/cobra"
)

// Version is injected at build time via -ldflags
var Version = "dev"

// NewRootCommand creates and returns the root cobra command for lastagent
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lastagent",
		Short: "Route tasks to the best agent CLI by council vote",
		Long: `LastAgent routes each task to the agent CLI best suited for it.

A council of language models votes on the registered agents (Claude Code,
Gemini CLI, Aider, Codex, Goose). A chairman model makes the final pick and
the chosen CLI runs the task. Every selection is recorded in a decision
audit log, and users can rate the results.`,
		Version: Version,
		// Silence usage on errors to avoid duplicate help text
		SilenceUsage: true,
	}

	cmd.PersistentFlags().String("config", "", "Path to config file (default: .lastagent/config.yaml)")
	cmd.PersistentFlags().String("log-level", "", "Log level: trace, debug, info, warn, error (overrides config)")

	cmd.AddCommand(NewRunCommand())
	cmd.AddCommand(NewAgentsCommand())
	cmd.AddCommand(NewDecisionsCommand())
	cmd.AddCommand(NewFeedbackCommand())

	return cmd
}
