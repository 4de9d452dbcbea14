package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/lastagent/lastagent/internal/decision"
	"github.com/lastagent/lastagent/internal/display"
)

// NewDecisionsCommand creates the decisions command
func NewDecisionsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decisions",
		Short: "Show the decision audit log",
		Long: `Show recorded decisions, newest first, from the persisted decision log
(default .agents/decisions.jsonl).

Examples:
  lastagent decisions
  lastagent decisions --type agent_selection --limit 5
  lastagent decisions --status failed
  lastagent decisions --stats
  lastagent decisions --compact`,
		Args: cobra.NoArgs,
		RunE: decisionsCommand,
	}

	cmd.Flags().String("type", "", "Filter by decision type")
	cmd.Flags().String("status", "", "Filter by status (pending, executed, failed, cancelled)")
	cmd.Flags().Int("limit", decision.DefaultListLimit, "Maximum number of decisions to show")
	cmd.Flags().Bool("stats", false, "Show aggregate statistics instead of a list")
	cmd.Flags().Bool("compact", false, "Rewrite the log keeping only the latest line per decision")
	cmd.Flags().Bool("json", false, "Print as JSON")

	return cmd
}

func decisionsCommand(cmd *cobra.Command, _ []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	out := cmd.OutOrStdout()
	asJSON, _ := cmd.Flags().GetBool("json")

	if compact, _ := cmd.Flags().GetBool("compact"); compact {
		// Compaction reads the file itself, so it does not depend on
		// decisions.persist or on what was loaded into memory.
		log := decision.NewLogger(decision.Options{Path: a.cfg.Decisions.Path})
		if err := log.Compact(); err != nil {
			return fmt.Errorf("failed to compact decision log: %w", err)
		}
		fmt.Fprintf(out, "Compacted %s\n", log.Path())
		return nil
	}

	dl := a.decisionLogger()

	if stats, _ := cmd.Flags().GetBool("stats"); stats {
		s := dl.Stats()
		if asJSON {
			return writeJSON(out, s)
		}
		display.KeyValues(out, [][2]string{
			{"Total", fmt.Sprintf("%d", s.Total)},
			{"Average confidence", fmt.Sprintf("%.3f", s.AverageConfidence)},
			{"Success rate", fmt.Sprintf("%.3f", s.SuccessRate)},
		})
		display.RenderTable(out, []string{"TYPE", "COUNT"}, countRows(s.ByType))
		display.RenderTable(out, []string{"STATUS", "COUNT"}, countRows(s.ByStatus))
		return nil
	}

	var f decision.Filter
	if s, _ := cmd.Flags().GetString("type"); s != "" {
		if f.Type, err = decision.ParseType(s); err != nil {
			return err
		}
	}
	if s, _ := cmd.Flags().GetString("status"); s != "" {
		if f.Status, err = decision.ParseStatus(s); err != nil {
			return err
		}
	}
	f.Limit, _ = cmd.Flags().GetInt("limit")

	list := dl.List(f)
	if asJSON {
		return writeJSON(out, list)
	}

	rows := make([][]string, 0, len(list))
	for _, d := range list {
		rows = append(rows, []string{
			d.CreatedAt.Format("2006-01-02 15:04:05"),
			string(d.Type),
			string(d.Status),
			fmt.Sprintf("%.2f", d.Confidence),
			d.Title,
		})
	}
	display.RenderTable(out, []string{"CREATED", "TYPE", "STATUS", "CONFIDENCE", "TITLE"}, rows)
	return nil
}

func countRows(counts map[string]int) [][]string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	rows := make([][]string, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, []string{k, fmt.Sprintf("%d", counts[k])})
	}
	return rows
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
