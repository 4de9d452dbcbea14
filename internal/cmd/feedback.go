package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lastagent/lastagent/internal/display"
	"github.com/lastagent/lastagent/internal/feedback"
)

// NewFeedbackCommand creates the feedback command group
func NewFeedbackCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "feedback",
		Short: "Rate agents and review collected feedback",
		Long: `Record 1-5 ratings for agent runs and review the aggregated results.

Feedback is kept in memory by default. Set feedback.store: sqlite in
.lastagent/config.yaml to keep it across runs.`,
	}

	cmd.AddCommand(newFeedbackSubmitCommand())
	cmd.AddCommand(newFeedbackSummaryCommand())
	cmd.AddCommand(newFeedbackRecentCommand())

	return cmd
}

func newFeedbackSubmitCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "submit <agent> <rating>",
		Short: "Record a rating for an agent",
		Example: `  lastagent feedback submit claude 5 --category accuracy
  lastagent feedback submit aider 2 --task 3f2a... --suggestion "ask before committing"`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			if !a.registry.Exists(args[0]) {
				return fmt.Errorf("unknown agent %q (registered: %s)", args[0], strings.Join(a.registry.Names(), ", "))
			}

			var rating int
			if _, err := fmt.Sscanf(args[1], "%d", &rating); err != nil {
				return fmt.Errorf("%w: %q is not a number", feedback.ErrInvalidRating, args[1])
			}

			categoryName, _ := cmd.Flags().GetString("category")
			category, err := feedback.ParseCategory(categoryName)
			if err != nil {
				return err
			}

			sub := feedback.Submission{AgentName: args[0], Rating: rating, Category: category}
			sub.TaskID, _ = cmd.Flags().GetString("task")
			sub.Comment, _ = cmd.Flags().GetString("comment")
			sub.Suggestions, _ = cmd.Flags().GetString("suggestion")

			c, err := a.feedbackCollector()
			if err != nil {
				return err
			}
			id, err := c.Submit(cmd.Context(), sub)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Recorded feedback %s\n", id)
			return nil
		},
	}

	cmd.Flags().String("category", string(feedback.CategoryResponseQuality), "Feedback category")
	cmd.Flags().String("task", "", "Task id the rating refers to")
	cmd.Flags().String("comment", "", "Free-form comment")
	cmd.Flags().String("suggestion", "", "Improvement suggestion")

	return cmd
}

func newFeedbackSummaryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show average ratings overall, by category and by agent",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			agent, _ := cmd.Flags().GetString("agent")
			var category feedback.Category
			if s, _ := cmd.Flags().GetString("category"); s != "" {
				if category, err = feedback.ParseCategory(s); err != nil {
					return err
				}
			}

			c, err := a.feedbackCollector()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			summary, err := c.Summary(ctx, agent, category)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				return writeJSON(out, summary)
			}

			pairs := [][2]string{
				{"Total", fmt.Sprintf("%d", summary.TotalCount)},
				{"Average rating", fmt.Sprintf("%.2f", summary.AverageRating)},
			}
			if best, ok, err := c.BestPerformingAgent(ctx); err == nil && ok {
				pairs = append(pairs, [2]string{"Best agent", best})
			}
			display.KeyValues(out, pairs)

			dist := make([][]string, 0, feedback.MaxRating)
			for r := feedback.MaxRating; r >= feedback.MinRating; r-- {
				dist = append(dist, []string{fmt.Sprintf("%d", r), fmt.Sprintf("%d", summary.Distribution[r])})
			}
			display.RenderTable(out, []string{"RATING", "COUNT"}, dist)
			display.RenderTable(out, []string{"CATEGORY", "AVERAGE"}, averageRows(summary.ByCategory))
			display.RenderTable(out, []string{"AGENT", "AVERAGE"}, averageRows(summary.ByAgent))

			if agent != "" {
				suggestions, err := c.ImprovementSuggestions(ctx, agent)
				if err != nil {
					return err
				}
				if len(suggestions) > 0 {
					display.Warning{
						Title: fmt.Sprintf("Suggestions for %s", agent),
						Items: suggestions,
					}.Display(out)
				}
			}
			return nil
		},
	}

	cmd.Flags().String("agent", "", "Only include this agent")
	cmd.Flags().String("category", "", "Only include this category")
	cmd.Flags().Bool("json", false, "Print as JSON")

	return cmd
}

func newFeedbackRecentCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recent",
		Short: "List the most recent feedback",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			c, err := a.feedbackCollector()
			if err != nil {
				return err
			}

			limit, _ := cmd.Flags().GetInt("limit")
			var items []feedback.Feedback
			if agent, _ := cmd.Flags().GetString("agent"); agent != "" {
				items, err = c.ForAgent(cmd.Context(), agent)
				if len(items) > limit && limit > 0 {
					items = items[:limit]
				}
			} else {
				items, err = c.Recent(cmd.Context(), limit)
			}
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(items))
			for _, f := range items {
				rows = append(rows, []string{
					f.CreatedAt.Format("2006-01-02 15:04"),
					f.AgentName,
					fmt.Sprintf("%d", f.Rating),
					string(f.Category),
					f.Comment,
				})
			}
			display.RenderTable(cmd.OutOrStdout(), []string{"CREATED", "AGENT", "RATING", "CATEGORY", "COMMENT"}, rows)
			return nil
		},
	}

	cmd.Flags().Int("limit", 20, "Maximum number of entries")
	cmd.Flags().String("agent", "", "Only show feedback for this agent")

	return cmd
}

func averageRows(avgs map[string]float64) [][]string {
	keys := make([]string, 0, len(avgs))
	for k := range avgs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	rows := make([][]string, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, []string{k, fmt.Sprintf("%.2f", avgs[k])})
	}
	return rows
}
