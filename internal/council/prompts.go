package council

import (
	"fmt"
	"strings"

	"github.com/lastagent/lastagent/internal/config"
	"github.com/lastagent/lastagent/internal/models"
)

// formatRoster renders one line per agent: first strength and up to three
// capabilities.
func formatRoster(registry *config.Registry) string {
	var lines []string
	for _, agent := range registry.All() {
		caps := agent.Capabilities
		if len(caps) > 3 {
			caps = caps[:3]
		}
		strength := ""
		if len(agent.Strengths) > 0 {
			strength = agent.Strengths[0]
		}
		lines = append(lines, fmt.Sprintf("- %s: %s (capabilities: %s)", agent.Name, strength, strings.Join(caps, ", ")))
	}
	return strings.Join(lines, "\n")
}

func suggestPrompt(userPrompt, systemPrompt, roster string) string {
	return fmt.Sprintf(`You are helping to select the best AI agent for a task.

Task Context:
%s

User Request:
%s

Available Agents:
%s

Based on the task requirements, which agent would be BEST suited to handle this task?
Reply with ONLY the agent name (e.g., "claude", "gemini", "aider") followed by a brief reason.
Format: <agent_name>: <brief reason>`, systemPrompt, userPrompt, roster)
}

func rankPrompt(userPrompt string, suggestions []string) string {
	return fmt.Sprintf(`The following agents were suggested for this task:
%s

Task: %s

Rank these agents from best to worst for this specific task.
Reply with a numbered list:
1. <best agent>
2. <second best>
...etc`, strings.Join(suggestions, ", "), userPrompt)
}

func chairmanPrompt(userPrompt string, votes []models.CouncilVote, rankings []models.CouncilRanking, recommended []string) string {
	voteLines := make([]string, 0, len(votes))
	for _, v := range votes {
		voteLines = append(voteLines, fmt.Sprintf("- %s: %s (%s)", v.Model, v.SuggestedAgent, v.Reasoning))
	}

	var rankLines []string
	for _, r := range rankings {
		if len(r.Rankings) == 0 {
			continue
		}
		top := r.Rankings
		if len(top) > 3 {
			top = top[:3]
		}
		rankLines = append(rankLines, fmt.Sprintf("- %s: %s", r.Model, strings.Join(top, ", ")))
	}

	return fmt.Sprintf(`You are the Chairman making the final agent selection.

Task: %s

Council Votes:
%s

Council Rankings:
%s

Local Analysis Recommendation: %s

Make the final selection. Reply with:
SELECTED: <agent_name>
CONFIDENCE: <0.0 to 1.0>
REASONING: <brief explanation>`,
		userPrompt,
		strings.Join(voteLines, "\n"),
		strings.Join(rankLines, "\n"),
		strings.Join(recommended, ", "))
}
