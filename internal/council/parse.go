package council

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/lastagent/lastagent/internal/models"
)

// defaultChairmanConfidence is used when the chairman omits a usable confidence.
const defaultChairmanConfidence = 0.7

var (
	suggestionPattern = regexp.MustCompile(`^(\w+)\s*:\s*(.*)`)
	rankingPattern    = regexp.MustCompile(`^\d+\.\s*(\w+)`)
)

// parseSuggestion extracts an agent name and reason from a stage-one reply.
// It returns ok=false when no valid agent can be found.
func parseSuggestion(text string, valid func(string) bool) (agent, reason string, ok bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", "", false
	}

	if m := suggestionPattern.FindStringSubmatch(trimmed); m != nil {
		name := strings.ToLower(m[1])
		if valid(name) {
			return name, strings.TrimSpace(m[2]), true
		}
	}

	words := strings.Fields(trimmed)
	first := strings.TrimRight(strings.ToLower(words[0]), ":.,")
	if valid(first) {
		return first, trimmed, true
	}
	return "", "", false
}

// parseRanking keeps numbered-list entries that name a valid agent, in order,
// without duplicates.
func parseRanking(text string, valid []string) []string {
	allowed := make(map[string]bool, len(valid))
	for _, v := range valid {
		allowed[v] = true
	}

	ranked := []string{}
	seen := make(map[string]bool)
	for _, line := range strings.Split(text, "\n") {
		m := rankingPattern.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		name := strings.ToLower(m[1])
		if allowed[name] && !seen[name] {
			seen[name] = true
			ranked = append(ranked, name)
		}
	}
	return ranked
}

// chairmanDecision is the parsed stage-three reply.
type chairmanDecision struct {
	Selected   string
	Confidence float64
	Reasoning  string
}

// parseChairman reads SELECTED, CONFIDENCE and REASONING lines. Selected is
// empty when the reply names no valid agent.
func parseChairman(text string, valid func(string) bool) chairmanDecision {
	d := chairmanDecision{
		Confidence: defaultChairmanConfidence,
		Reasoning:  "Chairman selection",
	}

	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		value = strings.TrimSpace(value)

		switch strings.ToUpper(strings.TrimSpace(key)) {
		case "SELECTED":
			name := strings.ToLower(value)
			if valid(name) {
				d.Selected = name
			}
		case "CONFIDENCE":
			if c, err := strconv.ParseFloat(value, 64); err == nil {
				d.Confidence = clampUnit(c)
			}
		case "REASONING":
			d.Reasoning = value
		}
	}
	return d
}

// majorityVote returns the most suggested agent. Ties go to the agent that
// was suggested first.
func majorityVote(votes []models.CouncilVote) string {
	counts := make(map[string]int)
	var order []string
	for _, v := range votes {
		if v.SuggestedAgent == "" {
			continue
		}
		if counts[v.SuggestedAgent] == 0 {
			order = append(order, v.SuggestedAgent)
		}
		counts[v.SuggestedAgent]++
	}

	best := ""
	bestCount := 0
	for _, name := range order {
		if counts[name] > bestCount {
			best = name
			bestCount = counts[name]
		}
	}
	return best
}

// aggregateScores combines weighted vote counts with rank-position points
// (len(ranking)-index, halved) and min-max normalizes the result. When every
// agent has the same score, each gets 1.0.
func aggregateScores(votes []models.CouncilVote, rankings []models.CouncilRanking, weights map[string]float64) map[string]float64 {
	scores := make(map[string]float64)
	for _, v := range votes {
		if v.SuggestedAgent == "" {
			continue
		}
		w, ok := weights[v.Model]
		if !ok {
			w = 1.0
		}
		scores[v.SuggestedAgent] += w
	}
	for _, r := range rankings {
		for i, agent := range r.Rankings {
			scores[agent] += float64(len(r.Rankings)-i) * 0.5
		}
	}

	if len(scores) == 0 {
		return scores
	}

	lo, hi := 0.0, 0.0
	first := true
	for _, s := range scores {
		if first {
			lo, hi = s, s
			first = false
			continue
		}
		if s < lo {
			lo = s
		}
		if s > hi {
			hi = s
		}
	}

	span := hi - lo
	for k, s := range scores {
		if span == 0 {
			scores[k] = 1.0
			continue
		}
		scores[k] = (s - lo) / span
	}
	return scores
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
