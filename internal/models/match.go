package models

// AgentMatch scores one registered agent against a TaskAnalysis.
type AgentMatch struct {
	AgentName           string   `json:"agent_name"`
	Score               float64  `json:"score"`
	MatchedCapabilities []string `json:"matched_capabilities"`
	MissingCapabilities []string `json:"missing_capabilities"`
	IsEligible          bool     `json:"is_eligible"`
	Reason              string   `json:"reason"`
}

// MatchResult holds every agent's match, best first, and the recommendation
// list the council starts from.
type MatchResult struct {
	Analysis          TaskAnalysis `json:"analysis"`
	Matches           []AgentMatch `json:"matches"`
	RecommendedAgents []string     `json:"recommended_agents"`
}

// Top returns the first recommended agent, or "" when there is none.
func (r *MatchResult) Top() string {
	if r == nil || len(r.RecommendedAgents) == 0 {
		return ""
	}
	return r.RecommendedAgents[0]
}
