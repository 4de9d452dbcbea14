package models

// CouncilVote is one member's stage-one suggestion.
type CouncilVote struct {
	Model          string `json:"model"`
	SuggestedAgent string `json:"suggested_agent"`
	Reasoning      string `json:"reasoning"`
}

// CouncilRanking is one member's stage-two ordering, best first.
type CouncilRanking struct {
	Model       string   `json:"model"`
	Rankings    []string `json:"rankings"`
	RawResponse string   `json:"raw_response"`
}

// CouncilSelection is the final output of agent selection.
type CouncilSelection struct {
	SelectedAgent   string             `json:"selected_agent"`
	Confidence      float64            `json:"confidence"`
	Reasoning       string             `json:"reasoning"`
	Votes           []CouncilVote      `json:"votes"`
	Rankings        []CouncilRanking   `json:"rankings"`
	AggregateScores map[string]float64 `json:"aggregate_scores"`
	MatchResult     *MatchResult       `json:"match_result,omitempty"`
	UsedFallback    bool               `json:"used_fallback"`
}
