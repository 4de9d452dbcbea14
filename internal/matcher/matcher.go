// Package matcher scores registered agents against a task analysis.
package matcher

import (
	"math"
	"sort"

	"github.com/lastagent/lastagent/internal/config"
	"github.com/lastagent/lastagent/internal/models"
)

// MaxRecommended is the length of the recommendation list.
const MaxRecommended = 3

const (
	neutralBaseScore  = 0.5
	typeBonusPerCap   = 0.1
	realtimeBonus     = 0.1
	realtimePenalty   = 0.05
	multimodalBonus   = 0.1
	multimodalPenalty = 0.1
	longContextBonus  = 0.1

	reasonEligible     = "Meets requirements"
	reasonNoMultimodal = "Task requires multimodal but agent doesn't support it"
)

// taskTypePreferences maps a task type to the capabilities that earn a bonus.
var taskTypePreferences = map[models.TaskType][]string{
	models.TaskTypeCoding:       {models.CapCoding, models.CapDeepReasoning},
	models.TaskTypeResearch:     {models.CapResearch, models.CapRealtimeInfo},
	models.TaskTypeWriting:      {models.CapWriting, models.CapDeepReasoning},
	models.TaskTypeAnalysis:     {models.CapDeepReasoning, models.CapResearch},
	models.TaskTypeAutomation:   {models.CapMultistepWorkflows, models.CapSandboxedExecution},
	models.TaskTypeConversation: {models.CapDeepReasoning},
	models.TaskTypeUnknown:      {},
}

// generalPurposeAgents is returned for task types without preferences.
var generalPurposeAgents = []string{"claude", "gpt", "gemini"}

// Matcher ranks agents from a registry. It holds no mutable state.
type Matcher struct {
	registry *config.Registry
}

// New creates a Matcher over registry.
func New(registry *config.Registry) *Matcher {
	return &Matcher{registry: registry}
}

// Match scores every registered agent and builds the recommendation list:
// the top eligible agents, backfilled with the best ineligible ones.
func (m *Matcher) Match(analysis models.TaskAnalysis) models.MatchResult {
	profiles := m.registry.All()
	matches := make([]models.AgentMatch, 0, len(profiles))
	for i := range profiles {
		matches = append(matches, scoreAgent(&profiles[i], analysis))
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	recommended := make([]string, 0, MaxRecommended)
	for _, match := range matches {
		if len(recommended) == MaxRecommended {
			break
		}
		if match.IsEligible {
			recommended = append(recommended, match.AgentName)
		}
	}
	for _, match := range matches {
		if len(recommended) == MaxRecommended {
			break
		}
		if !match.IsEligible {
			recommended = append(recommended, match.AgentName)
		}
	}

	return models.MatchResult{
		Analysis:          analysis,
		Matches:           matches,
		RecommendedAgents: recommended,
	}
}

func scoreAgent(agent *config.AgentProfile, analysis models.TaskAnalysis) models.AgentMatch {
	match := models.AgentMatch{
		AgentName:           agent.Name,
		MatchedCapabilities: []string{},
		MissingCapabilities: []string{},
		IsEligible:          true,
		Reason:              reasonEligible,
	}

	seen := make(map[string]bool, len(analysis.DetectedCapabilities))
	for _, c := range analysis.DetectedCapabilities {
		if seen[c] {
			continue
		}
		seen[c] = true
		if agent.HasCapability(c) {
			match.MatchedCapabilities = append(match.MatchedCapabilities, c)
		} else {
			match.MissingCapabilities = append(match.MissingCapabilities, c)
		}
	}

	base := neutralBaseScore
	if required := len(seen); required > 0 {
		base = float64(len(match.MatchedCapabilities)) / float64(required)
	}

	typeBonus := 0.0
	for _, pref := range taskTypePreferences[analysis.TaskType] {
		if agent.HasCapability(pref) {
			typeBonus += typeBonusPerCap
		}
	}

	special := 0.0
	if analysis.RequiresRealtimeInfo {
		if agent.HasCapability(models.CapRealtimeInfo) || agent.HasCapability(models.CapSearchGrounding) {
			special += realtimeBonus
		} else {
			special -= realtimePenalty
		}
	}
	if analysis.RequiresMultimodal {
		if agent.HasCapability(models.CapMultimodal) {
			special += multimodalBonus
		} else {
			special -= multimodalPenalty
			match.IsEligible = false
			match.Reason = reasonNoMultimodal
		}
	}
	if analysis.RequiresLongContext {
		if agent.HasCapability(models.CapUltraLongContext) || agent.HasCapability(models.CapLongContext) {
			special += longContextBonus
		}
	}

	match.Score = round3(clamp(base+typeBonus+special, 0, 1))
	return match
}

// BestAgentsForTaskType ranks agents by how many of the task type's
// preferred capabilities they declare.
func (m *Matcher) BestAgentsForTaskType(taskType models.TaskType, limit int) []string {
	if limit <= 0 {
		return []string{}
	}

	prefs := taskTypePreferences[taskType]
	if len(prefs) == 0 {
		var registered []string
		for _, name := range generalPurposeAgents {
			if m.registry.Exists(name) {
				registered = append(registered, name)
			}
		}
		if len(registered) == 0 {
			registered = generalPurposeAgents
		}
		if limit > len(registered) {
			limit = len(registered)
		}
		return append([]string(nil), registered[:limit]...)
	}

	type scored struct {
		name  string
		score int
	}
	var ranked []scored
	for _, p := range m.registry.All() {
		s := 0
		for _, pref := range prefs {
			if p.HasCapability(pref) {
				s++
			}
		}
		ranked = append(ranked, scored{name: p.Name, score: s})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})

	if limit > len(ranked) {
		limit = len(ranked)
	}
	out := make([]string, 0, limit)
	for _, r := range ranked[:limit] {
		out = append(out, r.name)
	}
	return out
}

// AgentsForCapability returns the agents declaring capability.
func (m *Matcher) AgentsForCapability(capability string) []string {
	return m.registry.ByCapability(capability)
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
