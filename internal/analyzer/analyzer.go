// Package analyzer infers a task type and required capabilities from prompt
// text using a keyword pattern table. The classification is heuristic.
package analyzer

import (
	"strings"

	"github.com/lastagent/lastagent/internal/models"
)

// Analyzer classifies prompts. The zero value is not usable; call New.
// An Analyzer is immutable and safe for concurrent use.
type Analyzer struct {
	capabilityRules []CapabilityRule
	taskTypeRules   []TaskTypeRule
}

// New returns an Analyzer with the built-in pattern tables.
func New() *Analyzer {
	return &Analyzer{
		capabilityRules: defaultCapabilityRules(),
		taskTypeRules:   defaultTaskTypeRules(),
	}
}

// NewWithRules returns an Analyzer over custom tables. Task-type rule order
// decides ties.
func NewWithRules(capabilities []CapabilityRule, taskTypes []TaskTypeRule) *Analyzer {
	return &Analyzer{
		capabilityRules: capabilities,
		taskTypeRules:   taskTypes,
	}
}

// Analyze classifies the combined system and user prompt.
func (a *Analyzer) Analyze(userPrompt, systemPrompt string) models.TaskAnalysis {
	text := strings.TrimSpace(systemPrompt + " " + userPrompt)

	capabilities, keywords := a.detectCapabilities(text)
	taskType, confidence := a.detectTaskType(text)

	analysis := models.TaskAnalysis{
		TaskType:             taskType,
		DetectedCapabilities: capabilities,
		KeywordsMatched:      keywords,
		Confidence:           confidence,
	}
	analysis.RequiresWorkingDirectory = requiresWorkingDirectory(text, &analysis)
	analysis.RequiresRealtimeInfo = analysis.HasCapability(models.CapRealtimeInfo)
	analysis.RequiresMultimodal = analysis.HasCapability(models.CapMultimodal)
	analysis.RequiresLongContext = analysis.HasCapability(models.CapLongContext)

	return analysis
}

func (a *Analyzer) detectCapabilities(text string) ([]string, []string) {
	capabilities := []string{}
	keywords := []string{}
	if text == "" {
		return capabilities, keywords
	}

	for _, rule := range a.capabilityRules {
		detected := false
		for _, p := range rule.Patterns {
			matches := p.FindAllString(text, -1)
			if len(matches) == 0 {
				continue
			}
			detected = true
			keywords = append(keywords, matches...)
		}
		if detected {
			capabilities = append(capabilities, rule.Capability)
		}
	}
	return capabilities, keywords
}

func (a *Analyzer) detectTaskType(text string) (models.TaskType, float64) {
	if text == "" {
		return models.TaskTypeUnknown, 0
	}

	best := -1
	bestScore := 0
	for i, rule := range a.taskTypeRules {
		score := 0
		for _, p := range rule.Patterns {
			if p.MatchString(text) {
				score++
			}
		}
		// Strict comparison keeps the earliest declared type on ties.
		if score > bestScore {
			best = i
			bestScore = score
		}
	}

	if best < 0 {
		return models.TaskTypeUnknown, 0
	}

	rule := a.taskTypeRules[best]
	confidence := float64(bestScore) / float64(len(rule.Patterns))
	if confidence > 1 {
		confidence = 1
	}
	return rule.TaskType, confidence
}

func requiresWorkingDirectory(text string, analysis *models.TaskAnalysis) bool {
	if analysis.HasCapability(models.CapGitIntegration) || analysis.HasCapability(models.CapSandboxedExecution) {
		return true
	}
	for _, p := range workingDirectoryPatterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}
