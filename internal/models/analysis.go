// Package models defines the value types passed between the selection and
// execution stages of the LastAgent pipeline.
package models

import (
	"errors"
	"fmt"
	"strings"
)

// TaskType is the coarse classification of a prompt.
type TaskType string

// Task types in declaration order. Classification ties resolve to the
// earliest type in this list.
const (
	TaskTypeCoding       TaskType = "coding"
	TaskTypeResearch     TaskType = "research"
	TaskTypeWriting      TaskType = "writing"
	TaskTypeAnalysis     TaskType = "analysis"
	TaskTypeAutomation   TaskType = "automation"
	TaskTypeConversation TaskType = "conversation"
	TaskTypeUnknown      TaskType = "unknown"
)

// ErrInvalidTaskType is returned when a string does not name a TaskType.
var ErrInvalidTaskType = errors.New("invalid task type")

// TaskTypes returns all task types in declaration order.
func TaskTypes() []TaskType {
	return []TaskType{
		TaskTypeCoding,
		TaskTypeResearch,
		TaskTypeWriting,
		TaskTypeAnalysis,
		TaskTypeAutomation,
		TaskTypeConversation,
		TaskTypeUnknown,
	}
}

// ParseTaskType maps a wire string to a TaskType.
func ParseTaskType(s string) (TaskType, error) {
	normalized := TaskType(strings.ToLower(strings.TrimSpace(s)))
	for _, t := range TaskTypes() {
		if t == normalized {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidTaskType, s)
}

// Capability tags shared by the analyzer, the registry and the matcher.
const (
	CapCoding             = "coding"
	CapGitIntegration     = "git_integration"
	CapResearch           = "research"
	CapRealtimeInfo       = "realtime_info"
	CapSearchGrounding    = "search_grounding"
	CapDeepReasoning      = "deep_reasoning"
	CapWriting            = "writing"
	CapMultimodal         = "multimodal"
	CapLongContext        = "long_context"
	CapUltraLongContext   = "ultra_long_context"
	CapSandboxedExecution = "sandboxed_execution"
	CapMultistepWorkflows = "multistep_workflows"
	CapMCPIntegration     = "mcp_integration"
)

// KnownCapabilities lists every capability tag an agent profile may declare.
func KnownCapabilities() []string {
	return []string{
		CapCoding,
		CapGitIntegration,
		CapResearch,
		CapRealtimeInfo,
		CapSearchGrounding,
		CapDeepReasoning,
		CapWriting,
		CapMultimodal,
		CapLongContext,
		CapUltraLongContext,
		CapSandboxedExecution,
		CapMultistepWorkflows,
		CapMCPIntegration,
	}
}

// TaskAnalysis is the result of classifying a prompt.
type TaskAnalysis struct {
	TaskType                 TaskType `json:"task_type"`
	DetectedCapabilities     []string `json:"detected_capabilities"`
	KeywordsMatched          []string `json:"keywords_matched"`
	RequiresWorkingDirectory bool     `json:"requires_working_directory"`
	RequiresRealtimeInfo     bool     `json:"requires_realtime_info"`
	RequiresMultimodal       bool     `json:"requires_multimodal"`
	RequiresLongContext      bool     `json:"requires_long_context"`
	Confidence               float64  `json:"confidence"`
}

// HasCapability reports whether cap was detected.
func (a *TaskAnalysis) HasCapability(cap string) bool {
	for _, c := range a.DetectedCapabilities {
		if c == cap {
			return true
		}
	}
	return false
}
