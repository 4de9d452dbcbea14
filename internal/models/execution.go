package models

import "time"

// DefaultExecutionTimeout bounds a single CLI run when the caller sets none.
const DefaultExecutionTimeout = 300 * time.Second

// ExecutionContext carries the prompts and limits for one agent run.
type ExecutionContext struct {
	SystemPrompt     string
	UserPrompt       string
	WorkingDirectory string
	Timeout          time.Duration
}

// EffectiveTimeout returns Timeout, or DefaultExecutionTimeout when unset.
func (c ExecutionContext) EffectiveTimeout() time.Duration {
	if c.Timeout <= 0 {
		return DefaultExecutionTimeout
	}
	return c.Timeout
}

// ExecutionResult is the normalized outcome of running an agent.
type ExecutionResult struct {
	TaskID     string                 `json:"task_id,omitempty"`
	Success    bool                   `json:"success"`
	Response   string                 `json:"response"`
	Agent      string                 `json:"agent"`
	Method     string                 `json:"method"`
	DurationMs int64                  `json:"duration_ms"`
	Error      string                 `json:"error,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// Execution method tags.
const (
	MethodCLI  = "cli"
	MethodNone = "none"
)
