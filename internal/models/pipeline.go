package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// TaskStatus tracks a task through the pipeline.
type TaskStatus string

const (
	TaskPending          TaskStatus = "pending"
	TaskCouncilSelecting TaskStatus = "council_selecting"
	TaskAwaitingApproval TaskStatus = "awaiting_approval"
	TaskExecuting        TaskStatus = "executing"
	TaskCompleted        TaskStatus = "completed"
	TaskFailed           TaskStatus = "failed"
	TaskRejected         TaskStatus = "rejected"
)

// IsTerminal reports whether no further transition can happen.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskCompleted || s == TaskFailed || s == TaskRejected
}

// ApprovalMode decides when the orchestrator gates execution.
type ApprovalMode string

const (
	ApprovalAuto            ApprovalMode = "auto"
	ApprovalApproveAll      ApprovalMode = "approve_all"
	ApprovalApproveHighRisk ApprovalMode = "approve_high_risk"
)

// ErrInvalidApprovalMode is returned for unknown approval mode strings.
var ErrInvalidApprovalMode = errors.New("invalid approval mode")

// ParseApprovalMode accepts the wire names in any case, with dashes or underscores.
func ParseApprovalMode(s string) (ApprovalMode, error) {
	normalized := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	switch ApprovalMode(normalized) {
	case ApprovalAuto, ApprovalApproveAll, ApprovalApproveHighRisk:
		return ApprovalMode(normalized), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidApprovalMode, s)
}

// StatusChange is one entry in a task's status history.
type StatusChange struct {
	Status TaskStatus `json:"status"`
	At     time.Time  `json:"at"`
}

// TaskRecord is the orchestrator's view of one submitted task.
type TaskRecord struct {
	ID               string            `json:"id"`
	SystemPrompt     string            `json:"system_prompt"`
	UserPrompt       string            `json:"user_prompt"`
	WorkingDirectory string            `json:"working_directory,omitempty"`
	Status           TaskStatus        `json:"status"`
	History          []StatusChange    `json:"history"`
	Selection        *CouncilSelection `json:"selection,omitempty"`
	Result           *ExecutionResult  `json:"result,omitempty"`
	DecisionID       string            `json:"decision_id,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
}

// SetStatus moves the record to status and appends it to the history.
func (t *TaskRecord) SetStatus(status TaskStatus) {
	t.Status = status
	t.History = append(t.History, StatusChange{Status: status, At: time.Now()})
}
