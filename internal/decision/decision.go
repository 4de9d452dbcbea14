// Package decision keeps the audit trail of choices made by the pipeline,
// optionally mirrored to an append-only JSONL file.
package decision

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned for unknown decision ids.
	ErrNotFound = errors.New("decision not found")

	// ErrInvalidType is returned by ParseType.
	ErrInvalidType = errors.New("invalid decision type")

	// ErrInvalidStatus is returned by ParseStatus.
	ErrInvalidStatus = errors.New("invalid decision status")

	// ErrUnreadableLog is returned by Compact when the log has lines it
	// cannot replay.
	ErrUnreadableLog = errors.New("decision log has unreadable lines")
)

// Type classifies a decision.
type Type string

const (
	TypeAgentSelection     Type = "agent_selection"
	TypeAgentExecution     Type = "agent_execution"
	TypeInterAgentCall     Type = "inter_agent_call"
	TypeApprovalRequest    Type = "approval_request"
	TypeApprovalResponse   Type = "approval_response"
	TypeTaskPrioritization Type = "task_prioritization"
	TypeCodeGeneration     Type = "code_generation"
	TypeDeployment         Type = "deployment"
	TypeResourceAllocation Type = "resource_allocation"
)

// Types lists every decision type.
func Types() []Type {
	return []Type{
		TypeAgentSelection, TypeAgentExecution, TypeInterAgentCall,
		TypeApprovalRequest, TypeApprovalResponse, TypeTaskPrioritization,
		TypeCodeGeneration, TypeDeployment, TypeResourceAllocation,
	}
}

// ParseType accepts a type name in any case.
func ParseType(s string) (Type, error) {
	t := Type(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Types() {
		if t == known {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidType, s)
}

// Status is the lifecycle state of a decision.
type Status string

const (
	StatusPending   Status = "pending"
	StatusExecuted  Status = "executed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// ParseStatus accepts a status name in any case.
func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusPending, StatusExecuted, StatusFailed, StatusCancelled:
		return st, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
}

// OutcomeSuccess is the outcome status counted by the success rate.
const OutcomeSuccess = "success"

// Alternative is an option that was considered and not taken.
type Alternative struct {
	Name   string  `json:"name"`
	Score  float64 `json:"score"`
	Reason string  `json:"reason"`
}

// Decision is one audit record.
type Decision struct {
	ID            string                 `json:"id"`
	Type          Type                   `json:"decision_type"`
	Title         string                 `json:"title"`
	Reasoning     string                 `json:"reasoning"`
	Confidence    float64                `json:"confidence_score"`
	RiskLevel     string                 `json:"risk_level"`
	Agent         string                 `json:"agent"`
	Status        Status                 `json:"status"`
	Alternatives  []Alternative          `json:"alternatives"`
	Context       map[string]interface{} `json:"context,omitempty"`
	OutcomeStatus string                 `json:"outcome_status,omitempty"`
	OutcomeData   map[string]interface{} `json:"outcome_data,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
	UpdatedAt     *time.Time             `json:"updated_at,omitempty"`
	TaskID        string                 `json:"task_id,omitempty"`
	SessionID     string                 `json:"session_id,omitempty"`
}

// Entry is the input to Logger.Log.
type Entry struct {
	Type         Type
	Title        string
	Reasoning    string
	Confidence   float64
	RiskLevel    string
	Alternatives []Alternative
	Context      map[string]interface{}
	TaskID       string
	SessionID    string
}

// Filter narrows List. Zero values match everything; Limit <= 0 means 100.
type Filter struct {
	Type   Type
	Status Status
	Limit  int
}

// DefaultListLimit caps List when the filter sets no limit.
const DefaultListLimit = 100

// Stats aggregates the log.
type Stats struct {
	Total             int            `json:"total_decisions"`
	ByType            map[string]int `json:"decisions_by_type"`
	ByStatus          map[string]int `json:"decisions_by_status"`
	AverageConfidence float64        `json:"average_confidence"`
	SuccessRate       float64        `json:"success_rate"`
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
