// Package approval gates agent actions behind human sign-off according to
// the configured approval mode and the action's risk.
package approval

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lastagent/lastagent/internal/models"
)

// ErrNotFound is returned when a request id is not pending.
var ErrNotFound = errors.New("approval request not found")

// ErrInvalidRiskLevel is returned by ParseRiskLevel for unknown values.
var ErrInvalidRiskLevel = errors.New("invalid risk level")

// Mode is the approval policy.
type Mode = models.ApprovalMode

// ParseMode validates an approval mode string.
func ParseMode(s string) (Mode, error) {
	return models.ParseApprovalMode(s)
}

// Status is the lifecycle state of a request.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusTimeout  Status = "timeout"
)

// RiskLevel grades how dangerous an action is.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// ParseRiskLevel validates a risk level string.
func ParseRiskLevel(s string) (RiskLevel, error) {
	switch r := RiskLevel(s); r {
	case RiskLow, RiskMedium, RiskHigh, RiskCritical:
		return r, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidRiskLevel, s)
}

// Action types that always require approval in approve_high_risk mode.
var highRiskActions = map[string]bool{
	"file_deletion":         true,
	"git_push":              true,
	"deployment":            true,
	"database_modification": true,
	"external_api_mutation": true,
	"payment_processing":    true,
	"user_data_access":      true,
	"configuration_change":  true,
}

var criticalActions = map[string]bool{
	"deployment":         true,
	"payment_processing": true,
	"user_data_access":   true,
}

// Action types recorded by the orchestrator.
const (
	ActionAgentSelection = "agent_selection"
	ActionAgentExecution = "agent_execution"
)

// IsHighRiskAction reports whether actionType is in the fixed high-risk set.
func IsHighRiskAction(actionType string) bool {
	return highRiskActions[actionType]
}

// ClassifyRisk grades an action from its type, then from the "destructive"
// and "external" detail flags.
func ClassifyRisk(actionType string, details map[string]interface{}) RiskLevel {
	if criticalActions[actionType] {
		return RiskCritical
	}
	if highRiskActions[actionType] {
		return RiskHigh
	}
	if flag(details, "destructive") {
		return RiskHigh
	}
	if flag(details, "external") {
		return RiskMedium
	}
	return RiskLow
}

func flag(details map[string]interface{}, key string) bool {
	v, ok := details[key].(bool)
	return ok && v
}

// Request is a pending or resolved approval.
type Request struct {
	ID               string                 `json:"id"`
	ActionType       string                 `json:"action_type"`
	Title            string                 `json:"title"`
	Description      string                 `json:"description"`
	AgentName        string                 `json:"agent_name"`
	RiskLevel        RiskLevel              `json:"risk_level"`
	Details          map[string]interface{} `json:"details,omitempty"`
	Status           Status                 `json:"status"`
	CreatedAt        time.Time              `json:"created_at"`
	ResolvedAt       *time.Time             `json:"resolved_at,omitempty"`
	ResolutionReason string                 `json:"resolution_reason,omitempty"`
	Responder        string                 `json:"responder,omitempty"`
}

// Response is the outcome of resolving a request.
type Response struct {
	RequestID string    `json:"request_id"`
	Approved  bool      `json:"approved"`
	Reason    string    `json:"reason,omitempty"`
	Responder string    `json:"responder"`
	Timestamp time.Time `json:"timestamp"`
}

// Manager holds pending requests and the resolved history. It is safe for
// concurrent use.
type Manager struct {
	mu        sync.Mutex
	mode      Mode
	pending   map[string]*Request
	completed []*Request
}

// NewManager creates a manager with the given mode. An empty mode means auto.
func NewManager(mode Mode) *Manager {
	if mode == "" {
		mode = models.ApprovalAuto
	}
	return &Manager{
		mode:    mode,
		pending: make(map[string]*Request),
	}
}

// Mode returns the current policy.
func (m *Manager) Mode() Mode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mode
}

// SetMode changes the policy for subsequent checks.
func (m *Manager) SetMode(mode Mode) {
	m.mu.Lock()
	m.mode = mode
	m.mu.Unlock()
}

// RequiresApproval applies the current mode to an action.
func (m *Manager) RequiresApproval(actionType string, risk RiskLevel) bool {
	return RequiresApprovalFor(m.Mode(), actionType, risk)
}

// RequiresApprovalFor applies mode to an action.
func RequiresApprovalFor(mode Mode, actionType string, risk RiskLevel) bool {
	switch mode {
	case models.ApprovalApproveAll:
		return true
	case models.ApprovalApproveHighRisk:
		return highRiskActions[actionType] || risk == RiskHigh || risk == RiskCritical
	default:
		return false
	}
}

// CreateRequest registers a new pending request.
func (m *Manager) CreateRequest(actionType, title, description, agentName string, risk RiskLevel, details map[string]interface{}) *Request {
	req := &Request{
		ID:          uuid.New().String(),
		ActionType:  actionType,
		Title:       title,
		Description: description,
		AgentName:   agentName,
		RiskLevel:   risk,
		Details:     details,
		Status:      StatusPending,
		CreatedAt:   time.Now(),
	}

	m.mu.Lock()
	m.pending[req.ID] = req
	m.mu.Unlock()

	cp := *req
	return &cp
}

// Resolve approves or rejects a pending request and moves it to the
// completed list.
func (m *Manager) Resolve(id string, approved bool, responder, reason string) (Response, error) {
	status := StatusRejected
	if approved {
		status = StatusApproved
	}
	if responder == "" {
		responder = "user"
	}
	now, err := m.complete(id, status, responder, reason)
	if err != nil {
		return Response{}, err
	}
	return Response{
		RequestID: id,
		Approved:  approved,
		Reason:    reason,
		Responder: responder,
		Timestamp: now,
	}, nil
}

// AutoApprove resolves a request as approved by the system.
func (m *Manager) AutoApprove(id string) (Response, error) {
	return m.Resolve(id, true, "system", "Auto-approved")
}

// AutoReject resolves a request as rejected by the system.
func (m *Manager) AutoReject(id string) (Response, error) {
	return m.Resolve(id, false, "system", "Auto-rejected")
}

// Expire moves a pending request to the timeout state. Nothing expires
// requests automatically; callers with a deadline invoke this themselves.
func (m *Manager) Expire(id string) error {
	_, err := m.complete(id, StatusTimeout, "system", "Approval timed out")
	return err
}

func (m *Manager) complete(id string, status Status, responder, reason string) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	req, ok := m.pending[id]
	if !ok {
		return time.Time{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	now := time.Now()
	req.Status = status
	req.ResolvedAt = &now
	req.ResolutionReason = reason
	req.Responder = responder

	delete(m.pending, id)
	m.completed = append(m.completed, req)
	return now, nil
}

// Pending returns pending requests, oldest first.
func (m *Manager) Pending() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Request, 0, len(m.pending))
	for _, req := range m.pending {
		out = append(out, *req)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Get returns a pending request.
func (m *Manager) Get(id string) (Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	req, ok := m.pending[id]
	if !ok {
		return Request{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return *req, nil
}

// Completed returns up to limit of the most recently resolved requests in
// resolution order. limit <= 0 returns all of them.
func (m *Manager) Completed(limit int) []Request {
	m.mu.Lock()
	defer m.mu.Unlock()

	start := 0
	if limit > 0 && len(m.completed) > limit {
		start = len(m.completed) - limit
	}
	out := make([]Request, 0, len(m.completed)-start)
	for _, req := range m.completed[start:] {
		out = append(out, *req)
	}
	return out
}
