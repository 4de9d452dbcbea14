// Package mesh coordinates inter-agent delegation. Any registered agent may
// hand a subtask to any other; every hop runs the target's CLI through the
// executor and is recorded against the session.
package mesh

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lastagent/lastagent/internal/config"
	"github.com/lastagent/lastagent/internal/models"
	"github.com/lastagent/lastagent/internal/tracer"
)

// DefaultMaxDepth is the delegation depth ceiling when none is configured.
const DefaultMaxDepth = 5

// UserCaller is the caller recorded for the initial call of a session.
const UserCaller = "user"

// ErrSessionNotFound is returned for unknown session ids.
var ErrSessionNotFound = errors.New("session not found")

// Executor runs one agent. *executor.Executor satisfies it.
type Executor interface {
	Execute(ctx context.Context, agentName string, ectx models.ExecutionContext) models.ExecutionResult
}

// Logger is the logging surface the coordinator needs.
type Logger interface {
	LogDebug(message string)
	LogWarn(message string)
}

type nopLogger struct{}

func (nopLogger) LogDebug(string) {}
func (nopLogger) LogWarn(string)  {}

// InterAgentCall is the audit record of one hop.
type InterAgentCall struct {
	ID         string    `json:"id"`
	Caller     string    `json:"caller_agent"`
	Target     string    `json:"target_agent"`
	Prompt     string    `json:"prompt"`
	Response   string    `json:"response,omitempty"`
	Success    bool      `json:"success"`
	DurationMs int64     `json:"duration_ms"`
	Depth      int       `json:"depth"`
	Timestamp  time.Time `json:"timestamp"`
}

// Session tracks one top-level task's delegation tree.
type Session struct {
	ID            string           `json:"id"`
	InitialAgent  string           `json:"initial_agent"`
	InitialPrompt string           `json:"initial_prompt"`
	Calls         []InterAgentCall `json:"calls"`
	CurrentDepth  int              `json:"current_depth"`
	MaxDepth      int              `json:"max_depth"`
	StartTime     time.Time        `json:"start_time"`
	FinalResponse string           `json:"final_response,omitempty"`
}

// Coordinator owns mesh sessions. It is safe for concurrent use; the depth
// counter of a session is only touched under mu.
type Coordinator struct {
	registry *config.Registry
	executor Executor
	maxDepth int
	logger   Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewCoordinator creates a coordinator. maxDepth <= 0 means DefaultMaxDepth.
func NewCoordinator(registry *config.Registry, exec Executor, maxDepth int, logger Logger) *Coordinator {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	if logger == nil {
		logger = nopLogger{}
	}
	return &Coordinator{
		registry: registry,
		executor: exec,
		maxDepth: maxDepth,
		logger:   logger,
		sessions: make(map[string]*Session),
	}
}

// MaxDepth returns the configured depth ceiling.
func (c *Coordinator) MaxDepth() int {
	return c.maxDepth
}

// StartSession runs the initial agent and records it as a depth-0 call from
// the user.
func (c *Coordinator) StartSession(ctx context.Context, initialAgent, systemPrompt, userPrompt, workDir string) *Session {
	ctx, span := tracer.StartSpan(ctx, "mesh.start_session", tracer.StringAttr("agent", initialAgent))
	defer span.End()

	result := c.executor.Execute(ctx, initialAgent, models.ExecutionContext{
		SystemPrompt:     systemPrompt,
		UserPrompt:       userPrompt,
		WorkingDirectory: workDir,
	})

	session := c.RecordSession(initialAgent, userPrompt, result)
	span.SetAttributes(tracer.StringAttr("mesh.session_id", session.ID))
	return session
}

// RecordSession opens a session around an initial run that already
// happened elsewhere, such as a task the orchestrator executed.
func (c *Coordinator) RecordSession(initialAgent, userPrompt string, result models.ExecutionResult) *Session {
	session := &Session{
		ID:            uuid.New().String(),
		InitialAgent:  initialAgent,
		InitialPrompt: userPrompt,
		MaxDepth:      c.maxDepth,
		StartTime:     time.Now(),
		FinalResponse: result.Response,
	}
	session.Calls = append(session.Calls, newCall(UserCaller, initialAgent, userPrompt, result, 0))

	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessions[session.ID] = session
	return session.copy()
}

// Delegate runs target on behalf of caller within a session. A call that
// would take the session past MaxDepth fails without running the executor.
// The depth is restored before Delegate returns.
func (c *Coordinator) Delegate(ctx context.Context, sessionID, caller, target, prompt, workDir string) (models.ExecutionResult, error) {
	c.mu.Lock()
	session, ok := c.sessions[sessionID]
	if !ok {
		c.mu.Unlock()
		return models.ExecutionResult{}, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	session.CurrentDepth++
	depth := session.CurrentDepth
	if depth > session.MaxDepth {
		session.CurrentDepth--
		c.mu.Unlock()
		c.logger.LogWarn(fmt.Sprintf("mesh session %s: %s -> %s refused at depth %d", sessionID, caller, target, depth))
		return models.ExecutionResult{
			Agent:  target,
			Method: models.MethodCLI,
			Error:  fmt.Sprintf("Max call depth (%d) exceeded", session.MaxDepth),
		}, nil
	}
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		session.CurrentDepth--
		c.mu.Unlock()
	}()

	ctx, span := tracer.StartSpan(ctx, "mesh.delegate",
		tracer.StringAttr("mesh.caller", caller),
		tracer.StringAttr("mesh.target", target),
		tracer.IntAttr("mesh.depth", depth),
	)
	defer span.End()

	c.logger.LogDebug(fmt.Sprintf("mesh session %s: %s -> %s (depth %d)", sessionID, caller, target, depth))
	result := c.executor.Execute(ctx, target, models.ExecutionContext{
		SystemPrompt:     fmt.Sprintf("You are being called by %s to assist with a task.", caller),
		UserPrompt:       prompt,
		WorkingDirectory: workDir,
	})

	c.mu.Lock()
	session.Calls = append(session.Calls, newCall(caller, target, prompt, result, depth))
	c.mu.Unlock()

	if !result.Success {
		tracer.RecordFailure(span, result.Error)
	}
	return result, nil
}

// GetSession returns a snapshot of the session.
func (c *Coordinator) GetSession(sessionID string) (*Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	session, ok := c.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return session.copy(), nil
}

// SessionCalls returns the calls recorded so far, or nil for an unknown id.
func (c *Coordinator) SessionCalls(sessionID string) []InterAgentCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	session, ok := c.sessions[sessionID]
	if !ok {
		return nil
	}
	return append([]InterAgentCall(nil), session.Calls...)
}

// AvailableAgents lists delegation targets, leaving out the named agents.
func (c *Coordinator) AvailableAgents(excluding ...string) []string {
	skip := make(map[string]bool, len(excluding))
	for _, name := range excluding {
		skip[name] = true
	}
	var out []string
	for _, name := range c.registry.Names() {
		if !skip[name] {
			out = append(out, name)
		}
	}
	return out
}

// DelegationPrompt builds the prompt sent to target when caller hands off
// task. extra is optional context from the caller.
func (c *Coordinator) DelegationPrompt(caller, target, task, extra string) (string, error) {
	profile, err := c.registry.Get(target)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "You (%s) are being called by %s to help with a task.\n\n", target, caller)
	fmt.Fprintf(&sb, "Task: %s\n", task)
	if extra != "" {
		fmt.Fprintf(&sb, "\nContext from %s:\n%s\n", caller, extra)
	}
	fmt.Fprintf(&sb, "\nYour strengths: %s\n", strings.Join(head(profile.Strengths, 2), ", "))
	fmt.Fprintf(&sb, "Your capabilities: %s\n\n", strings.Join(head(profile.Capabilities, 3), ", "))
	sb.WriteString("Please complete this task to the best of your ability.")
	return sb.String(), nil
}

func head(items []string, n int) []string {
	if len(items) > n {
		return items[:n]
	}
	return items
}

func newCall(caller, target, prompt string, result models.ExecutionResult, depth int) InterAgentCall {
	return InterAgentCall{
		ID:         uuid.New().String(),
		Caller:     caller,
		Target:     target,
		Prompt:     prompt,
		Response:   result.Response,
		Success:    result.Success,
		DurationMs: result.DurationMs,
		Depth:      depth,
		Timestamp:  time.Now(),
	}
}

func (s *Session) copy() *Session {
	cp := *s
	cp.Calls = append([]InterAgentCall(nil), s.Calls...)
	return &cp
}
