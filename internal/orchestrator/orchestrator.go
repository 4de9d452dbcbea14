// Package orchestrator runs the task pipeline: council selection, optional
// approval, CLI execution and decision logging.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lastagent/lastagent/internal/approval"
	"github.com/lastagent/lastagent/internal/config"
	"github.com/lastagent/lastagent/internal/decision"
	"github.com/lastagent/lastagent/internal/models"
	"github.com/lastagent/lastagent/internal/tracer"
)

// ErrTaskNotFound is returned by Task for unknown ids.
var ErrTaskNotFound = errors.New("task not found")

// RejectedError is the result error when approval is denied.
const RejectedError = "User rejected agent selection"

const (
	maxAlternatives  = 3
	alternativeScore = 0.5
	alternativeNote  = "Alternative considered"
	unknownAgent     = "unknown"
)

// Selector picks an agent. *council.Selector satisfies it.
type Selector interface {
	Select(ctx context.Context, userPrompt, systemPrompt string) models.CouncilSelection
}

// Executor runs an agent. *executor.Executor satisfies it.
type Executor interface {
	Execute(ctx context.Context, agentName string, ectx models.ExecutionContext) models.ExecutionResult
}

// Verdict is an approver's answer. An empty Responder is recorded as
// SystemResponder.
type Verdict struct {
	Approved  bool
	Responder string
	Reason    string
}

// SystemResponder is recorded for verdicts that no person gave.
const SystemResponder = "system"

// Approver decides a pending approval request. The default approves
// everything on behalf of the system.
type Approver func(ctx context.Context, req approval.Request) Verdict

// Logger is the logging surface the orchestrator needs.
type Logger interface {
	LogDebug(message string)
	LogInfo(message string)
	LogWarn(message string)
	LogError(message string)
}

type nopLogger struct{}

func (nopLogger) LogDebug(string) {}
func (nopLogger) LogInfo(string)  {}
func (nopLogger) LogWarn(string)  {}
func (nopLogger) LogError(string) {}

// Options wires an Orchestrator. Registry, Selector and Executor are
// required; the rest default.
type Options struct {
	Registry  *config.Registry
	Selector  Selector
	Executor  Executor
	Approvals *approval.Manager
	Decisions *decision.Logger
	Approver  Approver
	Logger    Logger

	// Defaults applied when a request leaves them empty.
	ApprovalMode     models.ApprovalMode
	Timeout          time.Duration
	WorkingDirectory string
}

// TaskRequest is one task submission. Empty fields take the orchestrator's
// defaults.
type TaskRequest struct {
	SystemPrompt     string
	UserPrompt       string
	WorkingDirectory string
	ApprovalMode     models.ApprovalMode
	Timeout          time.Duration
}

// Orchestrator is the single entry point for running tasks. Independent
// tasks may be processed concurrently.
type Orchestrator struct {
	registry  *config.Registry
	selector  Selector
	executor  Executor
	approvals *approval.Manager
	decisions *decision.Logger
	approver  Approver
	logger    Logger

	approvalMode models.ApprovalMode
	timeout      time.Duration
	workDir      string

	mu    sync.RWMutex
	tasks map[string]*models.TaskRecord
}

// New creates an orchestrator.
func New(opts Options) (*Orchestrator, error) {
	if opts.Registry == nil || opts.Selector == nil || opts.Executor == nil {
		return nil, errors.New("orchestrator requires a registry, a selector and an executor")
	}
	o := &Orchestrator{
		registry:     opts.Registry,
		selector:     opts.Selector,
		executor:     opts.Executor,
		approvals:    opts.Approvals,
		decisions:    opts.Decisions,
		approver:     opts.Approver,
		logger:       opts.Logger,
		approvalMode: opts.ApprovalMode,
		timeout:      opts.Timeout,
		workDir:      opts.WorkingDirectory,
		tasks:        make(map[string]*models.TaskRecord),
	}
	if o.approvals == nil {
		o.approvals = approval.NewManager(opts.ApprovalMode)
	}
	if o.decisions == nil {
		o.decisions = decision.NewLogger(decision.Options{})
	}
	if o.approver == nil {
		o.approver = func(context.Context, approval.Request) Verdict {
			return Verdict{Approved: true, Responder: SystemResponder, Reason: "Auto-approved"}
		}
	}
	if o.logger == nil {
		o.logger = nopLogger{}
	}
	if o.approvalMode == "" {
		o.approvalMode = models.ApprovalAuto
	}
	return o, nil
}

// ProcessTask runs the full pipeline for one task. It never returns an
// error: failures, rejections and panics are reported in the result.
func (o *Orchestrator) ProcessTask(ctx context.Context, req TaskRequest) (result models.ExecutionResult) {
	start := time.Now()
	task := o.newTask(req)

	ctx, span := tracer.StartSpan(ctx, "orchestrator.process_task", tracer.StringAttr("task.id", task.ID))
	defer span.End()

	o.logger.LogInfo(fmt.Sprintf("task %s received: %s", task.ID, preview(req.UserPrompt, 100)))

	fail := func(msg string) models.ExecutionResult {
		o.setStatus(task, models.TaskFailed)
		o.logger.LogError(fmt.Sprintf("task %s failed: %s", task.ID, msg))
		tracer.RecordFailure(span, msg)
		res := models.ExecutionResult{
			TaskID:     task.ID,
			Agent:      unknownAgent,
			Method:     models.MethodNone,
			DurationMs: time.Since(start).Milliseconds(),
			Error:      msg,
		}
		o.storeResult(task, res)
		return res
	}
	defer func() {
		if r := recover(); r != nil {
			result = fail(fmt.Sprintf("%v", r))
		}
	}()

	o.setStatus(task, models.TaskCouncilSelecting)
	selection := o.selector.Select(ctx, task.UserPrompt, task.SystemPrompt)
	if selection.SelectedAgent == "" {
		return fail("no agent selected")
	}
	o.mu.Lock()
	task.Selection = &selection
	o.mu.Unlock()
	o.logger.LogInfo(fmt.Sprintf("task %s: selected %s (confidence %.2f)", task.ID, selection.SelectedAgent, selection.Confidence))
	span.SetAttributes(tracer.StringAttr("task.agent", selection.SelectedAgent))

	mode := req.ApprovalMode
	if mode == "" {
		mode = o.approvalMode
	}
	if mode != models.ApprovalAuto {
		o.setStatus(task, models.TaskAwaitingApproval)
		if approved, reason := o.gate(ctx, task, selection, mode); !approved {
			o.setStatus(task, models.TaskRejected)
			o.logger.LogWarn(fmt.Sprintf("task %s rejected: %s", task.ID, reason))
			o.logDecision(task, selection, nil, decision.StatusCancelled, "rejected")
			result = models.ExecutionResult{
				TaskID: task.ID,
				Agent:  selection.SelectedAgent,
				Method: models.MethodNone,
				Error:  RejectedError,
			}
			o.storeResult(task, result)
			tracer.RecordFailure(span, RejectedError)
			return result
		}
	}

	o.setStatus(task, models.TaskExecuting)
	result = o.executor.Execute(ctx, selection.SelectedAgent, models.ExecutionContext{
		SystemPrompt:     task.SystemPrompt,
		UserPrompt:       task.UserPrompt,
		WorkingDirectory: task.WorkingDirectory,
		Timeout:          o.effectiveTimeout(req),
	})
	result.TaskID = task.ID
	result.Agent = selection.SelectedAgent

	status, outcome := decision.StatusExecuted, decision.OutcomeSuccess
	if !result.Success {
		status, outcome = decision.StatusFailed, "failure"
	}
	o.logDecision(task, selection, &result, status, outcome)

	o.storeResult(task, result)
	o.setStatus(task, models.TaskCompleted)
	o.logger.LogInfo(fmt.Sprintf("task %s completed: agent=%s success=%t duration=%dms",
		task.ID, result.Agent, result.Success, time.Since(start).Milliseconds()))
	if result.Success {
		tracer.SetOK(span)
	} else {
		tracer.RecordFailure(span, result.Error)
	}
	return result
}

func (o *Orchestrator) newTask(req TaskRequest) *models.TaskRecord {
	workDir := req.WorkingDirectory
	if workDir == "" {
		workDir = o.workDir
	}
	task := &models.TaskRecord{
		ID:               uuid.New().String(),
		SystemPrompt:     req.SystemPrompt,
		UserPrompt:       req.UserPrompt,
		WorkingDirectory: workDir,
		CreatedAt:        time.Now(),
	}
	task.SetStatus(models.TaskPending)

	o.mu.Lock()
	o.tasks[task.ID] = task
	o.mu.Unlock()
	return task
}

func (o *Orchestrator) effectiveTimeout(req TaskRequest) time.Duration {
	if req.Timeout > 0 {
		return req.Timeout
	}
	return o.timeout
}

// gate creates an approval request for running the selected agent and
// resolves it through the approver.
func (o *Orchestrator) gate(ctx context.Context, task *models.TaskRecord, selection models.CouncilSelection, mode models.ApprovalMode) (bool, string) {
	details := map[string]interface{}{"agent": selection.SelectedAgent}
	risk := approval.ClassifyRisk(approval.ActionAgentExecution, details)
	if !approval.RequiresApprovalFor(mode, approval.ActionAgentExecution, risk) {
		return true, "not required"
	}

	req := o.approvals.CreateRequest(
		approval.ActionAgentExecution,
		"Execute "+selection.SelectedAgent,
		"Task: "+preview(task.UserPrompt, 100),
		selection.SelectedAgent,
		risk,
		details,
	)
	verdict := o.approver(ctx, *req)
	if verdict.Responder == "" {
		verdict.Responder = SystemResponder
	}
	if _, err := o.approvals.Resolve(req.ID, verdict.Approved, verdict.Responder, verdict.Reason); err != nil {
		o.logger.LogWarn(fmt.Sprintf("task %s: approval %s: %v", task.ID, req.ID, err))
	}
	return verdict.Approved, verdict.Reason
}

func (o *Orchestrator) logDecision(task *models.TaskRecord, selection models.CouncilSelection, result *models.ExecutionResult, status decision.Status, outcome string) {
	var alternatives []decision.Alternative
	for _, name := range o.registry.Names() {
		if name == selection.SelectedAgent {
			continue
		}
		if len(alternatives) == maxAlternatives {
			break
		}
		alternatives = append(alternatives, decision.Alternative{
			Name:   name,
			Score:  alternativeScore,
			Reason: alternativeNote,
		})
	}

	ctxData := map[string]interface{}{
		"used_fallback": selection.UsedFallback,
		"votes":         len(selection.Votes),
	}
	if selection.MatchResult != nil {
		ctxData["task_type"] = string(selection.MatchResult.Analysis.TaskType)
	}

	id, err := o.decisions.Log(decision.Entry{
		Type:         decision.TypeAgentSelection,
		Title:        "Selected " + selection.SelectedAgent,
		Reasoning:    selection.Reasoning,
		Confidence:   selection.Confidence,
		RiskLevel:    "low",
		Alternatives: alternatives,
		Context:      ctxData,
		TaskID:       task.ID,
	})
	if err != nil {
		o.logger.LogWarn(fmt.Sprintf("task %s: %v", task.ID, err))
	}

	var outcomeData map[string]interface{}
	if result != nil {
		outcomeData = map[string]interface{}{"duration_ms": result.DurationMs}
		if result.Error != "" {
			outcomeData["error"] = result.Error
		}
	}
	if err := o.decisions.UpdateOutcome(id, status, outcome, outcomeData); err != nil {
		o.logger.LogWarn(fmt.Sprintf("task %s: %v", task.ID, err))
	}

	o.mu.Lock()
	task.DecisionID = id
	o.mu.Unlock()
}

func (o *Orchestrator) setStatus(task *models.TaskRecord, status models.TaskStatus) {
	o.mu.Lock()
	task.SetStatus(status)
	o.mu.Unlock()
	o.logger.LogDebug(fmt.Sprintf("task %s: %s", task.ID, status))
}

func (o *Orchestrator) storeResult(task *models.TaskRecord, result models.ExecutionResult) {
	o.mu.Lock()
	task.Result = &result
	o.mu.Unlock()
}

// AvailableAgents lists registered agent names.
func (o *Orchestrator) AvailableAgents() []string {
	return o.registry.Names()
}

// AgentInfo returns one agent's profile.
func (o *Orchestrator) AgentInfo(name string) (config.AgentProfile, error) {
	return o.registry.Get(name)
}

// Decisions lists logged decisions, newest first.
func (o *Orchestrator) Decisions(f decision.Filter) []decision.Decision {
	return o.decisions.List(f)
}

// DecisionStats aggregates the decision log.
func (o *Orchestrator) DecisionStats() decision.Stats {
	return o.decisions.Stats()
}

// Approvals returns the approval manager.
func (o *Orchestrator) Approvals() *approval.Manager {
	return o.approvals
}

// Task returns a snapshot of a task record.
func (o *Orchestrator) Task(id string) (models.TaskRecord, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	task, ok := o.tasks[id]
	if !ok {
		return models.TaskRecord{}, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	cp := *task
	cp.History = append([]models.StatusChange(nil), task.History...)
	return cp, nil
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
