package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lastagent/lastagent/internal/approval"
	"github.com/lastagent/lastagent/internal/config"
	"github.com/lastagent/lastagent/internal/council"
	"github.com/lastagent/lastagent/internal/decision"
	"github.com/lastagent/lastagent/internal/executor"
	"github.com/lastagent/lastagent/internal/models"
)

type fixedSelector struct {
	selection models.CouncilSelection
}

func (f fixedSelector) Select(context.Context, string, string) models.CouncilSelection {
	return f.selection
}

type panicSelector struct{}

func (panicSelector) Select(context.Context, string, string) models.CouncilSelection {
	panic("selector exploded")
}

type fakeExecutor struct {
	mu     sync.Mutex
	result models.ExecutionResult
	calls  []models.ExecutionContext
	agents []string
}

func (f *fakeExecutor) Execute(_ context.Context, agent string, ectx models.ExecutionContext) models.ExecutionResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, ectx)
	f.agents = append(f.agents, agent)
	return f.result
}

func newTestOrchestrator(t *testing.T, sel Selector, exec Executor, mutate func(*Options)) *Orchestrator {
	t.Helper()
	opts := Options{
		Registry: config.DefaultRegistry(),
		Selector: sel,
		Executor: exec,
		Timeout:  time.Minute,
	}
	if mutate != nil {
		mutate(&opts)
	}
	o, err := New(opts)
	require.NoError(t, err)
	return o
}

func statuses(rec models.TaskRecord) []models.TaskStatus {
	var out []models.TaskStatus
	for _, h := range rec.History {
		out = append(out, h.Status)
	}
	return out
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(Options{Registry: config.DefaultRegistry()})
	assert.Error(t, err)
}

func TestProcessTask_Success(t *testing.T) {
	sel := fixedSelector{models.CouncilSelection{SelectedAgent: "aider", Confidence: 0.9, Reasoning: "git work"}}
	exec := &fakeExecutor{result: models.ExecutionResult{Success: true, Response: "committed", DurationMs: 12, Method: models.MethodCLI}}
	o := newTestOrchestrator(t, sel, exec, func(opts *Options) { opts.WorkingDirectory = "/repo" })

	result := o.ProcessTask(context.Background(), TaskRequest{
		SystemPrompt: "You are careful.",
		UserPrompt:   "Commit the staged changes",
	})

	require.True(t, result.Success)
	assert.NotEmpty(t, result.TaskID)
	assert.Equal(t, "aider", result.Agent)
	assert.Equal(t, "committed", result.Response)

	require.Len(t, exec.calls, 1)
	assert.Equal(t, "You are careful.", exec.calls[0].SystemPrompt, "prompts are passed verbatim")
	assert.Equal(t, "Commit the staged changes", exec.calls[0].UserPrompt)
	assert.Equal(t, "/repo", exec.calls[0].WorkingDirectory)
	assert.Equal(t, time.Minute, exec.calls[0].Timeout)

	rec, err := o.Task(result.TaskID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskCompleted, rec.Status)
	assert.Equal(t, []models.TaskStatus{
		models.TaskPending, models.TaskCouncilSelecting, models.TaskExecuting, models.TaskCompleted,
	}, statuses(rec))

	d, err := o.decisions.Get(rec.DecisionID)
	require.NoError(t, err)
	assert.Equal(t, decision.TypeAgentSelection, d.Type)
	assert.Equal(t, "Selected aider", d.Title)
	assert.Equal(t, 0.9, d.Confidence)
	assert.Equal(t, decision.StatusExecuted, d.Status)
	assert.Equal(t, decision.OutcomeSuccess, d.OutcomeStatus)
	assert.Equal(t, result.TaskID, d.TaskID)
	assert.Equal(t, []decision.Alternative{
		{Name: "claude", Score: 0.5, Reason: "Alternative considered"},
		{Name: "codex", Score: 0.5, Reason: "Alternative considered"},
		{Name: "gemini", Score: 0.5, Reason: "Alternative considered"},
	}, d.Alternatives)
}

func TestProcessTask_ExecutionFailureStillLogsDecision(t *testing.T) {
	sel := fixedSelector{models.CouncilSelection{SelectedAgent: "codex", Confidence: 0.5}}
	exec := &fakeExecutor{result: models.ExecutionResult{Error: "Exit code: 2"}}
	o := newTestOrchestrator(t, sel, exec, nil)

	result := o.ProcessTask(context.Background(), TaskRequest{UserPrompt: "run tests", Timeout: 5 * time.Second})

	assert.False(t, result.Success)
	assert.Equal(t, "Exit code: 2", result.Error)
	assert.Equal(t, 5*time.Second, exec.calls[0].Timeout)

	decisions := o.Decisions(decision.Filter{})
	require.Len(t, decisions, 1)
	assert.Equal(t, decision.StatusFailed, decisions[0].Status)
	assert.Equal(t, "failure", decisions[0].OutcomeStatus)
	assert.Equal(t, "Exit code: 2", decisions[0].OutcomeData["error"])
}

func TestProcessTask_ApprovalModes(t *testing.T) {
	tests := []struct {
		name         string
		mode         models.ApprovalMode
		approve      bool
		wantSuccess  bool
		wantStatus   models.TaskStatus
		wantRequests int
		wantExecuted bool
	}{
		{"auto skips the gate", models.ApprovalAuto, false, true, models.TaskCompleted, 0, true},
		{"approve all approved", models.ApprovalApproveAll, true, true, models.TaskCompleted, 1, true},
		{"approve all rejected", models.ApprovalApproveAll, false, false, models.TaskRejected, 1, false},
		{"high risk passes low risk execution", models.ApprovalApproveHighRisk, false, true, models.TaskCompleted, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel := fixedSelector{models.CouncilSelection{SelectedAgent: "claude", Confidence: 0.7}}
			exec := &fakeExecutor{result: models.ExecutionResult{Success: true}}
			approvals := approval.NewManager(models.ApprovalAuto)
			o := newTestOrchestrator(t, sel, exec, func(opts *Options) {
				opts.Approvals = approvals
				opts.Approver = func(context.Context, approval.Request) Verdict {
					return Verdict{Approved: tt.approve, Responder: "alice", Reason: "reviewed"}
				}
			})

			result := o.ProcessTask(context.Background(), TaskRequest{UserPrompt: "x", ApprovalMode: tt.mode})

			assert.Equal(t, tt.wantSuccess, result.Success)
			assert.Equal(t, tt.wantExecuted, len(exec.calls) == 1)
			assert.Len(t, approvals.Completed(0), tt.wantRequests)
			assert.Empty(t, approvals.Pending())

			rec, err := o.Task(result.TaskID)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, rec.Status)
			if tt.mode != models.ApprovalAuto {
				assert.Contains(t, statuses(rec), models.TaskAwaitingApproval)
			}
			if tt.wantStatus == models.TaskRejected {
				assert.Equal(t, RejectedError, result.Error)
				assert.Equal(t, "claude", result.Agent)
				assert.Equal(t, approval.StatusRejected, approvals.Completed(0)[0].Status)
			}
			for _, req := range approvals.Completed(0) {
				assert.Equal(t, "alice", req.Responder)
			}
		})
	}
}

func TestProcessTask_DefaultApprovalModeFromOptions(t *testing.T) {
	sel := fixedSelector{models.CouncilSelection{SelectedAgent: "claude"}}
	exec := &fakeExecutor{result: models.ExecutionResult{Success: true}}
	o := newTestOrchestrator(t, sel, exec, func(opts *Options) {
		opts.ApprovalMode = models.ApprovalApproveAll
	})

	result := o.ProcessTask(context.Background(), TaskRequest{UserPrompt: "x"})

	assert.True(t, result.Success)
	done := o.Approvals().Completed(0)
	require.Len(t, done, 1)
	assert.Equal(t, approval.StatusApproved, done[0].Status)
	assert.Equal(t, "Execute claude", done[0].Title)
	assert.Equal(t, SystemResponder, done[0].Responder)
}

func TestProcessTask_EmptyResponderRecordedAsSystem(t *testing.T) {
	sel := fixedSelector{models.CouncilSelection{SelectedAgent: "claude"}}
	exec := &fakeExecutor{result: models.ExecutionResult{Success: true}}
	o := newTestOrchestrator(t, sel, exec, func(opts *Options) {
		opts.ApprovalMode = models.ApprovalApproveAll
		opts.Approver = func(context.Context, approval.Request) Verdict {
			return Verdict{Approved: true}
		}
	})

	o.ProcessTask(context.Background(), TaskRequest{UserPrompt: "x"})

	done := o.Approvals().Completed(0)
	require.Len(t, done, 1)
	assert.Equal(t, SystemResponder, done[0].Responder)
}

func TestProcessTask_RecoversFromPanics(t *testing.T) {
	exec := &fakeExecutor{}
	o := newTestOrchestrator(t, panicSelector{}, exec, nil)

	result := o.ProcessTask(context.Background(), TaskRequest{UserPrompt: "x"})

	assert.False(t, result.Success)
	assert.Equal(t, "selector exploded", result.Error)
	assert.Equal(t, "unknown", result.Agent)
	assert.Empty(t, exec.calls)

	rec, err := o.Task(result.TaskID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskFailed, rec.Status)
}

func TestProcessTask_EmptySelectionFails(t *testing.T) {
	o := newTestOrchestrator(t, fixedSelector{}, &fakeExecutor{}, nil)

	result := o.ProcessTask(context.Background(), TaskRequest{UserPrompt: "x"})

	assert.False(t, result.Success)
	assert.Equal(t, "no agent selected", result.Error)
}

func TestProcessTask_ConcurrentTasks(t *testing.T) {
	sel := fixedSelector{models.CouncilSelection{SelectedAgent: "goose", Confidence: 0.6}}
	exec := &fakeExecutor{result: models.ExecutionResult{Success: true}}
	o := newTestOrchestrator(t, sel, exec, nil)

	const n = 20
	var wg sync.WaitGroup
	ids := make([]string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i] = o.ProcessTask(context.Background(), TaskRequest{UserPrompt: "x"}).TaskID
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool)
	for _, id := range ids {
		assert.False(t, seen[id])
		seen[id] = true
	}
	assert.Equal(t, n, o.DecisionStats().Total)
	assert.Len(t, exec.agents, n)
}

func TestQueries(t *testing.T) {
	o := newTestOrchestrator(t, fixedSelector{}, &fakeExecutor{}, nil)

	assert.Equal(t, []string{"aider", "claude", "codex", "gemini", "goose"}, o.AvailableAgents())

	info, err := o.AgentInfo("gemini")
	require.NoError(t, err)
	assert.Equal(t, "Gemini Agent", info.DisplayName)

	_, err = o.AgentInfo("nobody")
	assert.True(t, errors.Is(err, config.ErrAgentNotFound))

	_, err = o.Task("missing")
	assert.True(t, errors.Is(err, ErrTaskNotFound))
}

func TestProcessTask_EndToEndWithoutInstalledCLIs(t *testing.T) {
	t.Setenv("PATH", t.TempDir())

	reg := config.DefaultRegistry()
	sel := council.NewSelector(reg, nil, config.CouncilConfig{}, nil)
	o := newTestOrchestrator(t, sel, executor.New(reg, nil), func(opts *Options) {
		opts.Registry = reg
	})

	result := o.ProcessTask(context.Background(), TaskRequest{
		UserPrompt: "Write a Python function to reverse a string",
	})

	assert.False(t, result.Success)
	assert.Equal(t, "claude", result.Agent)
	assert.Contains(t, result.Error, "not installed")

	rec, err := o.Task(result.TaskID)
	require.NoError(t, err)
	require.NotNil(t, rec.Selection)
	assert.Equal(t, 0.7, rec.Selection.Confidence)
	assert.True(t, rec.Selection.UsedFallback)
	assert.Contains(t, rec.Selection.MatchResult.Analysis.DetectedCapabilities, models.CapCoding)
}
