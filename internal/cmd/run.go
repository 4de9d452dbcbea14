package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/lastagent/lastagent/internal/approval"
	"github.com/lastagent/lastagent/internal/council"
	"github.com/lastagent/lastagent/internal/decision"
	"github.com/lastagent/lastagent/internal/display"
	"github.com/lastagent/lastagent/internal/executor"
	"github.com/lastagent/lastagent/internal/mesh"
	"github.com/lastagent/lastagent/internal/models"
	"github.com/lastagent/lastagent/internal/orchestrator"
)

// NewRunCommand creates the run command
func NewRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <prompt>",
		Short: "Route a task to the best agent CLI and run it",
		Long: `Run a task through the LastAgent pipeline.

The council of models votes on which registered agent CLI fits the task
best. When the council is disabled or unavailable, local capability
matching picks the agent instead. The chosen CLI then runs the prompt and
its output is printed.

Configuration is loaded from .lastagent/config.yaml if present.
CLI flags override configuration file settings.

Examples:
  lastagent run "Fix the failing test in parser_test.go"
  lastagent run --dir ./service "Add a health endpoint"
  lastagent run --approval approve_all "Deploy the staging stack"
  lastagent run --council --timeout 10m "Research recent OTel changes"
  lastagent run --mesh "Review this module and delegate the docs"`,
		Args: cobra.ExactArgs(1),
		RunE: runCommand,
	}

	cmd.Flags().String("system", "", "System prompt passed to the agent")
	cmd.Flags().String("dir", "", "Working directory for the agent (default: execution.working_directory)")
	cmd.Flags().String("approval", "", "Approval mode: auto, approve_all or approve_high_risk")
	cmd.Flags().String("timeout", "", "Execution timeout (e.g., 90s, 10m)")
	cmd.Flags().Bool("council", false, "Enable council voting (overrides config)")
	cmd.Flags().Bool("no-council", false, "Disable council voting (overrides config)")
	cmd.Flags().Bool("mesh", false, "Tell agents about their peers and follow delegation requests")
	cmd.Flags().BoolP("yes", "y", false, "Approve every approval request without prompting")
	cmd.Flags().Bool("json", false, "Print the execution result as JSON")

	return cmd
}

// UserResponder is recorded for approvals answered at the terminal prompt.
const UserResponder = "user"

// runFlags holds the parsed run flags that override config.
type runFlags struct {
	system  string
	useMesh bool
	yes     bool
	json    bool
}

func runCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	var (
		modeOverride    *models.ApprovalMode
		timeoutOverride *time.Duration
		dirOverride     *string
		levelOverride   *string
		councilOverride *bool
	)
	if s, _ := cmd.Flags().GetString("approval"); s != "" {
		mode, err := models.ParseApprovalMode(s)
		if err != nil {
			return err
		}
		modeOverride = &mode
	}
	if s, _ := cmd.Flags().GetString("timeout"); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid timeout %q: %w", s, err)
		}
		timeoutOverride = &d
	}
	if s, _ := cmd.Flags().GetString("dir"); s != "" {
		dirOverride = &s
	}
	if s, _ := cmd.Flags().GetString("log-level"); s != "" {
		levelOverride = &s
	}
	if on, _ := cmd.Flags().GetBool("council"); on {
		councilOverride = &on
	}
	if off, _ := cmd.Flags().GetBool("no-council"); off {
		enabled := false
		councilOverride = &enabled
	}
	cfg.MergeWithFlags(modeOverride, timeoutOverride, dirOverride, levelOverride, councilOverride)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	a, err := newApp(cmd, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	flags := runFlags{}
	flags.system, _ = cmd.Flags().GetString("system")
	flags.useMesh, _ = cmd.Flags().GetBool("mesh")
	flags.yes, _ = cmd.Flags().GetBool("yes")
	flags.json, _ = cmd.Flags().GetBool("json")

	return a.runTask(cmd, args[0], flags)
}

func (a *app) runTask(cmd *cobra.Command, prompt string, flags runFlags) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	var client council.ModelClient
	if a.cfg.Council.Enabled {
		c, err := council.NewClientFromConfig(a.cfg.Council, a.log)
		if err != nil {
			display.Warning{
				Title:      "Council unavailable",
				Message:    err.Error(),
				Suggestion: "Falling back to local capability matching",
			}.Display(cmd.ErrOrStderr())
		} else {
			client = c
		}
	}
	selector := council.NewSelector(a.registry, client, a.cfg.Council, a.log)

	exec := executor.New(a.registry, a.log)
	if missing := a.missingAgents(exec); len(missing) > 0 {
		a.log.LogDebug(fmt.Sprintf("agent CLIs not on PATH: %s", strings.Join(missing, ", ")))
	}

	approver := promptApprover(cmd.InOrStdin(), cmd.ErrOrStderr())
	if flags.yes {
		approver = nil
	}

	decisions := a.decisionLogger()
	orch, err := orchestrator.New(orchestrator.Options{
		Registry:         a.registry,
		Selector:         selector,
		Executor:         exec,
		Approvals:        approval.NewManager(a.cfg.ApprovalMode),
		Decisions:        decisions,
		Approver:         approver,
		Logger:           a.log,
		ApprovalMode:     a.cfg.ApprovalMode,
		Timeout:          a.cfg.Execution.Timeout,
		WorkingDirectory: a.cfg.Execution.WorkingDirectory,
	})
	if err != nil {
		return err
	}

	result := orch.ProcessTask(ctx, orchestrator.TaskRequest{
		SystemPrompt: flags.system,
		UserPrompt:   prompt,
	})
	if task, err := orch.Task(result.TaskID); err == nil && task.Selection != nil {
		a.log.LogSelection(*task.Selection)
	}
	a.log.LogResult(result)

	if flags.useMesh && result.Success {
		// The selected agent ran with the caller's prompts untouched; only
		// delegated hops learn about their peers.
		aware := &awareExecutor{next: exec, awareness: mesh.NewAwarenessBuilder(a.registry)}
		result = a.followDelegations(ctx, aware, decisions, prompt, result)
	}

	if err := printResult(out, result, flags.json); err != nil {
		return err
	}
	if !result.Success {
		return fmt.Errorf("task %s failed: %s", result.TaskID, result.Error)
	}
	return nil
}

func (a *app) missingAgents(exec *executor.Executor) []string {
	available := make(map[string]bool)
	for _, name := range exec.AvailableAgents() {
		available[name] = true
	}
	var missing []string
	for _, name := range a.registry.Names() {
		if !available[name] {
			missing = append(missing, name)
		}
	}
	return missing
}

// followDelegations opens a mesh session around the finished task and keeps
// handing work on while each response asks for a delegation. The final hop's
// result is returned; a refused or failed hop ends the chain.
func (a *app) followDelegations(ctx context.Context, exec mesh.Executor, decisions *decision.Logger, prompt string, first models.ExecutionResult) models.ExecutionResult {
	coord := mesh.NewCoordinator(a.registry, exec, a.cfg.Mesh.MaxDepth, a.log)
	session := coord.RecordSession(first.Agent, prompt, first)

	current := first
	for hop := 0; hop < coord.MaxDepth(); hop++ {
		req := mesh.ParseDelegationRequest(current.Response)
		if req == nil {
			break
		}
		if !req.Valid {
			a.log.LogWarn(fmt.Sprintf("%s asked for an invalid delegation: %s", current.Agent, req.Error))
			break
		}
		if !a.registry.Exists(req.TargetAgent) {
			a.log.LogWarn(fmt.Sprintf("%s delegated to unknown agent %s", current.Agent, req.TargetAgent))
			break
		}

		delegationPrompt, err := coord.DelegationPrompt(current.Agent, req.TargetAgent, req.Task, req.Context)
		if err != nil {
			a.log.LogWarn(err.Error())
			break
		}
		a.log.LogInfo(fmt.Sprintf("%s delegated to %s", current.Agent, req.TargetAgent))

		next, err := coord.Delegate(ctx, session.ID, current.Agent, req.TargetAgent, delegationPrompt, a.cfg.Execution.WorkingDirectory)
		if err != nil {
			a.log.LogWarn(err.Error())
			break
		}
		next.TaskID = first.TaskID
		a.log.LogResult(next)
		a.logDelegation(decisions, session.ID, current.Agent, req, next)
		current = next
		if !next.Success {
			break
		}
	}

	calls := coord.SessionCalls(session.ID)
	a.log.LogDebug(fmt.Sprintf("mesh session %s finished after %d calls", session.ID, len(calls)))
	return current
}

// logDelegation records one hop as an inter_agent_call decision with its
// outcome.
func (a *app) logDelegation(decisions *decision.Logger, sessionID, caller string, req *mesh.DelegationRequest, result models.ExecutionResult) {
	id, err := decisions.Log(decision.Entry{
		Type:       decision.TypeInterAgentCall,
		Title:      fmt.Sprintf("%s delegated to %s", caller, req.TargetAgent),
		Reasoning:  req.Task,
		Confidence: 1.0,
		Context:    map[string]interface{}{"caller": caller, "target": req.TargetAgent},
		TaskID:     result.TaskID,
		SessionID:  sessionID,
	})
	if err != nil {
		a.log.LogWarn(fmt.Sprintf("failed to log delegation: %v", err))
		return
	}

	status, outcome := decision.StatusExecuted, decision.OutcomeSuccess
	if !result.Success {
		status, outcome = decision.StatusFailed, "failure"
	}
	data := map[string]interface{}{"duration_ms": result.DurationMs}
	if result.Error != "" {
		data["error"] = result.Error
	}
	if err := decisions.UpdateOutcome(id, status, outcome, data); err != nil {
		a.log.LogWarn(fmt.Sprintf("failed to update delegation outcome: %v", err))
	}
}

// awareExecutor appends a description of the agent's peers to its system
// prompt so a delegated agent knows whom it can hand work on to.
type awareExecutor struct {
	next      orchestrator.Executor
	awareness *mesh.AwarenessBuilder
}

func (e *awareExecutor) Execute(ctx context.Context, agentName string, ectx models.ExecutionContext) models.ExecutionResult {
	ectx.SystemPrompt = e.awareness.AwareSystemPrompt(agentName, ectx.SystemPrompt)
	return e.next.Execute(ctx, agentName, ectx)
}

// promptApprover asks on out and reads y/yes from in. EOF or anything else
// rejects. Verdicts are recorded as given by UserResponder.
func promptApprover(in io.Reader, out io.Writer) orchestrator.Approver {
	reader := bufio.NewReader(in)
	return func(_ context.Context, req approval.Request) orchestrator.Verdict {
		fmt.Fprintf(out, "%s (%s risk)\n  %s\nApprove? [y/N]: ", req.Title, req.RiskLevel, req.Description)
		verdict := orchestrator.Verdict{Responder: UserResponder}
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			verdict.Reason = "no answer"
			return verdict
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			verdict.Approved, verdict.Reason = true, "approved at prompt"
		default:
			verdict.Reason = "declined at prompt"
		}
		return verdict
	}
}

func printResult(out io.Writer, result models.ExecutionResult, asJSON bool) error {
	if asJSON {
		return writeJSON(out, result)
	}
	if result.Response != "" {
		fmt.Fprintln(out, strings.TrimRight(result.Response, "\n"))
	}
	return nil
}
