// Package executor runs a selected agent's CLI as a subprocess and
// normalizes its output into an ExecutionResult.
package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"sort"
	"time"

	"github.com/lastagent/lastagent/internal/config"
	"github.com/lastagent/lastagent/internal/models"
	"github.com/lastagent/lastagent/internal/tracer"
)

// waitDelay bounds how long Wait blocks on open pipes after the process is
// killed.
const waitDelay = 2 * time.Second

// Logger is the logging surface the executor needs.
type Logger interface {
	LogDebug(message string)
	LogInfo(message string)
	LogWarn(message string)
}

type nopLogger struct{}

func (nopLogger) LogDebug(string) {}
func (nopLogger) LogInfo(string)  {}
func (nopLogger) LogWarn(string)  {}

// Executor dispatches agents to their CLI routines. It is safe for
// concurrent use.
type Executor struct {
	registry *config.Registry
	routines map[string]Routine
	lookPath func(string) (string, error)
	logger   Logger
}

// New creates an Executor with the built-in routines.
func New(registry *config.Registry, logger Logger) *Executor {
	if logger == nil {
		logger = nopLogger{}
	}
	return &Executor{
		registry: registry,
		routines: DefaultRoutines(),
		lookPath: exec.LookPath,
		logger:   logger,
	}
}

// RegisterRoutine adds or replaces the routine for a CLI binary name.
func (e *Executor) RegisterRoutine(binary string, r Routine) {
	e.routines[binary] = r
}

// Available reports whether the agent is registered, has a routine and its
// binary is on PATH.
func (e *Executor) Available(agentName string) bool {
	profile, err := e.registry.Get(agentName)
	if err != nil {
		return false
	}
	if _, ok := e.routineFor(agentName, profile); !ok {
		return false
	}
	_, err = e.lookPath(profile.Command)
	return err == nil
}

// AvailableAgents lists registered agents that can run on this machine.
func (e *Executor) AvailableAgents() []string {
	var out []string
	for _, name := range e.registry.Names() {
		if e.Available(name) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func (e *Executor) routineFor(agentName string, profile config.AgentProfile) (Routine, bool) {
	if r, ok := e.routines[filepath.Base(profile.Command)]; ok {
		return r, true
	}
	r, ok := e.routines[agentName]
	return r, ok
}

// Execute runs the named agent. Every failure is reported in the result;
// Execute never returns an error.
func (e *Executor) Execute(ctx context.Context, agentName string, ectx models.ExecutionContext) models.ExecutionResult {
	ctx, span := tracer.StartSpan(ctx, "executor.execute", tracer.StringAttr("agent", agentName))
	defer span.End()

	result := e.execute(ctx, agentName, ectx)

	span.SetAttributes(
		tracer.BoolAttr("execution.success", result.Success),
		tracer.IntAttr("execution.duration_ms", int(result.DurationMs)),
	)
	if result.Success {
		tracer.SetOK(span)
	} else {
		tracer.RecordFailure(span, result.Error)
	}
	return result
}

func (e *Executor) execute(ctx context.Context, agentName string, ectx models.ExecutionContext) models.ExecutionResult {
	result := models.ExecutionResult{
		Agent:  agentName,
		Method: models.MethodCLI,
	}

	profile, err := e.registry.Get(agentName)
	if err != nil {
		result.Method = models.MethodNone
		result.Error = err.Error()
		return result
	}

	routine, ok := e.routineFor(agentName, profile)
	if !ok {
		result.Error = fmt.Sprintf("Unknown CLI agent: %s", agentName)
		return result
	}

	binary, err := e.lookPath(profile.Command)
	if err != nil {
		result.Error = fmt.Sprintf("%s CLI is not installed (%q not found in PATH)", profile.DisplayName, profile.Command)
		e.logger.LogWarn(result.Error)
		return result
	}

	return e.run(ctx, binary, routine, result, ectx)
}

func (e *Executor) run(ctx context.Context, binary string, routine Routine, result models.ExecutionResult, ectx models.ExecutionContext) models.ExecutionResult {
	timeout := ectx.EffectiveTimeout()
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	workDir := ectx.WorkingDirectory
	if workDir == "" {
		workDir = "."
	}

	cmd := exec.CommandContext(runCtx, binary, routine.BuildArgs(ectx)...)
	cmd.Dir = workDir
	cmd.WaitDelay = waitDelay
	SetCleanEnv(cmd)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	e.logger.LogDebug(fmt.Sprintf("running %s in %s (timeout %s)", binary, workDir, timeout))
	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start)

	result.Metadata = map[string]interface{}{
		"command":           binary,
		"working_directory": workDir,
	}

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		// The nominal window is reported, not the measured time.
		result.DurationMs = timeout.Milliseconds()
		result.Error = "Execution timeout"
		return result
	}

	result.DurationMs = elapsed.Milliseconds()

	if ctx.Err() != nil {
		result.Error = fmt.Sprintf("Execution cancelled: %v", ctx.Err())
		return result
	}

	result.Response = stdout.String()
	if routine.AppendStderr && stderr.Len() > 0 {
		result.Response += "\n[stderr]: " + stderr.String()
	}

	exitCode := 0
	if runErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) {
			result.Error = fmt.Sprintf("failed to start %s: %v", binary, runErr)
			return result
		}
		exitCode = exitErr.ExitCode()
	}
	result.Metadata["exit_code"] = exitCode

	if exitCode != 0 {
		result.Error = exitCodeError(exitCode, stderr.String(), routine.IgnorableStderr)
		return result
	}

	result.Success = true
	return result
}
