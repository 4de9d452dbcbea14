package executor

import (
	"fmt"
	"strings"

	"github.com/lastagent/lastagent/internal/models"
)

// Routine is the fixed invocation contract of one agent CLI.
type Routine struct {
	// BuildArgs returns the argument vector, excluding the binary.
	BuildArgs func(ctx models.ExecutionContext) []string

	// AppendStderr adds captured stderr to the response on every run.
	AppendStderr bool

	// IgnorableStderr reports stderr that should not be surfaced as error text.
	IgnorableStderr func(stderr string) bool
}

// DefaultRoutines returns the built-in routines keyed by CLI binary name.
func DefaultRoutines() map[string]Routine {
	return map[string]Routine{
		"claude": {BuildArgs: claudeArgs},
		"gemini": {BuildArgs: geminiArgs, IgnorableStderr: warningsOnly},
		"aider":  {BuildArgs: aiderArgs, AppendStderr: true},
		"codex":  {BuildArgs: codexArgs},
		"goose":  {BuildArgs: gooseArgs},
	}
}

// claudeArgs runs claude in print mode with permission prompts disabled so
// the run never blocks on input.
func claudeArgs(ctx models.ExecutionContext) []string {
	args := []string{"-p", ctx.UserPrompt, "--output-format", "text"}
	if ctx.SystemPrompt != "" {
		args = append(args, "--append-system-prompt", ctx.SystemPrompt)
	}
	return append(args, "--dangerously-skip-permissions")
}

// geminiArgs passes the prompt positionally with auto-accept enabled. Gemini
// has no system prompt flag, so a system prompt is prepended to the prompt.
func geminiArgs(ctx models.ExecutionContext) []string {
	prompt := ctx.UserPrompt
	if ctx.SystemPrompt != "" {
		prompt = ctx.SystemPrompt + "\n\n" + ctx.UserPrompt
	}
	return []string{prompt, "--yolo"}
}

func aiderArgs(ctx models.ExecutionContext) []string {
	return []string{"--message", ctx.UserPrompt, "--yes"}
}

func codexArgs(ctx models.ExecutionContext) []string {
	return []string{"--full-auto", ctx.UserPrompt}
}

func gooseArgs(ctx models.ExecutionContext) []string {
	return []string{"run", ctx.UserPrompt}
}

// warningsOnly reports whether every non-blank stderr line is a warning.
func warningsOnly(stderr string) bool {
	found := false
	for _, line := range strings.Split(stderr, "\n") {
		line = strings.ToLower(strings.TrimSpace(line))
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "warn:") && !strings.HasPrefix(line, "warning:") {
			return false
		}
		found = true
	}
	return found
}

func exitCodeError(code int, stderr string, ignorable func(string) bool) string {
	msg := fmt.Sprintf("Exit code: %d", code)
	detail := strings.TrimSpace(stderr)
	if detail == "" {
		return msg
	}
	if ignorable != nil && ignorable(stderr) {
		return msg
	}
	return msg + ": " + detail
}
