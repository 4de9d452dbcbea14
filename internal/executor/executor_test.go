package executor

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lastagent/lastagent/internal/config"
	"github.com/lastagent/lastagent/internal/models"
)

// echoArgs prints each argument on its own line.
const echoArgs = `#!/bin/sh
for a in "$@"; do
  echo "$a"
done
`

// writeScript creates an executable named binary in dir and returns its path.
func writeScript(t *testing.T, dir, binary, body string) string {
	t.Helper()
	path := filepath.Join(dir, binary)
	require.NoError(t, os.WriteFile(path, []byte(body), 0755))
	return path
}

// newTestExecutor registers one agent per script, named after the binary.
func newTestExecutor(t *testing.T, scripts map[string]string) *Executor {
	t.Helper()
	dir := t.TempDir()
	profiles := make(map[string]*config.AgentProfile)
	for binary, body := range scripts {
		profiles[binary] = &config.AgentProfile{
			Command:      writeScript(t, dir, binary, body),
			Capabilities: config.StringList{models.CapCoding},
		}
	}
	reg, err := config.NewRegistry(profiles)
	require.NoError(t, err)
	return New(reg, nil)
}

func argLines(resp string) []string {
	return strings.Split(strings.TrimRight(resp, "\n"), "\n")
}

func TestExecute_ArgumentVectors(t *testing.T) {
	tests := []struct {
		name   string
		agent  string
		system string
		want   []string
	}{
		{
			name:  "claude without system prompt",
			agent: "claude",
			want:  []string{"-p", "fix the bug", "--output-format", "text", "--dangerously-skip-permissions"},
		},
		{
			name:   "claude with system prompt",
			agent:  "claude",
			system: "be brief",
			want:   []string{"-p", "fix the bug", "--output-format", "text", "--append-system-prompt", "be brief", "--dangerously-skip-permissions"},
		},
		{
			name:  "gemini",
			agent: "gemini",
			want:  []string{"fix the bug", "--yolo"},
		},
		{
			name:  "codex",
			agent: "codex",
			want:  []string{"--full-auto", "fix the bug"},
		},
		{
			name:  "goose",
			agent: "goose",
			want:  []string{"run", "fix the bug"},
		},
		{
			name:  "aider",
			agent: "aider",
			want:  []string{"--message", "fix the bug", "--yes"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := newTestExecutor(t, map[string]string{tt.agent: echoArgs})

			result := exec.Execute(context.Background(), tt.agent, models.ExecutionContext{
				UserPrompt:   "fix the bug",
				SystemPrompt: tt.system,
				Timeout:      5 * time.Second,
			})

			require.True(t, result.Success, result.Error)
			assert.Equal(t, tt.want, argLines(result.Response))
			assert.Equal(t, models.MethodCLI, result.Method)
			assert.Equal(t, tt.agent, result.Agent)
			assert.Equal(t, 0, result.Metadata["exit_code"])
		})
	}
}

func TestExecute_WorkingDirectory(t *testing.T) {
	exec := newTestExecutor(t, map[string]string{"goose": "#!/bin/sh\npwd\n"})
	workDir := t.TempDir()

	result := exec.Execute(context.Background(), "goose", models.ExecutionContext{
		UserPrompt:       "where am i",
		WorkingDirectory: workDir,
		Timeout:          5 * time.Second,
	})

	require.True(t, result.Success, result.Error)
	resolved, err := filepath.EvalSymlinks(workDir)
	require.NoError(t, err)
	assert.Equal(t, resolved, strings.TrimSpace(result.Response))
}

func TestExecute_CleanTmpDir(t *testing.T) {
	exec := newTestExecutor(t, map[string]string{"goose": "#!/bin/sh\necho \"$TMPDIR\"\n"})

	result := exec.Execute(context.Background(), "goose", models.ExecutionContext{
		UserPrompt: "env",
		Timeout:    5 * time.Second,
	})

	require.True(t, result.Success, result.Error)
	assert.Equal(t, CleanTmpDir(), strings.TrimSpace(result.Response))
}

func TestExecute_NonZeroExit(t *testing.T) {
	tests := []struct {
		name      string
		agent     string
		script    string
		wantError string
		wantResp  string
	}{
		{
			name:      "exit code only",
			agent:     "codex",
			script:    "#!/bin/sh\nexit 3\n",
			wantError: "Exit code: 3",
		},
		{
			name:      "stderr surfaced",
			agent:     "claude",
			script:    "#!/bin/sh\necho 'auth failed' >&2\nexit 1\n",
			wantError: "Exit code: 1: auth failed",
		},
		{
			name:      "gemini warnings suppressed",
			agent:     "gemini",
			script:    "#!/bin/sh\necho 'Warning: deprecated flag' >&2\necho 'warn: slow network' >&2\nexit 2\n",
			wantError: "Exit code: 2",
		},
		{
			name:      "gemini real error kept",
			agent:     "gemini",
			script:    "#!/bin/sh\necho 'warning: x' >&2\necho 'quota exceeded' >&2\nexit 2\n",
			wantError: "Exit code: 2: warning: x\nquota exceeded",
		},
		{
			name:      "codex returns stdout only",
			agent:     "codex",
			script:    "#!/bin/sh\necho partial\necho boom >&2\nexit 4\n",
			wantError: "Exit code: 4: boom",
			wantResp:  "partial\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := newTestExecutor(t, map[string]string{tt.agent: tt.script})

			result := exec.Execute(context.Background(), tt.agent, models.ExecutionContext{
				UserPrompt: "task",
				Timeout:    5 * time.Second,
			})

			assert.False(t, result.Success)
			assert.Equal(t, tt.wantError, result.Error)
			assert.Equal(t, tt.wantResp, result.Response)
		})
	}
}

func TestExecute_AiderAppendsStderr(t *testing.T) {
	exec := newTestExecutor(t, map[string]string{
		"aider": "#!/bin/sh\necho 'edited main.go'\necho 'Git repo: none' >&2\n",
	})

	result := exec.Execute(context.Background(), "aider", models.ExecutionContext{
		UserPrompt: "edit",
		Timeout:    5 * time.Second,
	})

	require.True(t, result.Success, result.Error)
	assert.Equal(t, "edited main.go\n\n[stderr]: Git repo: none\n", result.Response)
}

func TestExecute_Timeout(t *testing.T) {
	exec := newTestExecutor(t, map[string]string{"goose": "#!/bin/sh\nexec sleep 10\n"})

	start := time.Now()
	result := exec.Execute(context.Background(), "goose", models.ExecutionContext{
		UserPrompt: "hang",
		Timeout:    200 * time.Millisecond,
	})

	assert.False(t, result.Success)
	assert.Equal(t, "Execution timeout", result.Error)
	assert.Equal(t, int64(200), result.DurationMs)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestExecute_ParentCancellation(t *testing.T) {
	exec := newTestExecutor(t, map[string]string{"goose": "#!/bin/sh\nexec sleep 10\n"})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	result := exec.Execute(ctx, "goose", models.ExecutionContext{
		UserPrompt: "hang",
		Timeout:    5 * time.Second,
	})

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "Execution cancelled")
}

func TestExecute_Failures(t *testing.T) {
	t.Run("unknown agent", func(t *testing.T) {
		exec := New(config.DefaultRegistry(), nil)

		result := exec.Execute(context.Background(), "nobody", models.ExecutionContext{UserPrompt: "x"})

		assert.False(t, result.Success)
		assert.Equal(t, models.MethodNone, result.Method)
		assert.Contains(t, result.Error, "agent not found")
	})

	t.Run("binary not installed", func(t *testing.T) {
		reg, err := config.NewRegistry(map[string]*config.AgentProfile{
			"claude": {Command: filepath.Join(t.TempDir(), "claude")},
		})
		require.NoError(t, err)
		exec := New(reg, nil)

		result := exec.Execute(context.Background(), "claude", models.ExecutionContext{UserPrompt: "x"})

		assert.False(t, result.Success)
		assert.Contains(t, result.Error, "not installed")
		assert.False(t, exec.Available("claude"))
	})

	t.Run("no routine for binary", func(t *testing.T) {
		dir := t.TempDir()
		reg, err := config.NewRegistry(map[string]*config.AgentProfile{
			"mystery": {Command: writeScript(t, dir, "mystery-cli", echoArgs)},
		})
		require.NoError(t, err)
		exec := New(reg, nil)

		result := exec.Execute(context.Background(), "mystery", models.ExecutionContext{UserPrompt: "x"})

		assert.False(t, result.Success)
		assert.Equal(t, "Unknown CLI agent: mystery", result.Error)
	})
}

func TestRegisterRoutine(t *testing.T) {
	dir := t.TempDir()
	reg, err := config.NewRegistry(map[string]*config.AgentProfile{
		"opencode": {Command: writeScript(t, dir, "opencode", echoArgs)},
	})
	require.NoError(t, err)
	exec := New(reg, nil)
	exec.RegisterRoutine("opencode", Routine{
		BuildArgs: func(ctx models.ExecutionContext) []string {
			return []string{"run", "--quiet", ctx.UserPrompt}
		},
	})

	result := exec.Execute(context.Background(), "opencode", models.ExecutionContext{
		UserPrompt: "hello",
		Timeout:    5 * time.Second,
	})

	require.True(t, result.Success, result.Error)
	assert.Equal(t, []string{"run", "--quiet", "hello"}, argLines(result.Response))
}

func TestAvailableAgents(t *testing.T) {
	dir := t.TempDir()
	reg, err := config.NewRegistry(map[string]*config.AgentProfile{
		"goose":  {Command: writeScript(t, dir, "goose", echoArgs)},
		"claude": {Command: writeScript(t, dir, "claude", echoArgs)},
		"codex":  {Command: filepath.Join(dir, "missing", "codex")},
	})
	require.NoError(t, err)
	exec := New(reg, nil)

	assert.Equal(t, []string{"claude", "goose"}, exec.AvailableAgents())
	assert.True(t, exec.Available("goose"))
	assert.False(t, exec.Available("codex"))
	assert.False(t, exec.Available("nobody"))
}

func TestWarningsOnly(t *testing.T) {
	tests := []struct {
		stderr string
		want   bool
	}{
		{"", false},
		{"Warning: x", true},
		{"WARN: a\n\n  warning: b\n", true},
		{"warning: a\nerror: b", false},
		{"fatal", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, warningsOnly(tt.stderr), "stderr=%q", tt.stderr)
	}
}
