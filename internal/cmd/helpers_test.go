package cmd

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// testEnv is a temp workspace with a config that keeps every artifact
// inside it and a registry whose claude agent is a shell script.
type testEnv struct {
	dir        string
	configPath string
	decisions  string
}

func newTestEnv(t *testing.T, claudeScript string, extraConfig string) *testEnv {
	t.Helper()
	dir := t.TempDir()

	binDir := filepath.Join(dir, "bin")
	require.NoError(t, os.MkdirAll(binDir, 0755))
	claude := filepath.Join(binDir, "claude")
	require.NoError(t, os.WriteFile(claude, []byte("#!/bin/sh\n"+claudeScript+"\n"), 0755))

	gemini := filepath.Join(binDir, "gemini")
	require.NoError(t, os.WriteFile(gemini, []byte("#!/bin/sh\necho \"gemini handled it\"\n"), 0755))

	agentsPath := filepath.Join(dir, "agents.yaml")
	agents := fmt.Sprintf(`agents:
  claude:
    command: %s
    capabilities: [coding, writing, deep_reasoning]
    strengths: [Careful code changes]
  gemini:
    command: %s
    capabilities: [research, realtime_info]
    strengths: [Search grounding]
  goose:
    command: %s
    capabilities: [multistep_workflows]
`, claude, gemini, filepath.Join(binDir, "goose-missing"))
	require.NoError(t, os.WriteFile(agentsPath, []byte(agents), 0644))

	env := &testEnv{
		dir:        dir,
		configPath: filepath.Join(dir, "config.yaml"),
		decisions:  filepath.Join(dir, "decisions.jsonl"),
	}
	cfg := fmt.Sprintf(`logging:
  level: error
execution:
  timeout: 10s
  working_directory: %s
decisions:
  persist: true
  path: %s
feedback:
  store: sqlite
  db_path: %s
agents_file: %s
%s`, dir, env.decisions, filepath.Join(dir, "feedback.db"), agentsPath, extraConfig)
	require.NoError(t, os.WriteFile(env.configPath, []byte(cfg), 0644))

	return env
}

// run executes the root command with --config pointing at the env.
func (e *testEnv) run(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	root := NewRootCommand()
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append([]string{"--config", e.configPath}, args...))
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}
