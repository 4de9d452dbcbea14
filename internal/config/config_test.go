package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lastagent/lastagent/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDefaultConfig verifies default configuration values
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.ApprovalMode != models.ApprovalAuto {
		t.Errorf("ApprovalMode = %q, want %q", cfg.ApprovalMode, models.ApprovalAuto)
	}
	if cfg.Execution.Timeout != 300*time.Second {
		t.Errorf("Execution.Timeout = %v, want 300s", cfg.Execution.Timeout)
	}
	if cfg.Mesh.MaxDepth != 5 {
		t.Errorf("Mesh.MaxDepth = %d, want 5", cfg.Mesh.MaxDepth)
	}
	if cfg.Council.Chairman.Temperature != 0.3 {
		t.Errorf("Chairman.Temperature = %v, want 0.3", cfg.Council.Chairman.Temperature)
	}
	if cfg.Council.Chairman.MaxTokens != 500 {
		t.Errorf("Chairman.MaxTokens = %d, want 500", cfg.Council.Chairman.MaxTokens)
	}
	if cfg.Decisions.Path != filepath.Join(".agents", "decisions.jsonl") {
		t.Errorf("Decisions.Path = %q", cfg.Decisions.Path)
	}
	require.NoError(t, cfg.Validate())
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// TestLoadConfigValidFile tests loading a valid YAML config file
func TestLoadConfigValidFile(t *testing.T) {
	path := writeConfig(t, `approval:
  mode: approve-high-risk
logging:
  level: debug
execution:
  timeout: 90s
mesh:
  max_depth: 3
council:
  enabled: true
  provider: anthropic
  members:
    - model: claude-sonnet-4-5
    - model: claude-haiku-4-5
      weight: 0.5
  chairman:
    model: claude-opus-4-1
    temperature: 0
  breaker:
    timeout: 10s
decisions:
  persist: false
feedback:
  store: sqlite
  db_path: fb.db
agents_file: agents.yaml
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, models.ApprovalApproveHighRisk, cfg.ApprovalMode)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 90*time.Second, cfg.Execution.Timeout)
	assert.Equal(t, 3, cfg.Mesh.MaxDepth)
	assert.True(t, cfg.Council.Enabled)
	assert.Equal(t, "anthropic", cfg.Council.Provider)
	require.Len(t, cfg.Council.Members, 2)
	assert.Equal(t, 1.0, cfg.Council.Members[0].Weight)
	assert.Equal(t, 0.5, cfg.Council.Members[1].Weight)
	assert.Equal(t, "claude-opus-4-1", cfg.Council.Chairman.Model)
	assert.Equal(t, 0.0, cfg.Council.Chairman.Temperature)
	assert.Equal(t, 500, cfg.Council.Chairman.MaxTokens)
	assert.Equal(t, 10*time.Second, cfg.Council.Breaker.Timeout)
	assert.Equal(t, 60*time.Second, cfg.Council.Breaker.Interval)
	assert.False(t, cfg.Decisions.Persist)
	assert.Equal(t, "sqlite", cfg.Feedback.Store)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "agents.yaml"), cfg.AgentsFile)
	require.NoError(t, cfg.Validate())
}

// TestLoadConfigFileNotExists tests fallback to defaults when file doesn't exist
func TestLoadConfigFileNotExists(t *testing.T) {
	cfg, err := LoadConfig("/nonexistent/path/config.yaml")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "malformed yaml",
			content: "logging: [unclosed",
			wantErr: "failed to parse config file",
		},
		{
			name:    "bad timeout",
			content: "execution:\n  timeout: forever\n",
			wantErr: "invalid execution.timeout format",
		},
		{
			name:    "bad approval mode",
			content: "approval:\n  mode: sometimes\n",
			wantErr: "approval.mode",
		},
		{
			name:    "bad breaker interval",
			content: "council:\n  breaker:\n    interval: soon\n",
			wantErr: "council.breaker.interval",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadConfigFromDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".lastagent"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".lastagent", "config.yaml"), []byte("mesh:\n  max_depth: 2\n"), 0644))

	cfg, err := LoadConfigFromDir(dir)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Mesh.MaxDepth)
}

func TestMergeWithFlags(t *testing.T) {
	cfg := DefaultConfig()
	mode := models.ApprovalApproveAll
	timeout := 5 * time.Second
	dir := "/tmp/work"
	level := "warn"
	enabled := true

	cfg.MergeWithFlags(&mode, &timeout, &dir, &level, &enabled)

	assert.Equal(t, models.ApprovalApproveAll, cfg.ApprovalMode)
	assert.Equal(t, 5*time.Second, cfg.Execution.Timeout)
	assert.Equal(t, "/tmp/work", cfg.Execution.WorkingDirectory)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.True(t, cfg.Council.Enabled)

	before := *cfg
	cfg.MergeWithFlags(nil, nil, nil, nil, nil)
	assert.Equal(t, before, *cfg)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"defaults", func(c *Config) {}, ""},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }, "invalid logging.level"},
		{"zero timeout", func(c *Config) { c.Execution.Timeout = 0 }, "execution.timeout"},
		{"zero depth", func(c *Config) { c.Mesh.MaxDepth = 0 }, "mesh.max_depth"},
		{"bad mode", func(c *Config) { c.ApprovalMode = "never" }, "invalid approval mode"},
		{"bad provider", func(c *Config) {
			c.Council.Enabled = true
			c.Council.Provider = "carrier-pigeon"
		}, "council.provider"},
		{"no members", func(c *Config) {
			c.Council.Enabled = true
			c.Council.Members = nil
		}, "council.members"},
		{"empty member model", func(c *Config) {
			c.Council.Enabled = true
			c.Council.Members = []CouncilMember{{Model: ""}}
		}, "council.members[0].model"},
		{"disabled council skips checks", func(c *Config) {
			c.Council.Provider = "carrier-pigeon"
		}, ""},
		{"empty decision path", func(c *Config) { c.Decisions.Path = "" }, "decisions.path"},
		{"bad store", func(c *Config) { c.Feedback.Store = "postgres" }, "feedback.store"},
		{"sqlite without path", func(c *Config) {
			c.Feedback.Store = "sqlite"
			c.Feedback.DBPath = ""
		}, "feedback.db_path"},
		{"bad exporter", func(c *Config) {
			c.Tracing.Enabled = true
			c.Tracing.Exporter = "jaeger"
		}, "tracing.exporter"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
