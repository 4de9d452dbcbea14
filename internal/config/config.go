package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/lastagent/lastagent/internal/models"
	"gopkg.in/yaml.v3"
)

// LoggingConfig controls console and file logging.
type LoggingConfig struct {
	// Level sets the logging verbosity (trace, debug, info, warn, error)
	Level string `yaml:"level"`

	// Dir is where run logs are written. Empty disables file logging.
	Dir string `yaml:"dir"`
}

// ExecutionConfig controls agent CLI runs.
type ExecutionConfig struct {
	// Timeout bounds a single agent run
	Timeout time.Duration `yaml:"timeout"`

	// WorkingDirectory is used when a task does not name one
	WorkingDirectory string `yaml:"working_directory"`
}

// MeshConfig controls inter-agent delegation.
type MeshConfig struct {
	// MaxDepth is the deepest allowed delegation chain
	MaxDepth int `yaml:"max_depth"`
}

// CouncilMember is one voting model.
type CouncilMember struct {
	Model  string  `yaml:"model"`
	Weight float64 `yaml:"weight"`
	Role   string  `yaml:"role"`
}

// ChairmanConfig is the model that makes the stage-three decision.
type ChairmanConfig struct {
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// BreakerConfig configures the per-member circuit breaker.
type BreakerConfig struct {
	MaxFailures uint32        `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
	Interval    time.Duration `yaml:"interval"`
}

// RateLimitConfig throttles calls to each council member.
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute"`
	Burst             int `yaml:"burst"`
}

// CouncilConfig configures multi-model voting.
type CouncilConfig struct {
	// Enabled turns voting on. When off, selection uses local matching only.
	Enabled bool `yaml:"enabled"`

	// Provider is "openrouter" or "anthropic"
	Provider string `yaml:"provider"`

	// APIKeyEnv names the environment variable holding the provider key
	APIKeyEnv string `yaml:"api_key_env"`

	// BaseURL overrides the provider endpoint
	BaseURL string `yaml:"base_url"`

	// RequestTimeout bounds a single model call
	RequestTimeout time.Duration `yaml:"request_timeout"`

	Members   []CouncilMember `yaml:"members"`
	Chairman  ChairmanConfig  `yaml:"chairman"`
	Breaker   BreakerConfig   `yaml:"breaker"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// DecisionsConfig controls the decision audit log.
type DecisionsConfig struct {
	// Persist mirrors every decision to Path as JSON lines
	Persist bool   `yaml:"persist"`
	Path    string `yaml:"path"`
}

// FeedbackConfig selects the feedback store.
type FeedbackConfig struct {
	// Store is "memory" or "sqlite"
	Store  string `yaml:"store"`
	DBPath string `yaml:"db_path"`
}

// TracingConfig controls OpenTelemetry export.
type TracingConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"`
}

// Config represents LastAgent configuration options
type Config struct {
	ApprovalMode models.ApprovalMode `yaml:"-"`

	Logging   LoggingConfig   `yaml:"logging"`
	Execution ExecutionConfig `yaml:"execution"`
	Mesh      MeshConfig      `yaml:"mesh"`
	Council   CouncilConfig   `yaml:"council"`
	Decisions DecisionsConfig `yaml:"decisions"`
	Feedback  FeedbackConfig  `yaml:"feedback"`
	Tracing   TracingConfig   `yaml:"tracing"`

	// AgentsFile points at the agent registry YAML. Empty uses built-in profiles.
	AgentsFile string `yaml:"agents_file"`
}

// DefaultConfig returns a Config with sensible default values
func DefaultConfig() *Config {
	return &Config{
		ApprovalMode: models.ApprovalAuto,
		Logging: LoggingConfig{
			Level: "info",
		},
		Execution: ExecutionConfig{
			Timeout:          models.DefaultExecutionTimeout,
			WorkingDirectory: ".",
		},
		Mesh: MeshConfig{
			MaxDepth: 5,
		},
		Council: CouncilConfig{
			Enabled:        false,
			Provider:       "openrouter",
			APIKeyEnv:      "OPENROUTER_API_KEY",
			RequestTimeout: 60 * time.Second,
			Members: []CouncilMember{
				{Model: "anthropic/claude-sonnet-4", Weight: 1.0, Role: "reasoning"},
				{Model: "openai/gpt-4o", Weight: 1.0, Role: "generalist"},
				{Model: "google/gemini-2.5-pro", Weight: 1.0, Role: "research"},
			},
			Chairman: ChairmanConfig{
				Model:       "anthropic/claude-sonnet-4",
				Temperature: 0.3,
				MaxTokens:   500,
			},
			Breaker: BreakerConfig{
				MaxFailures: 5,
				Timeout:     30 * time.Second,
				Interval:    60 * time.Second,
			},
			RateLimit: RateLimitConfig{
				RequestsPerMinute: 60,
				Burst:             5,
			},
		},
		Decisions: DecisionsConfig{
			Persist: true,
			Path:    filepath.Join(".agents", "decisions.jsonl"),
		},
		Feedback: FeedbackConfig{
			Store:  "memory",
			DBPath: filepath.Join(".agents", "feedback.db"),
		},
		Tracing: TracingConfig{
			Enabled:  false,
			Exporter: "noop",
		},
	}
}

// yamlConfig mirrors Config with string durations and pointer flags so that
// keys absent from the file leave defaults untouched.
type yamlConfig struct {
	Approval struct {
		Mode string `yaml:"mode"`
	} `yaml:"approval"`
	Logging   LoggingConfig `yaml:"logging"`
	Execution struct {
		Timeout          string `yaml:"timeout"`
		WorkingDirectory string `yaml:"working_directory"`
	} `yaml:"execution"`
	Mesh    MeshConfig `yaml:"mesh"`
	Council struct {
		Enabled        *bool           `yaml:"enabled"`
		Provider       string          `yaml:"provider"`
		APIKeyEnv      string          `yaml:"api_key_env"`
		BaseURL        string          `yaml:"base_url"`
		RequestTimeout string          `yaml:"request_timeout"`
		Members        []CouncilMember `yaml:"members"`
		Chairman       struct {
			Model       string   `yaml:"model"`
			Temperature *float64 `yaml:"temperature"`
			MaxTokens   int      `yaml:"max_tokens"`
		} `yaml:"chairman"`
		Breaker struct {
			MaxFailures uint32 `yaml:"max_failures"`
			Timeout     string `yaml:"timeout"`
			Interval    string `yaml:"interval"`
		} `yaml:"breaker"`
		RateLimit RateLimitConfig `yaml:"rate_limit"`
	} `yaml:"council"`
	Decisions struct {
		Persist *bool  `yaml:"persist"`
		Path    string `yaml:"path"`
	} `yaml:"decisions"`
	Feedback FeedbackConfig `yaml:"feedback"`
	Tracing  struct {
		Enabled  *bool  `yaml:"enabled"`
		Exporter string `yaml:"exporter"`
	} `yaml:"tracing"`
	AgentsFile string `yaml:"agents_file"`
}

// LoadConfig loads configuration from the specified file path.
// If the file doesn't exist, returns default configuration without error.
// If the file exists but is malformed, returns an error.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var y yamlConfig
	if err := yaml.Unmarshal(data, &y); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if y.Approval.Mode != "" {
		mode, err := models.ParseApprovalMode(y.Approval.Mode)
		if err != nil {
			return nil, fmt.Errorf("approval.mode: %w", err)
		}
		cfg.ApprovalMode = mode
	}

	if y.Logging.Level != "" {
		cfg.Logging.Level = y.Logging.Level
	}
	if y.Logging.Dir != "" {
		cfg.Logging.Dir = y.Logging.Dir
	}

	if err := parseDurationInto(&cfg.Execution.Timeout, y.Execution.Timeout, "execution.timeout"); err != nil {
		return nil, err
	}
	if y.Execution.WorkingDirectory != "" {
		cfg.Execution.WorkingDirectory = y.Execution.WorkingDirectory
	}

	if y.Mesh.MaxDepth != 0 {
		cfg.Mesh.MaxDepth = y.Mesh.MaxDepth
	}

	if err := mergeCouncil(&cfg.Council, &y); err != nil {
		return nil, err
	}

	if y.Decisions.Persist != nil {
		cfg.Decisions.Persist = *y.Decisions.Persist
	}
	if y.Decisions.Path != "" {
		cfg.Decisions.Path = y.Decisions.Path
	}

	if y.Feedback.Store != "" {
		cfg.Feedback.Store = y.Feedback.Store
	}
	if y.Feedback.DBPath != "" {
		cfg.Feedback.DBPath = y.Feedback.DBPath
	}

	if y.Tracing.Enabled != nil {
		cfg.Tracing.Enabled = *y.Tracing.Enabled
	}
	if y.Tracing.Exporter != "" {
		cfg.Tracing.Exporter = y.Tracing.Exporter
	}

	if y.AgentsFile != "" {
		cfg.AgentsFile = y.AgentsFile
		if !filepath.IsAbs(cfg.AgentsFile) {
			cfg.AgentsFile = filepath.Join(filepath.Dir(path), cfg.AgentsFile)
		}
	}

	return cfg, nil
}

func mergeCouncil(c *CouncilConfig, y *yamlConfig) error {
	src := y.Council
	if src.Enabled != nil {
		c.Enabled = *src.Enabled
	}
	if src.Provider != "" {
		c.Provider = src.Provider
	}
	if src.APIKeyEnv != "" {
		c.APIKeyEnv = src.APIKeyEnv
	}
	if src.BaseURL != "" {
		c.BaseURL = src.BaseURL
	}
	if err := parseDurationInto(&c.RequestTimeout, src.RequestTimeout, "council.request_timeout"); err != nil {
		return err
	}
	if len(src.Members) > 0 {
		c.Members = make([]CouncilMember, 0, len(src.Members))
		for _, m := range src.Members {
			if m.Weight == 0 {
				m.Weight = 1.0
			}
			c.Members = append(c.Members, m)
		}
	}
	if src.Chairman.Model != "" {
		c.Chairman.Model = src.Chairman.Model
	}
	if src.Chairman.Temperature != nil {
		c.Chairman.Temperature = *src.Chairman.Temperature
	}
	if src.Chairman.MaxTokens != 0 {
		c.Chairman.MaxTokens = src.Chairman.MaxTokens
	}
	if src.Breaker.MaxFailures != 0 {
		c.Breaker.MaxFailures = src.Breaker.MaxFailures
	}
	if err := parseDurationInto(&c.Breaker.Timeout, src.Breaker.Timeout, "council.breaker.timeout"); err != nil {
		return err
	}
	if err := parseDurationInto(&c.Breaker.Interval, src.Breaker.Interval, "council.breaker.interval"); err != nil {
		return err
	}
	if src.RateLimit.RequestsPerMinute != 0 {
		c.RateLimit.RequestsPerMinute = src.RateLimit.RequestsPerMinute
	}
	if src.RateLimit.Burst != 0 {
		c.RateLimit.Burst = src.RateLimit.Burst
	}
	return nil
}

func parseDurationInto(dst *time.Duration, raw, field string) error {
	if raw == "" {
		return nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid %s format %q: %w", field, raw, err)
	}
	*dst = d
	return nil
}

// LoadConfigFromDir loads configuration from .lastagent/config.yaml in the specified directory.
// If the directory or file doesn't exist, returns default configuration without error.
func LoadConfigFromDir(dir string) (*Config, error) {
	configPath := filepath.Join(dir, ".lastagent", "config.yaml")
	return LoadConfig(configPath)
}

// MergeWithFlags merges CLI flags into the configuration.
// Non-nil flag values override configuration values.
func (c *Config) MergeWithFlags(approvalMode *models.ApprovalMode, timeout *time.Duration, workDir *string, logLevel *string, councilEnabled *bool) {
	if approvalMode != nil {
		c.ApprovalMode = *approvalMode
	}
	if timeout != nil {
		c.Execution.Timeout = *timeout
	}
	if workDir != nil {
		c.Execution.WorkingDirectory = *workDir
	}
	if logLevel != nil {
		c.Logging.Level = *logLevel
	}
	if councilEnabled != nil {
		c.Council.Enabled = *councilEnabled
	}
}

// Validate validates the configuration values.
// Returns an error if any values are invalid.
func (c *Config) Validate() error {
	if _, err := models.ParseApprovalMode(string(c.ApprovalMode)); err != nil {
		return err
	}

	validLevels := map[string]bool{
		"trace": true,
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid logging.level %q, must be one of: trace, debug, info, warn, error", c.Logging.Level)
	}

	if c.Execution.Timeout <= 0 {
		return fmt.Errorf("execution.timeout must be > 0, got %v", c.Execution.Timeout)
	}

	if c.Mesh.MaxDepth < 1 {
		return fmt.Errorf("mesh.max_depth must be >= 1, got %d", c.Mesh.MaxDepth)
	}

	if c.Council.Enabled {
		switch c.Council.Provider {
		case "openrouter", "anthropic":
		default:
			return fmt.Errorf("invalid council.provider %q, must be one of: openrouter, anthropic", c.Council.Provider)
		}
		if len(c.Council.Members) == 0 {
			return fmt.Errorf("council.members cannot be empty when council is enabled")
		}
		for i, m := range c.Council.Members {
			if m.Model == "" {
				return fmt.Errorf("council.members[%d].model cannot be empty", i)
			}
			if m.Weight < 0 {
				return fmt.Errorf("council.members[%d].weight must be >= 0, got %v", i, m.Weight)
			}
		}
		if c.Council.Chairman.Temperature < 0 || c.Council.Chairman.Temperature > 2 {
			return fmt.Errorf("council.chairman.temperature must be in [0, 2], got %v", c.Council.Chairman.Temperature)
		}
		if c.Council.Chairman.MaxTokens < 0 {
			return fmt.Errorf("council.chairman.max_tokens must be >= 0, got %d", c.Council.Chairman.MaxTokens)
		}
	}

	if c.Decisions.Persist && c.Decisions.Path == "" {
		return fmt.Errorf("decisions.path cannot be empty when persist is enabled")
	}

	switch c.Feedback.Store {
	case "memory":
	case "sqlite":
		if c.Feedback.DBPath == "" {
			return fmt.Errorf("feedback.db_path cannot be empty when store is sqlite")
		}
	default:
		return fmt.Errorf("invalid feedback.store %q, must be one of: memory, sqlite", c.Feedback.Store)
	}

	if c.Tracing.Enabled {
		switch c.Tracing.Exporter {
		case "stdout", "noop", "":
		default:
			return fmt.Errorf("invalid tracing.exporter %q, must be one of: stdout, noop", c.Tracing.Exporter)
		}
	}

	return nil
}
