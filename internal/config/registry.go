package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/lastagent/lastagent/internal/models"
	"gopkg.in/yaml.v3"
)

// ErrAgentNotFound is returned when a name is not in the registry.
var ErrAgentNotFound = errors.New("agent not found")

// AgentProfile describes one external agent CLI.
type AgentProfile struct {
	Name                     string     `yaml:"-" json:"name"`
	DisplayName              string     `yaml:"display_name" json:"display_name"`
	Type                     string     `yaml:"type" json:"type"`
	Command                  string     `yaml:"command" json:"command"`
	Capabilities             StringList `yaml:"capabilities" json:"capabilities"`
	Strengths                StringList `yaml:"strengths" json:"strengths"`
	MCPServer                string     `yaml:"mcp_server" json:"mcp_server,omitempty"`
	RequiresWorkingDirectory bool       `yaml:"requires_working_directory" json:"requires_working_directory"`
}

// HasCapability reports whether the agent declares cap.
func (p *AgentProfile) HasCapability(cap string) bool {
	for _, c := range p.Capabilities {
		if c == cap {
			return true
		}
	}
	return false
}

// StringList accepts either a comma-separated string or a YAML sequence.
type StringList []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *StringList) UnmarshalYAML(value *yaml.Node) error {
	var str string
	if err := value.Decode(&str); err == nil {
		parts := strings.Split(str, ",")
		*s = make(StringList, 0, len(parts))
		for _, part := range parts {
			item := strings.TrimSpace(part)
			if item != "" {
				*s = append(*s, item)
			}
		}
		return nil
	}

	var arr []string
	if err := value.Decode(&arr); err == nil {
		*s = StringList(arr)
		return nil
	}

	return fmt.Errorf("must be either a comma-separated string or an array")
}

// Registry is the read-only catalogue of agent profiles. It is built once at
// startup and safe to share between goroutines.
type Registry struct {
	agents map[string]*AgentProfile
	names  []string
}

// NewRegistry builds a registry from profiles keyed by agent name.
func NewRegistry(profiles map[string]*AgentProfile) (*Registry, error) {
	r := &Registry{agents: make(map[string]*AgentProfile, len(profiles))}
	for name, p := range profiles {
		if p == nil {
			return nil, fmt.Errorf("agent %q: empty profile", name)
		}
		cp := *p
		cp.Name = name
		if cp.DisplayName == "" {
			cp.DisplayName = defaultDisplayName(name)
		}
		if cp.Type == "" {
			cp.Type = "cli"
		}
		if cp.Command == "" {
			return nil, fmt.Errorf("agent %q: command cannot be empty", name)
		}
		if err := validateCapabilities(cp.Capabilities); err != nil {
			return nil, fmt.Errorf("agent %q: %w", name, err)
		}
		cp.Capabilities = append(StringList(nil), cp.Capabilities...)
		cp.Strengths = append(StringList(nil), cp.Strengths...)
		r.agents[name] = &cp
		r.names = append(r.names, name)
	}
	sort.Strings(r.names)
	return r, nil
}

func defaultDisplayName(name string) string {
	if name == "" {
		return name
	}
	return strings.ToUpper(name[:1]) + name[1:] + " Agent"
}

func validateCapabilities(caps []string) error {
	known := make(map[string]bool)
	for _, c := range models.KnownCapabilities() {
		known[c] = true
	}
	for _, c := range caps {
		if !known[c] {
			return fmt.Errorf("unknown capability %q", c)
		}
	}
	return nil
}

// Names returns agent names in sorted order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.names...)
}

// Exists reports whether name is registered.
func (r *Registry) Exists(name string) bool {
	_, ok := r.agents[name]
	return ok
}

// Get returns a copy of the named profile.
func (r *Registry) Get(name string) (AgentProfile, error) {
	p, ok := r.agents[name]
	if !ok {
		return AgentProfile{}, fmt.Errorf("%w: %s", ErrAgentNotFound, name)
	}
	return clone(p), nil
}

// All returns every profile in name order.
func (r *Registry) All() []AgentProfile {
	out := make([]AgentProfile, 0, len(r.names))
	for _, name := range r.names {
		out = append(out, clone(r.agents[name]))
	}
	return out
}

// ByCapability returns the names of agents that declare capability.
func (r *Registry) ByCapability(capability string) []string {
	var out []string
	for _, name := range r.names {
		if r.agents[name].HasCapability(capability) {
			out = append(out, name)
		}
	}
	return out
}

// Len returns the number of registered agents.
func (r *Registry) Len() int {
	return len(r.names)
}

func clone(p *AgentProfile) AgentProfile {
	cp := *p
	cp.Capabilities = append(StringList(nil), p.Capabilities...)
	cp.Strengths = append(StringList(nil), p.Strengths...)
	return cp
}

// registryFile is the on-disk layout of an agents file.
type registryFile struct {
	Agents map[string]*AgentProfile `yaml:"agents"`
}

// LoadRegistry reads an agents YAML file. A missing file yields the
// built-in registry.
func LoadRegistry(path string) (*Registry, error) {
	if path == "" {
		return DefaultRegistry(), nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return DefaultRegistry(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read agents file: %w", err)
	}

	var f registryFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse agents file: %w", err)
	}
	if len(f.Agents) == 0 {
		return nil, fmt.Errorf("agents file %s defines no agents", path)
	}

	return NewRegistry(f.Agents)
}

// DefaultProfiles returns the built-in agent catalogue.
func DefaultProfiles() map[string]*AgentProfile {
	return map[string]*AgentProfile{
		"claude": {
			DisplayName: "Claude Agent",
			Command:     "claude",
			Capabilities: StringList{
				models.CapCoding,
				models.CapDeepReasoning,
				models.CapWriting,
				models.CapLongContext,
				models.CapMultistepWorkflows,
				models.CapMCPIntegration,
			},
			Strengths: StringList{
				"Complex reasoning and analysis",
				"High quality code generation",
				"Careful long-form writing",
			},
			MCPServer: "claude mcp serve",
		},
		"gemini": {
			DisplayName: "Gemini Agent",
			Command:     "gemini",
			Capabilities: StringList{
				models.CapResearch,
				models.CapRealtimeInfo,
				models.CapSearchGrounding,
				models.CapMultimodal,
				models.CapUltraLongContext,
				models.CapCoding,
			},
			Strengths: StringList{
				"Real-time search grounding",
				"Multimodal understanding",
				"Very large context window",
			},
		},
		"aider": {
			DisplayName: "Aider Agent",
			Command:     "aider",
			Capabilities: StringList{
				models.CapCoding,
				models.CapGitIntegration,
			},
			Strengths: StringList{
				"Git-aware code editing with auto-commits",
				"Multi-file refactoring",
			},
			RequiresWorkingDirectory: true,
		},
		"codex": {
			DisplayName: "Codex Agent",
			Command:     "codex",
			Capabilities: StringList{
				models.CapCoding,
				models.CapSandboxedExecution,
			},
			Strengths: StringList{
				"Sandboxed code execution",
				"Autonomous test-and-fix loops",
			},
			RequiresWorkingDirectory: true,
		},
		"goose": {
			DisplayName: "Goose Agent",
			Command:     "goose",
			Capabilities: StringList{
				models.CapMultistepWorkflows,
				models.CapCoding,
				models.CapMCPIntegration,
			},
			Strengths: StringList{
				"Complex multi-step automation",
				"Extensible tool use through MCP",
			},
		},
	}
}

// DefaultRegistry returns a registry of the built-in profiles.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(DefaultProfiles())
	if err != nil {
		panic(fmt.Sprintf("built-in agent profiles are invalid: %v", err))
	}
	return r
}
