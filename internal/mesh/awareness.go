package mesh

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/lastagent/lastagent/internal/config"
)

const awarenessTemplate = `
## Agent Mesh Awareness

You are part of a collaborative agent mesh. When you encounter a task that would
be better handled by another agent, you can delegate to them.

### Available Peer Agents

%s

### Delegation Guidelines

- **Git/Code Editing**: Delegate to Aider (has git integration, auto-commits)
- **Real-time Search**: Delegate to Gemini (has Google Search grounding)
- **Sandboxed Execution**: Delegate to Codex (runs in isolated environment)
- **Multi-step Workflows**: Delegate to Goose (excels at complex automation)
- **Deep Reasoning**: Delegate to Claude (best for complex analysis)

### How to Delegate

To delegate a task, output in this exact format:
` + "```" + `
DELEGATE_TO: <agent_name>
TASK: <detailed task description>
CONTEXT: <any relevant context the peer agent needs>
` + "```" + `

Only delegate when the peer agent has clear advantages for the specific subtask.
For most tasks, complete them yourself.
`

// AwarenessBuilder appends peer-agent awareness to system prompts so an agent
// knows who it can delegate to.
type AwarenessBuilder struct {
	registry *config.Registry
}

// NewAwarenessBuilder creates a builder over the registry.
func NewAwarenessBuilder(registry *config.Registry) *AwarenessBuilder {
	return &AwarenessBuilder{registry: registry}
}

// PeerAgents returns every profile except current, in name order.
func (b *AwarenessBuilder) PeerAgents(current string) []config.AgentProfile {
	var peers []config.AgentProfile
	for _, p := range b.registry.All() {
		if p.Name != current {
			peers = append(peers, p)
		}
	}
	return peers
}

// AwarenessSection renders the peer roster, or "" when there are no peers.
func (b *AwarenessBuilder) AwarenessSection(current string) string {
	peers := b.PeerAgents(current)
	if len(peers) == 0 {
		return ""
	}
	entries := make([]string, 0, len(peers))
	for _, p := range peers {
		entries = append(entries, peerText(p))
	}
	return fmt.Sprintf(awarenessTemplate, strings.Join(entries, "\n\n"))
}

func peerText(p config.AgentProfile) string {
	return fmt.Sprintf("- **%s** (`%s`)\n  Capabilities: %s\n  Strengths:\n  - %s",
		p.DisplayName, p.Name,
		strings.Join(p.Capabilities, ", "),
		strings.Join(p.Strengths, "\n  - "))
}

// AwareSystemPrompt appends the awareness section to base.
func (b *AwarenessBuilder) AwareSystemPrompt(current, base string) string {
	section := b.AwarenessSection(current)
	if section == "" {
		return base
	}
	return base + "\n\n" + section
}

// BestDelegateFor returns the first agent, in name order, that declares
// capability and is not exclude.
func (b *AwarenessBuilder) BestDelegateFor(capability, exclude string) (string, bool) {
	for _, name := range b.registry.ByCapability(capability) {
		if name != exclude {
			return name, true
		}
	}
	return "", false
}

// DelegationRecommendations maps peer agents to the required capabilities
// current lacks and they can cover.
func (b *AwarenessBuilder) DelegationRecommendations(current string, required []string) map[string][]string {
	var have config.AgentProfile
	if p, err := b.registry.Get(current); err == nil {
		have = p
	}

	recs := make(map[string][]string)
	seen := make(map[string]bool)
	for _, capability := range required {
		if seen[capability] || have.HasCapability(capability) {
			continue
		}
		seen[capability] = true
		if delegate, ok := b.BestDelegateFor(capability, current); ok {
			recs[delegate] = append(recs[delegate], capability)
		}
	}
	return recs
}

// DelegationRequest is a hand-off an agent asked for in its output.
type DelegationRequest struct {
	TargetAgent string
	Task        string
	Context     string
	Valid       bool
	Error       string
}

const delegateMarker = "DELEGATE_TO:"

var markdown = goldmark.New()

// ParseDelegationRequest extracts a delegation request from agent output. It
// returns nil when the output contains no DELEGATE_TO marker. Fenced code
// blocks are searched first; the raw output is the fallback.
func ParseDelegationRequest(output string) *DelegationRequest {
	if !strings.Contains(output, delegateMarker) {
		return nil
	}

	for _, block := range fencedBlocks([]byte(output)) {
		if strings.Contains(block, delegateMarker) {
			if req := parseDelegationFields(block); req.Valid {
				return req
			}
		}
	}
	return parseDelegationFields(output)
}

func fencedBlocks(source []byte) []string {
	doc := markdown.Parser().Parse(text.NewReader(source))

	var blocks []string
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if _, ok := n.(*ast.FencedCodeBlock); !ok {
			return ast.WalkContinue, nil
		}
		var buf bytes.Buffer
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			buf.Write(seg.Value(source))
		}
		blocks = append(blocks, buf.String())
		return ast.WalkSkipChildren, nil
	})
	return blocks
}

func parseDelegationFields(body string) *DelegationRequest {
	var target, task, extra string
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, delegateMarker):
			target = strings.TrimSpace(strings.TrimPrefix(line, delegateMarker))
		case strings.HasPrefix(line, "TASK:"):
			task = strings.TrimSpace(strings.TrimPrefix(line, "TASK:"))
		case strings.HasPrefix(line, "CONTEXT:"):
			extra = strings.TrimSpace(strings.TrimPrefix(line, "CONTEXT:"))
		}
	}

	if target == "" || task == "" {
		return &DelegationRequest{
			TargetAgent: target,
			Task:        task,
			Context:     extra,
			Error:       "Missing required fields (DELEGATE_TO and TASK)",
		}
	}
	return &DelegationRequest{
		TargetAgent: strings.ToLower(target),
		Task:        task,
		Context:     extra,
		Valid:       true,
	}
}
