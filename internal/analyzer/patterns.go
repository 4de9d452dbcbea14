package analyzer

import (
	"regexp"

	"github.com/lastagent/lastagent/internal/models"
)

// CapabilityRule lists the patterns that signal one capability.
type CapabilityRule struct {
	Capability string
	Patterns   []*regexp.Regexp
}

// TaskTypeRule lists the patterns scored for one task type.
type TaskTypeRule struct {
	TaskType models.TaskType
	Patterns []*regexp.Regexp
}

func mustCompileAll(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, regexp.MustCompile(`(?i)`+p))
	}
	return out
}

// defaultCapabilityRules returns the capability keyword table.
func defaultCapabilityRules() []CapabilityRule {
	return []CapabilityRule{
		{
			Capability: models.CapCoding,
			Patterns: mustCompileAll(
				`\b(code|program|script|function|class|method|implement|debug|fix|bug)\b`,
				`\b(python|javascript|typescript|java|rust|go|c\+\+|ruby|php)\b`,
				`\b(api|endpoint|backend|frontend|database|sql|nosql)\b`,
				`\b(test|unittest|pytest|jest|spec)\b`,
				`\b(refactor|optimize|performance)\b`,
			),
		},
		{
			Capability: models.CapGitIntegration,
			Patterns: mustCompileAll(
				`\b(git|commit|branch|merge|pull request|pr|push|clone)\b`,
				`\b(github|gitlab|bitbucket)\b`,
				`\b(version control|vcs|repository|repo)\b`,
			),
		},
		{
			Capability: models.CapResearch,
			Patterns: mustCompileAll(
				`\b(research|find|search|lookup|discover|explore)\b`,
				`\b(what is|how does|explain|compare|contrast)\b`,
				`\b(latest|current|recent|2024|2025|2026)\b`,
				`\b(documentation|docs|reference)\b`,
			),
		},
		{
			Capability: models.CapRealtimeInfo,
			Patterns: mustCompileAll(
				`\b(today|now|current|latest|recent|news|trending)\b`,
				`\b(weather|stock|price|live|real-?time)\b`,
				`\b(2025|2026|this week|this month|yesterday)\b`,
			),
		},
		{
			Capability: models.CapDeepReasoning,
			Patterns: mustCompileAll(
				`\b(analyze|evaluate|compare|contrast|reason)\b`,
				`\b(why|explain|understand|deduce|infer)\b`,
				`\b(complex|detailed|thorough|comprehensive)\b`,
				`\b(pros and cons|trade-?offs|implications)\b`,
			),
		},
		{
			Capability: models.CapWriting,
			Patterns: mustCompileAll(
				`\b(write|draft|compose|create|generate)\b`,
				`\b(essay|article|blog|post|story|document)\b`,
				`\b(email|message|letter|proposal)\b`,
				`\b(summarize|summary|rewrite|paraphrase)\b`,
			),
		},
		{
			Capability: models.CapMultimodal,
			Patterns: mustCompileAll(
				`\b(image|picture|photo|screenshot|diagram)\b`,
				`\b(video|audio|sound|visual)\b`,
				`\b(pdf|document with images)\b`,
			),
		},
		{
			Capability: models.CapLongContext,
			Patterns: mustCompileAll(
				`\b(entire|whole|all|complete|full)\s+(file|document|codebase)\b`,
				`\b(large|long|extensive)\s+(document|file|context)\b`,
				`\b(multiple files|many files|all files)\b`,
			),
		},
		{
			Capability: models.CapSandboxedExecution,
			Patterns: mustCompileAll(
				`\b(run|execute|test|try|sandbox)\b`,
				`\b(shell|command|terminal|bash|zsh)\b`,
				`\b(install|pip|npm|brew)\b`,
			),
		},
		{
			Capability: models.CapMultistepWorkflows,
			Patterns: mustCompileAll(
				`\b(workflow|pipeline|automation|orchestrate)\b`,
				`\b(step by step|multiple steps|sequence)\b`,
				`\b(then|after that|next|finally)\b`,
			),
		},
	}
}

// defaultTaskTypeRules returns the task-type table in tie-break order.
func defaultTaskTypeRules() []TaskTypeRule {
	return []TaskTypeRule{
		{
			TaskType: models.TaskTypeCoding,
			Patterns: mustCompileAll(
				`\b(code|program|script|implement|debug|fix|build|create)\b.*\b(function|class|api|app|program|script)\b`,
				`\b(python|javascript|typescript|java|rust|go)\b`,
				`\b(fix.*bug|debug|refactor)\b`,
			),
		},
		{
			TaskType: models.TaskTypeResearch,
			Patterns: mustCompileAll(
				`\b(research|find out|look up|search for|discover)\b`,
				`\b(what is|who is|when did|where is|how does)\b`,
			),
		},
		{
			TaskType: models.TaskTypeWriting,
			Patterns: mustCompileAll(
				`\b(write|draft|compose|create)\b.*\b(essay|article|blog|email|document)\b`,
				`\b(summarize|rewrite|paraphrase)\b`,
			),
		},
		{
			TaskType: models.TaskTypeAnalysis,
			Patterns: mustCompileAll(
				`\b(analyze|evaluate|compare|review)\b`,
				`\b(pros and cons|trade-?offs|assessment)\b`,
			),
		},
		{
			TaskType: models.TaskTypeAutomation,
			Patterns: mustCompileAll(
				`\b(automate|script|workflow|pipeline)\b`,
				`\b(set up|configure|deploy)\b`,
			),
		},
		{
			TaskType: models.TaskTypeConversation,
			Patterns: mustCompileAll(
				`\b(chat|talk|discuss|conversation)\b`,
				`\b(hello|hi|hey|thanks)\b`,
			),
		},
	}
}

// workingDirectoryPatterns flag prompts that reference files or projects.
var workingDirectoryPatterns = mustCompileAll(
	`\./`,
	`\b(file|directory|folder|path|project)\b`,
	`\b(codebase|repo|repository)\b`,
)
