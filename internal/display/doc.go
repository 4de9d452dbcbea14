// Package display renders user-facing CLI output: tables for agents,
// decisions and feedback, and warnings for degraded runs.
//
// Styling goes through a lipgloss renderer bound to the output writer, so
// pipes and buffers get plain text while terminals get color:
//
//	display.RenderTable(os.Stdout, []string{"NAME", "COMMAND"}, rows)
//
//	warning := display.Warning{
//	    Title:      "Council unavailable",
//	    Message:    "OPENROUTER_API_KEY is not set",
//	    Suggestion: "Export the key or set council.enabled: false",
//	}
//	warning.Display(os.Stderr)
package display
