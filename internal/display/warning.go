package display

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Warning represents a user-facing warning message
type Warning struct {
	Title      string   // Main warning title
	Message    string   // Detailed explanation (optional)
	Items      []string // Related agents, files or values (optional)
	Suggestion string   // Action to take (optional)
}

// Display shows a formatted warning in yellow. Color is dropped when out is
// not a terminal.
func (w Warning) Display(out io.Writer) {
	var b strings.Builder

	b.WriteString("Warning: ")
	b.WriteString(w.Title)
	b.WriteString("\n")

	if w.Message != "" {
		b.WriteString("    ")
		b.WriteString(w.Message)
		b.WriteString("\n")
	}

	for i, item := range w.Items {
		fmt.Fprintf(&b, "      %d. %s\n", i+1, item)
	}

	if w.Suggestion != "" {
		b.WriteString("    Suggestion: ")
		b.WriteString(w.Suggestion)
		b.WriteString("\n")
	}

	style := lipgloss.NewRenderer(out).NewStyle().Foreground(lipgloss.Color("3"))
	for _, line := range strings.Split(strings.TrimSuffix(b.String(), "\n"), "\n") {
		fmt.Fprintln(out, style.Render(line))
	}
}
