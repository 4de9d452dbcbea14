package display

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// RenderTable writes rows under headers with a rounded border. Headers are
// bold on terminals. An empty row set prints "(none)" instead of a table.
func RenderTable(out io.Writer, headers []string, rows [][]string) {
	if len(rows) == 0 {
		fmt.Fprintln(out, "(none)")
		return
	}

	r := lipgloss.NewRenderer(out)
	headerStyle := r.NewStyle().Bold(true).Padding(0, 1)
	cellStyle := r.NewStyle().Padding(0, 1)

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(r.NewStyle().Foreground(lipgloss.Color("8"))).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})

	fmt.Fprintln(out, t.Render())
}

// KeyValues writes aligned "key: value" lines in the order given.
func KeyValues(out io.Writer, pairs [][2]string) {
	width := 0
	for _, p := range pairs {
		if len(p[0]) > width {
			width = len(p[0])
		}
	}
	label := lipgloss.NewRenderer(out).NewStyle().Foreground(lipgloss.Color("6"))
	for _, p := range pairs {
		fmt.Fprintf(out, "%s %s\n", label.Render(fmt.Sprintf("%-*s", width+1, p[0]+":")), p[1])
	}
}
