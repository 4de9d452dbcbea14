package logger

import (
	"fmt"

	"github.com/fatih/color"
)

// colorScheme defines consistent colors for selection and result output.
// Green: success
// Red: failure
// Yellow: warnings and fallbacks
// Cyan: agent names and labels
type colorScheme struct {
	success *color.Color
	fail    *color.Color
	warn    *color.Color
	label   *color.Color
}

// newColorScheme creates the standard scheme. With enabled=false every
// color prints plain text, which keeps file and pipe output free of escapes.
func newColorScheme(enabled bool) *colorScheme {
	s := &colorScheme{
		success: color.New(color.FgGreen),
		fail:    color.New(color.FgRed),
		warn:    color.New(color.FgYellow),
		label:   color.New(color.FgCyan),
	}
	if !enabled {
		for _, c := range []*color.Color{s.success, s.fail, s.warn, s.label} {
			c.DisableColor()
		}
	} else {
		for _, c := range []*color.Color{s.success, s.fail, s.warn, s.label} {
			c.EnableColor()
		}
	}
	return s
}

// formatConfidence colors a confidence by band: green from 0.8, yellow
// from 0.6, red below.
func formatConfidence(confidence float64, scheme *colorScheme) string {
	text := fmt.Sprintf("confidence %.2f", confidence)
	switch {
	case confidence >= 0.8:
		return scheme.success.Sprint(text)
	case confidence >= 0.6:
		return scheme.warn.Sprint(text)
	default:
		return scheme.fail.Sprint(text)
	}
}
