// Package logger provides logging implementations for LastAgent runs.
//
// Loggers record pipeline progress at the selection and execution levels.
// Implementations are thread-safe and write to a console, a run log file, or
// several destinations at once.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/lastagent/lastagent/internal/models"
	"github.com/mattn/go-isatty"
)

// Log level constants for filtering
const (
	levelTrace int = 0
	levelDebug int = 1
	levelInfo  int = 2
	levelWarn  int = 3
	levelError int = 4
)

// ConsoleLogger logs pipeline progress to a writer with timestamps and thread safety.
// All output is prefixed with [HH:MM:SS] timestamps.
// Color output is enabled only when the writer is a terminal.
type ConsoleLogger struct {
	writer      io.Writer
	logLevel    string
	mutex       sync.Mutex
	colorOutput bool
}

// NewConsoleLogger creates a ConsoleLogger that writes to the provided io.Writer.
// If writer is nil, messages are silently discarded.
// Valid levels: trace, debug, info, warn, error (case-insensitive).
// If logLevel is empty or invalid, defaults to "info".
func NewConsoleLogger(writer io.Writer, logLevel string) *ConsoleLogger {
	return &ConsoleLogger{
		writer:      writer,
		logLevel:    normalizeLogLevel(logLevel),
		colorOutput: isTerminal(writer),
	}
}

// isTerminal reports whether w is a file attached to a TTY.
// NO_COLOR (via color.NoColor) always disables color.
func isTerminal(w io.Writer) bool {
	if w == nil || color.NoColor {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// normalizeLogLevel converts a log level string to lowercase and validates it.
// Returns "info" for empty or invalid levels.
func normalizeLogLevel(level string) string {
	normalized := strings.ToLower(strings.TrimSpace(level))
	switch normalized {
	case "trace", "debug", "info", "warn", "error":
		return normalized
	}
	return "info"
}

// logLevelToInt converts a log level string to its numeric value.
func logLevelToInt(level string) int {
	switch level {
	case "trace":
		return levelTrace
	case "debug":
		return levelDebug
	case "warn":
		return levelWarn
	case "error":
		return levelError
	default:
		return levelInfo
	}
}

// shouldLog returns true if messageLevel >= the configured level.
func (cl *ConsoleLogger) shouldLog(messageLevel string) bool {
	return logLevelToInt(messageLevel) >= logLevelToInt(cl.logLevel)
}

// LogTrace logs a trace-level message (most verbose).
func (cl *ConsoleLogger) LogTrace(message string) {
	cl.logWithLevel("TRACE", message)
}

// LogDebug logs a debug-level message.
func (cl *ConsoleLogger) LogDebug(message string) {
	cl.logWithLevel("DEBUG", message)
}

// LogInfo logs an info-level message.
func (cl *ConsoleLogger) LogInfo(message string) {
	cl.logWithLevel("INFO", message)
}

// LogWarn logs a warning-level message.
func (cl *ConsoleLogger) LogWarn(message string) {
	cl.logWithLevel("WARN", message)
}

// LogError logs an error-level message.
func (cl *ConsoleLogger) LogError(message string) {
	cl.logWithLevel("ERROR", message)
}

// logWithLevel writes "[HH:MM:SS] [LEVEL] message".
func (cl *ConsoleLogger) logWithLevel(level, message string) {
	if cl.writer == nil || !cl.shouldLog(strings.ToLower(level)) {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	levelText := level
	if cl.colorOutput {
		levelText = levelColor(level).Sprint(level)
	}
	fmt.Fprintf(cl.writer, "[%s] [%s] %s\n", timestamp(), levelText, message)
}

func levelColor(level string) *color.Color {
	switch level {
	case "TRACE":
		return color.New(color.FgHiBlack)
	case "DEBUG":
		return color.New(color.FgCyan)
	case "WARN":
		return color.New(color.FgYellow)
	case "ERROR":
		return color.New(color.FgRed)
	default:
		return color.New(color.FgBlue)
	}
}

// LogSelection logs the council's choice at INFO level.
// Format: "[HH:MM:SS] Selected <agent> (confidence 0.85, 3 votes)"
func (cl *ConsoleLogger) LogSelection(selection models.CouncilSelection) {
	if cl.writer == nil || !cl.shouldLog("info") {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	scheme := newColorScheme(cl.colorOutput)
	source := fmt.Sprintf("%d votes", len(selection.Votes))
	if selection.UsedFallback {
		source = scheme.warn.Sprint("local matching")
	}
	fmt.Fprintf(cl.writer, "[%s] Selected %s (%s, %s)\n",
		timestamp(),
		scheme.label.Sprint(selection.SelectedAgent),
		formatConfidence(selection.Confidence, scheme),
		source)
	if selection.Reasoning != "" {
		fmt.Fprintf(cl.writer, "[%s]   %s\n", timestamp(), selection.Reasoning)
	}
}

// LogResult logs an execution outcome at INFO level.
// Format: "[HH:MM:SS] <agent>: SUCCESS in 1.2s" or "... FAILED in 1.2s: <error>"
func (cl *ConsoleLogger) LogResult(result models.ExecutionResult) {
	if cl.writer == nil || !cl.shouldLog("info") {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	scheme := newColorScheme(cl.colorOutput)
	duration := formatDuration(time.Duration(result.DurationMs) * time.Millisecond)
	if result.Success {
		fmt.Fprintf(cl.writer, "[%s] %s: %s in %s\n",
			timestamp(), result.Agent, scheme.success.Sprint("SUCCESS"), duration)
		return
	}
	fmt.Fprintf(cl.writer, "[%s] %s: %s in %s: %s\n",
		timestamp(), result.Agent, scheme.fail.Sprint("FAILED"), duration, result.Error)
}

// timestamp returns the current time formatted as "15:04:05" (HH:MM:SS).
func timestamp() string {
	return time.Now().Format("15:04:05")
}

// formatDuration converts a time.Duration to a human-readable string.
// Examples: "450ms", "5.2s", "1m30s"
func formatDuration(d time.Duration) string {
	switch {
	case d >= time.Minute:
		minutes := d / time.Minute
		seconds := (d % time.Minute) / time.Second
		if seconds == 0 {
			return fmt.Sprintf("%dm", minutes)
		}
		return fmt.Sprintf("%dm%ds", minutes, seconds)
	case d >= time.Second:
		return fmt.Sprintf("%.1fs", d.Seconds())
	default:
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
}

// NoOpLogger is a Logger implementation that discards all log messages.
// Useful for testing or when logging is disabled.
type NoOpLogger struct{}

// NewNoOpLogger creates a NoOpLogger instance.
func NewNoOpLogger() *NoOpLogger {
	return &NoOpLogger{}
}

func (n *NoOpLogger) LogTrace(message string)                        {}
func (n *NoOpLogger) LogDebug(message string)                        {}
func (n *NoOpLogger) LogInfo(message string)                         {}
func (n *NoOpLogger) LogWarn(message string)                         {}
func (n *NoOpLogger) LogError(message string)                        {}
func (n *NoOpLogger) LogSelection(selection models.CouncilSelection) {}
func (n *NoOpLogger) LogResult(result models.ExecutionResult)        {}
func (n *NoOpLogger) Close() error                                   { return nil }
