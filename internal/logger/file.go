package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/lastagent/lastagent/internal/models"
)

// DefaultLogDir is used when no log directory is configured.
var DefaultLogDir = filepath.Join(".lastagent", "logs")

// FileLogger logs pipeline events to files in a log directory.
// It creates timestamped per-run log files, per-task result logs,
// and maintains a latest.log symlink pointing to the most recent run.
// It supports log level filtering to control message verbosity.
type FileLogger struct {
	logDir   string
	runLog   *os.File
	runFile  string
	tasksDir string
	logLevel string
	mu       sync.Mutex
}

// NewFileLogger creates a FileLogger in DefaultLogDir at level "info".
func NewFileLogger() (*FileLogger, error) {
	return NewFileLoggerWithDirAndLevel(DefaultLogDir, "info")
}

// NewFileLoggerWithDirAndLevel creates a FileLogger with a custom log directory and log level.
func NewFileLoggerWithDirAndLevel(logDir string, logLevel string) (*FileLogger, error) {
	if logDir == "" {
		logDir = DefaultLogDir
	}

	tasksDir := filepath.Join(logDir, "tasks")
	if err := os.MkdirAll(tasksDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	// run-YYYYMMDD-HHMMSS.log
	runFile := filepath.Join(logDir, fmt.Sprintf("run-%s.log", time.Now().Format("20060102-150405")))
	file, err := os.OpenFile(runFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create run log file: %w", err)
	}

	symlinkPath := filepath.Join(logDir, "latest.log")
	if _, err := os.Lstat(symlinkPath); err == nil {
		if err := os.Remove(symlinkPath); err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to remove old symlink: %w", err)
		}
	}
	if err := os.Symlink(filepath.Base(runFile), symlinkPath); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to create symlink: %w", err)
	}

	fl := &FileLogger{
		logDir:   logDir,
		runLog:   file,
		runFile:  runFile,
		tasksDir: tasksDir,
		logLevel: normalizeLogLevel(logLevel),
	}

	fl.writeRunLog("=== LastAgent Run Log ===\n")
	fl.writeRunLog(fmt.Sprintf("Started at: %s\n\n", time.Now().Format(time.RFC3339)))

	return fl, nil
}

// RunFile returns the path of the current run log.
func (fl *FileLogger) RunFile() string {
	return fl.runFile
}

func (fl *FileLogger) shouldLog(messageLevel string) bool {
	return logLevelToInt(messageLevel) >= logLevelToInt(fl.logLevel)
}

// LogTrace logs a trace-level message (most verbose).
func (fl *FileLogger) LogTrace(message string) {
	fl.logWithLevel("TRACE", message)
}

// LogDebug logs a debug-level message.
func (fl *FileLogger) LogDebug(message string) {
	fl.logWithLevel("DEBUG", message)
}

// LogInfo logs an info-level message.
func (fl *FileLogger) LogInfo(message string) {
	fl.logWithLevel("INFO", message)
}

// LogWarn logs a warning-level message.
func (fl *FileLogger) LogWarn(message string) {
	fl.logWithLevel("WARN", message)
}

// LogError logs an error-level message.
func (fl *FileLogger) LogError(message string) {
	fl.logWithLevel("ERROR", message)
}

func (fl *FileLogger) logWithLevel(level string, message string) {
	if !fl.shouldLog(strings.ToLower(level)) {
		return
	}
	fl.writeRunLog(fmt.Sprintf("[%s] [%s] %s\n", timestamp(), level, message))
}

// LogSelection records the selected agent and every vote at INFO level.
func (fl *FileLogger) LogSelection(selection models.CouncilSelection) {
	if !fl.shouldLog("info") {
		return
	}

	ts := timestamp()
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] Selected %s (confidence %.2f, fallback %t)\n",
		ts, selection.SelectedAgent, selection.Confidence, selection.UsedFallback)
	for _, v := range selection.Votes {
		fmt.Fprintf(&b, "[%s]   vote %s -> %s\n", ts, v.Model, v.SuggestedAgent)
	}

	agents := make([]string, 0, len(selection.AggregateScores))
	for agent := range selection.AggregateScores {
		agents = append(agents, agent)
	}
	sort.Strings(agents)
	for _, agent := range agents {
		fmt.Fprintf(&b, "[%s]   score %s = %.3f\n", ts, agent, selection.AggregateScores[agent])
	}
	fl.writeRunLog(b.String())
}

// LogResult writes a one-line outcome to the run log and, when the result
// carries a task id, the full response to tasks/<task-id>.log.
func (fl *FileLogger) LogResult(result models.ExecutionResult) {
	if fl.shouldLog("info") {
		status := "SUCCESS"
		if !result.Success {
			status = "FAILED"
		}
		fl.writeRunLog(fmt.Sprintf("[%s] %s: %s in %dms\n", timestamp(), result.Agent, status, result.DurationMs))
	}

	if result.TaskID == "" {
		return
	}
	if err := fl.writeTaskLog(result); err != nil {
		fl.logWithLevel("WARN", err.Error())
	}
}

func (fl *FileLogger) writeTaskLog(result models.ExecutionResult) error {
	var b strings.Builder
	fmt.Fprintf(&b, "=== Task %s ===\n", result.TaskID)
	fmt.Fprintf(&b, "Agent: %s\n", result.Agent)
	fmt.Fprintf(&b, "Method: %s\n", result.Method)
	fmt.Fprintf(&b, "Success: %t\n", result.Success)
	fmt.Fprintf(&b, "Duration: %dms\n\n", result.DurationMs)
	if result.Response != "" {
		fmt.Fprintf(&b, "Response:\n%s\n\n", result.Response)
	}
	if result.Error != "" {
		fmt.Fprintf(&b, "Error:\n%s\n\n", result.Error)
	}
	fmt.Fprintf(&b, "Completed at: %s\n", time.Now().Format(time.RFC3339))

	path := filepath.Join(fl.tasksDir, fmt.Sprintf("task-%s.log", result.TaskID))
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("failed to write task log: %w", err)
	}
	return nil
}

// Close syncs and closes the run log.
func (fl *FileLogger) Close() error {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	if fl.runLog != nil {
		if err := fl.runLog.Sync(); err != nil {
			return fmt.Errorf("failed to sync run log: %w", err)
		}
		if err := fl.runLog.Close(); err != nil {
			return fmt.Errorf("failed to close run log: %w", err)
		}
		fl.runLog = nil
	}
	return nil
}

// writeRunLog is a thread-safe helper to write to the run log file.
func (fl *FileLogger) writeRunLog(message string) {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	if fl.runLog != nil {
		fl.runLog.WriteString(message)
		fl.runLog.Sync()
	}
}
