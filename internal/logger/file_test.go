package logger

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lastagent/lastagent/internal/models"
)

// TestLogDirectoryCreation verifies .lastagent/logs/ is created by the default constructor
func TestLogDirectoryCreation(t *testing.T) {
	tmpDir := t.TempDir()
	oldWd, _ := os.Getwd()
	os.Chdir(tmpDir)
	defer os.Chdir(oldWd)

	logger, err := NewFileLogger()
	if err != nil {
		t.Fatalf("NewFileLogger() error = %v", err)
	}
	defer logger.Close()

	logDir := filepath.Join(tmpDir, ".lastagent", "logs")
	if _, err := os.Stat(filepath.Join(logDir, "tasks")); os.IsNotExist(err) {
		t.Errorf("expected %s/tasks to exist", logDir)
	}
}

func TestRunLogHeaderAndSymlink(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewFileLoggerWithDirAndLevel(dir, "info")
	if err != nil {
		t.Fatalf("NewFileLoggerWithDirAndLevel() error = %v", err)
	}
	logger.LogInfo("hello run")
	logger.LogDebug("hidden")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	base := filepath.Base(logger.RunFile())
	if !strings.HasPrefix(base, "run-") || !strings.HasSuffix(base, ".log") {
		t.Errorf("unexpected run file name %s", base)
	}

	target, err := os.Readlink(filepath.Join(dir, "latest.log"))
	if err != nil {
		t.Fatalf("latest.log is not a symlink: %v", err)
	}
	if target != base {
		t.Errorf("latest.log -> %s, want %s", target, base)
	}

	content, err := os.ReadFile(logger.RunFile())
	if err != nil {
		t.Fatal(err)
	}
	text := string(content)
	if !strings.HasPrefix(text, "=== LastAgent Run Log ===") {
		t.Errorf("missing header in %q", text)
	}
	if !strings.Contains(text, "[INFO] hello run") {
		t.Errorf("missing info line in %q", text)
	}
	if strings.Contains(text, "hidden") {
		t.Errorf("debug line should be filtered at info level")
	}
}

func TestSymlinkReplacedOnNewRun(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "run-old.log"), []byte("old"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink("run-old.log", filepath.Join(dir, "latest.log")); err != nil {
		t.Fatal(err)
	}

	logger, err := NewFileLoggerWithDirAndLevel(dir, "info")
	if err != nil {
		t.Fatalf("NewFileLoggerWithDirAndLevel() error = %v", err)
	}
	defer logger.Close()

	target, _ := os.Readlink(filepath.Join(dir, "latest.log"))
	if target == "run-old.log" {
		t.Error("latest.log still points at the previous run")
	}
}

func TestFileLoggerLogResultWritesTaskLog(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewFileLoggerWithDirAndLevel(dir, "info")
	if err != nil {
		t.Fatal(err)
	}
	logger.LogResult(models.ExecutionResult{
		TaskID:     "abc",
		Agent:      "codex",
		Method:     models.MethodCLI,
		DurationMs: 42,
		Error:      "Exit code: 2: boom",
	})
	logger.Close()

	taskLog, err := os.ReadFile(filepath.Join(dir, "tasks", "task-abc.log"))
	if err != nil {
		t.Fatalf("task log missing: %v", err)
	}
	for _, want := range []string{"=== Task abc ===", "Agent: codex", "Success: false", "Exit code: 2: boom"} {
		if !strings.Contains(string(taskLog), want) {
			t.Errorf("expected %q in task log", want)
		}
	}

	runLog, _ := os.ReadFile(logger.RunFile())
	if !strings.Contains(string(runLog), "codex: FAILED in 42ms") {
		t.Errorf("run log missing result line: %q", runLog)
	}
}

func TestFileLoggerLogResultWithoutTaskID(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewFileLoggerWithDirAndLevel(dir, "info")
	if err != nil {
		t.Fatal(err)
	}
	logger.LogResult(models.ExecutionResult{Agent: "claude", Success: true})
	logger.Close()

	entries, _ := os.ReadDir(filepath.Join(dir, "tasks"))
	if len(entries) != 0 {
		t.Errorf("expected no task logs, got %d", len(entries))
	}
}

func TestFileLoggerLogSelection(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewFileLoggerWithDirAndLevel(dir, "info")
	if err != nil {
		t.Fatal(err)
	}
	logger.LogSelection(models.CouncilSelection{
		SelectedAgent:   "gemini",
		Confidence:      0.8,
		Votes:           []models.CouncilVote{{Model: "m1", SuggestedAgent: "gemini"}},
		AggregateScores: map[string]float64{"gemini": 1, "claude": 0},
	})
	logger.Close()

	content, _ := os.ReadFile(logger.RunFile())
	text := string(content)
	for _, want := range []string{"Selected gemini (confidence 0.80, fallback false)", "vote m1 -> gemini", "score claude = 0.000", "score gemini = 1.000"} {
		if !strings.Contains(text, want) {
			t.Errorf("expected %q in %q", want, text)
		}
	}
	if strings.Index(text, "score claude") > strings.Index(text, "score gemini") {
		t.Error("scores should be listed in agent name order")
	}
}

func TestFileLoggerWritesAfterCloseAreDropped(t *testing.T) {
	logger, err := NewFileLoggerWithDirAndLevel(t.TempDir(), "info")
	if err != nil {
		t.Fatal(err)
	}
	logger.Close()
	logger.LogInfo("after close")
	if err := logger.Close(); err != nil {
		t.Errorf("second Close() = %v", err)
	}
}

type closingLogger struct {
	NoOpLogger
	infos []string
	err   error
}

func (c *closingLogger) LogInfo(message string) { c.infos = append(c.infos, message) }
func (c *closingLogger) Close() error           { return c.err }

func TestMultiLoggerFansOut(t *testing.T) {
	buf := &bytes.Buffer{}
	rec := &closingLogger{}
	m := NewMultiLogger(NewConsoleLogger(buf, "info"), nil, rec)

	m.LogInfo("both")
	m.LogDebug("neither")
	m.LogResult(models.ExecutionResult{Agent: "goose", Success: true})

	if !strings.Contains(buf.String(), "[INFO] both") {
		t.Errorf("console missed message: %q", buf.String())
	}
	if !strings.Contains(buf.String(), "goose: SUCCESS") {
		t.Errorf("console missed result: %q", buf.String())
	}
	if len(rec.infos) != 1 || rec.infos[0] != "both" {
		t.Errorf("recorder got %v", rec.infos)
	}
}

func TestMultiLoggerCloseJoinsErrors(t *testing.T) {
	errA := errors.New("a failed")
	errB := errors.New("b failed")
	m := NewMultiLogger(&closingLogger{err: errA}, NewConsoleLogger(nil, "info"), &closingLogger{err: errB})

	err := m.Close()
	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Errorf("Close() = %v, want both errors", err)
	}
}
