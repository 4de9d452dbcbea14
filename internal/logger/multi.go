package logger

import (
	"errors"
	"io"

	"github.com/lastagent/lastagent/internal/models"
)

// Logger is the full logging surface shared by the console, file and no-op
// loggers.
type Logger interface {
	LogTrace(message string)
	LogDebug(message string)
	LogInfo(message string)
	LogWarn(message string)
	LogError(message string)
	LogSelection(selection models.CouncilSelection)
	LogResult(result models.ExecutionResult)
}

// MultiLogger fans every call out to each of its loggers in order.
type MultiLogger struct {
	loggers []Logger
}

// NewMultiLogger creates a MultiLogger. Nil entries are skipped.
func NewMultiLogger(loggers ...Logger) *MultiLogger {
	m := &MultiLogger{}
	for _, l := range loggers {
		if l != nil {
			m.loggers = append(m.loggers, l)
		}
	}
	return m
}

func (m *MultiLogger) LogTrace(message string) {
	for _, l := range m.loggers {
		l.LogTrace(message)
	}
}

func (m *MultiLogger) LogDebug(message string) {
	for _, l := range m.loggers {
		l.LogDebug(message)
	}
}

func (m *MultiLogger) LogInfo(message string) {
	for _, l := range m.loggers {
		l.LogInfo(message)
	}
}

func (m *MultiLogger) LogWarn(message string) {
	for _, l := range m.loggers {
		l.LogWarn(message)
	}
}

func (m *MultiLogger) LogError(message string) {
	for _, l := range m.loggers {
		l.LogError(message)
	}
}

func (m *MultiLogger) LogSelection(selection models.CouncilSelection) {
	for _, l := range m.loggers {
		l.LogSelection(selection)
	}
}

func (m *MultiLogger) LogResult(result models.ExecutionResult) {
	for _, l := range m.loggers {
		l.LogResult(result)
	}
}

// Close closes every logger that implements io.Closer and joins the errors.
func (m *MultiLogger) Close() error {
	var errs []error
	for _, l := range m.loggers {
		if c, ok := l.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
