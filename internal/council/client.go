// Package council selects an agent for a task by polling several language
// models in three stages: suggest, rank, and a chairman decision. Any
// failure degrades to local capability matching.
package council

import (
	"context"
	"errors"
)

var (
	// ErrEmptyResponse is returned when a model replies with no text.
	ErrEmptyResponse = errors.New("empty model response")

	// ErrNoVotes means no council member produced a usable suggestion.
	ErrNoVotes = errors.New("no council votes")
)

// CompletionRequest is a single-turn prompt to one model.
type CompletionRequest struct {
	Model       string
	System      string
	Prompt      string
	Temperature *float64
	MaxTokens   int
}

// ModelClient sends a prompt to a model and returns its text reply.
type ModelClient interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// ModelClientFunc adapts a function to ModelClient.
type ModelClientFunc func(ctx context.Context, req CompletionRequest) (string, error)

// Complete implements ModelClient.
func (f ModelClientFunc) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	return f(ctx, req)
}

// Logger is the logging surface the council needs.
type Logger interface {
	LogDebug(message string)
	LogInfo(message string)
	LogWarn(message string)
	LogError(message string)
}

type nopLogger struct{}

func (nopLogger) LogDebug(string) {}
func (nopLogger) LogInfo(string)  {}
func (nopLogger) LogWarn(string)  {}
func (nopLogger) LogError(string) {}
