package cmd

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lastagent/lastagent/internal/feedback"
)

func TestFeedbackCommand_SubmitAndSummary(t *testing.T) {
	env := newTestEnv(t, `echo ok`, "")

	submissions := [][]string{
		{"claude", "5", "--category", "accuracy"},
		{"claude", "3", "--suggestion", "explain the diff"},
		{"gemini", "2", "--category", "speed", "--comment", "slow"},
	}
	for _, args := range submissions {
		stdout, _, err := env.run(t, "", append([]string{"feedback", "submit"}, args...)...)
		require.NoError(t, err)
		assert.Contains(t, stdout, "Recorded feedback")
	}

	stdout, _, err := env.run(t, "", "feedback", "summary", "--json")
	require.NoError(t, err)
	var summary feedback.Summary
	require.NoError(t, json.Unmarshal([]byte(stdout), &summary))
	assert.Equal(t, 3, summary.TotalCount)
	assert.Equal(t, 3.33, summary.AverageRating)
	assert.Equal(t, 1, summary.Distribution[5])
	assert.Equal(t, 0, summary.Distribution[1])
	assert.Equal(t, 4.0, summary.ByAgent["claude"])

	stdout, _, err = env.run(t, "", "feedback", "summary", "--agent", "claude")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Best agent")
	assert.Contains(t, stdout, "explain the diff")
}

func TestFeedbackCommand_Recent(t *testing.T) {
	env := newTestEnv(t, `echo ok`, "")
	_, _, err := env.run(t, "", "feedback", "submit", "gemini", "4", "--comment", "solid sources")
	require.NoError(t, err)
	_, _, err = env.run(t, "", "feedback", "submit", "claude", "1", "--comment", "wrong file")
	require.NoError(t, err)

	stdout, _, err := env.run(t, "", "feedback", "recent")
	require.NoError(t, err)
	assert.Contains(t, stdout, "solid sources")
	assert.Contains(t, stdout, "wrong file")

	stdout, _, err = env.run(t, "", "feedback", "recent", "--agent", "gemini")
	require.NoError(t, err)
	assert.Contains(t, stdout, "solid sources")
	assert.NotContains(t, stdout, "wrong file")
}

func TestFeedbackCommand_SubmitValidation(t *testing.T) {
	env := newTestEnv(t, `echo ok`, "")

	tests := []struct {
		name    string
		args    []string
		wantErr error
		wantMsg string
	}{
		{name: "rating too high", args: []string{"claude", "6"}, wantErr: feedback.ErrInvalidRating},
		{name: "rating not a number", args: []string{"claude", "five"}, wantErr: feedback.ErrInvalidRating},
		{name: "bad category", args: []string{"claude", "4", "--category", "vibes"}, wantErr: feedback.ErrInvalidCategory},
		{name: "unknown agent", args: []string{"cursor", "4"}, wantMsg: "unknown agent"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := env.run(t, "", append([]string{"feedback", "submit"}, tt.args...)...)
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			if tt.wantMsg != "" {
				assert.Contains(t, err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestFeedbackCommand_EmptySummary(t *testing.T) {
	env := newTestEnv(t, `echo ok`, "")

	stdout, _, err := env.run(t, "", "feedback", "summary")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Total")
	assert.NotContains(t, stdout, "Best agent")
}
