package council

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lastagent/lastagent/internal/config"
)

func TestOpenRouterClientComplete(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "lastagent", r.Header.Get("X-Title"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"claude: reasoning"}}]}`))
	}))
	defer srv.Close()

	c := NewOpenRouterClient("test-key", srv.URL+"/", time.Second)
	temp := 0.3
	text, err := c.Complete(context.Background(), CompletionRequest{
		Model:       "openai/gpt-4o",
		System:      "be brief",
		Prompt:      "pick one",
		Temperature: &temp,
		MaxTokens:   50,
	})
	require.NoError(t, err)
	assert.Equal(t, "claude: reasoning", text)

	assert.Equal(t, "openai/gpt-4o", got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "pick one", got.Messages[1].Content)
	assert.Equal(t, 50, got.MaxTokens)
}

func TestOpenRouterClientErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{"http error", http.StatusTooManyRequests, `{"error":{"message":"slow down"}}`, "openrouter status 429"},
		{"api error", http.StatusOK, `{"error":{"message":"bad model"}}`, "openrouter error: bad model"},
		{"empty choices", http.StatusOK, `{"choices":[]}`, "empty model response"},
		{"garbage", http.StatusOK, `not json`, "unmarshal response"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewOpenRouterClient("k", srv.URL, time.Second).Complete(context.Background(), CompletionRequest{Model: "m", Prompt: "p"})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestBreakerClientOpensAfterFailures(t *testing.T) {
	calls := 0
	inner := ModelClientFunc(func(ctx context.Context, req CompletionRequest) (string, error) {
		calls++
		return "", errors.New("boom")
	})
	b := NewBreakerClient(inner, config.BreakerConfig{MaxFailures: 2, Timeout: time.Minute}, nil)

	for i := 0; i < 2; i++ {
		_, err := b.Complete(context.Background(), CompletionRequest{Model: "m1"})
		require.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateOpen, b.State("m1"))

	_, err := b.Complete(context.Background(), CompletionRequest{Model: "m1"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, gobreaker.ErrOpenState))
	assert.Contains(t, err.Error(), `model "m1" circuit open`)
	assert.Equal(t, 2, calls, "open breaker must not reach the model")

	assert.Equal(t, gobreaker.StateClosed, b.State("m2"), "breakers are per model")
}

func TestBreakerClientPassesThrough(t *testing.T) {
	inner := ModelClientFunc(func(ctx context.Context, req CompletionRequest) (string, error) {
		return "ok:" + req.Model, nil
	})
	b := NewBreakerClient(inner, config.BreakerConfig{}, nil)
	text, err := b.Complete(context.Background(), CompletionRequest{Model: "x"})
	require.NoError(t, err)
	assert.Equal(t, "ok:x", text)
}

func TestRateLimitedClient(t *testing.T) {
	inner := ModelClientFunc(func(ctx context.Context, req CompletionRequest) (string, error) {
		return "ok", nil
	})

	_, isLimited := NewRateLimitedClient(inner, config.RateLimitConfig{}).(*RateLimitedClient)
	assert.False(t, isLimited, "zero rate disables limiting")

	limited := NewRateLimitedClient(inner, config.RateLimitConfig{RequestsPerMinute: 1, Burst: 1})
	_, err := limited.Complete(context.Background(), CompletionRequest{Model: "m"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = limited.Complete(ctx, CompletionRequest{Model: "m"})
	require.Error(t, err, "second call within the minute must wait past the deadline")
	assert.Contains(t, err.Error(), "rate limit wait")

	_, err = limited.Complete(context.Background(), CompletionRequest{Model: "other"})
	require.NoError(t, err, "limits are per model")
}

func TestNewClientFromConfig(t *testing.T) {
	cfg := config.DefaultConfig().Council
	cfg.APIKeyEnv = "LASTAGENT_TEST_MISSING_KEY"
	t.Setenv("LASTAGENT_TEST_MISSING_KEY", "")

	_, err := NewClientFromConfig(cfg, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LASTAGENT_TEST_MISSING_KEY environment variable is not set")

	t.Setenv("LASTAGENT_TEST_MISSING_KEY", "secret")
	client, err := NewClientFromConfig(cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &BreakerClient{}, client)

	cfg.Provider = "anthropic"
	client, err = NewClientFromConfig(cfg, nil)
	require.NoError(t, err)
	assert.NotNil(t, client)

	cfg.Provider = "smoke-signals"
	_, err = NewClientFromConfig(cfg, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported council provider")
}
