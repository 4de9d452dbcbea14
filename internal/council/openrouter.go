package council

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/lastagent/lastagent/internal/tracer"
)

const defaultOpenRouterURL = "https://openrouter.ai/api/v1"

// maxErrorBody caps how much of a failed response body ends up in an error.
const maxErrorBody = 512

// OpenRouterClient talks to the OpenRouter chat completions endpoint.
type OpenRouterClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewOpenRouterClient creates a client. An empty baseURL uses the public endpoint.
func NewOpenRouterClient(apiKey, baseURL string, timeout time.Duration) *OpenRouterClient {
	baseURL = strings.TrimRight(baseURL, "/")
	if baseURL == "" {
		baseURL = defaultOpenRouterURL
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &OpenRouterClient{
		apiKey:  apiKey,
		baseURL: baseURL,
		client: &http.Client{
			Timeout:   timeout,
			Transport: &openrouterTransport{base: http.DefaultTransport},
		},
	}
}

// openrouterTransport adds the attribution headers OpenRouter asks for.
type openrouterTransport struct {
	base http.RoundTripper
}

func (t *openrouterTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	clone.Header.Set("HTTP-Referer", "https://github.com/lastagent/lastagent")
	clone.Header.Set("X-Title", "lastagent")
	return t.base.RoundTrip(clone)
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Complete implements ModelClient.
func (c *OpenRouterClient) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	ctx, span := tracer.StartSpan(ctx, "council.model_call",
		tracer.StringAttr("llm.provider", "openrouter"),
		tracer.StringAttr("llm.model", req.Model),
	)
	defer span.End()

	messages := make([]chatMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.Prompt})

	body, err := json.Marshal(chatRequest{
		Model:       req.Model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		tracer.RecordError(span, err)
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		tracer.RecordError(span, err)
		return "", fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		tracer.RecordError(span, err)
		return "", fmt.Errorf("openrouter request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		tracer.RecordError(span, err)
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet := string(respBody)
		if len(snippet) > maxErrorBody {
			snippet = snippet[:maxErrorBody]
		}
		err := fmt.Errorf("openrouter status %d: %s", resp.StatusCode, snippet)
		tracer.RecordError(span, err)
		return "", err
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		tracer.RecordError(span, err)
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	if parsed.Error != nil {
		err := fmt.Errorf("openrouter error: %s", parsed.Error.Message)
		tracer.RecordError(span, err)
		return "", err
	}
	if len(parsed.Choices) == 0 || strings.TrimSpace(parsed.Choices[0].Message.Content) == "" {
		tracer.RecordError(span, ErrEmptyResponse)
		return "", ErrEmptyResponse
	}

	tracer.SetOK(span)
	return parsed.Choices[0].Message.Content, nil
}
