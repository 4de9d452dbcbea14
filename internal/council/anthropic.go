package council

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/lastagent/lastagent/internal/tracer"
)

const defaultAnthropicMaxTokens = 1024

// AnthropicClient sends council prompts to the Anthropic Messages API.
type AnthropicClient struct {
	inner anthropic.Client
}

// NewAnthropicClient creates a client. baseURL may be empty.
func NewAnthropicClient(apiKey, baseURL string) *AnthropicClient {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &AnthropicClient{inner: anthropic.NewClient(opts...)}
}

// Complete implements ModelClient.
func (c *AnthropicClient) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	ctx, span := tracer.StartSpan(ctx, "council.model_call",
		tracer.StringAttr("llm.provider", "anthropic"),
		tracer.StringAttr("llm.model", req.Model),
	)
	defer span.End()

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if req.Temperature != nil {
		params.Temperature = anthropic.Float(*req.Temperature)
	}

	resp, err := c.inner.Messages.New(ctx, params)
	if err != nil {
		tracer.RecordError(span, err)
		return "", fmt.Errorf("anthropic request: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			text.WriteString(tb.Text)
		}
	}
	if strings.TrimSpace(text.String()) == "" {
		tracer.RecordError(span, ErrEmptyResponse)
		return "", ErrEmptyResponse
	}

	span.SetAttributes(
		tracer.IntAttr("llm.input_tokens", int(resp.Usage.InputTokens)),
		tracer.IntAttr("llm.output_tokens", int(resp.Usage.OutputTokens)),
	)
	tracer.SetOK(span)
	return text.String(), nil
}
