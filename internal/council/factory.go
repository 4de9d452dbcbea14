package council

import (
	"fmt"
	"os"

	"github.com/lastagent/lastagent/internal/config"
)

// NewClientFromConfig builds the provider client named by cfg and wraps it
// with rate limiting and circuit breaking. It fails when the API key
// environment variable is empty.
func NewClientFromConfig(cfg config.CouncilConfig, logger Logger) (ModelClient, error) {
	keyEnv := cfg.APIKeyEnv
	if keyEnv == "" {
		keyEnv = defaultKeyEnv(cfg.Provider)
	}
	apiKey := os.Getenv(keyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("%s environment variable is not set", keyEnv)
	}

	var base ModelClient
	switch cfg.Provider {
	case "openrouter", "":
		base = NewOpenRouterClient(apiKey, cfg.BaseURL, cfg.RequestTimeout)
	case "anthropic":
		base = NewAnthropicClient(apiKey, cfg.BaseURL)
	default:
		return nil, fmt.Errorf("unsupported council provider %q", cfg.Provider)
	}

	limited := NewRateLimitedClient(base, cfg.RateLimit)
	return NewBreakerClient(limited, cfg.Breaker, logger), nil
}

func defaultKeyEnv(provider string) string {
	if provider == "anthropic" {
		return "ANTHROPIC_API_KEY"
	}
	return "OPENROUTER_API_KEY"
}
