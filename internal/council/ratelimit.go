package council

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/time/rate"

	"github.com/lastagent/lastagent/internal/config"
)

// RateLimitedClient throttles calls per model with a token bucket.
type RateLimitedClient struct {
	inner ModelClient
	limit rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewRateLimitedClient wraps inner. A non-positive rate disables limiting.
func NewRateLimitedClient(inner ModelClient, cfg config.RateLimitConfig) ModelClient {
	if cfg.RequestsPerMinute <= 0 {
		return inner
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &RateLimitedClient{
		inner:    inner,
		limit:    rate.Limit(float64(cfg.RequestsPerMinute) / 60.0),
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (r *RateLimitedClient) limiterFor(model string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.limiters[model]
	if !ok {
		l = rate.NewLimiter(r.limit, r.burst)
		r.limiters[model] = l
	}
	return l
}

// Complete implements ModelClient.
func (r *RateLimitedClient) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	if err := r.limiterFor(req.Model).Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait for %q: %w", req.Model, err)
	}
	return r.inner.Complete(ctx, req)
}
