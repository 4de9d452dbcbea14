package council

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/lastagent/lastagent/internal/config"
)

const (
	defaultBreakerMaxFailures uint32 = 5
	defaultBreakerTimeout            = 30 * time.Second
	defaultBreakerInterval           = 60 * time.Second
)

// BreakerClient keeps one circuit breaker per model so a failing member
// stops being called until its breaker half-opens.
type BreakerClient struct {
	inner    ModelClient
	settings config.BreakerConfig
	logger   Logger

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[string]
}

// NewBreakerClient wraps inner. Zero settings take defaults.
func NewBreakerClient(inner ModelClient, cfg config.BreakerConfig, logger Logger) *BreakerClient {
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = defaultBreakerMaxFailures
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultBreakerTimeout
	}
	if cfg.Interval == 0 {
		cfg.Interval = defaultBreakerInterval
	}
	if logger == nil {
		logger = nopLogger{}
	}
	return &BreakerClient{
		inner:    inner,
		settings: cfg,
		logger:   logger,
		breakers: make(map[string]*gobreaker.CircuitBreaker[string]),
	}
}

func (b *BreakerClient) breakerFor(model string) *gobreaker.CircuitBreaker[string] {
	b.mu.Lock()
	defer b.mu.Unlock()

	if cb, ok := b.breakers[model]; ok {
		return cb
	}

	maxFailures := b.settings.MaxFailures
	cb := gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        "council:" + model,
		MaxRequests: 1,
		Interval:    b.settings.Interval,
		Timeout:     b.settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			b.logger.LogWarn(fmt.Sprintf("circuit breaker %s: %s -> %s", name, from, to))
		},
	})
	b.breakers[model] = cb
	return cb
}

// Complete implements ModelClient.
func (b *BreakerClient) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	resp, err := b.breakerFor(req.Model).Execute(func() (string, error) {
		return b.inner.Complete(ctx, req)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", fmt.Errorf("model %q circuit open: %w", req.Model, err)
		}
		return "", err
	}
	return resp, nil
}

// State reports the breaker state for model. Unknown models are closed.
func (b *BreakerClient) State(model string) gobreaker.State {
	b.mu.Lock()
	cb, ok := b.breakers[model]
	b.mu.Unlock()
	if !ok {
		return gobreaker.StateClosed
	}
	return cb.State()
}
