package llm

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// RateLimitedProvider wraps a Provider with a token bucket that allows at
// most rpm requests per minute.
type RateLimitedProvider struct {
	provider Provider
	rpm      int
	mu       sync.Mutex
	tokens   int
	lastFill time.Time
}

// NewRateLimitedProvider wraps provider with a rate limiter. A non-positive
// rpm disables limiting.
func NewRateLimitedProvider(provider Provider, rpm int) Provider {
	if rpm <= 0 {
		return provider
	}
	return &RateLimitedProvider{
		provider: provider,
		rpm:      rpm,
		tokens:   rpm,
		lastFill: time.Now(),
	}
}

func (r *RateLimitedProvider) Name() string {
	return r.provider.Name()
}

func (r *RateLimitedProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	if err := r.wait(ctx); err != nil {
		return nil, err
	}
	return r.provider.Complete(ctx, req)
}

func (r *RateLimitedProvider) take() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	if refill := int(now.Sub(r.lastFill).Seconds() * float64(r.rpm) / 60.0); refill > 0 {
		r.tokens = min(r.tokens+refill, r.rpm)
		r.lastFill = now
	}
	if r.tokens > 0 {
		r.tokens--
		return true
	}
	return false
}

func (r *RateLimitedProvider) wait(ctx context.Context) error {
	for !r.take() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
	return nil
}

// RetryingProvider retries transient failures a bounded number of times
// with a fixed pause between attempts.
type RetryingProvider struct {
	provider Provider
	attempts int
	backoff  time.Duration
	logger   *zap.Logger
}

// NewRetryingProvider wraps provider. attempts counts the first call.
func NewRetryingProvider(provider Provider, attempts int, backoff time.Duration, logger *zap.Logger) Provider {
	if attempts <= 1 {
		return provider
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetryingProvider{provider: provider, attempts: attempts, backoff: backoff, logger: logger}
}

func (r *RetryingProvider) Name() string {
	return r.provider.Name()
}

func (r *RetryingProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	var lastErr error
	for attempt := 1; attempt <= r.attempts; attempt++ {
		resp, err := r.provider.Complete(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !retryable(err) || attempt == r.attempts {
			break
		}
		r.logger.Warn("completion failed, retrying",
			zap.String("provider", r.provider.Name()),
			zap.Int("attempt", attempt),
			zap.Error(err))
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(r.backoff):
		}
	}
	return nil, lastErr
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}
	return true
}
