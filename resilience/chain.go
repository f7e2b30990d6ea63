package resilience

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/poiesic/sibyl/breaker"
	"github.com/poiesic/sibyl/cache"
	"github.com/poiesic/sibyl/core"
)

// Package errors
var (
	// ErrBreakerRequired indicates a chain was created without a breaker.
	ErrBreakerRequired = errors.New("breaker is required")

	// ErrInvalidAttempts indicates a non-positive attempt budget.
	ErrInvalidAttempts = errors.New("max attempts must be positive")

	// ErrPrimaryRequired indicates Run was called without a primary operation.
	ErrPrimaryRequired = errors.New("primary operation is required")
)

const (
	defaultMaxAttempts = 3
	defaultBaseDelay   = 200 * time.Millisecond
	defaultMaxDelay    = 5 * time.Second
)

// Operation is a single attemptable call against a dependency.
type Operation[T any] func(ctx context.Context) (T, error)

// Chain runs a primary operation under a circuit breaker with retries,
// falling back through an ordered list of alternatives when the primary
// is exhausted.
type Chain[T any] struct {
	breaker     *breaker.Breaker
	results     *cache.Cache[core.ID, T]
	cacheTTL    time.Duration
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
	retryable   func(error) bool
	logger      *slog.Logger
}

// ChainOption configures a Chain.
type ChainOption[T any] func(*Chain[T]) error

// WithMaxAttempts sets the total attempt budget for the primary operation.
// Default is 3.
func WithMaxAttempts[T any](n int) ChainOption[T] {
	return func(c *Chain[T]) error {
		if n < 1 {
			return ErrInvalidAttempts
		}
		c.maxAttempts = n
		return nil
	}
}

// WithBackoff sets the base delay and cap for the exponential backoff
// between retries. Defaults are 200ms and 5s.
func WithBackoff[T any](base, cap time.Duration) ChainOption[T] {
	return func(c *Chain[T]) error {
		if base > 0 {
			c.baseDelay = base
		}
		if cap > 0 {
			c.maxDelay = cap
		}
		return nil
	}
}

// WithCache attaches a result cache. Run consults it before anything else
// and writes successful primary results back with the given TTL.
func WithCache[T any](results *cache.Cache[core.ID, T], ttl time.Duration) ChainOption[T] {
	return func(c *Chain[T]) error {
		c.results = results
		c.cacheTTL = ttl
		return nil
	}
}

// WithRetryable overrides the failure classifier. The default retries
// everything except context cancellation, rate-limit rejections, and an
// open circuit (which skips straight to the fallbacks).
func WithRetryable[T any](fn func(error) bool) ChainOption[T] {
	return func(c *Chain[T]) error {
		if fn != nil {
			c.retryable = fn
		}
		return nil
	}
}

// WithChainLogger sets a custom logger.
// Default is slog.Default().
func WithChainLogger[T any](logger *slog.Logger) ChainOption[T] {
	return func(c *Chain[T]) error {
		if logger == nil {
			logger = slog.Default()
		}
		c.logger = logger
		return nil
	}
}

// NewChain creates a chain guarding calls with the given breaker.
func NewChain[T any](b *breaker.Breaker, opts ...ChainOption[T]) (*Chain[T], error) {
	if b == nil {
		return nil, ErrBreakerRequired
	}

	c := &Chain[T]{
		breaker:     b,
		maxAttempts: defaultMaxAttempts,
		baseDelay:   defaultBaseDelay,
		maxDelay:    defaultMaxDelay,
		retryable:   DefaultRetryable,
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// DefaultRetryable treats failures as transient except for context
// cancellation, rate-limit rejections, and an open circuit. Timeouts are
// retryable: a per-call deadline expiring says nothing about the next
// attempt.
func DefaultRetryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, core.ErrCircuitOpen) {
		return false
	}
	if _, ok := core.AsRateLimitError(err); ok {
		return false
	}
	return true
}

// Run executes the chain. A non-empty cacheKey enables the cache
// short-circuit and write-back. Fallbacks are tried in order once the
// primary is exhausted; the first fallback maps to ModeDegraded and any
// later one to ModeMinimal. When everything fails, the primary's final
// error is returned with ModeMinimal.
func (c *Chain[T]) Run(ctx context.Context, cacheKey string, primary Operation[T], fallbacks ...Operation[T]) (T, core.ServiceMode, error) {
	var zero T
	if primary == nil {
		return zero, core.ModeMinimal, ErrPrimaryRequired
	}

	if c.results != nil && cacheKey != "" {
		if v, ok := c.results.Get(core.IDFromContent(cacheKey)); ok {
			c.logger.Debug("cache hit bypasses retry chain", "dependency", c.breaker.Name())
			return v, core.ModeFull, nil
		}
	}

	result, primaryErr := c.runPrimary(ctx, primary)
	if primaryErr == nil {
		if c.results != nil && cacheKey != "" {
			c.results.Set(core.IDFromContent(cacheKey), result, c.cacheTTL)
		}
		return result, core.ModeFull, nil
	}

	c.logger.Warn("primary exhausted, trying fallbacks",
		"dependency", c.breaker.Name(),
		"fallbacks", len(fallbacks),
		"err", primaryErr)

	for i, fallback := range fallbacks {
		if ctx.Err() != nil {
			break
		}
		v, err := fallback(ctx)
		if err != nil {
			c.logger.Warn("fallback failed", "dependency", c.breaker.Name(), "tier", i+1, "err", err)
			continue
		}
		mode := core.ModeDegraded
		if i > 0 {
			mode = core.ModeMinimal
		}
		return v, mode, nil
	}

	return zero, core.ModeMinimal, primaryErr
}

// runPrimary drives the breaker-wrapped primary through the bounded
// backoff loop.
func (c *Chain[T]) runPrimary(ctx context.Context, primary Operation[T]) (T, error) {
	var result T

	backoff := retry.WithMaxRetries(
		uint64(c.maxAttempts-1),
		retry.WithCappedDuration(c.maxDelay, retry.NewExponential(c.baseDelay)),
	)

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		v, err := breaker.Do(ctx, c.breaker, primary)
		if err != nil {
			if c.retryable(err) {
				return retry.RetryableError(err)
			}
			return err
		}
		result = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}
