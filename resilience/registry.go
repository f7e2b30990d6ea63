package resilience

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/poiesic/sibyl/breaker"
	"github.com/poiesic/sibyl/ratelimit"
)

// ErrLimiterRequired indicates a registry was created without a limiter.
var ErrLimiterRequired = errors.New("rate limiter is required")

// Registry is the single holder of cross-invocation resilience state:
// one circuit breaker per downstream dependency and the shared per-client
// rate limiter. It is constructed once at process start and injected
// wherever that state is needed.
type Registry struct {
	mu       sync.Mutex
	breakers map[string]*breaker.Breaker
	limiter  *ratelimit.Limiter
	logger   *slog.Logger
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry) error

// WithRegistryLogger sets a custom logger.
// Default is slog.Default().
func WithRegistryLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger
		return nil
	}
}

// NewRegistry creates a registry sharing the given rate limiter.
func NewRegistry(limiter *ratelimit.Limiter, opts ...RegistryOption) (*Registry, error) {
	if limiter == nil {
		return nil, ErrLimiterRequired
	}

	r := &Registry{
		breakers: make(map[string]*breaker.Breaker),
		limiter:  limiter,
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}

	return r, nil
}

// Breaker returns the breaker registered for the named dependency,
// creating it with the given options on first use. Subsequent calls for
// the same name return the shared instance; their options are ignored.
func (r *Registry) Breaker(name string, opts ...breaker.Option) (*breaker.Breaker, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if b, ok := r.breakers[name]; ok {
		return b, nil
	}

	b, err := breaker.New(name, opts...)
	if err != nil {
		return nil, err
	}
	r.breakers[name] = b
	r.logger.Debug("registered circuit breaker", "dependency", name)
	return b, nil
}

// Limiter returns the shared per-client rate limiter.
func (r *Registry) Limiter() *ratelimit.Limiter {
	return r.limiter
}
