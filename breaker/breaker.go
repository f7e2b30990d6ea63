package breaker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/poiesic/sibyl/core"
)

// Package errors
var (
	// ErrEmptyName indicates the breaker was created without a dependency name.
	ErrEmptyName = errors.New("breaker name cannot be empty")

	// ErrInvalidThreshold indicates a non-positive failure or success threshold.
	ErrInvalidThreshold = errors.New("breaker thresholds must be positive")

	// ErrInvalidTimeout indicates a non-positive recovery timeout.
	ErrInvalidTimeout = errors.New("breaker recovery timeout must be positive")
)

// State is the breaker's position in its lifecycle.
type State int

const (
	// Closed passes calls through while counting failures.
	Closed State = iota
	// Open rejects calls without invoking them.
	Open
	// HalfOpen admits a limited trial after the recovery timeout.
	HalfOpen
)

// String returns the conventional lowercase state name.
func (s State) String() string {
	switch s {
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

const (
	defaultFailureThreshold = 5
	defaultSuccessThreshold = 2
	defaultRecoveryTimeout  = 30 * time.Second
)

// Breaker tracks the health of one downstream dependency.
// All methods are safe for concurrent use.
type Breaker struct {
	name             string
	failureThreshold int
	successThreshold int
	recoveryTimeout  time.Duration

	mu          sync.Mutex
	state       State
	failures    int
	successes   int // meaningful only in HalfOpen
	lastFailure time.Time

	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Breaker.
type Option func(*Breaker) error

// WithFailureThreshold sets how many consecutive failures open the circuit.
// Default is 5.
func WithFailureThreshold(n int) Option {
	return func(b *Breaker) error {
		if n < 1 {
			return ErrInvalidThreshold
		}
		b.failureThreshold = n
		return nil
	}
}

// WithSuccessThreshold sets how many consecutive half-open successes close
// the circuit. Default is 2.
func WithSuccessThreshold(n int) Option {
	return func(b *Breaker) error {
		if n < 1 {
			return ErrInvalidThreshold
		}
		b.successThreshold = n
		return nil
	}
}

// WithRecoveryTimeout sets how long the circuit stays open before admitting
// a half-open trial. Default is 30 seconds.
func WithRecoveryTimeout(d time.Duration) Option {
	return func(b *Breaker) error {
		if d <= 0 {
			return ErrInvalidTimeout
		}
		b.recoveryTimeout = d
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(b *Breaker) error {
		if logger == nil {
			logger = slog.Default()
		}
		b.logger = logger
		return nil
	}
}

// WithClock replaces the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(b *Breaker) error {
		if now == nil {
			now = time.Now
		}
		b.now = now
		return nil
	}
}

// New creates a breaker for the named dependency.
func New(name string, opts ...Option) (*Breaker, error) {
	if name == "" {
		return nil, ErrEmptyName
	}

	b := &Breaker{
		name:             name,
		failureThreshold: defaultFailureThreshold,
		successThreshold: defaultSuccessThreshold,
		recoveryTimeout:  defaultRecoveryTimeout,
		state:            Closed,
		now:              time.Now,
		logger:           slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(b); err != nil {
			return nil, err
		}
	}

	b.logger = b.logger.With("breaker", name)
	return b, nil
}

// Name returns the dependency name the breaker guards.
func (b *Breaker) Name() string {
	return b.name
}

// State returns the breaker's current state, accounting for an elapsed
// recovery timeout (an Open breaker past the timeout reports HalfOpen).
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == Open && b.now().Sub(b.lastFailure) >= b.recoveryTimeout {
		return HalfOpen
	}
	return b.state
}

// Execute runs fn through the breaker. When the circuit is open the call
// is rejected with a wrapped core.ErrCircuitOpen and fn is never invoked.
// A context cancellation before fn runs is reported as-is and not counted
// against the dependency.
func (b *Breaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if err := b.allow(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	err := fn(ctx)
	b.record(err)
	return err
}

// allow decides whether a call may proceed, transitioning Open to HalfOpen
// once the recovery timeout has elapsed.
func (b *Breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != Open {
		return nil
	}
	if b.now().Sub(b.lastFailure) < b.recoveryTimeout {
		return fmt.Errorf("%w: %s", core.ErrCircuitOpen, b.name)
	}

	b.state = HalfOpen
	b.successes = 0
	b.logger.Info("circuit half-open, admitting trial call")
	return nil
}

// record folds a call outcome into the state machine.
func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		b.onSuccess()
	} else {
		b.onFailure()
	}
}

func (b *Breaker) onSuccess() {
	switch b.state {
	case Closed:
		if b.failures > 0 {
			b.failures--
		}
	case HalfOpen:
		b.successes++
		if b.successes >= b.successThreshold {
			b.state = Closed
			b.failures = 0
			b.successes = 0
			b.logger.Info("circuit closed after successful trial")
		}
	}
}

func (b *Breaker) onFailure() {
	b.lastFailure = b.now()

	switch b.state {
	case Closed:
		b.failures++
		if b.failures >= b.failureThreshold {
			b.state = Open
			b.logger.Warn("circuit opened", "failures", b.failures)
		}
	case HalfOpen:
		// A single trial failure reopens the circuit.
		b.state = Open
		b.successes = 0
		b.logger.Warn("circuit reopened after failed trial")
	}
}

// Do runs fn through the breaker and returns its value.
// The zero value of T is returned when the circuit rejects the call.
func Do[T any](ctx context.Context, b *Breaker, fn func(context.Context) (T, error)) (T, error) {
	var result T
	err := b.Execute(ctx, func(ctx context.Context) error {
		var innerErr error
		result, innerErr = fn(ctx)
		return innerErr
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}
