package ratelimit

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/poiesic/sibyl/core"
)

// Package errors
var (
	// ErrInvalidCapacity indicates a window capacity below 1.
	ErrInvalidCapacity = errors.New("window capacity must be positive")

	// ErrCostExceedsCapacity indicates a single request cost larger than
	// a window's capacity. Such a request can never be admitted.
	ErrCostExceedsCapacity = errors.New("request cost exceeds window capacity")

	// ErrEmptyClientId indicates an empty client identifier.
	ErrEmptyClientId = errors.New("client id cannot be empty")
)

const (
	// Window names reported in RateLimitError.
	minuteWindow = "minute"
	hourWindow   = "hour"

	defaultStaleAfter = 15 * time.Minute
	pruneInterval     = time.Minute
)

// client holds the two token buckets for one client identity.
type client struct {
	minute   *rate.Limiter
	hour     *rate.Limiter
	lastSeen time.Time
}

// Limiter admits or rejects requests per client across two windows.
// A single mutex guards the client map; contention is negligible next to
// the network latency of the calls being gated.
type Limiter struct {
	mu         sync.Mutex
	clients    map[string]*client
	perMinute  int
	perHour    int
	staleAfter time.Duration
	lastPrune  time.Time
	now        func() time.Time
	logger     *slog.Logger
}

// Option configures a Limiter.
type Option func(*Limiter) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(l *Limiter) error {
		if logger == nil {
			logger = slog.Default()
		}
		l.logger = logger
		return nil
	}
}

// WithStaleAfter sets how long an idle client's buckets are retained.
// Default is 15 minutes.
func WithStaleAfter(d time.Duration) Option {
	return func(l *Limiter) error {
		if d > 0 {
			l.staleAfter = d
		}
		return nil
	}
}

// WithClock replaces the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) error {
		if now == nil {
			now = time.Now
		}
		l.now = now
		return nil
	}
}

// New creates a limiter admitting perMinute requests per minute and
// perHour requests per hour for each client.
func New(perMinute, perHour int, opts ...Option) (*Limiter, error) {
	if perMinute < 1 || perHour < 1 {
		return nil, ErrInvalidCapacity
	}

	l := &Limiter{
		clients:    make(map[string]*client),
		perMinute:  perMinute,
		perHour:    perHour,
		staleAfter: defaultStaleAfter,
		now:        time.Now,
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(l); err != nil {
			return nil, err
		}
	}

	l.lastPrune = l.now()
	return l, nil
}

// Check attempts to consume cost tokens from both of clientID's windows.
// Returns nil when admitted. Returns *core.RateLimitError naming the window
// that rejected and how long to wait; a rejection consumes no tokens.
func (l *Limiter) Check(clientID string, cost int) error {
	if clientID == "" {
		return ErrEmptyClientId
	}
	if cost < 1 {
		cost = 1
	}
	if cost > l.perMinute || cost > l.perHour {
		return ErrCostExceedsCapacity
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.maybePrune(now)

	c, ok := l.clients[clientID]
	if !ok {
		c = &client{
			minute: rate.NewLimiter(rate.Limit(float64(l.perMinute)/60.0), l.perMinute),
			hour:   rate.NewLimiter(rate.Limit(float64(l.perHour)/3600.0), l.perHour),
		}
		l.clients[clientID] = c
	}
	c.lastSeen = now

	minuteRes := c.minute.ReserveN(now, cost)
	if delay := minuteRes.DelayFrom(now); delay > 0 {
		minuteRes.CancelAt(now)
		l.logger.Debug("rate limit rejection", "client", clientID, "window", minuteWindow, "retryAfter", delay)
		return &core.RateLimitError{Window: minuteWindow, RetryAfter: ceilToSecond(delay)}
	}

	hourRes := c.hour.ReserveN(now, cost)
	if delay := hourRes.DelayFrom(now); delay > 0 {
		// Refund the minute tokens so a rejected call consumes nothing.
		hourRes.CancelAt(now)
		minuteRes.CancelAt(now)
		l.logger.Debug("rate limit rejection", "client", clientID, "window", hourWindow, "retryAfter", delay)
		return &core.RateLimitError{Window: hourWindow, RetryAfter: ceilToSecond(delay)}
	}

	return nil
}

// ClientCount returns the number of clients with live buckets.
func (l *Limiter) ClientCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

// maybePrune drops buckets for clients idle past the staleness threshold.
// Called with the mutex held.
func (l *Limiter) maybePrune(now time.Time) {
	if now.Sub(l.lastPrune) < pruneInterval {
		return
	}
	l.lastPrune = now
	for id, c := range l.clients {
		if now.Sub(c.lastSeen) >= l.staleAfter {
			delete(l.clients, id)
		}
	}
}

// ceilToSecond rounds a wait up to the next whole second so callers never
// retry early.
func ceilToSecond(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	rounded := d.Truncate(time.Second)
	if rounded < d {
		rounded += time.Second
	}
	return rounded
}
