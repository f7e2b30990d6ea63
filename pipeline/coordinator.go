package pipeline

import (
	"context"
	"log/slog"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/sibyl/core"
)

// Source names used in retrieval error maps and metadata.
const (
	SourceVector = "vector"
	SourceWeb    = "web"
)

// DocsOp retrieves documents for a query, reporting the resilience tier
// that produced them.
type DocsOp func(ctx context.Context) ([]core.ScoredDocument, core.ServiceMode, error)

// ResultsOp retrieves web-search results for a query, reporting the
// resilience tier that produced them.
type ResultsOp func(ctx context.Context) ([]core.SearchResult, core.ServiceMode, error)

// Retrieval is the aggregate of a parallel retrieval round. Each branch
// contributes whatever it produced; a failed branch leaves its slice
// empty and records its error under its source name.
type Retrieval struct {
	Documents  []core.ScoredDocument
	WebResults []core.SearchResult
	Modes      map[string]core.ServiceMode
	Errors     map[string]error
}

// Coordinator runs the two retrieval branches concurrently and waits for
// both to reach a terminal state. A failure in one branch never cancels
// the other.
type Coordinator struct {
	pool   *ants.Pool
	logger *slog.Logger
}

// NewCoordinator creates a coordinator over the given worker pool.
func NewCoordinator(pool *ants.Pool, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{pool: pool, logger: logger}
}

// RetrieveBoth runs both operations against the same query and joins on
// both. The aggregate always carries every branch's outcome; RetrieveBoth
// itself never fails.
func (c *Coordinator) RetrieveBoth(ctx context.Context, vectorOp DocsOp, webOp ResultsOp) *Retrieval {
	agg := &Retrieval{
		Modes:  make(map[string]core.ServiceMode, 2),
		Errors: make(map[string]error, 2),
	}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)

	run := func(task func()) {
		wg.Add(1)
		wrapped := func() {
			defer wg.Done()
			task()
		}
		if err := c.pool.Submit(wrapped); err != nil {
			// Pool unavailable, run on the calling goroutine instead
			c.logger.Warn("pool submit failed, running branch inline", "err", err)
			wrapped()
		}
	}

	run(func() {
		docs, mode, err := vectorOp(ctx)
		mu.Lock()
		defer mu.Unlock()
		agg.Modes[SourceVector] = mode
		if err != nil {
			agg.Errors[SourceVector] = err
			return
		}
		agg.Documents = docs
	})

	run(func() {
		results, mode, err := webOp(ctx)
		mu.Lock()
		defer mu.Unlock()
		agg.Modes[SourceWeb] = mode
		if err != nil {
			agg.Errors[SourceWeb] = err
			return
		}
		agg.WebResults = results
	})

	wg.Wait()

	c.logger.Debug("parallel retrieval finished",
		"documents", len(agg.Documents),
		"web_results", len(agg.WebResults),
		"failed_branches", len(agg.Errors))
	return agg
}
