package mock

import (
	"context"
	"sync"
	"time"

	"github.com/poiesic/sibyl/core"
)

// MockVectorBackend is a test double for backend.VectorBackend.
// It allows custom behavior injection via function fields.
type MockVectorBackend struct {
	// SearchFunc is called by Search if set.
	// If nil, returns Documents truncated to k.
	SearchFunc func(ctx context.Context, query string, k int, filters map[string]string) ([]core.ScoredDocument, error)

	// Documents is the default fixture returned by Search.
	Documents []core.ScoredDocument

	mu        sync.Mutex
	callCount int
}

// NewMockVectorBackend creates a mock vector backend with an empty fixture.
func NewMockVectorBackend() *MockVectorBackend {
	return &MockVectorBackend{}
}

// Search returns the configured fixture, truncated to k.
func (m *MockVectorBackend) Search(ctx context.Context, query string, k int, filters map[string]string) ([]core.ScoredDocument, error) {
	m.mu.Lock()
	m.callCount++
	m.mu.Unlock()

	if m.SearchFunc != nil {
		return m.SearchFunc(ctx, query, k, filters)
	}

	docs := m.Documents
	if k > 0 && len(docs) > k {
		docs = docs[:k]
	}
	return docs, nil
}

// CallCount returns how many times Search was invoked.
func (m *MockVectorBackend) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// MockWebSearchBackend is a test double for backend.WebSearchBackend.
// It allows custom behavior injection via function fields.
type MockWebSearchBackend struct {
	// SearchFunc is called by Search if set.
	// If nil, returns Results truncated to maxResults.
	SearchFunc func(ctx context.Context, query string, maxResults int) ([]core.SearchResult, error)

	// Results is the default fixture returned by Search.
	Results []core.SearchResult

	mu        sync.Mutex
	callCount int
}

// NewMockWebSearchBackend creates a mock web-search backend with an empty
// fixture.
func NewMockWebSearchBackend() *MockWebSearchBackend {
	return &MockWebSearchBackend{}
}

// Search returns the configured fixture, truncated to maxResults.
func (m *MockWebSearchBackend) Search(ctx context.Context, query string, maxResults int) ([]core.SearchResult, error) {
	m.mu.Lock()
	m.callCount++
	m.mu.Unlock()

	if m.SearchFunc != nil {
		return m.SearchFunc(ctx, query, maxResults)
	}

	results := m.Results
	if maxResults > 0 && len(results) > maxResults {
		results = results[:maxResults]
	}
	return results, nil
}

// CallCount returns how many times Search was invoked.
func (m *MockWebSearchBackend) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// FixtureDocument builds a scored document for tests.
func FixtureDocument(content, source string, score float32, age time.Duration) core.ScoredDocument {
	now := time.Now()
	return core.ScoredDocument{
		Document: &core.Document{
			Id:          core.IDFromContent(content),
			Content:     content,
			Source:      source,
			PublishedAt: now.Add(-age),
			InsertedAt:  now,
		},
		Score: score,
	}
}

// FixtureSearchResult builds a web search result for tests.
func FixtureSearchResult(content, url string, score float32, age time.Duration) core.SearchResult {
	return core.SearchResult{
		Content:     content,
		URL:         url,
		Title:       url,
		Score:       score,
		PublishedAt: time.Now().Add(-age),
	}
}
