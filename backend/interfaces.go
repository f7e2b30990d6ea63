package backend

import (
	"context"

	"github.com/poiesic/sibyl/core"
)

// VectorBackend retrieves stored documents by semantic similarity.
// Implementations must be thread-safe for concurrent use.
type VectorBackend interface {
	// Search returns up to k documents relevant to the query, ordered by
	// similarity (highest first). Filters restrict matches by document
	// metadata; a nil or empty map applies no filtering.
	// Failures wrap core.ErrVectorStore.
	Search(ctx context.Context, query string, k int, filters map[string]string) ([]core.ScoredDocument, error)
}

// WebSearchBackend queries a live web-search API.
// Implementations must be thread-safe for concurrent use.
type WebSearchBackend interface {
	// Search returns up to maxResults hits for the query, ordered by the
	// provider's relevance score (highest first).
	// Failures wrap core.ErrSearchAPI.
	Search(ctx context.Context, query string, maxResults int) ([]core.SearchResult, error)
}

// StreamFunc receives incremental text chunks during streaming generation.
// Returning an error aborts the stream.
type StreamFunc func(chunk string) error

// GenerationBackend produces text from a conversation.
// Implementations must be thread-safe for concurrent use.
type GenerationBackend interface {
	// Generate returns the full completion for the given messages.
	// Failures wrap core.ErrGeneration.
	Generate(ctx context.Context, messages []core.Message) (string, error)

	// GenerateStream streams the completion incrementally through fn and
	// returns the accumulated text once the stream ends.
	// Failures wrap core.ErrGeneration.
	GenerateStream(ctx context.Context, messages []core.Message, fn StreamFunc) (string, error)
}

// QueryAnalyzer classifies a query's intent and extracts its entities.
// Implementations must be thread-safe for concurrent use.
type QueryAnalyzer interface {
	// Analyze returns the structured classification for the query.
	// Returns an error when the backing model cannot produce one; callers
	// are expected to fall back to a general classification rather than
	// failing their pipeline.
	Analyze(ctx context.Context, query string) (*core.QueryAnalysis, error)
}

// Embedder generates vector embeddings from text for semantic similarity
// search. Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates embeddings for multiple texts in a batch.
	// The returned slice preserves input order.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Provider aggregates backend services for convenient initialization and
// lifecycle management.
type Provider interface {
	// Generator returns the text-generation service.
	Generator() GenerationBackend

	// Analyzer returns the query-analysis service.
	Analyzer() QueryAnalyzer

	// Embedder returns the text-embedding service.
	Embedder() Embedder

	// Close releases resources held by the provider and its services.
	Close() error
}
