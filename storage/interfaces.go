package storage

import (
	"context"
	"time"

	"github.com/poiesic/sibyl/core"
)

// Repository provides common storage operations shared across all repositories.
// Implementations must be thread-safe and support concurrent access.
type Repository interface {
	// WithTransaction executes a function within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	// Close closes the repository and releases resources.
	Close() error
}

// DocumentRepository provides operations for managing knowledge documents.
type DocumentRepository interface {
	Repository

	// AddDocuments adds one or more documents to storage.
	// Documents with Id=0 get a content-based ID (IDFromContent of Content),
	// so re-ingesting identical content overwrites rather than duplicates.
	// Sets InsertedAt and UpdatedAt timestamps.
	// Returns the documents with IDs and timestamps populated.
	AddDocuments(ctx context.Context, docs ...*core.Document) ([]*core.Document, error)

	// UpdateDocuments updates existing documents.
	// Updates the UpdatedAt timestamp automatically.
	// Returns ErrNotFound if any document doesn't exist.
	UpdateDocuments(ctx context.Context, docs ...*core.Document) ([]*core.Document, error)

	// DeleteDocuments removes documents by their IDs.
	// Also removes associated indices.
	// Returns ErrNotFound if any document doesn't exist.
	DeleteDocuments(ctx context.Context, ids ...core.ID) error

	// GetDocument retrieves a single document by ID.
	// Returns ErrNotFound if the document doesn't exist.
	GetDocument(ctx context.Context, id core.ID) (*core.Document, error)

	// GetDocuments retrieves multiple documents by their IDs.
	// Returns only the documents that exist (no error for missing documents).
	GetDocuments(ctx context.Context, ids ...core.ID) ([]*core.Document, error)

	// GetRecentDocuments retrieves the N most recently published documents,
	// ordered by publication timestamp descending.
	GetRecentDocuments(ctx context.Context, limit int) ([]*core.Document, error)

	// FindSimilar finds documents similar to the given vector.
	// Returns documents with similarity >= minSimilarity, up to limit
	// results, ordered by similarity score (highest first). When filters
	// is non-empty, only documents whose metadata matches every key/value
	// pair are considered; the reserved key "source" matches the Source
	// field instead.
	FindSimilar(ctx context.Context, vector []float32, minSimilarity float32, limit int, filters map[string]string) ([]core.ScoredDocument, error)

	// CountDocuments returns the number of stored documents.
	CountDocuments(ctx context.Context) (int, error)
}

// HistoryRepository provides operations for per-session conversation history.
type HistoryRepository interface {
	Repository

	// AppendEntries appends conversation turns to their sessions.
	// Generates IDs from sequence, sets Timestamp if zero, and sets
	// InsertedAt. Returns the entries with IDs and timestamps populated.
	AppendEntries(ctx context.Context, entries ...*core.HistoryEntry) ([]*core.HistoryEntry, error)

	// GetRecentEntries retrieves the N most recent turns of a session,
	// in chronological order (oldest first).
	GetRecentEntries(ctx context.Context, sessionId string, limit int) ([]*core.HistoryEntry, error)

	// GetEntriesByDateRange retrieves turns of a session within a time
	// range, where start <= Timestamp < end, ordered by timestamp.
	GetEntriesByDateRange(ctx context.Context, sessionId string, start, end time.Time) ([]*core.HistoryEntry, error)

	// DeleteSession removes all turns of a session.
	// Deleting an unknown session is not an error.
	DeleteSession(ctx context.Context, sessionId string) error
}
