package knowledge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/sibyl/backend"
	"github.com/poiesic/sibyl/core"
	"github.com/poiesic/sibyl/storage"
)

const defaultBatchSize = 32

// Ingestor bulk-loads documents into the knowledge store.
// Documents are embedded batch by batch over a worker pool, then written
// to the repository with their vectors populated.
type Ingestor struct {
	documents storage.DocumentRepository
	embedder  backend.Embedder
	pool      *ants.Pool
	batchSize int
	logger    *slog.Logger
}

// IngestOption configures an Ingestor.
type IngestOption func(*Ingestor) error

// WithPoolSize sets the worker pool size for concurrent embedding.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) IngestOption {
	return func(ing *Ingestor) error {
		if size < 1 {
			size = 1
		}

		if ing.pool != nil {
			ing.pool.Release()
		}

		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		ing.pool = pool
		return nil
	}
}

// WithBatchSize sets how many documents are embedded per pool task.
// Default is 32.
func WithBatchSize(size int) IngestOption {
	return func(ing *Ingestor) error {
		if size < 1 {
			size = 1
		}
		ing.batchSize = size
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) IngestOption {
	return func(ing *Ingestor) error {
		if logger == nil {
			logger = slog.Default()
		}
		ing.logger = logger
		return nil
	}
}

// NewIngestor creates a new document ingestor.
func NewIngestor(documents storage.DocumentRepository, embedder backend.Embedder, opts ...IngestOption) (*Ingestor, error) {
	if documents == nil {
		return nil, ErrRepositoryRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}

	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	ing := &Ingestor{
		documents: documents,
		embedder:  embedder,
		pool:      pool,
		batchSize: defaultBatchSize,
		logger:    slog.Default().With("component", "ingestor"),
	}

	for _, opt := range opts {
		if optErr := opt(ing); optErr != nil {
			ing.Release()
			return nil, optErr
		}
	}

	return ing, nil
}

// Ingest validates, embeds, and stores the documents.
// Batches are processed concurrently; the call returns after every batch
// has finished, with the errors of failed batches joined. Documents from
// failed batches are not stored.
func (ing *Ingestor) Ingest(ctx context.Context, docs ...*core.Document) error {
	if len(docs) == 0 {
		return ErrNoDocuments
	}

	for _, doc := range docs {
		if err := doc.Validate(); err != nil {
			return err
		}
	}

	ing.logger.Info("ingesting documents", "documents", len(docs), "batch_size", ing.batchSize)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)

	for start := 0; start < len(docs); start += ing.batchSize {
		end := start + ing.batchSize
		if end > len(docs) {
			end = len(docs)
		}
		batch := docs[start:end]

		wg.Add(1)
		submitErr := ing.pool.Submit(func() {
			defer wg.Done()
			if err := ing.ingestBatch(ctx, batch); err != nil {
				ing.logger.Error("batch ingestion failed", "documents", len(batch), "err", err)
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		})
		if submitErr != nil {
			wg.Done()
			mu.Lock()
			errs = append(errs, submitErr)
			mu.Unlock()
		}
	}

	wg.Wait()
	return errors.Join(errs...)
}

// ingestBatch embeds one batch and writes it to the repository.
func (ing *Ingestor) ingestBatch(ctx context.Context, batch []*core.Document) error {
	texts := make([]string, len(batch))
	for i, doc := range batch {
		texts[i] = doc.Content
	}

	embeddings, err := ing.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return fmt.Errorf("embedding batch: %w", err)
	}
	if len(embeddings) != len(batch) {
		return fmt.Errorf("embedding result mismatch. expected %d, received %d", len(batch), len(embeddings))
	}

	for i := range embeddings {
		batch[i].Vector = embeddings[i]
	}

	if _, err := ing.documents.AddDocuments(ctx, batch...); err != nil {
		return fmt.Errorf("storing batch: %w", err)
	}
	return nil
}

// Release releases the worker pool.
// The ingestor should not be used after calling Release.
func (ing *Ingestor) Release() {
	if ing.pool != nil {
		ing.pool.Release()
	}
}
