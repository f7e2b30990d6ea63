package knowledge

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/sibyl/backend/mock"
	"github.com/poiesic/sibyl/core"
	"github.com/poiesic/sibyl/storage"
	"github.com/poiesic/sibyl/storage/badger"
)

func setupTestIngestor(t *testing.T, embedder *mock.MockEmbedder, opts ...IngestOption) (*Ingestor, storage.DocumentRepository) {
	docRepo, historyRepo, backendDB, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() {
		historyRepo.Close()
		docRepo.Close()
		backendDB.Close()
	})

	ing, err := NewIngestor(docRepo, embedder, opts...)
	require.NoError(t, err)
	t.Cleanup(ing.Release)

	return ing, docRepo
}

func TestIngest(t *testing.T) {
	ing, docRepo := setupTestIngestor(t, mock.NewMockEmbedder())
	ctx := context.Background()

	docs := []*core.Document{
		{Content: "channels synchronize goroutines", Source: "go-tour"},
		{Content: "defer runs at function exit", Source: "go-tour"},
		{Content: "interfaces are satisfied implicitly", Source: "go-spec"},
	}

	require.NoError(t, ing.Ingest(ctx, docs...))

	count, err := docRepo.CountDocuments(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	// Vectors were populated before storage
	stored, err := docRepo.GetDocument(ctx, core.IDFromContent("defer runs at function exit"))
	require.NoError(t, err)
	assert.NotEmpty(t, stored.Vector)
}

func TestIngestBatching(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	ing, docRepo := setupTestIngestor(t, embedder, WithBatchSize(2), WithPoolSize(2))
	ctx := context.Background()

	docs := []*core.Document{
		{Content: "doc one"},
		{Content: "doc two"},
		{Content: "doc three"},
		{Content: "doc four"},
		{Content: "doc five"},
	}

	require.NoError(t, ing.Ingest(ctx, docs...))

	count, err := docRepo.CountDocuments(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, count)
	// 5 documents in batches of 2 means 3 embedding calls
	assert.Equal(t, 3, embedder.CallCount())
}

func TestIngestValidation(t *testing.T) {
	ing, docRepo := setupTestIngestor(t, mock.NewMockEmbedder())
	ctx := context.Background()

	err := ing.Ingest(ctx, &core.Document{Content: ""})
	assert.ErrorIs(t, err, core.ErrEmptyContent)

	err = ing.Ingest(ctx)
	assert.Equal(t, ErrNoDocuments, err)

	count, err := docRepo.CountDocuments(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestIngestEmbedderFailure(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return nil, errors.New("model offline")
	}
	ing, docRepo := setupTestIngestor(t, embedder)
	ctx := context.Background()

	err := ing.Ingest(ctx, &core.Document{Content: "will not make it"})
	require.Error(t, err)

	// Failed batches are not stored
	count, err := docRepo.CountDocuments(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}
