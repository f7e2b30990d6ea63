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

func setupTestStore(t *testing.T) (*Store, storage.DocumentRepository, *mock.MockEmbedder) {
	docRepo, historyRepo, backendDB, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() {
		historyRepo.Close()
		docRepo.Close()
		backendDB.Close()
	})

	embedder := mock.NewMockEmbedder()
	store, err := NewStore(docRepo, embedder)
	require.NoError(t, err)

	return store, docRepo, embedder
}

func TestNewStore(t *testing.T) {
	t.Run("missing repository", func(t *testing.T) {
		_, err := NewStore(nil, mock.NewMockEmbedder())
		assert.Equal(t, ErrRepositoryRequired, err)
	})

	t.Run("missing embedder", func(t *testing.T) {
		docRepo, historyRepo, backendDB, err := badger.NewMemoryRepositories()
		require.NoError(t, err)
		defer func() { historyRepo.Close(); docRepo.Close(); backendDB.Close() }()

		_, err = NewStore(docRepo, nil)
		assert.Equal(t, ErrEmbedderRequired, err)
	})
}

func TestStoreSearch(t *testing.T) {
	store, docRepo, _ := setupTestStore(t)
	ctx := context.Background()

	// Store a document whose vector matches its content hash, so searching
	// for the same text scores 1.0
	doc := &core.Document{
		Content: "goroutines are cheap",
		Source:  "go-blog",
		Vector:  mock.DeterministicVector("goroutines are cheap", 64),
	}
	_, err := docRepo.AddDocuments(ctx, doc)
	require.NoError(t, err)

	hits, err := store.Search(ctx, "goroutines are cheap", 5, nil)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "go-blog", hits[0].Document.Source)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-3)
}

func TestStoreSearchEmptyQuery(t *testing.T) {
	store, _, _ := setupTestStore(t)

	_, err := store.Search(context.Background(), "", 5, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrVectorStore)
}

func TestStoreSearchEmbedderFailure(t *testing.T) {
	store, _, embedder := setupTestStore(t)
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return nil, errors.New("model offline")
	}

	_, err := store.Search(context.Background(), "anything", 5, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrVectorStore)
}

func TestStoreSearchNoHits(t *testing.T) {
	store, _, _ := setupTestStore(t)

	hits, err := store.Search(context.Background(), "nothing stored yet", 5, nil)
	require.NoError(t, err)
	assert.Empty(t, hits)
}
