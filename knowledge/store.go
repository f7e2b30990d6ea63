// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package knowledge

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/poiesic/sibyl/backend"
	"github.com/poiesic/sibyl/core"
	"github.com/poiesic/sibyl/storage"
)

const (
	defaultMinSimilarity = 0.3
	defaultSearchLimit   = 5
)

// Store runs semantic search over the document repository.
// Implements backend.VectorBackend.
type Store struct {
	documents     storage.DocumentRepository
	embedder      backend.Embedder
	minSimilarity float32
	logger        *slog.Logger
}

var _ backend.VectorBackend = (*Store)(nil)

// StoreOption configures a Store.
type StoreOption func(*Store) error

// WithMinSimilarity sets the similarity cutoff for search hits.
// Default is 0.3.
func WithMinSimilarity(min float32) StoreOption {
	return func(s *Store) error {
		s.minSimilarity = min
		return nil
	}
}

// WithStoreLogger sets a custom logger.
// Default is slog.Default().
func WithStoreLogger(logger *slog.Logger) StoreOption {
	return func(s *Store) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// NewStore creates a semantic search store over the document repository.
func NewStore(documents storage.DocumentRepository, embedder backend.Embedder, opts ...StoreOption) (*Store, error) {
	if documents == nil {
		return nil, ErrRepositoryRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	s := &Store{
		documents:     documents,
		embedder:      embedder,
		minSimilarity: defaultMinSimilarity,
		logger:        slog.Default().With("component", "knowledge"),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Search embeds the query and returns the k most similar documents.
func (s *Store) Search(ctx context.Context, query string, k int, filters map[string]string) ([]core.ScoredDocument, error) {
	if query == "" {
		return nil, fmt.Errorf("%w: %v", core.ErrVectorStore, core.ErrEmptyQuery)
	}
	if k < 1 {
		k = defaultSearchLimit
	}

	vector, err := s.embedder.EmbedText(ctx, query)
	if err != nil {
		s.logger.Error("query embedding failed", "err", err)
		return nil, fmt.Errorf("%w: embedding query: %v", core.ErrVectorStore, err)
	}

	hits, err := s.documents.FindSimilar(ctx, vector, s.minSimilarity, k, filters)
	if err != nil {
		s.logger.Error("similarity search failed", "err", err)
		return nil, fmt.Errorf("%w: %v", core.ErrVectorStore, err)
	}

	s.logger.Debug("semantic search completed", "query", query, "hits", len(hits))
	return hits, nil
}
