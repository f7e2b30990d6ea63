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


// Package sibyl assembles the retrieval pipeline: storage, backends,
// resilience registry, and orchestrator, behind one Service facade.
package sibyl

import (
	"context"
	"log/slog"

	"github.com/poiesic/sibyl/backend"
	"github.com/poiesic/sibyl/backend/openai"
	"github.com/poiesic/sibyl/backend/tavily"
	"github.com/poiesic/sibyl/knowledge"
	"github.com/poiesic/sibyl/pipeline"
	"github.com/poiesic/sibyl/ratelimit"
	"github.com/poiesic/sibyl/resilience"
	"github.com/poiesic/sibyl/storage"
	"github.com/poiesic/sibyl/storage/badger"
)

const (
	defaultPerMinute    = 60
	defaultPerHour      = 1000
	defaultHistoryTurns = 6
)

// Service is the assembled retrieval pipeline over a local document
// store, an optional web-search backend, and an OpenAI-compatible
// provider.
type Service struct {
	db          *badger.Backend
	docRepo     storage.DocumentRepository
	historyRepo storage.HistoryRepository
	provider    backend.Provider
	registry    *resilience.Registry
	pipe        *pipeline.Pipeline
	store       *knowledge.Store
	logger      *slog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*serviceOptions)

type serviceOptions struct {
	backendConfig *backend.Config
	tavilyAPIKey  string
	perMinute     int
	perHour       int
	inMemory      bool
	pipelineOpts  []pipeline.Option
}

// WithBackendConfig sets the provider configuration (hosts, models,
// token). Default is backend.DefaultConfig().
func WithBackendConfig(cfg *backend.Config) ServiceOption {
	return func(o *serviceOptions) {
		if cfg != nil {
			o.backendConfig = cfg
		}
	}
}

// WithTavilyAPIKey enables the web-search backend. Without a key the
// pipeline runs vector-only and downgrades routes that want web search.
func WithTavilyAPIKey(key string) ServiceOption {
	return func(o *serviceOptions) {
		o.tavilyAPIKey = key
	}
}

// WithRateLimits sets the per-client request budgets.
// Defaults are 60/minute and 1000/hour.
func WithRateLimits(perMinute, perHour int) ServiceOption {
	return func(o *serviceOptions) {
		if perMinute > 0 {
			o.perMinute = perMinute
		}
		if perHour > 0 {
			o.perHour = perHour
		}
	}
}

// WithInMemory uses an in-memory document store. Intended for tests.
func WithInMemory() ServiceOption {
	return func(o *serviceOptions) {
		o.inMemory = true
	}
}

// WithPipelineOptions forwards options to the pipeline constructor.
func WithPipelineOptions(opts ...pipeline.Option) ServiceOption {
	return func(o *serviceOptions) {
		o.pipelineOpts = append(o.pipelineOpts, opts...)
	}
}

// NewService opens the document store at filePath and wires the full
// pipeline around it.
func NewService(filePath string, opts ...ServiceOption) (*Service, error) {
	options := &serviceOptions{
		backendConfig: backend.DefaultConfig(),
		perMinute:     defaultPerMinute,
		perHour:       defaultPerHour,
	}
	for _, opt := range opts {
		opt(options)
	}

	db, err := badger.OpenBackend(filePath, options.inMemory)
	if err != nil {
		return nil, err
	}

	docRepo, err := badger.NewDocumentRepository(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	historyRepo, err := badger.NewHistoryRepository(db)
	if err != nil {
		docRepo.Close()
		db.Close()
		return nil, err
	}

	provider, err := openai.NewProvider(options.backendConfig)
	if err != nil {
		historyRepo.Close()
		docRepo.Close()
		db.Close()
		return nil, err
	}

	return newServiceWith(db, docRepo, historyRepo, provider, options)
}

// newServiceWith finishes assembly over already-opened collaborators.
func newServiceWith(db *badger.Backend, docRepo storage.DocumentRepository, historyRepo storage.HistoryRepository, provider backend.Provider, options *serviceOptions) (*Service, error) {
	closeAll := func() {
		provider.Close()
		historyRepo.Close()
		docRepo.Close()
		db.Close()
	}

	store, err := knowledge.NewStore(docRepo, provider.Embedder())
	if err != nil {
		closeAll()
		return nil, err
	}

	var web backend.WebSearchBackend
	if options.tavilyAPIKey != "" {
		client, err := tavily.New(options.tavilyAPIKey)
		if err != nil {
			closeAll()
			return nil, err
		}
		web = client
	}

	limiter, err := ratelimit.New(options.perMinute, options.perHour)
	if err != nil {
		closeAll()
		return nil, err
	}

	registry, err := resilience.NewRegistry(limiter)
	if err != nil {
		closeAll()
		return nil, err
	}

	pipelineOpts := append([]pipeline.Option{
		pipeline.WithHistory(historyRepo, defaultHistoryTurns),
	}, options.pipelineOpts...)

	pipe, err := pipeline.New(provider, store, web, registry, pipelineOpts...)
	if err != nil {
		closeAll()
		return nil, err
	}

	return &Service{
		db:          db,
		docRepo:     docRepo,
		historyRepo: historyRepo,
		provider:    provider,
		registry:    registry,
		pipe:        pipe,
		store:       store,
		logger:      slog.Default(),
	}, nil
}

// Ask runs the pipeline for one query and returns the full response.
func (s *Service) Ask(ctx context.Context, query, sessionId string) (*pipeline.Result, error) {
	return s.pipe.Invoke(ctx, query, sessionId)
}

// Stream runs the pipeline, delivering the response incrementally
// through fn.
func (s *Service) Stream(ctx context.Context, query, sessionId string, fn backend.StreamFunc) (*pipeline.Result, error) {
	return s.pipe.Stream(ctx, query, sessionId, fn)
}

// NewIngestor creates a bulk document ingestor over the service's store.
func (s *Service) NewIngestor(opts ...knowledge.IngestOption) (*knowledge.Ingestor, error) {
	return knowledge.NewIngestor(s.docRepo, s.provider.Embedder(), opts...)
}

// DocumentRepository exposes the underlying document store.
func (s *Service) DocumentRepository() storage.DocumentRepository {
	return s.docRepo
}

// HistoryRepository exposes the underlying conversation history store.
func (s *Service) HistoryRepository() storage.HistoryRepository {
	return s.historyRepo
}

// Registry exposes the resilience registry for inspection.
func (s *Service) Registry() *resilience.Registry {
	return s.registry
}

// Close releases the pipeline, provider, repositories, and store.
func (s *Service) Close() error {
	s.pipe.Release()

	if err := s.provider.Close(); err != nil {
		s.logger.Error("error closing backend provider", "err", err)
	}

	if err := s.historyRepo.Close(); err != nil {
		s.logger.Error("error closing history repository", "err", err)
		return err
	}
	if err := s.docRepo.Close(); err != nil {
		s.logger.Error("error closing document repository", "err", err)
		return err
	}
	if err := s.db.Close(); err != nil {
		s.logger.Error("error closing storage backend", "err", err)
		return err
	}
	return nil
}
