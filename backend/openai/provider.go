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


package openai

import (
	"log/slog"

	"github.com/poiesic/sibyl/backend"
)

// Provider implements backend.Provider using OpenAI-compatible services.
// It manages generator, analyzer, and embedder instances.
type Provider struct {
	config    *backend.Config
	generator *Generator
	analyzer  *Analyzer
	embedder  *Embedder
	logger    *slog.Logger
}

// NewProvider creates a new backend provider with OpenAI-compatible
// services. The config is validated and normalized before use.
//
// Returns backend.Provider interface (not *Provider) to enforce abstraction
// and prevent coupling to OpenAI-specific implementation details.
func NewProvider(config *backend.Config) (backend.Provider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	generator, err := newGenerator(config)
	if err != nil {
		return nil, err
	}

	analyzer, err := newAnalyzer(config)
	if err != nil {
		return nil, err
	}

	embedder, err := newEmbedder(config)
	if err != nil {
		return nil, err
	}

	return &Provider{
		config:    config,
		generator: generator,
		analyzer:  analyzer,
		embedder:  embedder,
		logger:    slog.Default().With("component", "openai-provider"),
	}, nil
}

// Generator returns the text-generation service.
func (p *Provider) Generator() backend.GenerationBackend {
	return p.generator
}

// Analyzer returns the query-analysis service.
func (p *Provider) Analyzer() backend.QueryAnalyzer {
	return p.analyzer
}

// Embedder returns the text-embedding service.
func (p *Provider) Embedder() backend.Embedder {
	return p.embedder
}

// Close releases resources held by the provider.
// Currently a no-op as the underlying clients don't require explicit cleanup.
func (p *Provider) Close() error {
	p.logger.Debug("closing OpenAI provider")
	return nil
}
