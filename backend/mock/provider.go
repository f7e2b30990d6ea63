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


package mock

import "github.com/poiesic/sibyl/backend"

// MockProvider is a test double for backend.Provider.
// It aggregates mock generator, analyzer, and embedder instances.
type MockProvider struct {
	generator *MockGenerator
	analyzer  *MockAnalyzer
	embedder  *MockEmbedder
}

// NewMockProvider creates a new mock provider with default mock services.
//
// Returns backend.Provider interface for consistency with production
// constructors. Use GetMockGenerator()/GetMockAnalyzer()/GetMockEmbedder()
// to access concrete types for test assertions.
func NewMockProvider() backend.Provider {
	return &MockProvider{
		generator: NewMockGenerator(),
		analyzer:  NewMockAnalyzer(),
		embedder:  NewMockEmbedder(),
	}
}

// NewMockProviderWithServices creates a mock provider with custom mock
// services. This allows full control over the behavior of each service.
func NewMockProviderWithServices(generator *MockGenerator, analyzer *MockAnalyzer, embedder *MockEmbedder) backend.Provider {
	return &MockProvider{
		generator: generator,
		analyzer:  analyzer,
		embedder:  embedder,
	}
}

// Generator returns the mock generator.
func (p *MockProvider) Generator() backend.GenerationBackend {
	return p.generator
}

// Analyzer returns the mock analyzer.
func (p *MockProvider) Analyzer() backend.QueryAnalyzer {
	return p.analyzer
}

// Embedder returns the mock embedder.
func (p *MockProvider) Embedder() backend.Embedder {
	return p.embedder
}

// Close is a no-op for mock provider.
func (p *MockProvider) Close() error {
	return nil
}

// GetMockGenerator returns the underlying mock generator for test assertions.
func (p *MockProvider) GetMockGenerator() *MockGenerator {
	return p.generator
}

// GetMockAnalyzer returns the underlying mock analyzer for test assertions.
func (p *MockProvider) GetMockAnalyzer() *MockAnalyzer {
	return p.analyzer
}

// GetMockEmbedder returns the underlying mock embedder for test assertions.
func (p *MockProvider) GetMockEmbedder() *MockEmbedder {
	return p.embedder
}
