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


package backend

import (
	"errors"
	"strings"
)

// Configuration errors
var (
	// ErrEmptyHost indicates a service host URL is empty.
	ErrEmptyHost = errors.New("service host cannot be empty")

	// ErrEmptyModel indicates a model identifier is empty.
	ErrEmptyModel = errors.New("model identifier cannot be empty")
)

// Config holds configuration for backend service providers.
type Config struct {
	// GenerationHost is the base URL for the chat-completion API.
	// Example: "http://localhost:11434/v1" for a local OpenAI-compatible server
	GenerationHost string

	// EmbeddingHost is the base URL for the embedding API.
	EmbeddingHost string

	// GenerationModel is the model used for response generation.
	// Example: "qwen2.5:3b", "gpt-4o-mini"
	GenerationModel string

	// AnalyzerModel is the model used for query classification.
	// Defaults to GenerationModel when empty.
	AnalyzerModel string

	// EmbeddingModel is the model used for text embeddings.
	// Example: "embeddinggemma", "text-embedding-3-small"
	EmbeddingModel string

	// Token is the API token. Local OpenAI-compatible services that do
	// not require authentication accept any placeholder value.
	Token string
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithHost sets both generation and embedding hosts to the same URL.
func WithHost(host string) ConfigOption {
	return func(c *Config) {
		c.GenerationHost = host
		c.EmbeddingHost = host
	}
}

// WithGenerationHost sets the chat-completion service host URL.
func WithGenerationHost(host string) ConfigOption {
	return func(c *Config) {
		c.GenerationHost = host
	}
}

// WithEmbeddingHost sets the embedding service host URL.
func WithEmbeddingHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
	}
}

// WithGenerationModel sets the generation model identifier.
func WithGenerationModel(model string) ConfigOption {
	return func(c *Config) {
		c.GenerationModel = model
	}
}

// WithAnalyzerModel sets the query-classification model identifier.
func WithAnalyzerModel(model string) ConfigOption {
	return func(c *Config) {
		c.AnalyzerModel = model
	}
}

// WithEmbeddingModel sets the embedding model identifier.
func WithEmbeddingModel(model string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingModel = model
	}
}

// WithToken sets the API token.
func WithToken(token string) ConfigOption {
	return func(c *Config) {
		c.Token = token
	}
}

// DefaultConfig returns a Config with sensible defaults for local
// OpenAI-compatible services.
func DefaultConfig() *Config {
	defaultHost := "http://localhost:11434/v1"
	return &Config{
		GenerationHost:  defaultHost,
		EmbeddingHost:   defaultHost,
		GenerationModel: "qwen2.5:3b",
		EmbeddingModel:  "embeddinggemma",
		Token:           "none",
	}
}

// NewConfig creates a Config with the default values and applies the
// provided options.
//
// Example:
//
//	cfg := backend.NewConfig(
//	    backend.WithHost("http://localhost:11434/v1"),
//	    backend.WithGenerationModel("gpt-4o-mini"),
//	)
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Validate checks the configuration and normalizes host URLs.
func (c *Config) Validate() error {
	c.GenerationHost = strings.TrimSuffix(strings.TrimSpace(c.GenerationHost), "/")
	c.EmbeddingHost = strings.TrimSuffix(strings.TrimSpace(c.EmbeddingHost), "/")

	if c.GenerationHost == "" || c.EmbeddingHost == "" {
		return ErrEmptyHost
	}
	if c.GenerationModel == "" || c.EmbeddingModel == "" {
		return ErrEmptyModel
	}
	if c.AnalyzerModel == "" {
		c.AnalyzerModel = c.GenerationModel
	}
	if c.Token == "" {
		c.Token = "none"
	}
	return nil
}
