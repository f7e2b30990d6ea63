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
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/poiesic/sibyl/backend"
	"github.com/poiesic/sibyl/core"
)

// Analyzer implements backend.QueryAnalyzer using OpenAI-compatible chat
// APIs with JSON-mode structured output.
type Analyzer struct {
	client llms.Model
	logger *slog.Logger
}

// analysis is the wrapper structure for the LLM's JSON response.
type analysis struct {
	Intent     string              `json:"intent"`
	Confidence float32             `json:"confidence"`
	Entities   map[string][]string `json:"entities"`
}

// newAnalyzer is an internal constructor that returns the concrete type.
// Used by Provider to manage the instance.
func newAnalyzer(config *backend.Config) (*Analyzer, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := openai.New(
		openai.WithBaseURL(config.GenerationHost),
		openai.WithToken(config.Token),
		openai.WithModel(config.AnalyzerModel),
	)
	if err != nil {
		return nil, err
	}

	return &Analyzer{
		client: client,
		logger: slog.Default().With("component", "openai-analyzer"),
	}, nil
}

// NewAnalyzer creates a new query analyzer using the provided configuration.
//
// Returns backend.QueryAnalyzer interface to enforce abstraction.
func NewAnalyzer(config *backend.Config) (backend.QueryAnalyzer, error) {
	return newAnalyzer(config)
}

// Analyze classifies the query's intent and extracts entities using an LLM.
// An intent outside the closed set is coerced to "general" with zero
// confidence so the router treats it as a low-confidence classification.
func (a *Analyzer) Analyze(ctx context.Context, query string) (*core.QueryAnalysis, error) {
	content := []llms.MessageContent{
		{
			Role: llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{
				llms.TextPart(buildAnalysisPrompt()),
			},
		},
		{
			Role: llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{
				llms.TextPart(query),
			},
		},
	}

	// Try up to 3 times in case of malformed JSON
	var result analysis
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		response, err := a.client.GenerateContent(ctx, content, llms.WithTemperature(0.0), llms.WithJSONMode())
		if err != nil {
			a.logger.Error("failed to generate analysis", "attempt", attempt+1, "err", err)
			return nil, err
		}

		if len(response.Choices) < 1 {
			a.logger.Debug("no choices returned from model")
			return nil, core.ErrGeneration
		}

		// Strip markdown code fences if present
		responseText := strings.TrimSpace(response.Choices[0].Content)
		responseText = strings.TrimPrefix(responseText, "```json")
		responseText = strings.TrimPrefix(responseText, "```")
		responseText = strings.TrimSuffix(responseText, "```")
		responseText = strings.TrimSpace(responseText)

		// Try to repair common JSON issues
		responseText = repairJSON(responseText)

		if err := json.Unmarshal([]byte(responseText), &result); err != nil {
			lastErr = err
			a.logger.Warn("error parsing analyzer response",
				"attempt", attempt+1,
				"response", responseText,
				"err", err)
			continue
		}

		lastErr = nil
		break
	}

	if lastErr != nil {
		a.logger.Error("failed to parse analyzer response after retries", "err", lastErr)
		return nil, lastErr
	}

	intent, known := core.ParseIntent(strings.TrimSpace(result.Intent))
	confidence := result.Confidence
	if !known {
		a.logger.Warn("analyzer returned unknown intent", "intent", result.Intent)
		intent = core.IntentGeneral
		confidence = 0
	}
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	entities := result.Entities
	if entities == nil {
		entities = map[string][]string{}
	}

	return &core.QueryAnalysis{
		Intent:     intent,
		Confidence: confidence,
		Entities:   entities,
	}, nil
}
