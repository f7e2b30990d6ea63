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
	"fmt"
	"log/slog"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/poiesic/sibyl/backend"
	"github.com/poiesic/sibyl/core"
)

// Generator implements backend.GenerationBackend using OpenAI-compatible
// chat-completion APIs.
type Generator struct {
	client llms.Model
	logger *slog.Logger
}

// newGenerator is an internal constructor that returns the concrete type.
// Used by Provider to manage the instance.
func newGenerator(config *backend.Config) (*Generator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := openai.New(
		openai.WithBaseURL(config.GenerationHost),
		openai.WithToken(config.Token),
		openai.WithModel(config.GenerationModel),
	)
	if err != nil {
		return nil, err
	}

	return &Generator{
		client: client,
		logger: slog.Default().With("component", "openai-generator"),
	}, nil
}

// NewGenerator creates a new generation backend using the provided
// configuration.
//
// Returns backend.GenerationBackend interface to enforce abstraction.
func NewGenerator(config *backend.Config) (backend.GenerationBackend, error) {
	return newGenerator(config)
}

// Generate returns the full completion for the given messages.
func (g *Generator) Generate(ctx context.Context, messages []core.Message) (string, error) {
	g.logger.Debug("generating response", "messages", len(messages))

	response, err := g.client.GenerateContent(ctx, toMessageContent(messages))
	if err != nil {
		g.logger.Error("generation failed", "err", err)
		return "", fmt.Errorf("%w: %v", core.ErrGeneration, err)
	}
	if len(response.Choices) < 1 {
		return "", fmt.Errorf("%w: model returned no choices", core.ErrGeneration)
	}

	return response.Choices[0].Content, nil
}

// GenerateStream streams the completion through fn and returns the
// accumulated text.
func (g *Generator) GenerateStream(ctx context.Context, messages []core.Message, fn backend.StreamFunc) (string, error) {
	g.logger.Debug("generating streaming response", "messages", len(messages))

	var sb strings.Builder
	response, err := g.client.GenerateContent(ctx, toMessageContent(messages),
		llms.WithStreamingFunc(func(_ context.Context, chunk []byte) error {
			if len(chunk) == 0 {
				return nil
			}
			sb.Write(chunk)
			return fn(string(chunk))
		}),
	)
	if err != nil {
		g.logger.Error("streaming generation failed", "err", err)
		return "", fmt.Errorf("%w: %v", core.ErrGeneration, err)
	}

	if sb.Len() > 0 {
		return sb.String(), nil
	}
	// Some OpenAI-compatible servers ignore the stream option and return
	// the whole completion at once.
	if len(response.Choices) > 0 {
		return response.Choices[0].Content, nil
	}
	return "", fmt.Errorf("%w: model returned no choices", core.ErrGeneration)
}

// toMessageContent converts conversation messages to the langchaingo
// wire representation.
func toMessageContent(messages []core.Message) []llms.MessageContent {
	content := make([]llms.MessageContent, 0, len(messages))
	for _, m := range messages {
		var role llms.ChatMessageType
		switch m.Role {
		case core.RoleSystem:
			role = llms.ChatMessageTypeSystem
		case core.RoleAssistant:
			role = llms.ChatMessageTypeAI
		default:
			role = llms.ChatMessageTypeHuman
		}
		content = append(content, llms.MessageContent{
			Role:  role,
			Parts: []llms.ContentPart{llms.TextPart(m.Content)},
		})
	}
	return content
}
