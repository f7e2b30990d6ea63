package mock

import (
	"context"
	"sync"

	"github.com/poiesic/sibyl/backend"
	"github.com/poiesic/sibyl/core"
)

// MockGenerator is a test double for backend.GenerationBackend.
// It allows custom behavior injection via function fields.
type MockGenerator struct {
	// GenerateFunc is called by Generate if set.
	// If nil, returns a canned completion.
	GenerateFunc func(ctx context.Context, messages []core.Message) (string, error)

	// GenerateStreamFunc is called by GenerateStream if set.
	// If nil, streams the canned completion in one chunk.
	GenerateStreamFunc func(ctx context.Context, messages []core.Message, fn backend.StreamFunc) (string, error)

	mu        sync.Mutex
	callCount int
}

const cannedCompletion = "This is a mock completion."

// NewMockGenerator creates a mock generator returning a canned completion.
func NewMockGenerator() *MockGenerator {
	return &MockGenerator{}
}

// Generate returns the canned completion.
func (m *MockGenerator) Generate(ctx context.Context, messages []core.Message) (string, error) {
	m.recordCall()

	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, messages)
	}
	return cannedCompletion, nil
}

// GenerateStream streams the canned completion as a single chunk.
func (m *MockGenerator) GenerateStream(ctx context.Context, messages []core.Message, fn backend.StreamFunc) (string, error) {
	m.recordCall()

	if m.GenerateStreamFunc != nil {
		return m.GenerateStreamFunc(ctx, messages, fn)
	}

	text := cannedCompletion
	if m.GenerateFunc != nil {
		var err error
		text, err = m.GenerateFunc(ctx, messages)
		if err != nil {
			return "", err
		}
	}
	if err := fn(text); err != nil {
		return "", err
	}
	return text, nil
}

// CallCount returns how many times the generator was invoked.
func (m *MockGenerator) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

func (m *MockGenerator) recordCall() {
	m.mu.Lock()
	m.callCount++
	m.mu.Unlock()
}
