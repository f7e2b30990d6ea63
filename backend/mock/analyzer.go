package mock

import (
	"context"
	"strings"
	"sync"

	"github.com/poiesic/sibyl/core"
)

// MockAnalyzer is a test double for backend.QueryAnalyzer.
// It allows custom behavior injection via function fields.
type MockAnalyzer struct {
	// AnalyzeFunc is called by Analyze if set.
	// If nil, uses default keyword-based classification.
	AnalyzeFunc func(ctx context.Context, query string) (*core.QueryAnalysis, error)

	mu        sync.Mutex
	callCount int
}

// NewMockAnalyzer creates a mock analyzer with default keyword-based behavior.
func NewMockAnalyzer() *MockAnalyzer {
	return &MockAnalyzer{}
}

// Analyze classifies by simple keyword matching. The defaults cover the
// routing table: "today"/"latest" map to current_info, "history"/"was" to
// historical, "will" to prediction, "how do i" to technical.
func (m *MockAnalyzer) Analyze(ctx context.Context, query string) (*core.QueryAnalysis, error) {
	m.mu.Lock()
	m.callCount++
	m.mu.Unlock()

	if m.AnalyzeFunc != nil {
		return m.AnalyzeFunc(ctx, query)
	}

	q := strings.ToLower(query)
	analysis := &core.QueryAnalysis{
		Intent:     core.IntentGeneral,
		Confidence: 0.9,
		Entities:   map[string][]string{},
	}
	switch {
	case strings.Contains(q, "today") || strings.Contains(q, "latest"):
		analysis.Intent = core.IntentCurrentInfo
	case strings.Contains(q, "history") || strings.Contains(q, "was"):
		analysis.Intent = core.IntentHistorical
	case strings.Contains(q, "will"):
		analysis.Intent = core.IntentPrediction
	case strings.Contains(q, "how do i"):
		analysis.Intent = core.IntentTechnical
	}
	return analysis, nil
}

// CallCount returns how many times the analyzer was invoked.
func (m *MockAnalyzer) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}
