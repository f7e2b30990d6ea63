package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/sibyl/backend/mock"
	"github.com/poiesic/sibyl/breaker"
	"github.com/poiesic/sibyl/core"
	"github.com/poiesic/sibyl/ratelimit"
	"github.com/poiesic/sibyl/resilience"
	"github.com/poiesic/sibyl/storage/badger"
)

type testFixture struct {
	pipeline *Pipeline
	provider *mock.MockProvider
	vector   *mock.MockVectorBackend
	web      *mock.MockWebSearchBackend
	registry *resilience.Registry
}

func newTestFixture(t *testing.T, opts ...Option) *testFixture {
	limiter, err := ratelimit.New(600, 100000)
	require.NoError(t, err)
	registry, err := resilience.NewRegistry(limiter)
	require.NoError(t, err)
	return newTestFixtureWithRegistry(t, registry, opts...)
}

func newTestFixtureWithRegistry(t *testing.T, registry *resilience.Registry, opts ...Option) *testFixture {
	provider := mock.NewMockProvider().(*mock.MockProvider)
	vector := mock.NewMockVectorBackend()
	web := mock.NewMockWebSearchBackend()

	opts = append([]Option{WithCallTimeout(time.Second)}, opts...)
	p, err := New(provider, vector, web, registry, opts...)
	require.NoError(t, err)
	t.Cleanup(p.Release)

	return &testFixture{
		pipeline: p,
		provider: provider,
		vector:   vector,
		web:      web,
		registry: registry,
	}
}

func TestNew(t *testing.T) {
	limiter, err := ratelimit.New(600, 100000)
	require.NoError(t, err)
	registry, err := resilience.NewRegistry(limiter)
	require.NoError(t, err)

	t.Run("missing provider", func(t *testing.T) {
		_, err := New(nil, mock.NewMockVectorBackend(), mock.NewMockWebSearchBackend(), registry)
		assert.Equal(t, ErrProviderRequired, err)
	})

	t.Run("missing registry", func(t *testing.T) {
		_, err := New(mock.NewMockProvider(), mock.NewMockVectorBackend(), mock.NewMockWebSearchBackend(), nil)
		assert.Equal(t, ErrRegistryRequired, err)
	})

	t.Run("no retrieval backend", func(t *testing.T) {
		_, err := New(mock.NewMockProvider(), nil, nil, registry)
		assert.Equal(t, ErrNoRetrievalBackend, err)
	})
}

func TestInvokeHistoricalVectorOnly(t *testing.T) {
	f := newTestFixture(t)
	f.vector.Documents = []core.ScoredDocument{
		mock.FixtureDocument("the launch happened in 2019", "archive", 0.9, 24*time.Hour),
		mock.FixtureDocument("the follow-up shipped in 2020", "archive", 0.8, 24*time.Hour),
	}

	// "was" classifies as historical in the mock analyzer
	result, err := f.pipeline.Invoke(context.Background(), "When was the launch?", "sess-1")
	require.NoError(t, err)

	assert.Equal(t, core.ModeFull, result.Mode)
	assert.NotEmpty(t, result.Response)
	assert.NotContains(t, result.Response, "Note:")
	assert.Equal(t, "vector_only", result.Metadata["route"])
	assert.Equal(t, "historical", result.Metadata["intent"])
	assert.Equal(t, 2, result.Metadata["document_count"])
	assert.Equal(t, 0, f.web.CallCount(), "vector-only route must not touch web search")
}

func TestInvokeCurrentInfoWebCircuitOpen(t *testing.T) {
	limiter, err := ratelimit.New(600, 100000)
	require.NoError(t, err)
	registry, err := resilience.NewRegistry(limiter)
	require.NoError(t, err)

	// Trip the web-search breaker before the pipeline is built; the
	// registry shares it with the pipeline's web chain
	wb, err := registry.Breaker(DepWebSearch, breaker.WithFailureThreshold(1))
	require.NoError(t, err)
	_ = wb.Execute(context.Background(), func(ctx context.Context) error {
		return errors.New("api down")
	})
	require.Equal(t, breaker.Open, wb.State())

	f := newTestFixtureWithRegistry(t, registry)
	f.vector.Documents = []core.ScoredDocument{
		mock.FixtureDocument("supporting context", "archive", 0.9, time.Hour),
	}

	// "latest" classifies as current_info, which routes to both sources
	result, err := f.pipeline.Invoke(context.Background(), "what is the latest on the launch?", "sess-1")
	require.NoError(t, err)

	assert.Equal(t, core.ModeDegraded, result.Mode)
	assert.Equal(t, "both", result.Metadata["route"])
	assert.Contains(t, result.Response, "Note:")
	assert.Contains(t, result.Metadata["web_error"], "circuit")
	assert.Equal(t, 1, result.Metadata["document_count"])
	assert.Equal(t, 0, f.web.CallCount(), "open circuit must reject without invoking the backend")
}

func TestInvokeOffTopicDirect(t *testing.T) {
	f := newTestFixture(t)
	f.provider.GetMockAnalyzer().AnalyzeFunc = func(ctx context.Context, query string) (*core.QueryAnalysis, error) {
		return &core.QueryAnalysis{Intent: core.IntentOffTopic, Confidence: 0.95}, nil
	}

	result, err := f.pipeline.Invoke(context.Background(), "write me a poem about cheese", "sess-1")
	require.NoError(t, err)

	assert.Equal(t, core.ModeFull, result.Mode)
	assert.Equal(t, "direct", result.Metadata["route"])
	assert.Equal(t, 0, f.vector.CallCount())
	assert.Equal(t, 0, f.web.CallCount())
}

func TestInvokeAnalyzerFailureFallsBackToGeneral(t *testing.T) {
	f := newTestFixture(t)
	f.provider.GetMockAnalyzer().AnalyzeFunc = func(ctx context.Context, query string) (*core.QueryAnalysis, error) {
		return nil, errors.New("classifier offline")
	}

	result, err := f.pipeline.Invoke(context.Background(), "anything at all", "sess-1")
	require.NoError(t, err)

	assert.Equal(t, "general", result.Metadata["intent"])
	assert.Equal(t, "both", result.Metadata["route"])
	assert.Contains(t, result.Metadata["analysis_error"], "classifier offline")
	assert.NotEmpty(t, result.Response)
}

func TestInvokeGenerationFailureReturnsApology(t *testing.T) {
	f := newTestFixture(t)
	f.provider.GetMockGenerator().GenerateFunc = func(ctx context.Context, messages []core.Message) (string, error) {
		return "", errors.New("model exploded")
	}

	result, err := f.pipeline.Invoke(context.Background(), "when was the launch?", "sess-1")
	require.NoError(t, err, "generation failure must never surface as an error")

	assert.Equal(t, core.ModeMinimal, result.Mode)
	assert.Contains(t, result.Response, apologyMessage)
	assert.Contains(t, result.Metadata["generation_error"], "model exploded")
}

func TestInvokeBothBranchesFail(t *testing.T) {
	f := newTestFixture(t)
	f.vector.SearchFunc = func(ctx context.Context, query string, k int, filters map[string]string) ([]core.ScoredDocument, error) {
		return nil, core.ErrVectorStore
	}
	f.web.SearchFunc = func(ctx context.Context, query string, maxResults int) ([]core.SearchResult, error) {
		return nil, core.ErrSearchAPI
	}

	result, err := f.pipeline.Invoke(context.Background(), "what is the latest news?", "sess-1")
	require.NoError(t, err)

	// Generation still runs without context
	assert.Equal(t, core.ModeMinimal, result.Mode)
	assert.Contains(t, result.Response, "Note:")
	assert.NotEmpty(t, result.Metadata["vector_error"])
	assert.NotEmpty(t, result.Metadata["web_error"])
	assert.Equal(t, 0, result.Metadata["document_count"])
}

func TestInvokeRateLimit(t *testing.T) {
	limiter, err := ratelimit.New(2, 100000)
	require.NoError(t, err)
	registry, err := resilience.NewRegistry(limiter)
	require.NoError(t, err)
	f := newTestFixtureWithRegistry(t, registry)

	ctx := context.Background()
	_, err = f.pipeline.Invoke(ctx, "first", "sess-1")
	require.NoError(t, err)
	_, err = f.pipeline.Invoke(ctx, "second", "sess-1")
	require.NoError(t, err)

	_, err = f.pipeline.Invoke(ctx, "third", "sess-1")
	require.Error(t, err)
	rl, ok := core.AsRateLimitError(err)
	require.True(t, ok)
	assert.Greater(t, rl.RetryAfter, time.Duration(0))

	// Other clients are unaffected
	_, err = f.pipeline.Invoke(ctx, "hello", "sess-2")
	assert.NoError(t, err)
}

func TestInvokeEntryValidation(t *testing.T) {
	f := newTestFixture(t)
	ctx := context.Background()

	_, err := f.pipeline.Invoke(ctx, "   ", "sess-1")
	assert.ErrorIs(t, err, core.ErrEmptyQuery)

	_, err = f.pipeline.Invoke(ctx, "query", "")
	assert.ErrorIs(t, err, core.ErrEmptySessionId)
}

func TestInvokeGenerationCache(t *testing.T) {
	f := newTestFixture(t)

	ctx := context.Background()
	first, err := f.pipeline.Invoke(ctx, "when was the launch?", "sess-1")
	require.NoError(t, err)
	second, err := f.pipeline.Invoke(ctx, "when was the launch?", "sess-1")
	require.NoError(t, err)

	assert.Equal(t, first.Response, second.Response)
	assert.Equal(t, core.ModeFull, second.Mode)
	// Both retrieval and generation were served from cache the second time
	assert.Equal(t, 1, f.vector.CallCount())
	assert.Equal(t, 1, f.provider.GetMockGenerator().CallCount())
}

func TestStream(t *testing.T) {
	f := newTestFixture(t)

	var chunks []string
	result, err := f.pipeline.Stream(context.Background(), "when was the launch?", "sess-1", func(chunk string) error {
		chunks = append(chunks, chunk)
		return nil
	})
	require.NoError(t, err)

	require.NotEmpty(t, chunks)
	assert.Equal(t, result.Response, strings.Join(chunks, ""))
	assert.Equal(t, core.ModeFull, result.Mode)
}

func TestInvokeRecordsHistory(t *testing.T) {
	docRepo, historyRepo, backendDB, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() {
		historyRepo.Close()
		docRepo.Close()
		backendDB.Close()
	})

	f := newTestFixture(t, WithHistory(historyRepo, 4))

	_, err = f.pipeline.Invoke(context.Background(), "when was the launch?", "sess-1")
	require.NoError(t, err)

	entries, err := historyRepo.GetRecentEntries(context.Background(), "sess-1", 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, core.RoleUser, entries[0].Role)
	assert.Equal(t, "when was the launch?", entries[0].Contents)
	assert.Equal(t, core.RoleAssistant, entries[1].Role)
}
