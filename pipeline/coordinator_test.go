package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/sibyl/backend/mock"
	"github.com/poiesic/sibyl/core"
)

func newTestCoordinator(t *testing.T) *Coordinator {
	pool, err := ants.NewPool(4)
	require.NoError(t, err)
	t.Cleanup(pool.Release)
	return NewCoordinator(pool, nil)
}

func TestRetrieveBoth(t *testing.T) {
	c := newTestCoordinator(t)

	agg := c.RetrieveBoth(context.Background(),
		func(ctx context.Context) ([]core.ScoredDocument, core.ServiceMode, error) {
			return []core.ScoredDocument{mock.FixtureDocument("stored", "archive", 0.9, time.Hour)}, core.ModeFull, nil
		},
		func(ctx context.Context) ([]core.SearchResult, core.ServiceMode, error) {
			return []core.SearchResult{mock.FixtureSearchResult("found", "https://example.test", 0.8, time.Hour)}, core.ModeFull, nil
		})

	require.Len(t, agg.Documents, 1)
	require.Len(t, agg.WebResults, 1)
	assert.Empty(t, agg.Errors)
	assert.Equal(t, core.ModeFull, agg.Modes[SourceVector])
	assert.Equal(t, core.ModeFull, agg.Modes[SourceWeb])
}

func TestRetrieveBothPartialFailure(t *testing.T) {
	c := newTestCoordinator(t)
	vectorErr := errors.New("index offline")

	agg := c.RetrieveBoth(context.Background(),
		func(ctx context.Context) ([]core.ScoredDocument, core.ServiceMode, error) {
			return nil, core.ModeMinimal, vectorErr
		},
		func(ctx context.Context) ([]core.SearchResult, core.ServiceMode, error) {
			return []core.SearchResult{mock.FixtureSearchResult("found", "https://example.test", 0.8, time.Hour)}, core.ModeFull, nil
		})

	// The failed branch leaves an error entry; the other branch's results
	// are still there
	assert.Empty(t, agg.Documents)
	require.Len(t, agg.WebResults, 1)
	require.Len(t, agg.Errors, 1)
	assert.Equal(t, vectorErr, agg.Errors[SourceVector])
}

func TestRetrieveBothNoFailFast(t *testing.T) {
	c := newTestCoordinator(t)

	// The web branch fails immediately; the vector branch finishes later
	// and must not be cancelled by it
	release := make(chan struct{})
	var once sync.Once

	agg := c.RetrieveBoth(context.Background(),
		func(ctx context.Context) ([]core.ScoredDocument, core.ServiceMode, error) {
			<-release
			return []core.ScoredDocument{mock.FixtureDocument("slow but fine", "archive", 0.9, time.Hour)}, core.ModeFull, nil
		},
		func(ctx context.Context) ([]core.SearchResult, core.ServiceMode, error) {
			once.Do(func() { close(release) })
			return nil, core.ModeMinimal, errors.New("api down")
		})

	require.Len(t, agg.Documents, 1)
	require.Len(t, agg.Errors, 1)
	assert.Contains(t, agg.Errors, SourceWeb)
}

func TestRetrieveBothBothFail(t *testing.T) {
	c := newTestCoordinator(t)

	agg := c.RetrieveBoth(context.Background(),
		func(ctx context.Context) ([]core.ScoredDocument, core.ServiceMode, error) {
			return nil, core.ModeMinimal, errors.New("index offline")
		},
		func(ctx context.Context) ([]core.SearchResult, core.ServiceMode, error) {
			return nil, core.ModeMinimal, errors.New("api down")
		})

	assert.Empty(t, agg.Documents)
	assert.Empty(t, agg.WebResults)
	assert.Len(t, agg.Errors, 2)
}
