package tavily

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/sibyl/core"
)

func TestNew(t *testing.T) {
	t.Run("missing api key", func(t *testing.T) {
		_, err := New("")
		assert.Equal(t, ErrAPIKeyRequired, err)
	})

	t.Run("valid configuration", func(t *testing.T) {
		c, err := New("tvly-key")
		require.NoError(t, err)
		assert.NotNil(t, c)
	})
}

func TestSearch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/search", r.URL.Path)

		var req searchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "tvly-key", req.APIKey)
		assert.Equal(t, "solar flares", req.Query)
		assert.Equal(t, 3, req.MaxResults)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"results": [
				{"title": "Flare watch", "url": "https://example.test/a", "content": "X-class flare observed", "score": 0.93, "published_date": "2025-05-30T10:00:00Z"},
				{"title": "Aurora alert", "url": "https://example.test/b", "content": "Auroras expected", "score": 0.81}
			]
		}`))
	}))
	defer server.Close()

	c, err := New("tvly-key", WithBaseURL(server.URL))
	require.NoError(t, err)

	results, err := c.Search(context.Background(), "solar flares", 3)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "Flare watch", results[0].Title)
	assert.Equal(t, "https://example.test/a", results[0].URL)
	assert.InDelta(t, 0.93, results[0].Score, 1e-6)
	assert.False(t, results[0].PublishedAt.IsZero())
	assert.True(t, results[1].PublishedAt.IsZero(), "missing published date stays zero")
}

func TestSearchServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))
	defer server.Close()

	c, err := New("tvly-key", WithBaseURL(server.URL))
	require.NoError(t, err)

	_, err = c.Search(context.Background(), "anything", 5)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrSearchAPI)
}

func TestSearchUnreachableHost(t *testing.T) {
	c, err := New("tvly-key", WithBaseURL("http://127.0.0.1:1"))
	require.NoError(t, err)

	_, err = c.Search(context.Background(), "anything", 5)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrSearchAPI)
}
