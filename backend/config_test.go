package backend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg := NewConfig()
		require.NoError(t, cfg.Validate())
		assert.Equal(t, "http://localhost:11434/v1", cfg.GenerationHost)
		assert.Equal(t, cfg.GenerationModel, cfg.AnalyzerModel, "analyzer model falls back to generation model")
	})

	t.Run("options", func(t *testing.T) {
		cfg := NewConfig(
			WithHost("http://example.test/v1/"),
			WithGenerationModel("gpt-4o-mini"),
			WithAnalyzerModel("gpt-4o-nano"),
			WithEmbeddingModel("text-embedding-3-small"),
			WithToken("secret"),
		)
		require.NoError(t, cfg.Validate())
		assert.Equal(t, "http://example.test/v1", cfg.GenerationHost, "trailing slash is trimmed")
		assert.Equal(t, "http://example.test/v1", cfg.EmbeddingHost)
		assert.Equal(t, "gpt-4o-nano", cfg.AnalyzerModel)
		assert.Equal(t, "secret", cfg.Token)
	})
}

func TestConfigValidate(t *testing.T) {
	t.Run("empty host", func(t *testing.T) {
		cfg := NewConfig(WithGenerationHost(""))
		assert.Equal(t, ErrEmptyHost, cfg.Validate())
	})

	t.Run("empty model", func(t *testing.T) {
		cfg := NewConfig(WithEmbeddingModel(""))
		assert.Equal(t, ErrEmptyModel, cfg.Validate())
	})

	t.Run("empty token falls back", func(t *testing.T) {
		cfg := NewConfig(WithToken(""))
		require.NoError(t, cfg.Validate())
		assert.Equal(t, "none", cfg.Token)
	})
}
