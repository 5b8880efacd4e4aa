package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr())
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "openai", cfg.Embedder.Provider)
	assert.Equal(t, 1536, cfg.Embedder.Dimension)
	assert.Equal(t, "pgvector", cfg.VectorDB.Backend)
	assert.Equal(t, 0.55, cfg.Retrieval.SimilarityThreshold)
	assert.Equal(t, 20, cfg.Retrieval.MaxFactsPerEntry)
	assert.NoError(t, cfg.validate())
}

func TestLoad(t *testing.T) {
	t.Run("missing file uses defaults", func(t *testing.T) {
		cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		require.NoError(t, err)
		assert.Equal(t, Default().Retrieval, cfg.Retrieval)
	})

	t.Run("file values override defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "rememo.yaml")
		body := `
server:
  port: 9999
embedder:
  provider: ollama
  model: all-minilm
  dimension: 384
vectordb:
  backend: memory
database:
  driver: sqlite
  path: /tmp/rememo.db
retrieval:
  similarity_threshold: 0.4
`
		require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, 9999, cfg.Server.Port)
		assert.Equal(t, "ollama", cfg.Embedder.Provider)
		assert.Equal(t, 384, cfg.Embedder.Dimension)
		assert.Equal(t, "memory", cfg.VectorDB.Backend)
		assert.Equal(t, "sqlite", cfg.Database.Driver)
		assert.Equal(t, 0.4, cfg.Retrieval.SimilarityThreshold)
		// Untouched sections keep their defaults.
		assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	})

	t.Run("invalid backend rejected", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "rememo.yaml")
		require.NoError(t, os.WriteFile(path, []byte("vectordb:\n  backend: cassandra\n"), 0o600))

		_, err := Load(path)
		assert.Error(t, err)
	})

	t.Run("invalid threshold rejected", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "rememo.yaml")
		require.NoError(t, os.WriteFile(path, []byte("retrieval:\n  similarity_threshold: 1.5\n"), 0o600))

		_, err := Load(path)
		assert.Error(t, err)
	})

	t.Run("environment overrides", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "sk-test")
		t.Setenv("DATABASE_URL", "postgres://elsewhere/db")
		t.Setenv("PORT", "3000")

		cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		require.NoError(t, err)
		assert.Equal(t, "sk-test", cfg.LLM.APIKey)
		assert.Equal(t, "sk-test", cfg.Embedder.APIKey)
		assert.Equal(t, "postgres://elsewhere/db", cfg.Database.DSN)
		assert.Equal(t, 3000, cfg.Server.Port)
	})
}
