package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"descry/pkg/types"
)

func writeConfig(t *testing.T, body string) string {
	path := filepath.Join(t.TempDir(), "descry.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ".", cfg.ProjectRoot)
	assert.Equal(t, "cosine", cfg.Embedding.Metric)
	assert.Equal(t, 0.5, cfg.Search.KeywordWeight)
	assert.Equal(t, 0.5, cfg.Search.VectorWeight)
	assert.Equal(t, time.Hour, cfg.Search.CacheTTL)
	assert.Equal(t, "ollama", cfg.Summary.Provider)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
project_root: /srv/code
log_level: debug
scan:
  workers: 4
  watch_debounce: 5s
search:
  keyword_weight: 0.7
  vector_weight: 0.3
embedding:
  provider: local
  metric: euclidean
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/srv/code", cfg.ProjectRoot)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 4, cfg.Scan.Workers)
	assert.Equal(t, 5*time.Second, cfg.Scan.Debounce)
	assert.Equal(t, 0.7, cfg.Search.KeywordWeight)
	assert.Equal(t, "euclidean", cfg.Embedding.Metric)

	// Untouched keys keep their defaults
	assert.Equal(t, "ollama", cfg.Summary.Provider)
	assert.Equal(t, 1000, cfg.Search.CacheSize)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DESCRY_INDEX_PATH", "/var/lib/descry/index.db")
	t.Setenv("GROQ_API_KEY", "gk-test")
	t.Setenv("OLLAMA_HOST", "http://ollama:11434")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/descry/index.db", cfg.IndexPath)
	assert.Equal(t, "gk-test", cfg.Summary.APIKey)
	assert.Equal(t, "http://ollama:11434", cfg.Embedding.BaseURL)
}

func TestLoad_ProviderEnvOverrides(t *testing.T) {
	t.Setenv("DESCRY_SUMMARY_PROVIDER", "heuristic")
	t.Setenv("DESCRY_EMBEDDING_PROVIDER", "local")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "heuristic", cfg.Summary.Provider)
	assert.Equal(t, "local", cfg.Embedding.Provider)
}

func TestLoad_FileKeyBeatsEnv(t *testing.T) {
	t.Setenv("GROQ_API_KEY", "gk-env")
	path := writeConfig(t, `
summary:
  api_key: gk-file
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "gk-file", cfg.Summary.APIKey)
}

func TestValidate_RejectsBadWeights(t *testing.T) {
	path := writeConfig(t, `
search:
  keyword_weight: -1
  vector_weight: 0.5
`)
	_, err := Load(path)
	assert.ErrorIs(t, err, types.ErrInvalidArgument)

	path = writeConfig(t, `
search:
  keyword_weight: 0
  vector_weight: 0
`)
	_, err = Load(path)
	assert.ErrorIs(t, err, types.ErrInvalidArgument)
}

func TestValidate_RejectsUnknownMetric(t *testing.T) {
	path := writeConfig(t, `
embedding:
  metric: manhattan
`)
	_, err := Load(path)
	assert.ErrorIs(t, err, types.ErrInvalidArgument)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/descry.yaml")
	assert.Error(t, err)
}
