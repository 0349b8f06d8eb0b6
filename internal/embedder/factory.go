package embedder

import (
	"fmt"
	"os"
	"strings"

	"descry/pkg/types"
)

// EnvOpenAIAPIKey is the fallback key source when the config carries none.
const EnvOpenAIAPIKey = "OPENAI_API_KEY"

// Config holds embedder configuration
type Config struct {
	Provider  string
	Model     string
	BaseURL   string // Ollama server address
	APIKey    string // OpenAI key
	CacheSize int
}

// New creates an embedder with explicit configuration
func New(cfg Config) (Embedder, error) {
	var cache *Cache
	if cfg.CacheSize > 0 {
		cache = NewCache(cfg.CacheSize)
	}

	switch strings.ToLower(cfg.Provider) {
	case ProviderOllama, "":
		return NewOllamaProvider(cfg.BaseURL, cfg.Model, cache), nil
	case ProviderOpenAI:
		apiKey := cfg.APIKey
		if apiKey == "" {
			apiKey = os.Getenv(EnvOpenAIAPIKey)
		}
		return NewOpenAIProvider(apiKey, cfg.Model, cache)
	case ProviderLocal:
		return NewLocalProvider(cache), nil
	default:
		return nil, fmt.Errorf("%w: unknown embedding provider %q", types.ErrInvalidArgument, cfg.Provider)
	}
}
