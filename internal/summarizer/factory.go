package summarizer

import (
	"fmt"
	"os"
	"strings"

	"descry/pkg/types"
)

// EnvChatAPIKey is the fallback key source when the config carries none.
const EnvChatAPIKey = "GROQ_API_KEY"

// Config holds summarizer configuration
type Config struct {
	Provider string
	Model    string
	BaseURL  string
	APIKey   string
}

// New creates a summarizer with explicit configuration
func New(cfg Config) (Summarizer, error) {
	switch strings.ToLower(cfg.Provider) {
	case ProviderChat:
		apiKey := cfg.APIKey
		if apiKey == "" {
			apiKey = os.Getenv(EnvChatAPIKey)
		}
		return NewChatProvider(cfg.BaseURL, apiKey, cfg.Model)
	case ProviderOllama, "":
		return NewOllamaProvider(cfg.BaseURL, cfg.Model), nil
	case ProviderHeuristic:
		return NewHeuristicProvider(), nil
	default:
		return nil, fmt.Errorf("%w: unknown summary provider %q", types.ErrInvalidArgument, cfg.Provider)
	}
}
