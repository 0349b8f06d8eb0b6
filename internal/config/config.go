package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"descry/pkg/types"
)

// Config is the full configuration tree, loaded from YAML with environment
// overrides for secrets.
type Config struct {
	ProjectRoot string `yaml:"project_root"`
	IndexPath   string `yaml:"index_path"`
	LogLevel    string `yaml:"log_level"`

	Scan struct {
		Workers      int           `yaml:"workers"`
		Extensions   []string      `yaml:"extensions"`
		IgnoreDirs   []string      `yaml:"ignore_dirs"`
		MaxFileBytes int64         `yaml:"max_file_bytes"`
		Debounce     time.Duration `yaml:"watch_debounce"`
	} `yaml:"scan"`

	Search struct {
		KeywordWeight float64       `yaml:"keyword_weight"`
		VectorWeight  float64       `yaml:"vector_weight"`
		CacheSize     int           `yaml:"cache_size"`
		CacheTTL      time.Duration `yaml:"cache_ttl"`
	} `yaml:"search"`

	Summary struct {
		Provider string `yaml:"provider"`
		Model    string `yaml:"model"`
		BaseURL  string `yaml:"base_url"`
		APIKey   string `yaml:"api_key"`
	} `yaml:"summary"`

	Embedding struct {
		Provider  string `yaml:"provider"`
		Model     string `yaml:"model"`
		BaseURL   string `yaml:"base_url"`
		APIKey    string `yaml:"api_key"`
		Metric    string `yaml:"metric"`
		CacheSize int    `yaml:"cache_size"`
	} `yaml:"embedding"`
}

// Default returns a configuration that works out of the box against a local
// Ollama server, indexing the current directory.
func Default() *Config {
	cfg := &Config{
		ProjectRoot: ".",
		IndexPath:   filepath.Join(".descry", "index.db"),
		LogLevel:    "info",
	}
	cfg.Scan.MaxFileBytes = 1 << 20
	cfg.Scan.Debounce = 2 * time.Second
	cfg.Search.KeywordWeight = 0.5
	cfg.Search.VectorWeight = 0.5
	cfg.Search.CacheSize = 1000
	cfg.Search.CacheTTL = time.Hour
	cfg.Summary.Provider = "ollama"
	cfg.Embedding.Provider = "ollama"
	cfg.Embedding.Metric = "cosine"
	cfg.Embedding.CacheSize = 10000
	return cfg
}

// Load reads a YAML config file over the defaults and applies environment
// overrides. An empty path returns defaults plus environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("unable to open config file: %w", err)
		}
		defer func() { _ = file.Close() }()

		dec := yaml.NewDecoder(file)
		if err := dec.Decode(cfg); err != nil {
			return nil, fmt.Errorf("unable to parse config file: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv lets secrets and deploy-specific endpoints stay out of the file.
func (c *Config) applyEnv() {
	if v := os.Getenv("DESCRY_INDEX_PATH"); v != "" {
		c.IndexPath = v
	}
	if v := os.Getenv("DESCRY_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("DESCRY_SUMMARY_PROVIDER"); v != "" {
		c.Summary.Provider = v
	}
	if v := os.Getenv("DESCRY_EMBEDDING_PROVIDER"); v != "" {
		c.Embedding.Provider = v
	}
	if v := os.Getenv("OLLAMA_HOST"); v != "" {
		if c.Summary.BaseURL == "" {
			c.Summary.BaseURL = v
		}
		if c.Embedding.BaseURL == "" {
			c.Embedding.BaseURL = v
		}
	}
	if v := os.Getenv("GROQ_API_KEY"); v != "" && c.Summary.APIKey == "" {
		c.Summary.APIKey = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" && c.Embedding.APIKey == "" {
		c.Embedding.APIKey = v
	}
}

// Validate rejects configurations that cannot produce meaningful rankings.
func (c *Config) Validate() error {
	if c.Search.KeywordWeight < 0 || c.Search.VectorWeight < 0 {
		return fmt.Errorf("%w: score weights must be non-negative", types.ErrInvalidArgument)
	}
	if c.Search.KeywordWeight+c.Search.VectorWeight <= 0 {
		return fmt.Errorf("%w: at least one score weight must be positive", types.ErrInvalidArgument)
	}
	switch c.Embedding.Metric {
	case "cosine", "euclidean":
	default:
		return fmt.Errorf("%w: unknown metric %q", types.ErrInvalidArgument, c.Embedding.Metric)
	}
	if c.Scan.MaxFileBytes < 0 {
		return fmt.Errorf("%w: max_file_bytes must be non-negative", types.ErrInvalidArgument)
	}
	return nil
}
