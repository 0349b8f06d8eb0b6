package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"descry/internal/config"
	"descry/internal/embedder"
	"descry/internal/scanner"
	"descry/internal/searcher"
	"descry/internal/store"
	"descry/internal/summarizer"
)

var (
	flagConfig string
	flagRoot   string
	flagIndex  string
)

var rootCmd = &cobra.Command{
	Use:   "descry",
	Short: "Describe-and-search index for project files",
	Long: "descry keeps a searchable index of what every file in a project does:\n" +
		"each file gets a model-written description and an embedding, and queries\n" +
		"rank files by combined keyword and semantic relevance.",
	SilenceUsage: true,
	Version:      fmt.Sprintf("%s (built %s, sqlite %s/%s)", version, buildTime, store.BuildMode, store.DriverName),
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "path to YAML config file")
	rootCmd.PersistentFlags().StringVar(&flagRoot, "root", "", "project root to index (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flagIndex, "index", "", "index database path (overrides config)")

	rootCmd.AddCommand(serveCmd, indexCmd, searchCmd, statusCmd)
}

// loadConfig resolves the effective configuration: file, environment, flags.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}
	if flagRoot != "" {
		cfg.ProjectRoot = flagRoot
	}
	if flagIndex != "" {
		cfg.IndexPath = flagIndex
	}
	return cfg, nil
}

// newLogger builds a structured logger on stderr. Stdout stays clean for
// command output and, in serve mode, the MCP protocol.
func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("bad log level %q: %w", level, err)
	}

	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	zcfg.OutputPaths = []string{"stderr"}
	zcfg.ErrorOutputPaths = []string{"stderr"}
	return zcfg.Build()
}

// pipeline bundles the components the one-shot CLI commands need.
type pipeline struct {
	cfg      *config.Config
	store    *store.Store
	scanner  *scanner.Scanner
	searcher *searcher.Searcher
	log      *zap.Logger

	summarizer summarizer.Summarizer
	embedder   embedder.Embedder
}

func (p *pipeline) Close() {
	_ = p.summarizer.Close()
	_ = p.embedder.Close()
	_ = p.store.Close()
	_ = p.log.Sync()
}

// buildPipeline opens the index and wires summarizer, embedder, scanner,
// and searcher from configuration.
func buildPipeline() (*pipeline, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	log, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	if dir := filepath.Dir(cfg.IndexPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create index directory: %w", err)
		}
	}

	st, err := store.Open(cfg.IndexPath, store.Options{
		Metric: store.Metric(cfg.Embedding.Metric),
		Logger: log,
	})
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}

	sum, err := summarizer.New(summarizer.Config{
		Provider: cfg.Summary.Provider,
		Model:    cfg.Summary.Model,
		BaseURL:  cfg.Summary.BaseURL,
		APIKey:   cfg.Summary.APIKey,
	})
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	emb, err := embedder.New(embedder.Config{
		Provider:  cfg.Embedding.Provider,
		Model:     cfg.Embedding.Model,
		BaseURL:   cfg.Embedding.BaseURL,
		APIKey:    cfg.Embedding.APIKey,
		CacheSize: cfg.Embedding.CacheSize,
	})
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	if err := st.SetEmbeddingModel(context.Background(), emb.Provider(), emb.Model()); err != nil {
		_ = st.Close()
		return nil, err
	}

	predicate, err := scanner.GitignorePredicate(cfg.ProjectRoot)
	if err != nil {
		log.Warn("failed to read .gitignore", zap.Error(err))
	}

	sc := scanner.New(st, sum, emb, scanner.Config{
		Workers:      cfg.Scan.Workers,
		Extensions:   cfg.Scan.Extensions,
		IgnoreDirs:   cfg.Scan.IgnoreDirs,
		MaxFileBytes: cfg.Scan.MaxFileBytes,
		Predicate:    predicate,
		Logger:       log,
	})

	srch := searcher.New(st, emb, searcher.Options{
		Weights: searcher.Weights{
			Keyword: cfg.Search.KeywordWeight,
			Vector:  cfg.Search.VectorWeight,
		},
		CacheSize: cfg.Search.CacheSize,
		CacheTTL:  cfg.Search.CacheTTL,
		Logger:    log,
	})

	return &pipeline{
		cfg:        cfg,
		store:      st,
		scanner:    sc,
		searcher:   srch,
		log:        log,
		summarizer: sum,
		embedder:   emb,
	}, nil
}
