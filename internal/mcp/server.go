package mcp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"descry/internal/config"
	"descry/internal/embedder"
	"descry/internal/scanner"
	"descry/internal/searcher"
	"descry/internal/store"
	"descry/internal/summarizer"
)

const (
	// ServerName is the MCP server name
	ServerName = "descry"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp        *server.MCPServer
	store      *store.Store
	scanner    *scanner.Scanner
	searcher   *searcher.Searcher
	summarizer summarizer.Summarizer
	embedder   embedder.Embedder
	log        *zap.Logger

	projectRoot string
}

// NewServer builds the full pipeline from configuration: store, summarizer,
// embedder, scanner, searcher, and the MCP tool surface.
func NewServer(cfg *config.Config, log *zap.Logger) (*Server, error) {
	if log == nil {
		log = zap.NewNop()
	}

	projectRoot, err := filepath.Abs(cfg.ProjectRoot)
	if err != nil {
		return nil, fmt.Errorf("bad project root: %w", err)
	}

	if dir := filepath.Dir(cfg.IndexPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create index directory: %w", err)
		}
	}

	st, err := store.Open(cfg.IndexPath, store.Options{
		Metric: store.Metric(cfg.Embedding.Metric),
		Logger: log,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open index: %w", err)
	}

	sum, err := summarizer.New(summarizer.Config{
		Provider: cfg.Summary.Provider,
		Model:    cfg.Summary.Model,
		BaseURL:  cfg.Summary.BaseURL,
		APIKey:   cfg.Summary.APIKey,
	})
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("failed to initialize summarizer: %w", err)
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
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	if err := st.SetEmbeddingModel(context.Background(), emb.Provider(), emb.Model()); err != nil {
		_ = st.Close()
		return nil, err
	}

	predicate, err := scanner.GitignorePredicate(projectRoot)
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

	mcpServer := server.NewMCPServer(ServerName, ServerVersion)

	s := &Server{
		mcp:         mcpServer,
		store:       st,
		scanner:     sc,
		searcher:    srch,
		summarizer:  sum,
		embedder:    emb,
		log:         log,
		projectRoot: projectRoot,
	}
	s.registerTools()

	return s, nil
}

// Serve runs the MCP server on stdio until ctx is canceled or stdin closes.
func (s *Server) Serve(ctx context.Context) error {
	defer s.Close()
	return server.NewStdioServer(s.mcp).Listen(ctx, os.Stdin, os.Stdout)
}

// Close releases the server's resources
func (s *Server) Close() {
	_ = s.summarizer.Close()
	_ = s.embedder.Close()
	_ = s.store.Close()
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(indexProjectTool(), s.handleIndexProject)
	s.mcp.AddTool(searchFilesTool(), s.handleSearchFiles)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
}
