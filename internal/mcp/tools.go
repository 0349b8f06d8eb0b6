package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/mcp"

	"descry/internal/scanner"
	"descry/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams  = -32602 // Invalid method parameters
	ErrorCodeInternalError  = -32603 // Internal JSON-RPC error
	ErrorCodeScanInProgress = -32002 // Another scan is already running
	ErrorCodeEmptyQuery     = -32004 // Query parameter is empty
)

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	return &MCPError{Code: code, Message: message, Data: data}
}

// handleIndexProject handles the index_project tool invocation
func (s *Server) handleIndexProject(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]interface{})

	path := getStringDefault(args, "path", s.projectRoot)
	if err := validateDir(path); err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid path", map[string]interface{}{
			"param":  "path",
			"reason": err.Error(),
		})
	}

	report, err := s.scanner.Scan(ctx, path)
	if errors.Is(err, scanner.ErrScanInProgress) {
		return nil, newMCPError(ErrorCodeScanInProgress, "a scan is already running", nil)
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "scan failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	// Cached rankings may reference files that just changed
	if report.Changed() {
		s.searcher.InvalidateCache()
	}

	response := map[string]interface{}{
		"added":       report.Added,
		"updated":     report.Updated,
		"removed":     report.Removed,
		"unchanged":   report.Unchanged,
		"duration_ms": report.Duration.Milliseconds(),
	}
	if len(report.Failed) > 0 {
		failures := make([]map[string]string, 0, len(report.Failed))
		for _, f := range report.Failed {
			failures = append(failures, map[string]string{"path": f.Path, "error": f.Err.Error()})
		}
		response["failed"] = failures
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleSearchFiles handles the search_files tool invocation
func (s *Server) handleSearchFiles(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	query, ok := args["query"].(string)
	if !ok || query == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	topK := getIntDefault(args, "top_k", 10)

	result, err := s.searcher.Search(ctx, query, topK)
	if errors.Is(err, types.ErrInvalidArgument) {
		return nil, newMCPError(ErrorCodeInvalidParams, err.Error(), nil)
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "search failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	matches := make([]map[string]interface{}, 0, len(result))
	for _, m := range result {
		matches = append(matches, map[string]interface{}{
			"path":          m.Path,
			"score":         m.Score,
			"keyword_score": m.KeywordScore,
			"vector_score":  m.VectorScore,
		})
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"query":   query,
		"matches": matches,
	})), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to read index stats", map[string]interface{}{
			"error": err.Error(),
		})
	}

	provider, model, err := s.store.EmbeddingModel(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to read index metadata", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"files":     stats.Files,
		"described": stats.Described,
		"vectors":   stats.Vectors,
		"dimension": stats.Dimension,
		"metric":    string(stats.Metric),
		"embedding": map[string]string{
			"provider": provider,
			"model":    model,
		},
		"index_size_mb": fmt.Sprintf("%.2f", stats.IndexSizeMB),
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// Helper functions

// validateDir checks that path is an absolute, readable directory
func validateDir(path string) error {
	if path == "" {
		return errors.New("path is required")
	}
	if !filepath.IsAbs(path) {
		return errors.New("path must be absolute")
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return errors.New("path does not exist")
	}
	if err != nil {
		return errors.New("path is not readable")
	}
	if !info.IsDir() {
		return errors.New("path is not a directory")
	}
	return nil
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok && val != "" {
		return val
	}
	return defaultValue
}
