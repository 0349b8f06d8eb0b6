package mcp

import "github.com/mark3labs/mcp-go/mcp"

func indexProjectTool() mcp.Tool {
	return mcp.Tool{
		Name:        "index_project",
		Description: "Scan a project directory and index its files for search. Only new and changed files are re-described; files deleted from disk are removed from the index.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to the project root. Defaults to the configured project root.",
				},
			},
		},
	}
}

func searchFilesTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_files",
		Description: "Find indexed files relevant to a natural-language query. Combines keyword overlap with embedding similarity and returns the best matches first.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "What you are looking for, e.g. 'user login and sessions'",
				},
				"top_k": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results to return",
					"default":     10,
				},
			},
			Required: []string{"query"},
		},
	}
}

func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Report index contents and health: file counts, embedding coverage, vector dimension, and index size.",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
