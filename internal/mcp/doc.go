// Package mcp implements the Model Context Protocol (MCP) server surface.
//
// Three tools are exposed to MCP clients over stdio:
//   - index_project: scan a project tree and index new or changed files
//   - search_files: rank indexed files against a natural-language query
//   - get_status: report index contents and health
//
// MCP is JSON-RPC 2.0 over stdio, so stdout is reserved for the protocol
// and all logging goes to stderr.
package mcp
