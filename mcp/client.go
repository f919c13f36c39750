// Package mcp wraps mcp-go clients behind a transport-neutral interface so
// the agent layer can treat stdio and streamable HTTP servers alike.
package mcp

import (
	"context"
)

// clientName identifies this application to MCP servers during initialize.
const (
	clientName    = "ancientgrok"
	clientVersion = "0.1.0"
)

// ToolDefinition represents an MCP tool definition.
type ToolDefinition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

// MCPClient is the interface for interacting with MCP servers.
type MCPClient interface {
	// Start initializes and starts the MCP client connection.
	Start(ctx context.Context) error

	// ListTools returns all tools available from the MCP server.
	ListTools(ctx context.Context) ([]ToolDefinition, error)

	// InvokeTool invokes a tool on the MCP server with the given input.
	InvokeTool(ctx context.Context, name string, input map[string]interface{}) (map[string]interface{}, error)

	// Close closes the connection to the MCP server.
	Close() error
}
