package mcp

import (
	"context"
	"fmt"
	"net/url"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

// HttpMCPClient implements MCPClient for streamable HTTP transport.
type HttpMCPClient struct {
	client  *client.Client
	baseURL string
	logger  zerolog.Logger
}

// NewHttpMCPClient creates a new HTTP MCP client.
func NewHttpMCPClient(logger zerolog.Logger, baseURL string) (*HttpMCPClient, error) {
	logger = logger.With().Str("component", "httpMCPClient").Logger()
	if baseURL == "" {
		return nil, fmt.Errorf("baseURL is required for HTTP MCP client")
	}
	if _, err := url.Parse(baseURL); err != nil {
		logger.Error().Err(err).Msg("Invalid URL")
		return nil, fmt.Errorf("invalid baseURL: %w", err)
	}

	logger.Info().Str("base_url", baseURL).Msg("Creating HTTP MCP client")
	mcpClient, err := client.NewStreamableHttpClient(baseURL)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create underlying HTTP client")
		return nil, fmt.Errorf("failed to create HTTP MCP client: %w", err)
	}

	return &HttpMCPClient{
		client:  mcpClient,
		baseURL: baseURL,
		logger:  logger,
	}, nil
}

// Start initializes the MCP client connection. Some streamable HTTP servers
// initialize implicitly inside Start; for those that do not, explicit
// Initialize is retried across protocol versions, oldest first.
func (c *HttpMCPClient) Start(ctx context.Context) error {
	err := c.client.Start(ctx)
	if err == nil {
		c.logger.Info().Str("base_url", c.baseURL).Msg("HttpMCPClient: client started")
		return nil
	}
	c.logger.Warn().Err(err).Msg("HttpMCPClient: Start failed, trying explicit initialization")

	protocolVersions := []string{
		"2024-11-05", // Older stable version
		mcp.LATEST_PROTOCOL_VERSION,
	}

	lastErr := err
	for _, protocolVersion := range protocolVersions {
		initReq := mcp.InitializeRequest{
			Params: mcp.InitializeParams{
				ProtocolVersion: protocolVersion,
				Capabilities:    mcp.ClientCapabilities{},
				ClientInfo: mcp.Implementation{
					Name:    clientName,
					Version: clientVersion,
				},
			},
		}

		if _, initErr := c.client.Initialize(ctx, initReq); initErr != nil {
			lastErr = initErr
			c.logger.Warn().Str("protocol_version", protocolVersion).Err(initErr).Msg("HttpMCPClient: Initialize failed, trying next version")
			continue
		}

		if startErr := c.client.Start(ctx); startErr != nil {
			lastErr = startErr
			c.logger.Warn().Str("protocol_version", protocolVersion).Err(startErr).Msg("HttpMCPClient: Start failed after Initialize, trying next version")
			continue
		}

		c.logger.Info().Str("base_url", c.baseURL).Str("protocol_version", protocolVersion).Msg("HttpMCPClient: client started")
		return nil
	}

	c.logger.Error().Err(lastErr).Msg("HttpMCPClient: all initialization attempts failed")
	return fmt.Errorf("failed to start HTTP MCP client: %w", lastErr)
}

// ListTools returns all tools available from the MCP server.
func (c *HttpMCPClient) ListTools(ctx context.Context) ([]ToolDefinition, error) {
	result, err := c.client.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		c.logger.Error().Str("base_url", c.baseURL).Err(err).Msg("Failed to list tools")
		return nil, fmt.Errorf("failed to list tools: %w", err)
	}
	c.logger.Info().Str("base_url", c.baseURL).Int("tool_count", len(result.Tools)).Msg("Received tools from MCP server")

	return lo.Map(result.Tools, func(tool mcp.Tool, _ int) ToolDefinition {
		return ToolDefinition{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: inputSchemaMap(tool),
		}
	}), nil
}

// InvokeTool invokes a tool on the MCP server.
func (c *HttpMCPClient) InvokeTool(ctx context.Context, name string, input map[string]interface{}) (map[string]interface{}, error) {
	req := mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: input,
		},
	}

	result, err := c.client.CallTool(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to invoke tool %s: %w", name, err)
	}

	return toolResultMap(result), nil
}

// Close closes the connection to the MCP server.
func (c *HttpMCPClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}
