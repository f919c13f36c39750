package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

// StdioMCPClient implements MCPClient for STDIO transport.
type StdioMCPClient struct {
	client  *client.Client
	command string
	args    []string
	env     []string
	logger  zerolog.Logger
}

// NewStdioMCPClient creates a new STDIO MCP client. The command string may
// carry embedded arguments ("npx -y @some/server"), which are split and
// prepended to args.
func NewStdioMCPClient(logger zerolog.Logger, command string, args, env []string) (*StdioMCPClient, error) {
	if command == "" {
		return nil, fmt.Errorf("command is required for STDIO MCP client")
	}

	logger = logger.With().Str("component", "stdioMCPClient").Logger()

	parts := strings.Fields(command)
	cmd := parts[0]
	var cmdArgs []string
	if len(parts) > 1 {
		cmdArgs = make([]string, 0, len(parts)-1+len(args))
		cmdArgs = append(cmdArgs, parts[1:]...)
		cmdArgs = append(cmdArgs, args...)
	} else {
		cmdArgs = args
	}

	logger.Info().Str("command", cmd).Strs("args", cmdArgs).Strs("env", env).Msg("Creating STDIO MCP client")
	mcpClient, err := client.NewStdioMCPClient(cmd, env, cmdArgs...)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create underlying stdio client")
		return nil, fmt.Errorf("failed to create stdio MCP client: %w", err)
	}

	return &StdioMCPClient{
		client:  mcpClient,
		command: cmd,
		args:    cmdArgs,
		env:     env,
		logger:  logger,
	}, nil
}

// Start initializes the MCP client connection. Initialize and Start each run
// in a goroutine so a hung server process cannot outlive the caller's context.
func (c *StdioMCPClient) Start(ctx context.Context) error {
	initReq := mcp.InitializeRequest{
		Params: mcp.InitializeParams{
			ProtocolVersion: mcp.LATEST_PROTOCOL_VERSION,
			Capabilities:    mcp.ClientCapabilities{},
			ClientInfo: mcp.Implementation{
				Name:    clientName,
				Version: clientVersion,
			},
		},
	}

	c.logger.Debug().Str("command", c.command).Str("protocolVersion", mcp.LATEST_PROTOCOL_VERSION).Msg("StdioMCPClient: calling Initialize")
	initDone := make(chan error, 1)
	go func() {
		_, initErr := c.client.Initialize(ctx, initReq)
		initDone <- initErr
	}()

	select {
	case err := <-initDone:
		if err != nil {
			c.logger.Error().Str("command", c.command).Err(err).Msg("StdioMCPClient: Initialize failed")
			return fmt.Errorf("failed to initialize MCP client: %w", err)
		}
	case <-ctx.Done():
		c.logger.Error().Str("command", c.command).Err(ctx.Err()).Msg("StdioMCPClient: context cancelled during Initialize")
		return fmt.Errorf("context cancelled during initialize: %w", ctx.Err())
	}

	c.logger.Debug().Str("command", c.command).Msg("StdioMCPClient: calling Start")
	startDone := make(chan error, 1)
	go func() {
		startDone <- c.client.Start(ctx)
	}()

	select {
	case err := <-startDone:
		if err != nil {
			c.logger.Error().Str("command", c.command).Err(err).Msg("StdioMCPClient: Start failed")
			return fmt.Errorf("failed to start MCP client: %w", err)
		}
	case <-ctx.Done():
		c.logger.Error().Str("command", c.command).Err(ctx.Err()).Msg("StdioMCPClient: context cancelled during Start")
		return fmt.Errorf("context cancelled during start: %w", ctx.Err())
	}

	c.logger.Info().Str("command", c.command).Msg("StdioMCPClient: client started")
	return nil
}

// ListTools returns all tools available from the MCP server.
func (c *StdioMCPClient) ListTools(ctx context.Context) ([]ToolDefinition, error) {
	result, err := c.client.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		c.logger.Error().Str("command", c.command).Err(err).Msg("Failed to list tools")
		return nil, fmt.Errorf("failed to list tools: %w", err)
	}
	c.logger.Info().Str("command", c.command).Int("tool_count", len(result.Tools)).Msg("Received tools from MCP server")

	return lo.Map(result.Tools, func(tool mcp.Tool, _ int) ToolDefinition {
		return ToolDefinition{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: inputSchemaMap(tool),
		}
	}), nil
}

// InvokeTool invokes a tool on the MCP server.
func (c *StdioMCPClient) InvokeTool(ctx context.Context, name string, input map[string]interface{}) (map[string]interface{}, error) {
	c.logger.Debug().Str("tool_name", name).Str("command", c.command).Msg("Invoking tool on MCP server")
	req := mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: input,
		},
	}

	result, err := c.client.CallTool(ctx, req)
	if err != nil {
		c.logger.Error().Str("tool_name", name).Str("command", c.command).Err(err).Msg("Failed to invoke tool on MCP server")
		return nil, fmt.Errorf("failed to invoke tool %s: %w", name, err)
	}

	return toolResultMap(result), nil
}

// Close closes the connection to the MCP server.
func (c *StdioMCPClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}
