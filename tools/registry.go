package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"
)

// ToolHandler handles a tool call for a specific assistant.
type ToolHandler func(ctx context.Context, assistantID string, args json.RawMessage) (any, error)

// Registry maps tool names to handlers.
type Registry struct {
	handlers map[string]ToolHandler
	logger   zerolog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger zerolog.Logger) *Registry {
	logger = logger.With().Str("component", "tool_registry").Logger()
	logger.Info().Msg("Creating new tool Registry")
	return &Registry{
		handlers: make(map[string]ToolHandler),
		logger:   logger,
	}
}

// Register registers a handler for a tool name.
func (r *Registry) Register(name string, h ToolHandler) {
	r.logger.Debug().Str("name", name).Msg("Registering tool handler")
	r.handlers[name] = h
}

// Handle dispatches a tool call.
func (r *Registry) Handle(ctx context.Context, toolName, assistantID string, argsStr []byte) (any, error) {
	r.logger.Info().Str("tool", toolName).Str("assistantID", assistantID).Msg("Handling tool call")
	args := json.RawMessage(argsStr)
	h, ok := r.handlers[toolName]
	if !ok {
		r.logger.Error().Str("tool", toolName).Msg("Unknown tool requested")
		return nil, fmt.Errorf("unknown tool: %s", toolName)
	}

	// Log arguments (pretty-printed if possible)
	var prettyArgs interface{}
	if err := json.Unmarshal(argsStr, &prettyArgs); err == nil {
		if prettyBytes, err := json.MarshalIndent(prettyArgs, "", "  "); err == nil {
			r.logger.Debug().Str("tool", toolName).Str("args", string(prettyBytes)).Msg("Tool called with arguments")
		}
	}

	result, err := h(ctx, assistantID, args)

	// Log result or error
	if err != nil {
		r.logger.Warn().Str("tool", toolName).Str("assistantID", assistantID).Err(err).Msg("Tool returned error")
	} else {
		if resultBytes, e := json.MarshalIndent(result, "", "  "); e == nil {
			strResult := string(resultBytes)
			if len(strResult) > 500 {
				strResult = strResult[:500] + "... (truncated)"
			}
			r.logger.Info().Str("tool", toolName).Str("assistantID", assistantID).Str("result", strResult).Msg("Tool returned result")
		} else {
			r.logger.Info().Str("tool", toolName).Str("assistantID", assistantID).Interface("result", result).Msg("Tool returned result (non-jsonable)")
		}
	}

	return result, err
}

// MCPToolInvoker represents something that can invoke an MCP tool.
type MCPToolInvoker interface {
	InvokeTool(ctx context.Context, originalName string, input map[string]interface{}) (map[string]interface{}, error)
}

// RegisterMCPTool registers a tool whose implementation is provided by an MCP client.
// safeName is the tool name safe for provider tool-use APIs (no dots).
// originalName is the original MCP tool name (may contain dots).
func (r *Registry) RegisterMCPTool(safeName, originalName string, invoker MCPToolInvoker) {
	r.logger.Debug().Str("safeName", safeName).Str("originalName", originalName).Msg("Registering MCP tool")
	// TODO: update all r.Register commands to provide a logger with the tool name and assistantID already set
	r.Register(safeName, func(ctx context.Context, assistantID string, args json.RawMessage) (any, error) {
		r.logger.Info().Str("safeName", safeName).Str("originalName", originalName).Str("assistantID", assistantID).Msg("Calling MCP tool")

		// Unmarshal args to map[string]interface{}
		var input map[string]interface{}
		if err := json.Unmarshal(args, &input); err != nil {
			r.logger.Error().Err(err).Msg("Failed to unmarshal MCP tool args")
			return nil, fmt.Errorf("failed to unmarshal tool arguments: %w", err)
		}

		// Invoke the tool using the original name
		result, err := invoker.InvokeTool(ctx, originalName, input)
		if err != nil {
			r.logger.Error().Str("safeName", safeName).Str("originalName", originalName).Err(err).Msg("MCP tool call failed")
			return nil, err
		}

		r.logger.Debug().Str("safeName", safeName).Str("originalName", originalName).Interface("result", result).Msg("MCP tool returned result")
		return result, nil
	})
}
