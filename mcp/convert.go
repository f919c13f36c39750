package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// inputSchemaMap flattens an mcp-go tool input schema into the generic map
// shape ToolDefinition carries.
func inputSchemaMap(tool mcp.Tool) map[string]interface{} {
	inputSchema := make(map[string]interface{})
	inputSchema["type"] = tool.InputSchema.Type
	if tool.InputSchema.Properties != nil {
		inputSchema["properties"] = tool.InputSchema.Properties
	}
	if len(tool.InputSchema.Required) > 0 {
		inputSchema["required"] = tool.InputSchema.Required
	}
	if len(tool.InputSchema.Defs) > 0 {
		inputSchema["$defs"] = tool.InputSchema.Defs
	}
	return inputSchema
}

// toolResultMap converts a call result into the map handed back to the model.
// Text content collapses to a single string when there is only one block.
func toolResultMap(result *mcp.CallToolResult) map[string]interface{} {
	output := make(map[string]interface{})
	if len(result.Content) > 0 {
		var texts []string
		for _, content := range result.Content {
			if textContent, ok := mcp.AsTextContent(content); ok {
				texts = append(texts, textContent.Text)
			} else {
				if contentStr := mcp.GetTextFromContent(content); contentStr != "" {
					texts = append(texts, contentStr)
				}
			}
		}
		if len(texts) > 0 {
			if len(texts) == 1 {
				output["text"] = texts[0]
			} else {
				output["text"] = texts
			}
		}
	}

	if result.IsError {
		output["error"] = true
		if len(result.Content) > 0 {
			if textContent, ok := mcp.AsTextContent(result.Content[0]); ok {
				output["error_message"] = textContent.Text
			}
		}
	}

	return output
}
