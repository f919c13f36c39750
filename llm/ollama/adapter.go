package ollama

import (
	"fmt"
	"strings"

	"github.com/ollama/ollama/api"
	"github.com/samshapley/ancientgrok/llm"
)

// validateAndConvertToolArguments validates required parameters and converts
// argument values to their proper types based on the tool schema. Local models
// are looser about argument types than hosted APIs, so string "5" for an
// integer parameter is coerced rather than rejected.
func validateAndConvertToolArguments(toolName string, args map[string]interface{}, schema llm.ToolSchema) (api.ToolCallFunctionArguments, error) {
	result := make(api.ToolCallFunctionArguments)

	// Check that all required parameters are present and non-empty
	for _, reqParam := range schema.Required {
		val, exists := args[reqParam]
		if !exists {
			// Build helpful error message showing what was provided
			providedKeys := make([]string, 0, len(args))
			for k := range args {
				providedKeys = append(providedKeys, k)
			}
			return nil, fmt.Errorf("missing required parameter '%s' for tool '%s' (provided: %v)", reqParam, toolName, providedKeys)
		}
		if isEmptyValue(val) {
			return nil, fmt.Errorf("required parameter '%s' for tool '%s' cannot be empty", reqParam, toolName)
		}
	}

	// Convert arguments based on schema types
	properties := schema.Properties
	if properties == nil {
		properties = make(map[string]interface{})
	}

	for k, v := range args {
		// Get the property schema for this parameter
		propSchema, exists := properties[k]
		if !exists {
			// Parameter not in schema, pass through as-is
			result[k] = v
			continue
		}

		// Extract type from property schema
		propType := getPropertyType(propSchema)

		// Convert value to the correct type
		converted, err := convertValueToType(v, propType, k)
		if err != nil {
			return nil, fmt.Errorf("failed to convert parameter '%s' for tool '%s': %w", k, toolName, err)
		}

		result[k] = converted
	}

	return result, nil
}

// isEmptyValue checks if a value is considered empty (nil, empty string, empty array, etc.)
func isEmptyValue(v interface{}) bool {
	if v == nil {
		return true
	}

	switch val := v.(type) {
	case string:
		return val == ""
	case []interface{}:
		return len(val) == 0
	case []string:
		return len(val) == 0
	case map[string]interface{}:
		return len(val) == 0
	}

	return false
}

// getPropertyType extracts the type from a property schema definition
func getPropertyType(propSchema interface{}) string {
	if propMap, ok := propSchema.(map[string]interface{}); ok {
		if propType, ok := propMap["type"].(string); ok {
			return propType
		}
	}
	return "string" // Default type
}

// convertValueToType converts a value to the specified type
func convertValueToType(v interface{}, targetType, paramName string) (interface{}, error) {
	switch targetType {
	case "integer", "int":
		return convertToInteger(v, paramName)
	case "number", "float":
		return convertToNumber(v, paramName)
	case "boolean", "bool":
		return convertToBoolean(v, paramName)
	case "string":
		return convertToString(v), nil
	case "array":
		return v, nil
	case "object":
		return v, nil
	default:
		// Unknown type, pass through
		return v, nil
	}
}

// convertToInteger converts a value to an integer
func convertToInteger(v interface{}, paramName string) (interface{}, error) {
	switch val := v.(type) {
	case int:
		return val, nil
	case int64:
		return int(val), nil
	case float64:
		return int(val), nil
	case string:
		// Try to parse string as integer
		var i int
		if _, err := fmt.Sscanf(val, "%d", &i); err != nil {
			return nil, fmt.Errorf("parameter '%s': cannot convert '%s' to integer", paramName, val)
		}
		return i, nil
	default:
		return nil, fmt.Errorf("parameter '%s': cannot convert %T to integer", paramName, v)
	}
}

// convertToNumber converts a value to a float64
func convertToNumber(v interface{}, paramName string) (interface{}, error) {
	switch val := v.(type) {
	case float64:
		return val, nil
	case int:
		return float64(val), nil
	case int64:
		return float64(val), nil
	case string:
		var f float64
		if _, err := fmt.Sscanf(val, "%f", &f); err != nil {
			return nil, fmt.Errorf("parameter '%s': cannot convert '%s' to number", paramName, val)
		}
		return f, nil
	default:
		return nil, fmt.Errorf("parameter '%s': cannot convert %T to number", paramName, v)
	}
}

// convertToBoolean converts a value to a boolean
func convertToBoolean(v interface{}, paramName string) (interface{}, error) {
	switch val := v.(type) {
	case bool:
		return val, nil
	case string:
		switch strings.ToLower(val) {
		case "true", "1", "yes", "on":
			return true, nil
		case "false", "0", "no", "off":
			return false, nil
		default:
			return nil, fmt.Errorf("parameter '%s': cannot convert '%s' to boolean", paramName, val)
		}
	case int:
		return val != 0, nil
	default:
		return nil, fmt.Errorf("parameter '%s': cannot convert %T to boolean", paramName, v)
	}
}

// convertToString converts a value to a string
func convertToString(v interface{}) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%v", v)
}

// ToOllamaMessages converts llm.Messages to Ollama chat message format.
// It optionally accepts tool specs for validating and converting tool arguments.
func ToOllamaMessages(msgs []llm.Message, toolSpecs ...[]llm.ToolSpec) ([]api.Message, error) {
	var toolSpecMap map[string]llm.ToolSpec
	if len(toolSpecs) > 0 && len(toolSpecs[0]) > 0 {
		toolSpecMap = make(map[string]llm.ToolSpec)
		for _, spec := range toolSpecs[0] {
			toolSpecMap[spec.Name] = spec
		}
	}

	result := make([]api.Message, 0, len(msgs))
	for _, msg := range msgs {
		ollamaMsg, err := ToOllamaMessage(msg, toolSpecMap)
		if err != nil {
			return nil, fmt.Errorf("failed to convert message: %w", err)
		}
		result = append(result, ollamaMsg)
	}
	return result, nil
}

// ToOllamaMessage converts a single llm.Message to Ollama format.
// toolSpecMap is optional and used for validating/converting tool arguments.
func ToOllamaMessage(msg llm.Message, toolSpecMap map[string]llm.ToolSpec) (api.Message, error) {
	// Convert content blocks to Ollama format
	// Ollama messages can have text content or tool calls
	var content string
	var toolCalls []api.ToolCall

	for _, block := range msg.Content {
		switch block.Type {
		case llm.ContentBlockTypeText:
			if content != "" {
				content += "\n"
			}
			content += block.Text
		case llm.ContentBlockTypeToolUse:
			if block.ToolUse != nil {
				var args api.ToolCallFunctionArguments

				if spec, ok := lookupSpec(toolSpecMap, block.ToolUse.Name); ok {
					// Validate and convert arguments using schema
					convertedArgs, err := validateAndConvertToolArguments(
						block.ToolUse.Name,
						block.ToolUse.Input,
						spec.Schema,
					)
					if err != nil {
						return api.Message{}, fmt.Errorf("tool argument validation failed: %w", err)
					}
					args = convertedArgs
				} else {
					// No schema found, pass through as-is
					args = make(api.ToolCallFunctionArguments)
					if block.ToolUse.Input != nil {
						for k, v := range block.ToolUse.Input {
							args[k] = v
						}
					}
				}

				toolCalls = append(toolCalls, api.ToolCall{
					Function: api.ToolCallFunction{
						Name:      block.ToolUse.Name,
						Arguments: args,
					},
				})
			}
		case llm.ContentBlockTypeToolResult:
			// Tool results are typically sent as separate user messages in Ollama
			// We'll handle this at a higher level if needed
			if block.ToolResult != nil {
				if content != "" {
					content += "\n"
				}
				content += block.ToolResult.Content
			}
		}
	}

	return api.Message{
		Role:      string(msg.Role),
		Content:   content,
		ToolCalls: toolCalls,
	}, nil
}

func lookupSpec(toolSpecMap map[string]llm.ToolSpec, name string) (llm.ToolSpec, bool) {
	if toolSpecMap == nil {
		return llm.ToolSpec{}, false
	}
	spec, ok := toolSpecMap[name]
	return spec, ok
}

// FromOllamaMessage converts an Ollama message to llm.Message.
func FromOllamaMessage(msg *api.Message) (llm.Message, error) {
	var role llm.MessageRole
	switch msg.Role {
	case "user":
		role = llm.RoleUser
	case "assistant":
		role = llm.RoleAssistant
	case "system":
		role = llm.RoleSystem
	default:
		role = llm.RoleUser // Default fallback
	}

	content := make([]llm.ContentBlock, 0)

	// Add text content if present
	if msg.Content != "" {
		content = append(content, llm.ContentBlock{
			Type: llm.ContentBlockTypeText,
			Text: msg.Content,
		})
	}

	// Add tool calls if present
	for _, toolCall := range msg.ToolCalls {
		// Arguments is already a map[string]any (ToolCallFunctionArguments)
		input := make(map[string]interface{})
		if toolCall.Function.Arguments != nil {
			for k, v := range toolCall.Function.Arguments {
				input[k] = v
			}
		}

		// Generate a tool use ID (Ollama doesn't provide one, so we use the function name + index)
		toolUseID := fmt.Sprintf("call_%s_%d", toolCall.Function.Name, len(content))

		content = append(content, llm.ContentBlock{
			Type: llm.ContentBlockTypeToolUse,
			ToolUse: &llm.ToolUseBlock{
				ID:    toolUseID,
				Name:  toolCall.Function.Name,
				Input: input,
			},
		})
	}

	return llm.Message{
		Role:    role,
		Content: content,
	}, nil
}

// ToOllamaTools converts llm.ToolSpecs to Ollama function format.
// Ollama uses a JSON schema format for function definitions.
func ToOllamaTools(specs []llm.ToolSpec) ([]api.Tool, error) {
	result := make([]api.Tool, 0, len(specs))
	for _, spec := range specs {
		tool, err := ToOllamaTool(&spec)
		if err != nil {
			return nil, fmt.Errorf("failed to convert tool %s: %w", spec.Name, err)
		}
		result = append(result, tool)
	}
	return result, nil
}

// ToOllamaTool converts a single llm.ToolSpec to Ollama Tool format.
func ToOllamaTool(spec *llm.ToolSpec) (api.Tool, error) {
	// Convert Properties from map[string]interface{} to map[string]ToolProperty.
	// Only the type field is carried over; Ollama ignores the rest of the schema.
	properties := make(map[string]api.ToolProperty)
	if spec.Schema.Properties != nil {
		for k, v := range spec.Schema.Properties {
			if propMap, ok := v.(map[string]interface{}); ok {
				toolProp := api.ToolProperty{}
				if propType, ok := propMap["type"].(string); ok {
					toolProp.Type = []string{propType}
				}
				properties[k] = toolProp
			} else {
				// Fallback: create a basic property
				properties[k] = api.ToolProperty{
					Type: []string{"string"}, // Default type
				}
			}
		}
	}

	parameters := api.ToolFunctionParameters{
		Type:       spec.Schema.Type,
		Properties: properties,
		Required:   spec.Schema.Required,
	}

	// Create Ollama function definition
	function := api.ToolFunction{
		Name:        spec.Name,
		Description: spec.Description,
		Parameters:  parameters,
	}

	return api.Tool{
		Type:     "function",
		Function: function,
	}, nil
}

// FromOllamaToolCall converts an Ollama tool call response to llm.ToolUseBlock.
func FromOllamaToolCall(toolCall api.ToolCall) (*llm.ToolUseBlock, error) {
	// Arguments is already a map[string]any (ToolCallFunctionArguments)
	input := make(map[string]interface{})
	if toolCall.Function.Arguments != nil {
		for k, v := range toolCall.Function.Arguments {
			input[k] = v
		}
	}

	// Generate ID (Ollama doesn't provide one in the response)
	toolUseID := fmt.Sprintf("tool_%s", toolCall.Function.Name)

	return &llm.ToolUseBlock{
		ID:    toolUseID,
		Name:  toolCall.Function.Name,
		Input: input,
	}, nil
}
