package gemini

import (
	"fmt"

	"github.com/samber/lo"
	"github.com/samshapley/ancientgrok/llm"
)

// ToContents converts llm.Messages to Gemini content turns.
// Gemini uses "model" for the assistant role and carries tool results as
// functionResponse parts inside user turns.
func ToContents(msgs []llm.Message) []Content {
	contents := make([]Content, 0, len(msgs))
	for _, msg := range msgs {
		role := "user"
		if msg.Role == llm.RoleAssistant {
			role = "model"
		}

		parts := make([]Part, 0, len(msg.Content))
		for _, block := range msg.Content {
			switch block.Type {
			case llm.ContentBlockTypeText:
				parts = append(parts, Part{Text: block.Text})
			case llm.ContentBlockTypeToolUse:
				if block.ToolUse != nil {
					parts = append(parts, Part{
						FunctionCall: &FunctionCall{
							Name: block.ToolUse.Name,
							Args: block.ToolUse.Input,
						},
					})
				}
			case llm.ContentBlockTypeToolResult:
				if block.ToolResult != nil {
					// Gemini expects a structured response object; wrap the
					// serialized result under a fixed key
					parts = append(parts, Part{
						FunctionResponse: &FunctionResponse{
							Name: functionNameForResult(block.ToolResult.ID),
							Response: map[string]interface{}{
								"result":   block.ToolResult.Content,
								"is_error": block.ToolResult.IsError,
							},
						},
					})
				}
			}
		}

		if len(parts) == 0 {
			continue
		}
		contents = append(contents, Content{Role: role, Parts: parts})
	}
	return contents
}

// functionNameForResult recovers the function name from a generated tool use ID.
// IDs are minted as "call_<name>_<n>" because Gemini has no tool call IDs of its own.
func functionNameForResult(id string) string {
	name := id
	if len(name) > 5 && name[:5] == "call_" {
		name = name[5:]
		// Trim the trailing _<n> counter
		for i := len(name) - 1; i >= 0; i-- {
			if name[i] == '_' {
				name = name[:i]
				break
			}
			if name[i] < '0' || name[i] > '9' {
				break
			}
		}
	}
	return name
}

// ToTools converts llm.ToolSpecs into a Gemini tool declaration list.
func ToTools(specs []llm.ToolSpec) []Tool {
	if len(specs) == 0 {
		return nil
	}
	decls := lo.Map(specs, func(spec llm.ToolSpec, _ int) FunctionDeclaration {
		params := map[string]interface{}{
			"type": spec.Schema.Type,
		}
		if len(spec.Schema.Properties) > 0 {
			params["properties"] = spec.Schema.Properties
		}
		if len(spec.Schema.Required) > 0 {
			params["required"] = spec.Schema.Required
		}
		return FunctionDeclaration{
			Name:        spec.Name,
			Description: spec.Description,
			Parameters:  params,
		}
	})
	return []Tool{{FunctionDeclarations: decls}}
}

// ToToolConfig maps a provider-neutral tool choice to Gemini's function
// calling config. Forcing a named tool uses mode ANY restricted to that name.
func ToToolConfig(choice *llm.ToolChoice) *ToolConfig {
	if choice == nil {
		return nil
	}
	switch choice.Type {
	case llm.ToolChoiceTool:
		return &ToolConfig{
			FunctionCallingConfig: &FunctionCallingConfig{
				Mode:                 "ANY",
				AllowedFunctionNames: []string{choice.Name},
			},
		}
	case llm.ToolChoiceAny:
		return &ToolConfig{
			FunctionCallingConfig: &FunctionCallingConfig{Mode: "ANY"},
		}
	default:
		return &ToolConfig{
			FunctionCallingConfig: &FunctionCallingConfig{Mode: "AUTO"},
		}
	}
}

// FromCandidate converts a response candidate into provider-neutral content blocks.
// Tool call IDs are generated since Gemini does not assign them.
func FromCandidate(candidate Candidate) []llm.ContentBlock {
	content := make([]llm.ContentBlock, 0, len(candidate.Content.Parts))
	for _, part := range candidate.Content.Parts {
		if part.Text != "" {
			content = append(content, llm.ContentBlock{
				Type: llm.ContentBlockTypeText,
				Text: part.Text,
			})
		}
		if part.FunctionCall != nil {
			input := part.FunctionCall.Args
			if input == nil {
				input = make(map[string]interface{})
			}
			content = append(content, llm.ContentBlock{
				Type: llm.ContentBlockTypeToolUse,
				ToolUse: &llm.ToolUseBlock{
					ID:    fmt.Sprintf("call_%s_%d", part.FunctionCall.Name, len(content)),
					Name:  part.FunctionCall.Name,
					Input: input,
				},
			})
		}
	}
	return content
}

// convertFinishReason maps Gemini finish reasons to provider-neutral stop reasons.
func convertFinishReason(reason string) string {
	switch reason {
	case "STOP":
		return "stop"
	case "MAX_TOKENS":
		return "max_tokens"
	default:
		return "stop"
	}
}
