package gemini

import (
	"testing"

	"github.com/samshapley/ancientgrok/llm"
)

func TestToContentsRoleMapping(t *testing.T) {
	msgs := []llm.Message{
		llm.NewTextMessage(llm.RoleUser, "translate this"),
		llm.NewTextMessage(llm.RoleAssistant, "done"),
	}

	contents := ToContents(msgs)

	if len(contents) != 2 {
		t.Fatalf("Expected 2 contents, got %d", len(contents))
	}
	if contents[0].Role != "user" {
		t.Errorf("Expected role user, got %s", contents[0].Role)
	}
	if contents[1].Role != "model" {
		t.Errorf("Expected role model, got %s", contents[1].Role)
	}
	if contents[0].Parts[0].Text != "translate this" {
		t.Errorf("Expected text 'translate this', got %s", contents[0].Parts[0].Text)
	}
}

func TestToContentsToolResult(t *testing.T) {
	msgs := []llm.Message{
		llm.NewToolResultMessage([]llm.ToolResultBlock{
			{
				ID:      "call_search_artifacts_0",
				Content: "3 tablets found",
			},
		}),
	}

	contents := ToContents(msgs)

	if len(contents) != 1 {
		t.Fatalf("Expected 1 content, got %d", len(contents))
	}
	part := contents[0].Parts[0]
	if part.FunctionResponse == nil {
		t.Fatal("Expected a function response part")
	}
	if part.FunctionResponse.Name != "search_artifacts" {
		t.Errorf("Expected function name search_artifacts, got %s", part.FunctionResponse.Name)
	}
	if part.FunctionResponse.Response["result"] != "3 tablets found" {
		t.Errorf("Expected result '3 tablets found', got %v", part.FunctionResponse.Response["result"])
	}
}

func TestToToolConfig(t *testing.T) {
	cfg := ToToolConfig(llm.ForceTool("record_translation"))
	if cfg == nil {
		t.Fatal("Expected a tool config")
	}
	if cfg.FunctionCallingConfig.Mode != "ANY" {
		t.Errorf("Expected mode ANY, got %s", cfg.FunctionCallingConfig.Mode)
	}
	if len(cfg.FunctionCallingConfig.AllowedFunctionNames) != 1 ||
		cfg.FunctionCallingConfig.AllowedFunctionNames[0] != "record_translation" {
		t.Errorf("Expected allowed names [record_translation], got %v", cfg.FunctionCallingConfig.AllowedFunctionNames)
	}

	if ToToolConfig(nil) != nil {
		t.Error("Expected nil config for nil choice")
	}
}

func TestFromCandidate(t *testing.T) {
	candidate := Candidate{
		Content: &Content{
			Role: "model",
			Parts: []Part{
				{Text: "The king of all lands"},
				{FunctionCall: &FunctionCall{
					Name: "record_translation",
					Args: map[string]interface{}{"translation": "The king of all lands"},
				}},
			},
		},
		FinishReason: "STOP",
	}

	content := FromCandidate(candidate)

	if len(content) != 2 {
		t.Fatalf("Expected 2 content blocks, got %d", len(content))
	}
	if content[0].Type != llm.ContentBlockTypeText {
		t.Errorf("Expected text block, got %s", content[0].Type)
	}
	if content[1].Type != llm.ContentBlockTypeToolUse {
		t.Errorf("Expected tool use block, got %s", content[1].Type)
	}
	if content[1].ToolUse.Name != "record_translation" {
		t.Errorf("Expected tool record_translation, got %s", content[1].ToolUse.Name)
	}
	if content[1].ToolUse.ID != "call_record_translation_1" {
		t.Errorf("Expected generated call ID, got %s", content[1].ToolUse.ID)
	}
}

func TestConvertFinishReason(t *testing.T) {
	if got := convertFinishReason("STOP"); got != "stop" {
		t.Errorf("Expected stop, got %s", got)
	}
	if got := convertFinishReason("MAX_TOKENS"); got != "max_tokens" {
		t.Errorf("Expected max_tokens, got %s", got)
	}
}
