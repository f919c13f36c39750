package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/samshapley/ancientgrok/config"
	"github.com/samshapley/ancientgrok/llm"
)

// fakeToolExecutor fails every call with the same error.
type fakeToolExecutor struct {
	calls int
	err   error
}

func (f *fakeToolExecutor) Handle(ctx context.Context, toolName, assistantID string, inputJSON []byte) (any, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return map[string]any{"ok": true}, nil
}

func TestBuildToolResultBlocksDedup(t *testing.T) {
	results := []*toolExecutionResult{
		{ToolID: "tool_1", ToolName: "search_cdli", ResultJSON: `{"hits":3}`},
		{ToolID: "tool_1", ToolName: "search_cdli", ResultJSON: `{"hits":3}`},
		{ToolID: "tool_2", ToolName: "get_inscription", ResultJSON: `{"atf":"..."}`, IsError: true},
	}

	blocks := buildToolResultBlocks(results)
	if len(blocks) != 2 {
		t.Fatalf("expected 2 deduplicated blocks, got %d", len(blocks))
	}
	if blocks[0].ToolResult.ID != "tool_1" || blocks[1].ToolResult.ID != "tool_2" {
		t.Errorf("unexpected block order: %q, %q", blocks[0].ToolResult.ID, blocks[1].ToolResult.ID)
	}
	if !blocks[1].ToolResult.IsError {
		t.Error("error flag should survive dedup")
	}
}

func TestExecuteSingleToolErrorBecomesPayload(t *testing.T) {
	exec := &fakeToolExecutor{err: errors.New("tablet not found")}
	tlc := newToolLoopContext(context.Background(), "scribe", "thread-1", exec, nil, zerolog.Nop())

	result, err := tlc.executeSingleTool(&llm.ToolUseBlock{
		ID:    "tool_1",
		Name:  "get_tablet_details",
		Input: map[string]any{"tablet_id": "P000001"},
	})
	if err != nil {
		t.Fatalf("first failure should be returned to the model, not abort the loop: %v", err)
	}
	if !result.IsError {
		t.Error("result should be flagged as error")
	}
	if result.ResultJSON != `{"error":"tablet not found"}` {
		t.Errorf("unexpected error payload: %s", result.ResultJSON)
	}
}

func TestExecuteSingleToolRepeatedFailureBreaksLoop(t *testing.T) {
	exec := &fakeToolExecutor{err: errors.New("boom")}
	tlc := newToolLoopContext(context.Background(), "scribe", "thread-1", exec, nil, zerolog.Nop())

	toolUse := &llm.ToolUseBlock{
		ID:    "tool_1",
		Name:  "read_file",
		Input: map[string]any{"path": "missing.txt"},
	}

	// The first maxRepeatedFailures-1 attempts surface the error to the model.
	for i := 0; i < maxRepeatedFailures-1; i++ {
		if _, err := tlc.executeSingleTool(toolUse); err != nil {
			t.Fatalf("attempt %d should not abort: %v", i+1, err)
		}
	}

	result, err := tlc.executeSingleTool(toolUse)
	if err == nil {
		t.Fatal("expected repeated-failure error")
	}
	if result == nil || !result.RepeatedFailure {
		t.Fatal("result should be marked as repeated failure")
	}
	if exec.calls != maxRepeatedFailures {
		t.Errorf("expected %d executions, got %d", maxRepeatedFailures, exec.calls)
	}
}

func TestExecuteSingleToolSuccessResetsFailureCount(t *testing.T) {
	exec := &fakeToolExecutor{err: errors.New("flaky")}
	tlc := newToolLoopContext(context.Background(), "scribe", "thread-1", exec, nil, zerolog.Nop())

	toolUse := &llm.ToolUseBlock{
		ID:    "tool_1",
		Name:  "list_directory",
		Input: map[string]any{"path": "."},
	}

	if _, err := tlc.executeSingleTool(toolUse); err != nil {
		t.Fatalf("first failure: %v", err)
	}

	// A success clears the counter so later failures start over.
	exec.err = nil
	if _, err := tlc.executeSingleTool(toolUse); err != nil {
		t.Fatalf("success: %v", err)
	}

	exec.err = errors.New("flaky")
	for i := 0; i < maxRepeatedFailures-1; i++ {
		if _, err := tlc.executeSingleTool(toolUse); err != nil {
			t.Fatalf("failure %d after reset should not abort: %v", i+1, err)
		}
	}
	if _, err := tlc.executeSingleTool(toolUse); err == nil {
		t.Fatal("expected repeated-failure error after counter refilled")
	}
}

// stubToolProvider returns a fixed set of specs.
type stubToolProvider struct {
	specs []llm.ToolSpec
}

func (s *stubToolProvider) SpecsFor(assistant *config.AssistantConfig) []llm.ToolSpec {
	return s.specs
}

func TestPrepareLLMRequest(t *testing.T) {
	assistant := NewAssistant("scribe", &config.AssistantConfig{
		ID:        "scribe",
		System:    "You study cuneiform tablets.",
		MaxTokens: 4096,
	})
	provider := &stubToolProvider{specs: []llm.ToolSpec{{Name: "search_cdli"}}}

	history := []llm.Message{
		llm.NewTextMessage(llm.RoleUser, "earlier question"),
		llm.NewTextMessage(llm.RoleAssistant, "earlier answer"),
	}

	req := prepareLLMRequest(assistant, "claude-sonnet-4-5", "what is P000001?", history, provider)

	if req.Model != "claude-sonnet-4-5" {
		t.Errorf("model: got %q", req.Model)
	}
	if req.System != "You study cuneiform tablets." {
		t.Errorf("system: got %q", req.System)
	}
	if req.MaxTokens != 4096 {
		t.Errorf("max tokens: got %d", req.MaxTokens)
	}
	if len(req.Tools) != 1 || req.Tools[0].Name != "search_cdli" {
		t.Errorf("tools: got %+v", req.Tools)
	}
	if len(req.Messages) != 3 {
		t.Fatalf("expected history plus user message, got %d messages", len(req.Messages))
	}
	last := req.Messages[2]
	if last.Role != llm.RoleUser || last.Content[0].Text != "what is P000001?" {
		t.Errorf("last message should be the new user turn, got %+v", last)
	}
}

func TestRunnerMaxIterations(t *testing.T) {
	tests := []struct {
		name       string
		configured int
		want       int
	}{
		{name: "default", configured: 0, want: defaultMaxIterations},
		{name: "override", configured: 25, want: 25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &Runner{assistant: NewAssistant("scribe", &config.AssistantConfig{
				MaxIterations: tt.configured,
			})}
			if got := r.maxIterations(); got != tt.want {
				t.Errorf("maxIterations: got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestGetContextSize(t *testing.T) {
	messages := []llm.Message{
		llm.NewTextMessage(llm.RoleUser, "hello"),
		{
			Role: llm.RoleAssistant,
			Content: []llm.ContentBlock{
				{
					Type: llm.ContentBlockTypeToolUse,
					ToolUse: &llm.ToolUseBlock{
						ID:    "tool_1",
						Name:  "search_cdli",
						Input: map[string]any{"query": "lugal"},
					},
				},
			},
		},
		{
			Role: llm.RoleUser,
			Content: []llm.ContentBlock{
				{
					Type:       llm.ContentBlockTypeToolResult,
					ToolResult: &llm.ToolResultBlock{ID: "tool_1", Content: "results"},
				},
			},
		},
	}

	size := GetContextSize("system", messages)
	// system(6) + hello(5) + tool name(11) + input json {"query":"lugal"}(17) + results(7)
	want := 6 + 5 + 11 + 17 + 7
	if size != want {
		t.Errorf("context size: got %d, want %d", size, want)
	}
}
