package openai

import (
	"strings"
	"testing"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	"github.com/samshapley/ancientgrok/translate"
)

func testBackend(t *testing.T) *Backend {
	t.Helper()
	b, err := NewBackend("test-key", "", Options{Model: "gpt-4o", MaxTokens: 512}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewBackend failed: %v", err)
	}
	return b
}

func TestJobStatus(t *testing.T) {
	output := "file-out"

	tests := []struct {
		name  string
		batch openai.Batch
		want  translate.JobState
	}{
		{
			name: "validating maps to pending",
			batch: openai.Batch{
				Status:        "validating",
				RequestCounts: openai.BatchRequestCounts{Total: 10},
			},
			want: translate.JobStatePending,
		},
		{
			name: "in progress maps to running",
			batch: openai.Batch{
				Status:        "in_progress",
				RequestCounts: openai.BatchRequestCounts{Total: 10, Completed: 4, Failed: 1},
			},
			want: translate.JobStateRunning,
		},
		{
			name: "completed with clean counts",
			batch: openai.Batch{
				Status:        "completed",
				OutputFileID:  &output,
				RequestCounts: openai.BatchRequestCounts{Total: 10, Completed: 10},
			},
			want: translate.JobStateSucceeded,
		},
		{
			name: "completed with failures",
			batch: openai.Batch{
				Status:        "completed",
				OutputFileID:  &output,
				RequestCounts: openai.BatchRequestCounts{Total: 10, Completed: 7, Failed: 3},
			},
			want: translate.JobStatePartiallyFailed,
		},
		{
			name: "completed with zero successes",
			batch: openai.Batch{
				Status:        "completed",
				RequestCounts: openai.BatchRequestCounts{Total: 10, Failed: 10},
			},
			want: translate.JobStateFailed,
		},
		{
			name:  "expired is a hard failure",
			batch: openai.Batch{Status: "expired"},
			want:  translate.JobStateFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status := jobStatus(tt.batch)
			if status.State != tt.want {
				t.Errorf("Expected state %s, got %s", tt.want, status.State)
			}
		})
	}
}

func TestJobStatusPendingCount(t *testing.T) {
	status := jobStatus(openai.Batch{
		Status:        "in_progress",
		RequestCounts: openai.BatchRequestCounts{Total: 10, Completed: 4, Failed: 1},
	})
	if status.Succeeded != 4 {
		t.Errorf("Expected 4 succeeded, got %d", status.Succeeded)
	}
	if status.Errored != 1 {
		t.Errorf("Expected 1 errored, got %d", status.Errored)
	}
	if status.Pending != 5 {
		t.Errorf("Expected 5 pending, got %d", status.Pending)
	}
}

func TestParseLineToolCall(t *testing.T) {
	raw := `{
		"id": "batch_req_1",
		"custom_id": "trans_0",
		"response": {
			"status_code": 200,
			"request_id": "req_abc",
			"body": {
				"id": "chatcmpl-9",
				"choices": [{
					"message": {
						"role": "assistant",
						"tool_calls": [{
							"id": "call_xyz",
							"type": "function",
							"function": {
								"name": "translate_text",
								"arguments": "{\"translation\": \"five bushels of barley\", \"confidence\": \"medium\", \"notes\": \"\"}"
							}
						}]
					}
				}],
				"usage": {"prompt_tokens": 88, "completion_tokens": 14}
			}
		}
	}`

	item, err := parseLine([]byte(raw))
	if err != nil {
		t.Fatalf("parseLine failed: %v", err)
	}
	if item.CustomID != "trans_0" {
		t.Errorf("Expected custom id trans_0, got %s", item.CustomID)
	}
	if item.Result.IsError() {
		t.Fatalf("Expected success, got error result: %s", item.Result.Notes)
	}
	if item.Result.Translation != "five bushels of barley" {
		t.Errorf("Unexpected translation: %s", item.Result.Translation)
	}
	if item.Result.Confidence != translate.ConfidenceMedium {
		t.Errorf("Expected medium confidence, got %s", item.Result.Confidence)
	}
	if item.Result.Usage.InputTokens != 88 || item.Result.Usage.OutputTokens != 14 {
		t.Errorf("Unexpected usage: %+v", item.Result.Usage)
	}
	if item.Result.NativeID != "chatcmpl-9" {
		t.Errorf("Expected native id chatcmpl-9, got %s", item.Result.NativeID)
	}
}

func TestParseLineErrorEntry(t *testing.T) {
	raw := `{
		"id": "batch_req_2",
		"custom_id": "trans_1",
		"error": {"code": "rate_limit_exceeded", "message": "too many tokens"}
	}`

	item, err := parseLine([]byte(raw))
	if err != nil {
		t.Fatalf("parseLine failed: %v", err)
	}
	if item.CustomID != "trans_1" {
		t.Errorf("Expected custom id trans_1, got %s", item.CustomID)
	}
	if !item.Result.IsError() {
		t.Fatal("Expected error result")
	}
	if item.Result.Notes != "Batch error: rate_limit_exceeded: too many tokens" {
		t.Errorf("Unexpected notes: %s", item.Result.Notes)
	}
}

func TestParseLineHTTPError(t *testing.T) {
	raw := `{
		"custom_id": "trans_2",
		"response": {"status_code": 400, "body": {}}
	}`

	item, err := parseLine([]byte(raw))
	if err != nil {
		t.Fatalf("parseLine failed: %v", err)
	}
	if !item.Result.IsError() {
		t.Fatal("Expected error result")
	}
	if item.Result.Notes != "Batch error: HTTP 400" {
		t.Errorf("Unexpected notes: %s", item.Result.Notes)
	}
}

func TestParseLineNoToolCall(t *testing.T) {
	raw := `{
		"custom_id": "trans_3",
		"response": {
			"status_code": 200,
			"body": {
				"id": "chatcmpl-10",
				"choices": [{"message": {"role": "assistant", "content": "I cannot translate this."}}]
			}
		}
	}`

	item, err := parseLine([]byte(raw))
	if err != nil {
		t.Fatalf("parseLine failed: %v", err)
	}
	if !item.Result.IsError() {
		t.Fatal("Expected error result")
	}
	if item.Result.Notes != "No translate_text tool call in batch response" {
		t.Errorf("Unexpected notes: %s", item.Result.Notes)
	}
}

func TestBuildChatRequest(t *testing.T) {
	b := testBackend(t)

	body, err := b.buildChatRequest(translate.TranslationRequest{ID: 0, SourceText: "lugal kur-kur-ra"})
	if err != nil {
		t.Fatalf("buildChatRequest failed: %v", err)
	}

	if body.Model != "gpt-4o" {
		t.Errorf("Expected model gpt-4o, got %s", body.Model)
	}
	if body.MaxTokens != 512 {
		t.Errorf("Expected max tokens 512, got %d", body.MaxTokens)
	}
	if len(body.Messages) != 2 {
		t.Fatalf("Expected 2 messages, got %d", len(body.Messages))
	}
	if body.Messages[0].Role != openai.ChatMessageRoleSystem {
		t.Errorf("Expected first message to be system, got %s", body.Messages[0].Role)
	}
	if !strings.HasSuffix(body.Messages[1].Content, translate.ToolNudge) {
		t.Error("Expected user message to end with the tool nudge")
	}
	if len(body.Tools) != 1 || body.Tools[0].Function.Name != translate.ToolName {
		t.Errorf("Expected a single translate_text tool, got %+v", body.Tools)
	}

	choice, ok := body.ToolChoice.(openai.ToolChoice)
	if !ok {
		t.Fatalf("Expected a forced tool choice object, got %T", body.ToolChoice)
	}
	if choice.Function.Name != translate.ToolName {
		t.Errorf("Expected forced translate_text, got %s", choice.Function.Name)
	}
}
