package anthropic

import (
	"encoding/json"
	"strings"
	"testing"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/rs/zerolog"

	"github.com/samshapley/ancientgrok/translate"
)

func TestNewBackendRequiresKey(t *testing.T) {
	if _, err := NewBackend("", Options{Model: "claude-sonnet-4-5"}, zerolog.Nop()); err == nil {
		t.Fatal("Expected an error for a missing API key")
	}
}

// decodeEntry parses one batch results JSONL line the way the streaming
// client hands entries to mapResult.
func decodeEntry(t *testing.T, raw string) anthropic.MessageBatchIndividualResponse {
	t.Helper()
	var entry anthropic.MessageBatchIndividualResponse
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		t.Fatalf("Failed to decode batch entry: %v", err)
	}
	return entry
}

func TestMapResultToolCall(t *testing.T) {
	entry := decodeEntry(t, `{
		"custom_id": "trans_0",
		"result": {
			"type": "succeeded",
			"message": {
				"id": "msg_abc",
				"type": "message",
				"role": "assistant",
				"model": "claude-sonnet-4-5",
				"content": [{
					"type": "tool_use",
					"id": "toolu_1",
					"name": "translate_text",
					"input": {"translation": "king of all lands", "confidence": "high", "notes": "royal epithet"}
				}],
				"stop_reason": "tool_use",
				"usage": {"input_tokens": 25, "output_tokens": 11}
			}
		}
	}`)

	item := mapResult(entry)
	if item.CustomID != "trans_0" {
		t.Errorf("Expected custom id trans_0, got %q", item.CustomID)
	}
	if item.Result.Translation != "king of all lands" {
		t.Errorf("Unexpected translation: %q", item.Result.Translation)
	}
	if item.Result.Confidence != translate.ConfidenceHigh {
		t.Errorf("Expected high confidence, got %s", item.Result.Confidence)
	}
	if item.Result.Notes != "royal epithet" {
		t.Errorf("Unexpected notes: %q", item.Result.Notes)
	}
	if item.Result.Usage.InputTokens != 25 || item.Result.Usage.OutputTokens != 11 {
		t.Errorf("Unexpected usage: %+v", item.Result.Usage)
	}
	if item.Result.NativeID != "msg_abc" {
		t.Errorf("Expected native id msg_abc, got %q", item.Result.NativeID)
	}
}

func TestMapResultErroredEntry(t *testing.T) {
	entry := decodeEntry(t, `{
		"custom_id": "trans_1",
		"result": {
			"type": "errored",
			"error": {
				"type": "error",
				"error": {"type": "invalid_request_error", "message": "max_tokens exceeded"}
			}
		}
	}`)

	item := mapResult(entry)
	if item.CustomID != "trans_1" {
		t.Errorf("Expected custom id trans_1, got %q", item.CustomID)
	}
	if item.Result.Confidence != translate.ConfidenceError {
		t.Errorf("Expected error confidence, got %s", item.Result.Confidence)
	}
	if !strings.Contains(item.Result.Notes, "Batch error") {
		t.Errorf("Expected a batch error note, got %q", item.Result.Notes)
	}
}

func TestMapResultNoToolCall(t *testing.T) {
	entry := decodeEntry(t, `{
		"custom_id": "trans_2",
		"result": {
			"type": "succeeded",
			"message": {
				"id": "msg_x",
				"type": "message",
				"role": "assistant",
				"model": "claude-sonnet-4-5",
				"content": [{"type": "text", "text": "Sure, here is the translation."}],
				"stop_reason": "end_turn",
				"usage": {"input_tokens": 5, "output_tokens": 3}
			}
		}
	}`)

	item := mapResult(entry)
	if item.Result.Confidence != translate.ConfidenceError {
		t.Errorf("Expected error confidence, got %s", item.Result.Confidence)
	}
	if !strings.Contains(item.Result.Notes, "No translate_text tool call") {
		t.Errorf("Unexpected notes: %q", item.Result.Notes)
	}
}

func TestMapResultMalformedPayload(t *testing.T) {
	entry := decodeEntry(t, `{
		"custom_id": "trans_3",
		"result": {
			"type": "succeeded",
			"message": {
				"id": "msg_y",
				"type": "message",
				"role": "assistant",
				"model": "claude-sonnet-4-5",
				"content": [{
					"type": "tool_use",
					"id": "toolu_2",
					"name": "translate_text",
					"input": {"confidence": "high"}
				}],
				"stop_reason": "tool_use",
				"usage": {"input_tokens": 5, "output_tokens": 3}
			}
		}
	}`)

	item := mapResult(entry)
	if item.Result.Confidence != translate.ConfidenceError {
		t.Errorf("Expected error confidence, got %s", item.Result.Confidence)
	}
	if !strings.Contains(item.Result.Notes, "Malformed tool payload") {
		t.Errorf("Unexpected notes: %q", item.Result.Notes)
	}
}
