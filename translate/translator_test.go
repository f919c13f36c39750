package translate

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/samshapley/ancientgrok/llm"
)

// fakeLLM returns scripted responses per call, or a scripted error.
type fakeLLM struct {
	responses []*llm.Response
	errs      []error
	calls     int
	requests  []*llm.Request
}

func (f *fakeLLM) Synchronous(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	idx := f.calls
	f.calls++
	f.requests = append(f.requests, req)
	if idx < len(f.errs) && f.errs[idx] != nil {
		return nil, f.errs[idx]
	}
	if idx < len(f.responses) {
		return f.responses[idx], nil
	}
	return nil, errors.New("no scripted response")
}

func (f *fakeLLM) Stream(ctx context.Context, req *llm.Request) (llm.Stream, error) {
	return nil, errors.New("not implemented")
}

func toolResponse(translation, confidence string) *llm.Response {
	return &llm.Response{
		Content: []llm.ContentBlock{
			{
				Type: llm.ContentBlockTypeToolUse,
				ToolUse: &llm.ToolUseBlock{
					ID:   "tu_1",
					Name: ToolName,
					Input: map[string]interface{}{
						"translation": translation,
						"confidence":  confidence,
					},
				},
			},
		},
		Usage:      &llm.Usage{InputTokens: 100, OutputTokens: 20},
		StopReason: "tool_use",
	}
}

func TestTranslateOne(t *testing.T) {
	client := &fakeLLM{responses: []*llm.Response{toolResponse("king of all lands", "high")}}
	provider := NewProvider(client, nil, ProviderOptions{Model: "test-model"}, zerolog.Nop())

	res, err := provider.TranslateOne(context.Background(), TranslationRequest{ID: 3, SourceText: "lugal kur-kur-ra"})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if res.RequestID != 3 {
		t.Errorf("Expected request ID 3, got %d", res.RequestID)
	}
	if res.Translation != "king of all lands" {
		t.Errorf("Expected translation, got %q", res.Translation)
	}
	if res.Confidence != ConfidenceHigh {
		t.Errorf("Expected high confidence, got %s", res.Confidence)
	}
	if res.Usage.InputTokens != 100 || res.Usage.OutputTokens != 20 {
		t.Errorf("Expected usage to be recorded, got %+v", res.Usage)
	}
}

func TestTranslateOneForcesTool(t *testing.T) {
	client := &fakeLLM{responses: []*llm.Response{toolResponse("x", "low")}}
	provider := NewProvider(client, nil, ProviderOptions{Model: "test-model"}, zerolog.Nop())

	_, err := provider.TranslateOne(context.Background(), TranslationRequest{SourceText: "udu 10"})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	sent := client.requests[0]
	if sent.ToolChoice == nil || sent.ToolChoice.Type != llm.ToolChoiceTool || sent.ToolChoice.Name != ToolName {
		t.Errorf("Expected forced translate_text tool choice, got %+v", sent.ToolChoice)
	}
	if len(sent.Tools) != 1 || sent.Tools[0].Name != ToolName {
		t.Errorf("Expected translate_text tool spec, got %+v", sent.Tools)
	}
	if sent.Model != "test-model" {
		t.Errorf("Expected model test-model, got %s", sent.Model)
	}
}

func TestTranslateOneNoToolCall(t *testing.T) {
	client := &fakeLLM{responses: []*llm.Response{
		{Content: []llm.ContentBlock{{Type: llm.ContentBlockTypeText, Text: "The king."}}},
	}}
	provider := NewProvider(client, nil, ProviderOptions{}, zerolog.Nop())

	_, err := provider.TranslateOne(context.Background(), TranslationRequest{SourceText: "lugal"})
	if err == nil {
		t.Fatal("Expected error when response has no tool call")
	}
}

func TestTranslateBatchSequentialFallback(t *testing.T) {
	// No backend: per-item failures become error entries, not errors.
	client := &fakeLLM{
		responses: []*llm.Response{
			toolResponse("a", "high"),
			nil,
			toolResponse("c", "medium"),
		},
		errs: []error{nil, errors.New("rate limited"), nil},
	}
	provider := NewProvider(client, nil, ProviderOptions{}, zerolog.Nop())

	results, err := provider.TranslateBatch(context.Background(), makeRequests("1", "2", "3"))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if len(results) != 3 {
		t.Fatalf("Expected 3 results, got %d", len(results))
	}
	if results[0].Translation != "a" || results[2].Translation != "c" {
		t.Error("Expected successful items to carry translations")
	}
	if !results[1].IsError() {
		t.Error("Expected failed item to become an error entry")
	}
	if !strings.Contains(results[1].Notes, "rate limited") {
		t.Errorf("Expected failure note to carry the cause, got %q", results[1].Notes)
	}
}

func TestTranslateBatchUsesBackend(t *testing.T) {
	backend := &fakeBackend{
		statuses: []JobStatus{{State: JobStateSucceeded, Succeeded: 1}},
		pages: map[string]ResultPage{
			"": {Items: []Item{successItem(0, "from backend")}},
		},
	}
	client := &fakeLLM{}
	provider := NewProvider(client, backend, ProviderOptions{
		PollInterval: 1,
		Timeout:      1e9,
	}, zerolog.Nop())

	results, err := provider.TranslateBatch(context.Background(), makeRequests("a"))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if results[0].Translation != "from backend" {
		t.Errorf("Expected backend result, got %q", results[0].Translation)
	}
	if client.calls != 0 {
		t.Errorf("Expected no synchronous calls in batch mode, got %d", client.calls)
	}
}

func TestDefaultPrompt(t *testing.T) {
	system, user := DefaultPrompt(TranslationRequest{
		SourceText: "udu 10",
		FewShot: []Example{
			{Source: "lugal", Target: "king"},
		},
	})

	if system != DefaultSystemPrompt {
		t.Error("Expected default system prompt when request carries no instructions")
	}
	if !strings.Contains(user, "Example 1:") {
		t.Errorf("Expected few-shot example in prompt, got %q", user)
	}
	if !strings.Contains(user, "Sumerian: udu 10") {
		t.Errorf("Expected source text in prompt, got %q", user)
	}

	system, _ = DefaultPrompt(TranslationRequest{SourceText: "x", SystemInstructions: "custom"})
	if system != "custom" {
		t.Errorf("Expected request instructions to override default, got %q", system)
	}
}
