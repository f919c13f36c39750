package gemini

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/samshapley/ancientgrok/translate"
)

func testBackend(t *testing.T) *Backend {
	t.Helper()
	b, err := NewBackend("test-key", Options{Model: "gemini-2.5-pro", MaxTokens: 768}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewBackend failed: %v", err)
	}
	return b
}

func TestJobStatusStates(t *testing.T) {
	tests := []struct {
		name string
		op   operation
		want translate.JobState
	}{
		{
			name: "batch state pending",
			op:   operation{Metadata: &batchMetadata{State: "BATCH_STATE_PENDING"}},
			want: translate.JobStatePending,
		},
		{
			name: "job state prefix is accepted too",
			op:   operation{Metadata: &batchMetadata{State: "JOB_STATE_RUNNING"}},
			want: translate.JobStateRunning,
		},
		{
			name: "succeeded with clean stats",
			op: operation{Metadata: &batchMetadata{
				State:      "BATCH_STATE_SUCCEEDED",
				BatchStats: &batchStats{RequestCount: 3, SuccessfulRequestCount: 3},
			}},
			want: translate.JobStateSucceeded,
		},
		{
			name: "succeeded with partial failures",
			op: operation{Metadata: &batchMetadata{
				State:      "BATCH_STATE_SUCCEEDED",
				BatchStats: &batchStats{RequestCount: 3, SuccessfulRequestCount: 2, FailedRequestCount: 1},
			}},
			want: translate.JobStatePartiallyFailed,
		},
		{
			name: "succeeded with zero successes",
			op: operation{Metadata: &batchMetadata{
				State:      "BATCH_STATE_SUCCEEDED",
				BatchStats: &batchStats{RequestCount: 3, FailedRequestCount: 3},
			}},
			want: translate.JobStateFailed,
		},
		{
			name: "vendor failure",
			op:   operation{Metadata: &batchMetadata{State: "JOB_STATE_FAILED"}},
			want: translate.JobStateFailed,
		},
		{
			name: "operation error overrides state",
			op: operation{
				Metadata: &batchMetadata{State: "BATCH_STATE_RUNNING"},
				Error:    &statusError{Code: 13, Message: "internal"},
			},
			want: translate.JobStateFailed,
		},
		{
			name: "missing metadata defaults to running",
			op:   operation{},
			want: translate.JobStateRunning,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status := jobStatus(&tt.op)
			if status.State != tt.want {
				t.Errorf("Expected state %s, got %s", tt.want, status.State)
			}
		})
	}
}

func TestOperationDecoding(t *testing.T) {
	// Stats counters arrive as strings on the wire.
	raw := `{
		"name": "batches/abc123",
		"done": true,
		"metadata": {
			"state": "BATCH_STATE_SUCCEEDED",
			"batchStats": {
				"requestCount": "3",
				"successfulRequestCount": "2",
				"failedRequestCount": "1",
				"pendingRequestCount": "0"
			}
		},
		"response": {
			"inlinedResponses": {
				"inlinedResponses": [
					{
						"metadata": {"key": "trans_0"},
						"response": {
							"candidates": [{"content": {"parts": [{"text": "{\"translation\": \"ten sheep\", \"confidence\": \"high\"}"}]}}],
							"usageMetadata": {"promptTokenCount": 50, "candidatesTokenCount": 9}
						}
					},
					{
						"metadata": {"key": "trans_1"},
						"error": {"code": 8, "message": "quota exceeded"}
					}
				]
			}
		}
	}`

	var op operation
	if err := json.Unmarshal([]byte(raw), &op); err != nil {
		t.Fatalf("Failed to decode operation: %v", err)
	}

	if op.Name != "batches/abc123" {
		t.Errorf("Expected operation name batches/abc123, got %s", op.Name)
	}
	stats := op.Metadata.BatchStats
	if stats.RequestCount != 3 || stats.SuccessfulRequestCount != 2 || stats.FailedRequestCount != 1 {
		t.Errorf("Unexpected stats: %+v", stats)
	}

	status := jobStatus(&op)
	if status.State != translate.JobStatePartiallyFailed {
		t.Errorf("Expected partially_failed, got %s", status.State)
	}
	if status.Succeeded != 2 || status.Errored != 1 {
		t.Errorf("Unexpected counts: %+v", status)
	}

	entries := op.Response.InlinedResponses.InlinedResponses
	if len(entries) != 2 {
		t.Fatalf("Expected 2 inlined responses, got %d", len(entries))
	}

	first := mapResult(entries[0])
	if first.Translation != "ten sheep" {
		t.Errorf("Unexpected translation: %s", first.Translation)
	}
	if first.Confidence != translate.ConfidenceHigh {
		t.Errorf("Expected high confidence, got %s", first.Confidence)
	}
	if first.Usage.InputTokens != 50 || first.Usage.OutputTokens != 9 {
		t.Errorf("Unexpected usage: %+v", first.Usage)
	}

	second := mapResult(entries[1])
	if !second.IsError() {
		t.Fatal("Expected error result for errored entry")
	}
	if second.Notes != "Batch error: quota exceeded" {
		t.Errorf("Unexpected notes: %s", second.Notes)
	}
}

func TestFlexIntNumericEncoding(t *testing.T) {
	var stats batchStats
	raw := `{"requestCount": 4, "successfulRequestCount": "4", "pendingRequestCount": null}`
	if err := json.Unmarshal([]byte(raw), &stats); err != nil {
		t.Fatalf("Failed to decode stats: %v", err)
	}
	if stats.RequestCount != 4 {
		t.Errorf("Expected request count 4, got %d", stats.RequestCount)
	}
	if stats.SuccessfulRequestCount != 4 {
		t.Errorf("Expected successful count 4, got %d", stats.SuccessfulRequestCount)
	}
	if stats.PendingRequestCount != 0 {
		t.Errorf("Expected pending count 0, got %d", stats.PendingRequestCount)
	}
}

func TestParsePayload(t *testing.T) {
	res := parsePayload(`{"translation": "the shepherd received barley", "confidence": "low", "notes": "damaged line"}`)
	if res.Translation != "the shepherd received barley" {
		t.Errorf("Unexpected translation: %s", res.Translation)
	}
	if res.Confidence != translate.ConfidenceLow {
		t.Errorf("Expected low confidence, got %s", res.Confidence)
	}
	if res.Notes != "damaged line" {
		t.Errorf("Unexpected notes: %s", res.Notes)
	}
}

func TestParsePayloadRawTextFallback(t *testing.T) {
	res := parsePayload("The shepherd received barley.")
	if res.IsError() {
		t.Fatal("Raw text should fall back, not error")
	}
	if res.Translation != "The shepherd received barley." {
		t.Errorf("Unexpected translation: %s", res.Translation)
	}
	if res.Confidence != translate.ConfidenceMedium {
		t.Errorf("Expected medium confidence, got %s", res.Confidence)
	}
	if res.Notes != "Raw text response (not structured JSON)" {
		t.Errorf("Unexpected notes: %s", res.Notes)
	}
}

func TestParsePayloadMissingTranslation(t *testing.T) {
	res := parsePayload(`{"confidence": "high"}`)
	if !res.IsError() {
		t.Fatal("Expected error result for payload without translation")
	}
	if !strings.HasPrefix(res.Notes, "Malformed structured payload") {
		t.Errorf("Unexpected notes: %s", res.Notes)
	}
}

func TestMapResultEmptyCandidates(t *testing.T) {
	res := mapResult(inlinedResponse{Metadata: map[string]string{"key": "trans_0"}})
	if !res.IsError() {
		t.Fatal("Expected error result for empty response")
	}
	if res.Notes != "No completion data in batch result" {
		t.Errorf("Unexpected notes: %s", res.Notes)
	}
}

func TestBuildEntry(t *testing.T) {
	b := testBackend(t)

	entry := b.buildEntry(1, translate.TranslationRequest{ID: 1, SourceText: "udu 10"})

	if entry.Metadata["key"] != "trans_1" {
		t.Errorf("Expected metadata key trans_1, got %s", entry.Metadata["key"])
	}

	req := entry.Request
	if req.SystemInstruction == nil || len(req.SystemInstruction.Parts) == 0 {
		t.Fatal("Expected a system instruction")
	}
	if len(req.Contents) != 1 || len(req.Contents[0].Parts) != 1 {
		t.Fatalf("Expected a single user content part, got %+v", req.Contents)
	}
	userText := req.Contents[0].Parts[0].Text
	if !strings.Contains(userText, "udu 10") {
		t.Error("Expected user prompt to contain the source text")
	}
	if !strings.HasSuffix(userText, jsonNudge) {
		t.Error("Expected user prompt to end with the JSON nudge")
	}

	cfg := req.GenerationConfig
	if cfg == nil {
		t.Fatal("Expected a generation config")
	}
	if cfg.ResponseMIMEType != "application/json" {
		t.Errorf("Expected JSON response mime type, got %s", cfg.ResponseMIMEType)
	}
	if cfg.MaxOutputTokens != 768 {
		t.Errorf("Expected max output tokens 768, got %d", cfg.MaxOutputTokens)
	}
	required, ok := cfg.ResponseSchema["required"].([]string)
	if !ok || len(required) != 2 {
		t.Errorf("Expected two required schema fields, got %v", cfg.ResponseSchema["required"])
	}
	if len(req.SafetySettings) == 0 {
		t.Error("Expected safety settings to be applied")
	}
}
