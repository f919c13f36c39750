// Package gemini adapts the Gemini batch API to the translate.BatchBackend
// interface. Requests are embedded inline in the batch job, and instead of
// tool calling the backend uses structured output: a response schema constrains
// the model to emit the translation payload as JSON directly.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	llmgemini "github.com/samshapley/ancientgrok/llm/gemini"
	"github.com/samshapley/ancientgrok/translate"
)

// jsonNudge steers the model toward the response schema. Structured output
// mode already constrains decoding, but the instruction measurably reduces
// fenced-markdown and prose wrappers on long completions.
const jsonNudge = "\n\nProvide a JSON response with translation, confidence (high/medium/low), and notes. Return ONLY valid JSON."

// Options configures request construction for batch items.
type Options struct {
	Model       string
	MaxTokens   int64
	Temperature *float64
	Prompt      translate.PromptFunc
}

// Backend implements translate.BatchBackend over the Gemini batch API.
type Backend struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
	opts       Options
	logger     zerolog.Logger
}

// NewBackend creates a Backend with the given API key.
func NewBackend(apiKey string, opts Options, logger zerolog.Logger) (*Backend, error) {
	return NewBackendWithBaseURL(apiKey, llmgemini.DefaultBaseURL, opts, logger)
}

// NewBackendWithBaseURL creates a Backend against a custom endpoint.
// Used primarily for testing.
func NewBackendWithBaseURL(apiKey, baseURL string, opts Options, logger zerolog.Logger) (*Backend, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("api key is required")
	}
	if opts.Prompt == nil {
		opts.Prompt = translate.DefaultPrompt
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 1024
	}
	return &Backend{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		apiKey:     apiKey,
		baseURL:    baseURL,
		opts:       opts,
		logger:     logger,
	}, nil
}

// Submit creates a batch job with all requests inlined. The returned job ID is
// the operation name ("batches/..."), which later calls poll directly.
func (b *Backend) Submit(ctx context.Context, reqs []translate.TranslationRequest) (string, error) {
	entries := make([]inlinedRequest, 0, len(reqs))
	for i, req := range reqs {
		entries = append(entries, b.buildEntry(i, req))
	}

	body := createBatchRequest{
		Batch: batchSpec{
			DisplayName: "translations-" + uuid.New().String()[:8],
			InputConfig: inputConfig{Requests: requestList{Requests: entries}},
		},
	}

	var op operation
	path := "/models/" + b.opts.Model + ":batchGenerateContent"
	if err := b.doJSON(ctx, http.MethodPost, path, body, &op); err != nil {
		return "", fmt.Errorf("gemini batch create failed: %w", err)
	}
	if op.Name == "" {
		return "", fmt.Errorf("gemini batch create returned no operation name")
	}
	return op.Name, nil
}

func (b *Backend) buildEntry(i int, req translate.TranslationRequest) inlinedRequest {
	system, user := b.opts.Prompt(req)

	return inlinedRequest{
		Request: llmgemini.GenerateContentRequest{
			Contents: []llmgemini.Content{{
				Role:  "user",
				Parts: []llmgemini.Part{{Text: user + jsonNudge}},
			}},
			SystemInstruction: &llmgemini.Content{
				Parts: []llmgemini.Part{{Text: system}},
			},
			GenerationConfig: &llmgemini.GenerationConfig{
				Temperature:      b.opts.Temperature,
				MaxOutputTokens:  b.opts.MaxTokens,
				ResponseMIMEType: "application/json",
				ResponseSchema:   responseSchema(),
			},
			SafetySettings: llmgemini.DefaultSafetySettings(),
		},
		Metadata: map[string]string{"key": translate.CustomID(i)},
	}
}

// responseSchema mirrors the translate_text tool schema so that structured
// output and tool-calling backends produce the same payload shape.
func responseSchema() map[string]interface{} {
	schema := translate.Tool().Schema
	out := map[string]interface{}{
		"type":       schema.Type,
		"properties": schema.Properties,
	}
	if len(schema.Required) > 0 {
		out["required"] = schema.Required
	}
	return out
}

// Poll reports the batch operation's status.
func (b *Backend) Poll(ctx context.Context, jobID string) (*translate.JobStatus, error) {
	op, err := b.getOperation(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return jobStatus(op), nil
}

// jobStatus maps an operation to the shared status shape. Depending on API
// version the state arrives as BATCH_STATE_* or JOB_STATE_*, so matching
// strips the prefix.
func jobStatus(op *operation) *translate.JobStatus {
	status := &translate.JobStatus{}
	if op.Metadata != nil && op.Metadata.BatchStats != nil {
		stats := op.Metadata.BatchStats
		status.Succeeded = int(stats.SuccessfulRequestCount)
		status.Errored = int(stats.FailedRequestCount)
		status.Pending = int(stats.PendingRequestCount)
	}

	if op.Error != nil {
		status.State = translate.JobStateFailed
		return status
	}

	state := ""
	if op.Metadata != nil {
		state = strings.TrimPrefix(strings.TrimPrefix(op.Metadata.State, "BATCH_STATE_"), "JOB_STATE_")
	}
	switch state {
	case "PENDING":
		status.State = translate.JobStatePending
	case "SUCCEEDED":
		switch {
		case status.Errored > 0 && status.Succeeded == 0:
			status.State = translate.JobStateFailed
		case status.Errored > 0:
			status.State = translate.JobStatePartiallyFailed
		default:
			status.State = translate.JobStateSucceeded
		}
	case "FAILED", "CANCELLED", "EXPIRED":
		status.State = translate.JobStateFailed
	default: // RUNNING and anything unrecognized
		status.State = translate.JobStateRunning
	}
	return status
}

// FetchPage returns all inlined responses as a single page.
func (b *Backend) FetchPage(ctx context.Context, jobID string, token string) (*translate.ResultPage, error) {
	op, err := b.getOperation(ctx, jobID)
	if err != nil {
		return nil, err
	}

	page := &translate.ResultPage{}
	if op.Response == nil || op.Response.InlinedResponses == nil {
		return page, nil
	}
	for _, entry := range op.Response.InlinedResponses.InlinedResponses {
		page.Items = append(page.Items, translate.Item{
			CustomID: entry.Metadata["key"],
			Result:   mapResult(entry),
		})
	}
	return page, nil
}

func (b *Backend) getOperation(ctx context.Context, jobID string) (*operation, error) {
	var op operation
	if err := b.doJSON(ctx, http.MethodGet, "/"+jobID, nil, &op); err != nil {
		return nil, fmt.Errorf("gemini batch status failed: %w", err)
	}
	return &op, nil
}

func mapResult(entry inlinedResponse) translate.TranslationResult {
	if entry.Error != nil {
		return errorResult(fmt.Sprintf("Batch error: %s", entry.Error.Message))
	}
	if entry.Response == nil || len(entry.Response.Candidates) == 0 {
		return errorResult("No completion data in batch result")
	}

	text := ""
	for _, part := range entry.Response.Candidates[0].Content.Parts {
		if part.Text != "" {
			text = part.Text
			break
		}
	}
	if text == "" {
		return errorResult("No text content in batch result")
	}

	res := parsePayload(text)
	if usage := entry.Response.UsageMetadata; usage != nil {
		res.Usage = translate.Usage{
			InputTokens:  usage.PromptTokenCount,
			OutputTokens: usage.CandidatesTokenCount,
		}
	}
	return res
}

// parsePayload decodes the structured output. The schema makes malformed JSON
// rare, but long completions occasionally truncate; those fall back to a raw
// text result rather than an error so the translation is not lost.
func parsePayload(text string) translate.TranslationResult {
	var payload map[string]interface{}
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		return translate.TranslationResult{
			Translation: text,
			Confidence:  translate.ConfidenceMedium,
			Notes:       "Raw text response (not structured JSON)",
		}
	}
	res, err := translate.FromToolInput(payload)
	if err != nil {
		return errorResult(fmt.Sprintf("Malformed structured payload: %s", err))
	}
	return res
}

func errorResult(note string) translate.TranslationResult {
	return translate.TranslationResult{
		Confidence: translate.ConfidenceError,
		Notes:      note,
	}
}

// doJSON performs one API call, marshaling body in and the response out.
func (b *Backend) doJSON(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("x-goog-api-key", b.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("gemini request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read gemini response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var envelope apiError
		if json.Unmarshal(raw, &envelope) == nil && envelope.Error.Message != "" {
			return fmt.Errorf("gemini API error (status %d): %s", resp.StatusCode, envelope.Error.Message)
		}
		return fmt.Errorf("gemini API error (status %d)", resp.StatusCode)
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("failed to decode gemini response: %w", err)
		}
	}
	return nil
}
