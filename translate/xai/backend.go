// Package xai adapts the xAI batch API to the translate.BatchBackend
// interface. Unlike the Anthropic and OpenAI batch surfaces, xAI splits
// submission into two calls (create a named batch, then append requests) and
// pages results with a pagination token.
package xai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/samshapley/ancientgrok/llm"
	"github.com/samshapley/ancientgrok/translate"
)

// DefaultBaseURL is the production xAI API endpoint.
const DefaultBaseURL = "https://api.x.ai/v1"

const (
	// The requests endpoint caps both call rate and payload size, so
	// submission goes up in small chunks with a pause between them.
	submitChunkSize = 10
	submitPause     = time.Second
)

// Options configures request construction for batch items.
type Options struct {
	Model       string
	MaxTokens   int64
	Temperature *float64
	Prompt      translate.PromptFunc
}

// Backend implements translate.BatchBackend over the xAI batch API.
type Backend struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
	opts       Options
	logger     zerolog.Logger
}

// NewBackend creates a Backend with the given API key.
func NewBackend(apiKey string, opts Options, logger zerolog.Logger) (*Backend, error) {
	return NewBackendWithBaseURL(apiKey, DefaultBaseURL, opts, logger)
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

// Submit creates a named batch container and appends all requests to it.
func (b *Backend) Submit(ctx context.Context, reqs []translate.TranslationRequest) (string, error) {
	name := "translations-" + uuid.New().String()[:8]

	var created createBatchResponse
	if err := b.doJSON(ctx, http.MethodPost, "/batches", createBatchRequest{Name: name}, &created); err != nil {
		return "", fmt.Errorf("xai batch create failed: %w", err)
	}
	if created.BatchID == "" {
		return "", fmt.Errorf("xai batch create returned no batch id")
	}

	entries := make([]batchRequestEntry, 0, len(reqs))
	for i, req := range reqs {
		entries = append(entries, b.buildEntry(i, req))
	}

	for start := 0; start < len(entries); start += submitChunkSize {
		end := min(start+submitChunkSize, len(entries))
		body := addRequestsBody{BatchRequests: entries[start:end]}
		path := "/batches/" + created.BatchID + "/requests"
		if err := b.doJSON(ctx, http.MethodPost, path, body, nil); err != nil {
			return "", fmt.Errorf("xai batch submit failed at request %d: %w", start, err)
		}
		b.logger.Debug().
			Str("batch_id", created.BatchID).
			Int("submitted", end).
			Int("total", len(entries)).
			Msg("Submitted batch requests")

		if end < len(entries) {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(submitPause):
			}
		}
	}
	return created.BatchID, nil
}

func (b *Backend) buildEntry(i int, req translate.TranslationRequest) batchRequestEntry {
	system, user := b.opts.Prompt(req)
	spec := translate.Tool()

	return batchRequestEntry{
		BatchRequestID: translate.CustomID(i),
		BatchRequest: batchRequestBody{
			ChatGetCompletion: chatRequest{
				Messages: []chatMessage{
					{Role: "system", Content: system},
					{Role: "user", Content: user + translate.ToolNudge},
				},
				Model: b.opts.Model,
				Tools: []chatTool{{
					Type: "function",
					Function: chatFunction{
						Name:        spec.Name,
						Description: spec.Description,
						Parameters:  toolParameters(spec.Schema),
					},
				}},
				ToolChoice: chatToolChoice{
					Type:     "function",
					Function: chatToolChoiceName{Name: spec.Name},
				},
				MaxTokens:   b.opts.MaxTokens,
				Temperature: b.opts.Temperature,
			},
		},
	}
}

func toolParameters(schema llm.ToolSchema) map[string]interface{} {
	params := map[string]interface{}{
		"type":       schema.Type,
		"properties": schema.Properties,
	}
	if len(schema.Required) > 0 {
		params["required"] = schema.Required
	}
	for k, v := range schema.ExtraFields {
		params[k] = v
	}
	return params
}

// Poll reports the batch's status. xAI exposes no status string, only
// counters. The batch is terminal once nothing is pending.
func (b *Backend) Poll(ctx context.Context, jobID string) (*translate.JobStatus, error) {
	var resp batchStatusResponse
	if err := b.doJSON(ctx, http.MethodGet, "/batches/"+jobID, nil, &resp); err != nil {
		return nil, fmt.Errorf("xai batch status failed: %w", err)
	}
	return jobStatus(resp.State), nil
}

func jobStatus(state batchState) *translate.JobStatus {
	status := &translate.JobStatus{
		Succeeded: state.NumSuccess,
		Errored:   state.NumError,
		Pending:   state.NumPending,
	}
	switch {
	case state.NumRequests == 0 || state.NumPending > 0:
		status.State = translate.JobStateRunning
	case state.NumError == state.NumRequests:
		status.State = translate.JobStateFailed
	case state.NumError > 0:
		status.State = translate.JobStatePartiallyFailed
	default:
		status.State = translate.JobStateSucceeded
	}
	return status
}

// FetchPage retrieves one page of results, passing the pagination token
// through as the next-page cursor.
func (b *Backend) FetchPage(ctx context.Context, jobID string, token string) (*translate.ResultPage, error) {
	path := "/batches/" + jobID + "/results"
	if token != "" {
		path += "?pagination_token=" + url.QueryEscape(token)
	}

	var resp resultsResponse
	if err := b.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("xai batch results failed: %w", err)
	}

	page := &translate.ResultPage{NextToken: resp.PaginationToken}
	for _, entry := range resp.Results {
		page.Items = append(page.Items, translate.Item{
			CustomID: entry.BatchRequestID,
			Result:   mapResult(entry),
		})
	}
	return page, nil
}

func mapResult(entry resultEntry) translate.TranslationResult {
	completion := entry.BatchResult.Response.ChatGetCompletion
	if completion == nil || len(completion.Choices) == 0 {
		return errorResult("No completion data in batch result")
	}

	for _, call := range completion.Choices[0].Message.ToolCalls {
		if call.Function.Name != translate.ToolName {
			continue
		}
		var input map[string]interface{}
		if err := json.Unmarshal([]byte(call.Function.Arguments), &input); err != nil {
			return errorResult(fmt.Sprintf("Malformed tool call: %s", err))
		}
		res, err := translate.FromToolInput(input)
		if err != nil {
			return errorResult(fmt.Sprintf("Malformed tool payload: %s", err))
		}
		if completion.Usage != nil {
			res.Usage = translate.Usage{
				InputTokens:  completion.Usage.PromptTokens,
				OutputTokens: completion.Usage.CompletionTokens,
			}
		}
		res.NativeID = completion.ID
		return res
	}
	return errorResult("No translate_text tool call in batch response")
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
	req.Header.Set("Authorization", "Bearer "+b.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("xai request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read xai response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("xai API error (status %d): %s", resp.StatusCode, firstLine(raw))
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("failed to decode xai response: %w", err)
		}
	}
	return nil
}

func firstLine(raw []byte) string {
	if i := bytes.IndexByte(raw, '\n'); i >= 0 {
		raw = raw[:i]
	}
	if len(raw) > 200 {
		raw = raw[:200]
	}
	return string(raw)
}
