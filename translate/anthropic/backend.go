// Package anthropic adapts the Anthropic Message Batches API to the
// translate.BatchBackend interface. Batches are half-price compared to the
// synchronous API, which matters when benchmarking hundreds of tablets.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rs/zerolog"

	"github.com/samshapley/ancientgrok/llm"
	llmanthropic "github.com/samshapley/ancientgrok/llm/anthropic"
	"github.com/samshapley/ancientgrok/translate"
)

// Options configures request construction for batch items.
type Options struct {
	Model       string
	MaxTokens   int64
	Temperature *float64
	Prompt      translate.PromptFunc
}

// Backend implements translate.BatchBackend over the Message Batches API.
type Backend struct {
	client *anthropic.Client
	opts   Options
	logger zerolog.Logger
}

// NewBackend creates a Backend with the given API key.
func NewBackend(apiKey string, opts Options, logger zerolog.Logger) (*Backend, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("api key is required")
	}
	if opts.Prompt == nil {
		opts.Prompt = translate.DefaultPrompt
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 1024
	}

	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &Backend{
		client: &client,
		opts:   opts,
		logger: logger,
	}, nil
}

// Submit sends all requests as one message batch.
func (b *Backend) Submit(ctx context.Context, reqs []translate.TranslationRequest) (string, error) {
	entries := make([]anthropic.MessageBatchNewParamsRequest, 0, len(reqs))
	for i, req := range reqs {
		system, user := b.opts.Prompt(req)

		msgs, err := llmanthropic.ToMessageParams([]llm.Message{
			llm.NewTextMessage(llm.RoleUser, user+translate.ToolNudge),
		})
		if err != nil {
			return "", fmt.Errorf("failed to convert messages for request %d: %w", i, err)
		}

		params := anthropic.MessageBatchNewParamsRequestParams{
			Model:     anthropic.Model(b.opts.Model),
			MaxTokens: b.opts.MaxTokens,
			Messages:  msgs,
			System: []anthropic.TextBlockParam{
				{Text: system, CacheControl: anthropic.NewCacheControlEphemeralParam()},
			},
			Tools:      llmanthropic.ToToolUnionParams([]llm.ToolSpec{translate.Tool()}),
			ToolChoice: llmanthropic.ToToolChoiceParam(llm.ForceTool(translate.ToolName)),
		}
		if b.opts.Temperature != nil {
			params.Temperature = anthropic.Float(*b.opts.Temperature)
		}

		entries = append(entries, anthropic.MessageBatchNewParamsRequest{
			CustomID: translate.CustomID(i),
			Params:   params,
		})
	}

	batch, err := b.client.Messages.Batches.New(ctx, anthropic.MessageBatchNewParams{Requests: entries})
	if err != nil {
		return "", fmt.Errorf("anthropic batch create failed: %w", err)
	}
	return batch.ID, nil
}

// Poll reports the batch's processing status with normalized counts.
func (b *Backend) Poll(ctx context.Context, jobID string) (*translate.JobStatus, error) {
	batch, err := b.client.Messages.Batches.Get(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("anthropic batch get failed: %w", err)
	}

	counts := batch.RequestCounts
	status := &translate.JobStatus{
		Succeeded: int(counts.Succeeded),
		Errored:   int(counts.Errored + counts.Canceled + counts.Expired),
		Pending:   int(counts.Processing),
	}

	switch string(batch.ProcessingStatus) {
	case "ended":
		switch {
		case status.Errored > 0 && status.Succeeded == 0:
			status.State = translate.JobStateFailed
		case status.Errored > 0:
			status.State = translate.JobStatePartiallyFailed
		default:
			status.State = translate.JobStateSucceeded
		}
	default: // in_progress, canceling
		status.State = translate.JobStateRunning
	}
	return status, nil
}

// FetchPage drains the batch's JSONL result stream. Anthropic streams all
// results in one pass, so there is a single page and no continuation token.
func (b *Backend) FetchPage(ctx context.Context, jobID string, token string) (*translate.ResultPage, error) {
	stream := b.client.Messages.Batches.ResultsStreaming(ctx, jobID)
	defer stream.Close()

	page := &translate.ResultPage{}
	for stream.Next() {
		entry := stream.Current()
		page.Items = append(page.Items, mapResult(entry))
	}
	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("anthropic batch results failed: %w", err)
	}
	return page, nil
}

// mapResult normalizes one batch entry into a translate.Item. Vendor-reported
// item errors and payload problems become error entries here, never fetch
// failures.
func mapResult(entry anthropic.MessageBatchIndividualResponse) translate.Item {
	item := translate.Item{CustomID: entry.CustomID}

	if string(entry.Result.Type) != "succeeded" {
		note := fmt.Sprintf("Batch error: %s", entry.Result.Type)
		if detail, err := json.Marshal(entry.Result.Error); err == nil && len(detail) > 2 {
			note = fmt.Sprintf("Batch error: %s", detail)
		}
		item.Result = errorResult(note)
		return item
	}

	message := entry.Result.Message
	for _, blockUnion := range message.Content {
		block, ok := blockUnion.AsAny().(anthropic.ToolUseBlock)
		if !ok || block.Name != translate.ToolName {
			continue
		}

		var input map[string]interface{}
		if raw, err := json.Marshal(block.Input); err == nil {
			_ = json.Unmarshal(raw, &input)
		}

		res, err := translate.FromToolInput(input)
		if err != nil {
			item.Result = errorResult(fmt.Sprintf("Malformed tool payload: %s", err))
			return item
		}
		res.Usage = translate.Usage{
			InputTokens:  message.Usage.InputTokens,
			OutputTokens: message.Usage.OutputTokens,
		}
		res.NativeID = message.ID
		item.Result = res
		return item
	}

	item.Result = errorResult("No translate_text tool call in batch response")
	return item
}

func errorResult(note string) translate.TranslationResult {
	return translate.TranslationResult{
		Confidence: translate.ConfidenceError,
		Notes:      note,
	}
}
