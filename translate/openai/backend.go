// Package openai adapts the OpenAI Files + Batch API to the
// translate.BatchBackend interface: requests are uploaded as a JSONL batch
// file, and results come back as an output file plus an optional error file.
package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	"github.com/samshapley/ancientgrok/llm"
	llmopenai "github.com/samshapley/ancientgrok/llm/openai"
	"github.com/samshapley/ancientgrok/translate"
)

// Options configures request construction for batch items.
type Options struct {
	Model       string
	MaxTokens   int64
	Temperature *float64
	Prompt      translate.PromptFunc
}

// Backend implements translate.BatchBackend over the OpenAI Batch API.
type Backend struct {
	client *openai.Client
	opts   Options
	logger zerolog.Logger
}

// NewBackend creates a Backend with the given API key.
func NewBackend(apiKey, organization string, opts Options, logger zerolog.Logger) (*Backend, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("api key is required")
	}
	if opts.Prompt == nil {
		opts.Prompt = translate.DefaultPrompt
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 1024
	}

	config := openai.DefaultConfig(apiKey)
	if organization != "" {
		config.OrgID = organization
	}
	return &Backend{
		client: openai.NewClientWithConfig(config),
		opts:   opts,
		logger: logger,
	}, nil
}

// Submit uploads all requests as one JSONL batch file and creates the batch.
func (b *Backend) Submit(ctx context.Context, reqs []translate.TranslationRequest) (string, error) {
	upload := openai.UploadBatchFileRequest{FileName: "translations.jsonl"}
	for i, req := range reqs {
		body, err := b.buildChatRequest(req)
		if err != nil {
			return "", fmt.Errorf("failed to build request %d: %w", i, err)
		}
		upload.AddChatCompletion(translate.CustomID(i), *body)
	}

	batch, err := b.client.CreateBatchWithUploadFile(ctx, openai.CreateBatchWithUploadFileRequest{
		Endpoint:               openai.BatchEndpointChatCompletions,
		CompletionWindow:       "24h",
		UploadBatchFileRequest: upload,
	})
	if err != nil {
		return "", fmt.Errorf("openai batch create failed: %w", err)
	}
	return batch.ID, nil
}

func (b *Backend) buildChatRequest(req translate.TranslationRequest) (*openai.ChatCompletionRequest, error) {
	system, user := b.opts.Prompt(req)

	userMsgs, err := llmopenai.ToOpenAIMessages([]llm.Message{
		llm.NewTextMessage(llm.RoleUser, user+translate.ToolNudge),
	})
	if err != nil {
		return nil, err
	}
	messages := append([]openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: system},
	}, userMsgs...)

	tools, err := llmopenai.ToOpenAITools([]llm.ToolSpec{translate.Tool()})
	if err != nil {
		return nil, err
	}

	body := &openai.ChatCompletionRequest{
		Model:      b.opts.Model,
		Messages:   messages,
		Tools:      tools,
		ToolChoice: llmopenai.ToOpenAIToolChoice(llm.ForceTool(translate.ToolName)),
		MaxTokens:  int(b.opts.MaxTokens),
	}
	if b.opts.Temperature != nil {
		body.Temperature = float32(*b.opts.Temperature)
	}
	return body, nil
}

// Poll reports the batch's status with normalized counts.
func (b *Backend) Poll(ctx context.Context, jobID string) (*translate.JobStatus, error) {
	batch, err := b.client.RetrieveBatch(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("openai batch retrieve failed: %w", err)
	}
	return jobStatus(batch.Batch), nil
}

func jobStatus(batch openai.Batch) *translate.JobStatus {
	counts := batch.RequestCounts
	status := &translate.JobStatus{
		Succeeded: counts.Completed,
		Errored:   counts.Failed,
		Pending:   counts.Total - counts.Completed - counts.Failed,
	}

	switch batch.Status {
	case "completed":
		switch {
		case status.Errored > 0 && status.Succeeded == 0:
			status.State = translate.JobStateFailed
		case status.Errored > 0:
			status.State = translate.JobStatePartiallyFailed
		default:
			status.State = translate.JobStateSucceeded
		}
	case "failed", "expired", "cancelled":
		status.State = translate.JobStateFailed
	case "validating":
		status.State = translate.JobStatePending
	default: // in_progress, finalizing, cancelling
		status.State = translate.JobStateRunning
	}
	return status
}

// FetchPage reads one result file. The first page resolves the batch's output
// file and chains the error file as the next page, so failed items surface as
// error entries instead of silent gaps.
func (b *Backend) FetchPage(ctx context.Context, jobID string, token string) (*translate.ResultPage, error) {
	fileID := token
	nextToken := ""

	if fileID == "" {
		batch, err := b.client.RetrieveBatch(ctx, jobID)
		if err != nil {
			return nil, fmt.Errorf("openai batch retrieve failed: %w", err)
		}

		var fileIDs []string
		if batch.OutputFileID != nil && *batch.OutputFileID != "" {
			fileIDs = append(fileIDs, *batch.OutputFileID)
		}
		if batch.ErrorFileID != nil && *batch.ErrorFileID != "" {
			fileIDs = append(fileIDs, *batch.ErrorFileID)
		}
		if len(fileIDs) == 0 {
			return &translate.ResultPage{}, nil
		}
		fileID = fileIDs[0]
		if len(fileIDs) > 1 {
			nextToken = fileIDs[1]
		}
	}

	items, err := b.readResultFile(ctx, fileID)
	if err != nil {
		return nil, err
	}
	return &translate.ResultPage{Items: items, NextToken: nextToken}, nil
}

func (b *Backend) readResultFile(ctx context.Context, fileID string) ([]translate.Item, error) {
	content, err := b.client.GetFileContent(ctx, fileID)
	if err != nil {
		return nil, fmt.Errorf("openai batch file read failed: %w", err)
	}
	defer content.Close()

	raw, err := io.ReadAll(content)
	if err != nil {
		return nil, fmt.Errorf("openai batch file read failed: %w", err)
	}

	var items []translate.Item
	for _, line := range strings.Split(strings.TrimSpace(string(raw)), "\n") {
		if line == "" {
			continue
		}
		item, err := parseLine([]byte(line))
		if err != nil {
			b.logger.Warn().Err(err).Msg("Skipping malformed batch output line")
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

// outputLine is the JSONL envelope of one batch result.
type outputLine struct {
	ID       string `json:"id"`
	CustomID string `json:"custom_id"`
	Response *struct {
		StatusCode int                           `json:"status_code"`
		RequestID  string                        `json:"request_id"`
		Body       openai.ChatCompletionResponse `json:"body"`
	} `json:"response"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func parseLine(raw []byte) (translate.Item, error) {
	var line outputLine
	if err := json.Unmarshal(raw, &line); err != nil {
		return translate.Item{}, err
	}

	item := translate.Item{CustomID: line.CustomID}

	if line.Error != nil {
		item.Result = errorResult(fmt.Sprintf("Batch error: %s: %s", line.Error.Code, line.Error.Message))
		return item, nil
	}
	if line.Response == nil {
		item.Result = errorResult("No response in batch output")
		return item, nil
	}
	if line.Response.StatusCode != 0 && line.Response.StatusCode != 200 {
		item.Result = errorResult(fmt.Sprintf("Batch error: HTTP %d", line.Response.StatusCode))
		return item, nil
	}

	body := line.Response.Body
	if len(body.Choices) == 0 {
		item.Result = errorResult("No choices in batch response")
		return item, nil
	}

	for _, toolCall := range body.Choices[0].Message.ToolCalls {
		if toolCall.Function.Name != translate.ToolName {
			continue
		}
		block, err := llmopenai.FromOpenAIToolCall(toolCall)
		if err != nil {
			item.Result = errorResult(fmt.Sprintf("Malformed tool call: %s", err))
			return item, nil
		}
		res, err := translate.FromToolInput(block.Input)
		if err != nil {
			item.Result = errorResult(fmt.Sprintf("Malformed tool payload: %s", err))
			return item, nil
		}
		res.Usage = translate.Usage{
			InputTokens:  int64(body.Usage.PromptTokens),
			OutputTokens: int64(body.Usage.CompletionTokens),
		}
		res.NativeID = body.ID
		item.Result = res
		return item, nil
	}

	item.Result = errorResult("No translate_text tool call in batch response")
	return item, nil
}

func errorResult(note string) translate.TranslationResult {
	return translate.TranslationResult{
		Confidence: translate.ConfidenceError,
		Notes:      note,
	}
}
