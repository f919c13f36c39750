package translate

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/samshapley/ancientgrok/llm"
)

const defaultMaxTokens = 1024

// Translator is the provider-facing translation surface. TranslateOne raises
// typed errors directly; TranslateBatch never returns fewer results than
// requests, converting item failures into error entries instead.
type Translator interface {
	TranslateOne(ctx context.Context, req TranslationRequest) (*TranslationResult, error)
	TranslateBatch(ctx context.Context, reqs []TranslationRequest) ([]TranslationResult, error)
}

// ProviderOptions configures a Provider.
type ProviderOptions struct {
	Model       string
	MaxTokens   int64
	Temperature *float64

	// Prompt renders requests into instruction pairs. nil uses DefaultPrompt.
	Prompt PromptFunc

	// Batch polling knobs, passed through to the BatchRunner.
	PollInterval time.Duration
	Timeout      time.Duration

	// RequestDelay paces the sequential fallback between calls, for vendors
	// without a batch API.
	RequestDelay time.Duration
}

// Provider implements Translator on top of a provider-neutral chat client.
// The synchronous path forces the translate_text tool on any llm.Client; the
// batch path delegates to the vendor's BatchBackend when one exists and falls
// back to paced sequential calls otherwise.
type Provider struct {
	client  llm.Client
	backend BatchBackend
	opts    ProviderOptions
	logger  zerolog.Logger
}

// NewProvider creates a Provider. backend may be nil for vendors without an
// asynchronous batch surface.
func NewProvider(client llm.Client, backend BatchBackend, opts ProviderOptions, logger zerolog.Logger) *Provider {
	if opts.Prompt == nil {
		opts.Prompt = DefaultPrompt
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = defaultMaxTokens
	}
	return &Provider{
		client:  client,
		backend: backend,
		opts:    opts,
		logger:  logger,
	}
}

// Backend returns the provider's batch backend, or nil if translation runs
// sequentially. Detached submission goes through this.
func (p *Provider) Backend() BatchBackend {
	return p.backend
}

// Runner returns a BatchRunner configured with this provider's backend and
// polling knobs.
func (p *Provider) Runner() *BatchRunner {
	return &BatchRunner{
		Backend:      p.backend,
		PollInterval: p.opts.PollInterval,
		Timeout:      p.opts.Timeout,
		Logger:       p.logger,
	}
}

// TranslateOne translates a single request synchronously. Unlike the batch
// path, failures here surface as errors to the caller.
func (p *Provider) TranslateOne(ctx context.Context, req TranslationRequest) (*TranslationResult, error) {
	system, user := p.opts.Prompt(req)

	llmReq := &llm.Request{
		Model:       p.opts.Model,
		System:      system,
		Messages:    []llm.Message{llm.NewTextMessage(llm.RoleUser, user+ToolNudge)},
		Tools:       []llm.ToolSpec{Tool()},
		ToolChoice:  llm.ForceTool(ToolName),
		MaxTokens:   p.opts.MaxTokens,
		Temperature: p.opts.Temperature,
	}

	resp, err := p.client.Synchronous(ctx, llmReq)
	if err != nil {
		return nil, fmt.Errorf("translate call failed: %w", err)
	}

	toolUse := resp.FirstToolUse()
	if toolUse == nil || toolUse.Name != ToolName {
		return nil, llm.NewProviderError("no translate_text tool call in response", nil)
	}

	res, err := FromToolInput(toolUse.Input)
	if err != nil {
		return nil, fmt.Errorf("malformed translate_text payload: %w", err)
	}
	res.RequestID = req.ID
	if resp.Usage != nil {
		res.Usage = Usage{
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
		}
	}
	return &res, nil
}

// TranslateBatch translates all requests, preserving order and length.
func (p *Provider) TranslateBatch(ctx context.Context, reqs []TranslationRequest) ([]TranslationResult, error) {
	if p.backend == nil {
		return p.sequentialBatch(ctx, reqs)
	}
	return p.Runner().Run(ctx, reqs)
}

// sequentialBatch is the fallback for vendors without a batch API: paced
// one-at-a-time calls with per-item failures converted to error entries, the
// same soft-failure shape the reconciler produces.
func (p *Provider) sequentialBatch(ctx context.Context, reqs []TranslationRequest) ([]TranslationResult, error) {
	results := make([]TranslationResult, 0, len(reqs))
	for i, req := range reqs {
		if i > 0 && p.opts.RequestDelay > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(p.opts.RequestDelay):
			}
		}

		res, err := p.TranslateOne(ctx, req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			p.logger.Warn().
				Err(err).
				Int("request_id", req.ID).
				Msg("Sequential translate failed")
			results = append(results, TranslationResult{
				RequestID:  req.ID,
				Confidence: ConfidenceError,
				Notes:      fmt.Sprintf("Translate error: %s", err),
			})
			continue
		}
		results = append(results, *res)
	}
	return results, nil
}
