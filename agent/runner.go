package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/samshapley/ancientgrok/llm"
)

// ToolExecutor dispatches a tool call by name to its registered handler.
type ToolExecutor interface {
	Handle(ctx context.Context, toolName, assistantID string, inputJSON []byte) (any, error)
}

// MessagePersister provides an interface for persisting conversation messages.
type MessagePersister interface {
	// AppendUserMessage saves a user text message to the conversation history.
	AppendUserMessage(ctx context.Context, assistantID, threadID, content string) error

	// AppendAssistantMessage saves an assistant text-only message to the conversation history.
	AppendAssistantMessage(ctx context.Context, assistantID, threadID, content string) error

	// AppendToolCall saves an assistant message with tool use blocks to the conversation history.
	AppendToolCall(ctx context.Context, assistantID, threadID, toolID, toolName string, toolInput any) error

	// AppendToolResult saves a tool result message to the conversation history.
	AppendToolResult(ctx context.Context, assistantID, threadID, toolID, toolName string, result any, isError bool) error
}

// Runner executes chat turns for a single assistant, driving the tool loop
// against the assistant's resolved LLM client.
type Runner struct {
	llmClient        llm.Client
	assistant        *Assistant
	resolvedModel    string // Model resolved from LLM preferences
	resolvedProvider string // Provider resolved from LLM preferences
	toolExec         ToolExecutor
	toolProvider     ToolProvider
	messagePersister MessagePersister // Optional message persister
	compactor        *Compactor       // Summarizes history for /compress
	rateLimitHandler *RateLimitHandler
	logger           zerolog.Logger
}

// NewRunner creates a new Runner with all required dependencies.
func NewRunner(
	logger zerolog.Logger,
	llmClient llm.Client,
	assistant *Assistant,
	resolvedModel string, // Model resolved from LLM preferences
	resolvedProvider string, // Provider resolved from LLM preferences
	toolExec ToolExecutor,
	toolProvider ToolProvider,
	messagePersister MessagePersister,
) (*Runner, error) {
	if llmClient == nil {
		return nil, fmt.Errorf("llmClient is required for Runner")
	}
	if assistant == nil {
		return nil, fmt.Errorf("assistant is required for Runner")
	}
	rateLimitHandler := NewRateLimitHandler(logger, func(assistantID string, retryAfter time.Duration, attempt int) error {
		logger.Info().Msgf("Rate limit callback: assistant %s will retry after %v (attempt %d)", assistantID, retryAfter, attempt)
		return nil
	})

	return &Runner{
		llmClient:        llmClient,
		assistant:        assistant,
		resolvedModel:    resolvedModel,
		resolvedProvider: resolvedProvider,
		toolExec:         toolExec,
		toolProvider:     toolProvider,
		messagePersister: messagePersister,
		compactor:        NewCompactor(llmClient, resolvedModel, logger),
		rateLimitHandler: rateLimitHandler,
		logger:           logger.With().Str("component", "runner").Logger(),
	}, nil
}

// GetResolvedModel returns the model resolved from LLM preferences.
func (r *Runner) GetResolvedModel() string {
	return r.resolvedModel
}

// GetResolvedProvider returns the provider resolved from LLM preferences.
func (r *Runner) GetResolvedProvider() string {
	return r.resolvedProvider
}

// GetCompactor returns the compactor used to summarize this assistant's history.
func (r *Runner) GetCompactor() *Compactor {
	return r.compactor
}

// maxIterations returns the tool-loop cap for this assistant.
func (r *Runner) maxIterations() int {
	if r.assistant.Config != nil && r.assistant.Config.MaxIterations > 0 {
		return r.assistant.Config.MaxIterations
	}
	return defaultMaxIterations
}

// Run executes a single turn for an assistant, with optional history.
// History is provided as provider-neutral llm.Message types.
func (r *Runner) Run(
	ctx context.Context,
	threadID string,
	userMsg string,
	history []llm.Message,
) (string, error) {
	if r.assistant == nil {
		return "", errors.New("assistant is nil")
	}
	if r.resolvedModel == "" {
		return "", errors.New("resolved model is required")
	}

	// Prepare LLM request (history is already in llm.Message format)
	req := prepareLLMRequest(r.assistant, r.resolvedModel, userMsg, history, r.toolProvider)

	// Execute tool loop
	return executeToolLoop(
		ctx,
		r.llmClient,
		req,
		r.assistant.ID,
		threadID,
		r.toolExec,
		r.messagePersister,
		r.maxIterations(),
		r.logger,
	)
}

// RunStream executes a single turn for an assistant with streaming support.
// It calls the callback function for each text delta received. A debug
// callback can be attached to ctx using WithDebugCallback.
func (r *Runner) RunStream(
	ctx context.Context,
	threadID string,
	userMsg string,
	history []llm.Message,
	callback StreamCallback,
) (string, error) {
	if r.assistant == nil {
		return "", errors.New("assistant is nil")
	}
	if r.resolvedModel == "" {
		return "", errors.New("resolved model is required")
	}

	// Prepare LLM request (history is already in llm.Message format)
	req := prepareLLMRequest(r.assistant, r.resolvedModel, userMsg, history, r.toolProvider)

	// Execute tool loop with streaming
	return executeToolLoopStream(
		ctx,
		r.llmClient,
		req,
		r.assistant.ID,
		threadID,
		r.toolExec,
		r.messagePersister,
		r.maxIterations(),
		callback,
		r.logger,
	)
}
