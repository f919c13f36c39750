package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/samshapley/ancientgrok/llm"
)

// LoggingMiddleware logs LLM requests, responses, and errors.
type LoggingMiddleware struct {
	logger      zerolog.Logger
	assistantID string
}

// NewLoggingMiddleware creates a new LoggingMiddleware.
func NewLoggingMiddleware(logger zerolog.Logger, assistantID string) *LoggingMiddleware {
	return &LoggingMiddleware{
		logger:      logger.With().Str("component", "llmLogging").Str("assistant_id", assistantID).Logger(),
		assistantID: assistantID,
	}
}

// BeforeRequest implements llm.Middleware.BeforeRequest.
func (m *LoggingMiddleware) BeforeRequest(ctx context.Context, req *llm.Request) (*llm.Request, error) {
	m.logger.Debug().
		Str("model", req.Model).
		Int("messages", len(req.Messages)).
		Int("tools", len(req.Tools)).
		Msg("LLM request")
	return req, nil
}

// AfterResponse implements llm.Middleware.AfterResponse.
func (m *LoggingMiddleware) AfterResponse(ctx context.Context, req *llm.Request, resp *llm.Response) (*llm.Response, error) {
	ev := m.logger.Debug().
		Str("model", req.Model).
		Str("stop_reason", resp.StopReason)
	if resp.Usage != nil {
		ev = ev.Int64("input_tokens", resp.Usage.InputTokens).
			Int64("output_tokens", resp.Usage.OutputTokens)
	}
	ev.Msg("LLM response")
	return resp, nil
}

// OnError implements llm.Middleware.OnError.
func (m *LoggingMiddleware) OnError(ctx context.Context, req *llm.Request, err error) error {
	if err != nil {
		m.logger.Warn().Err(err).Str("model", req.Model).Msg("LLM request failed")
	}
	return err
}

// RateLimitMiddleware handles rate limit errors and retries.
type RateLimitMiddleware struct {
	logger           zerolog.Logger
	rateLimitHandler *RateLimitHandler
	assistantID      string
}

// NewRateLimitMiddleware creates a new RateLimitMiddleware.
func NewRateLimitMiddleware(logger zerolog.Logger, rateLimitHandler *RateLimitHandler, assistantID string) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		logger:           logger.With().Str("component", "rateLimitMiddleware").Logger(),
		rateLimitHandler: rateLimitHandler,
		assistantID:      assistantID,
	}
}

// BeforeRequest implements llm.Middleware.BeforeRequest.
func (m *RateLimitMiddleware) BeforeRequest(ctx context.Context, req *llm.Request) (*llm.Request, error) {
	return req, nil
}

// AfterResponse implements llm.Middleware.AfterResponse.
func (m *RateLimitMiddleware) AfterResponse(ctx context.Context, req *llm.Request, resp *llm.Response) (*llm.Response, error) {
	return resp, nil
}

// OnError implements llm.Middleware.OnError.
func (m *RateLimitMiddleware) OnError(ctx context.Context, req *llm.Request, err error) error {
	if err == nil {
		return nil
	}

	// Check if this is a rate limit error
	if !isRateLimitErrorString(err) {
		return err
	}

	if m.rateLimitHandler == nil {
		return err
	}

	// Handle rate limit
	delay, shouldRetry, handlerErr := m.rateLimitHandler.HandleRateLimit(ctx, m.assistantID, err, 0, nil)
	if handlerErr != nil {
		return fmt.Errorf("rate limit handler error: %w", handlerErr)
	}

	if !shouldRetry {
		return fmt.Errorf("rate limit: max retries exceeded: %w", err)
	}

	// Wait for retry delay
	if waitErr := m.rateLimitHandler.WaitForRetry(ctx, delay); waitErr != nil {
		return fmt.Errorf("context cancelled while waiting for rate limit retry: %w", waitErr)
	}

	// Return error to trigger retry
	return fmt.Errorf("rate limit: %w", err)
}

// BeforeStream implements llm.StreamMiddleware.BeforeStream.
func (m *RateLimitMiddleware) BeforeStream(ctx context.Context, req *llm.Request) (*llm.Request, error) {
	return req, nil
}

// OnStreamEvent implements llm.StreamMiddleware.OnStreamEvent.
func (m *RateLimitMiddleware) OnStreamEvent(ctx context.Context, req *llm.Request, event *llm.StreamEvent) (*llm.StreamEvent, error) {
	return event, nil
}

// OnStreamError implements llm.StreamMiddleware.OnStreamError.
func (m *RateLimitMiddleware) OnStreamError(ctx context.Context, req *llm.Request, err error) error {
	return m.OnError(ctx, req, err)
}

// Helper functions

// isRateLimitErrorString checks if an error looks like a provider rate limit error.
func isRateLimitErrorString(err error) bool {
	if err == nil {
		return false
	}

	errStr := err.Error()
	// Check for common 429 error indicators
	return strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "rate_limit") ||
		strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "Too Many Requests") ||
		strings.Contains(errStr, "Rate limit exceeded")
}
