package gemini

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/samshapley/ancientgrok/llm"
)

// geminiStream implements the llm.Stream interface over the Gemini SSE wire
// format (streamGenerateContent?alt=sse). A background goroutine scans the
// response body and appends events to a buffer; Next() blocks on a condition
// variable until an event is available.
type geminiStream struct {
	ctx     context.Context
	body    io.ReadCloser
	logger  zerolog.Logger
	events  []*llm.StreamEvent
	current int
	mu      sync.Mutex
	cond    *sync.Cond
	err     error
	done    bool
	started bool
}

// newGeminiStream creates a new geminiStream over an SSE response body.
func newGeminiStream(ctx context.Context, body io.ReadCloser, logger zerolog.Logger) *geminiStream {
	stream := &geminiStream{
		ctx:     ctx,
		body:    body,
		logger:  logger,
		events:  make([]*llm.StreamEvent, 0),
		current: -1,
	}
	stream.cond = sync.NewCond(&stream.mu)
	return stream
}

// Next advances to the next event in the stream.
func (s *geminiStream) Next() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Lazily start the reader on first call
	if !s.started {
		s.started = true
		go s.readStream()
	}

	s.current++

	// Wait until an event is available, the stream finishes, or it errors
	for s.current >= len(s.events) && !s.done && s.err == nil {
		s.cond.Wait()
	}

	if s.err != nil {
		return false
	}
	if s.done && s.current >= len(s.events) {
		return false
	}

	return s.current < len(s.events)
}

// Event returns the current event.
func (s *geminiStream) Event() *llm.StreamEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current < 0 || s.current >= len(s.events) {
		return nil
	}
	return s.events[s.current]
}

// Err returns any error that occurred during streaming.
func (s *geminiStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close closes the stream and releases resources.
func (s *geminiStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.done = true
	s.cond.Broadcast()
	return s.body.Close()
}

// emitLocked appends an event and wakes any waiting reader.
// Must be called with s.mu held.
func (s *geminiStream) emitLocked(evt *llm.StreamEvent) {
	s.events = append(s.events, evt)
	s.cond.Broadcast()
}

// failLocked records a stream error and wakes any waiting reader.
// Must be called with s.mu held.
func (s *geminiStream) failLocked(err error) {
	s.err = err
	s.cond.Broadcast()
}

// readStream scans SSE data lines from the response body and translates each
// chunk into stream events. Gemini chunks carry incremental text parts and
// complete function calls; the final chunk carries usage metadata.
func (s *geminiStream) readStream() {
	defer s.body.Close()

	s.mu.Lock()
	s.emitLocked(&llm.StreamEvent{Type: llm.StreamEventTypeStart})
	s.mu.Unlock()

	var usage *llm.Usage
	firstContentBlock := true
	toolCallCount := 0

	scanner := bufio.NewScanner(s.body)
	// Function call chunks can exceed the default 64KB token limit
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		select {
		case <-s.ctx.Done():
			s.mu.Lock()
			s.failLocked(s.ctx.Err())
			s.mu.Unlock()
			return
		default:
		}

		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		payload := strings.TrimPrefix(line, "data: ")

		var chunk GenerateContentResponse
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			s.logger.Warn().Err(err).Msg("Skipping malformed gemini stream chunk")
			continue
		}

		// Mid-stream errors arrive as a data payload with an error envelope
		var envelope apiErrorBody
		if err := json.Unmarshal([]byte(payload), &envelope); err == nil && envelope.Error.Message != "" {
			s.mu.Lock()
			s.failLocked(llm.NewProviderError(
				fmt.Sprintf("gemini stream error: %s", envelope.Error.Message), nil))
			s.mu.Unlock()
			return
		}

		if chunk.UsageMetadata != nil {
			usage = &llm.Usage{
				InputTokens:  chunk.UsageMetadata.PromptTokenCount,
				OutputTokens: chunk.UsageMetadata.CandidatesTokenCount,
			}
		}

		if len(chunk.Candidates) == 0 || chunk.Candidates[0].Content == nil {
			continue
		}

		s.mu.Lock()
		for _, part := range chunk.Candidates[0].Content.Parts {
			if part.Text != "" {
				eventType := llm.StreamEventTypeContentDelta
				if firstContentBlock {
					eventType = llm.StreamEventTypeContentBlock
					firstContentBlock = false
				}
				s.emitLocked(&llm.StreamEvent{
					Type: eventType,
					Delta: &llm.StreamDelta{
						Type: llm.StreamDeltaTypeText,
						Text: part.Text,
					},
				})
			}

			if part.FunctionCall != nil {
				// Gemini delivers function calls whole, never split across chunks
				toolUse := &llm.ToolUseBlock{
					ID:    fmt.Sprintf("call_%s_%d", part.FunctionCall.Name, toolCallCount),
					Name:  part.FunctionCall.Name,
					Input: part.FunctionCall.Args,
				}
				toolCallCount++
				s.emitLocked(&llm.StreamEvent{
					Type: llm.StreamEventTypeContentBlock,
					Delta: &llm.StreamDelta{
						Type:    llm.StreamDeltaTypeToolUse,
						ToolUse: toolUse,
					},
				})
			}
		}
		s.mu.Unlock()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := scanner.Err(); err != nil {
		s.failLocked(llm.NewNetworkError("gemini stream read failed", err))
		return
	}

	if usage != nil {
		s.logger.Debug().
			Int64("input_tokens", usage.InputTokens).
			Int64("output_tokens", usage.OutputTokens).
			Msg("Gemini stream complete")
	}

	s.emitLocked(&llm.StreamEvent{
		Type:  llm.StreamEventTypeMessageDelta,
		Usage: usage,
	})
	s.emitLocked(&llm.StreamEvent{
		Type: llm.StreamEventTypeStop,
		Done: true,
	})
	s.done = true
	s.cond.Broadcast()
}
