package anthropic

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"
	"github.com/rs/zerolog"
	"github.com/samshapley/ancientgrok/llm"
)

// anthropicStream implements the llm.Stream interface for Anthropic streaming responses.
// Events are drained from the SDK stream by a background goroutine into a buffer;
// Next() blocks on a condition variable until an event is available.
type anthropicStream struct {
	ctx     context.Context
	stream  *ssestream.Stream[anthropic.MessageStreamEventUnion]
	events  []*llm.StreamEvent
	current int
	mu      sync.Mutex
	cond    *sync.Cond
	err     error
	done    bool
	started bool
	logger  zerolog.Logger
}

// newAnthropicStream creates a new anthropicStream.
func newAnthropicStream(ctx context.Context, stream *ssestream.Stream[anthropic.MessageStreamEventUnion], logger zerolog.Logger) *anthropicStream {
	as := &anthropicStream{
		ctx:     ctx,
		stream:  stream,
		events:  make([]*llm.StreamEvent, 0),
		current: -1,
		logger:  logger,
	}
	as.cond = sync.NewCond(&as.mu)
	return as
}

// Next advances to the next event in the stream.
func (s *anthropicStream) Next() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Lazily start draining the SDK stream on first call
	if !s.started {
		s.started = true
		go s.startStream()
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
func (s *anthropicStream) Event() *llm.StreamEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current < 0 || s.current >= len(s.events) {
		return nil
	}
	return s.events[s.current]
}

// Err returns any error that occurred during streaming.
func (s *anthropicStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close closes the stream and releases resources.
func (s *anthropicStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.done = true
	if s.stream != nil {
		return s.stream.Close()
	}
	return nil
}

// emitLocked appends an event and wakes any waiting reader.
// Must be called with s.mu held.
func (s *anthropicStream) emitLocked(evt *llm.StreamEvent) {
	s.events = append(s.events, evt)
	s.cond.Broadcast()
}

// startStream drains the SDK stream and translates its events into provider-neutral ones.
func (s *anthropicStream) startStream() {
	s.mu.Lock()
	s.emitLocked(&llm.StreamEvent{Type: llm.StreamEventTypeStart})
	s.mu.Unlock()

	// Accumulated state for the tool call currently being streamed
	var currentToolCall *llm.ToolUseBlock
	var toolInputBuilder strings.Builder
	var usage *llm.Usage

	for s.stream.Next() {
		event := s.stream.Current()

		s.mu.Lock()

		switch evt := event.AsAny().(type) {
		case anthropic.MessageStartEvent:
			// Already emitted our own start event

		case anthropic.ContentBlockStartEvent:
			if contentBlock := evt.ContentBlock.AsAny(); contentBlock != nil {
				switch block := contentBlock.(type) {
				case anthropic.ToolUseBlock:
					currentToolCall = &llm.ToolUseBlock{
						ID:    block.ID,
						Name:  block.Name,
						Input: make(map[string]interface{}),
					}
					toolInputBuilder.Reset()

					s.emitLocked(&llm.StreamEvent{
						Type: llm.StreamEventTypeContentBlock,
						Delta: &llm.StreamDelta{
							Type:    llm.StreamDeltaTypeToolUse,
							ToolUse: currentToolCall,
						},
					})
				}
			}

		case anthropic.ContentBlockDeltaEvent:
			switch d := evt.Delta.AsAny().(type) {
			case anthropic.TextDelta:
				if d.Text != "" {
					s.emitLocked(&llm.StreamEvent{
						Type: llm.StreamEventTypeContentDelta,
						Delta: &llm.StreamDelta{
							Type: llm.StreamDeltaTypeText,
							Text: d.Text,
						},
					})
				}
			case anthropic.InputJSONDelta:
				if currentToolCall != nil && d.PartialJSON != "" {
					toolInputBuilder.WriteString(d.PartialJSON)
					s.emitLocked(&llm.StreamEvent{
						Type: llm.StreamEventTypeContentDelta,
						Delta: &llm.StreamDelta{
							Type:      llm.StreamDeltaTypeToolInput,
							ToolInput: d.PartialJSON,
						},
					})
				}
			}

		case anthropic.ContentBlockStopEvent:
			if currentToolCall != nil {
				currentToolCall.Input = parseToolInput(&toolInputBuilder)
				toolInputBuilder.Reset()
				currentToolCall = nil
			}

		case anthropic.MessageDeltaEvent:
			// Message delta carries the usage totals
			usage = &llm.Usage{
				InputTokens:              evt.Usage.InputTokens,
				OutputTokens:             evt.Usage.OutputTokens,
				CacheCreationInputTokens: evt.Usage.CacheCreationInputTokens,
				CacheReadInputTokens:     evt.Usage.CacheReadInputTokens,
			}

			if usage.CacheCreationInputTokens > 0 || usage.CacheReadInputTokens > 0 {
				cacheEfficiency := float64(0)
				if usage.InputTokens > 0 {
					cacheEfficiency = float64(usage.CacheReadInputTokens) / float64(usage.InputTokens) * 100
				}
				s.logger.Debug().
					Int64("input_tokens", usage.InputTokens).
					Int64("cache_creation_tokens", usage.CacheCreationInputTokens).
					Int64("cache_read_tokens", usage.CacheReadInputTokens).
					Float64("cache_efficiency", cacheEfficiency).
					Msg("Prompt cache stats (stream)")
			}

		case anthropic.MessageStopEvent:
			// Finish any pending tool call before closing out
			if currentToolCall != nil {
				currentToolCall.Input = parseToolInput(&toolInputBuilder)
			}

			s.emitLocked(&llm.StreamEvent{
				Type:  llm.StreamEventTypeMessageDelta,
				Usage: usage,
			})
			s.emitLocked(&llm.StreamEvent{
				Type:  llm.StreamEventTypeStop,
				Usage: usage,
				Done:  true,
			})

			s.done = true
			s.cond.Broadcast()
			s.mu.Unlock()
			return
		}

		s.mu.Unlock()
	}

	// Check for stream errors after loop ends
	if err := s.stream.Err(); err != nil {
		s.mu.Lock()
		s.err = err
		s.done = true
		s.cond.Broadcast()
		s.mu.Unlock()
		return
	}

	// Loop ended without a stop event; mark done so readers aren't stranded
	s.mu.Lock()
	if !s.done {
		s.done = true
		s.cond.Broadcast()
	}
	s.mu.Unlock()
}

// parseToolInput decodes the accumulated partial-JSON input for a tool call.
// Malformed or empty input yields an empty map rather than an error; the
// assistant layer surfaces bad tool arguments to the model as tool errors.
func parseToolInput(b *strings.Builder) map[string]interface{} {
	if b.Len() == 0 {
		return make(map[string]interface{})
	}
	var input map[string]interface{}
	if err := json.Unmarshal([]byte(b.String()), &input); err != nil {
		return make(map[string]interface{})
	}
	return input
}
