package openai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/samshapley/ancientgrok/llm"
	openai "github.com/sashabaranov/go-openai"
)

// openaiStream implements the llm.Stream interface for OpenAI streaming responses.
// The underlying stream is drained eagerly on the first Next() call; subsequent
// calls walk the buffered events.
type openaiStream struct {
	ctx     context.Context
	stream  *openai.ChatCompletionStream
	events  []*llm.StreamEvent
	current int
	mu      sync.Mutex
	err     error
	closed  bool
	started bool
}

// newOpenAIStream creates a new openaiStream.
func newOpenAIStream(ctx context.Context, stream *openai.ChatCompletionStream) *openaiStream {
	return &openaiStream{
		ctx:     ctx,
		stream:  stream,
		events:  make([]*llm.StreamEvent, 0),
		current: -1,
	}
}

// Next advances to the next event in the stream.
func (s *openaiStream) Next() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Drain the whole stream on first use
	if !s.started {
		s.started = true
		s.drainStream()
	}

	if s.err != nil {
		return false
	}

	s.current++
	return s.current < len(s.events)
}

// Event returns the current event.
func (s *openaiStream) Event() *llm.StreamEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current < 0 || s.current >= len(s.events) {
		return nil
	}
	return s.events[s.current]
}

// Err returns any error that occurred during streaming.
func (s *openaiStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close closes the stream and releases resources.
func (s *openaiStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.stream != nil {
		return s.stream.Close()
	}
	return nil
}

// drainStream consumes the underlying stream to completion and buffers
// provider-neutral events. Must be called with s.mu held.
func (s *openaiStream) drainStream() {
	s.events = append(s.events, &llm.StreamEvent{Type: llm.StreamEventTypeStart})

	// Accumulated state for the tool call currently being streamed
	var currentToolCall *llm.ToolUseBlock
	var toolInputBuilder strings.Builder
	var usage *llm.Usage

	finishToolCall := func() {
		if currentToolCall == nil {
			return
		}
		input := make(map[string]interface{})
		if toolInputBuilder.Len() > 0 {
			if err := json.Unmarshal([]byte(toolInputBuilder.String()), &input); err != nil {
				input = make(map[string]interface{})
			}
		}
		currentToolCall.Input = input
		toolInputBuilder.Reset()
		currentToolCall = nil
	}

	for {
		response, err := s.stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) || err.Error() == "stream closed" {
				break
			}
			s.err = err
			return
		}

		// The usage chunk arrives with an empty choice list after the finish
		// chunk when stream_options.include_usage is set
		if response.Usage != nil {
			usage = &llm.Usage{
				InputTokens:  int64(response.Usage.PromptTokens),
				OutputTokens: int64(response.Usage.CompletionTokens),
			}
		}

		if len(response.Choices) == 0 {
			continue
		}

		choice := response.Choices[0]

		// Handle content deltas
		if choice.Delta.Content != "" {
			s.events = append(s.events, &llm.StreamEvent{
				Type: llm.StreamEventTypeContentDelta,
				Delta: &llm.StreamDelta{
					Type: llm.StreamDeltaTypeText,
					Text: choice.Delta.Content,
				},
			})
		}

		// Handle tool call deltas
		for _, toolCallDelta := range choice.Delta.ToolCalls {
			if toolCallDelta.Index == nil {
				continue
			}

			// A new ID means the previous tool call is complete
			if currentToolCall != nil && toolCallDelta.ID != "" && currentToolCall.ID != toolCallDelta.ID {
				finishToolCall()
			}

			if currentToolCall == nil && toolCallDelta.ID != "" {
				currentToolCall = &llm.ToolUseBlock{
					ID:    toolCallDelta.ID,
					Name:  toolCallDelta.Function.Name,
					Input: make(map[string]interface{}),
				}

				s.events = append(s.events, &llm.StreamEvent{
					Type: llm.StreamEventTypeContentBlock,
					Delta: &llm.StreamDelta{
						Type:    llm.StreamDeltaTypeToolUse,
						ToolUse: currentToolCall,
					},
				})
			}

			// Accumulate tool input arguments
			if toolCallDelta.Function.Arguments != "" {
				toolInputBuilder.WriteString(toolCallDelta.Function.Arguments)

				s.events = append(s.events, &llm.StreamEvent{
					Type: llm.StreamEventTypeContentDelta,
					Delta: &llm.StreamDelta{
						Type:      llm.StreamDeltaTypeToolInput,
						ToolInput: toolCallDelta.Function.Arguments,
					},
				})
			}
		}

		if choice.FinishReason != "" {
			finishToolCall()
		}
	}

	// Flush any tool call left open by a stream that ended without a finish reason
	finishToolCall()

	s.events = append(s.events, &llm.StreamEvent{
		Type:  llm.StreamEventTypeMessageDelta,
		Usage: usage,
	}, &llm.StreamEvent{
		Type:  llm.StreamEventTypeStop,
		Usage: usage,
		Done:  true,
	})
}
