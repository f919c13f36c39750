package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/ollama/ollama/api"
	"github.com/samshapley/ancientgrok/llm"
)

// ollamaStream implements the llm.Stream interface for Ollama streaming responses.
// The Chat callback feeds events into a buffer from a background goroutine;
// Next() blocks on a condition variable until an event is available.
type ollamaStream struct {
	ctx     context.Context
	client  *api.Client
	req     *api.ChatRequest
	events  []*llm.StreamEvent
	current int
	mu      sync.Mutex
	cond    *sync.Cond
	err     error
	done    bool
	started bool
}

// newOllamaStream creates a new ollamaStream.
func newOllamaStream(ctx context.Context, client *api.Client, req *api.ChatRequest) *ollamaStream {
	stream := &ollamaStream{
		ctx:     ctx,
		client:  client,
		req:     req,
		events:  make([]*llm.StreamEvent, 0),
		current: -1,
	}
	stream.cond = sync.NewCond(&stream.mu)
	return stream
}

// Next advances to the next event in the stream.
func (s *ollamaStream) Next() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Lazily start the chat request on first call
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
func (s *ollamaStream) Event() *llm.StreamEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current < 0 || s.current >= len(s.events) {
		return nil
	}
	return s.events[s.current]
}

// Err returns any error that occurred during streaming.
func (s *ollamaStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close closes the stream and releases resources.
func (s *ollamaStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.done = true
	return nil
}

// emitLocked appends an event and wakes any waiting reader.
// Must be called with s.mu held.
func (s *ollamaStream) emitLocked(evt *llm.StreamEvent) {
	s.events = append(s.events, evt)
	s.cond.Broadcast()
}

// startStream runs the chat request and translates callback responses into events.
func (s *ollamaStream) startStream() {
	s.mu.Lock()
	s.emitLocked(&llm.StreamEvent{Type: llm.StreamEventTypeStart})
	s.mu.Unlock()

	// Ollama sends incremental deltas (new tokens) in each response, not cumulative content
	var currentToolCall *llm.ToolUseBlock
	firstContentBlock := true

	err := s.client.Chat(s.ctx, s.req, func(resp api.ChatResponse) error {
		s.mu.Lock()
		defer s.mu.Unlock()

		// Handle message content deltas
		if resp.Message.Content != "" {
			eventType := llm.StreamEventTypeContentDelta
			if firstContentBlock {
				eventType = llm.StreamEventTypeContentBlock
				firstContentBlock = false
			}
			s.emitLocked(&llm.StreamEvent{
				Type: eventType,
				Delta: &llm.StreamDelta{
					Type: llm.StreamDeltaTypeText,
					Text: resp.Message.Content,
				},
			})
		}

		// Handle tool calls
		for _, toolCall := range resp.Message.ToolCalls {
			if currentToolCall == nil || currentToolCall.Name != toolCall.Function.Name {
				// New tool call - previous one is already complete (Input already merged)
				toolUseID := fmt.Sprintf("tool_%s_%d", toolCall.Function.Name, len(s.events))
				currentToolCall = &llm.ToolUseBlock{
					ID:    toolUseID,
					Name:  toolCall.Function.Name,
					Input: make(map[string]interface{}),
				}

				s.emitLocked(&llm.StreamEvent{
					Type: llm.StreamEventTypeContentBlock,
					Delta: &llm.StreamDelta{
						Type:    llm.StreamDeltaTypeToolUse,
						ToolUse: currentToolCall,
					},
				})
			}

			// Arguments arrive as a map, so merge incremental updates directly
			if len(toolCall.Function.Arguments) > 0 {
				if currentToolCall.Input == nil {
					currentToolCall.Input = make(map[string]interface{})
				}
				for k, v := range toolCall.Function.Arguments {
					currentToolCall.Input[k] = v
				}

				// Marshal the current merged state for streaming events
				if argsBytes, err := json.Marshal(currentToolCall.Input); err == nil {
					s.emitLocked(&llm.StreamEvent{
						Type: llm.StreamEventTypeContentDelta,
						Delta: &llm.StreamDelta{
							Type:      llm.StreamDeltaTypeToolInput,
							ToolInput: string(argsBytes),
						},
					})
				}
			}
		}

		if resp.Done {
			if currentToolCall != nil && currentToolCall.Input == nil {
				currentToolCall.Input = make(map[string]interface{})
			}

			usage := &llm.Usage{}
			if resp.PromptEvalCount > 0 {
				usage.InputTokens = int64(resp.PromptEvalCount)
			}
			if resp.EvalCount > 0 {
				usage.OutputTokens = int64(resp.EvalCount)
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
		}

		return nil
	})

	if err != nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.err = err
		s.done = true
		s.cond.Broadcast()
	}
}
