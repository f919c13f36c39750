package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/samshapley/ancientgrok/llm"
)

// compactSystemPrompt instructs the model to distill a conversation into a
// summary dense enough to continue from.
const compactSystemPrompt = `You summarize conversations between a user and a research assistant.
Produce a compact summary that preserves: stated goals, tablet identifiers
(P-numbers) and search queries, translations and their confidence, file paths
written or read, and any decisions or open questions. Write plain prose, no
preamble.`

// compactMaxTokens bounds the summary response.
const compactMaxTokens = 2048

// Compactor condenses a conversation history into a short summary using the
// assistant's own LLM client. It backs the /compress chat command.
type Compactor struct {
	client llm.Client
	model  string
	logger zerolog.Logger
}

// NewCompactor creates a Compactor that summarizes with the given client and model.
func NewCompactor(client llm.Client, model string, logger zerolog.Logger) *Compactor {
	return &Compactor{
		client: client,
		model:  model,
		logger: logger.With().Str("component", "compactor").Logger(),
	}
}

// SummarizeContext summarizes an entire conversation, including the system
// prompt and message history. The transcript is rendered to plain text and
// sent through the LLM in a single request.
func (c *Compactor) SummarizeContext(ctx context.Context, systemPrompt string, messages []llm.Message) (string, error) {
	if c.client == nil {
		return "", fmt.Errorf("compactor has no LLM client")
	}

	transcript := renderTranscript(systemPrompt, messages)
	if transcript == "" {
		return "", fmt.Errorf("nothing to summarize")
	}

	req := &llm.Request{
		Model:     c.model,
		System:    compactSystemPrompt,
		Messages:  []llm.Message{llm.NewTextMessage(llm.RoleUser, transcript)},
		MaxTokens: compactMaxTokens,
	}

	resp, err := c.client.Synchronous(ctx, req)
	if err != nil {
		return "", fmt.Errorf("failed to summarize context: %w", err)
	}

	summary := strings.TrimSpace(resp.Text())
	if summary == "" {
		return "", fmt.Errorf("summarizer returned empty response")
	}

	c.logger.Debug().
		Int("original_chars", len(transcript)).
		Int("summary_chars", len(summary)).
		Msg("Summarized context")
	return summary, nil
}

// renderTranscript converts a conversation to text form for summarization,
// preserving both the information and the flow of the conversation.
func renderTranscript(systemPrompt string, messages []llm.Message) string {
	var b strings.Builder

	if systemPrompt != "" {
		b.WriteString("System: ")
		b.WriteString(systemPrompt)
		b.WriteString("\n\n")
	}

	for _, msg := range messages {
		switch msg.Role {
		case llm.RoleUser:
			b.WriteString("User: ")
			for _, block := range msg.Content {
				if block.Type == llm.ContentBlockTypeText {
					b.WriteString(block.Text)
				} else if block.Type == llm.ContentBlockTypeToolResult && block.ToolResult != nil {
					b.WriteString(block.ToolResult.Content)
				}
			}
			b.WriteString("\n\n")
		case llm.RoleAssistant:
			b.WriteString("Assistant: ")
			for _, block := range msg.Content {
				if block.Type == llm.ContentBlockTypeText {
					b.WriteString(block.Text)
				} else if block.Type == llm.ContentBlockTypeToolUse && block.ToolUse != nil {
					b.WriteString(fmt.Sprintf("[Tool: %s]", block.ToolUse.Name))
					if block.ToolUse.Input != nil {
						if inputBytes, err := json.Marshal(block.ToolUse.Input); err == nil {
							b.WriteString(fmt.Sprintf(" %s", string(inputBytes)))
						}
					}
				}
			}
			b.WriteString("\n\n")
		default:
			for _, block := range msg.Content {
				if block.Type == llm.ContentBlockTypeText {
					b.WriteString(block.Text)
				} else if block.Type == llm.ContentBlockTypeToolResult && block.ToolResult != nil {
					b.WriteString("Tool Result: ")
					b.WriteString(block.ToolResult.Content)
				}
			}
			b.WriteString("\n\n")
		}
	}

	return strings.TrimSpace(b.String())
}

// GetContextSize calculates the total character count of the conversation
// context. This includes the system prompt and all message content (text
// blocks, tool use blocks, and tool result blocks).
func GetContextSize(systemPrompt string, messages []llm.Message) int {
	totalLength := len(systemPrompt)

	for _, msg := range messages {
		for _, block := range msg.Content {
			switch block.Type {
			case llm.ContentBlockTypeText:
				totalLength += len(block.Text)
			case llm.ContentBlockTypeToolUse:
				if block.ToolUse != nil {
					// Include tool name
					totalLength += len(block.ToolUse.Name)
					// Include tool input JSON
					if block.ToolUse.Input != nil {
						if inputBytes, err := json.Marshal(block.ToolUse.Input); err == nil {
							totalLength += len(inputBytes)
						}
					}
				}
			case llm.ContentBlockTypeToolResult:
				if block.ToolResult != nil {
					// Include tool result content
					totalLength += len(block.ToolResult.Content)
				}
			}
		}
	}

	return totalLength
}
