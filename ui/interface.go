package ui

import (
	"context"
	"time"

	"github.com/samshapley/ancientgrok/llm"
)

// StreamCallback is called for each text delta received from the streaming API
type StreamCallback func(text string) error

// DebugCallback is called for debug information (tool invocations, API calls, etc.)
type DebugCallback func(message string)

// ChatService provides an interface for UI components to interact with assistants
// without directly coupling to the agent implementation.
// All message types use the provider-neutral llm.Message type.
type ChatService interface {
	// SendMessage sends a message to an assistant and returns the response.
	// This is a non-streaming call.
	SendMessage(ctx context.Context, assistantID, threadID, message string, history []llm.Message) (string, error)

	// SendMessageStream sends a message to an assistant with streaming support.
	// The streamCallback is called for each text delta received.
	SendMessageStream(ctx context.Context, assistantID, threadID, message string, history []llm.Message, streamCallback StreamCallback) (string, error)

	// GetChatTimeout returns the timeout duration for chat operations.
	GetChatTimeout() time.Duration

	// ListAssistants returns a list of available assistants.
	ListAssistants() []AssistantInfo

	// GetOrCreateThreadID gets an existing thread ID for an assistant, or creates a new one if none exists.
	GetOrCreateThreadID(ctx context.Context, assistantID string) (string, error)

	// LoadConversationHistory loads conversation history for a given assistant and thread ID.
	LoadConversationHistory(ctx context.Context, assistantID, threadID string) ([]llm.Message, error)

	// LoadThread loads conversation history for a given assistant and thread ID.
	// Reconstructs proper message structures from database rows.
	LoadThread(ctx context.Context, assistantID, threadID string) ([]llm.Message, error)

	// SaveMessage saves a user or assistant message to the conversation history.
	SaveMessage(ctx context.Context, assistantID, threadID, role, content string) error

	// AppendUserMessage saves a user text message to the conversation history.
	AppendUserMessage(ctx context.Context, assistantID, threadID, content string) error

	// AppendAssistantMessage saves an assistant text-only message to the conversation history.
	AppendAssistantMessage(ctx context.Context, assistantID, threadID, content string) error

	// AppendToolCall saves an assistant message with tool use blocks to the conversation history.
	// toolID is the unique ID for this tool call.
	// toolName is the name of the tool being called.
	// toolInput is the input parameters for the tool (will be JSON-marshaled).
	AppendToolCall(ctx context.Context, assistantID, threadID, toolID, toolName string, toolInput any) error

	// AppendToolResult saves a tool result message to the conversation history.
	// toolID is the unique ID for the tool call that produced this result.
	// toolName is the name of the tool that produced the result.
	// result is the tool result (will be JSON-marshaled).
	// isError indicates if the result represents an error.
	AppendToolResult(ctx context.Context, assistantID, threadID, toolID, toolName string, result any, isError bool) error

	// ResetContext clears the context by inserting a system message marking the reset.
	ResetContext(ctx context.Context, assistantID, threadID string) error

	// CompressContext summarizes the context and inserts a system message marking the compression.
	CompressContext(ctx context.Context, assistantID, threadID string) error

	// LoadSystemMessages loads system messages (context breaks) for a given assistant and thread ID.
	LoadSystemMessages(ctx context.Context, assistantID, threadID string) ([]map[string]interface{}, error)

	// LoadMessagesWithTimestamps loads regular (non-system) messages with their timestamps.
	// Only loads messages after the most recent reset or compression break (if any).
	// This is used for LLM context - only messages after the break are sent to the model.
	LoadMessagesWithTimestamps(ctx context.Context, assistantID, threadID string) ([]MessageWithTimestamp, error)

	// LoadAllMessagesWithTimestamps loads ALL regular (non-system) messages with their timestamps.
	// This is used for display purposes to show the full conversation history.
	LoadAllMessagesWithTimestamps(ctx context.Context, assistantID, threadID string) ([]MessageWithTimestamp, error)

	// GetSystemInfo returns information about the system configuration.
	GetSystemInfo(ctx context.Context) (*SystemInfo, error)
}

// MessageWithTimestamp represents a message with its database timestamp.
// Uses the provider-neutral llm.Message type.
type MessageWithTimestamp struct {
	Message   llm.Message
	Timestamp int64
}

// AssistantInfo provides basic information about an assistant for UI display.
type AssistantInfo struct {
	ID       string
	Name     string
	Provider string // e.g., llm.ProviderAnthropic, llm.ProviderGemini, llm.ProviderXAI
	Model    string // e.g., "claude-sonnet-4-5"
}

// SystemInfo provides information about the system configuration.
type SystemInfo struct {
	LLMProvider string
	MCPServers  []MCPServerInfo
	Tools       []ToolInfo
}

// MCPServerInfo provides information about an MCP server.
type MCPServerInfo struct {
	Name    string
	Tools   []string
	Enabled bool
}

// ToolInfo provides information about a tool.
type ToolInfo struct {
	Name        string
	Description string
	Server      string // MCP server name if from MCP, empty for native tools
}
