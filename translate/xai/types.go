package xai

// Wire types for the xAI batch API. Requests wrap an OpenAI-style chat
// completion inside a chat_get_completion envelope; results mirror it back.

type createBatchRequest struct {
	Name string `json:"name"`
}

type createBatchResponse struct {
	BatchID string `json:"batch_id"`
}

type addRequestsBody struct {
	BatchRequests []batchRequestEntry `json:"batch_requests"`
}

type batchRequestEntry struct {
	BatchRequestID string           `json:"batch_request_id"`
	BatchRequest   batchRequestBody `json:"batch_request"`
}

type batchRequestBody struct {
	ChatGetCompletion chatRequest `json:"chat_get_completion"`
}

type chatRequest struct {
	Messages    []chatMessage  `json:"messages"`
	Model       string         `json:"model"`
	Tools       []chatTool     `json:"tools,omitempty"`
	ToolChoice  chatToolChoice `json:"tool_choice,omitempty"`
	MaxTokens   int64          `json:"max_tokens,omitempty"`
	Temperature *float64       `json:"temperature,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatTool struct {
	Type     string       `json:"type"`
	Function chatFunction `json:"function"`
}

type chatFunction struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Parameters  map[string]interface{} `json:"parameters,omitempty"`
}

type chatToolChoice struct {
	Type     string             `json:"type"`
	Function chatToolChoiceName `json:"function"`
}

type chatToolChoiceName struct {
	Name string `json:"name"`
}

type batchStatusResponse struct {
	State batchState `json:"state"`
}

type batchState struct {
	NumRequests int `json:"num_requests"`
	NumPending  int `json:"num_pending"`
	NumSuccess  int `json:"num_success"`
	NumError    int `json:"num_error"`
}

type resultsResponse struct {
	Results         []resultEntry `json:"results"`
	PaginationToken string        `json:"pagination_token"`
}

type resultEntry struct {
	BatchRequestID string          `json:"batch_request_id"`
	BatchResult    batchResultBody `json:"batch_result"`
}

type batchResultBody struct {
	Response batchResponseBody `json:"response"`
}

type batchResponseBody struct {
	ChatGetCompletion *chatCompletion `json:"chat_get_completion"`
}

type chatCompletion struct {
	ID      string       `json:"id"`
	Choices []chatChoice `json:"choices"`
	Usage   *chatUsage   `json:"usage"`
}

type chatChoice struct {
	Message chatChoiceMessage `json:"message"`
}

type chatChoiceMessage struct {
	Content   string         `json:"content"`
	ToolCalls []chatToolCall `json:"tool_calls"`
}

type chatToolCall struct {
	ID       string           `json:"id"`
	Function chatToolCallFunc `json:"function"`
}

type chatToolCallFunc struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type chatUsage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
}
