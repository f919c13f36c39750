package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/samshapley/ancientgrok/llm"
)

// DefaultBaseURL is the Gemini REST API endpoint.
const DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// Gemini rate limit responses don't carry a usable retry-after header
const defaultRetryAfter = 60 * time.Second

// GeminiClient implements the llm.Client interface for the Gemini REST API.
// There is no official Gemini SDK in this codebase's dependency set, so the
// client speaks the documented JSON/SSE wire protocol directly.
type GeminiClient struct {
	httpClient *http.Client
	apiKey     string
	model      string // Default model to use if not specified in request
	baseURL    string
	logger     zerolog.Logger
}

// NewGeminiClient creates a new GeminiClient with the given API key.
func NewGeminiClient(apiKey, model string, logger zerolog.Logger) (*GeminiClient, error) {
	return NewGeminiClientWithBaseURL(apiKey, model, DefaultBaseURL, logger)
}

// NewGeminiClientWithBaseURL creates a GeminiClient against a custom endpoint.
func NewGeminiClientWithBaseURL(apiKey, model, baseURL string, logger zerolog.Logger) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("api key is required")
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	return &GeminiClient{
		httpClient: &http.Client{},
		apiKey:     apiKey,
		model:      model,
		baseURL:    baseURL,
		logger:     logger,
	}, nil
}

// Synchronous implements llm.Client.Synchronous.
func (c *GeminiClient) Synchronous(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	if req == nil {
		return nil, fmt.Errorf("request is required")
	}

	model, body, err := c.buildGenerateRequest(req)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, model)
	httpResp, err := c.post(ctx, url, body)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return nil, convertGeminiError(httpResp)
	}

	var genResp GenerateContentResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&genResp); err != nil {
		return nil, llm.NewProviderError("failed to decode gemini response", err)
	}

	if len(genResp.Candidates) == 0 {
		return nil, llm.NewProviderError("gemini returned no candidates", nil)
	}

	candidate := genResp.Candidates[0]
	content := FromCandidate(candidate)
	if len(content) == 0 {
		// Safety filters return a candidate with an empty content list
		return nil, llm.NewProviderError(
			fmt.Sprintf("gemini returned empty content (finish reason: %s)", candidate.FinishReason), nil)
	}

	usage := &llm.Usage{}
	if genResp.UsageMetadata != nil {
		usage.InputTokens = genResp.UsageMetadata.PromptTokenCount
		usage.OutputTokens = genResp.UsageMetadata.CandidatesTokenCount
	}

	return &llm.Response{
		Content:    content,
		Usage:      usage,
		StopReason: convertFinishReason(candidate.FinishReason),
	}, nil
}

// Stream implements llm.Client.Stream.
func (c *GeminiClient) Stream(ctx context.Context, req *llm.Request) (llm.Stream, error) {
	if req == nil {
		return nil, fmt.Errorf("request is required")
	}

	model, body, err := c.buildGenerateRequest(req)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/models/%s:streamGenerateContent?alt=sse", c.baseURL, model)
	httpResp, err := c.post(ctx, url, body)
	if err != nil {
		return nil, err
	}

	if httpResp.StatusCode != http.StatusOK {
		defer httpResp.Body.Close()
		return nil, convertGeminiError(httpResp)
	}

	return newGeminiStream(ctx, httpResp.Body, c.logger), nil
}

// buildGenerateRequest converts a provider-neutral request into the Gemini
// request body, returning the resolved model name and encoded JSON.
func (c *GeminiClient) buildGenerateRequest(req *llm.Request) (string, []byte, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}
	if model == "" {
		return "", nil, fmt.Errorf("model is required")
	}

	genReq := GenerateContentRequest{
		Contents:       ToContents(req.Messages),
		SafetySettings: DefaultSafetySettings(),
		Tools:          ToTools(req.Tools),
		ToolConfig:     ToToolConfig(req.ToolChoice),
	}

	if req.System != "" {
		genReq.SystemInstruction = &Content{Parts: []Part{{Text: req.System}}}
	}

	cfg := &GenerationConfig{}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = req.MaxTokens
	}
	if req.Temperature != nil {
		cfg.Temperature = req.Temperature
	}
	genReq.GenerationConfig = cfg

	body, err := json.Marshal(genReq)
	if err != nil {
		return "", nil, fmt.Errorf("failed to encode gemini request: %w", err)
	}
	return model, body, nil
}

// post issues an authenticated JSON request to the Gemini API.
func (c *GeminiClient) post(ctx context.Context, url string, body []byte) (*http.Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build gemini request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, llm.NewNetworkError("gemini request failed", err)
	}
	return httpResp, nil
}

// convertGeminiError maps a non-200 Gemini response to an llm.Error.
func convertGeminiError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	message := resp.Status
	var envelope apiErrorBody
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Error.Message != "" {
		message = envelope.Error.Message
	}

	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		retryAfter := defaultRetryAfter
		return llm.NewRateLimitError(
			fmt.Sprintf("Gemini rate limit: %s", message), &retryAfter, nil)
	case http.StatusRequestEntityTooLarge:
		return llm.NewRequestTooLargeError(
			fmt.Sprintf("Gemini request too large: %s", message), nil)
	case http.StatusBadRequest, http.StatusNotFound:
		return llm.NewInvalidRequestError(
			fmt.Sprintf("Gemini invalid request: %s", message), resp.StatusCode, nil)
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable:
		return &llm.Error{
			Type:       llm.ErrorTypeProvider,
			Message:    fmt.Sprintf("Gemini server error: %s", message),
			Retryable:  true,
			StatusCode: resp.StatusCode,
		}
	default:
		return &llm.Error{
			Type:       llm.ErrorTypeProvider,
			Message:    fmt.Sprintf("Gemini API error: %s", message),
			Retryable:  false,
			StatusCode: resp.StatusCode,
		}
	}
}
