package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"github.com/samshapley/ancientgrok/config"
	"github.com/samshapley/ancientgrok/llm"
	llmanthropic "github.com/samshapley/ancientgrok/llm/anthropic"
	llmgemini "github.com/samshapley/ancientgrok/llm/gemini"
	llmollama "github.com/samshapley/ancientgrok/llm/ollama"
	llmopenai "github.com/samshapley/ancientgrok/llm/openai"
	"github.com/samshapley/ancientgrok/mcp"
	"github.com/samshapley/ancientgrok/tools"
)

// Team holds the configured assistants and their runners, sharing a tool
// registry and a cache of LLM clients across them.
type Team struct {
	Assistants       map[string]*config.AssistantConfig
	Runners          map[string]*Runner
	ToolRegistry     *tools.Registry
	ToolProvider     *ToolProviderFromRegistry
	messagePersister MessagePersister // Optional message persister

	MCPServers map[string]*config.MCPServerConfig
	MCPClients map[string]mcp.MCPClient

	logger zerolog.Logger

	clientCache map[string]llm.Client // Cache for LLM clients by ClientKey
	mu          sync.RWMutex
}

// TeamOption is a functional option for configuring a Team.
type TeamOption func(*Team)

// WithMessagePersister sets the message persister for the team.
func WithMessagePersister(persister MessagePersister) TeamOption {
	return func(t *Team) {
		t.messagePersister = persister
	}
}

func NewTeam(logger zerolog.Logger, opts ...TeamOption) *Team {
	reg := tools.NewRegistry(logger)
	provider := NewToolProvider(reg, logger)

	t := &Team{
		Assistants:   make(map[string]*config.AssistantConfig),
		Runners:      make(map[string]*Runner),
		ToolRegistry: reg,
		ToolProvider: provider,
		clientCache:  make(map[string]llm.Client),
		MCPServers:   make(map[string]*config.MCPServerConfig),
		MCPClients:   make(map[string]mcp.MCPClient),
		logger:       logger.With().Str("component", "team").Logger(),
	}

	// Apply options
	for _, opt := range opts {
		opt(t)
	}

	return t
}

// GetToolProvider returns the tool provider for this team
func (t *Team) GetToolProvider() *ToolProviderFromRegistry {
	return t.ToolProvider
}

// LoadTeamConfig loads assistant and MCP server configuration.
func (t *Team) LoadTeamConfig(cfg *config.Config) error {
	// Load assistants
	for id, assistantCfg := range cfg.Assistants {
		if assistantCfg.ID == "" {
			assistantCfg.ID = id
		}
		t.Assistants[id] = assistantCfg
	}

	// Store MCP server configs
	t.mu.Lock()
	defer t.mu.Unlock()
	for name, serverCfg := range cfg.MCPServers {
		t.MCPServers[name] = serverCfg
	}
	return nil
}

// InitializeAssistants resolves each enabled assistant's LLM preferences
// through the registry and creates its runner.
func (t *Team) InitializeAssistants(registry *llm.ProviderRegistry) error {
	t.logger.Info().Msg("Initializing assistants")

	// Get a copy of assistants to iterate over (to avoid holding lock during client creation)
	t.mu.RLock()
	assistantsCopy := make(map[string]*config.AssistantConfig)
	for id, cfg := range t.Assistants {
		assistantsCopy[id] = cfg
	}
	t.mu.RUnlock()

	for id, cfg := range assistantsCopy {
		// Skip disabled assistants - they don't need runners
		if cfg.Disabled {
			t.logger.Info().Msgf("Assistant %s: disabled, skipping initialization", id)
			continue
		}

		// Convert assistant config to registry format, folding in the model shorthand
		prefs := PreferencesFor(cfg)
		assistantLLMConfig := llm.AssistantLLMConfig{
			LLMPreferences: make([]llm.LLMPreference, len(prefs)),
		}
		for i, pref := range prefs {
			assistantLLMConfig.LLMPreferences[i] = llm.LLMPreference{
				Provider:    pref.Provider,
				Model:       pref.Model,
				Temperature: pref.Temperature,
			}
		}

		// Resolve LLM configuration using preference-based selection
		clientKey, err := registry.ResolveAssistantLLMConfig(id, assistantLLMConfig)
		if err != nil {
			return fmt.Errorf("failed to resolve LLM config for assistant %s: %w", id, err)
		}

		// Get or create LLM client (with caching) - this may take time, so don't hold lock
		llmClient, err := t.getOrCreateClient(clientKey, id)
		if err != nil {
			return fmt.Errorf("failed to create LLM client for assistant %s: %w", id, err)
		}

		t.logger.Info().
			Str("assistant_id", id).
			Str("provider", clientKey.Provider).
			Str("model", clientKey.Model).
			Msg("Creating assistant runner")
		runner, err := NewRunner(t.logger, llmClient, NewAssistant(id, cfg), clientKey.Model, clientKey.Provider, t.ToolRegistry, t.ToolProvider, t.messagePersister)
		if err != nil {
			return fmt.Errorf("failed to create runner for assistant %s: %w", id, err)
		}

		// Now acquire lock only to store the runner
		t.mu.Lock()
		t.Runners[id] = runner
		t.mu.Unlock()
	}
	return nil
}

// Run executes a single turn for an assistant with the given history.
// History is provided as provider-neutral llm.Message types to avoid leaking SDK types.
func (t *Team) Run(
	ctx context.Context,
	assistantID string,
	threadID string,
	userMessage string,
	history []llm.Message,
) (string, error) {
	t.mu.RLock()
	assistant := t.Assistants[assistantID]
	runner := t.Runners[assistantID]
	t.mu.RUnlock()

	if assistant == nil || runner == nil {
		return "", fmt.Errorf("assistant %q not found or not initialized", assistantID)
	}

	return runner.Run(ctx, threadID, userMessage, history)
}

// StreamCallback is called for each text delta received from the streaming API
type StreamCallback func(text string) error

// DebugCallback is called for debug information (tool invocations, API calls, etc.)
type DebugCallback func(message string)

// RunStream executes a single turn for an assistant with streaming support.
// debugCallback should be added to context using WithDebugCallback if needed.
func (t *Team) RunStream(
	ctx context.Context,
	assistantID string,
	threadID string,
	userMessage string,
	history []llm.Message,
	callback StreamCallback,
) (string, error) {
	t.mu.RLock()
	runner := t.Runners[assistantID]
	t.mu.RUnlock()

	if runner == nil {
		return "", fmt.Errorf("assistant %q not found or not initialized", assistantID)
	}

	return runner.RunStream(ctx, threadID, userMessage, history, callback)
}

func (t *Team) ListAssistants() []*Assistant {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return lo.Map(lo.Values(t.Runners), func(runner *Runner, _ int) *Assistant {
		return runner.assistant
	})
}

// IsAssistantDisabled checks if an assistant is disabled
func (t *Team) IsAssistantDisabled(assistantID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	assistant, ok := t.Assistants[assistantID]
	if !ok {
		return true // If assistant doesn't exist, consider it disabled
	}
	return assistant.Disabled
}

// GetAssistants returns a copy of all assistant configs
func (t *Team) GetAssistants() map[string]*config.AssistantConfig {
	t.mu.RLock()
	defer t.mu.RUnlock()

	result := make(map[string]*config.AssistantConfig)
	for id, cfg := range t.Assistants {
		result[id] = cfg
	}
	return result
}

// GetMCPServers returns a copy of all MCP server configs
func (t *Team) GetMCPServers() map[string]*config.MCPServerConfig {
	t.mu.RLock()
	defer t.mu.RUnlock()

	result := make(map[string]*config.MCPServerConfig)
	for name, cfg := range t.MCPServers {
		result[name] = cfg
	}
	return result
}

// GetMCPClients returns a copy of all MCP clients
func (t *Team) GetMCPClients() map[string]mcp.MCPClient {
	t.mu.RLock()
	defer t.mu.RUnlock()

	result := make(map[string]mcp.MCPClient)
	for name, client := range t.MCPClients {
		result[name] = client
	}
	return result
}

// GetRunner returns the runner for a specific assistant ID.
func (t *Team) GetRunner(assistantID string) *Runner {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.Runners[assistantID]
}

// GetResolvedLLMInfo returns the resolved provider and model for an assistant.
// This is the authoritative source for LLM information - it uses the runner if
// available, otherwise falls back to config-based resolution.
func (t *Team) GetResolvedLLMInfo(assistantID string) ResolvedLLMInfo {
	// Try to get from runner first (most accurate)
	runner := t.GetRunner(assistantID)
	if runner != nil {
		return ResolvedLLMInfo{
			Provider: runner.GetResolvedProvider(),
			Model:    runner.GetResolvedModel(),
		}
	}

	// Runner not available (e.g., assistant disabled or not initialized)
	// Fall back to config-based resolution
	t.mu.RLock()
	cfg, ok := t.Assistants[assistantID]
	t.mu.RUnlock()

	if !ok {
		// Assistant not found, return defaults
		return ResolvedLLMInfo{
			Provider: llm.ProviderAnthropic,
			Model:    "",
		}
	}

	return ResolveLLMFromConfig(cfg)
}

// GetAssistantInfos returns complete information for all assistants.
// This is the authoritative source for assistant information, combining config
// with resolved LLM info.
func (t *Team) GetAssistantInfos() []*AssistantInfo {
	t.mu.RLock()
	defer t.mu.RUnlock()

	infos := lo.Map(lo.Values(t.Runners), func(runner *Runner, _ int) *AssistantInfo {
		return t.buildAssistantInfoLocked(runner.assistant)
	})
	return infos
}

// GetAssistantInfo returns complete information for a specific assistant.
// Returns nil if the assistant is not found.
func (t *Team) GetAssistantInfo(assistantID string) (*AssistantInfo, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	runner, ok := t.Runners[assistantID]
	if !ok {
		return nil, fmt.Errorf("assistant %q not found or not initialized", assistantID)
	}

	return t.buildAssistantInfoLocked(runner.assistant), nil
}

// buildAssistantInfoLocked builds an AssistantInfo from an Assistant.
// Caller must hold the read lock.
func (t *Team) buildAssistantInfoLocked(a *Assistant) *AssistantInfo {
	cfg := a.Config

	var provider, model string
	if runner, ok := t.Runners[a.ID]; ok {
		provider = runner.GetResolvedProvider()
		model = runner.GetResolvedModel()
	} else {
		llmInfo := ResolveLLMFromConfig(cfg)
		provider = llmInfo.Provider
		model = llmInfo.Model
	}

	return &AssistantInfo{
		ID:           a.ID,
		Name:         cfg.Name,
		Model:        model,
		Provider:     provider,
		Tools:        cfg.Tools,
		Disabled:     cfg.Disabled,
		SystemPrompt: cfg.System,
		MaxTokens:    cfg.MaxTokens,
	}
}

// getOrCreateClient gets or creates an LLM client for the given ClientKey with caching.
// Clients are cached by ClientKey string representation to avoid creating duplicate clients.
func (t *Team) getOrCreateClient(key *llm.ClientKey, assistantID string) (llm.Client, error) {
	// Create cache key from ClientKey
	keyStr := fmt.Sprintf("%s:%s:%s:%s:%s:%s", key.Provider, key.Model, key.APIKey, key.Host, key.BaseURL, key.Organization)

	// Check cache first with read lock
	t.mu.RLock()
	if client, ok := t.clientCache[keyStr]; ok {
		t.mu.RUnlock()
		// Client found in cache, but we still need to wrap with assistant-specific middleware
		return t.wrapClientWithMiddleware(client, assistantID), nil
	}
	t.mu.RUnlock()

	// Not in cache - create new base client (no lock held during creation)
	var baseClient llm.Client
	var err error

	switch key.Provider {
	case llm.ProviderAnthropic:
		if key.APIKey == "" {
			return nil, fmt.Errorf("anthropic API key is required")
		}
		baseClient, err = llmanthropic.NewAnthropicClient(key.APIKey, t.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create anthropic client: %w", err)
		}

	case llm.ProviderGemini:
		if key.APIKey == "" {
			return nil, fmt.Errorf("gemini API key is required")
		}
		baseClient, err = llmgemini.NewGeminiClient(key.APIKey, key.Model, t.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create gemini client: %w", err)
		}

	case llm.ProviderOllama:
		baseClient, err = llmollama.NewOllamaClient(key.Host, key.Model)
		if err != nil {
			return nil, fmt.Errorf("failed to create ollama client: %w", err)
		}

	case llm.ProviderOpenAI:
		if key.APIKey == "" {
			return nil, fmt.Errorf("openai API key is required")
		}
		baseClient, err = llmopenai.NewOpenAIClient(key.APIKey, key.BaseURL, key.Model, key.Organization)
		if err != nil {
			return nil, fmt.Errorf("failed to create openai client: %w", err)
		}

	case llm.ProviderXAI:
		// xAI exposes an OpenAI-compatible API, so it rides the same client
		// pointed at the x.ai base URL.
		if key.APIKey == "" {
			return nil, fmt.Errorf("xai API key is required")
		}
		baseClient, err = llmopenai.NewOpenAIClient(key.APIKey, key.BaseURL, key.Model, "")
		if err != nil {
			return nil, fmt.Errorf("failed to create xai client: %w", err)
		}

	default:
		return nil, fmt.Errorf("unknown provider: %s", key.Provider)
	}

	// Cache the base client using double-checked locking pattern
	t.mu.Lock()
	// Double-check: another goroutine might have created it while we were creating
	if existingClient, ok := t.clientCache[keyStr]; ok {
		t.mu.Unlock()
		// Use the existing client instead
		return t.wrapClientWithMiddleware(existingClient, assistantID), nil
	}
	t.clientCache[keyStr] = baseClient
	t.mu.Unlock()

	// Wrap with assistant-specific middleware
	return t.wrapClientWithMiddleware(baseClient, assistantID), nil
}

// wrapClientWithMiddleware wraps a base client with assistant-specific middleware.
func (t *Team) wrapClientWithMiddleware(baseClient llm.Client, assistantID string) llm.Client {
	var middleware []llm.Middleware

	// Add logging middleware
	middleware = append(middleware, NewLoggingMiddleware(t.logger, assistantID))

	// Add rate limit middleware
	rateLimitHandler := NewRateLimitHandler(t.logger, func(assistantID string, retryAfter time.Duration, attempt int) error {
		t.logger.Info().Msgf("Rate limit callback: assistant %s will retry after %v (attempt %d)", assistantID, retryAfter, attempt)
		return nil
	})
	middleware = append(middleware, NewRateLimitMiddleware(t.logger, rateLimitHandler, assistantID))

	return llm.WrapWithMiddleware(baseClient, middleware...)
}
