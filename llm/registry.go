package llm

import (
	"fmt"
	"os"
	"sync"
)

const (
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
	ProviderOllama    = "ollama"
	ProviderOpenAI    = "openai"
	ProviderXAI       = "xai"
)

// DefaultXAIBaseURL is the OpenAI-compatible chat endpoint for xAI.
const DefaultXAIBaseURL = "https://api.x.ai/v1"

// AssistantLLMConfig represents the LLM configuration portion of an assistant config.
// This is used to avoid import cycles.
type AssistantLLMConfig struct {
	LLMPreferences []LLMPreference
}

// LLMPreference represents a single provider/model preference.
type LLMPreference struct {
	Provider    string
	Model       string
	Temperature *float64
}

// ClientKey uniquely identifies an LLM client configuration.
type ClientKey struct {
	Provider     string
	Model        string
	APIKey       string // For credential-based providers
	Host         string // For Ollama
	BaseURL      string // For OpenAI-compatible endpoints (OpenAI, xAI)
	Organization string // For OpenAI
}

// ProviderConfig holds the configuration needed for provider registry.
// This avoids import cycles by not importing the config package.
type ProviderConfig struct {
	AnthropicAPIKey string
	GeminiAPIKey    string
	OllamaHost      string
	OllamaModel     string
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	OpenAIModel     string
	OpenAIOrg       string
	XAIAPIKey       string
	XAIBaseURL      string
	XAIModel        string
}

// ProviderRegistry manages LLM provider selection and configuration resolution.
// Client creation and caching is handled by the caller to avoid import cycles.
type ProviderRegistry struct {
	enabledProviders map[string]bool // Set of enabled providers
	mu               sync.RWMutex
	config           *ProviderConfig
}

// NewProviderRegistry creates a new ProviderRegistry with the given config and enabled providers.
func NewProviderRegistry(providerConfig *ProviderConfig, enabledProviders []string) *ProviderRegistry {
	enabledMap := make(map[string]bool)
	for _, p := range enabledProviders {
		enabledMap[p] = true
	}

	return &ProviderRegistry{
		enabledProviders: enabledMap,
		config:           providerConfig,
	}
}

// IsProviderEnabled checks if a provider is in the enabled providers list.
func (r *ProviderRegistry) IsProviderEnabled(provider string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.enabledProviders[provider]
}

// IsProviderConfigured checks if a provider has the required configuration (API keys, hosts, etc.).
func (r *ProviderRegistry) IsProviderConfigured(provider string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.isProviderConfiguredUnlocked(provider)
}

// ResolveAssistantLLMConfig resolves an assistant's LLM configuration using preference-based selection.
// It returns a ClientKey for the first available provider from the assistant's preference list.
func (r *ProviderRegistry) ResolveAssistantLLMConfig(assistantID string, assistantCfg AssistantLLMConfig) (*ClientKey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	// If assistant has LLM preferences, iterate through them
	if len(assistantCfg.LLMPreferences) > 0 {
		var attemptedProviders []string
		for _, pref := range assistantCfg.LLMPreferences {
			attemptedProviders = append(attemptedProviders, pref.Provider)

			// Check if provider is enabled
			if !r.enabledProviders[pref.Provider] {
				continue
			}

			// Check if provider is configured
			if !r.isProviderConfiguredUnlocked(pref.Provider) {
				continue
			}

			// Resolve provider-specific config
			key, err := r.resolveProviderConfig(pref.Provider, pref.Model)
			if err != nil {
				continue
			}

			return key, nil
		}

		return nil, fmt.Errorf("assistant %s: no available provider from preferences %v (enabled: %v)", assistantID, attemptedProviders, r.getEnabledProvidersList())
	}

	// Assistant has no LLM preferences - use first enabled provider
	// Don't use the assistant's model field as it may be provider-specific (e.g., "claude-sonnet-4-5" won't work with Ollama)
	if len(r.enabledProviders) == 0 {
		return nil, fmt.Errorf("no providers enabled")
	}

	// Get first enabled provider
	var firstProvider string
	for p := range r.enabledProviders {
		firstProvider = p
		break
	}

	if !r.isProviderConfiguredUnlocked(firstProvider) {
		return nil, fmt.Errorf("assistant %s: first enabled provider %s is not configured", assistantID, firstProvider)
	}

	// Use the provider's default model instead of the assistant's model field
	key, err := r.resolveProviderConfig(firstProvider, "")
	if err != nil {
		return nil, fmt.Errorf("assistant %s: failed to resolve config for provider %s: %w", assistantID, firstProvider, err)
	}

	return key, nil
}

// isProviderConfiguredUnlocked is the unlocked version of IsProviderConfigured.
// Must be called with r.mu already locked.
func (r *ProviderRegistry) isProviderConfiguredUnlocked(provider string) bool {
	switch provider {
	case ProviderAnthropic:
		// Check config only
		return r.config.AnthropicAPIKey != ""
	case ProviderGemini:
		// Check config first, then environment
		apiKey := r.config.GeminiAPIKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		return apiKey != ""
	case ProviderOllama:
		// Ollama doesn't require API key, just needs host (which has a default)
		return true
	case ProviderOpenAI:
		// Check config first, then environment
		apiKey := r.config.OpenAIAPIKey
		if apiKey == "" {
			apiKey = os.Getenv("OPENAI_API_KEY")
		}
		return apiKey != ""
	case ProviderXAI:
		// Check config first, then environment
		apiKey := r.config.XAIAPIKey
		if apiKey == "" {
			apiKey = os.Getenv("XAI_API_KEY")
		}
		return apiKey != ""
	default:
		return false
	}
}

// resolveProviderConfig resolves provider-specific configuration and returns a ClientKey.
func (r *ProviderRegistry) resolveProviderConfig(provider, modelOverride string) (*ClientKey, error) {
	key := &ClientKey{
		Provider: provider,
		Model:    modelOverride,
	}

	switch provider {
	case ProviderAnthropic:
		// Get API key from config
		if r.config.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("anthropic API key not configured")
		}
		key.APIKey = r.config.AnthropicAPIKey
		if key.Model == "" {
			key.Model = "claude-sonnet-4-5" // Default Anthropic model
		}

	case ProviderGemini:
		// Get API key from config or environment
		apiKey := r.config.GeminiAPIKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("gemini API key not configured")
		}
		key.APIKey = apiKey
		if key.Model == "" {
			key.Model = "gemini-2.5-flash" // Default Gemini model
		}

	case ProviderOllama:
		// Get host from config or environment
		host := r.config.OllamaHost
		if host == "" {
			host = os.Getenv("OLLAMA_HOST")
		}
		if host == "" {
			host = "http://localhost:11434" // Default
		}
		key.Host = host

		// Get model from config or environment, or use override
		defaultModel := r.config.OllamaModel
		if defaultModel == "" {
			defaultModel = os.Getenv("OLLAMA_MODEL")
		}
		if key.Model == "" {
			key.Model = defaultModel
		}
		// Ensure we have a model - if still empty, this is an error
		if key.Model == "" {
			return nil, fmt.Errorf("ollama model not specified and no default configured")
		}

	case ProviderOpenAI:
		// Get API key from config or environment
		apiKey := r.config.OpenAIAPIKey
		if apiKey == "" {
			apiKey = os.Getenv("OPENAI_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("openai API key not configured")
		}
		key.APIKey = apiKey

		// Get base URL from config or environment
		baseURL := r.config.OpenAIBaseURL
		if baseURL == "" {
			baseURL = os.Getenv("OPENAI_BASE_URL")
		}
		key.BaseURL = baseURL

		// Get organization from config or environment
		org := r.config.OpenAIOrg
		if org == "" {
			org = os.Getenv("OPENAI_ORG_ID")
		}
		key.Organization = org

		// Get model from config or environment, or use override
		defaultModel := r.config.OpenAIModel
		if defaultModel == "" {
			defaultModel = os.Getenv("OPENAI_MODEL")
		}
		if key.Model == "" {
			key.Model = defaultModel
		}

	case ProviderXAI:
		// Get API key from config or environment
		apiKey := r.config.XAIAPIKey
		if apiKey == "" {
			apiKey = os.Getenv("XAI_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("xai API key not configured")
		}
		key.APIKey = apiKey

		// xAI speaks the OpenAI chat protocol at a fixed base URL
		baseURL := r.config.XAIBaseURL
		if baseURL == "" {
			baseURL = DefaultXAIBaseURL
		}
		key.BaseURL = baseURL

		if key.Model == "" {
			key.Model = r.config.XAIModel
		}
		if key.Model == "" {
			key.Model = "grok-4" // Default xAI model
		}

	default:
		return nil, fmt.Errorf("unknown provider: %s", provider)
	}

	return key, nil
}

// getEnabledProvidersList returns a list of enabled providers (for error messages).
func (r *ProviderRegistry) getEnabledProvidersList() []string {
	var providers []string
	for p := range r.enabledProviders {
		providers = append(providers, p)
	}
	return providers
}
