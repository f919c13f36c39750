package config

import (
	"os"

	"github.com/rs/zerolog"

	"github.com/samshapley/ancientgrok/llm"
	llmanthropic "github.com/samshapley/ancientgrok/llm/anthropic"
	llmgemini "github.com/samshapley/ancientgrok/llm/gemini"
	llmollama "github.com/samshapley/ancientgrok/llm/ollama"
	llmopenai "github.com/samshapley/ancientgrok/llm/openai"
)

// LoadAnthropicConfig returns the Anthropic API key, preferring the config
// file over the ANTHROPIC_API_KEY environment variable.
func LoadAnthropicConfig(cfg *Config) (apiKey string) {
	if cfg != nil {
		apiKey = cfg.Anthropic.APIKey
	}
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	return apiKey
}

// LoadGeminiConfig returns the Gemini API key and default model, with
// GEMINI_API_KEY as the environment fallback.
func LoadGeminiConfig(cfg *Config) (apiKey, model string) {
	if cfg != nil {
		apiKey = cfg.Gemini.APIKey
		model = cfg.Gemini.Model
	}
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	return apiKey, model
}

// LoadOllamaConfig returns the Ollama host and model. Environment variables
// override the config file; the host falls back to the local default.
func LoadOllamaConfig(cfg *Config) (host, model string) {
	if cfg != nil {
		host = cfg.Ollama.Host
		model = cfg.Ollama.Model
	}
	if envHost := os.Getenv("OLLAMA_HOST"); envHost != "" {
		host = envHost
	}
	if envModel := os.Getenv("OLLAMA_MODEL"); envModel != "" {
		model = envModel
	}
	if host == "" {
		host = "http://localhost:11434"
	}
	return host, model
}

// LoadOpenAIConfig returns the OpenAI API key, base URL, model, and
// organization. Environment variables override the config file.
func LoadOpenAIConfig(cfg *Config) (apiKey, baseURL, model, organization string) {
	if cfg != nil {
		apiKey = cfg.OpenAI.APIKey
		baseURL = cfg.OpenAI.BaseURL
		model = cfg.OpenAI.Model
		organization = cfg.OpenAI.Organization
	}
	if envAPIKey := os.Getenv("OPENAI_API_KEY"); envAPIKey != "" {
		apiKey = envAPIKey
	}
	if envBaseURL := os.Getenv("OPENAI_BASE_URL"); envBaseURL != "" {
		baseURL = envBaseURL
	}
	if envModel := os.Getenv("OPENAI_MODEL"); envModel != "" {
		model = envModel
	}
	if envOrg := os.Getenv("OPENAI_ORG_ID"); envOrg != "" {
		organization = envOrg
	}
	return apiKey, baseURL, model, organization
}

// LoadXAIConfig returns the xAI API key, base URL, and model, with
// XAI_API_KEY as the environment fallback. An empty base URL means the
// standard endpoint.
func LoadXAIConfig(cfg *Config) (apiKey, baseURL, model string) {
	if cfg != nil {
		apiKey = cfg.XAI.APIKey
		baseURL = cfg.XAI.BaseURL
		model = cfg.XAI.Model
	}
	if apiKey == "" {
		apiKey = os.Getenv("XAI_API_KEY")
	}
	if baseURL == "" {
		baseURL = llm.DefaultXAIBaseURL
	}
	return apiKey, baseURL, model
}

// NewAnthropicClient creates an Anthropic LLM client from the configuration.
func NewAnthropicClient(cfg *Config, logger zerolog.Logger) (*llmanthropic.AnthropicClient, error) {
	return llmanthropic.NewAnthropicClient(LoadAnthropicConfig(cfg), logger)
}

// NewGeminiClient creates a Gemini LLM client from the configuration.
func NewGeminiClient(cfg *Config, logger zerolog.Logger) (*llmgemini.GeminiClient, error) {
	apiKey, model := LoadGeminiConfig(cfg)
	return llmgemini.NewGeminiClient(apiKey, model, logger)
}

// NewOllamaClient creates an Ollama LLM client from the configuration.
func NewOllamaClient(cfg *Config) (*llmollama.OllamaClient, error) {
	host, model := LoadOllamaConfig(cfg)
	return llmollama.NewOllamaClient(host, model)
}

// NewOpenAIClient creates an OpenAI LLM client from the configuration.
func NewOpenAIClient(cfg *Config) (*llmopenai.OpenAIClient, error) {
	apiKey, baseURL, model, organization := LoadOpenAIConfig(cfg)
	return llmopenai.NewOpenAIClient(apiKey, baseURL, model, organization)
}

// NewXAIClient creates an xAI chat client from the configuration. xAI speaks
// the OpenAI chat protocol, so this is an OpenAI client pointed at x.ai.
func NewXAIClient(cfg *Config) (*llmopenai.OpenAIClient, error) {
	apiKey, baseURL, model := LoadXAIConfig(cfg)
	return llmopenai.NewOpenAIClient(apiKey, baseURL, model, "")
}

// ProviderConfig assembles the llm registry's provider configuration from
// the loaded config plus environment fallbacks.
func ProviderConfig(cfg *Config) *llm.ProviderConfig {
	pc := &llm.ProviderConfig{
		AnthropicAPIKey: LoadAnthropicConfig(cfg),
	}
	pc.GeminiAPIKey, _ = LoadGeminiConfig(cfg)
	pc.OllamaHost, pc.OllamaModel = LoadOllamaConfig(cfg)
	pc.OpenAIAPIKey, pc.OpenAIBaseURL, pc.OpenAIModel, pc.OpenAIOrg = LoadOpenAIConfig(cfg)
	pc.XAIAPIKey, pc.XAIBaseURL, pc.XAIModel = LoadXAIConfig(cfg)
	return pc
}

// EnabledProviders returns the providers assistants may use: the configured
// list, or every provider with usable credentials when the list is empty.
func EnabledProviders(cfg *Config) []string {
	if cfg != nil && len(cfg.LLMProviders) > 0 {
		return cfg.LLMProviders
	}

	var providers []string
	if LoadAnthropicConfig(cfg) != "" {
		providers = append(providers, llm.ProviderAnthropic)
	}
	if key, _ := LoadGeminiConfig(cfg); key != "" {
		providers = append(providers, llm.ProviderGemini)
	}
	if key, _, _, _ := LoadOpenAIConfig(cfg); key != "" {
		providers = append(providers, llm.ProviderOpenAI)
	}
	if key, _, _ := LoadXAIConfig(cfg); key != "" {
		providers = append(providers, llm.ProviderXAI)
	}
	if _, model := LoadOllamaConfig(cfg); model != "" {
		providers = append(providers, llm.ProviderOllama)
	}
	if len(providers) == 0 {
		providers = []string{llm.ProviderAnthropic}
	}
	return providers
}
