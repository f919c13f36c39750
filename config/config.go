package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// MCPServerSecrets represents secrets and environment variables for an MCP server.
// This is used for merging secrets from the user config file into assistants.yaml config.
type MCPServerSecrets struct {
	Env []string `yaml:"env,omitempty"`
}

// AnthropicConfig represents configuration for the Anthropic LLM provider.
type AnthropicConfig struct {
	APIKey string `yaml:"api_key,omitempty"` // Anthropic API key
}

// GeminiConfig represents configuration for the Google Gemini LLM provider.
type GeminiConfig struct {
	APIKey string `yaml:"api_key,omitempty"` // Gemini API key
	Model  string `yaml:"model,omitempty"`   // Default model name
}

// OllamaConfig represents configuration for the Ollama LLM provider.
type OllamaConfig struct {
	Host    string `yaml:"host,omitempty"`    // Ollama host (default: "http://localhost:11434")
	Model   string `yaml:"model,omitempty"`   // Default model name
	Timeout int    `yaml:"timeout,omitempty"` // Request timeout in seconds
}

// OpenAIConfig represents configuration for the OpenAI LLM provider.
type OpenAIConfig struct {
	APIKey       string `yaml:"api_key,omitempty"`      // OpenAI API key
	BaseURL      string `yaml:"base_url,omitempty"`     // Custom base URL (default: official API)
	Model        string `yaml:"model,omitempty"`        // Default model name
	Organization string `yaml:"organization,omitempty"` // Organization ID
}

// XAIConfig represents configuration for the xAI LLM provider. Chat rides the
// OpenAI-compatible endpoint; the batch surface is xAI's own REST API.
type XAIConfig struct {
	APIKey  string `yaml:"api_key,omitempty"`  // xAI API key
	BaseURL string `yaml:"base_url,omitempty"` // Custom base URL (default: https://api.x.ai/v1)
	Model   string `yaml:"model,omitempty"`    // Default model name
}

// LLMPreference represents a single LLM provider/model preference for an
// assistant. Assistants can specify multiple preferences in order, and the
// system will use the first available provider from the preference list.
type LLMPreference struct {
	Provider    string   `yaml:"provider" json:"provider"`                           // Required: "anthropic", "gemini", "ollama", "openai", or "xai"
	Model       string   `yaml:"model,omitempty" json:"model,omitempty"`             // Optional: uses provider default if omitted
	Temperature *float64 `yaml:"temperature,omitempty" json:"temperature,omitempty"` // Optional temperature override
}

// AssistantConfig represents the configuration for a single chat assistant.
type AssistantConfig struct {
	ID            string          `yaml:"id" json:"id"`
	Name          string          `yaml:"name" json:"name"`
	System        string          `yaml:"system_prompt" json:"system"`
	Model         string          `yaml:"model,omitempty" json:"model,omitempty"` // shorthand, e.g. "anthropic/claude-sonnet-4-5" or a bare model name
	MaxTokens     int64           `yaml:"max_tokens" json:"max_tokens"`
	MaxIterations int             `yaml:"max_iterations,omitempty" json:"max_iterations,omitempty"` // tool-loop cap (default 10)
	Tools         []string        `yaml:"tools" json:"tools"`                                       // tool name patterns, optionally "server:pattern" for MCP tools
	Disabled      bool            `yaml:"disabled" json:"disabled"`
	LLM           []LLMPreference `yaml:"llm,omitempty" json:"llm,omitempty"` // Ordered list of provider/model preferences
}

// MCPServerConfig represents configuration for an MCP server.
type MCPServerConfig struct {
	Name    string   `yaml:"name,omitempty"`
	Command string   `yaml:"command,omitempty"` // For STDIO transport
	URL     string   `yaml:"url,omitempty"`     // For HTTP transport
	Args    []string `yaml:"args,omitempty"`    // Additional args for STDIO command
	Env     []string `yaml:"env,omitempty"`     // Environment variables for STDIO
}

// WatcherConfig configures the detached batch job watcher.
type WatcherConfig struct {
	Schedule string `yaml:"schedule,omitempty"` // cron spec or "@every 5m" style interval
}

// CDLIConfig configures the CDLI REST client.
type CDLIConfig struct {
	BaseURL string `yaml:"base_url,omitempty"` // default: https://cdli.earth
}

// Config is the toolkit configuration shared by the chat CLI and the
// benchmark harness: provider credentials, assistants, MCP servers, and a
// few runtime knobs.
type Config struct {
	// LLM provider configurations
	Anthropic AnthropicConfig `yaml:"anthropic,omitempty"`
	Gemini    GeminiConfig    `yaml:"gemini,omitempty"`
	Ollama    OllamaConfig    `yaml:"ollama,omitempty"`
	OpenAI    OpenAIConfig    `yaml:"openai,omitempty"`
	XAI       XAIConfig       `yaml:"xai,omitempty"`

	// LLMProviders lists the providers assistants may resolve to, in no
	// particular order. Empty enables every configured provider.
	LLMProviders []string `yaml:"llm_providers,omitempty"`

	Assistants map[string]*AssistantConfig `yaml:"assistants,omitempty"`
	MCPServers map[string]*MCPServerConfig `yaml:"mcp_servers,omitempty"`

	// Workspace is the directory filesystem tools are confined to.
	// Default: current working directory.
	Workspace string `yaml:"workspace,omitempty"`

	CDLI        CDLIConfig    `yaml:"cdli,omitempty"`
	Watcher     WatcherConfig `yaml:"watcher,omitempty"`
	ChatTimeout int           `yaml:"chat_timeout,omitempty"` // seconds per chat turn (default: 300)
	Theme       string        `yaml:"theme,omitempty"`        // TUI theme (default: clay)

	// Internal: used for merging secrets from the user config file
	mcpServerSecrets map[string]MCPServerSecrets `yaml:"-"`
}

// DefaultAssistantID is the assistant available when none are configured.
const DefaultAssistantID = "scribe"

// defaultAssistant is a ready-to-use cuneiform research assistant so the chat
// CLI works out of the box with nothing but an API key.
func defaultAssistant() *AssistantConfig {
	return &AssistantConfig{
		ID:   DefaultAssistantID,
		Name: "Scribe",
		System: "You are a research assistant for ancient Near Eastern studies. " +
			"You help users search the CDLI tablet database, read transliterated inscriptions, " +
			"and translate Sumerian and Akkadian texts. " +
			"Cite tablet P-numbers when you reference specific artifacts.",
		MaxTokens: 4096,
		Tools:     []string{".*"},
	}
}

// GetConfigPath returns the default config file path.
// Can be overridden via the ANCIENTGROK_CONFIG environment variable.
func GetConfigPath() string {
	if envPath := os.Getenv("ANCIENTGROK_CONFIG"); envPath != "" {
		return expandPath(envPath)
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./.ancientgrok/config.yaml"
	}
	return filepath.Join(homeDir, ".config", "ancientgrok", "config.yaml")
}

// expandPath expands ~ to the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(homeDir, path[2:])
	}
	return path
}

// Save writes the configuration to the specified path.
func Save(cfg *Config, path string) error {
	expandedPath := expandPath(path)

	dir := filepath.Dir(expandedPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// 0600: the file carries API keys.
	if err := os.WriteFile(expandedPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Load loads the toolkit configuration. Three layers merge in order:
// built-in defaults, an optional assistants.yaml in the working directory
// (override via ANCIENTGROK_ASSISTANTS), and the user config file at path.
// Later layers win. A missing assistants.yaml or user config is fine; the
// built-in scribe assistant covers the empty case.
func Load(path string) (*Config, error) {
	defaults := Config{
		Ollama: OllamaConfig{
			Host:    "http://localhost:11434",
			Timeout: 60,
		},
		OpenAI: OpenAIConfig{
			BaseURL: "https://api.openai.com/v1",
		},
		ChatTimeout: 300,
		Theme:       "clay",
		Assistants:  make(map[string]*AssistantConfig),
		MCPServers:  make(map[string]*MCPServerConfig),
		Watcher: WatcherConfig{
			Schedule: "@every 5m",
		},
		CDLI: CDLIConfig{
			BaseURL: "https://cdli.earth",
		},
	}

	// Layer 2: project-local assistants file, if present.
	assistantsPath := "assistants.yaml"
	if envPath := os.Getenv("ANCIENTGROK_ASSISTANTS"); envPath != "" {
		assistantsPath = expandPath(envPath)
	}
	if _, err := os.Stat(assistantsPath); err == nil {
		assistantsYAML, err := os.ReadFile(assistantsPath) //#nosec 304 -- intentional file read for config
		if err != nil {
			return nil, fmt.Errorf("failed to read assistants config from %q: %w", assistantsPath, err)
		}

		var assistantsConfig Config
		if err := yaml.Unmarshal(assistantsYAML, &assistantsConfig); err != nil {
			return nil, fmt.Errorf("failed to parse assistants config: %w", err)
		}

		if err := mergo.Merge(&defaults, assistantsConfig, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge assistants config: %w", err)
		}
	}

	// Layer 3: user config file (credentials, secrets), if present.
	expandedPath := expandPath(path)
	var userConfigSecrets struct {
		MCPServers map[string]MCPServerSecrets `yaml:"mcp_servers,omitempty"`
	}

	if _, err := os.Stat(expandedPath); err == nil {
		userConfigYAML, err := os.ReadFile(expandedPath) //#nosec 304 -- intentional file read for config
		if err != nil {
			return nil, fmt.Errorf("failed to read user config file %q: %w", expandedPath, err)
		}

		var userConfig Config
		if err := yaml.Unmarshal(userConfigYAML, &userConfig); err != nil {
			return nil, fmt.Errorf("failed to parse user config: %w", err)
		}

		// Extract MCP server secrets separately so env lists merge per server.
		if err := yaml.Unmarshal(userConfigYAML, &userConfigSecrets); err == nil {
			defaults.mcpServerSecrets = userConfigSecrets.MCPServers
		}

		if err := mergo.Merge(&defaults, userConfig, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge user config: %w", err)
		}
	}

	if defaults.Assistants == nil {
		defaults.Assistants = make(map[string]*AssistantConfig)
	}
	if defaults.MCPServers == nil {
		defaults.MCPServers = make(map[string]*MCPServerConfig)
	}
	if defaults.mcpServerSecrets == nil {
		defaults.mcpServerSecrets = make(map[string]MCPServerSecrets)
	}

	for name, secrets := range defaults.mcpServerSecrets {
		if defaults.MCPServers[name] == nil {
			defaults.MCPServers[name] = &MCPServerConfig{}
		}
		override := &MCPServerConfig{Env: secrets.Env}
		if err := mergo.Merge(defaults.MCPServers[name], override, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge MCP server secrets for %q: %w", name, err)
		}
	}

	if len(defaults.Assistants) == 0 {
		defaults.Assistants[DefaultAssistantID] = defaultAssistant()
	}

	// Apply smart defaults to assistants.
	for id, assistantCfg := range defaults.Assistants {
		if assistantCfg.ID == "" {
			assistantCfg.ID = id
		}
		if assistantCfg.Name == "" {
			assistantCfg.Name = assistantCfg.ID
		}
		if assistantCfg.MaxTokens == 0 {
			assistantCfg.MaxTokens = 4096
		}
	}

	return &defaults, nil
}
