package agent

import (
	"strings"

	"github.com/samshapley/ancientgrok/config"
	"github.com/samshapley/ancientgrok/llm"
)

// AssistantInfo contains complete information about an assistant.
// This is the authoritative domain struct for assistant information,
// used by the UI service and the plain CLI.
type AssistantInfo struct {
	ID           string
	Name         string
	Model        string
	Provider     string
	Tools        []string
	Disabled     bool
	SystemPrompt string
	MaxTokens    int64
}

// ResolvedLLMInfo contains the resolved provider and model for an assistant.
type ResolvedLLMInfo struct {
	Provider string
	Model    string
}

// ParseModelRef splits a "provider/model" reference into its parts.
// A bare reference with no slash is treated as an anthropic model name.
func ParseModelRef(ref string) (provider, model string) {
	if provider, model, found := strings.Cut(ref, "/"); found {
		return provider, model
	}
	return llm.ProviderAnthropic, ref
}

// PreferencesFor returns the ordered LLM preferences for an assistant,
// placing the model shorthand (if any) ahead of the explicit preference list.
func PreferencesFor(cfg *config.AssistantConfig) []config.LLMPreference {
	var prefs []config.LLMPreference
	if cfg.Model != "" {
		provider, model := ParseModelRef(cfg.Model)
		prefs = append(prefs, config.LLMPreference{Provider: provider, Model: model})
	}
	return append(prefs, cfg.LLM...)
}

// ResolveLLMFromConfig resolves the provider and model from assistant configuration.
// This is used when a runner is not available (e.g., assistant is disabled or not
// initialized).
func ResolveLLMFromConfig(cfg *config.AssistantConfig) ResolvedLLMInfo {
	// If LLM preferences are specified, use the first one
	if prefs := PreferencesFor(cfg); len(prefs) > 0 {
		return ResolvedLLMInfo{
			Provider: prefs[0].Provider,
			Model:    prefs[0].Model,
		}
	}

	// No LLM preferences specified - return empty (will use provider defaults)
	return ResolvedLLMInfo{
		Provider: llm.ProviderAnthropic,
		Model:    "",
	}
}
