package agent

import (
	"testing"

	"github.com/samber/lo"
	"github.com/samshapley/ancientgrok/config"
	"github.com/samshapley/ancientgrok/llm"
)

func TestParseModelRef(t *testing.T) {
	tests := []struct {
		name         string
		ref          string
		wantProvider string
		wantModel    string
	}{
		{
			name:         "provider and model",
			ref:          "anthropic/claude-sonnet-4-5",
			wantProvider: llm.ProviderAnthropic,
			wantModel:    "claude-sonnet-4-5",
		},
		{
			name:         "gemini ref",
			ref:          "gemini/gemini-2.5-flash",
			wantProvider: llm.ProviderGemini,
			wantModel:    "gemini-2.5-flash",
		},
		{
			name:         "xai ref",
			ref:          "xai/grok-4",
			wantProvider: llm.ProviderXAI,
			wantModel:    "grok-4",
		},
		{
			name:         "bare model defaults to anthropic",
			ref:          "claude-sonnet-4-5",
			wantProvider: llm.ProviderAnthropic,
			wantModel:    "claude-sonnet-4-5",
		},
		{
			name:         "ollama model with tag keeps colon",
			ref:          "ollama/llama3.2:3b",
			wantProvider: llm.ProviderOllama,
			wantModel:    "llama3.2:3b",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, model := ParseModelRef(tt.ref)
			if provider != tt.wantProvider {
				t.Errorf("provider: got %q, want %q", provider, tt.wantProvider)
			}
			if model != tt.wantModel {
				t.Errorf("model: got %q, want %q", model, tt.wantModel)
			}
		})
	}
}

func TestPreferencesFor(t *testing.T) {
	cfg := &config.AssistantConfig{
		Model: "gemini/gemini-2.5-flash",
		LLM: []config.LLMPreference{
			{Provider: llm.ProviderAnthropic, Model: "claude-sonnet-4-5"},
		},
	}

	prefs := PreferencesFor(cfg)
	if len(prefs) != 2 {
		t.Fatalf("expected 2 preferences, got %d", len(prefs))
	}
	if prefs[0].Provider != llm.ProviderGemini || prefs[0].Model != "gemini-2.5-flash" {
		t.Errorf("shorthand should come first, got %+v", prefs[0])
	}
	if prefs[1].Provider != llm.ProviderAnthropic {
		t.Errorf("explicit preferences should follow, got %+v", prefs[1])
	}
}

func TestResolveLLMFromConfig(t *testing.T) {
	tests := []struct {
		name     string
		cfg      *config.AssistantConfig
		expected ResolvedLLMInfo
	}{
		{
			name: "single LLM preference with anthropic provider",
			cfg: &config.AssistantConfig{
				LLM: []config.LLMPreference{
					{Provider: llm.ProviderAnthropic, Model: "claude-sonnet-4-5"},
				},
			},
			expected: ResolvedLLMInfo{
				Provider: llm.ProviderAnthropic,
				Model:    "claude-sonnet-4-5",
			},
		},
		{
			name: "single LLM preference with ollama provider",
			cfg: &config.AssistantConfig{
				LLM: []config.LLMPreference{
					{Provider: llm.ProviderOllama, Model: "mistral:20b"},
				},
			},
			expected: ResolvedLLMInfo{
				Provider: llm.ProviderOllama,
				Model:    "mistral:20b",
			},
		},
		{
			name: "model shorthand wins over preference list",
			cfg: &config.AssistantConfig{
				Model: "xai/grok-4",
				LLM: []config.LLMPreference{
					{Provider: llm.ProviderOpenAI, Model: "gpt-4o"},
				},
			},
			expected: ResolvedLLMInfo{
				Provider: llm.ProviderXAI,
				Model:    "grok-4",
			},
		},
		{
			name: "multiple LLM preferences - uses first one",
			cfg: &config.AssistantConfig{
				LLM: []config.LLMPreference{
					{Provider: llm.ProviderGemini, Model: "gemini-2.5-flash"},
					{Provider: llm.ProviderOllama, Model: "mistral:20b"},
					{Provider: llm.ProviderOpenAI, Model: "gpt-4o"},
				},
			},
			expected: ResolvedLLMInfo{
				Provider: llm.ProviderGemini,
				Model:    "gemini-2.5-flash",
			},
		},
		{
			name: "empty LLM preferences slice - returns default",
			cfg: &config.AssistantConfig{
				LLM: []config.LLMPreference{},
			},
			expected: ResolvedLLMInfo{
				Provider: llm.ProviderAnthropic,
				Model:    "",
			},
		},
		{
			name: "nil LLM preferences - returns default",
			cfg: &config.AssistantConfig{
				LLM: nil,
			},
			expected: ResolvedLLMInfo{
				Provider: llm.ProviderAnthropic,
				Model:    "",
			},
		},
		{
			name: "config with other fields but no LLM preferences",
			cfg: &config.AssistantConfig{
				ID:       "test-assistant",
				Name:     "Test Assistant",
				Disabled: false,
				LLM:      nil,
			},
			expected: ResolvedLLMInfo{
				Provider: llm.ProviderAnthropic,
				Model:    "",
			},
		},
		{
			name: "LLM preference with temperature (should be ignored)",
			cfg: &config.AssistantConfig{
				LLM: []config.LLMPreference{
					{
						Provider:    llm.ProviderOllama,
						Model:       "llama3.2:3b",
						Temperature: lo.ToPtr(0.7),
					},
				},
			},
			expected: ResolvedLLMInfo{
				Provider: llm.ProviderOllama,
				Model:    "llama3.2:3b",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ResolveLLMFromConfig(tt.cfg)

			if result.Provider != tt.expected.Provider {
				t.Errorf("Provider: got %q, want %q", result.Provider, tt.expected.Provider)
			}

			if result.Model != tt.expected.Model {
				t.Errorf("Model: got %q, want %q", result.Model, tt.expected.Model)
			}
		})
	}
}
