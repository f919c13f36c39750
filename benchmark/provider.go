package benchmark

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/samshapley/ancientgrok/config"
	"github.com/samshapley/ancientgrok/llm"
	"github.com/samshapley/ancientgrok/translate"
	anthropicbatch "github.com/samshapley/ancientgrok/translate/anthropic"
	geminibatch "github.com/samshapley/ancientgrok/translate/gemini"
	openaibatch "github.com/samshapley/ancientgrok/translate/openai"
	xaibatch "github.com/samshapley/ancientgrok/translate/xai"
)

// NewTranslator builds the translator for an experiment: a chat client for
// the synchronous path plus, in batch mode, the vendor's batch backend.
// Individual mode leaves the backend out so every request goes through the
// paced sequential path, even for vendors with a batch surface.
func NewTranslator(cfg *config.Config, exp Experiment, logger zerolog.Logger) (*translate.Provider, error) {
	builder, err := exp.Builder()
	if err != nil {
		return nil, err
	}

	client, err := chatClient(cfg, exp, logger)
	if err != nil {
		return nil, err
	}

	var backend translate.BatchBackend
	if exp.Mode == ModeBatch {
		backend, err = BackendFor(cfg, exp, logger)
		if err != nil {
			return nil, err
		}
	}

	opts := translate.ProviderOptions{
		Model:        exp.Model,
		MaxTokens:    exp.MaxTokens,
		Temperature:  exp.Temperature,
		Prompt:       builder.Func(),
		PollInterval: exp.PollInterval(),
		Timeout:      exp.Timeout(),
		RequestDelay: exp.RequestDelay(),
	}
	return translate.NewProvider(client, backend, opts, logger), nil
}

// BackendFor builds the vendor batch backend for an experiment. Detached
// submission and later collection both go through this, so a stored job can
// be polled by a process that never saw the original experiment file.
func BackendFor(cfg *config.Config, exp Experiment, logger zerolog.Logger) (translate.BatchBackend, error) {
	builder, err := exp.Builder()
	if err != nil {
		return nil, err
	}

	switch provider := exp.EffectiveProvider(); provider {
	case llm.ProviderAnthropic:
		return anthropicbatch.NewBackend(config.LoadAnthropicConfig(cfg), anthropicbatch.Options{
			Model:       exp.Model,
			MaxTokens:   exp.MaxTokens,
			Temperature: exp.Temperature,
			Prompt:      builder.Func(),
		}, logger)
	case llm.ProviderOpenAI:
		apiKey, _, _, organization := config.LoadOpenAIConfig(cfg)
		return openaibatch.NewBackend(apiKey, organization, openaibatch.Options{
			Model:       exp.Model,
			MaxTokens:   exp.MaxTokens,
			Temperature: exp.Temperature,
			Prompt:      builder.Func(),
		}, logger)
	case llm.ProviderGemini:
		apiKey, _ := config.LoadGeminiConfig(cfg)
		return geminibatch.NewBackend(apiKey, geminibatch.Options{
			Model:       exp.Model,
			MaxTokens:   exp.MaxTokens,
			Temperature: exp.Temperature,
			Prompt:      builder.Func(),
		}, logger)
	case llm.ProviderXAI:
		apiKey, baseURL, _ := config.LoadXAIConfig(cfg)
		return xaibatch.NewBackendWithBaseURL(apiKey, baseURL, xaibatch.Options{
			Model:       exp.Model,
			MaxTokens:   exp.MaxTokens,
			Temperature: exp.Temperature,
			Prompt:      builder.Func(),
		}, logger)
	default:
		return nil, fmt.Errorf("provider %s has no batch API", provider)
	}
}

func chatClient(cfg *config.Config, exp Experiment, logger zerolog.Logger) (llm.Client, error) {
	switch provider := exp.EffectiveProvider(); provider {
	case llm.ProviderAnthropic:
		return config.NewAnthropicClient(cfg, logger)
	case llm.ProviderGemini:
		return config.NewGeminiClient(cfg, logger)
	case llm.ProviderOllama:
		return config.NewOllamaClient(cfg)
	case llm.ProviderOpenAI:
		return config.NewOpenAIClient(cfg)
	case llm.ProviderXAI:
		return config.NewXAIClient(cfg)
	default:
		return nil, fmt.Errorf("unknown provider %q", provider)
	}
}
