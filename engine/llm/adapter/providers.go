package llmadapter

import (
	"context"
	"fmt"

	"github.com/minutemate/minutemate/pkg/config"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

const (
	ProviderOpenAI    = "openai"
	ProviderGoogle    = "google"
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
	ProviderMock      = "mock"
)

// NewModel builds the langchaingo model selected by the llm config section.
func NewModel(ctx context.Context, cfg *config.LLMConfig) (llms.Model, error) {
	switch cfg.Provider {
	case ProviderOpenAI:
		return createOpenAILLM(cfg)
	case ProviderGoogle:
		return createGoogleLLM(ctx, cfg)
	case ProviderAnthropic:
		return createAnthropicLLM(cfg)
	case ProviderOllama:
		return createOllamaLLM(cfg)
	case ProviderMock:
		return NewScriptedModel(), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Provider)
	}
}

// SupportsJSONMode reports whether the provider honors llms.WithJSONMode.
func SupportsJSONMode(provider string) bool {
	switch provider {
	case ProviderOpenAI, ProviderGoogle, ProviderOllama:
		return true
	}
	return false
}

func createOpenAILLM(cfg *config.LLMConfig) (llms.Model, error) {
	opts := []openai.Option{
		openai.WithModel(cfg.Model),
	}
	if key := cfg.APIKey.Value(); key != "" {
		opts = append(opts, openai.WithToken(key))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	return openai.New(opts...)
}

func createGoogleLLM(ctx context.Context, cfg *config.LLMConfig) (llms.Model, error) {
	opts := []googleai.Option{
		googleai.WithDefaultModel(cfg.Model),
		googleai.WithDefaultTemperature(cfg.Temperature),
	}
	if key := cfg.APIKey.Value(); key != "" {
		opts = append(opts, googleai.WithAPIKey(key))
	}
	if cfg.BaseURL != "" {
		return nil, fmt.Errorf("googleai does not support custom API URL")
	}
	return googleai.New(ctx, opts...)
}

func createAnthropicLLM(cfg *config.LLMConfig) (llms.Model, error) {
	opts := []anthropic.Option{
		anthropic.WithModel(cfg.Model),
	}
	if key := cfg.APIKey.Value(); key != "" {
		opts = append(opts, anthropic.WithToken(key))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(cfg.BaseURL))
	}
	return anthropic.New(opts...)
}

func createOllamaLLM(cfg *config.LLMConfig) (llms.Model, error) {
	opts := []ollama.Option{
		ollama.WithModel(cfg.Model),
		ollama.WithFormat("json"),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
	}
	return ollama.New(opts...)
}
