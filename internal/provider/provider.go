package provider

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
)

// ModelParams bound a decision or reflection call.
type ModelParams struct {
	Temperature float32
	MaxTokens   int
}

// DefaultParams are used for decision and evaluation calls.
func DefaultParams() ModelParams {
	return ModelParams{Temperature: 0.0, MaxTokens: 1024}
}

// ReflectionParams give the instruction-refinement model room to think.
func ReflectionParams() ModelParams {
	return ModelParams{Temperature: 1.0, MaxTokens: 4096}
}

// NewChatModel builds a chat model for a provider-prefixed identifier
// such as "openrouter/google/gemini-2.5-flash-lite" or
// "openai/gpt-4o-mini". Provider API keys come from the conventional
// environment variables.
func NewChatModel(ctx context.Context, identifier string, params ModelParams) (model.ChatModel, error) {
	providerName, modelName, ok := strings.Cut(identifier, "/")
	if !ok {
		providerName, modelName = "openai", identifier
	}

	switch strings.ToLower(providerName) {
	case "openrouter":
		return newOpenAICompatible(ctx, modelName, os.Getenv("OPENROUTER_API_KEY"),
			"https://openrouter.ai/api/v1", params)
	case "openai":
		return newOpenAICompatible(ctx, modelName, os.Getenv("OPENAI_API_KEY"), "", params)
	case "deepseek":
		return newOpenAICompatible(ctx, modelName, os.Getenv("DEEPSEEK_API_KEY"),
			"https://api.deepseek.com/v1", params)
	case "anthropic":
		return newOpenAICompatible(ctx, modelName, os.Getenv("ANTHROPIC_API_KEY"),
			"https://api.anthropic.com/v1", params)
	case "ollama":
		baseURL := os.Getenv("OLLAMA_HOST")
		if baseURL == "" {
			baseURL = "http://localhost:11434"
		}
		return newOpenAICompatible(ctx, modelName, "", baseURL+"/v1", params)
	default:
		return nil, fmt.Errorf("unknown model provider %q in %q", providerName, identifier)
	}
}

func newOpenAICompatible(ctx context.Context, modelName, apiKey, baseURL string, params ModelParams) (model.ChatModel, error) {
	cfg := &openai.ChatModelConfig{
		Model:       modelName,
		APIKey:      apiKey,
		Temperature: &params.Temperature,
		MaxTokens:   &params.MaxTokens,
	}
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return openai.NewChatModel(ctx, cfg)
}
