// Package provider builds the chat model named by the configuration.
package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/MEKXH/tether/internal/config"
	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino-ext/components/model/ollama"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
)

type providerName string

const (
	providerOpenRouter providerName = "openrouter"
	providerClaude     providerName = "claude"
	providerOpenAI     providerName = "openai"
	providerDeepSeek   providerName = "deepseek"
	providerOllama     providerName = "ollama"
)

// fallbackOrder is used when the model name carries no known prefix.
var fallbackOrder = []providerName{providerOpenRouter, providerClaude, providerOpenAI, providerDeepSeek, providerOllama}

// NewChatModel creates a ChatModel based on configuration
func NewChatModel(ctx context.Context, cfg *config.Config) (model.ChatModel, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	name, p, err := resolveProvider(cfg)
	if err != nil {
		return nil, err
	}
	d := cfg.Agents.Defaults

	switch name {
	case providerOpenRouter:
		return newOpenAICompatible(ctx, p, "https://openrouter.ai/api/v1", d.Model, d)
	case providerClaude:
		return newClaudeModel(ctx, p, d)
	case providerOpenAI:
		return newOpenAICompatible(ctx, p, "", modelName(d.Model), d)
	case providerDeepSeek:
		return newOpenAICompatible(ctx, p, "https://api.deepseek.com/v1", modelName(d.Model), d)
	case providerOllama:
		return newOllamaModel(ctx, p, d)
	default:
		return nil, fmt.Errorf("unsupported provider %q", name)
	}
}

// Describe returns "provider/model" for status output, or an error when no
// provider is usable.
func Describe(cfg *config.Config) (string, error) {
	name, _, err := resolveProvider(cfg)
	if err != nil {
		return "", err
	}
	return string(name) + "/" + modelName(cfg.Agents.Defaults.Model), nil
}

func resolveProvider(cfg *config.Config) (providerName, config.ProviderConfig, error) {
	if cfg == nil {
		return "", config.ProviderConfig{}, fmt.Errorf("config is nil")
	}
	if name := providerFromModel(cfg.Agents.Defaults.Model); name != "" {
		p := providerConfig(cfg, name)
		if !usable(name, p) {
			return "", p, fmt.Errorf("model %q needs providers.%s to be configured", cfg.Agents.Defaults.Model, missingKey(name))
		}
		return name, p, nil
	}
	for _, name := range fallbackOrder {
		if p := providerConfig(cfg, name); usable(name, p) {
			return name, p, nil
		}
	}
	return "", config.ProviderConfig{}, fmt.Errorf("no provider configured: set api_key for at least one provider")
}

func missingKey(name providerName) string {
	if name == providerOllama {
		return "ollama.base_url"
	}
	return string(name) + ".api_key"
}

func usable(name providerName, p config.ProviderConfig) bool {
	if name == providerOllama {
		return strings.TrimSpace(p.BaseURL) != ""
	}
	return strings.TrimSpace(p.APIKey) != ""
}

func providerConfig(cfg *config.Config, name providerName) config.ProviderConfig {
	switch name {
	case providerOpenRouter:
		return cfg.Providers.OpenRouter
	case providerClaude:
		return cfg.Providers.Claude
	case providerOpenAI:
		return cfg.Providers.OpenAI
	case providerDeepSeek:
		return cfg.Providers.DeepSeek
	case providerOllama:
		return cfg.Providers.Ollama
	default:
		return config.ProviderConfig{}
	}
}

func providerFromModel(m string) providerName {
	prefix, _, ok := strings.Cut(strings.TrimSpace(m), "/")
	if !ok {
		return ""
	}
	switch strings.ToLower(prefix) {
	case "openrouter":
		return providerOpenRouter
	case "anthropic", "claude":
		return providerClaude
	case "openai":
		return providerOpenAI
	case "deepseek":
		return providerDeepSeek
	case "ollama":
		return providerOllama
	default:
		return ""
	}
}

// modelName strips a known provider prefix.
func modelName(m string) string {
	m = strings.TrimSpace(m)
	if providerFromModel(m) == "" {
		return m
	}
	_, rest, _ := strings.Cut(m, "/")
	return rest
}

func newOpenAICompatible(ctx context.Context, p config.ProviderConfig, defaultBaseURL, modelID string, d config.AgentDefaults) (model.ChatModel, error) {
	cfg := &openai.ChatModelConfig{
		Model:       modelID,
		APIKey:      p.APIKey,
		BaseURL:     defaultBaseURL,
		Temperature: toFloat32Ptr(d.Temperature),
		MaxTokens:   toIntPtr(d.MaxTokens),
	}
	if p.BaseURL != "" {
		cfg.BaseURL = p.BaseURL
	}
	return openai.NewChatModel(ctx, cfg)
}

func newClaudeModel(ctx context.Context, p config.ProviderConfig, d config.AgentDefaults) (model.ChatModel, error) {
	cfg := &claude.Config{
		APIKey:      p.APIKey,
		Model:       modelName(d.Model),
		MaxTokens:   d.MaxTokens,
		Temperature: toFloat32Ptr(d.Temperature),
	}
	if p.BaseURL != "" {
		baseURL := p.BaseURL
		cfg.BaseURL = &baseURL
	}
	return claude.NewChatModel(ctx, cfg)
}

func newOllamaModel(ctx context.Context, p config.ProviderConfig, d config.AgentDefaults) (model.ChatModel, error) {
	return ollama.NewChatModel(ctx, &ollama.ChatModelConfig{
		BaseURL: strings.TrimRight(p.BaseURL, "/"),
		Model:   modelName(d.Model),
	})
}

func toFloat32Ptr(f float64) *float32 {
	v := float32(f)
	return &v
}

func toIntPtr(i int) *int {
	return &i
}
