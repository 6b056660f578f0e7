package provider

import (
	"context"
	"strings"
	"testing"

	"github.com/MEKXH/tether/internal/config"
)

func TestNewChatModel_NoProvider(t *testing.T) {
	cfg := config.DefaultConfig()

	_, err := NewChatModel(context.Background(), cfg)
	if err == nil {
		t.Error("expected error when no provider configured")
	}
}

func TestProviderFromModel(t *testing.T) {
	tests := []struct {
		model string
		want  providerName
	}{
		{model: "openai/gpt-4o", want: providerOpenAI},
		{model: "anthropic/claude-sonnet-4-5", want: providerClaude},
		{model: "claude/claude-3-5-sonnet", want: providerClaude},
		{model: "deepseek/deepseek-chat", want: providerDeepSeek},
		{model: "ollama/llama3.1", want: providerOllama},
		{model: "OpenRouter/meta/llama", want: providerOpenRouter},
		{model: "unknown/model", want: ""},
		{model: "no-prefix-model", want: ""},
	}

	for _, tt := range tests {
		if got := providerFromModel(tt.model); got != tt.want {
			t.Fatalf("providerFromModel(%q)=%q want %q", tt.model, got, tt.want)
		}
	}
}

func TestModelName(t *testing.T) {
	tests := map[string]string{
		"anthropic/claude-sonnet-4-5": "claude-sonnet-4-5",
		"ollama/qwen2.5-coder:7b":     "qwen2.5-coder:7b",
		"gpt-4o":                      "gpt-4o",
		"meta-llama/llama-3.1-70b":    "meta-llama/llama-3.1-70b",
	}
	for in, want := range tests {
		if got := modelName(in); got != want {
			t.Fatalf("modelName(%q)=%q want %q", in, got, want)
		}
	}
}

func TestResolveProvider_PrefersModelMappedProvider(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Agents.Defaults.Model = "openai/gpt-4o"
	cfg.Providers.OpenRouter.APIKey = "openrouter-key"
	cfg.Providers.OpenAI.APIKey = "openai-key"

	got, p, err := resolveProvider(cfg)
	if err != nil {
		t.Fatalf("resolveProvider returned error: %v", err)
	}
	if got != providerOpenAI || p.APIKey != "openai-key" {
		t.Fatalf("expected provider %q, got %q", providerOpenAI, got)
	}
}

func TestResolveProvider_FallbackOrder(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Agents.Defaults.Model = "no-prefix-model"
	cfg.Providers.Ollama.BaseURL = "http://localhost:11434"
	cfg.Providers.DeepSeek.APIKey = "deepseek-key"

	got, _, err := resolveProvider(cfg)
	if err != nil {
		t.Fatalf("resolveProvider returned error: %v", err)
	}
	if got != providerDeepSeek {
		t.Fatalf("expected provider %q, got %q", providerDeepSeek, got)
	}
}

func TestResolveProvider_MappedProviderMustBeConfigured(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Agents.Defaults.Model = "ollama/llama3.1"
	cfg.Providers.OpenAI.APIKey = "openai-key"

	_, _, err := resolveProvider(cfg)
	if err == nil || !strings.Contains(err.Error(), "ollama.base_url") {
		t.Fatalf("expected missing base_url error, got %v", err)
	}
}

func TestNewChatModel_BuildsConfiguredProviders(t *testing.T) {
	tests := []struct {
		name   string
		model  string
		mutate func(c *config.Config)
	}{
		{name: "openai", model: "openai/gpt-4o", mutate: func(c *config.Config) { c.Providers.OpenAI.APIKey = "sk-test" }},
		{name: "ollama", model: "ollama/llama3.1", mutate: func(c *config.Config) { c.Providers.Ollama.BaseURL = "http://127.0.0.1:11434" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			cfg.Agents.Defaults.Model = tt.model
			tt.mutate(cfg)

			m, err := NewChatModel(context.Background(), cfg)
			if err != nil {
				t.Fatalf("NewChatModel error: %v", err)
			}
			if m == nil {
				t.Fatal("expected a model")
			}
		})
	}
}

func TestDescribe(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Providers.Claude.APIKey = "key"

	got, err := Describe(cfg)
	if err != nil {
		t.Fatalf("Describe error: %v", err)
	}
	if got != "claude/claude-sonnet-4-5" {
		t.Fatalf("unexpected description %q", got)
	}
}
