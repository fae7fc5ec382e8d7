// Package factory provides a centralized factory for creating LLM Provider
// instances by name. It imports the provider sub-packages and maps string
// names to their constructors, breaking the import cycle that would occur
// if this logic lived in the llm package directly.
package factory

import (
	"fmt"
	"time"

	"github.com/vertexsales/salesbot/llm"
	"github.com/vertexsales/salesbot/llm/providers"
	"github.com/vertexsales/salesbot/llm/providers/openai"
	"github.com/vertexsales/salesbot/llm/providers/openaicompat"
	"github.com/vertexsales/salesbot/llm/providers/yandex"
	"go.uber.org/zap"
)

// ProviderConfig is the generic configuration accepted by the factory
// function. It uses a flat structure with an Extra map for
// provider-specific fields.
type ProviderConfig struct {
	APIKey  string         `json:"api_key" yaml:"api_key"`
	BaseURL string         `json:"base_url" yaml:"base_url"`
	Model   string         `json:"model,omitempty" yaml:"model,omitempty"`
	Timeout time.Duration  `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	Extra   map[string]any `json:"extra,omitempty" yaml:"extra,omitempty"`
}

// NewProviderFromConfig creates a Provider instance for one of the two
// providers this gateway ships with at launch (see SPEC_FULL.md §4.2):
// "openai" (also serves any OpenAI-compatible endpoint) and "yandex"
// (Yandex Foundation Models). Any other name is treated as a generic
// OpenAI-compatible endpoint provided base_url is set, so self-hosted or
// third-party OpenAI-compatible gateways can be wired without code changes.
func NewProviderFromConfig(name string, cfg ProviderConfig, logger *zap.Logger) (llm.Provider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	base := providers.BaseProviderConfig{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
		Timeout: cfg.Timeout,
	}

	switch name {
	case "openai":
		oc := providers.OpenAIConfig{BaseProviderConfig: base}
		if cfg.Extra != nil {
			if v, ok := cfg.Extra["organization"].(string); ok {
				oc.Organization = v
			}
		}
		return openai.New(oc, logger), nil

	case "yandex":
		yc := providers.YandexConfig{BaseProviderConfig: base}
		if cfg.Extra != nil {
			if v, ok := cfg.Extra["folder_id"].(string); ok {
				yc.FolderID = v
			}
		}
		return yandex.New(yc, logger), nil

	default:
		// Generic OpenAI-compatible provider: any name + base_url is accepted,
		// for operators running Groq/Fireworks/OpenRouter/vLLM-style endpoints.
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("unknown provider %q: built-in provider not found, and base_url is required for a generic OpenAI-compatible provider", name)
		}
		oc := openaicompat.Config{
			ProviderName: name,
			APIKey:       cfg.APIKey,
			BaseURL:      cfg.BaseURL,
			DefaultModel: cfg.Model,
		}
		logger.Info("creating generic OpenAI-compatible provider",
			zap.String("provider", name),
			zap.String("base_url", cfg.BaseURL))
		return openaicompat.New(oc, logger), nil
	}
}

// SupportedProviders returns the list of built-in provider names. Any name
// not in this list is treated as a generic OpenAI-compatible provider,
// requiring base_url in the configuration.
func SupportedProviders() []string {
	return []string{"openai", "yandex"}
}

// RegistryConfig describes multiple providers and which one is the default.
// Use this with NewRegistryFromConfig to build a ProviderRegistry in one call.
type RegistryConfig struct {
	// Default is the name of the default provider (must match a key in Providers).
	Default string `json:"default" yaml:"default"`
	// Providers maps provider names to their configurations.
	Providers map[string]ProviderConfig `json:"providers" yaml:"providers"`
}

// NewRegistryFromConfig creates a ProviderRegistry populated with all
// providers defined in the RegistryConfig. It sets the default provider if
// specified. Any provider that fails to initialize is logged as a warning
// and skipped.
func NewRegistryFromConfig(cfg RegistryConfig, logger *zap.Logger) (*llm.ProviderRegistry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	reg := llm.NewProviderRegistry()

	for name, pcfg := range cfg.Providers {
		p, err := NewProviderFromConfig(name, pcfg, logger)
		if err != nil {
			logger.Warn("skipping provider: initialization failed",
				zap.String("provider", name),
				zap.Error(err))
			continue
		}
		reg.Register(name, p)
		logger.Info("provider registered", zap.String("provider", name))
	}

	if cfg.Default != "" {
		if err := reg.SetDefault(cfg.Default); err != nil {
			return reg, fmt.Errorf("failed to set default provider %q: %w", cfg.Default, err)
		}
	}

	return reg, nil
}
