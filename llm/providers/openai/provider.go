package openai

import (
	"net/http"

	"github.com/vertexsales/salesbot/llm/providers"
	"github.com/vertexsales/salesbot/llm/providers/openaicompat"
	"go.uber.org/zap"
)

// Provider implements the LLM provider interface for OpenAI and any
// deployment that speaks the OpenAI Chat Completions wire format
// (DEFAULT_LLM_PROVIDER=openai, see config.Keys).
type Provider struct {
	*openaicompat.Provider
	cfg providers.OpenAIConfig
}

// New creates an OpenAI provider instance.
func New(cfg providers.OpenAIConfig, logger *zap.Logger) *Provider {
	p := &Provider{
		Provider: openaicompat.New(openaicompat.Config{
			ProviderName:  "openai",
			APIKey:        cfg.APIKey,
			BaseURL:       cfg.BaseURL,
			DefaultModel:  cfg.Model,
			FallbackModel: "gpt-4o-mini",
			Timeout:       cfg.Timeout,
		}, logger),
		cfg: cfg,
	}

	p.SetBuildHeaders(func(req *http.Request, apiKey string) {
		req.Header.Set("Authorization", "Bearer "+apiKey)
		if cfg.Organization != "" {
			req.Header.Set("OpenAI-Organization", cfg.Organization)
		}
		req.Header.Set("Content-Type", "application/json")
	})

	return p
}
