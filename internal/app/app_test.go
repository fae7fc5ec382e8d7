package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/vertexsales/salesbot/config"
)

func testLLMConfig() config.LLMConfig {
	return config.LLMConfig{
		DefaultProvider:    "openai",
		OpenAIAPIKey:       "sk-env-key",
		OpenAIDefaultModel: "gpt-4o-mini",
		YandexAPIKey:       "yandex-env-key",
		YandexFolderID:     "folder-1",
		YandexDefaultModel: "yandexgpt-lite",
		Timeout:            5 * time.Second,
	}
}

func TestBuildProvider_FallsBackToConfigDefault(t *testing.T) {
	logger := zaptest.NewLogger(t)

	p, model, err := buildProvider(testLLMConfig(), "", nil, logger)
	require.NoError(t, err)
	assert.Equal(t, "openai", p.Name())
	assert.Equal(t, "gpt-4o-mini", model)
}

func TestBuildProvider_ExplicitProviderIDOverridesDefault(t *testing.T) {
	logger := zaptest.NewLogger(t)

	p, model, err := buildProvider(testLLMConfig(), "yandex", nil, logger)
	require.NoError(t, err)
	assert.Equal(t, "yandex", p.Name())
	assert.Equal(t, "yandexgpt-lite", model)
}

func TestBuildProvider_SettingOverrideWinsOverEnvConfig(t *testing.T) {
	logger := zaptest.NewLogger(t)

	_, model, err := buildProvider(testLLMConfig(), "openai", &llmSettingOverride{
		APIKey: "sk-admin-override",
		Model:  "gpt-4o",
	}, logger)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", model)
}

func TestBuildProvider_MissingAPIKeyErrors(t *testing.T) {
	logger := zaptest.NewLogger(t)
	cfg := testLLMConfig()
	cfg.OpenAIAPIKey = ""

	_, _, err := buildProvider(cfg, "openai", nil, logger)
	assert.Error(t, err)
}
