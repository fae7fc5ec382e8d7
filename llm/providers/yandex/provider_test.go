package yandex

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/vertexsales/salesbot/llm"
	"github.com/vertexsales/salesbot/llm/providers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew_Defaults(t *testing.T) {
	p := New(providers.YandexConfig{
		BaseProviderConfig: providers.BaseProviderConfig{APIKey: "yc-test"},
		FolderID:           "b1g00test",
	}, zap.NewNop())

	require.NotNil(t, p)
	assert.Equal(t, "yandex", p.Name())
	assert.False(t, p.SupportsNativeFunctionCalling())
	assert.Equal(t, defaultBaseURL, p.cfg.BaseURL)
}

func TestModelURI(t *testing.T) {
	p := New(providers.YandexConfig{
		BaseProviderConfig: providers.BaseProviderConfig{APIKey: "k"},
		FolderID:           "folder1",
	}, nil)

	assert.Equal(t, "gpt://folder1/yandexgpt-lite/latest", p.modelURI(""))
	assert.Equal(t, "gpt://folder1/yandexgpt/latest", p.modelURI("yandexgpt"))
	assert.Equal(t, "gpt://other/custom/latest", p.modelURI("gpt://other/custom/latest"))
}

func TestProvider_Completion_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Api-Key yc-test", r.Header.Get("Authorization"))
		assert.Equal(t, "b1g00test", r.Header.Get("x-folder-id"))

		var body completionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "gpt://b1g00test/yandexgpt-lite/latest", body.ModelURI)
		require.Len(t, body.Messages, 1)
		assert.Equal(t, "user", body.Messages[0].Role)
		assert.Equal(t, "Hi", body.Messages[0].Text)

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"result": {
				"alternatives": [{"message": {"role": "assistant", "text": "Hello!"}, "status": "ALTERNATIVE_STATUS_FINAL"}],
				"usage": {"inputTextTokens": "3", "completionTokens": "2", "totalTokens": "5"},
				"modelVersion": "23.10.2024"
			}
		}`)
	}))
	t.Cleanup(server.Close)

	p := New(providers.YandexConfig{
		BaseProviderConfig: providers.BaseProviderConfig{APIKey: "yc-test", BaseURL: server.URL},
		FolderID:           "b1g00test",
	}, zap.NewNop())

	resp, err := p.Completion(context.Background(), &llm.ChatRequest{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "Hi"}},
	})
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, "yandex", resp.Provider)
	assert.Equal(t, "23.10.2024", resp.Model)
	require.Len(t, resp.Choices, 1)
	assert.Equal(t, "Hello!", resp.Choices[0].Message.Content)
	assert.Equal(t, "ALTERNATIVE_STATUS_FINAL", resp.Choices[0].FinishReason)
	assert.Equal(t, 5, resp.Usage.TotalTokens)
	assert.Equal(t, 3, resp.Usage.PromptTokens)
	assert.Equal(t, 2, resp.Usage.CompletionTokens)
}

func TestProvider_Completion_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"invalid api key"}}`)
	}))
	t.Cleanup(server.Close)

	p := New(providers.YandexConfig{
		BaseProviderConfig: providers.BaseProviderConfig{APIKey: "bad", BaseURL: server.URL},
		FolderID:           "f1",
	}, zap.NewNop())

	_, err := p.Completion(context.Background(), &llm.ChatRequest{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "Hi"}},
	})
	require.Error(t, err)
	var llmErr *llm.Error
	require.ErrorAs(t, err, &llmErr)
	assert.Equal(t, llm.ErrUnauthorized, llmErr.Code)
}

func TestProvider_Completion_EmptyAlternatives(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"result": {"alternatives": []}}`)
	}))
	t.Cleanup(server.Close)

	p := New(providers.YandexConfig{
		BaseProviderConfig: providers.BaseProviderConfig{APIKey: "k", BaseURL: server.URL},
		FolderID:           "f1",
	}, zap.NewNop())

	_, err := p.Completion(context.Background(), &llm.ChatRequest{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "Hi"}},
	})
	require.Error(t, err)
}

func TestProvider_Completion_CredentialOverride(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"result": {"alternatives": [{"message": {"role": "assistant", "text": "ok"}, "status": "FINAL"}]}}`)
	}))
	t.Cleanup(server.Close)

	p := New(providers.YandexConfig{
		BaseProviderConfig: providers.BaseProviderConfig{APIKey: "cfg-key", BaseURL: server.URL},
		FolderID:           "f1",
	}, zap.NewNop())

	ctx := llm.WithCredentialOverride(context.Background(), llm.CredentialOverride{APIKey: "override-key"})
	_, err := p.Completion(ctx, &llm.ChatRequest{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "Hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Api-Key override-key", gotAuth)
}

func TestProvider_Stream_WrapsCompletion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"result": {"alternatives": [{"message": {"role": "assistant", "text": "streamed"}, "status": "FINAL"}], "modelVersion": "v1"}}`)
	}))
	t.Cleanup(server.Close)

	p := New(providers.YandexConfig{
		BaseProviderConfig: providers.BaseProviderConfig{APIKey: "k", BaseURL: server.URL},
		FolderID:           "f1",
	}, zap.NewNop())

	ch, err := p.Stream(context.Background(), &llm.ChatRequest{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "Hi"}},
	})
	require.NoError(t, err)

	var chunks []llm.StreamChunk
	for c := range ch {
		chunks = append(chunks, c)
	}
	require.Len(t, chunks, 1)
	assert.Nil(t, chunks[0].Err)
	assert.Equal(t, "streamed", chunks[0].Delta.Content)
	assert.Equal(t, "FINAL", chunks[0].FinishReason)
}

func TestProvider_HealthCheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"result": {"alternatives": [{"message": {"role": "assistant", "text": "pong"}, "status": "FINAL"}]}}`)
	}))
	t.Cleanup(server.Close)

	p := New(providers.YandexConfig{
		BaseProviderConfig: providers.BaseProviderConfig{APIKey: "k", BaseURL: server.URL},
		FolderID:           "f1",
	}, zap.NewNop())

	status, err := p.HealthCheck(context.Background())
	require.NoError(t, err)
	assert.True(t, status.Healthy)
}

func TestProvider_ListModels_ReturnsNil(t *testing.T) {
	p := New(providers.YandexConfig{
		BaseProviderConfig: providers.BaseProviderConfig{APIKey: "k"},
		FolderID:           "f1",
	}, nil)

	models, err := p.ListModels(context.Background())
	require.NoError(t, err)
	assert.Nil(t, models)
}
