package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vertexsales/salesbot/llm"
)

type fakeProvider struct {
	name string
}

func (f *fakeProvider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	return &llm.ChatResponse{Provider: f.name}, nil
}

func (f *fakeProvider) Stream(ctx context.Context, req *llm.ChatRequest) (<-chan llm.StreamChunk, error) {
	ch := make(chan llm.StreamChunk)
	close(ch)
	return ch, nil
}

func (f *fakeProvider) HealthCheck(ctx context.Context) (*llm.HealthStatus, error) {
	return &llm.HealthStatus{Healthy: true}, nil
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) SupportsNativeFunctionCalling() bool { return false }

func (f *fakeProvider) ListModels(ctx context.Context) ([]llm.Model, error) { return nil, nil }

func TestProviderSwitch_DelegatesToCurrent(t *testing.T) {
	sw := NewProviderSwitch(&fakeProvider{name: "openai"})
	assert.Equal(t, "openai", sw.Name())

	resp, err := sw.Completion(context.Background(), &llm.ChatRequest{})
	require.NoError(t, err)
	assert.Equal(t, "openai", resp.Provider)
}

func TestProviderSwitch_StoreSwapsAtomically(t *testing.T) {
	sw := NewProviderSwitch(&fakeProvider{name: "openai"})
	sw.Store(&fakeProvider{name: "yandex"})
	assert.Equal(t, "yandex", sw.Name())
}
