package classifier

import (
	"context"
	"testing"

	"github.com/vertexsales/salesbot/llm"
	"github.com/vertexsales/salesbot/types"
)

type fakeProvider struct {
	reply string
	err   error
}

func (f *fakeProvider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &llm.ChatResponse{
		Choices: []llm.ChatChoice{{Message: types.NewAssistantMessage(f.reply)}},
	}, nil
}
func (f *fakeProvider) Stream(ctx context.Context, req *llm.ChatRequest) (<-chan llm.StreamChunk, error) {
	return nil, nil
}
func (f *fakeProvider) HealthCheck(ctx context.Context) (*llm.HealthStatus, error) { return nil, nil }
func (f *fakeProvider) Name() string                                              { return "fake" }
func (f *fakeProvider) SupportsNativeFunctionCalling() bool                       { return false }
func (f *fakeProvider) ListModels(ctx context.Context) ([]llm.Model, error)       { return nil, nil }

func TestClassify_KeywordPass(t *testing.T) {
	c := New(&fakeProvider{reply: "GENERAL"}, "test-model", nil)

	cases := []struct {
		text string
		want types.Intent
	}{
		{"what's the price of the X200?", types.IntentProduct},
		{"do you offer installation service?", types.IntentService},
		{"tell me about your company", types.IntentCompanyInfo},
		{"please call me back", types.IntentContact},
	}

	for _, tc := range cases {
		got, err := c.Classify(context.Background(), tc.text)
		if err != nil {
			t.Fatalf("classify(%q): %v", tc.text, err)
		}
		if got != tc.want {
			t.Errorf("classify(%q) = %s, want %s", tc.text, got, tc.want)
		}
	}
}

func TestClassify_FallsBackToLLM(t *testing.T) {
	c := New(&fakeProvider{reply: "GENERAL"}, "test-model", nil)

	got, err := c.Classify(context.Background(), "hello there, how's it going")
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if got != types.IntentGeneral {
		t.Fatalf("expected GENERAL fallback, got %s", got)
	}
}

func TestClassify_ContactWinsOverProduct(t *testing.T) {
	c := New(&fakeProvider{}, "test-model", nil)
	got, err := c.Classify(context.Background(), "call me about the price of the X200")
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if got != types.IntentContact {
		t.Fatalf("expected CONTACT to win, got %s", got)
	}
}
