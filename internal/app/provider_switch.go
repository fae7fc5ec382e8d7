package app

import (
	"context"
	"sync/atomic"

	"github.com/vertexsales/salesbot/llm"
)

// ProviderSwitch is an llm.Provider that delegates every call to whichever
// concrete provider is currently loaded in its atomic pointer. The
// classifier and orchestrator hold one of these instead of a concrete
// provider so an admin activating a different row in sb_llm_settings takes
// effect for the next turn without a process restart.
type ProviderSwitch struct {
	current atomic.Pointer[llm.Provider]
}

// NewProviderSwitch returns a ProviderSwitch initially loaded with p.
func NewProviderSwitch(p llm.Provider) *ProviderSwitch {
	s := &ProviderSwitch{}
	s.Store(p)
	return s
}

// Store atomically replaces the active provider.
func (s *ProviderSwitch) Store(p llm.Provider) {
	s.current.Store(&p)
}

// load returns the active provider.
func (s *ProviderSwitch) load() llm.Provider {
	return *s.current.Load()
}

func (s *ProviderSwitch) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	return s.load().Completion(ctx, req)
}

func (s *ProviderSwitch) Stream(ctx context.Context, req *llm.ChatRequest) (<-chan llm.StreamChunk, error) {
	return s.load().Stream(ctx, req)
}

func (s *ProviderSwitch) HealthCheck(ctx context.Context) (*llm.HealthStatus, error) {
	return s.load().HealthCheck(ctx)
}

func (s *ProviderSwitch) Name() string {
	return s.load().Name()
}

func (s *ProviderSwitch) SupportsNativeFunctionCalling() bool {
	return s.load().SupportsNativeFunctionCalling()
}

func (s *ProviderSwitch) ListModels(ctx context.Context) ([]llm.Model, error) {
	return s.load().ListModels(ctx)
}
