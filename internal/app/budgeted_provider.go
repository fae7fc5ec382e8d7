package app

import (
	"context"

	"go.uber.org/zap"

	"github.com/vertexsales/salesbot/costguard"
	"github.com/vertexsales/salesbot/llm"
	"github.com/vertexsales/salesbot/llm/budget"
	"github.com/vertexsales/salesbot/llm/tokenizer"
)

// BudgetedProvider wraps an llm.Provider with two complementary spend
// controls: costguard.Guard's monthly (provider, model) kill-switch backed
// by the database, and budget.TokenBudgetManager's in-memory short-window
// (minute/hour/day, per-request) limiter. The token manager catches a
// runaway conversation within the same minute; the cost guard catches a
// month of runaway conversations.
type BudgetedProvider struct {
	inner  llm.Provider
	guard  *costguard.Guard
	tokens *budget.TokenBudgetManager
	logger *zap.Logger
}

// NewBudgetedProvider returns a BudgetedProvider. tokens may be nil to
// disable short-window limiting while keeping the monthly cost guard.
func NewBudgetedProvider(inner llm.Provider, guard *costguard.Guard, tokens *budget.TokenBudgetManager, logger *zap.Logger) *BudgetedProvider {
	return &BudgetedProvider{inner: inner, guard: guard, tokens: tokens, logger: logger}
}

func (p *BudgetedProvider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	if err := p.guard.Check(p.inner.Name(), req.Model); err != nil {
		return nil, err
	}
	if p.tokens != nil {
		if err := p.tokens.CheckBudget(ctx, estimateRequestTokens(req), 0); err != nil {
			return nil, err
		}
	}

	resp, err := p.inner.Completion(ctx, req)
	if err != nil {
		return nil, err
	}

	if p.tokens != nil {
		p.tokens.RecordUsage(budget.UsageRecord{
			Tokens: resp.Usage.TotalTokens,
			Model:  resp.Model,
		})
	}
	if err := p.guard.RecordUsage(ctx, p.inner.Name(), resp.Model, int64(resp.Usage.TotalTokens), 0); err != nil {
		p.logger.Warn("cost guard record usage failed", zap.Error(err))
	}

	return resp, nil
}

// estimateRequestTokens counts the prompt tokens using the registered
// tokenizer for req.Model, falling back to a char-ratio estimator for
// models nothing registered a tokenizer for.
func estimateRequestTokens(req *llm.ChatRequest) int {
	msgs := make([]tokenizer.Message, len(req.Messages))
	for i, m := range req.Messages {
		msgs[i] = tokenizer.Message{Role: string(m.Role), Content: m.Content}
	}
	count, err := tokenizer.GetTokenizerOrEstimator(req.Model).CountMessages(msgs)
	if err != nil {
		return 0
	}
	return count
}

func (p *BudgetedProvider) Stream(ctx context.Context, req *llm.ChatRequest) (<-chan llm.StreamChunk, error) {
	if err := p.guard.Check(p.inner.Name(), req.Model); err != nil {
		return nil, err
	}
	return p.inner.Stream(ctx, req)
}

func (p *BudgetedProvider) HealthCheck(ctx context.Context) (*llm.HealthStatus, error) {
	return p.inner.HealthCheck(ctx)
}

func (p *BudgetedProvider) Name() string { return p.inner.Name() }

func (p *BudgetedProvider) SupportsNativeFunctionCalling() bool {
	return p.inner.SupportsNativeFunctionCalling()
}

func (p *BudgetedProvider) ListModels(ctx context.Context) ([]llm.Model, error) {
	return p.inner.ListModels(ctx)
}
