// Copyright 2024 AgentFlow Authors. All rights reserved.
// Use of this source code is governed by a MIT license that can be
// found in the LICENSE file.

/*
Package llm provides a unified LLM provider abstraction: one Provider
interface, and decorators around it for resilience, caching, and spend
control.

# Provider Interface

	type Provider interface {
	    Completion(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
	    Stream(ctx context.Context, req *ChatRequest) (<-chan StreamChunk, error)
	    HealthCheck(ctx context.Context) (*HealthStatus, error)
	    Name() string
	    SupportsNativeFunctionCalling() bool
	    ListModels(ctx context.Context) ([]Model, error)
	}

llm/factory.NewProviderFromConfig builds a concrete Provider from
configuration: llm/providers/openai, llm/providers/openaicompat (any
OpenAI-wire-compatible endpoint given a base URL), or llm/providers/yandex.

# Decorator Chain

A completion call passes through decorators in this order before reaching
the concrete provider, each implementing Provider itself so they compose
freely:

	ProviderSwitch -> CachedProvider -> BudgetedProvider -> ResilientProvider -> <concrete provider>

  - ResilientProvider (resilience.go) wraps calls in a circuit breaker
    (llm/circuitbreaker) and retries retryable failures with backoff
    (llm/retry), using IsRetryable to decide which errors qualify.
  - BudgetedProvider (internal/app) checks a monthly cost kill-switch
    (costguard.Guard) and a short-window token limiter (llm/budget) before
    every call, and records usage against both afterward.
  - CachedProvider (internal/app) serves repeated non-streaming,
    non-tool-calling completions from llm/cache.MultiLevelCache (local LRU,
    optionally backed by Redis).
  - ProviderSwitch (internal/app) is an atomic.Pointer[Provider] indirection
    so an admin can swap the active provider/model at runtime without a
    restart.

# Tokenization and Budgeting

llm/tokenizer counts tokens per model (tiktoken-backed where supported,
estimator fallback otherwise); llm/budget.TokenBudgetManager enforces
per-minute/hour/day caps over those counts and raises Alerts as usage
approaches them.

# Error Handling

The package defines structured error codes:

	const (
	    ErrInvalidRequest      ErrorCode = "INVALID_REQUEST"
	    ErrAuthentication      ErrorCode = "AUTHENTICATION"
	    ErrRateLimit           ErrorCode = "RATE_LIMIT"
	    ErrContextTooLong      ErrorCode = "CONTEXT_TOO_LONG"
	    ErrServiceUnavailable  ErrorCode = "SERVICE_UNAVAILABLE"
	)

Use IsRetryable to check if an error can be retried:

	if llm.IsRetryable(err) {
	    // handled by ResilientProvider's retry loop
	}

See the subpackages for additional functionality:
  - llm/cache: prompt/response caching
  - llm/middleware: request/response middleware chain (see middleware.go)
  - llm/retry: backoff retry strategies
  - llm/budget: token-budget enforcement and alerting
  - llm/circuitbreaker: circuit breaker used by ResilientProvider
  - llm/tokenizer: per-model token counting
  - llm/embedding: embedding provider abstraction (used by catalog search)
  - llm/factory, llm/providers/*: provider construction and implementations
*/
package llm
