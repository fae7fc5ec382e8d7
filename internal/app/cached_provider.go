package app

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/vertexsales/salesbot/llm"
	"github.com/vertexsales/salesbot/llm/cache"
)

// CachedProvider wraps an llm.Provider with the teacher's multi-level prompt
// cache (llm/cache): plain, non-streaming, tool-free completions are looked
// up by a hash of the request before the inner provider is ever called, and
// the response is cached after a successful call. Streaming requests always
// bypass the cache — a cached answer can't be replayed chunk by chunk.
type CachedProvider struct {
	inner  llm.Provider
	cache  *cache.MultiLevelCache
	logger *zap.Logger
}

// NewCachedProvider returns a CachedProvider. cache is never nil: callers
// that want caching disabled should not construct one at all.
func NewCachedProvider(inner llm.Provider, c *cache.MultiLevelCache, logger *zap.Logger) *CachedProvider {
	return &CachedProvider{inner: inner, cache: c, logger: logger}
}

func (p *CachedProvider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	if !p.cache.IsCacheable(req) {
		return p.inner.Completion(ctx, req)
	}

	key := p.cache.GenerateKey(req)
	if entry, err := p.cache.Get(ctx, key); err == nil {
		if resp, ok := decodeCachedResponse(entry.Response); ok {
			p.logger.Debug("llm prompt cache hit", zap.String("key", key))
			return resp, nil
		}
	}

	resp, err := p.inner.Completion(ctx, req)
	if err != nil {
		return nil, err
	}

	if setErr := p.cache.Set(ctx, key, &cache.CacheEntry{
		Response:     resp,
		ModelVersion: resp.Model,
	}); setErr != nil {
		p.logger.Warn("llm prompt cache set failed", zap.String("key", key), zap.Error(setErr))
	}
	return resp, nil
}

// decodeCachedResponse normalizes a cache hit back into *llm.ChatResponse. A
// local LRU hit returns the original *llm.ChatResponse value; a Redis hit
// comes back from JSON as map[string]any, so it is re-marshaled through the
// real type.
func decodeCachedResponse(raw any) (*llm.ChatResponse, bool) {
	if resp, ok := raw.(*llm.ChatResponse); ok {
		return resp, true
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return nil, false
	}
	var resp llm.ChatResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, false
	}
	return &resp, true
}

func (p *CachedProvider) Stream(ctx context.Context, req *llm.ChatRequest) (<-chan llm.StreamChunk, error) {
	return p.inner.Stream(ctx, req)
}

func (p *CachedProvider) HealthCheck(ctx context.Context) (*llm.HealthStatus, error) {
	return p.inner.HealthCheck(ctx)
}

func (p *CachedProvider) Name() string { return p.inner.Name() }

func (p *CachedProvider) SupportsNativeFunctionCalling() bool {
	return p.inner.SupportsNativeFunctionCalling()
}

func (p *CachedProvider) ListModels(ctx context.Context) ([]llm.Model, error) {
	return p.inner.ListModels(ctx)
}
