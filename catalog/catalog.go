// Package catalog implements the Vector Catalog Engine (C3): embedding,
// indexing, blue-green rebuild, and boosted search over the product catalog.
// It keeps the teacher's VectorStore interface (rag.VectorStore) and ships
// two backends: an in-process store persisted to disk, and a thin Qdrant
// adapter, selected by whether a Qdrant URL is configured (NewStoreFactory).
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/vertexsales/salesbot/llm/embedding"
	"github.com/vertexsales/salesbot/rag"
	"github.com/vertexsales/salesbot/store"
	"github.com/vertexsales/salesbot/types"
)

// Row is one ingested catalog row, the unit passed to Rebuild.
type Row struct {
	ID          string
	ProductName string
	Category1   string
	Category2   string
	Category3   string
	Article     string
	Description string
	PhotoURL    string
	PageURL     string
}

// embeddedText builds the text embedded for one row: name + description +
// category_1 + category_2 + category_3 + article, blank fields skipped,
// single-space separated.
func embeddedText(r Row) string {
	parts := []string{r.ProductName, r.Description, r.Category1, r.Category2, r.Category3, r.Article}
	out := ""
	for _, p := range parts {
		if p == "" {
			continue
		}
		if out != "" {
			out += " "
		}
		out += p
	}
	return out
}

// liveIndex is one built, queryable vector index plus the product rows it
// was built from, keyed by catalog version.
type liveIndex struct {
	versionName string
	store       rag.VectorStore
	rowsByID    map[string]Row
}

// queryCacheSimilarityThreshold is how close a repeated query's embedding
// must be to a cached one to reuse its result set. High enough that two
// unrelated queries never collide; within SemanticCacheConfig's documented
// 0.9-0.95 band would risk surfacing one query's products for a
// near-but-not-same-intent paraphrase, so this sits above it.
const queryCacheSimilarityThreshold = 0.97

// Engine owns the currently active vector index and performs blue-green
// rebuilds. Readers never block on a rebuild: Search always reads the
// atomically-swapped active pointer.
type Engine struct {
	versions *store.CatalogVersionRepository
	products *store.ProductRepository
	embedder *Embedder
	newStore func(versionName string) (rag.VectorStore, error)
	search   SearchConfig

	active atomic.Pointer[liveIndex]
	logger *zap.Logger

	// queryCache holds ranked Search results keyed by query embedding, so a
	// repeated or near-duplicate query skips the round-trip to the active
	// vector store (a real network hop for the Qdrant backend). Invalidated
	// wholesale on every Rebuild since cached results pin product IDs to the
	// version they were ranked against.
	queryCache *rag.SemanticCache

	buildMu sync.Mutex // serializes concurrent Rebuild calls
}

// NewEngine returns an Engine. newStore constructs a fresh VectorStore for
// one catalog version (local disk-backed or Qdrant, per configuration).
func NewEngine(
	versions *store.CatalogVersionRepository,
	products *store.ProductRepository,
	embedder *Embedder,
	newStore func(versionName string) (rag.VectorStore, error),
	search SearchConfig,
	logger *zap.Logger,
) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	queryCache := rag.NewSemanticCache(
		rag.NewInMemoryVectorStore(logger),
		rag.SemanticCacheConfig{SimilarityThreshold: queryCacheSimilarityThreshold},
		logger,
	)
	return &Engine{
		versions:   versions,
		products:   products,
		embedder:   embedder,
		newStore:   newStore,
		search:     search,
		logger:     logger,
		queryCache: queryCache,
	}
}

// LoadActive restores the in-process active index pointer from the
// persisted active CatalogVersion, used on startup. It reopens that
// version's vector store only; product rows are not read back, so the
// restored index starts with an empty rowsByID.
func (e *Engine) LoadActive(ctx context.Context) error {
	active, err := e.versions.Active(ctx)
	if err != nil {
		e.logger.Info("no active catalog version yet")
		return nil
	}

	vs, err := e.newStore(active.VersionName)
	if err != nil {
		return fmt.Errorf("open vector store for active version %s: %w", active.VersionName, err)
	}

	e.active.Store(&liveIndex{versionName: active.VersionName, store: vs, rowsByID: map[string]Row{}})
	return nil
}

// Rebuild builds a fresh index from rows under a new CatalogVersion, then
// atomically swaps it in as active. Concurrent readers keep serving the
// previous version until the swap completes.
func (e *Engine) Rebuild(ctx context.Context, versionName string, rows []Row) error {
	e.buildMu.Lock()
	defer e.buildMu.Unlock()

	version, err := e.versions.StartBuild(ctx, versionName)
	if err != nil {
		return fmt.Errorf("start catalog build: %w", err)
	}

	vs, err := e.newStore(versionName)
	if err != nil {
		_ = e.versions.MarkFailed(ctx, version.ID)
		return fmt.Errorf("create vector store for %s: %w", versionName, err)
	}

	docs := make([]rag.Document, 0, len(rows))
	products := make([]*types.Product, 0, len(rows))
	rowsByID := make(map[string]Row, len(rows))

	for _, row := range rows {
		emb, err := e.embedder.EmbedDocument(ctx, embeddedText(row))
		if err != nil {
			_ = e.versions.MarkFailed(ctx, version.ID)
			return fmt.Errorf("embed row %s: %w", row.ID, err)
		}

		docs = append(docs, rag.Document{
			ID:        row.ID,
			Content:   embeddedText(row),
			Embedding: emb,
			Metadata:  map[string]interface{}{"product_name": row.ProductName, "article": row.Article},
		})
		products = append(products, &types.Product{
			ProductID:      row.ID,
			CatalogVersion: versionName,
			ProductName:    row.ProductName,
			Category1:      row.Category1,
			Category2:      row.Category2,
			Category3:      row.Category3,
			Article:        row.Article,
			Description:    row.Description,
			PhotoURL:       row.PhotoURL,
			PageURL:        row.PageURL,
		})
		rowsByID[row.ID] = row
	}

	if err := vs.AddDocuments(ctx, docs); err != nil {
		_ = e.versions.MarkFailed(ctx, version.ID)
		return fmt.Errorf("index documents: %w", err)
	}
	if err := e.products.InsertBatch(ctx, products); err != nil {
		_ = e.versions.MarkFailed(ctx, version.ID)
		return fmt.Errorf("persist product rows: %w", err)
	}

	if err := e.versions.Activate(ctx, version.ID, len(rows)); err != nil {
		_ = e.versions.MarkFailed(ctx, version.ID)
		return fmt.Errorf("activate catalog version %s: %w", versionName, err)
	}

	e.active.Store(&liveIndex{versionName: versionName, store: vs, rowsByID: rowsByID})
	if err := e.queryCache.Clear(ctx); err != nil {
		e.logger.Warn("failed to clear query cache after rebuild", zap.Error(err))
	}
	e.logger.Info("catalog rebuilt", zap.String("version", versionName), zap.Int("rows", len(rows)))
	return nil
}

// GC removes superseded/failed catalog versions older than olderThan: their
// product rows and — for local stores — their on-disk directories.
func (e *Engine) GC(ctx context.Context, olderThan time.Duration, removeDir func(versionName string) error) error {
	cutoff := time.Now().Add(-olderThan)
	stale, err := e.versions.Superseded(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("list stale catalog versions: %w", err)
	}

	for _, v := range stale {
		if err := e.products.DeleteByVersion(ctx, v.VersionName); err != nil {
			e.logger.Warn("gc: failed to delete product rows", zap.String("version", v.VersionName), zap.Error(err))
			continue
		}
		if removeDir != nil {
			if err := removeDir(v.VersionName); err != nil {
				e.logger.Warn("gc: failed to remove index directory", zap.String("version", v.VersionName), zap.Error(err))
				continue
			}
		}
		if err := e.versions.Delete(ctx, v.ID); err != nil {
			e.logger.Warn("gc: failed to delete catalog version row", zap.String("version", v.VersionName), zap.Error(err))
			continue
		}
		e.logger.Info("catalog version garbage collected", zap.String("version", v.VersionName))
	}
	return nil
}

// Search runs the boosted search pipeline (search.go) against the
// currently active index.
func (e *Engine) Search(ctx context.Context, query string, k int) ([]Result, error) {
	idx := e.active.Load()
	if idx == nil {
		return nil, fmt.Errorf("catalog: no active index")
	}

	queryEmb, err := e.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	if cached, ok := e.queryCache.Get(ctx, queryEmb); ok {
		var results []Result
		if err := json.Unmarshal([]byte(cached.Content), &results); err == nil {
			return results, nil
		}
	}

	kRaw := k
	if e.search.MaxResults > kRaw {
		kRaw = e.search.MaxResults
	}

	raw, err := idx.store.Search(ctx, queryEmb, kRaw)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	results := rankResults(query, raw, e.search)

	if payload, err := json.Marshal(results); err == nil {
		cacheErr := e.queryCache.Set(ctx, rag.Document{
			ID:        fmt.Sprintf("query:%s:%d", idx.versionName, time.Now().UnixNano()),
			Content:   string(payload),
			Embedding: queryEmb,
		})
		if cacheErr != nil {
			e.logger.Warn("failed to cache search result", zap.Error(cacheErr))
		}
	}

	return results, nil
}

// Embedder wraps an embedding.Provider behind lazy, sync.Once construction:
// a construction failure is reported once and never panics.
type Embedder struct {
	once     sync.Once
	provider embedding.Provider
	build    func() (embedding.Provider, error)
	buildErr error
}

// NewEmbedder returns an Embedder that constructs its underlying provider
// on first use via build.
func NewEmbedder(build func() (embedding.Provider, error)) *Embedder {
	return &Embedder{build: build}
}

func (e *Embedder) ensure() error {
	e.once.Do(func() {
		e.provider, e.buildErr = e.build()
	})
	return e.buildErr
}

// EmbedQuery embeds a single search query.
func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float64, error) {
	if err := e.ensure(); err != nil {
		return nil, fmt.Errorf("embedding model unavailable: %w", err)
	}
	return e.provider.EmbedQuery(ctx, text)
}

// EmbedDocument embeds a single catalog row's text.
func (e *Embedder) EmbedDocument(ctx context.Context, text string) ([]float64, error) {
	if err := e.ensure(); err != nil {
		return nil, fmt.Errorf("embedding model unavailable: %w", err)
	}
	vecs, err := e.provider.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, fmt.Errorf("embedding provider returned no vectors")
	}
	return vecs[0], nil
}
