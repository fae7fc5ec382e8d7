package catalog

import (
	"context"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/vertexsales/salesbot/config"
	"github.com/vertexsales/salesbot/rag"
)

// snapshotFile is the gob-encoded file name written under
// CHROMA_PERSIST_DIR/<version_name>/ by a local store. The "Chroma" in the
// env var name is a historical label for "directory holding a persisted
// vector index", not a Chroma client — there is no Go Chroma client in this
// stack, so gob-on-disk is the stdlib-grounded default backend.
const snapshotFile = "index.gob"

// localStore wraps rag.InMemoryVectorStore with gob-encoded persistence to
// a version-scoped directory, so an in-process rebuild survives restarts.
type localStore struct {
	*rag.InMemoryVectorStore
	dir string

	mu   sync.Mutex
	docs []rag.Document // mirror of indexed documents, for snapshotting
}

// newLocalStore opens (or creates) the on-disk index for one catalog
// version under baseDir/<versionName>/.
func newLocalStore(baseDir, versionName string, logger *zap.Logger) (*localStore, error) {
	dir := filepath.Join(baseDir, versionName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create index directory %s: %w", dir, err)
	}

	mem := rag.NewInMemoryVectorStore(logger)
	ls := &localStore{InMemoryVectorStore: mem, dir: dir}

	if err := ls.load(); err != nil {
		return nil, fmt.Errorf("load persisted index %s: %w", dir, err)
	}
	return ls, nil
}

func (s *localStore) path() string {
	return filepath.Join(s.dir, snapshotFile)
}

func (s *localStore) load() error {
	f, err := os.Open(s.path())
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	var docs []rag.Document
	if err := gob.NewDecoder(f).Decode(&docs); err != nil {
		return fmt.Errorf("decode index snapshot: %w", err)
	}
	return s.AddDocuments(context.Background(), docs)
}

// AddDocuments indexes docs in memory, then rewrites the on-disk snapshot.
func (s *localStore) AddDocuments(ctx context.Context, docs []rag.Document) error {
	if err := s.InMemoryVectorStore.AddDocuments(ctx, docs); err != nil {
		return err
	}

	s.mu.Lock()
	s.docs = append(s.docs, docs...)
	snapshot := append([]rag.Document(nil), s.docs...)
	s.mu.Unlock()

	return s.persist(snapshot)
}

func (s *localStore) persist(docs []rag.Document) error {
	f, err := os.Create(s.path())
	if err != nil {
		return fmt.Errorf("create snapshot file: %w", err)
	}
	defer f.Close()

	return gob.NewEncoder(f).Encode(docs)
}

// NewStoreFactory returns a constructor matching Engine's newStore
// signature, selecting a qdrantStore when cfg.Catalog has a configured
// Qdrant endpoint (threaded in via env QDRANT_URL at the caller) or a
// localStore otherwise.
func NewStoreFactory(cfg *config.Config, qdrantURL string, logger *zap.Logger) func(versionName string) (rag.VectorStore, error) {
	if qdrantURL != "" {
		return func(versionName string) (rag.VectorStore, error) {
			return rag.NewQdrantStore(rag.QdrantConfig{
				BaseURL:              qdrantURL,
				Collection:           "catalog_" + versionName,
				AutoCreateCollection: true,
			}, logger), nil
		}
	}

	baseDir := cfg.Catalog.ChromaPersistDir
	if baseDir == "" {
		baseDir = "./data/catalog"
	}
	return func(versionName string) (rag.VectorStore, error) {
		return newLocalStore(baseDir, versionName, logger)
	}
}
