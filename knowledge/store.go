// Package knowledge implements the Service/Knowledge Store (C4): plain
// repository lookups over company services and the company info document,
// with no LLM involvement.
package knowledge

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/vertexsales/salesbot/llm/tokenizer"
	"github.com/vertexsales/salesbot/rag"
	"github.com/vertexsales/salesbot/store"
	"github.com/vertexsales/salesbot/types"
)

// companyInfoTokenBudget caps how much of the uploaded company-info document
// CompanyInfo returns. Prompts built from it go straight onto a chat request
// alongside conversation history, so a document an admin pastes in full
// (policies, FAQs, a multi-page "about us") must not crowd that budget out.
const companyInfoTokenBudget = 1024

// Store answers structured lookups about company services and the company
// info document.
type Store struct {
	services *store.CompanyServiceRepository
	info     *store.CompanyInfoRepository
	chunker  *rag.DocumentChunker
}

// NewStore returns a Store backed by the given repositories.
func NewStore(services *store.CompanyServiceRepository, info *store.CompanyInfoRepository) *Store {
	chunkerLogger := zap.NewNop()
	chunkConfig := rag.DefaultChunkingConfig()
	chunkConfig.ChunkSize = companyInfoTokenBudget
	return &Store{
		services: services,
		info:     info,
		chunker: rag.NewDocumentChunker(
			chunkConfig,
			rag.NewLLMTokenizerAdapter(tokenizer.GetTokenizerOrEstimator(""), chunkerLogger),
			chunkerLogger,
		),
	}
}

// FindService returns active services matching term by keyword, category,
// or title.
func (s *Store) FindService(ctx context.Context, term string) ([]*types.CompanyService, error) {
	matches, err := s.services.SearchByKeyword(ctx, term)
	if err != nil {
		return nil, fmt.Errorf("find service for %q: %w", term, err)
	}
	return matches, nil
}

// AllServices returns every active service offering.
func (s *Store) AllServices(ctx context.Context) ([]*types.CompanyService, error) {
	return s.services.Active(ctx)
}

// CompanyInfo returns the uploaded "about us" document, capped to
// companyInfoTokenBudget tokens at a paragraph/sentence boundary, or an
// empty string if none has been set.
func (s *Store) CompanyInfo(ctx context.Context) (string, error) {
	content, err := s.info.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("load company info: %w", err)
	}
	if strings.TrimSpace(content) == "" {
		return "", nil
	}

	chunks := s.chunker.ChunkDocument(rag.Document{Content: content})
	if len(chunks) == 0 {
		return content, nil
	}
	return chunks[0].Content, nil
}
