package orchestrator

import (
	"context"
	"errors"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/vertexsales/salesbot/catalog"
	"github.com/vertexsales/salesbot/classifier"
	"github.com/vertexsales/salesbot/config"
	"github.com/vertexsales/salesbot/conversation"
	"github.com/vertexsales/salesbot/knowledge"
	"github.com/vertexsales/salesbot/leads"
	"github.com/vertexsales/salesbot/llm"
	"github.com/vertexsales/salesbot/llm/embedding"
	"github.com/vertexsales/salesbot/prompts"
	"github.com/vertexsales/salesbot/store"
	"github.com/vertexsales/salesbot/types"
)

// errNoEmbedder is never actually surfaced: these tests exercise intents
// (GENERAL, CONTACT) that never call the catalog engine's embedder.
var errNoEmbedder = errors.New("embedder not configured for this test")

type fixedReplyProvider struct {
	reply string
}

func (f *fixedReplyProvider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	return &llm.ChatResponse{Choices: []llm.ChatChoice{{Message: types.NewAssistantMessage(f.reply)}}}, nil
}
func (f *fixedReplyProvider) Stream(ctx context.Context, req *llm.ChatRequest) (<-chan llm.StreamChunk, error) {
	return nil, nil
}
func (f *fixedReplyProvider) HealthCheck(ctx context.Context) (*llm.HealthStatus, error) {
	return nil, nil
}
func (f *fixedReplyProvider) Name() string                       { return "fake" }
func (f *fixedReplyProvider) SupportsNativeFunctionCalling() bool { return false }
func (f *fixedReplyProvider) ListModels(ctx context.Context) ([]llm.Model, error) {
	return nil, nil
}

func newTestOrchestrator(t *testing.T, reply string) *Orchestrator {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := store.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	convStore := conversation.NewStore(store.NewConversationRepository(db), store.NewMessageRepository(db))
	provider := &fixedReplyProvider{reply: reply}
	cls := classifier.New(provider, "fake-model", nil)

	cfg := &config.Config{Catalog: config.CatalogConfig{ChromaPersistDir: t.TempDir()}}
	engine := catalog.NewEngine(
		store.NewCatalogVersionRepository(db),
		store.NewProductRepository(db),
		catalog.NewEmbedder(func() (embedding.Provider, error) {
			return nil, errNoEmbedder
		}),
		catalog.NewStoreFactory(cfg, "", nil),
		catalog.SearchConfig{MinScore: 0.45, NameBoost: 0.20, ArticleBoost: 0.30, MaxResults: 10},
		nil,
	)

	knowledgeStore := knowledge.NewStore(store.NewCompanyServiceRepository(db), store.NewCompanyInfoRepository(db))
	leadPipeline := leads.New(store.NewLeadRepository(db), nil)

	promptReg := prompts.NewRegistry(store.NewPromptRepository(db), nil)
	if err := promptReg.Reload(context.Background()); err != nil {
		t.Fatalf("reload prompts: %v", err)
	}

	return New(convStore, cls, engine, knowledgeStore, leadPipeline, promptReg, provider, "fake-model", 0, nil)
}

func TestHandleTurn_GeneralIntent(t *testing.T) {
	o := newTestOrchestrator(t, "Hello! How can I help?")
	reply, err := o.HandleTurn(context.Background(), "chat-1", "hi there")
	if err != nil {
		t.Fatalf("handle turn: %v", err)
	}
	if reply.Intent != types.IntentGeneral {
		t.Fatalf("expected GENERAL intent, got %s", reply.Intent)
	}
	if reply.Text != "Hello! How can I help?" {
		t.Fatalf("unexpected reply text: %s", reply.Text)
	}
}

func TestHandleTurn_ContactIntentCapturesLead(t *testing.T) {
	o := newTestOrchestrator(t, "Thanks, what's your last name?")
	reply, err := o.HandleTurn(context.Background(), "chat-2", "call me, my phone is +79161234567")
	if err != nil {
		t.Fatalf("handle turn: %v", err)
	}
	if reply.Intent != types.IntentContact {
		t.Fatalf("expected CONTACT intent, got %s", reply.Intent)
	}
}

func TestHandleTurn_SecondTurnSeesFirstInHistory(t *testing.T) {
	o := newTestOrchestrator(t, "ok")
	ctx := context.Background()

	if _, err := o.HandleTurn(ctx, "chat-3", "hello"); err != nil {
		t.Fatalf("first turn: %v", err)
	}
	if _, err := o.HandleTurn(ctx, "chat-3", "hello again"); err != nil {
		t.Fatalf("second turn: %v", err)
	}

	conv, err := o.conversations.OpenOrGet(ctx, "chat-3")
	if err != nil {
		t.Fatalf("open conversation: %v", err)
	}
	msgs, err := o.conversations.RecentWindow(ctx, conv.ID)
	if err != nil {
		t.Fatalf("recent window: %v", err)
	}
	if len(msgs) != 4 {
		t.Fatalf("expected 4 messages (2 user + 2 assistant), got %d", len(msgs))
	}
}
