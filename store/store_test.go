package store

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/vertexsales/salesbot/types"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

func TestMessageRepository_RecentWindowOrdering(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	convRepo := NewConversationRepository(db)
	msgRepo := NewMessageRepository(db)

	conv, err := convRepo.OpenOrGet(ctx, "chat-1")
	if err != nil {
		t.Fatalf("open conversation: %v", err)
	}

	base := time.Now()
	for i := 0; i < 25; i++ {
		msg := &types.ConversationMessage{
			ConversationID: conv.ID,
			Role:           types.MessageRoleUser,
			Content:        string(rune('a' + i)),
			Timestamp:      base.Add(time.Duration(i) * time.Second),
		}
		if err := msgRepo.Append(ctx, msg); err != nil {
			t.Fatalf("append message %d: %v", i, err)
		}
	}

	window, err := msgRepo.RecentWindow(ctx, conv.ID, 20)
	if err != nil {
		t.Fatalf("recent window: %v", err)
	}
	if len(window) != 20 {
		t.Fatalf("expected 20 messages, got %d", len(window))
	}
	if window[0].Content != string(rune('a'+5)) {
		t.Fatalf("expected oldest-of-window content %q, got %q", string(rune('a'+5)), window[0].Content)
	}
	if window[len(window)-1].Content != string(rune('a'+24)) {
		t.Fatalf("expected newest content %q, got %q", string(rune('a'+24)), window[len(window)-1].Content)
	}
	for i := 1; i < len(window); i++ {
		if !window[i].Timestamp.After(window[i-1].Timestamp) {
			t.Fatalf("window not chronologically ordered at index %d", i)
		}
	}
}

func TestCatalogVersionRepository_BlueGreenSwap(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewCatalogVersionRepository(db)

	v1, err := repo.StartBuild(ctx, "v1")
	if err != nil {
		t.Fatalf("start build v1: %v", err)
	}
	if err := repo.Activate(ctx, v1.ID, 10); err != nil {
		t.Fatalf("activate v1: %v", err)
	}

	active, err := repo.Active(ctx)
	if err != nil || active.VersionName != "v1" {
		t.Fatalf("expected v1 active, got %+v err=%v", active, err)
	}

	v2, err := repo.StartBuild(ctx, "v2")
	if err != nil {
		t.Fatalf("start build v2: %v", err)
	}
	if err := repo.Activate(ctx, v2.ID, 20); err != nil {
		t.Fatalf("activate v2: %v", err)
	}

	active, err = repo.Active(ctx)
	if err != nil || active.VersionName != "v2" {
		t.Fatalf("expected v2 active, got %+v err=%v", active, err)
	}

	var supersededCount int64
	db.Model(&types.CatalogVersion{}).Where("status = ?", types.CatalogSuperseded).Count(&supersededCount)
	if supersededCount != 1 {
		t.Fatalf("expected exactly 1 superseded version, got %d", supersededCount)
	}

	var activeCount int64
	db.Model(&types.CatalogVersion{}).Where("status = ?", types.CatalogActive).Count(&activeCount)
	if activeCount != 1 {
		t.Fatalf("expected exactly 1 active version, got %d", activeCount)
	}
}

func TestLeadRepository_SyncAttemptsCap(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewLeadRepository(db)

	lead := &types.Lead{ChatID: "chat-9", LastName: "Ivanov", Phone: "+71234567890", Source: types.LeadSourceTelegram}
	if err := repo.Create(ctx, lead); err != nil {
		t.Fatalf("create lead: %v", err)
	}

	if err := repo.RecordAttempt(ctx, lead.ID); err != nil {
		t.Fatalf("record attempt 1: %v", err)
	}
	if err := repo.MarkFailed(ctx, lead.ID); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	due, err := repo.DueForDelivery(ctx)
	if err != nil {
		t.Fatalf("due for delivery: %v", err)
	}
	if len(due) != 1 {
		t.Fatalf("expected lead still due after 1 attempt, got %d due", len(due))
	}

	if err := repo.RecordAttempt(ctx, lead.ID); err != nil {
		t.Fatalf("record attempt 2: %v", err)
	}

	due, err = repo.DueForDelivery(ctx)
	if err != nil {
		t.Fatalf("due for delivery after 2 attempts: %v", err)
	}
	if len(due) != 0 {
		t.Fatalf("expected lead no longer due after 2 attempts, got %d due", len(due))
	}
}

func TestPromptRepository_ExactlyOneActivePerName(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewPromptRepository(db)

	if err := repo.SeedIfMissing(ctx, "product_search", "v1 content", "system"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := repo.PutNewVersion(ctx, "product_search", "v2 content", "system"); err != nil {
		t.Fatalf("put new version: %v", err)
	}

	var activeCount int64
	db.Model(&types.Prompt{}).Where("name = ? AND active = ?", "product_search", true).Count(&activeCount)
	if activeCount != 1 {
		t.Fatalf("expected exactly 1 active prompt version, got %d", activeCount)
	}

	active, err := repo.ActiveByName(ctx, "product_search")
	if err != nil {
		t.Fatalf("active by name: %v", err)
	}
	if active.Version != 2 {
		t.Fatalf("expected active version 2, got %d", active.Version)
	}
}
