package leads

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/vertexsales/salesbot/store"
	"github.com/vertexsales/salesbot/types"
)

func newTestPipeline(t *testing.T, notifiers ...Notifier) (*Pipeline, *store.LeadRepository) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&types.Lead{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	repo := store.NewLeadRepository(db)
	return New(repo, nil, notifiers...), repo
}

func TestValidate_RequiresLastName(t *testing.T) {
	err := Validate(Fields{Phone: "+15551234567"})
	if err == nil {
		t.Fatal("expected error for missing last name")
	}
}

func TestValidate_RequiresPhoneOrEmail(t *testing.T) {
	err := Validate(Fields{LastName: "Smith"})
	if err == nil {
		t.Fatal("expected error for missing phone and email")
	}
}

func TestValidate_RejectsMalformedPhone(t *testing.T) {
	err := Validate(Fields{LastName: "Smith", Phone: "not-a-phone"})
	if err == nil {
		t.Fatal("expected error for malformed phone")
	}
}

func TestValidate_RejectsMalformedEmail(t *testing.T) {
	err := Validate(Fields{LastName: "Smith", Email: "not-an-email"})
	if err == nil {
		t.Fatal("expected error for malformed email")
	}
}

func TestValidate_AcceptsValidEmailOnly(t *testing.T) {
	if err := Validate(Fields{LastName: "Smith", Email: "smith@example.com"}); err != nil {
		t.Fatalf("expected valid fields, got %v", err)
	}
}

type fakeNotifier struct {
	calls int
	err   error
}

func (f *fakeNotifier) NotifyNewLead(ctx context.Context, lead *types.Lead) error {
	f.calls++
	return f.err
}

func TestCreateOrUpdate_CreatesNewLeadPendingSync(t *testing.T) {
	notifier := &fakeNotifier{}
	pipeline, _ := newTestPipeline(t, notifier)

	lead, err := pipeline.CreateOrUpdate(context.Background(), "chat-1", types.LeadSourceTelegram, Fields{
		LastName: "Ivanov", Phone: "+79161234567",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if lead.Status != types.LeadPendingSync {
		t.Fatalf("expected pending_sync, got %s", lead.Status)
	}
	if notifier.calls != 1 {
		t.Fatalf("expected 1 notification, got %d", notifier.calls)
	}
}

func TestCreateOrUpdate_AugmentsExistingOpenLead(t *testing.T) {
	pipeline, repo := newTestPipeline(t)
	ctx := context.Background()

	first, err := pipeline.CreateOrUpdate(ctx, "chat-2", types.LeadSourceTelegram, Fields{
		LastName: "Petrov", Phone: "+79161234567",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	second, err := pipeline.CreateOrUpdate(ctx, "chat-2", types.LeadSourceTelegram, Fields{
		LastName: "Petrov", Email: "petrov@example.com",
	})
	if err != nil {
		t.Fatalf("augment: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected same lead row augmented, got new id %d vs %d", second.ID, first.ID)
	}

	stored, err := repo.FindOpenByChatID(ctx, "chat-2")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if stored.Email != "petrov@example.com" || stored.Phone != "+79161234567" {
		t.Fatalf("expected merged contact fields, got %+v", stored)
	}
}

func TestNotify_OneFailingChannelDoesNotSuppressOther(t *testing.T) {
	failing := &fakeNotifier{err: context.DeadlineExceeded}
	ok := &fakeNotifier{}
	pipeline, _ := newTestPipeline(t, failing, ok)

	_, err := pipeline.CreateOrUpdate(context.Background(), "chat-3", types.LeadSourceTelegram, Fields{
		LastName: "Sidorov", Phone: "+79161234567",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if failing.calls != 1 || ok.calls != 1 {
		t.Fatalf("expected both notifiers invoked, got failing=%d ok=%d", failing.calls, ok.calls)
	}
}
