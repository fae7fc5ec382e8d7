package obslog

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/vertexsales/salesbot/store"
	"github.com/vertexsales/salesbot/types"
)

type fakeAlerter struct {
	calls   int
	subject string
	body    string
	err     error
}

func (f *fakeAlerter) AlertCritical(ctx context.Context, subject, body string) error {
	f.calls++
	f.subject = subject
	f.body = body
	return f.err
}

func newTestLogger(t *testing.T, alerters ...Alerter) (*Logger, *store.SystemLogRepository) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&types.SystemLog{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	repo := store.NewSystemLogRepository(db)
	return New(zap.NewNop(), repo, alerters...), repo
}

// drain blocks until the logger's queue has been fully processed, by
// closing and recreating is not an option mid-test, so tests instead poll
// the durable store briefly — the dispatcher runs on its own goroutine.
func waitForLogCount(t *testing.T, repo *store.SystemLogRepository, want int) []*types.SystemLog {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		logs, err := repo.Recent(context.Background(), 50)
		if err != nil {
			t.Fatalf("recent: %v", err)
		}
		if len(logs) >= want {
			return logs
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d durable log entries", want)
	return nil
}

func TestWarning_PersistsDurableEntry(t *testing.T) {
	logger, repo := newTestLogger(t)
	logger.Warning("catalog", "index rebuild slow", zap.Int("rows", 500))

	logs := waitForLogCount(t, repo, 1)
	if logs[0].Severity != types.LogSeverityWarning {
		t.Fatalf("expected WARNING severity, got %s", logs[0].Severity)
	}
	if logs[0].Component != "catalog" {
		t.Fatalf("unexpected component: %s", logs[0].Component)
	}
}

func TestCritical_FansOutToAllAlerters(t *testing.T) {
	a1 := &fakeAlerter{}
	a2 := &fakeAlerter{err: context.DeadlineExceeded}
	logger, repo := newTestLogger(t, a1, a2)

	logger.Critical("crm", "delivery exhausted")

	waitForLogCount(t, repo, 1)
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && (a1.calls == 0 || a2.calls == 0) {
		time.Sleep(5 * time.Millisecond)
	}
	if a1.calls != 1 {
		t.Fatalf("expected alerter 1 called once, got %d", a1.calls)
	}
	if a2.calls != 1 {
		t.Fatalf("expected alerter 2 called once even though it errors, got %d", a2.calls)
	}
}

func TestDebugInfo_NeverReachDurableStore(t *testing.T) {
	logger, repo := newTestLogger(t)
	logger.Debug("classifier", "keyword pre-pass matched")
	logger.Info("classifier", "classified as PRODUCT")
	logger.Warning("classifier", "forced durable entry to confirm the store stayed empty before this")

	logs := waitForLogCount(t, repo, 1)
	if len(logs) != 1 {
		t.Fatalf("expected only the WARNING entry to be durable, got %d entries", len(logs))
	}
}

func TestClose_DrainsQueueBeforeReturning(t *testing.T) {
	logger, repo := newTestLogger(t)
	for i := 0; i < 10; i++ {
		logger.Error("worker", "delivery attempt failed")
	}
	logger.Close()

	logs, err := repo.Recent(context.Background(), 50)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(logs) != 10 {
		t.Fatalf("expected all 10 entries persisted after Close, got %d", len(logs))
	}
}
