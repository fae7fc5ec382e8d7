package crm

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/vertexsales/salesbot/internal/lock"
	"github.com/vertexsales/salesbot/store"
	"github.com/vertexsales/salesbot/types"
)

const defaultPollInterval = time.Minute

// maxSyncAttempts matches Lead's invariant: SyncAttempts <= 2. The second
// failed attempt raises a CRITICAL alert and the worker stops retrying.
const maxSyncAttempts = 2

// Alerter delivers an operator-facing CRITICAL alert when a lead exhausts
// its delivery attempts. Implemented by the notification layer.
type Alerter interface {
	AlertCritical(ctx context.Context, subject, body string) error
}

// deliveryClient is the outbound CRM boundary Worker depends on. *Client
// satisfies it; tests substitute a fake.
type deliveryClient interface {
	Search(ctx context.Context, phone, email string) (*Record, error)
	CreateLead(ctx context.Context, payload LeadPayload) (*Record, error)
	AddNote(ctx context.Context, leadID, text string) error
}

// Worker drains leads pending CRM delivery on a fixed interval, applying the
// dedupe-then-create retry policy: search by phone/email before creating,
// back off 30 minutes on transient failure, and raise a CRITICAL alert once
// a lead has exhausted its attempts.
type Worker struct {
	leads        *store.LeadRepository
	client       deliveryClient
	alerter      Alerter
	locks        *lock.KeyedMutex
	pollInterval time.Duration
	retryDelay   time.Duration
	logger       *zap.Logger
}

// NewWorker returns a Worker. alerter may be nil, in which case exhausted
// leads are only logged, never paged.
func NewWorker(leads *store.LeadRepository, client *Client, alerter Alerter, retryDelay time.Duration, logger *zap.Logger) *Worker {
	if retryDelay <= 0 {
		retryDelay = 30 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		leads:        leads,
		client:       client,
		alerter:      alerter,
		locks:        lock.NewKeyedMutex(),
		pollInterval: defaultPollInterval,
		retryDelay:   retryDelay,
		logger:       logger,
	}
}

// Run polls for due leads until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *Worker) sweep(ctx context.Context) {
	due, err := w.leads.DueForDelivery(ctx)
	if err != nil {
		w.logger.Error("crm sweep: list due leads", zap.Error(err))
		return
	}
	for _, lead := range due {
		if !w.readyForRetry(lead) {
			continue
		}
		if err := w.deliver(ctx, lead); err != nil {
			w.logger.Warn("crm delivery attempt failed", zap.Uint("lead_id", lead.ID), zap.Error(err))
		}
	}
}

// readyForRetry enforces the 30-minute backoff between attempts; a lead
// that has never been attempted is always ready.
func (w *Worker) readyForRetry(lead *types.Lead) bool {
	if lead.LastAttemptAt == nil {
		return true
	}
	return time.Since(*lead.LastAttemptAt) >= w.retryDelay
}

// deliver attempts one CRM delivery for lead, serialized per lead id so a
// lead already in flight is never delivered twice concurrently.
func (w *Worker) deliver(ctx context.Context, lead *types.Lead) error {
	key := strconv.FormatUint(uint64(lead.ID), 10)
	return w.locks.WithLockErr(key, func() error {
		return w.deliverLocked(ctx, lead)
	})
}

func (w *Worker) deliverLocked(ctx context.Context, lead *types.Lead) error {
	if err := w.leads.RecordAttempt(ctx, lead.ID); err != nil {
		return fmt.Errorf("record delivery attempt: %w", err)
	}

	existing, err := w.client.Search(ctx, lead.Phone, lead.Email)
	if err == nil && existing != nil {
		note := fmt.Sprintf("New contact from Telegram sales bot (chat %s): %s", lead.ChatID, lead.Question)
		if noteErr := w.client.AddNote(ctx, existing.ID, note); noteErr != nil {
			return w.handleDeliveryFailure(ctx, lead, noteErr)
		}
		return w.markSynced(ctx, lead, existing.ID)
	}
	if err != nil {
		var transient *TransientError
		if errors.As(err, &transient) {
			return w.handleDeliveryFailure(ctx, lead, err)
		}
		// Non-transient search failure (e.g. bad request): fall through and
		// attempt create anyway rather than stall the lead forever.
		w.logger.Warn("crm search failed non-transiently, attempting create", zap.Uint("lead_id", lead.ID), zap.Error(err))
	}

	record, err := w.client.CreateLead(ctx, LeadPayload{
		LastName:                       lead.LastName,
		LeadFirstCommunicationChannel:  string(lead.Source),
		Phone:                          lead.Phone,
		Email:                          lead.Email,
		WhatsApp:                       lead.WhatsApp,
		Company:                        lead.Company,
		Telegram:                       lead.ChatID,
	})
	if err != nil {
		return w.handleDeliveryFailure(ctx, lead, err)
	}
	return w.markSynced(ctx, lead, record.ID)
}

func (w *Worker) markSynced(ctx context.Context, lead *types.Lead, crmID string) error {
	if err := w.leads.MarkSynced(ctx, lead.ID, crmID); err != nil {
		return fmt.Errorf("mark lead %d synced: %w", lead.ID, err)
	}
	w.logger.Info("lead synced to crm", zap.Uint("lead_id", lead.ID), zap.String("crm_id", crmID))
	return nil
}

// handleDeliveryFailure applies the retry/alert policy: leave the lead
// retryable until it has exhausted maxSyncAttempts, then mark it failed and
// alert.
func (w *Worker) handleDeliveryFailure(ctx context.Context, lead *types.Lead, cause error) error {
	attempts := lead.SyncAttempts + 1
	if attempts < maxSyncAttempts {
		w.logger.Warn("crm delivery failed, will retry", zap.Uint("lead_id", lead.ID), zap.Int("attempts", attempts), zap.Error(cause))
		return cause
	}

	if err := w.leads.MarkFailed(ctx, lead.ID); err != nil {
		return fmt.Errorf("mark lead %d failed: %w", lead.ID, err)
	}
	w.logger.Error("lead exhausted crm delivery attempts", zap.Uint("lead_id", lead.ID), zap.Error(cause))

	if w.alerter == nil {
		return cause
	}
	subject := "CRM delivery failed"
	body := fmt.Sprintf("Lead %d (chat %s) failed CRM delivery after %d attempts: %v", lead.ID, lead.ChatID, attempts, cause)
	if alertErr := w.alerter.AlertCritical(ctx, subject, body); alertErr != nil {
		w.logger.Error("failed to send crm delivery alert", zap.Error(alertErr))
	}
	return cause
}
