package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/vertexsales/salesbot/types"
)

// LeadRepository persists types.Lead rows.
type LeadRepository struct {
	db *gorm.DB
}

// NewLeadRepository returns a LeadRepository bound to db.
func NewLeadRepository(db *gorm.DB) *LeadRepository {
	return &LeadRepository{db: db}
}

// FindOpenByChatID returns a chat's lead that is not yet synced (pending or
// failed), or nil if the chat has no in-flight lead.
func (r *LeadRepository) FindOpenByChatID(ctx context.Context, chatID string) (*types.Lead, error) {
	var lead types.Lead
	err := r.db.WithContext(ctx).
		Where("chat_id = ? AND status IN ?", chatID, []types.LeadStatus{types.LeadPendingSync, types.LeadFailed}).
		Order("id DESC").
		First(&lead).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find open lead for %s: %w", chatID, err)
	}
	return &lead, nil
}

// HasActiveLead reports whether a chat already has a lead that is pending
// sync or already synced, the guard used by the inactivity monitor to avoid
// duplicate auto-capture.
func (r *LeadRepository) HasActiveLead(ctx context.Context, chatID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&types.Lead{}).
		Where("chat_id = ? AND status IN ?", chatID, []types.LeadStatus{types.LeadPendingSync, types.LeadSynced}).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("check active lead for %s: %w", chatID, err)
	}
	return count > 0, nil
}

// Create inserts a new lead in pending_sync state.
func (r *LeadRepository) Create(ctx context.Context, lead *types.Lead) error {
	lead.Status = types.LeadPendingSync
	if err := r.db.WithContext(ctx).Create(lead).Error; err != nil {
		return fmt.Errorf("create lead for %s: %w", lead.ChatID, err)
	}
	return nil
}

// Update persists field changes to an existing lead (e.g. a returning user
// supplying a missing phone number).
func (r *LeadRepository) Update(ctx context.Context, lead *types.Lead) error {
	if err := r.db.WithContext(ctx).Save(lead).Error; err != nil {
		return fmt.Errorf("update lead %d: %w", lead.ID, err)
	}
	return nil
}

// DueForDelivery returns pending_sync/failed leads with sync_attempts < 2,
// the worker's polling query.
func (r *LeadRepository) DueForDelivery(ctx context.Context) ([]*types.Lead, error) {
	var leads []*types.Lead
	err := r.db.WithContext(ctx).
		Where("status IN ? AND sync_attempts < ?", []types.LeadStatus{types.LeadPendingSync, types.LeadFailed}, 2).
		Find(&leads).Error
	if err != nil {
		return nil, fmt.Errorf("list leads due for delivery: %w", err)
	}
	return leads, nil
}

// RecordAttempt bumps sync_attempts and last_attempt_at before a delivery
// attempt is made, so a crash mid-attempt cannot retry unboundedly.
func (r *LeadRepository) RecordAttempt(ctx context.Context, id uint) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&types.Lead{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"sync_attempts":   gorm.Expr("sync_attempts + 1"),
			"last_attempt_at": now,
		}).Error
}

// MarkSynced records a successful CRM delivery.
func (r *LeadRepository) MarkSynced(ctx context.Context, id uint, crmID string) error {
	return r.db.WithContext(ctx).Model(&types.Lead{}).
		Where("id = ?", id).
		Updates(map[string]any{"status": types.LeadSynced, "crm_id": crmID}).Error
}

// MarkFailed records a failed delivery attempt.
func (r *LeadRepository) MarkFailed(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Model(&types.Lead{}).
		Where("id = ?", id).
		Update("status", types.LeadFailed).Error
}
