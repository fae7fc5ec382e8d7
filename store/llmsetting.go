package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/vertexsales/salesbot/types"
)

// LLMSettingRepository persists types.LLMSetting rows and enforces at most
// one active provider at a time.
type LLMSettingRepository struct {
	db *gorm.DB
}

// NewLLMSettingRepository returns an LLMSettingRepository bound to db.
func NewLLMSettingRepository(db *gorm.DB) *LLMSettingRepository {
	return &LLMSettingRepository{db: db}
}

// Active returns the currently active provider setting, or
// gorm.ErrRecordNotFound if none is active yet (falls back to config
// defaults in that case).
func (r *LLMSettingRepository) Active(ctx context.Context) (*types.LLMSetting, error) {
	var s types.LLMSetting
	if err := r.db.WithContext(ctx).Where("is_active = ?", true).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// Activate flips providerID active and every other row inactive, in one
// transaction.
func (r *LLMSettingRepository) Activate(ctx context.Context, providerID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&types.LLMSetting{}).
			Where("is_active = ?", true).
			Update("is_active", false).Error; err != nil {
			return fmt.Errorf("deactivate current provider: %w", err)
		}

		res := tx.Model(&types.LLMSetting{}).
			Where("provider_id = ?", providerID).
			Update("is_active", true)
		if res.Error != nil {
			return fmt.Errorf("activate provider %s: %w", providerID, res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("activate provider %s: %w", providerID, gorm.ErrRecordNotFound)
		}
		return nil
	})
}

// Upsert inserts or updates the config blob for a provider without
// changing its active state.
func (r *LLMSettingRepository) Upsert(ctx context.Context, providerID, config string) error {
	var existing types.LLMSetting
	err := r.db.WithContext(ctx).Where("provider_id = ?", providerID).First(&existing).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return r.db.WithContext(ctx).Create(&types.LLMSetting{ProviderID: providerID, Config: config}).Error
	case err != nil:
		return fmt.Errorf("lookup provider setting %s: %w", providerID, err)
	default:
		existing.Config = config
		return r.db.WithContext(ctx).Save(&existing).Error
	}
}
