package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/vertexsales/salesbot/types"
)

// UsageRecordRepository persists the monthly (provider, model, year, month)
// token/cost rollup consumed by the Cost Guard.
type UsageRecordRepository struct {
	db *gorm.DB
}

// NewUsageRecordRepository returns a UsageRecordRepository bound to db.
func NewUsageRecordRepository(db *gorm.DB) *UsageRecordRepository {
	return &UsageRecordRepository{db: db}
}

// AddUsage increments the token/cost rollup for (provider, model, year,
// month), creating the row if it doesn't exist yet.
func (r *UsageRecordRepository) AddUsage(ctx context.Context, provider, model string, year, month int, tokens int64, pricePer1K float64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec types.UsageRecord
		err := tx.Where("provider = ? AND model = ? AND year = ? AND month = ?", provider, model, year, month).
			First(&rec).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			rec = types.UsageRecord{
				Provider:    provider,
				Model:       model,
				Year:        year,
				Month:       month,
				TotalTokens: tokens,
				PricePer1K:  pricePer1K,
				Currency:    "USD",
			}
			return tx.Create(&rec).Error
		case err != nil:
			return fmt.Errorf("lookup usage record: %w", err)
		default:
			return tx.Model(&rec).Updates(types.UsageRecord{
				TotalTokens: rec.TotalTokens + tokens,
				PricePer1K:  pricePer1K,
			}).Error
		}
	})
}

// MonthTotal returns the summed tokens and estimated cost for every
// provider/model in (year, month).
func (r *UsageRecordRepository) MonthTotal(ctx context.Context, year, month int) (tokens int64, costUSD float64, err error) {
	var records []types.UsageRecord
	if err = r.db.WithContext(ctx).Where("year = ? AND month = ?", year, month).Find(&records).Error; err != nil {
		return 0, 0, fmt.Errorf("load month usage: %w", err)
	}
	for _, rec := range records {
		tokens += rec.TotalTokens
		costUSD += float64(rec.TotalTokens) / 1000 * rec.PricePer1K
	}
	return tokens, costUSD, nil
}

// MarkAlertFired records that the alert threshold has already fired for a
// (provider, model, year, month) key, so it is not repeated every call.
func (r *UsageRecordRepository) MarkAlertFired(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Model(&types.UsageRecord{}).Where("id = ?", id).Update("alert_fired", true).Error
}

// MarkLimitExceeded records that the hard monthly limit has been hit.
func (r *UsageRecordRepository) MarkLimitExceeded(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Model(&types.UsageRecord{}).Where("id = ?", id).Update("limit_exceeded", true).Error
}

// ForMonth returns every usage row for (year, month), used by the weekly
// report task.
func (r *UsageRecordRepository) ForMonth(ctx context.Context, year, month int) ([]*types.UsageRecord, error) {
	var records []*types.UsageRecord
	if err := r.db.WithContext(ctx).Where("year = ? AND month = ?", year, month).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list usage for month: %w", err)
	}
	return records, nil
}
