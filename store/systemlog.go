package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/vertexsales/salesbot/types"
)

// SystemLogRepository persists WARNING+ severity log entries for the Hybrid
// Logger's durable sink.
type SystemLogRepository struct {
	db *gorm.DB
}

// NewSystemLogRepository returns a SystemLogRepository bound to db.
func NewSystemLogRepository(db *gorm.DB) *SystemLogRepository {
	return &SystemLogRepository{db: db}
}

// Insert persists one log entry.
func (r *SystemLogRepository) Insert(ctx context.Context, entry *types.SystemLog) error {
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("insert system log: %w", err)
	}
	return nil
}

// Recent returns the most recent n entries, newest first, optionally
// filtered by minimum severity via the severities set.
func (r *SystemLogRepository) Recent(ctx context.Context, n int, severities ...types.LogSeverity) ([]*types.SystemLog, error) {
	q := r.db.WithContext(ctx).Order("id DESC").Limit(n)
	if len(severities) > 0 {
		q = q.Where("severity IN ?", severities)
	}
	var logs []*types.SystemLog
	if err := q.Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("list recent system logs: %w", err)
	}
	return logs, nil
}
