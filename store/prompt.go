package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/vertexsales/salesbot/types"
)

// PromptRepository persists types.Prompt rows and enforces exactly one
// active version per name.
type PromptRepository struct {
	db *gorm.DB
}

// NewPromptRepository returns a PromptRepository bound to db.
func NewPromptRepository(db *gorm.DB) *PromptRepository {
	return &PromptRepository{db: db}
}

// ActiveByName returns the active prompt for name, or gorm.ErrRecordNotFound.
func (r *PromptRepository) ActiveByName(ctx context.Context, name string) (*types.Prompt, error) {
	var p types.Prompt
	if err := r.db.WithContext(ctx).Where("name = ? AND active = ?", name, true).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// All returns every active prompt, used to populate the registry cache.
func (r *PromptRepository) All(ctx context.Context) ([]*types.Prompt, error) {
	var prompts []*types.Prompt
	if err := r.db.WithContext(ctx).Where("active = ?", true).Find(&prompts).Error; err != nil {
		return nil, fmt.Errorf("list active prompts: %w", err)
	}
	return prompts, nil
}

// SeedIfMissing inserts a prompt as version 1 active if no row exists yet
// for that name, used to seed defaults on first boot.
func (r *PromptRepository) SeedIfMissing(ctx context.Context, name, content, role string) error {
	var count int64
	if err := r.db.WithContext(ctx).Model(&types.Prompt{}).Where("name = ?", name).Count(&count).Error; err != nil {
		return fmt.Errorf("check existing prompt %s: %w", name, err)
	}
	if count > 0 {
		return nil
	}
	p := types.Prompt{Name: name, Content: content, Version: 1, Active: true, Role: role}
	if err := r.db.WithContext(ctx).Create(&p).Error; err != nil {
		return fmt.Errorf("seed prompt %s: %w", name, err)
	}
	return nil
}

// PutNewVersion inserts a new active version of a prompt and deactivates
// the previous one in the same transaction, keeping the
// exactly-one-active-per-name invariant intact across the swap.
func (r *PromptRepository) PutNewVersion(ctx context.Context, name, content, role string) (*types.Prompt, error) {
	var created types.Prompt
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var prev types.Prompt
		nextVersion := 1
		err := tx.Where("name = ?", name).Order("version DESC").First(&prev).Error
		switch {
		case err == nil:
			nextVersion = prev.Version + 1
			if err := tx.Model(&types.Prompt{}).
				Where("name = ? AND active = ?", name, true).
				Update("active", false).Error; err != nil {
				return fmt.Errorf("deactivate previous prompt version: %w", err)
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			// first version for this name
		default:
			return fmt.Errorf("lookup previous prompt version: %w", err)
		}

		created = types.Prompt{Name: name, Content: content, Version: nextVersion, Active: true, Role: role}
		if err := tx.Create(&created).Error; err != nil {
			return fmt.Errorf("insert prompt version: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}
