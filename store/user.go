package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/vertexsales/salesbot/types"
)

// UserRepository persists types.User rows.
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository returns a UserRepository bound to db.
func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// GetOrCreate returns the User for chatID, creating it with firstName/lastName
// if it does not yet exist.
func (r *UserRepository) GetOrCreate(ctx context.Context, chatID, firstName, lastName string) (*types.User, error) {
	var u types.User
	err := r.db.WithContext(ctx).Where("chat_id = ?", chatID).First(&u).Error
	if err == nil {
		return &u, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("lookup user %s: %w", chatID, err)
	}

	u = types.User{ChatID: chatID, FirstName: firstName, LastName: lastName}
	if err := r.db.WithContext(ctx).Create(&u).Error; err != nil {
		return nil, fmt.Errorf("create user %s: %w", chatID, err)
	}
	return &u, nil
}

// FindByChatID returns the User for chatID, or gorm.ErrRecordNotFound.
func (r *UserRepository) FindByChatID(ctx context.Context, chatID string) (*types.User, error) {
	var u types.User
	if err := r.db.WithContext(ctx).Where("chat_id = ?", chatID).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// UpdateContact sets the phone/email captured for a user, e.g. from a
// qualified lead.
func (r *UserRepository) UpdateContact(ctx context.Context, chatID, phone, email string) error {
	updates := map[string]any{}
	if phone != "" {
		updates["phone"] = phone
	}
	if email != "" {
		updates["email"] = email
	}
	if len(updates) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&types.User{}).
		Where("chat_id = ?", chatID).
		Updates(updates).Error
}
