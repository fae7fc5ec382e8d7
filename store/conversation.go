package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/vertexsales/salesbot/types"
)

// ConversationRepository persists types.Conversation rows.
type ConversationRepository struct {
	db *gorm.DB
}

// NewConversationRepository returns a ConversationRepository bound to db.
func NewConversationRepository(db *gorm.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

// OpenOrGet returns the open Conversation for chatID, creating one if none
// is open.
func (r *ConversationRepository) OpenOrGet(ctx context.Context, chatID string) (*types.Conversation, error) {
	var c types.Conversation
	err := r.db.WithContext(ctx).
		Where("chat_id = ? AND status = ?", chatID, types.ConversationOpen).
		Order("id DESC").
		First(&c).Error
	if err == nil {
		return &c, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("lookup open conversation for %s: %w", chatID, err)
	}

	c = types.Conversation{
		ChatID:    chatID,
		Platform:  "telegram",
		Status:    types.ConversationOpen,
		StartedAt: time.Now(),
	}
	if err := r.db.WithContext(ctx).Create(&c).Error; err != nil {
		return nil, fmt.Errorf("open conversation for %s: %w", chatID, err)
	}
	return &c, nil
}

// Touch bumps the conversation's updated_at to now, marking fresh activity
// for the inactivity monitor's FindIdleSince scan. Appending a message does
// not by itself update the parent conversation row, so the turn handler
// calls this once per turn.
func (r *ConversationRepository) Touch(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Model(&types.Conversation{}).
		Where("id = ?", id).
		Update("updated_at", time.Now()).Error
}

// Close marks a conversation closed.
func (r *ConversationRepository) Close(ctx context.Context, id uint) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&types.Conversation{}).
		Where("id = ?", id).
		Updates(map[string]any{"status": types.ConversationClosed, "ended_at": now}).Error
}

// FindIdleSince returns open conversations whose most recent message is
// older than cutoff and whose last_triggered_at watermark (if any) is
// before that most recent message — i.e. not already handled by the
// inactivity monitor for this idle episode.
func (r *ConversationRepository) FindIdleSince(ctx context.Context, cutoff time.Time) ([]*types.Conversation, error) {
	var convs []*types.Conversation
	err := r.db.WithContext(ctx).
		Where("status = ?", types.ConversationOpen).
		Where("updated_at < ?", cutoff).
		Where("last_triggered_at IS NULL OR last_triggered_at < updated_at").
		Find(&convs).Error
	if err != nil {
		return nil, fmt.Errorf("find idle conversations: %w", err)
	}
	return convs, nil
}

// MarkTriggered stamps the inactivity watermark so the same idle episode is
// not handed to the lead pipeline twice.
func (r *ConversationRepository) MarkTriggered(ctx context.Context, id uint, at time.Time) error {
	return r.db.WithContext(ctx).Model(&types.Conversation{}).
		Where("id = ?", id).
		Update("last_triggered_at", at).Error
}

// MessageRepository persists types.ConversationMessage rows.
type MessageRepository struct {
	db *gorm.DB
}

// NewMessageRepository returns a MessageRepository bound to db.
func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Append inserts a new message, strictly append-only.
func (r *MessageRepository) Append(ctx context.Context, msg *types.ConversationMessage) error {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	if err := r.db.WithContext(ctx).Create(msg).Error; err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

// RecentWindow returns the last n messages of a conversation, oldest first.
func (r *MessageRepository) RecentWindow(ctx context.Context, conversationID uint, n int) ([]*types.ConversationMessage, error) {
	var msgs []*types.ConversationMessage
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("id DESC").
		Limit(n).
		Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("load recent window: %w", err)
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// LatestActivity returns the timestamp of the most recent message in a
// conversation, or the zero time if none exists.
func (r *ConversationRepository) LatestActivity(ctx context.Context, conversationID uint) (time.Time, error) {
	var msg types.ConversationMessage
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("timestamp DESC").
		First(&msg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("latest activity: %w", err)
	}
	return msg.Timestamp, nil
}
