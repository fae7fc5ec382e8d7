// Package conversation implements the Conversation Store (C5): durable
// append-only message history per chat_id, serialized per conversation via
// a keyed mutex so concurrent turns for the same user never interleave.
package conversation

import (
	"context"
	"fmt"
	"time"

	"github.com/vertexsales/salesbot/internal/lock"
	"github.com/vertexsales/salesbot/store"
	"github.com/vertexsales/salesbot/types"
)

// windowSize is the number of most recent messages handed to the
// classifier/orchestrator as conversational context.
const windowSize = 20

// Store serializes reads/writes to one user's conversation history.
type Store struct {
	conversations *store.ConversationRepository
	messages      *store.MessageRepository
	locks         *lock.KeyedMutex
}

// NewStore returns a Store backed by the given repositories.
func NewStore(conversations *store.ConversationRepository, messages *store.MessageRepository) *Store {
	return &Store{
		conversations: conversations,
		messages:      messages,
		locks:         lock.NewKeyedMutex(),
	}
}

// OpenOrGet returns the open conversation for chatID, creating one if none
// is open, while holding chatID's lock.
func (s *Store) OpenOrGet(ctx context.Context, chatID string) (*types.Conversation, error) {
	s.locks.Lock(chatID)
	defer s.locks.Unlock(chatID)
	return s.conversations.OpenOrGet(ctx, chatID)
}

// Append records one message in the conversation, while holding chatID's
// lock so the turn that produced it cannot be interleaved with another turn
// for the same user.
func (s *Store) Append(ctx context.Context, chatID string, conversationID uint, role types.MessageRole, content string, intent types.Intent) error {
	s.locks.Lock(chatID)
	defer s.locks.Unlock(chatID)

	msg := &types.ConversationMessage{
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		Intent:         intent,
		Timestamp:      time.Now(),
	}
	if err := s.messages.Append(ctx, msg); err != nil {
		return fmt.Errorf("append message for %s: %w", chatID, err)
	}
	return nil
}

// RecentWindow returns the last 20 messages of a conversation, oldest first.
func (s *Store) RecentWindow(ctx context.Context, conversationID uint) ([]*types.ConversationMessage, error) {
	return s.messages.RecentWindow(ctx, conversationID, windowSize)
}

// LatestActivity returns the timestamp of the most recent message in a
// conversation.
func (s *Store) LatestActivity(ctx context.Context, conversationID uint) (time.Time, error) {
	return s.conversations.LatestActivity(ctx, conversationID)
}

// Touch marks fresh activity on a conversation, resetting its idle clock
// for the inactivity monitor.
func (s *Store) Touch(ctx context.Context, conversationID uint) error {
	return s.conversations.Touch(ctx, conversationID)
}

// FindIdleSince returns open conversations that have been idle since
// before cutoff and have not already been handed to the lead pipeline for
// this idle episode. Used by the inactivity monitor's periodic scan.
func (s *Store) FindIdleSince(ctx context.Context, cutoff time.Time) ([]*types.Conversation, error) {
	return s.conversations.FindIdleSince(ctx, cutoff)
}

// MarkTriggered stamps the inactivity watermark for a conversation so the
// same idle episode is not handed to the lead pipeline twice.
func (s *Store) MarkTriggered(ctx context.Context, conversationID uint, at time.Time) error {
	return s.conversations.MarkTriggered(ctx, conversationID, at)
}

// Lock runs fn while holding chatID's lock, used by the orchestrator to
// serialize an entire turn (classification + retrieval + reply), not just
// the individual store calls within it.
func (s *Store) Lock(chatID string, fn func() error) error {
	var err error
	s.locks.WithLock(chatID, func() {
		err = fn()
	})
	return err
}
