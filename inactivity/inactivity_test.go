package inactivity

import (
	"context"
	"testing"
	"time"

	"github.com/vertexsales/salesbot/leads"
	"github.com/vertexsales/salesbot/types"
)

type fakeScanner struct {
	idle           []*types.Conversation
	history        map[uint][]*types.ConversationMessage
	triggeredCalls int
}

func (f *fakeScanner) FindIdleSince(ctx context.Context, cutoff time.Time) ([]*types.Conversation, error) {
	return f.idle, nil
}

func (f *fakeScanner) MarkTriggered(ctx context.Context, conversationID uint, at time.Time) error {
	f.triggeredCalls++
	return nil
}

func (f *fakeScanner) RecentWindow(ctx context.Context, conversationID uint) ([]*types.ConversationMessage, error) {
	return f.history[conversationID], nil
}

type fakeCapturer struct {
	lastChatID string
	lastFields leads.Fields
	result     *types.Lead
	err        error
	calls      int
}

func (f *fakeCapturer) AutoCapture(ctx context.Context, chatID string, fields leads.Fields) (*types.Lead, error) {
	f.calls++
	f.lastChatID = chatID
	f.lastFields = fields
	return f.result, f.err
}

func TestScan_SkipsConversationsWithoutQualifyingSignal(t *testing.T) {
	scanner := &fakeScanner{
		idle: []*types.Conversation{{ID: 1, ChatID: "chat-1"}},
		history: map[uint][]*types.ConversationMessage{
			1: {{Role: types.MessageRoleAssistant, Intent: types.IntentGeneral}},
		},
	}
	capturer := &fakeCapturer{}
	m := New(scanner, capturer, 30*time.Minute, nil)

	m.scan(context.Background())

	if capturer.calls != 0 {
		t.Fatalf("expected no auto-capture attempt without a qualifying signal, got %d calls", capturer.calls)
	}
	if scanner.triggeredCalls != 1 {
		t.Fatalf("expected the episode marked triggered even when skipped, got %d", scanner.triggeredCalls)
	}
}

func TestScan_QualifyingSignalExtractsContactAndCaptures(t *testing.T) {
	scanner := &fakeScanner{
		idle: []*types.Conversation{{ID: 2, ChatID: "chat-2"}},
		history: map[uint][]*types.ConversationMessage{
			2: {
				{Role: types.MessageRoleAssistant, Intent: types.IntentProduct},
				{Role: types.MessageRoleUser, Content: "my email is jane@example.com, call +79161234567"},
			},
		},
	}
	capturer := &fakeCapturer{result: &types.Lead{ID: 9}}
	m := New(scanner, capturer, 30*time.Minute, nil)

	m.scan(context.Background())

	if capturer.calls != 1 {
		t.Fatalf("expected exactly 1 auto-capture attempt, got %d", capturer.calls)
	}
	if capturer.lastChatID != "chat-2" {
		t.Fatalf("unexpected chat id: %s", capturer.lastChatID)
	}
	if capturer.lastFields.Email != "jane@example.com" || capturer.lastFields.Phone != "+79161234567" {
		t.Fatalf("unexpected extracted fields: %+v", capturer.lastFields)
	}
}

func TestScan_InsufficientSignalStillMarksTriggered(t *testing.T) {
	scanner := &fakeScanner{
		idle: []*types.Conversation{{ID: 3, ChatID: "chat-3"}},
		history: map[uint][]*types.ConversationMessage{
			3: {{Role: types.MessageRoleAssistant, Intent: types.IntentContact}},
		},
	}
	capturer := &fakeCapturer{err: leads.ErrInsufficientSignal}
	m := New(scanner, capturer, 30*time.Minute, nil)

	m.scan(context.Background())

	if scanner.triggeredCalls != 1 {
		t.Fatalf("expected episode marked triggered after insufficient-signal attempt, got %d", scanner.triggeredCalls)
	}
}
