// Package inactivity implements the Inactivity Monitor (C10): a periodic
// scan over open conversations that hands idle-but-qualifying users to the
// lead pipeline for auto-capture.
package inactivity

import (
	"context"
	"regexp"
	"time"

	"go.uber.org/zap"

	"github.com/vertexsales/salesbot/leads"
	"github.com/vertexsales/salesbot/types"
)

const defaultScanInterval = 10 * time.Minute

var (
	phonePattern = regexp.MustCompile(`\+?[1-9]\d{1,14}`)
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
)

// ConversationScanner is the subset of conversation.Store the monitor needs.
type ConversationScanner interface {
	FindIdleSince(ctx context.Context, cutoff time.Time) ([]*types.Conversation, error)
	MarkTriggered(ctx context.Context, conversationID uint, at time.Time) error
	RecentWindow(ctx context.Context, conversationID uint) ([]*types.ConversationMessage, error)
}

// LeadCapturer is the subset of leads.Pipeline the monitor needs.
type LeadCapturer interface {
	AutoCapture(ctx context.Context, chatID string, f leads.Fields) (*types.Lead, error)
}

// Monitor periodically scans for idle conversations carrying qualifying
// signals (a recent PRODUCT or CONTACT intent) and hands them to the lead
// pipeline.
type Monitor struct {
	conversations ConversationScanner
	leadPipeline  LeadCapturer
	threshold     time.Duration
	scanInterval  time.Duration
	logger        *zap.Logger
}

// New returns a Monitor. threshold is how long a conversation must be idle
// before it qualifies; scanInterval defaults to 10 minutes per the spec.
func New(conversations ConversationScanner, leadPipeline LeadCapturer, threshold time.Duration, logger *zap.Logger) *Monitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		conversations: conversations,
		leadPipeline:  leadPipeline,
		threshold:     threshold,
		scanInterval:  defaultScanInterval,
		logger:        logger,
	}
}

// Run scans every scanInterval until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.scanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.scan(ctx)
		}
	}
}

func (m *Monitor) scan(ctx context.Context) {
	cutoff := time.Now().Add(-m.threshold)
	idle, err := m.conversations.FindIdleSince(ctx, cutoff)
	if err != nil {
		m.logger.Error("inactivity scan: list idle conversations", zap.Error(err))
		return
	}
	for _, conv := range idle {
		m.handle(ctx, conv)
	}
}

func (m *Monitor) handle(ctx context.Context, conv *types.Conversation) {
	now := time.Now()
	// Mark the episode handled whatever the outcome: an auto-capture attempt that fails
	// for lack of signal must not be retried every scan for the same idle
	// window, only once the user is active again.
	defer func() {
		if err := m.conversations.MarkTriggered(ctx, conv.ID, now); err != nil {
			m.logger.Error("inactivity scan: mark triggered", zap.Uint("conversation_id", conv.ID), zap.Error(err))
		}
	}()

	history, err := m.conversations.RecentWindow(ctx, conv.ID)
	if err != nil {
		m.logger.Error("inactivity scan: load history", zap.Uint("conversation_id", conv.ID), zap.Error(err))
		return
	}
	if !hasQualifyingSignal(history) {
		return
	}

	fields := extractFields(history)
	lead, err := m.leadPipeline.AutoCapture(ctx, conv.ChatID, fields)
	if err != nil {
		if err == leads.ErrInsufficientSignal {
			m.logger.Info("inactivity scan: insufficient signal for auto-capture, no lead created",
				zap.String("chat_id", conv.ChatID))
			return
		}
		m.logger.Error("inactivity scan: auto-capture failed", zap.String("chat_id", conv.ChatID), zap.Error(err))
		return
	}
	if lead != nil {
		m.logger.Info("inactivity scan: auto-captured lead", zap.String("chat_id", conv.ChatID), zap.Uint("lead_id", lead.ID))
	}
}

// hasQualifyingSignal reports whether the conversation's recent assistant
// turns were answering a PRODUCT or CONTACT intent — the spec's bar for
// handing an idle user to the lead pipeline at all.
func hasQualifyingSignal(history []*types.ConversationMessage) bool {
	for _, msg := range history {
		if msg.Intent == types.IntentProduct || msg.Intent == types.IntentContact {
			return true
		}
	}
	return false
}

// extractFields pulls whatever contact signal is present in the user's
// recent turns. LastName is deliberately left blank: free text rarely
// states it unambiguously, and AutoCapture treats that as insufficient
// signal rather than guessing.
func extractFields(history []*types.ConversationMessage) leads.Fields {
	var f leads.Fields
	for _, msg := range history {
		if msg.Role != types.MessageRoleUser {
			continue
		}
		if f.Phone == "" {
			if match := phonePattern.FindString(msg.Content); match != "" {
				f.Phone = match
			}
		}
		if f.Email == "" {
			if match := emailPattern.FindString(msg.Content); match != "" {
				f.Email = match
			}
		}
		if f.Question == "" {
			f.Question = msg.Content
		}
	}
	return f
}
