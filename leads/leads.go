// Package leads implements the Lead Pipeline (C8): create-or-update a Lead
// keyed by chat_id, validate contact fields, persist before handing the row
// to the CRM delivery worker, and fan manager notifications out over
// independent channels.
package leads

import (
	"context"
	"fmt"
	"net/mail"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/vertexsales/salesbot/internal/lock"
	"github.com/vertexsales/salesbot/store"
	"github.com/vertexsales/salesbot/types"
)

// phonePattern matches an E.164-ish phone number: optional leading '+',
// first digit 1-9, up to 14 more digits.
var phonePattern = regexp.MustCompile(`^\+?[1-9]\d{1,14}$`)

// Fields carries the contact details gathered for one lead. Zero values
// mean "not provided in this turn" — CreateOrUpdate only overwrites a field
// that arrives non-empty.
type Fields struct {
	LastName string
	Phone    string
	Email    string
	WhatsApp string
	Company  string
	Question string
}

// Notifier delivers a manager notification for a newly persisted lead. The
// Pipeline calls every configured Notifier independently: one channel's
// failure is logged, never allowed to suppress another.
type Notifier interface {
	NotifyNewLead(ctx context.Context, lead *types.Lead) error
}

// Pipeline is the Lead Pipeline (C8).
type Pipeline struct {
	leads     *store.LeadRepository
	locks     *lock.KeyedMutex
	notifiers []Notifier
	logger    *zap.Logger
}

// New returns a Pipeline backed by repo, notifying via every notifier given.
func New(repo *store.LeadRepository, logger *zap.Logger, notifiers ...Notifier) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{leads: repo, locks: lock.NewKeyedMutex(), notifiers: notifiers, logger: logger}
}

// Validate checks Fields against the capture rules: last name required, at
// least one of phone/email required, phone shape and email syntax checked
// when present. It returns a *types.Error with code ErrValidation on
// failure, framed so the orchestrator can surface it as a clarifying
// question.
func Validate(f Fields) error {
	if strings.TrimSpace(f.LastName) == "" {
		return types.NewError(types.ErrValidation, "last name is required")
	}
	if strings.TrimSpace(f.Phone) == "" && strings.TrimSpace(f.Email) == "" {
		return types.NewError(types.ErrValidation, "a phone number or email address is required")
	}
	if f.Phone != "" && !phonePattern.MatchString(f.Phone) {
		return types.NewError(types.ErrValidation, "phone number is not in a recognized format")
	}
	if f.Email != "" {
		if _, err := mail.ParseAddress(f.Email); err != nil {
			return types.NewError(types.ErrValidation, "email address is not valid").WithCause(err)
		}
	}
	return nil
}

// CreateOrUpdate validates fields and creates a new pending_sync lead for
// chatID, or augments the chat's existing open lead if one is already
// pending sync. Persistence always happens before any CRM call — the only
// path to CRM delivery is a row already committed here.
func (p *Pipeline) CreateOrUpdate(ctx context.Context, chatID string, source types.LeadSource, f Fields) (*types.Lead, error) {
	if err := Validate(f); err != nil {
		return nil, err
	}

	var result *types.Lead
	err := p.locks.WithLockErr(chatID, func() error {
		existing, err := p.leads.FindOpenByChatID(ctx, chatID)
		if err != nil {
			return fmt.Errorf("lookup open lead: %w", err)
		}

		if existing != nil {
			mergeFields(existing, f)
			if err := p.leads.Update(ctx, existing); err != nil {
				return fmt.Errorf("update lead: %w", err)
			}
			result = existing
			return nil
		}

		lead := &types.Lead{
			ChatID:   chatID,
			LastName: f.LastName,
			Phone:    f.Phone,
			Email:    f.Email,
			WhatsApp: f.WhatsApp,
			Company:  f.Company,
			Question: f.Question,
			Source:   source,
		}
		if err := p.leads.Create(ctx, lead); err != nil {
			return fmt.Errorf("create lead: %w", err)
		}
		result = lead
		return nil
	})
	if err != nil {
		return nil, err
	}

	p.notify(ctx, result)
	return result, nil
}

// AutoCapture is the inactivity-triggered entrypoint (C10): attempts to
// create a lead from whatever contact fields are already known for chatID.
// If the known fields do not pass validation, it returns
// ErrInsufficientSignal rather than creating an invalid lead; it schedules
// no re-engagement prompt itself.
func (p *Pipeline) AutoCapture(ctx context.Context, chatID string, f Fields) (*types.Lead, error) {
	has, err := p.leads.HasActiveLead(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("check active lead: %w", err)
	}
	if has {
		return nil, nil
	}

	if err := Validate(f); err != nil {
		return nil, ErrInsufficientSignal
	}

	lead := &types.Lead{
		ChatID:      chatID,
		LastName:    f.LastName,
		Phone:       f.Phone,
		Email:       f.Email,
		WhatsApp:    f.WhatsApp,
		Company:     f.Company,
		Question:    f.Question,
		Source:      types.LeadSourceTelegram,
		AutoCreated: true,
	}

	var result *types.Lead
	err = p.locks.WithLockErr(chatID, func() error {
		if err := p.leads.Create(ctx, lead); err != nil {
			return fmt.Errorf("auto-create lead: %w", err)
		}
		result = lead
		return nil
	})
	if err != nil {
		return nil, err
	}

	p.notify(ctx, result)
	return result, nil
}

func mergeFields(lead *types.Lead, f Fields) {
	if f.LastName != "" {
		lead.LastName = f.LastName
	}
	if f.Phone != "" {
		lead.Phone = f.Phone
	}
	if f.Email != "" {
		lead.Email = f.Email
	}
	if f.WhatsApp != "" {
		lead.WhatsApp = f.WhatsApp
	}
	if f.Company != "" {
		lead.Company = f.Company
	}
	if f.Question != "" {
		lead.Question = f.Question
	}
}

// notify fans the new-lead event out to every configured notifier. Each
// failure is logged and the rest still run — one bad channel never stalls
// the others.
func (p *Pipeline) notify(ctx context.Context, lead *types.Lead) {
	for _, n := range p.notifiers {
		if err := n.NotifyNewLead(ctx, lead); err != nil {
			p.logger.Error("lead notification failed", zap.String("chat_id", lead.ChatID), zap.Error(err))
		}
	}
}
