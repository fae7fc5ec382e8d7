// Package orchestrator implements the Search Orchestrator (C7): the
// central state machine executed once per inbound user turn, dispatching
// by intent to the catalog, knowledge store, or lead pipeline, and
// composing the final reply through the LLM gateway.
package orchestrator

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/vertexsales/salesbot/catalog"
	"github.com/vertexsales/salesbot/classifier"
	"github.com/vertexsales/salesbot/conversation"
	"github.com/vertexsales/salesbot/knowledge"
	"github.com/vertexsales/salesbot/leads"
	"github.com/vertexsales/salesbot/llm"
	"github.com/vertexsales/salesbot/prompts"
	"github.com/vertexsales/salesbot/types"
)

// defaultTurnDeadline is the soft per-turn timeout; exceeding it returns the
// fallback reply rather than propagating a timeout error to the transport.
const defaultTurnDeadline = 10 * time.Second

const fallbackReply = "Sorry, that took longer than expected. Could you try again?"

// SuggestedAction is a post-reply hint emitted to the transport alongside
// the reply text (e.g. "offer manager contact").
type SuggestedAction string

const (
	ActionOfferManagerContact SuggestedAction = "offer_manager_contact"
)

// Reply is the orchestrator's output for one turn.
type Reply struct {
	Text             string
	Intent           types.Intent
	SuggestedActions []SuggestedAction
}

// ActivityNotifier is told about fresh activity on a conversation so the
// inactivity monitor's idle clock resets.
type ActivityNotifier interface {
	Touch(ctx context.Context, conversationID uint) error
}

// Orchestrator wires the conversation store, classifier, retrieval
// components, lead pipeline, and LLM gateway into the 8-step turn pipeline.
type Orchestrator struct {
	conversations *conversation.Store
	classifier    *classifier.Classifier
	catalogEngine *catalog.Engine
	knowledge     *knowledge.Store
	leadPipeline  *leads.Pipeline
	promptReg     *prompts.Registry
	provider      llm.Provider
	model         string
	turnDeadline  time.Duration
	logger        *zap.Logger
}

// New returns an Orchestrator. turnDeadline of 0 uses the default 10s soft
// deadline.
func New(
	conversations *conversation.Store,
	classify *classifier.Classifier,
	catalogEngine *catalog.Engine,
	knowledgeStore *knowledge.Store,
	leadPipeline *leads.Pipeline,
	promptReg *prompts.Registry,
	provider llm.Provider,
	model string,
	turnDeadline time.Duration,
	logger *zap.Logger,
) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if turnDeadline <= 0 {
		turnDeadline = defaultTurnDeadline
	}
	return &Orchestrator{
		conversations: conversations,
		classifier:    classify,
		catalogEngine: catalogEngine,
		knowledge:     knowledgeStore,
		leadPipeline:  leadPipeline,
		promptReg:     promptReg,
		provider:      provider,
		model:         model,
		turnDeadline:  turnDeadline,
		logger:        logger,
	}
}

// HandleTurn runs the 8-step pipeline for one inbound message from chatID,
// holding chatID's conversation lock for the whole turn so a concurrent
// second message is processed only after this one finishes.
func (o *Orchestrator) HandleTurn(ctx context.Context, chatID, text string) (*Reply, error) {
	var reply *Reply
	err := o.conversations.Lock(chatID, func() error {
		r, err := o.handleTurnLocked(ctx, chatID, text)
		reply = r
		return err
	})
	return reply, err
}

func (o *Orchestrator) handleTurnLocked(ctx context.Context, chatID, text string) (*Reply, error) {
	turnCtx, cancel := context.WithTimeout(ctx, o.turnDeadline)
	defer cancel()

	conv, err := o.conversations.OpenOrGet(turnCtx, chatID)
	if err != nil {
		return nil, fmt.Errorf("open conversation: %w", err)
	}

	// Step 1: append the user turn.
	if err := o.conversations.Append(turnCtx, chatID, conv.ID, types.MessageRoleUser, text, ""); err != nil {
		return nil, fmt.Errorf("append user turn: %w", err)
	}

	// Step 2: classify. A classifier timeout degrades to GENERAL rather
	// than failing the turn.
	intent, err := o.classifier.Classify(turnCtx, text)
	if err != nil {
		o.logger.Warn("classifier failed, defaulting to general", zap.String("chat_id", chatID), zap.Error(err))
		intent = types.IntentGeneral
	}

	history, err := o.conversations.RecentWindow(turnCtx, conv.ID)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	reply, err := o.composeReply(turnCtx, chatID, intent, text, history)
	if turnCtx.Err() != nil {
		o.logger.Warn("turn exceeded soft deadline, using fallback reply", zap.String("chat_id", chatID))
		reply = &Reply{Text: fallbackReply, Intent: intent}
	} else if err != nil {
		return nil, err
	}

	// Step 6: append the assistant turn, annotated with intent.
	if err := o.conversations.Append(ctx, chatID, conv.ID, types.MessageRoleAssistant, reply.Text, intent); err != nil {
		return nil, fmt.Errorf("append assistant turn: %w", err)
	}

	// Step 8: notify the inactivity monitor of new activity.
	if err := o.conversations.Touch(ctx, conv.ID); err != nil {
		o.logger.Warn("failed to touch conversation activity", zap.String("chat_id", chatID), zap.Error(err))
	}

	return reply, nil
}

// composeReply implements steps 3-5 and 7: dispatch by intent, build
// grounded context, call the LLM with the matching prompt and bounded
// history, and compute suggested post-reply actions.
func (o *Orchestrator) composeReply(ctx context.Context, chatID string, intent types.Intent, text string, history []*types.ConversationMessage) (*Reply, error) {
	switch intent {
	case types.IntentProduct:
		return o.handleProduct(ctx, text, history)
	case types.IntentService:
		return o.handleService(ctx, text, history)
	case types.IntentCompanyInfo:
		return o.handleCompanyInfo(ctx, history)
	case types.IntentContact:
		return o.handleContact(ctx, chatID, text, history)
	default:
		return o.handleGeneral(ctx, text, history)
	}
}

func (o *Orchestrator) handleProduct(ctx context.Context, text string, history []*types.ConversationMessage) (*Reply, error) {
	results, err := o.catalogEngine.Search(ctx, text, 10)
	if err != nil {
		o.logger.Warn("catalog search failed", zap.Error(err))
		results = nil
	}

	var contextBlock strings.Builder
	if len(results) == 0 {
		contextBlock.WriteString("No catalog matches were found for this query.")
	} else {
		for _, r := range results {
			fmt.Fprintf(&contextBlock, "- %s (article %s)\n", r.ProductName, r.Article)
		}
	}

	reply, err := o.completeWithPrompt(ctx, prompts.ProductSearch, text, contextBlock.String(), history)
	if err != nil {
		return nil, err
	}

	actions := []SuggestedAction{}
	if len(results) == 0 {
		actions = append(actions, ActionOfferManagerContact)
	}
	return &Reply{Text: reply, Intent: types.IntentProduct, SuggestedActions: actions}, nil
}

func (o *Orchestrator) handleService(ctx context.Context, text string, history []*types.ConversationMessage) (*Reply, error) {
	services, err := o.knowledge.FindService(ctx, text)
	if err != nil {
		o.logger.Warn("service lookup failed", zap.Error(err))
	}

	var contextBlock strings.Builder
	if len(services) == 0 {
		contextBlock.WriteString("No matching service was found.")
	} else {
		for _, s := range services {
			fmt.Fprintf(&contextBlock, "- %s: %s\n", s.Title, s.Description)
		}
	}

	reply, err := o.completeWithPrompt(ctx, prompts.ServiceAnswer, text, contextBlock.String(), history)
	if err != nil {
		return nil, err
	}
	return &Reply{Text: reply, Intent: types.IntentService}, nil
}

func (o *Orchestrator) handleCompanyInfo(ctx context.Context, history []*types.ConversationMessage) (*Reply, error) {
	info, err := o.knowledge.CompanyInfo(ctx)
	if err != nil {
		o.logger.Warn("company info lookup failed", zap.Error(err))
	}
	if info == "" {
		info = "No company information document has been uploaded yet."
	}

	reply, err := o.completeWithPrompt(ctx, prompts.CompanyInfo, "Tell me about the company.", info, history)
	if err != nil {
		return nil, err
	}
	return &Reply{Text: reply, Intent: types.IntentCompanyInfo}, nil
}

var (
	emailPattern = regexp.MustCompile(`[\w.+-]+@[\w-]+\.[\w.-]+`)
	phonePattern = regexp.MustCompile(`\+?[1-9]\d{7,14}`)
)

func (o *Orchestrator) handleContact(ctx context.Context, chatID, text string, history []*types.ConversationMessage) (*Reply, error) {
	fields := leads.Fields{
		Email:    emailPattern.FindString(text),
		Phone:    phonePattern.FindString(text),
		Question: text,
	}
	// Last name extraction from free text is unreliable; the lead
	// qualification prompt asks for it explicitly when missing.

	_, err := o.leadPipeline.CreateOrUpdate(ctx, chatID, types.LeadSourceTelegram, fields)
	var contextBlock string
	if err != nil {
		if code := types.GetErrorCode(err); code == types.ErrValidation {
			contextBlock = "The customer still needs to provide: " + err.Error()
		} else {
			return nil, fmt.Errorf("capture lead: %w", err)
		}
	} else {
		contextBlock = "Contact details captured; a manager will follow up."
	}

	reply, err := o.completeWithPrompt(ctx, prompts.LeadQualification, text, contextBlock, history)
	if err != nil {
		return nil, err
	}
	return &Reply{Text: reply, Intent: types.IntentContact}, nil
}

func (o *Orchestrator) handleGeneral(ctx context.Context, text string, history []*types.ConversationMessage) (*Reply, error) {
	reply, err := o.completeWithPrompt(ctx, prompts.GeneralConversation, text, "", history)
	if err != nil {
		return nil, err
	}
	return &Reply{Text: reply, Intent: types.IntentGeneral}, nil
}

// completeWithPrompt calls the LLM with systemPrompt plus a language
// enforcement clause, bounded history, optional retrieval context, and the
// user's message.
func (o *Orchestrator) completeWithPrompt(ctx context.Context, name prompts.Name, userText, retrievalContext string, history []*types.ConversationMessage) (string, error) {
	system := o.promptReg.Get(name) +
		" Always reply in the same language the customer is writing in."
	if retrievalContext != "" {
		system += "\n\nRetrieved context:\n" + retrievalContext
	}

	messages := []llm.Message{types.NewSystemMessage(system)}
	for _, m := range history {
		switch m.Role {
		case types.MessageRoleUser:
			messages = append(messages, types.NewUserMessage(m.Content))
		case types.MessageRoleAssistant:
			messages = append(messages, types.NewAssistantMessage(m.Content))
		}
	}
	messages = append(messages, types.NewUserMessage(userText))

	resp, err := o.provider.Completion(ctx, &llm.ChatRequest{
		Model:       o.model,
		Messages:    messages,
		Temperature: 0.7,
	})
	if err != nil {
		return "", fmt.Errorf("llm completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("llm returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
