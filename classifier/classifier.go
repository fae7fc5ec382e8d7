// Package classifier implements the Query Classifier (C6): a deterministic
// keyword pre-pass backed by an LLM fallback that classifies into the
// constrained conversational-commerce intent set.
package classifier

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/vertexsales/salesbot/llm"
	"github.com/vertexsales/salesbot/types"
)

// Classifier assigns one of types.Intent to a user message.
type Classifier struct {
	provider llm.Provider
	model    string
	logger   *zap.Logger
}

// New returns a Classifier that falls back to provider/model when the
// keyword pre-pass is inconclusive.
func New(provider llm.Provider, model string, logger *zap.Logger) *Classifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Classifier{provider: provider, model: model, logger: logger}
}

// Classify returns the intent for text. The keyword pass runs first and is
// deterministic and free; only an inconclusive keyword pass falls through
// to the LLM.
func (c *Classifier) Classify(ctx context.Context, text string) (types.Intent, error) {
	if intent, ok := classifyByKeyword(text); ok {
		return intent, nil
	}
	return c.classifyByLLM(ctx, text)
}

func (c *Classifier) classifyByLLM(ctx context.Context, text string) (types.Intent, error) {
	labels := []types.Intent{
		types.IntentProduct, types.IntentService, types.IntentCompanyInfo,
		types.IntentContact, types.IntentGeneral,
	}
	var labelNames []string
	for _, l := range labels {
		labelNames = append(labelNames, string(l))
	}

	systemPrompt := fmt.Sprintf(
		"Classify the user's message into exactly one of these labels: %s. "+
			"Reply with only the label, nothing else.",
		strings.Join(labelNames, ", "))

	resp, err := c.provider.Completion(ctx, &llm.ChatRequest{
		Model: c.model,
		Messages: []llm.Message{
			types.NewSystemMessage(systemPrompt),
			types.NewUserMessage(text),
		},
		MaxTokens:   16,
		Temperature: 0,
	})
	if err != nil {
		return "", fmt.Errorf("classify via llm: %w", err)
	}
	if len(resp.Choices) == 0 {
		return types.IntentGeneral, nil
	}

	raw := strings.ToUpper(strings.TrimSpace(resp.Choices[0].Message.Content))
	for _, l := range labels {
		if raw == string(l) || strings.Contains(raw, string(l)) {
			return l, nil
		}
	}

	c.logger.Warn("classifier: unrecognized llm label, defaulting to general",
		zap.String("raw", raw))
	return types.IntentGeneral, nil
}

// classifyByKeyword is the deterministic pre-pass; see keywords.go.
func classifyByKeyword(text string) (types.Intent, bool) {
	return matchKeywords(text)
}
