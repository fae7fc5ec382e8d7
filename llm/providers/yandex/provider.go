package yandex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/vertexsales/salesbot/internal/tlsutil"
	"github.com/vertexsales/salesbot/llm"
	"github.com/vertexsales/salesbot/llm/providers"
	"go.uber.org/zap"
)

const defaultBaseURL = "https://llm.api.cloud.yandex.net"

// Provider implements the llm.Provider interface for Yandex Foundation
// Models (selected via DEFAULT_LLM_PROVIDER=yandex, see config.Keys).
type Provider struct {
	cfg    providers.YandexConfig
	client *http.Client
	logger *zap.Logger
}

// New creates a Yandex Foundation Models provider instance.
func New(cfg providers.YandexConfig, logger *zap.Logger) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Provider{
		cfg:    cfg,
		client: tlsutil.SecureHTTPClient(timeout),
		logger: logger.With(zap.String("component", "llm_provider_yandex")),
	}
}

func (p *Provider) Name() string { return "yandex" }

func (p *Provider) SupportsNativeFunctionCalling() bool { return false }

// modelURI builds the gpt://<folder>/<model>/latest URI Yandex expects.
func (p *Provider) modelURI(model string) string {
	if model == "" {
		model = p.cfg.Model
	}
	if model == "" {
		model = "yandexgpt-lite"
	}
	if strings.HasPrefix(model, "gpt://") {
		return model
	}
	return fmt.Sprintf("gpt://%s/%s/latest", p.cfg.FolderID, model)
}

type completionRequest struct {
	ModelURI          string             `json:"modelUri"`
	CompletionOptions completionOptions  `json:"completionOptions"`
	Messages          []yandexMessage    `json:"messages"`
}

type completionOptions struct {
	Stream      bool    `json:"stream"`
	Temperature float32 `json:"temperature,omitempty"`
	MaxTokens   string  `json:"maxTokens,omitempty"`
}

type yandexMessage struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

type completionResponse struct {
	Result struct {
		Alternatives []struct {
			Message struct {
				Role string `json:"role"`
				Text string `json:"text"`
			} `json:"message"`
			Status string `json:"status"`
		} `json:"alternatives"`
		Usage struct {
			InputTextTokens  string `json:"inputTextTokens"`
			CompletionTokens string `json:"completionTokens"`
			TotalTokens      string `json:"totalTokens"`
		} `json:"usage"`
		ModelVersion string `json:"modelVersion"`
	} `json:"result"`
}

func toYandexRole(r llm.Role) string {
	switch r {
	case llm.RoleAssistant:
		return "assistant"
	case llm.RoleSystem:
		return "system"
	default:
		return "user"
	}
}

// Completion sends a synchronous chat request to the Yandex foundationModels
// completion endpoint.
func (p *Provider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	apiKey := p.cfg.APIKey
	if c, ok := llm.CredentialOverrideFromContext(ctx); ok && strings.TrimSpace(c.APIKey) != "" {
		apiKey = strings.TrimSpace(c.APIKey)
	}

	messages := make([]yandexMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, yandexMessage{Role: toYandexRole(m.Role), Text: m.Content})
	}

	body := completionRequest{
		ModelURI: p.modelURI(req.Model),
		CompletionOptions: completionOptions{
			Stream:      false,
			Temperature: req.Temperature,
		},
	}
	if req.MaxTokens > 0 {
		body.CompletionOptions.MaxTokens = fmt.Sprintf("%d", req.MaxTokens)
	}
	body.Messages = messages

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal yandex request: %w", err)
	}

	endpoint := strings.TrimRight(p.cfg.BaseURL, "/") + "/foundationModels/v1/completion"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build yandex request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Api-Key "+apiKey)
	httpReq.Header.Set("x-folder-id", p.cfg.FolderID)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, &llm.Error{Code: llm.ErrUpstreamError, Message: err.Error(), HTTPStatus: http.StatusBadGateway, Retryable: true, Provider: p.Name()}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg := providers.ReadErrorMessage(resp.Body)
		return nil, providers.MapHTTPError(resp.StatusCode, msg, p.Name())
	}

	var cr completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return nil, &llm.Error{Code: llm.ErrUpstreamError, Message: err.Error(), HTTPStatus: http.StatusBadGateway, Retryable: true, Provider: p.Name()}
	}
	if len(cr.Result.Alternatives) == 0 {
		return nil, &llm.Error{Code: llm.ErrUpstreamError, Message: "empty completion from yandex", HTTPStatus: http.StatusBadGateway, Provider: p.Name()}
	}

	choices := make([]llm.ChatChoice, 0, len(cr.Result.Alternatives))
	for i, alt := range cr.Result.Alternatives {
		choices = append(choices, llm.ChatChoice{
			Index:        i,
			FinishReason: alt.Status,
			Message:      llm.Message{Role: llm.RoleAssistant, Content: alt.Message.Text},
		})
	}

	return &llm.ChatResponse{
		Provider:  p.Name(),
		Model:     cr.Result.ModelVersion,
		Choices:   choices,
		Usage:     parseUsage(cr),
		CreatedAt: time.Now(),
	}, nil
}

func parseUsage(cr completionResponse) llm.ChatUsage {
	var u llm.ChatUsage
	fmt.Sscanf(cr.Result.Usage.InputTextTokens, "%d", &u.PromptTokens)
	fmt.Sscanf(cr.Result.Usage.CompletionTokens, "%d", &u.CompletionTokens)
	fmt.Sscanf(cr.Result.Usage.TotalTokens, "%d", &u.TotalTokens)
	return u
}

// Stream is not implemented for Yandex; the gateway falls back to a single
// Completion call wrapped as one chunk when the orchestrator requests
// streaming from this provider.
func (p *Provider) Stream(ctx context.Context, req *llm.ChatRequest) (<-chan llm.StreamChunk, error) {
	ch := make(chan llm.StreamChunk, 1)
	resp, err := p.Completion(ctx, req)
	if err != nil {
		ch <- llm.StreamChunk{Err: &llm.Error{Code: llm.ErrUpstreamError, Message: err.Error(), Provider: p.Name()}}
		close(ch)
		return ch, nil
	}
	if len(resp.Choices) > 0 {
		ch <- llm.StreamChunk{
			Provider:     p.Name(),
			Model:        resp.Model,
			Delta:        resp.Choices[0].Message,
			FinishReason: resp.Choices[0].FinishReason,
			Usage:        &resp.Usage,
		}
	}
	close(ch)
	return ch, nil
}

// HealthCheck performs a minimal completion request with a 1-token budget.
func (p *Provider) HealthCheck(ctx context.Context) (*llm.HealthStatus, error) {
	start := time.Now()
	_, err := p.Completion(ctx, &llm.ChatRequest{
		Model:     p.cfg.Model,
		Messages:  []llm.Message{llm.NewUserMessage("ping")},
		MaxTokens: 1,
	})
	latency := time.Since(start)
	if err != nil {
		return &llm.HealthStatus{Healthy: false, Latency: latency}, err
	}
	return &llm.HealthStatus{Healthy: true, Latency: latency}, nil
}

// ListModels is not exposed by Yandex Foundation Models; returns nil per the
// llm.Provider contract for providers without model listing.
func (p *Provider) ListModels(ctx context.Context) ([]llm.Model, error) {
	return nil, nil
}
