// Package telegram is the thin boundary to the Telegram Bot API: a webhook
// handler for inbound updates and a long-polling fallback consumer, both
// feeding text into the orchestrator and replying through the same
// sendMessage call notify.TelegramNotifier uses for manager alerts. The
// Telegram transport itself — update delivery, retries, rate limits — is an
// external collaborator; this package only extracts chat_id/text and
// round-trips a reply.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/vertexsales/salesbot/orchestrator"
)

const apiBaseURL = "https://api.telegram.org"

const defaultPollInterval = 2 * time.Second

// TurnHandler is the subset of *orchestrator.Orchestrator the bot needs.
type TurnHandler interface {
	HandleTurn(ctx context.Context, chatID, text string) (*orchestrator.Reply, error)
}

// update mirrors the fields of a Telegram Update this bot reads.
type update struct {
	UpdateID int64 `json:"update_id"`
	Message  *struct {
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
		Text string `json:"text"`
	} `json:"message"`
}

// Bot dispatches inbound Telegram messages to an orchestrator and sends the
// reply back through the Bot API.
type Bot struct {
	baseURL  string
	token    string
	orch     TurnHandler
	http     *http.Client
	logger   *zap.Logger
	lastSeen int64 // highest update_id processed, for long-polling's offset
}

// New returns a Bot. botToken empty makes every method a no-op, matching
// the rest of this codebase's "unconfigured channel" convention.
func New(botToken string, orch TurnHandler, logger *zap.Logger) *Bot {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bot{
		baseURL: apiBaseURL,
		token:   botToken,
		orch:    orch,
		http:    &http.Client{Timeout: 30 * time.Second},
		logger:  logger,
	}
}

func (b *Bot) configured() bool { return b.token != "" }

// HandleWebhook is the HTTP handler registered at the configured webhook
// path. It decodes one Update, dispatches it, and replies 200 regardless of
// the turn's outcome — Telegram retries on non-2xx, and a turn error has
// already been logged and surfaced to the user as the fallback reply.
func (b *Bot) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var u update
	if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	b.dispatch(r.Context(), u)
	w.WriteHeader(http.StatusOK)
}

func (b *Bot) dispatch(ctx context.Context, u update) {
	if u.Message == nil || u.Message.Text == "" {
		return
	}
	chatID := fmt.Sprintf("%d", u.Message.Chat.ID)
	reply, err := b.orch.HandleTurn(ctx, chatID, u.Message.Text)
	if err != nil {
		b.logger.Error("telegram: turn failed", zap.String("chat_id", chatID), zap.Error(err))
		return
	}
	if err := b.sendMessage(ctx, u.Message.Chat.ID, reply.Text); err != nil {
		b.logger.Error("telegram: send reply failed", zap.String("chat_id", chatID), zap.Error(err))
	}
}

func (b *Bot) sendMessage(ctx context.Context, chatID int64, text string) error {
	if !b.configured() {
		return nil
	}
	body, err := json.Marshal(map[string]any{"chat_id": chatID, "text": text})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/bot%s/sendMessage", b.baseURL, b.token), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := b.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("telegram: sendMessage status %d", resp.StatusCode)
	}
	return nil
}

// RunLongPolling consumes getUpdates on a fixed interval until ctx is
// cancelled. Used only when DISABLE_TELEGRAM_BOT is false and no webhook is
// registered with Telegram.
func (b *Bot) RunLongPolling(ctx context.Context) {
	if !b.configured() {
		return
	}
	ticker := time.NewTicker(defaultPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.poll(ctx)
		}
	}
}

func (b *Bot) poll(ctx context.Context) {
	url := fmt.Sprintf("%s/bot%s/getUpdates?offset=%d&timeout=0", b.baseURL, b.token, b.lastSeen+1)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return
	}
	resp, err := b.http.Do(req)
	if err != nil {
		b.logger.Warn("telegram: getUpdates failed", zap.Error(err))
		return
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return
	}
	var out struct {
		Result []update `json:"result"`
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		return
	}
	for _, u := range out.Result {
		b.dispatch(ctx, u)
		if u.UpdateID > b.lastSeen {
			b.lastSeen = u.UpdateID
		}
	}
}
