// Package notify implements the two outbound channels the sales bot pages
// operators through: a Telegram bot message and an SMTP email. Both satisfy
// leads.Notifier and crm.Alerter independently, so a failure on one channel
// never suppresses the other.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/smtp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/vertexsales/salesbot/types"
)

const telegramAPIBaseURL = "https://api.telegram.org"

// TelegramNotifier posts operator-facing messages to a fixed Telegram chat
// via the Bot API's sendMessage method.
type TelegramNotifier struct {
	baseURL  string
	botToken string
	chatID   string
	http     *http.Client
	logger   *zap.Logger
}

// NewTelegramNotifier returns a TelegramNotifier that posts to chatID using
// botToken. It is a no-op (returns nil on every call) if botToken or chatID
// is empty, so operators can leave manager alerts unconfigured.
func NewTelegramNotifier(botToken, chatID string, logger *zap.Logger) *TelegramNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TelegramNotifier{
		baseURL:  telegramAPIBaseURL,
		botToken: botToken,
		chatID:   chatID,
		http:     &http.Client{Timeout: 10 * time.Second},
		logger:   logger,
	}
}

func (t *TelegramNotifier) configured() bool {
	return t.botToken != "" && t.chatID != ""
}

// NotifyNewLead implements leads.Notifier: a short operator-facing summary
// of the captured lead.
func (t *TelegramNotifier) NotifyNewLead(ctx context.Context, lead *types.Lead) error {
	text := fmt.Sprintf("New lead from %s\nName: %s\nPhone: %s\nEmail: %s\nSource: %s",
		lead.ChatID, lead.LastName, lead.Phone, lead.Email, lead.Source)
	return t.send(ctx, text)
}

// AlertCritical implements crm.Alerter: a CRITICAL-severity page.
func (t *TelegramNotifier) AlertCritical(ctx context.Context, subject, body string) error {
	return t.send(ctx, fmt.Sprintf("🔴 CRITICAL: %s\n%s", subject, body))
}

func (t *TelegramNotifier) send(ctx context.Context, text string) error {
	if !t.configured() {
		return nil
	}
	payload := map[string]string{"chat_id": t.chatID, "text": text}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode telegram message: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("build telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.http.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("telegram api returned status %d", resp.StatusCode)
	}
	return nil
}

// Mailer sends operator alerts over SMTP. Configuration mirrors the
// standard library's smtp.SendMail signature since no third-party mail
// client appears anywhere in the reference corpus.
type Mailer struct {
	addr string
	auth smtp.Auth
	from string
	to   []string

	// sendMail defaults to smtp.SendMail; tests substitute a fake to avoid
	// dialing a real relay.
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewMailer returns a Mailer. addr is host:port of the SMTP relay.
func NewMailer(addr, username, password, from string, to []string) *Mailer {
	var auth smtp.Auth
	if username != "" {
		host := addr
		if idx := strings.LastIndex(addr, ":"); idx >= 0 {
			host = addr[:idx]
		}
		auth = smtp.PlainAuth("", username, password, host)
	}
	return &Mailer{addr: addr, auth: auth, from: from, to: to, sendMail: smtp.SendMail}
}

func (m *Mailer) configured() bool {
	return m.addr != "" && m.from != "" && len(m.to) > 0
}

// NotifyNewLead implements leads.Notifier.
func (m *Mailer) NotifyNewLead(ctx context.Context, lead *types.Lead) error {
	subject := fmt.Sprintf("New lead: %s", lead.LastName)
	body := fmt.Sprintf("Chat: %s\nName: %s\nPhone: %s\nEmail: %s\nSource: %s\nQuestion: %s",
		lead.ChatID, lead.LastName, lead.Phone, lead.Email, lead.Source, lead.Question)
	return m.send(subject, body)
}

// AlertCritical implements crm.Alerter.
func (m *Mailer) AlertCritical(ctx context.Context, subject, body string) error {
	return m.send("CRITICAL: "+subject, body)
}

func (m *Mailer) send(subject, body string) error {
	if !m.configured() {
		return nil
	}
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n",
		m.from, strings.Join(m.to, ","), subject, body)
	return m.sendMail(m.addr, m.auth, m.from, m.to, []byte(msg))
}
