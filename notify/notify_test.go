package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"testing"

	"github.com/vertexsales/salesbot/types"
)

func TestTelegramNotifier_UnconfiguredIsNoOp(t *testing.T) {
	n := NewTelegramNotifier("", "", nil)
	if err := n.NotifyNewLead(context.Background(), &types.Lead{}); err != nil {
		t.Fatalf("expected nil error for unconfigured notifier, got %v", err)
	}
}

func TestTelegramNotifier_SendsToConfiguredEndpoint(t *testing.T) {
	var gotPath, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		buf := make([]byte, 4096)
		n, _ := r.Body.Read(buf)
		gotBody = string(buf[:n])
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewTelegramNotifier("test-token", "chat-99", nil)
	n.baseURL = srv.URL
	n.http = srv.Client()

	lead := &types.Lead{ChatID: "chat-1", LastName: "Ivanov"}
	if err := n.NotifyNewLead(context.Background(), lead); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if gotPath != "/bottest-token/sendMessage" {
		t.Fatalf("unexpected path: %s", gotPath)
	}
	if !contains([]byte(gotBody), "Ivanov") {
		t.Fatalf("expected request body to mention the lead's last name, got %q", gotBody)
	}
}

func TestMailer_UnconfiguredIsNoOp(t *testing.T) {
	m := NewMailer("", "", "", "", nil)
	if err := m.NotifyNewLead(context.Background(), &types.Lead{}); err != nil {
		t.Fatalf("expected nil error for unconfigured mailer, got %v", err)
	}
}

func TestMailer_SendsFormattedMessage(t *testing.T) {
	var gotTo []string
	var gotMsg []byte
	m := NewMailer("smtp.example.com:587", "user", "pass", "alerts@example.com", []string{"ops@example.com"})
	m.sendMail = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotTo = to
		gotMsg = msg
		return nil
	}

	lead := &types.Lead{ChatID: "chat-7", LastName: "Sidorova", Phone: "+79169990011"}
	if err := m.NotifyNewLead(context.Background(), lead); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(gotTo) != 1 || gotTo[0] != "ops@example.com" {
		t.Fatalf("unexpected recipients: %v", gotTo)
	}
	if !contains(gotMsg, "Sidorova") {
		t.Fatalf("expected message body to mention the lead's last name, got %q", gotMsg)
	}
}

func TestMailer_AlertCriticalPrefixesSubject(t *testing.T) {
	var gotMsg []byte
	m := NewMailer("smtp.example.com:587", "", "", "alerts@example.com", []string{"ops@example.com"})
	m.sendMail = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotMsg = msg
		return nil
	}
	if err := m.AlertCritical(context.Background(), "CRM delivery failed", "lead 5 exhausted attempts"); err != nil {
		t.Fatalf("alert: %v", err)
	}
	if !contains(gotMsg, "CRITICAL: CRM delivery failed") {
		t.Fatalf("expected CRITICAL-prefixed subject, got %q", gotMsg)
	}
}

func contains(b []byte, s string) bool {
	return len(b) >= len(s) && string(b) != "" && indexOf(string(b), s) >= 0
}

func indexOf(haystack, needle string) int {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return i
		}
	}
	return -1
}
