package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/vertexsales/salesbot/orchestrator"
)

type fakeOrchestrator struct {
	lastChatID string
	lastText   string
	reply      *orchestrator.Reply
	err        error
}

func (f *fakeOrchestrator) HandleTurn(ctx context.Context, chatID, text string) (*orchestrator.Reply, error) {
	f.lastChatID = chatID
	f.lastText = text
	return f.reply, f.err
}

func TestHandleWebhook_DispatchesTextAndSendsReply(t *testing.T) {
	var gotPath string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotBody, _ = jsonBody(r)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	orch := &fakeOrchestrator{reply: &orchestrator.Reply{Text: "hello there"}}
	bot := New("test-token", orch, nil)
	bot.baseURL = srv.URL
	bot.http = srv.Client()

	body := `{"update_id":1,"message":{"chat":{"id":42},"text":"hi"}}`
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	w := httptest.NewRecorder()

	bot.HandleWebhook(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if orch.lastChatID != "42" || orch.lastText != "hi" {
		t.Fatalf("unexpected dispatch: chatID=%s text=%s", orch.lastChatID, orch.lastText)
	}
	if gotPath != "/bottest-token/sendMessage" {
		t.Fatalf("unexpected send path: %s", gotPath)
	}
	if !strings.Contains(string(gotBody), "hello there") {
		t.Fatalf("expected reply text in sendMessage body, got %s", gotBody)
	}
}

func TestHandleWebhook_IgnoresNonMessageUpdates(t *testing.T) {
	orch := &fakeOrchestrator{}
	bot := New("test-token", orch, nil)

	body := `{"update_id":1}`
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	w := httptest.NewRecorder()

	bot.HandleWebhook(w, req)

	if orch.lastChatID != "" {
		t.Fatalf("expected no dispatch for an update without a message")
	}
}

func jsonBody(r *http.Request) ([]byte, error) {
	var v map[string]any
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		return nil, err
	}
	return json.Marshal(v)
}
