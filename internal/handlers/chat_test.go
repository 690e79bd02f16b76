package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"gemini-chat-backend/internal/models"
	"gemini-chat-backend/internal/services"
)

type stubRelay struct {
	result string
	err    error

	called bool
	raw    json.RawMessage
}

func (s *stubRelay) Relay(ctx context.Context, raw json.RawMessage) (string, error) {
	s.called = true
	s.raw = raw
	return s.result, s.err
}

func doChat(t *testing.T, h *ChatHandler, body string) (*httptest.ResponseRecorder, models.ChatResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	rr := httptest.NewRecorder()
	h.Chat(rr, req)

	var resp models.ChatResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return rr, resp
}

func TestChatHandler_Success(t *testing.T) {
	relay := &stubRelay{result: "Gemini adalah keluarga model AI dari Google."}
	h := NewChatHandler(relay)

	rr, resp := doChat(t, h, `{"conversation":[{"role":"user","content":"Apa itu Gemini?"}]}`)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	if resp.Result != relay.result {
		t.Fatalf("expected result %q, got %q", relay.result, resp.Result)
	}
	if got := rr.Header().Get("Content-Type"); got != "application/json" {
		t.Fatalf("expected JSON content type, got %q", got)
	}
	if string(relay.raw) != `[{"role":"user","content":"Apa itu Gemini?"}]` {
		t.Fatalf("conversation not forwarded verbatim: %s", relay.raw)
	}
}

func TestChatHandler_ValidationErrorIsFailure(t *testing.T) {
	relay := &stubRelay{err: &services.InvalidInputError{Message: services.ErrMsgConversationNotArray}}
	h := NewChatHandler(relay)

	rr, resp := doChat(t, h, `{"conversation":"not-an-array"}`)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected status %d, got %d", http.StatusInternalServerError, rr.Code)
	}
	if resp.Result != "conversation must be an array!" {
		t.Fatalf("unexpected result %q", resp.Result)
	}
}

func TestChatHandler_UpstreamErrorMessageIsResult(t *testing.T) {
	relay := &stubRelay{err: &services.UpstreamError{Err: errors.New("quota exceeded")}}
	h := NewChatHandler(relay)

	rr, resp := doChat(t, h, `{"conversation":[]}`)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected status %d, got %d", http.StatusInternalServerError, rr.Code)
	}
	if resp.Result != "quota exceeded" {
		t.Fatalf("expected thrown message as result, got %q", resp.Result)
	}
}

func TestChatHandler_MalformedBody(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `conversation=hello`},
		{"empty body", ``},
		{"json string", `"hello"`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			relay := &stubRelay{result: "unused"}
			h := NewChatHandler(relay)

			rr, resp := doChat(t, h, tc.body)

			if rr.Code != http.StatusInternalServerError {
				t.Fatalf("expected status %d, got %d", http.StatusInternalServerError, rr.Code)
			}
			if !strings.HasPrefix(resp.Result, "invalid request body") {
				t.Fatalf("unexpected result %q", resp.Result)
			}
			if relay.called {
				t.Fatalf("relay should not be called for a malformed body")
			}
		})
	}
}

func TestChatHandler_OversizedBody(t *testing.T) {
	relay := &stubRelay{result: "unused"}
	h := NewChatHandler(relay)

	huge := `{"conversation":[{"role":"user","content":"` + strings.Repeat("a", maxChatBodyBytes) + `"}]}`
	rr, _ := doChat(t, h, huge)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected status %d, got %d", http.StatusInternalServerError, rr.Code)
	}
	if relay.called {
		t.Fatalf("relay should not be called for an oversized body")
	}
}

func TestHealth(t *testing.T) {
	rr := httptest.NewRecorder()
	Health(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"status":"ok"`) {
		t.Fatalf("unexpected body %q", rr.Body.String())
	}
}
