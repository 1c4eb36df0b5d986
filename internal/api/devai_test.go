package api

import (
	"errors"
	"net/http"
	"testing"
)

func TestDevAIChat(t *testing.T) {
	assistant := &stubAssistant{answer: "use a map"}
	srv, _ := newTestServerWithConfig(t, nil, Deps{Assistant: assistant})

	w := doRequest(srv, "POST", "/api/devai-chat", "", devAIRequest{Prompt: "how do I count words?"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp devAIResponse
	decodeBody(t, w, &resp)
	if resp.Response != "use a map" {
		t.Fatalf("response = %q", resp.Response)
	}
	if assistant.got != "how do I count words?" {
		t.Fatalf("prompt = %q", assistant.got)
	}
	if n := srv.metrics.Snapshot(0).DevAIRequests; n != 1 {
		t.Fatalf("devai requests = %d", n)
	}
}

func TestDevAIChatErrors(t *testing.T) {
	srv, _ := newTestServerWithConfig(t, nil, Deps{Assistant: &stubAssistant{err: errors.New("quota")}})

	w := doRequest(srv, "POST", "/api/devai-chat", "", devAIRequest{Prompt: "  "})
	expectError(t, w, http.StatusBadRequest, "Prompt required")

	w = doRequest(srv, "POST", "/api/devai-chat", "", devAIRequest{Prompt: "hi"})
	expectError(t, w, http.StatusInternalServerError, "DevAi failed to respond")
}

func TestDevAIChatNotConfigured(t *testing.T) {
	srv, _ := newTestServer(t)

	w := doRequest(srv, "POST", "/api/devai-chat", "", devAIRequest{Prompt: "hi"})
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
}

func TestDevAIChatRateLimited(t *testing.T) {
	srv, store := newTestServerWithConfig(t, func(cfg *Config) {
		cfg.RateLimitDevAI = 2
	}, Deps{Assistant: &stubAssistant{answer: "ok"}})

	for i := 0; i < 2; i++ {
		w := doRequest(srv, "POST", "/api/devai-chat", "", devAIRequest{Prompt: "hi"})
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, w.Code)
		}
	}
	w := doRequest(srv, "POST", "/api/devai-chat", "", devAIRequest{Prompt: "hi"})
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}

	events, _ := store.ListRateLimitEvents(10)
	if len(events) != 1 || events[0].EndpointClass != endpointDevAI {
		t.Fatalf("expected one devai rate limit event, got %+v", events)
	}
}
