package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestClientComplete(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"{\"action\":\"next_question\"}"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	c := New(srv.URL+"/v1", "key", "test-model", time.Second)
	got, err := c.Complete(context.Background(), Request{System: "sys", User: "hello", JSONObject: true})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != `{"action":"next_question"}` {
		t.Errorf("Complete() = %q", got)
	}
	if gotBody["model"] != "test-model" {
		t.Errorf("model = %v, want test-model", gotBody["model"])
	}
	msgs, _ := gotBody["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("expected system and user messages, got %d", len(msgs))
	}
	if _, ok := gotBody["response_format"]; !ok {
		t.Error("JSONObject request should set response_format")
	}
}

func TestClientCompleteNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","choices":[]}`))
	}))
	defer srv.Close()

	c := New(srv.URL+"/v1", "key", "m", time.Second)
	if _, err := c.Complete(context.Background(), Request{User: "hi"}); err == nil {
		t.Fatal("expected error for empty choices")
	}
}

func TestClientTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := New(srv.URL+"/v1", "key", "m", 50*time.Millisecond)
	start := time.Now()
	if _, err := c.Complete(context.Background(), Request{User: "hi"}); err == nil {
		t.Fatal("expected timeout error")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Complete took %v, timeout not applied", elapsed)
	}
}

func TestAnythingLLMComplete(t *testing.T) {
	var got workspaceChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/workspace/exams/chat" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer secret" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"id":"1","type":"textResponse","textResponse":"[{\"question_number\":1}]"}`))
	}))
	defer srv.Close()

	c := NewAnythingLLM(srv.URL+"/api/v1/", "secret", "exams", time.Second)
	c.now = func() time.Time { return time.Unix(1700000000, 0) }

	reply, err := c.Complete(context.Background(), Request{System: "be strict", User: "extract"})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if reply != `[{"question_number":1}]` {
		t.Errorf("reply = %q", reply)
	}
	if !strings.HasPrefix(got.Message, "System Instructions: be strict") || !strings.HasSuffix(got.Message, "User Query: extract") {
		t.Errorf("message = %q", got.Message)
	}
	if got.Mode != "chat" || got.SessionID != "exam-reader-1700000000" {
		t.Errorf("unexpected payload %+v", got)
	}
}

func TestAnythingLLMErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"not found", http.StatusNotFound, ``},
		{"server error", http.StatusInternalServerError, `boom`},
		{"empty body", http.StatusOK, ``},
		{"empty text", http.StatusOK, `{"textResponse":""}`},
		{"bad json", http.StatusOK, `<html>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := NewAnythingLLM(srv.URL, "k", "ws", time.Second)
			if _, err := c.Complete(context.Background(), Request{User: "x"}); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestAnythingLLMEmptyResponseSentinel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"textResponse":"  "}`))
	}))
	defer srv.Close()

	c := NewAnythingLLM(srv.URL, "k", "ws", time.Second)
	_, err := c.Complete(context.Background(), Request{User: "x"})
	if !errors.Is(err, ErrEmptyResponse) {
		t.Errorf("expected ErrEmptyResponse, got %v", err)
	}
}
