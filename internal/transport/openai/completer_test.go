package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kailas-cloud/commentlens/internal/domain"
)

func chatOK(content string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"id":     "chatcmpl-1",
			"object": "chat.completion",
			"model":  "test-chat",
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": content},
				"finish_reason": "stop",
			}},
			"usage": map[string]any{"prompt_tokens": 30, "completion_tokens": 5, "total_tokens": 35},
		})
	}
}

func TestCompleter_Complete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		var body struct {
			Model          string  `json:"model"`
			Temperature    float32 `json:"temperature"`
			ResponseFormat struct {
				Type string `json:"type"`
			} `json:"response_format"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if body.Model != "test-chat" {
			t.Errorf("expected default model, got %q", body.Model)
		}
		if body.ResponseFormat.Type != "json_object" {
			t.Errorf("expected json_object format, got %q", body.ResponseFormat.Type)
		}
		if len(body.Messages) != 2 || body.Messages[0].Role != "system" {
			t.Errorf("unexpected messages %+v", body.Messages)
		}
		chatOK(`{"scores":[0.9]}`)(w, r)
	}))
	defer server.Close()

	c := NewCompleter(testConfig(server.URL))

	res, err := c.Complete(context.Background(), domain.CompletionRequest{
		Messages: []domain.Message{
			{Role: domain.RoleSystem, Content: "score"},
			{Role: domain.RoleUser, Content: "[0] great"},
		},
		Temperature: 0.1,
		MaxTokens:   100,
		Format:      domain.FormatJSON,
	})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if res.Text != `{"scores":[0.9]}` {
		t.Errorf("unexpected text %q", res.Text)
	}
	if res.PromptTokens != 30 || res.CompletionTokens != 5 || res.TotalTokens != 35 {
		t.Errorf("unexpected usage %+v", res)
	}
}

func TestCompleter_RetriesServerError(t *testing.T) {
	server, calls := flakyServer(t, 1, http.StatusServiceUnavailable, chatOK("ok"))

	c := NewCompleter(testConfig(server.URL))

	res, err := c.Complete(context.Background(), domain.CompletionRequest{
		Messages: []domain.Message{{Role: domain.RoleUser, Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("expected success after retry, got %v", err)
	}
	if res.Text != "ok" || calls.Load() != 2 {
		t.Errorf("text=%q calls=%d", res.Text, calls.Load())
	}
}

func TestCompleter_ForbiddenIsFatal(t *testing.T) {
	server, calls := flakyServer(t, 10, http.StatusForbidden, chatOK("ok"))

	c := NewCompleter(testConfig(server.URL))

	_, err := c.Complete(context.Background(), domain.CompletionRequest{
		Messages: []domain.Message{{Role: domain.RoleUser, Content: "hi"}},
	})
	if !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("403 must not be retried, got %d attempts", calls.Load())
	}
}

func TestCompleter_EmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"choices": []any{}})
	}))
	defer server.Close()

	c := NewCompleter(testConfig(server.URL))

	_, err := c.Complete(context.Background(), domain.CompletionRequest{
		Messages: []domain.Message{{Role: domain.RoleUser, Content: "hi"}},
	})
	if !errors.Is(err, domain.ErrCompleterFailure) {
		t.Fatalf("expected ErrCompleterFailure, got %v", err)
	}
}
