package azure_openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"querydesk/internal/providers"
)

func TestEndpointURL(t *testing.T) {
	for _, base := range []string{"https://res.openai.azure.com/", "https://res.openai.azure.com"} {
		c := New(Config{Endpoint: base, Deployment: "gpt-4o"})
		got, err := c.endpointURL()
		if err != nil {
			t.Fatalf("endpoint url: %v", err)
		}
		want := "https://res.openai.azure.com/openai/deployments/gpt-4o/chat/completions?api-version=2024-05-01-preview"
		if got != want {
			t.Fatalf("unexpected endpoint for %q:\n got %q\nwant %q", base, got, want)
		}
	}
}

func TestCompleteSendsWireContract(t *testing.T) {
	var gotPath, gotVersion, gotKey string
	var payload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotVersion = r.URL.Query().Get("api-version")
		gotKey = r.Header.Get("api-key")
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"**Hello** there"}}]}`))
	}))
	defer srv.Close()

	c := New(Config{Endpoint: srv.URL + "/", APIKey: "k-123", Deployment: "chat", APIVersion: "2024-05-01-preview"})
	text, err := c.Complete(context.Background(), "What is IoT?")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if text != "**Hello** there" {
		t.Fatalf("unexpected text %q", text)
	}
	if gotPath != "/openai/deployments/chat/chat/completions" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if gotVersion != "2024-05-01-preview" {
		t.Fatalf("unexpected api-version %q", gotVersion)
	}
	if gotKey != "k-123" {
		t.Fatalf("unexpected api-key %q", gotKey)
	}

	if payload["max_tokens"] != float64(800) || payload["temperature"] != 0.7 || payload["top_p"] != 0.95 {
		t.Fatalf("unexpected sampling params %#v", payload)
	}
	if payload["frequency_penalty"] != float64(0) || payload["presence_penalty"] != float64(0) {
		t.Fatalf("unexpected penalties %#v", payload)
	}
	if _, ok := payload["model"]; ok {
		t.Fatalf("azure payload must not carry a model field")
	}
	msgs, ok := payload["messages"].([]any)
	if !ok || len(msgs) != 2 {
		t.Fatalf("expected system and user messages, got %#v", payload["messages"])
	}
	user := msgs[1].(map[string]any)
	if user["role"] != "user" || user["content"] != "What is IoT?" {
		t.Fatalf("unexpected user message %#v", user)
	}
	system := msgs[0].(map[string]any)
	if system["content"] != providers.DefaultSystemPrompt {
		t.Fatalf("unexpected system prompt %#v", system)
	}
}

func TestCompleteNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := New(Config{Endpoint: srv.URL, APIKey: "k", Deployment: "d"})
	_, err := c.Complete(context.Background(), "hi")
	var statusErr *providers.StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected status error 429, got %v", err)
	}
}

func TestCompleteRequiresDeployment(t *testing.T) {
	c := New(Config{Endpoint: "https://x"})
	if _, err := c.Complete(context.Background(), "hi"); err == nil {
		t.Fatalf("expected missing deployment error")
	}
}
