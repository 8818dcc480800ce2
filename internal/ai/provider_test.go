package ai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestStub(t *testing.T) {
	ctx := context.Background()
	var p Provider = Stub{}

	got, _ := p.Chat(ctx, []Message{{Role: RoleUser, Content: "first"}, {Role: RoleAssistant, Content: "x"}, {Role: RoleUser, Content: "hi"}})
	if got != "AI: hi" {
		t.Errorf("Chat = %q", got)
	}
	got, _ = p.Summarize(ctx, "One. Two.")
	if got != "Summary: One" {
		t.Errorf("Summarize = %q", got)
	}
	got, _ = p.Translate(ctx, "hello", "fr")
	if got != "[fr] hello" {
		t.Errorf("Translate = %q", got)
	}
}

func TestFromConfig(t *testing.T) {
	p, err := FromConfig(Config{})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := p.(Stub); !ok {
		t.Errorf("default provider = %T, want Stub", p)
	}

	t.Setenv("IDESHELL_TEST_KEY", "")
	p, _ = FromConfig(Config{Provider: "openai", APIKeyEnv: "IDESHELL_TEST_KEY"})
	if _, ok := p.(Stub); !ok {
		t.Errorf("openai without key = %T, want Stub", p)
	}

	t.Setenv("IDESHELL_TEST_KEY", "sk-test")
	p, _ = FromConfig(Config{Provider: "OpenAI", APIKeyEnv: "IDESHELL_TEST_KEY"})
	if b, ok := p.(*Breaker); !ok {
		t.Errorf("openai with key = %T", p)
	} else if _, ok := b.inner.(*OpenAI); !ok {
		t.Errorf("breaker wraps %T", b.inner)
	}

	if _, err := FromConfig(Config{Provider: "llama"}); !errors.Is(err, ErrUnknownProvider) {
		t.Errorf("unknown provider = %v", err)
	}
}

func TestOpenAIChat(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"bonjour"},"finish_reason":"stop"}]}`)
	}))
	defer srv.Close()

	p := NewOpenAI("sk-test", "test-model", srv.URL+"/v1")
	got, err := p.Translate(context.Background(), "hello", "French")
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if got != "bonjour" {
		t.Errorf("Translate = %q", got)
	}
	if gotBody["model"] != "test-model" {
		t.Errorf("model = %v", gotBody["model"])
	}
	msgs, _ := gotBody["messages"].([]any)
	if len(msgs) != 2 {
		t.Errorf("sent %d messages, want 2", len(msgs))
	}
}

func TestOpenAIEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"1","object":"chat.completion","choices":[]}`)
	}))
	defer srv.Close()

	p := NewOpenAI("sk-test", "", srv.URL+"/v1")
	if _, err := p.Summarize(context.Background(), "text"); !errors.Is(err, ErrEmptyResponse) {
		t.Errorf("err = %v, want ErrEmptyResponse", err)
	}
}
