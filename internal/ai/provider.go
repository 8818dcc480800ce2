// Package ai provides the language-model backends behind the plugin ai
// capability. Stub answers locally; OpenAI calls a chat-completion endpoint.
package ai

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrUnknownProvider is returned by FromConfig for an unsupported provider name.
var ErrUnknownProvider = errors.New("ai: unknown provider")

// Role of a chat message.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of a chat.
type Message struct {
	Role    string
	Content string
}

// Provider answers chat, summary and translation requests.
type Provider interface {
	Chat(ctx context.Context, messages []Message) (string, error)
	Summarize(ctx context.Context, text string) (string, error)
	Translate(ctx context.Context, text, lang string) (string, error)
}

// Config selects and configures a provider.
type Config struct {
	Provider  string // "stub" or "openai"
	Model     string
	APIKeyEnv string
	BaseURL   string
	Breaker   BreakerConfig
}

// FromConfig builds the provider named by cfg. An openai provider without a
// key in its environment variable falls back to Stub; with a key it is
// wrapped in a Breaker.
func FromConfig(cfg Config) (Provider, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", "stub":
		return Stub{}, nil
	case "openai":
		env := cfg.APIKeyEnv
		if env == "" {
			env = "OPENAI_API_KEY"
		}
		key := os.Getenv(env)
		if key == "" {
			return Stub{}, nil
		}
		return NewBreaker(NewOpenAI(key, cfg.Model, cfg.BaseURL), cfg.Breaker, nil), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}
}

// Stub returns canned answers without any network access.
type Stub struct{}

// Chat echoes the last user message.
func (Stub) Chat(_ context.Context, messages []Message) (string, error) {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleUser {
			return "AI: " + messages[i].Content, nil
		}
	}
	return "AI: (no question)", nil
}

// Summarize returns the first sentence of text.
func (Stub) Summarize(_ context.Context, text string) (string, error) {
	text = strings.TrimSpace(text)
	if i := strings.IndexAny(text, ".!?。！？\n"); i >= 0 {
		text = text[:i]
	}
	return "Summary: " + text, nil
}

// Translate tags text with the target language.
func (Stub) Translate(_ context.Context, text, lang string) (string, error) {
	return fmt.Sprintf("[%s] %s", lang, text), nil
}
