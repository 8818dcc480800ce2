package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"
)

// ErrEmptyResponse is returned when the endpoint answers with no choices.
var ErrEmptyResponse = errors.New("ai: no response from model")

const defaultTimeout = 30 * time.Second

// OpenAI is a Provider backed by an OpenAI-compatible chat endpoint.
type OpenAI struct {
	client *openai.Client
	model  string
}

// NewOpenAI creates a provider. model defaults to gpt-4o-mini; baseURL
// overrides the endpoint when set.
func NewOpenAI(key, model, baseURL string) *OpenAI {
	cfg := openai.DefaultConfig(key)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAI{client: openai.NewClientWithConfig(cfg), model: model}
}

// Chat sends messages and returns the first choice.
func (o *OpenAI) Chat(ctx context.Context, messages []Message) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       o.model,
		Messages:    make([]openai.ChatCompletionMessage, 0, len(messages)),
		MaxTokens:   512,
		Temperature: 0.7,
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	return o.complete(ctx, req)
}

// Summarize asks the model for a short summary.
func (o *OpenAI) Summarize(ctx context.Context, text string) (string, error) {
	return o.Chat(ctx, []Message{
		{Role: RoleSystem, Content: "Summarize the user's text in two sentences or fewer."},
		{Role: RoleUser, Content: text},
	})
}

// Translate asks the model to translate text into lang.
func (o *OpenAI) Translate(ctx context.Context, text, lang string) (string, error) {
	return o.Chat(ctx, []Message{
		{Role: RoleSystem, Content: fmt.Sprintf("Translate the user's text into %s. Reply with the translation only.", lang)},
		{Role: RoleUser, Content: text},
	})
}

func (o *OpenAI) complete(ctx context.Context, req openai.ChatCompletionRequest) (string, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultTimeout)
		defer cancel()
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("ai: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Message.Content, nil
}
