package genai

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIBackend talks to an OpenAI-compatible chat-completion endpoint.
type OpenAIBackend struct {
	client *openai.Client
	model  string
}

// NewOpenAI builds a backend for the given API key, optional base URL
// (OpenRouter and self-hosted gateways) and model name.
func NewOpenAI(apiKey, baseURL, model string) *OpenAIBackend {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &OpenAIBackend{
		client: openai.NewClientWithConfig(config),
		model:  model,
	}
}

func (b *OpenAIBackend) Generate(ctx context.Context, messages []Message) (Message, error) {
	var oaMsgs []openai.ChatCompletionMessage
	for _, m := range messages {
		oaMsgs = append(oaMsgs, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	resp, err := b.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    b.model,
		Messages: oaMsgs,
	})
	if err != nil {
		return Message{}, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Message{}, fmt.Errorf("chat completion returned no choices")
	}
	return Message{Role: RoleAssistant, Content: resp.Choices[0].Message.Content}, nil
}

// CountTokens approximates the encoded size without a tokenizer round-trip:
// four characters per token plus a fixed per-message overhead. Truncation
// only needs a monotonic estimate, not an exact count.
func (b *OpenAIBackend) CountTokens(messages []Message) (int, error) {
	total := 0
	for _, m := range messages {
		total += len(m.Content)/4 + 4
	}
	return total, nil
}
