package refine

import (
	"context"
	"fmt"
	"math"

	"github.com/sashabaranov/go-openai"
)

// Request is one chat-completion call.
type Request struct {
	Model       string
	Messages    []Message
	Temperature float32
	Seed        *int // nil leaves sampling unseeded
}

// Completer is a chat-completion service.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// OpenAICompleter calls the OpenAI chat completions endpoint.
type OpenAICompleter struct {
	client *openai.Client
}

// NewOpenAICompleter creates a completer sharing the given client.
func NewOpenAICompleter(client *openai.Client) *OpenAICompleter {
	return &OpenAICompleter{client: client}
}

// Complete sends the prompt and returns the first choice's content.
func (c *OpenAICompleter) Complete(ctx context.Context, req Request) (string, error) {
	msgs := make([]openai.ChatCompletionMessage, len(req.Messages))
	for i, m := range req.Messages {
		msgs[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content, Name: m.Name}
	}

	// A zero temperature is dropped by omitempty and the service then
	// samples at its default of 1.
	temperature := req.Temperature
	if temperature == 0 {
		temperature = math.SmallestNonzeroFloat32
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    msgs,
		Temperature: temperature,
		Seed:        req.Seed,
	})
	if err != nil {
		return "", fmt.Errorf("refine: openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("refine: openai returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
