package transcribe

import (
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// OpenAITranscriber calls the OpenAI audio transcription endpoint.
type OpenAITranscriber struct {
	client *openai.Client
	model  string
}

// NewOpenAITranscriber creates a transcriber sharing the given client.
func NewOpenAITranscriber(client *openai.Client, model string) *OpenAITranscriber {
	if model == "" {
		model = openai.Whisper1
	}
	return &OpenAITranscriber{client: client, model: model}
}

// Transcribe uploads the chunk and returns the plain-text transcript.
func (t *OpenAITranscriber) Transcribe(ctx context.Context, req Request) (string, error) {
	resp, err := t.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    t.model,
		FilePath: req.Filename,
		Reader:   req.Audio,
		Language: req.Language,
		Format:   openai.AudioResponseFormatText,
	})
	if err != nil {
		return "", fmt.Errorf("transcribe: openai %s: %w", req.Filename, err)
	}
	return strings.TrimSpace(resp.Text), nil
}
