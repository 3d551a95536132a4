// Package transcribe provides speech-to-text backends and the ordered
// transcription of a folder of audio chunks.
//
// Supported backends:
//   - openai: OpenAI audio transcriptions (whisper-1 by default)
package transcribe

import (
	"context"
	"fmt"
	"io"

	"github.com/sashabaranov/go-openai"

	"github.com/chaz8081/sbobinator/internal/config"
)

// Request is one chunk to transcribe.
type Request struct {
	Audio    io.Reader
	Filename string // communicates the audio format to the service
	Language string // ISO-639-1 hint, e.g. "it"
}

// Transcriber converts one encoded audio payload to plain text.
type Transcriber interface {
	Transcribe(ctx context.Context, req Request) (string, error)
}

// New creates a Transcriber based on the config backend setting.
func New(cfg *config.TranscribeConfig, client *openai.Client) (Transcriber, error) {
	switch cfg.Backend {
	case "openai", "":
		if client == nil {
			return nil, fmt.Errorf("transcribe: openai backend requires a client")
		}
		return NewOpenAITranscriber(client, cfg.Model), nil
	default:
		return nil, fmt.Errorf("transcribe: unknown backend %q (supported: openai)", cfg.Backend)
	}
}
