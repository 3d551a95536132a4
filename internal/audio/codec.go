// Package audio loads source recordings, slices them into numbered chunks and
// captures new recordings from the microphone.
//
// Supported codecs:
//   - ffmpeg: ffprobe/ffmpeg subprocesses, any input format, mp3 chunks (default)
//   - wav: in-process PCM decoding via go-audio/wav, wav chunks
package audio

import (
	"context"
	"fmt"
)

// Codec loads a source recording so it can be sliced.
type Codec interface {
	// Name identifies the codec in logs.
	Name() string
	// Ext is the file extension of exported chunks, without the dot.
	Ext() string
	// Load opens the recording at path and measures its duration.
	Load(ctx context.Context, path string) (Clip, error)
}

// Clip is a loaded recording.
type Clip interface {
	// DurationMs is the total length of the recording in milliseconds.
	DurationMs() int64
	// Export encodes [startMs, endMs) of the recording to dst.
	Export(ctx context.Context, startMs, endMs int64, dst string) error
}

// NewCodec creates a Codec by name ("ffmpeg" or "wav").
func NewCodec(name, ffmpegPath, ffprobePath string) (Codec, error) {
	switch name {
	case "ffmpeg", "":
		return &FFmpegCodec{FFmpegPath: ffmpegPath, FFprobePath: ffprobePath}, nil
	case "wav":
		return WAVCodec{}, nil
	default:
		return nil, fmt.Errorf("audio: unknown codec %q (supported: ffmpeg, wav)", name)
	}
}
