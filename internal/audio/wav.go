package audio

import (
	"context"
	"fmt"
	"math"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const wavFormatPCM = 1

// WAVCodec decodes the whole source into memory and slices it by frame.
type WAVCodec struct{}

func (WAVCodec) Name() string { return "wav" }

func (WAVCodec) Ext() string { return "wav" }

// Load decodes the full PCM buffer of a WAV file.
func (WAVCodec) Load(_ context.Context, path string) (Clip, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("audio: open %s: %w", path, err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("audio: decode %s: %w", path, err)
	}
	if dec.SampleRate == 0 || dec.NumChans == 0 {
		return nil, fmt.Errorf("audio: %s is not a valid WAV file", path)
	}

	format := int(dec.WavAudioFormat)
	if format == 0 {
		format = wavFormatPCM
	}
	return &wavClip{
		buf:         buf,
		sampleRate:  int(dec.SampleRate),
		channels:    int(dec.NumChans),
		bitDepth:    int(dec.BitDepth),
		audioFormat: format,
	}, nil
}

type wavClip struct {
	buf         *goaudio.IntBuffer
	sampleRate  int
	channels    int
	bitDepth    int
	audioFormat int
}

func (c *wavClip) frames() int64 {
	return int64(len(c.buf.Data) / c.channels)
}

func (c *wavClip) DurationMs() int64 {
	return c.frames() * 1000 / int64(c.sampleRate)
}

// frameAt maps a millisecond offset to a frame index. Offsets at or past the
// end map to the last frame so the final chunk keeps any sub-millisecond tail.
func (c *wavClip) frameAt(ms int64) int64 {
	if ms >= c.DurationMs() {
		return c.frames()
	}
	return ms * int64(c.sampleRate) / 1000
}

func (c *wavClip) Export(_ context.Context, startMs, endMs int64, dst string) error {
	if startMs < 0 || endMs < startMs {
		return fmt.Errorf("audio: invalid range [%d, %d)", startMs, endMs)
	}
	from, to := c.frameAt(startMs), c.frameAt(endMs)

	slice := &goaudio.IntBuffer{
		Format:         c.buf.Format,
		Data:           c.buf.Data[from*int64(c.channels) : to*int64(c.channels)],
		SourceBitDepth: c.bitDepth,
	}
	return writeWAV(dst, slice, c.sampleRate, c.bitDepth, c.channels, c.audioFormat)
}

// WriteWAV encodes normalized float32 samples as a 16-bit PCM WAV file.
func WriteWAV(path string, samples []float32, sampleRate, channels int) error {
	data := make([]int, len(samples))
	for i, s := range samples {
		v := math.Max(-1, math.Min(1, float64(s)))
		data[i] = int(math.Round(v * math.MaxInt16))
	}
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	return writeWAV(path, buf, sampleRate, 16, channels, wavFormatPCM)
}

func writeWAV(path string, buf *goaudio.IntBuffer, sampleRate, bitDepth, channels, audioFormat int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("audio: create %s: %w", path, err)
	}

	enc := wav.NewEncoder(f, sampleRate, bitDepth, channels, audioFormat)
	if err := enc.Write(buf); err != nil {
		f.Close()
		return fmt.Errorf("audio: encode %s: %w", path, err)
	}
	if err := enc.Close(); err != nil {
		f.Close()
		return fmt.Errorf("audio: finalize %s: %w", path, err)
	}
	return f.Close()
}
