package audio

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/shopspring/decimal"
)

var thousand = decimal.NewFromInt(1000)

// FFmpegCodec measures sources with ffprobe and cuts mp3 chunks with ffmpeg.
type FFmpegCodec struct {
	FFmpegPath  string
	FFprobePath string
}

func (c *FFmpegCodec) Name() string { return "ffmpeg" }

func (c *FFmpegCodec) Ext() string { return "mp3" }

// Load runs ffprobe to read the container duration of path.
func (c *FFmpegCodec) Load(ctx context.Context, path string) (Clip, error) {
	// ffprobe -v error -show_entries format=duration -of default=noprint_wrappers=1:nokey=1 input
	cmd := exec.CommandContext(ctx, orDefault(c.FFprobePath, "ffprobe"),
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		var ee *exec.ExitError
		if errors.As(err, &ee) {
			return nil, fmt.Errorf("audio: ffprobe %s: %s", path, strings.TrimSpace(string(ee.Stderr)))
		}
		return nil, fmt.Errorf("audio: ffprobe: %w", err)
	}

	durationMs, err := parseSecondsToMs(string(out))
	if err != nil {
		return nil, fmt.Errorf("audio: ffprobe duration for %s: %w", path, err)
	}
	return &ffmpegClip{codec: c, src: path, durationMs: durationMs}, nil
}

type ffmpegClip struct {
	codec      *FFmpegCodec
	src        string
	durationMs int64
}

func (cl *ffmpegClip) DurationMs() int64 { return cl.durationMs }

// Export re-encodes [startMs, endMs) of the source to an mp3 file.
func (cl *ffmpegClip) Export(ctx context.Context, startMs, endMs int64, dst string) error {
	// ffmpeg -y -v error -i input -ss start -to end -vn -acodec libmp3lame output.mp3
	cmd := exec.CommandContext(ctx, orDefault(cl.codec.FFmpegPath, "ffmpeg"),
		"-y", "-v", "error",
		"-i", cl.src,
		"-ss", msToSeconds(startMs),
		"-to", msToSeconds(endMs),
		"-vn", "-acodec", "libmp3lame",
		dst,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("ffmpeg: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

// parseSecondsToMs converts ffprobe's "123.456000" into whole milliseconds.
func parseSecondsToMs(s string) (int64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("negative duration %s", d)
	}
	return d.Mul(thousand).IntPart(), nil
}

// msToSeconds formats milliseconds as an ffmpeg time offset in seconds.
func msToSeconds(ms int64) string {
	return decimal.New(ms, -3).StringFixed(3)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
