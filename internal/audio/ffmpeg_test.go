package audio

import (
	"context"
	"os/exec"
	"path/filepath"
	"testing"
)

func TestParseSecondsToMs(t *testing.T) {
	tests := []struct {
		input   string
		want    int64
		wantErr bool
	}{
		{"123.456000\n", 123456, false},
		{"0.0005", 0, false},
		{"5400", 5400000, false},
		{"N/A", 0, true},
		{"-1.0", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parseSecondsToMs(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseSecondsToMs(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("parseSecondsToMs(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestMsToSeconds(t *testing.T) {
	tests := []struct {
		ms   int64
		want string
	}{
		{0, "0.000"},
		{1, "0.001"},
		{1500, "1.500"},
		{1_800_000, "1800.000"},
	}

	for _, tt := range tests {
		if got := msToSeconds(tt.ms); got != tt.want {
			t.Errorf("msToSeconds(%d) = %q, want %q", tt.ms, got, tt.want)
		}
	}
}

func TestNewCodec(t *testing.T) {
	c, err := NewCodec("ffmpeg", "/usr/bin/ffmpeg", "/usr/bin/ffprobe")
	if err != nil {
		t.Fatalf("NewCodec(ffmpeg) error = %v", err)
	}
	if c.Ext() != "mp3" {
		t.Errorf("ffmpeg Ext() = %q, want mp3", c.Ext())
	}

	c, err = NewCodec("wav", "", "")
	if err != nil {
		t.Fatalf("NewCodec(wav) error = %v", err)
	}
	if c.Ext() != "wav" {
		t.Errorf("wav Ext() = %q, want wav", c.Ext())
	}

	if _, err := NewCodec("pydub", "", ""); err == nil {
		t.Error("NewCodec with unknown name should return error")
	}
}

func TestFFmpegCodecRoundTrip(t *testing.T) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not found in PATH")
	}
	if _, err := exec.LookPath("ffprobe"); err != nil {
		t.Skip("ffprobe not found in PATH")
	}

	dir := t.TempDir()
	src := filepath.Join(dir, "lecture.wav")
	if err := WriteWAV(src, sineLike(16000), 8000, 1); err != nil {
		t.Fatal(err)
	}

	codec := &FFmpegCodec{}
	clip, err := codec.Load(context.Background(), src)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if clip.DurationMs() != 2000 {
		t.Errorf("DurationMs() = %d, want 2000", clip.DurationMs())
	}

	dst := filepath.Join(dir, "split_1.mp3")
	if err := clip.Export(context.Background(), 0, 1000, dst); err != nil {
		t.Fatalf("Export() error = %v", err)
	}
}

func TestFFmpegCodecMissingBinary(t *testing.T) {
	codec := &FFmpegCodec{FFprobePath: "/nonexistent/ffprobe"}
	if _, err := codec.Load(context.Background(), "lecture.m4a"); err == nil {
		t.Error("Load() should fail when ffprobe is missing")
	}
}
