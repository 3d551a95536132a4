package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// MB is the unit of the configured chunk size budget.
const MB = 1024 * 1024

// ErrSourceCount is returned when the input folder does not contain exactly
// one source recording. Nothing is written in that case.
var ErrSourceCount = errors.New("audio: input folder must contain exactly one source file")

// Chunk is one contiguous time slice of the source recording.
type Chunk struct {
	Index   int // 1-based, order-significant
	StartMs int64
	EndMs   int64
	Path    string
}

// DurationMs returns the length of the chunk in milliseconds.
func (c Chunk) DurationMs() int64 {
	return c.EndMs - c.StartMs
}

// ChunkCount returns ceil(sizeBytes / maxBytes), or 0 for an empty source.
func ChunkCount(sizeBytes, maxBytes int64) int {
	if sizeBytes <= 0 || maxBytes <= 0 {
		return 0
	}
	return int((sizeBytes + maxBytes - 1) / maxBytes)
}

// PlanChunks slices totalMs into exactly count chunks of totalMs/count
// milliseconds each. The last chunk runs to totalMs and absorbs the
// remainder of the integer division.
func PlanChunks(totalMs int64, count int) ([]Chunk, error) {
	if count <= 0 {
		return nil, fmt.Errorf("audio: chunk count must be > 0, got %d", count)
	}
	chunkMs := totalMs / int64(count)
	if chunkMs <= 0 {
		return nil, fmt.Errorf("audio: %d ms of audio cannot be split into %d chunks", totalMs, count)
	}

	chunks := make([]Chunk, count)
	for i := range chunks {
		start := int64(i) * chunkMs
		end := min(start+chunkMs, totalMs)
		if i == count-1 {
			end = totalMs
		}
		chunks[i] = Chunk{Index: i + 1, StartMs: start, EndMs: end}
	}
	return chunks, nil
}

// ChunkFileName returns the on-disk name of the chunk with the given index.
func ChunkFileName(index int, ext string) string {
	return fmt.Sprintf("split_%d.%s", index, ext)
}

// Chunker splits one oversized recording into numbered chunk files.
type Chunker struct {
	codec  Codec
	format string
}

// NewChunker creates a Chunker that looks for *.<format> sources and
// decodes/encodes them with codec.
func NewChunker(codec Codec, format string) *Chunker {
	return &Chunker{codec: codec, format: strings.TrimPrefix(format, ".")}
}

// FindSource returns the single *.<format> file in dir. Zero or several
// matches wrap ErrSourceCount.
func FindSource(dir, format string) (string, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*."+format))
	if err != nil {
		return "", fmt.Errorf("audio: listing %s: %w", dir, err)
	}
	if len(files) != 1 {
		return "", fmt.Errorf("%w: found %d *.%s files in %s", ErrSourceCount, len(files), format, dir)
	}
	return files[0], nil
}

// Split cuts the single source recording in inputDir into
// ceil(size/maxChunkBytes) chunks of equal duration and writes them to
// outputDir as split_1.<ext>, split_2.<ext>, ...
//
// Chunk duration is derived from the byte budget assuming a constant
// bitrate, so actual chunk sizes can deviate from maxChunkBytes. Chunks are
// written to a temporary directory that replaces outputDir only once every
// chunk exists.
func (c *Chunker) Split(ctx context.Context, inputDir, outputDir string, maxChunkBytes int64) ([]Chunk, error) {
	src, err := FindSource(inputDir, c.format)
	if err != nil {
		slog.Error("Please provide a folder containing exactly one file", "dir", inputDir, "format", c.format)
		return nil, err
	}

	info, err := os.Stat(src)
	if err != nil {
		return nil, fmt.Errorf("audio: stat source: %w", err)
	}
	slog.Info("source recording", "path", src, "size_mb", fmt.Sprintf("%.2f", float64(info.Size())/MB))

	total := ChunkCount(info.Size(), maxChunkBytes)
	if total == 0 {
		return nil, fmt.Errorf("audio: source %s is empty", src)
	}

	slog.Info("loading the audio file", "codec", c.codec.Name())
	clip, err := c.codec.Load(ctx, src)
	if err != nil {
		return nil, err
	}

	chunks, err := PlanChunks(clip.DurationMs(), total)
	if err != nil {
		return nil, err
	}

	parent := filepath.Dir(filepath.Clean(outputDir))
	if err := os.MkdirAll(parent, 0755); err != nil {
		return nil, fmt.Errorf("audio: creating %s: %w", parent, err)
	}
	tmpDir, err := os.MkdirTemp(parent, "."+filepath.Base(outputDir)+"-*")
	if err != nil {
		return nil, fmt.Errorf("audio: creating temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	for i := range chunks {
		name := ChunkFileName(chunks[i].Index, c.codec.Ext())
		tmpPath := filepath.Join(tmpDir, name)
		if err := clip.Export(ctx, chunks[i].StartMs, chunks[i].EndMs, tmpPath); err != nil {
			return nil, fmt.Errorf("audio: exporting chunk %d: %w", chunks[i].Index, err)
		}
		chunks[i].Path = filepath.Join(outputDir, name)

		if st, err := os.Stat(tmpPath); err == nil {
			slog.Info("chunk created",
				"chunk", fmt.Sprintf("%d/%d", chunks[i].Index, total),
				"start_ms", chunks[i].StartMs,
				"end_ms", chunks[i].EndMs,
				"approx_mb", fmt.Sprintf("%.2f", float64(st.Size())/MB))
		}
	}

	if _, err := os.Stat(outputDir); err == nil {
		slog.Warn("replacing stale chunk directory", "dir", outputDir)
		if err := os.RemoveAll(outputDir); err != nil {
			return nil, fmt.Errorf("audio: removing stale %s: %w", outputDir, err)
		}
	}
	if err := os.Rename(tmpDir, outputDir); err != nil {
		return nil, fmt.Errorf("audio: moving chunks into %s: %w", outputDir, err)
	}

	return chunks, nil
}
