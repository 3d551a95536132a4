package transcribe

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"github.com/chaz8081/sbobinator/internal/artifact"
)

var chunkNameRe = regexp.MustCompile(`^split_(\d+)\.[A-Za-z0-9]+$`)

// ChunkFile is an audio chunk on disk and its 1-based sequence number.
type ChunkFile struct {
	Index int
	Path  string
}

// Fragment is the transcript of one chunk.
type Fragment struct {
	Index int
	Text  string
}

// ListChunks returns the split_<n>.<ext> files in dir sorted by n.
// Directory order is never trusted: split_10 sorts after split_9.
func ListChunks(dir string) ([]ChunkFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("transcribe: listing chunks: %w", err)
	}

	var chunks []ChunkFile
	seen := make(map[int]string)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := chunkNameRe.FindStringSubmatch(e.Name())
		if m == nil {
			slog.Debug("skipping non-chunk file", "name", e.Name())
			continue
		}
		idx, err := strconv.Atoi(m[1])
		if err != nil {
			return nil, fmt.Errorf("transcribe: chunk index in %q: %w", e.Name(), err)
		}
		if prev, dup := seen[idx]; dup {
			return nil, fmt.Errorf("transcribe: duplicate chunk index %d (%s and %s)", idx, prev, e.Name())
		}
		seen[idx] = e.Name()
		chunks = append(chunks, ChunkFile{Index: idx, Path: filepath.Join(dir, e.Name())})
	}

	if len(chunks) == 0 {
		return nil, fmt.Errorf("transcribe: no chunk files in %s", dir)
	}

	sort.Slice(chunks, func(i, j int) bool { return chunks[i].Index < chunks[j].Index })
	return chunks, nil
}

// TranscribeChunks transcribes every chunk in dir in ascending index order.
// The first failure aborts the whole run and no fragments are returned.
func TranscribeChunks(ctx context.Context, t Transcriber, dir, language string) ([]Fragment, error) {
	chunks, err := ListChunks(dir)
	if err != nil {
		return nil, err
	}

	fragments := make([]Fragment, 0, len(chunks))
	for i, c := range chunks {
		slog.Info("transcribing chunk", "chunk", fmt.Sprintf("%d/%d", i+1, len(chunks)), "file", filepath.Base(c.Path))

		text, err := transcribeFile(ctx, t, c.Path, language)
		if err != nil {
			return nil, err
		}
		fragments = append(fragments, Fragment{Index: c.Index, Text: text})
	}
	return fragments, nil
}

func transcribeFile(ctx context.Context, t Transcriber, path, language string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("transcribe: open chunk: %w", err)
	}
	defer f.Close()

	return t.Transcribe(ctx, Request{
		Audio:    f,
		Filename: filepath.Base(path),
		Language: language,
	})
}

// Texts returns the fragment texts in order.
func Texts(fragments []Fragment) []string {
	out := make([]string, len(fragments))
	for i, f := range fragments {
		out[i] = f.Text
	}
	return out
}

// SaveTranscripts persists the ordered transcript list as a JSON array.
func SaveTranscripts(path string, texts []string) error {
	if texts == nil {
		texts = []string{}
	}
	return artifact.WriteJSON(path, texts)
}

// LoadTranscripts reads a list written by SaveTranscripts.
func LoadTranscripts(path string) ([]string, error) {
	var texts []string
	if err := artifact.ReadJSON(path, &texts); err != nil {
		return nil, fmt.Errorf("transcribe: %w", err)
	}
	return texts, nil
}
