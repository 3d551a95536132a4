// Package checkpoint records which pipeline stages have completed and the
// content hash of the artifact each one produced, so an interrupted run can
// resume where it stopped.
//
// Supported stores:
//   - yaml: a single manifest file rewritten atomically
//   - sqlite: one checkpoints table (mattn/go-sqlite3)
package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/chaz8081/sbobinator/internal/config"
)

// Stage names a pipeline step.
type Stage string

const (
	StageChunk      Stage = "chunk"
	StageTranscribe Stage = "transcribe"
	StageRenderRaw  Stage = "render_raw"
	StageRefine     Stage = "refine"
	StageRenderHTML Stage = "render_html"
	StageRenderPDF  Stage = "render_pdf"
)

// Stages lists every stage in execution order.
var Stages = []Stage{
	StageChunk,
	StageTranscribe,
	StageRenderRaw,
	StageRefine,
	StageRenderHTML,
	StageRenderPDF,
}

func stageOrder(s Stage) int {
	for i, st := range Stages {
		if st == s {
			return i
		}
	}
	return len(Stages)
}

// Entry is the recorded state of one stage.
type Entry struct {
	Stage       Stage     `yaml:"stage"`
	Done        bool      `yaml:"done"`
	Artifact    string    `yaml:"artifact"`
	Hash        string    `yaml:"hash"` // blake3, hex
	RunID       string    `yaml:"run_id"`
	CompletedAt time.Time `yaml:"completed_at"`
}

// ErrNotFound is returned by Store.Get for a stage with no entry.
var ErrNotFound = errors.New("checkpoint: entry not found")

// Store persists checkpoint entries keyed by stage.
type Store interface {
	Get(ctx context.Context, stage Stage) (Entry, error)
	Put(ctx context.Context, e Entry) error
	List(ctx context.Context) ([]Entry, error)
	Close() error
}

// Open creates the Store selected by the config.
func Open(cfg *config.CheckpointConfig) (Store, error) {
	switch cfg.Store {
	case "yaml", "":
		return OpenYAMLStore(cfg.Path)
	case "sqlite":
		return OpenSQLiteStore(cfg.Path)
	default:
		return nil, fmt.Errorf("checkpoint: unknown store %q (supported: yaml, sqlite)", cfg.Store)
	}
}

// sortEntries orders entries by pipeline stage.
func sortEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return stageOrder(entries[i].Stage) < stageOrder(entries[j].Stage)
	})
}
