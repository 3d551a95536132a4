package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
)

// Manifest answers "is this stage done?" for one pipeline run.
type Manifest struct {
	store Store
	runID string
	now   func() time.Time
}

// NewManifest wraps store with a fresh run ID.
func NewManifest(store Store) *Manifest {
	return &Manifest{store: store, runID: uuid.NewString(), now: time.Now}
}

// RunID identifies the current run in every entry it writes.
func (m *Manifest) RunID() string { return m.runID }

// Completed reports whether stage already produced artifact. An entry counts
// only while its artifact exists and still hashes to the recorded digest.
// An artifact with no entry at all is adopted as complete.
func (m *Manifest) Completed(ctx context.Context, stage Stage, artifactPath string) (bool, error) {
	if _, err := os.Stat(artifactPath); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return false, fmt.Errorf("checkpoint: stat %s: %w", artifactPath, err)
		}
		if e, err := m.store.Get(ctx, stage); err == nil && e.Done {
			slog.Warn("artifact vanished, stage will re-run", "stage", stage, "artifact", artifactPath)
		}
		return false, nil
	}

	e, err := m.store.Get(ctx, stage)
	if errors.Is(err, ErrNotFound) {
		slog.Info("adopting existing artifact", "stage", stage, "artifact", artifactPath)
		if err := m.MarkDone(ctx, stage, artifactPath); err != nil {
			return false, err
		}
		return true, nil
	}
	if err != nil {
		return false, err
	}

	if !e.Done {
		return false, nil
	}
	if e.Artifact != artifactPath {
		slog.Warn("artifact path changed, stage will re-run", "stage", stage, "recorded", e.Artifact, "artifact", artifactPath)
		return false, nil
	}

	hash, err := HashPath(artifactPath)
	if err != nil {
		return false, err
	}
	if hash != e.Hash {
		slog.Warn("artifact modified, stage will re-run", "stage", stage, "artifact", artifactPath)
		return false, nil
	}
	return true, nil
}

// MarkDone hashes artifact and records stage as completed by this run.
func (m *Manifest) MarkDone(ctx context.Context, stage Stage, artifactPath string) error {
	hash, err := HashPath(artifactPath)
	if err != nil {
		return err
	}
	return m.store.Put(ctx, Entry{
		Stage:       stage,
		Done:        true,
		Artifact:    artifactPath,
		Hash:        hash,
		RunID:       m.runID,
		CompletedAt: m.now().UTC(),
	})
}

// Entries returns every recorded stage in pipeline order.
func (m *Manifest) Entries(ctx context.Context) ([]Entry, error) {
	return m.store.List(ctx)
}
