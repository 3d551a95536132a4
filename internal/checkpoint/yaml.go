package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/chaz8081/sbobinator/internal/artifact"
)

type manifestFile struct {
	Entries []Entry `yaml:"entries"`
}

// YAMLStore keeps the manifest in memory and rewrites the whole file on
// every Put.
type YAMLStore struct {
	path string

	mu      sync.Mutex
	entries map[Stage]Entry
}

// OpenYAMLStore loads the manifest at path. A missing file is an empty
// manifest; the file is created on the first Put.
func OpenYAMLStore(path string) (*YAMLStore, error) {
	s := &YAMLStore{path: path, entries: make(map[Stage]Entry)}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("checkpoint: reading manifest: %w", err)
	}

	var mf manifestFile
	if err := yaml.Unmarshal(data, &mf); err != nil {
		return nil, fmt.Errorf("checkpoint: parsing manifest %s: %w", path, err)
	}
	for _, e := range mf.Entries {
		s.entries[e.Stage] = e
	}
	return s, nil
}

func (s *YAMLStore) Get(_ context.Context, stage Stage) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[stage]
	if !ok {
		return Entry{}, ErrNotFound
	}
	return e, nil
}

func (s *YAMLStore) Put(_ context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, had := s.entries[e.Stage]
	s.entries[e.Stage] = e
	if err := s.flush(); err != nil {
		if had {
			s.entries[e.Stage] = prev
		} else {
			delete(s.entries, e.Stage)
		}
		return err
	}
	return nil
}

func (s *YAMLStore) List(_ context.Context) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sorted(), nil
}

func (s *YAMLStore) Close() error { return nil }

func (s *YAMLStore) sorted() []Entry {
	out := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}
	sortEntries(out)
	return out
}

func (s *YAMLStore) flush() error {
	data, err := yaml.Marshal(manifestFile{Entries: s.sorted()})
	if err != nil {
		return fmt.Errorf("checkpoint: encoding manifest: %w", err)
	}
	if err := artifact.WriteFile(s.path, data); err != nil {
		return fmt.Errorf("checkpoint: %w", err)
	}
	return nil
}
