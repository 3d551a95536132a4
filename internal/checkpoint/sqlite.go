package checkpoint

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
PRAGMA busy_timeout = 10000;
PRAGMA journal_mode = WAL;
PRAGMA synchronous  = NORMAL;

create table if not exists checkpoints (
	stage text primary key not null,
	done integer not null default 0,
	artifact text not null,
	hash text not null,
	run_id text not null,
	completed_at text not null
);`

// SQLiteStore keeps checkpoint entries in a sqlite database.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens (or creates) the database at path.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("checkpoint: creating %s: %w", filepath.Dir(path), err)
	}

	db, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: opening sqlite: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("checkpoint: creating schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, stage Stage) (Entry, error) {
	row := s.db.QueryRowContext(ctx,
		"select stage, done, artifact, hash, run_id, completed_at from checkpoints where stage = $1",
		string(stage),
	)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, fmt.Errorf("checkpoint: get %s: %w", stage, err)
	}
	return e, nil
}

func (s *SQLiteStore) Put(ctx context.Context, e Entry) error {
	_, err := s.db.ExecContext(ctx, `
		insert into checkpoints (stage, done, artifact, hash, run_id, completed_at)
		values ($1, $2, $3, $4, $5, $6)
		on conflict (stage) do update set
			done = excluded.done,
			artifact = excluded.artifact,
			hash = excluded.hash,
			run_id = excluded.run_id,
			completed_at = excluded.completed_at`,
		string(e.Stage), e.Done, e.Artifact, e.Hash, e.RunID, e.CompletedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("checkpoint: persisting %s into sqlite: %w", e.Stage, err)
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		"select stage, done, artifact, hash, run_id, completed_at from checkpoints",
	)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: listing: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("checkpoint: listing: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("checkpoint: listing: %w", err)
	}
	sortEntries(out)
	return out, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(sc scanner) (Entry, error) {
	var (
		e           Entry
		stage       string
		done        uint8
		completedAt string
	)
	if err := sc.Scan(&stage, &done, &e.Artifact, &e.Hash, &e.RunID, &completedAt); err != nil {
		return Entry{}, err
	}
	e.Stage = Stage(stage)
	e.Done = done == 1

	t, err := time.Parse(time.RFC3339Nano, completedAt)
	if err != nil {
		return Entry{}, fmt.Errorf("parsing completed_at %q: %w", completedAt, err)
	}
	e.CompletedAt = t
	return e, nil
}
