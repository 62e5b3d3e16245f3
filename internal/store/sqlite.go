package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS analysis_results (
	project_id    TEXT NOT NULL,
	user_id       TEXT NOT NULL,
	kind          TEXT NOT NULL,
	status        TEXT NOT NULL,
	run_id        TEXT NOT NULL,
	version       INTEGER NOT NULL DEFAULT 1,
	analysis_data TEXT NOT NULL,
	updated_at    TEXT NOT NULL,
	PRIMARY KEY (project_id, user_id)
);`

const sqliteUpsert = `
INSERT INTO analysis_results (project_id, user_id, kind, status, run_id, version, analysis_data, updated_at)
VALUES (?, ?, ?, ?, ?, 1, ?, ?)
ON CONFLICT (project_id, user_id) DO UPDATE SET
	kind          = excluded.kind,
	status        = excluded.status,
	run_id        = excluded.run_id,
	version       = analysis_results.version + 1,
	analysis_data = excluded.analysis_data,
	updated_at    = excluded.updated_at
RETURNING version`

const sqliteGet = `
SELECT kind, status, run_id, version, analysis_data, updated_at
FROM analysis_results WHERE project_id = ? AND user_id = ?`

// SQLite stores analyses in a single-file database.
type SQLite struct {
	db   *sql.DB
	path string
}

// OpenSQLite opens or creates the database at path and its schema.
func OpenSQLite(path string) (*SQLite, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite: empty database path")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("sqlite: create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	// A single connection serializes writers and keeps ":memory:" on one database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: initialize schema: %w", err)
	}
	return &SQLite{db: db, path: path}, nil
}

// Path returns the database file path.
func (s *SQLite) Path() string {
	return s.path
}

// Upsert implements Store.
func (s *SQLite) Upsert(ctx context.Context, key Key, e Entry) (Record, error) {
	if err := key.Validate(); err != nil {
		return Record{}, err
	}
	if err := e.validate(); err != nil {
		return Record{}, err
	}

	now := nowUTC()
	var version int64
	err := s.db.QueryRowContext(ctx, sqliteUpsert,
		key.ProjectID, key.UserID, e.Kind, e.Status, e.RunID, string(e.Data), now.Format(time.RFC3339Nano),
	).Scan(&version)
	if err != nil {
		return Record{}, fmt.Errorf("sqlite: upsert %s: %w", key, err)
	}

	return Record{
		ProjectID: key.ProjectID,
		UserID:    key.UserID,
		Kind:      e.Kind,
		Status:    e.Status,
		RunID:     e.RunID,
		Version:   version,
		Data:      append([]byte(nil), e.Data...),
		UpdatedAt: now,
	}, nil
}

// Get implements Store.
func (s *SQLite) Get(ctx context.Context, key Key) (Record, error) {
	if err := key.Validate(); err != nil {
		return Record{}, err
	}

	rec := Record{ProjectID: key.ProjectID, UserID: key.UserID}
	var data, updated string
	err := s.db.QueryRowContext(ctx, sqliteGet, key.ProjectID, key.UserID).
		Scan(&rec.Kind, &rec.Status, &rec.RunID, &rec.Version, &data, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("sqlite: get %s: %w", key, err)
	}

	rec.Data = []byte(data)
	rec.UpdatedAt, err = time.Parse(time.RFC3339Nano, updated)
	if err != nil {
		return Record{}, fmt.Errorf("sqlite: parse updated_at %q: %w", updated, err)
	}
	return rec, nil
}

// Close implements Store.
func (s *SQLite) Close() error {
	return s.db.Close()
}
