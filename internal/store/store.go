// Package store persists the latest analysis per (project, user).
// Every upsert overwrites the previous record in full and bumps its version.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendMongo  = "mongo"
)

// DefaultMongoDatabase is used when Options.MongoDatabase is empty.
const DefaultMongoDatabase = "guidematrix"

// Key identifies one stored analysis.
type Key struct {
	ProjectID string
	UserID    string
}

// Validate returns ErrInvalidKey when either id is blank.
func (k Key) Validate() error {
	if strings.TrimSpace(k.ProjectID) == "" || strings.TrimSpace(k.UserID) == "" {
		return fmt.Errorf("%w: project %q, user %q", ErrInvalidKey, k.ProjectID, k.UserID)
	}
	return nil
}

// String joins the path-escaped ids with "/", so distinct keys never
// collide: "a/b"+"c" is "a%2Fb/c" and "a"+"b/c" is "a/b%2Fc".
func (k Key) String() string {
	return url.PathEscape(k.ProjectID) + "/" + url.PathEscape(k.UserID)
}

// Entry is the content written by one run.
type Entry struct {
	Kind   string
	Status string
	RunID  string
	Data   json.RawMessage
}

func (e Entry) validate() error {
	if !bytes.HasPrefix(bytes.TrimSpace(e.Data), []byte("{")) || !json.Valid(e.Data) {
		return ErrInvalidData
	}
	return nil
}

// Record is a stored analysis.
type Record struct {
	ProjectID string          `json:"project_id"`
	UserID    string          `json:"user_id"`
	Kind      string          `json:"kind"`
	Status    string          `json:"status"`
	RunID     string          `json:"run_id"`
	Version   int64           `json:"version"`
	Data      json.RawMessage `json:"analysis_data"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Key returns the record's key.
func (r Record) Key() Key {
	return Key{ProjectID: r.ProjectID, UserID: r.UserID}
}

// Store reads and writes analyses.
type Store interface {
	// Upsert replaces the analysis for key and returns the stored record.
	Upsert(ctx context.Context, key Key, e Entry) (Record, error)
	// Get returns the analysis for key or ErrNotFound.
	Get(ctx context.Context, key Key) (Record, error)
	// Close releases backend resources.
	Close() error
}

// Options selects and configures a backend.
type Options struct {
	Backend       string
	SQLitePath    string
	MongoURI      string
	MongoDatabase string
}

// Open returns the backend named by o.Backend. An empty name means SQLite.
func Open(ctx context.Context, o Options) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(o.Backend)) {
	case BackendMemory:
		return NewMemory(), nil
	case BackendSQLite, "":
		s, err := OpenSQLite(o.SQLitePath)
		if err != nil {
			return nil, err
		}
		return s, nil
	case BackendMongo:
		db := o.MongoDatabase
		if db == "" {
			db = DefaultMongoDatabase
		}
		m, err := OpenMongo(ctx, o.MongoURI, db)
		if err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, fmt.Errorf("%w: %q (expected memory, sqlite or mongo)", ErrUnknownBackend, o.Backend)
	}
}

// nowUTC truncates to microseconds so records round-trip through every
// backend unchanged.
func nowUTC() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
