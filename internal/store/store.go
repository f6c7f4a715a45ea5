package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

// ErrNotFound is returned when a requested row does not exist
var ErrNotFound = errors.New("not found")

// Store is the SQLite implementation of every storage interface used by
// verification, scoring, assays and the promotion gate
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the database at path and migrates it.
// ":memory:" opens a private in-memory database.
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := "file::memory:"
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, errors.Wrapf(err, "create database directory %s", dir)
			}
		}
		dsn = "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "open database %s", path)
	}
	if path == ":memory:" {
		// Each connection would get its own empty database
		db.SetMaxOpenConns(1)
	}

	s := New(db)
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an existing database handle
func New(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates tables and indexes if they do not exist
func (s *Store) Migrate(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin migration")
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range schema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "migrate schema")
		}
	}
	return errors.Wrap(tx.Commit(), "commit migration")
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS facts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		entity TEXT NOT NULL COLLATE NOCASE,
		attribute TEXT NOT NULL,
		value TEXT NOT NULL,
		value_type TEXT NOT NULL DEFAULT '',
		as_of_date TEXT NULL,
		source_url TEXT NOT NULL DEFAULT '',
		source_trust TEXT NOT NULL DEFAULT '',
		last_verified_at TEXT NULL,
		UNIQUE(entity, attribute)
	)`,
	`CREATE TABLE IF NOT EXISTS facts_evaluation (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		entity TEXT NOT NULL COLLATE NOCASE,
		attribute TEXT NOT NULL,
		value TEXT NOT NULL,
		value_type TEXT NOT NULL DEFAULT '',
		source_url TEXT NOT NULL,
		source_trust TEXT NOT NULL DEFAULT '',
		source_trust_score INTEGER NOT NULL DEFAULT 0,
		recency_score INTEGER NOT NULL DEFAULT 0,
		consensus_score INTEGER NOT NULL DEFAULT 0,
		source_trust_weight REAL NOT NULL DEFAULT 0,
		recency_weight REAL NOT NULL DEFAULT 0,
		consensus_weight REAL NOT NULL DEFAULT 0,
		trust_score INTEGER NULL,
		evaluation_notes TEXT NOT NULL DEFAULT '',
		as_of_date TEXT NULL,
		evaluated_at TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'evaluating'
	)`,
	`CREATE INDEX IF NOT EXISTS idx_evaluation_key ON facts_evaluation(entity, attribute)`,
	`CREATE INDEX IF NOT EXISTS idx_evaluation_status ON facts_evaluation(status)`,
	`CREATE TABLE IF NOT EXISTS sources (
		domain TEXT PRIMARY KEY COLLATE NOCASE,
		name TEXT NOT NULL DEFAULT '',
		public_trust INTEGER NOT NULL,
		data_accuracy INTEGER NOT NULL,
		proprietary_score INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS gate_decisions (
		id TEXT PRIMARY KEY,
		evaluation_id INTEGER NULL,
		entity TEXT NOT NULL DEFAULT '',
		attribute TEXT NOT NULL DEFAULT '',
		passed INTEGER NOT NULL,
		tier TEXT NOT NULL,
		reason TEXT NOT NULL,
		criteria TEXT NOT NULL,
		metrics TEXT NOT NULL,
		decided_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS unmet_requests (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		entity TEXT NOT NULL,
		attribute TEXT NOT NULL,
		claim_value TEXT NOT NULL,
		context TEXT NOT NULL DEFAULT '',
		requested_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS assay_results (
		assay_id TEXT PRIMARY KEY,
		assay TEXT NOT NULL,
		entity TEXT NOT NULL COLLATE NOCASE,
		attribute TEXT NOT NULL,
		claimed_value TEXT NOT NULL,
		verified INTEGER NOT NULL,
		agreement REAL NOT NULL,
		result TEXT NOT NULL,
		executed_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_assay_key ON assay_results(entity, attribute, executed_at)`,
}

// Times are stored as RFC 3339 text so that SQL can compare and slice them
const timeLayout = time.RFC3339Nano

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "parse stored time %q", s)
	}
	return t, nil
}

func parseNullTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
