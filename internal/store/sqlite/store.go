// Package sqlite stores documents in a single SQLite table with a JSON
// body column.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability and performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - one open connection: SQLite has a single writer
//
// All queries end with "id COLLATE BINARY ASC" so results are
// deterministic.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/listorder/internal/store"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 1 - documents(collection, id, body) with JSON body
const currentSchemaVersion = 1

// Store is a SQLite-backed document store.
type Store struct {
	db *sql.DB
}

var _ store.Store = (*Store)(nil)

// Open creates or opens a SQLite database at the given path. Use
// ":memory:" for a private in-memory database.
// Applies required pragmas and the schema automatically.
//
// This function is idempotent - safe to call multiple times.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time, and an in-memory database
	// exists per connection, so keep exactly one.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB for direct queries.
// Use with caution - prefer using Collection methods when available.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Collection returns a handle on the named collection.
func (s *Store) Collection(name string) (store.DocumentCollection, error) {
	if name == "" {
		return nil, fmt.Errorf("sqlite: empty collection name")
	}
	return &Collection{db: s.db, name: name}, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates tables if they don't exist and records the schema
// version. This function is idempotent.
func applySchema(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	if version > currentSchemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported version %d", version, currentSchemaVersion)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}

	return nil
}

// EnsureIndex creates an expression index on (collection, body.field) so
// scope-and-position lookups avoid a full scan.
func (c *Collection) EnsureIndex(ctx context.Context, field string) error {
	if err := validField(field); err != nil {
		return fmt.Errorf("ensure index: %w", err)
	}
	stmt := fmt.Sprintf(
		"CREATE INDEX IF NOT EXISTS idx_documents_%s ON documents(collection, json_extract(body, '$.%s'))",
		field, field)
	if _, err := c.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("ensure index %s: %w", field, err)
	}
	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	q := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(q).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
