// Package store persists the engine's four output datasets in sqlite:
// canonical samples, threshold sets, report classifications and machine
// statuses.
//
// Upsert contract: re-ingesting a sample id overwrites the prior canonical
// sample and report rows for that id; threshold sets and machine statuses
// are always replaced wholesale per tenant, never appended.
package store

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

type DB struct {
	*sql.DB
}

// OpenDB opens (or creates) the sqlite database at path without touching
// the schema; migrations manage the schema.
func OpenDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys = ON; PRAGMA busy_timeout = 5000;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set pragmas: %w", err)
	}
	return &DB{db}, nil
}

// OpenMemoryDB opens an in-memory database with the schema applied, for
// tests and one-shot runs.
func OpenMemoryDB() (*DB, error) {
	db, err := OpenDB(":memory:")
	if err != nil {
		return nil, err
	}
	if err := db.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
