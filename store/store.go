// Package store is the persistence gateway. All reads and writes against
// PostgreSQL go through a Store so callers never touch bun directly.
package store

import "github.com/uptrace/bun"

// Store holds the shared database connection used by all queries.
type Store struct {
	db *bun.DB
}

// New creates a Store with the given database connection.
func New(db *bun.DB) *Store {
	return &Store{db: db}
}
