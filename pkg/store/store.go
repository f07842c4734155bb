// Package store exposes the pipeline's persistence operations: the
// RPC-shaped functions from spec §6 plus plain CRUD, backed by
// jmoiron/sqlx over jackc/pgx/v5. Atomic job claiming lives in the
// database function `claim_scrape_jobs`, never reimplemented here.
package store

import (
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
)

// Sentinel errors returned by store operations.
var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store wraps a *sqlx.DB and groups the pipeline's repository methods.
type Store struct {
	db *sqlx.DB
}

// New returns a Store backed by db.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
