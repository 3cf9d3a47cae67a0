// Package postgres provides the Postgres-backed setting context and request
// log store, with embedded schema migrations.
package postgres

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/meikuraledutech/interview"
)

// PGStore implements interview.ContextProvider and interview.RequestLogStore.
type PGStore struct {
	db *pgxpool.Pool
}

// New creates a PGStore on an existing pool.
func New(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

var (
	_ interview.ContextProvider = (*PGStore)(nil)
	_ interview.RequestLogStore = (*PGStore)(nil)
)
