// Package db provides the shared connection-pool interface and multi-row
// insert helpers used by the ingestion pipeline.
package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the query surface shared by pgxpool.Pool and pgx.Tx, so the
// insert helpers work identically inside and outside a transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Pool is the subset of pgxpool.Pool the pipeline depends on. pgxmock
// satisfies it, which keeps every store-touching component testable without
// a live database.
type Pool interface {
	Querier
	Begin(ctx context.Context) (pgx.Tx, error)
}
