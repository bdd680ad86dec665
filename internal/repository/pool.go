package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// pgxPool is the part of *pgxpool.Pool the repositories use.
type pgxPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}
