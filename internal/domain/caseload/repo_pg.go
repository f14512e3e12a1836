package caseload

import (
	"context"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ehr/caseload/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
}

type pgExecutor struct{ pool *pgxpool.Pool }

// NewPGExecutor runs statements on the tenant connection stored in the
// request context, falling back to the pool.
func NewPGExecutor(pool *pgxpool.Pool) Executor { return &pgExecutor{pool: pool} }

func (r *pgExecutor) conn(ctx context.Context) queryable {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

func (r *pgExecutor) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	rows, err := r.conn(ctx).Query(ctx, sql, pgArgs(args)...)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// pgInt carries a coerced integer parameter. It encodes into integer,
// numeric and text parameters alike, so a template may compare it with a
// varchar column the way MySQL-era templates did.
type pgInt int

func (v pgInt) Int64Value() (pgtype.Int8, error) {
	return pgtype.Int8{Int64: int64(v), Valid: true}, nil
}

func (v pgInt) TextValue() (pgtype.Text, error) {
	return pgtype.Text{String: strconv.Itoa(int(v)), Valid: true}, nil
}

func pgArgs(args []any) []any {
	out := make([]any, len(args))
	for i, a := range args {
		if n, ok := a.(int); ok {
			out[i] = pgInt(n)
			continue
		}
		out[i] = a
	}
	return out
}
