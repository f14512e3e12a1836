package caseload

import (
	"context"
	"database/sql"
)

type sqlExecutor struct{ db *sql.DB }

// NewSQLExecutor runs statements through database/sql. It backs the SQLite
// dialect.
func NewSQLExecutor(db *sql.DB) Executor { return &sqlExecutor{db: db} }

func (e *sqlExecutor) Query(ctx context.Context, q string, args ...any) (Rows, error) {
	rows, err := e.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	cols, err := rows.Columns()
	if err != nil {
		_ = rows.Close()
		return nil, err
	}
	return &sqlRows{rows: rows, width: len(cols)}, nil
}

type sqlRows struct {
	rows  *sql.Rows
	width int
}

func (r *sqlRows) Next() bool { return r.rows.Next() }

func (r *sqlRows) Values() ([]any, error) {
	vals := make([]any, r.width)
	ptrs := make([]any, r.width)
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := r.rows.Scan(ptrs...); err != nil {
		return nil, err
	}
	for i, v := range vals {
		if b, ok := v.([]byte); ok {
			vals[i] = string(b)
		}
	}
	return vals, nil
}

func (r *sqlRows) Err() error { return r.rows.Err() }

func (r *sqlRows) Close() { _ = r.rows.Close() }
