package caseload

import "context"

// Executor runs a composed statement with positional arguments.
type Executor interface {
	Query(ctx context.Context, sql string, args ...any) (Rows, error)
}

// Rows streams untyped result rows. pgx.Rows satisfies it directly.
type Rows interface {
	Next() bool
	Values() ([]any, error)
	Err() error
	Close()
}
