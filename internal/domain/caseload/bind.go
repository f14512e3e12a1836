package caseload

import (
	"fmt"
	"strconv"
)

// Coerce binds text that parses as an integer as an int and anything else,
// including the empty string, as the string itself.
func Coerce(s string) any {
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return s
}

// CoerceAll applies Coerce to every parameter, keeping order.
func CoerceAll(params []string) []any {
	out := make([]any, len(params))
	for i, p := range params {
		out[i] = Coerce(p)
	}
	return out
}

// Bind produces the positional values for stmt: search parameters, sort
// parameters for joined categories, the direction once per ordering term,
// then offset and page size.
func Bind(stmt *Statement, searchParams, sortParams []string, dir SortDirection, page, pageSize int) ([]any, error) {
	if stmt.DirectionRepeats > 0 && dir != Ascending && dir != Descending {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSortDirection, string(dir))
	}

	args := make([]any, 0, stmt.Placeholders)
	args = append(args, CoerceAll(searchParams)...)
	if stmt.Joined {
		args = append(args, CoerceAll(sortParams)...)
	}
	for i := 0; i < stmt.DirectionRepeats; i++ {
		args = append(args, string(dir))
	}
	if stmt.Paginated {
		args = append(args, page*pageSize, pageSize)
	}

	if len(args) != stmt.Placeholders {
		return nil, fmt.Errorf("%w: statement has %d placeholders, bound %d values",
			ErrParameterBindingMismatch, stmt.Placeholders, len(args))
	}
	return args, nil
}
